package hellofresh

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	errs "recipecards/pkg/errors"
)

// tokenMarker precedes the bearer token in the site's embedded state.
const tokenMarker = `"access_token":"`

// AcquireCredential fetches the site root once and extracts the bearer token
// from it. There is no retry: a failure here ends the run.
func (c *Client) AcquireCredential(ctx context.Context) (Credential, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Credential{}, err
	}

	resp, err := c.get(ctx, c.siteURL, c.requestTimeout, map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
	if err != nil {
		return Credential{}, fmt.Errorf("fetch site: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Credential{}, errs.FromStatus(resp.StatusCode(), "site root request failed")
	}

	token, err := ExtractToken(resp.Body())
	if err != nil {
		return Credential{}, err
	}

	c.logger.Info("API token acquired")
	return Credential{Value: token, AcquiredAt: time.Now()}, nil
}

// ExtractToken finds the access token embedded in the site markup. Script
// blocks are searched first; when none holds the marker the raw body is
// searched. A missing marker or an empty token yields ErrCredentialNotFound.
func ExtractToken(body []byte) (string, error) {
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		var (
			token string
			found bool
		)
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			token, found = tokenAfterMarker(s.Text())
			return !found
		})
		if found {
			return validToken(token)
		}
	}

	if token, found := tokenAfterMarker(string(body)); found {
		return validToken(token)
	}
	return "", errs.ErrCredentialNotFound
}

// tokenAfterMarker returns the text between the marker and the next quote.
func tokenAfterMarker(text string) (string, bool) {
	start := strings.Index(text, tokenMarker)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(tokenMarker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

func validToken(token string) (string, error) {
	if token == "" {
		return "", errs.ErrCredentialNotFound
	}
	return token, nil
}
