package hellofresh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	errs "recipecards/pkg/errors"
)

// Searcher executes a single catalog search request.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery, cred Credential) (*SearchPage, error)
}

// Search runs one search request with the bearer credential.
func (c *Client) Search(ctx context.Context, q SearchQuery, cred Credential) (*SearchPage, error) {
	if !cred.Valid() {
		return nil, errs.ErrCredentialNotFound
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search query: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, c.SearchURL(q), c.requestTimeout, map[string]string{
		"Accept":        "application/json",
		"Authorization": "Bearer " + cred.Value,
	})
	if err != nil {
		return nil, fmt.Errorf("search at offset %d: %w", q.Offset, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &errs.SearchRequestFailedError{Status: resp.StatusCode()}
	}

	return decodeSearchPage(resp.Body())
}

// decodeSearchPage turns a search body into a page. A blank body, a JSON null
// or an object with neither items nor total is an empty catalog.
func decodeSearchPage(body []byte) (*SearchPage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errs.ErrEmptyCatalog
	}
	// A well-formed body that is not an object ([], "") carries no catalog.
	if trimmed[0] != '{' && json.Valid(trimmed) {
		return nil, errs.ErrEmptyCatalog
	}

	var raw searchResponse
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "failed to decode search response",
			Code:    http.StatusOK,
			Err:     err,
		}
	}
	if raw.Items == nil && raw.Total == nil {
		return nil, errs.ErrEmptyCatalog
	}
	return raw.page(), nil
}
