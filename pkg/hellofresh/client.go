package hellofresh

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"recipecards/pkg/config"
	errs "recipecards/pkg/errors"
	"recipecards/pkg/logger"
	"recipecards/pkg/ratelimit"
)

const (
	// DefaultSiteURL is the public marketing site that embeds the API token
	DefaultSiteURL = "https://www.hellofresh.com"

	// DefaultAPIURL is the gateway base for catalog search
	DefaultAPIURL = "https://gw.hellofresh.com/api/"

	// SearchEndpoint is appended to the API base URL
	SearchEndpoint = "recipes/search"
)

// Options configures a Client.
type Options struct {
	SiteURL         string
	APIURL          string
	UserAgent       string
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration

	// Limiter throttles site and search calls. Card downloads are not limited.
	Limiter ratelimit.Limiter

	// Transport replaces the HTTP round tripper, mainly for tests.
	Transport http.RoundTripper

	Logger logger.Logger
}

// OptionsFromConfig builds client options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SiteURL:         cfg.Site.SiteURL,
		APIURL:          cfg.Site.APIURL,
		UserAgent:       cfg.Site.UserAgent,
		RequestTimeout:  cfg.Site.RequestTimeout,
		DownloadTimeout: cfg.Download.Timeout,
		Limiter:         ratelimit.PerMinute(cfg.Site.RequestsPerMinute),
	}
}

// Client talks to the recipe site, its search API and the card CDN.
type Client struct {
	http            *resty.Client
	siteURL         string
	apiURL          string
	requestTimeout  time.Duration
	downloadTimeout time.Duration
	limiter         ratelimit.Limiter
	logger          logger.Logger
}

// NewClient creates a new client
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "hellofresh")

	if opts.SiteURL == "" {
		opts.SiteURL = DefaultSiteURL
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if !strings.HasSuffix(opts.APIURL, "/") {
		opts.APIURL += "/"
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}

	httpClient := resty.New().
		SetLogger(restyLogger{log}).
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetHeader("Cache-Control", "no-cache")
	if opts.UserAgent != "" {
		httpClient.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Transport != nil {
		httpClient.SetTransport(opts.Transport)
	}

	return &Client{
		http:            httpClient,
		siteURL:         opts.SiteURL,
		apiURL:          opts.APIURL,
		requestTimeout:  opts.RequestTimeout,
		downloadTimeout: opts.DownloadTimeout,
		limiter:         opts.Limiter,
		logger:          log,
	}
}

// SearchURL returns the full search URL for q.
func (c *Client) SearchURL(q SearchQuery) string {
	return c.apiURL + SearchEndpoint + "?" + q.Encode()
}

// get performs a GET and returns the response body. Transport failures come
// back as network errors that still unwrap to the underlying cause.
func (c *Client) get(ctx context.Context, url string, timeout time.Duration, headers map[string]string) (*resty.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("request to %s: %w", url, err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": http.MethodGet,
		"url":    url,
	})

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errs.IsTransient(err) {
			return nil, fmt.Errorf("request to %s: %w", url, ctxErr)
		}
		return nil, errs.NewNetworkError(fmt.Sprintf("GET %s", url), err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   http.MethodGet,
		"url":      url,
		"status":   resp.StatusCode(),
		"duration": duration,
	})

	return resp, nil
}

// DownloadCard fetches a recipe card PDF and returns its bytes.
func (c *Client) DownloadCard(ctx context.Context, link string) ([]byte, error) {
	resp, err := c.get(ctx, link, c.downloadTimeout, map[string]string{
		"Accept": "application/pdf",
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errs.FromStatus(resp.StatusCode(), fmt.Sprintf("card download %s", link))
	}
	return resp.Body(), nil
}

// restyLogger routes resty's internal logging into the structured logger.
// Request failures are reported by callers, so resty errors stay at debug.
type restyLogger struct {
	log logger.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.WithField("source", "resty").Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.WithField("source", "resty").Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.WithField("source", "resty").Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
