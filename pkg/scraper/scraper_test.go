package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipecards/internal/downloader"
	"recipecards/pkg/checkpoint"
	"recipecards/pkg/config"
	errs "recipecards/pkg/errors"
	"recipecards/pkg/logger"
	"recipecards/pkg/metadata"
)

const (
	siteURL       = "https://site.test"
	apiURL        = "https://api.test/api/"
	searchPattern = `=~^https://api\.test/api/recipes/search`
	sitePage      = `<html><head><script>window.__STATE__={"auth":{"access_token":"tok-123","expires_in":3600}}</script></head></html>`
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Site.SiteURL = siteURL
	cfg.Site.APIURL = apiURL
	cfg.Site.RequestsPerMinute = 0
	cfg.Download.RetryDelayMin = time.Millisecond
	cfg.Download.RetryDelayMax = 2 * time.Millisecond
	cfg.Download.BatchDelay = 0
	cfg.Output.SaveDirectory = filepath.Join(t.TempDir(), "cards")
	return cfg
}

func newTestScraper(t *testing.T, cfg *config.Config, transport http.RoundTripper, m *Metrics) *Scraper {
	t.Helper()
	s, err := New(cfg, WithHTTPTransport(transport), WithLogger(logger.NewTestLogger()), WithMetrics(m))
	require.NoError(t, err)
	return s
}

func pdfFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	require.NoError(t, err)
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	sort.Strings(names)
	return names
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, siteURL, httpmock.NewStringResponder(200, sitePage))
	transport.RegisterResponder(http.MethodGet, searchPattern, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer tok-123", req.Header.Get("Authorization"))
		assert.Equal(t, "en-US", req.URL.Query().Get("locale"))
		return httpmock.NewStringResponse(200, `{
			"items": [
				{"id": "1", "name": "Chicken Tacos", "cardLink": "https://cdn.test/1.pdf"},
				{"id": "2", "name": "Garden Soup"},
				{"id": "3", "name": "Beef Stew", "cardLink": "https://cdn.test/3.pdf"}
			],
			"skip": 0, "take": 500, "count": 3, "total": 3
		}`), nil
	})
	transport.RegisterResponder(http.MethodGet, "https://cdn.test/1.pdf", httpmock.NewBytesResponder(200, []byte("%PDF tacos")))
	transport.RegisterResponder(http.MethodGet, "https://cdn.test/3.pdf", httpmock.NewBytesResponder(200, []byte("%PDF stew")))

	metrics := NewMetrics()
	report, err := newTestScraper(t, cfg, transport, metrics).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, downloader.Summary{Saved: 2, Skipped: 1}, report.Summary)
	assert.Equal(t, 1, report.Pages)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, "US", report.Locale)
	assert.Equal(t, []string{"Beef Stew.pdf", "Chicken Tacos.pdf"}, pdfFiles(t, cfg.Output.SaveDirectory))

	content, err := os.ReadFile(filepath.Join(cfg.Output.SaveDirectory, "Chicken Tacos.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF tacos", string(content))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PagesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CardsTotal.WithLabelValues(downloader.OutcomeSaved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CardsTotal.WithLabelValues(downloader.OutcomeSkipped)))

	// A second run saves nothing new.
	report, err = newTestScraper(t, cfg, transport, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, downloader.Summary{Existing: 2, Skipped: 1}, report.Summary)
	assert.Len(t, pdfFiles(t, cfg.Output.SaveDirectory), 2)
}

// catalogResponder serves total items in pages and records requested offsets.
type catalogResponder struct {
	mu      sync.Mutex
	total   int
	offsets []int
	failAt  map[int]int
}

func (c *catalogResponder) respond(req *http.Request) (*http.Response, error) {
	q := req.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	c.mu.Lock()
	c.offsets = append(c.offsets, offset)
	status := c.failAt[offset]
	c.mu.Unlock()

	if status != 0 {
		return httpmock.NewStringResponse(status, "{}"), nil
	}

	body := `{"items":[`
	for i := offset; i < offset+limit && i < c.total; i++ {
		if i > offset {
			body += ","
		}
		body += fmt.Sprintf(`{"id":"%d","name":"Recipe %d","cardLink":"https://cdn.test/%d.pdf"}`, i, i, i)
	}
	body += fmt.Sprintf(`],"skip":%d,"take":%d,"total":%d}`, offset, limit, c.total)
	return httpmock.NewStringResponse(200, body), nil
}

func (c *catalogResponder) requested() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.offsets...)
}

func catalogTransport(catalog *catalogResponder) *httpmock.MockTransport {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, siteURL, httpmock.NewStringResponder(200, sitePage))
	transport.RegisterResponder(http.MethodGet, searchPattern, catalog.respond)
	transport.RegisterResponder(http.MethodGet, `=~^https://cdn\.test/`, httpmock.NewBytesResponder(200, []byte("%PDF")))
	return transport
}

func TestRunWalksAllPages(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.Limit = 4
	catalog := &catalogResponder{total: 9}

	report, err := newTestScraper(t, cfg, catalogTransport(catalog), nil).Run(context.Background())
	require.NoError(t, err)

	// round(9/4) = 2 additional pages
	assert.Equal(t, []int{0, 4, 8}, catalog.requested())
	assert.Equal(t, 3, report.Pages)
	assert.Equal(t, 3, report.TotalPages)
	assert.Equal(t, 9, report.Summary.Saved)
	assert.Len(t, pdfFiles(t, cfg.Output.SaveDirectory), 9)
}

func TestRunFatalErrors(t *testing.T) {
	t.Run("credential missing", func(t *testing.T) {
		cfg := testConfig(t)
		transport := httpmock.NewMockTransport()
		transport.RegisterResponder(http.MethodGet, siteURL, httpmock.NewStringResponder(200, "<html></html>"))
		transport.RegisterResponder(http.MethodGet, searchPattern, httpmock.NewStringResponder(200, "{}"))

		metrics := NewMetrics()
		_, err := newTestScraper(t, cfg, transport, metrics).Run(context.Background())
		assert.ErrorIs(t, err, errs.ErrCredentialNotFound)
		assert.Zero(t, transport.GetCallCountInfo()["GET "+searchPattern])
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues(string(errs.ErrorTypeAuth))))
	})

	t.Run("search rejected", func(t *testing.T) {
		cfg := testConfig(t)
		catalog := &catalogResponder{total: 10, failAt: map[int]int{0: 403}}

		_, err := newTestScraper(t, cfg, catalogTransport(catalog), nil).Run(context.Background())
		var searchErr *errs.SearchRequestFailedError
		require.ErrorAs(t, err, &searchErr)
		assert.Equal(t, 403, searchErr.Status)
		assert.Empty(t, pdfFiles(t, cfg.Output.SaveDirectory))
	})

	t.Run("empty first page", func(t *testing.T) {
		cfg := testConfig(t)
		transport := httpmock.NewMockTransport()
		transport.RegisterResponder(http.MethodGet, siteURL, httpmock.NewStringResponder(200, sitePage))
		transport.RegisterResponder(http.MethodGet, searchPattern, httpmock.NewStringResponder(200, ""))

		_, err := newTestScraper(t, cfg, transport, nil).Run(context.Background())
		assert.ErrorIs(t, err, errs.ErrEmptyCatalog)
	})

	t.Run("unusable save directory", func(t *testing.T) {
		cfg := testConfig(t)
		file := filepath.Join(t.TempDir(), "not-a-dir")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
		cfg.Output.SaveDirectory = filepath.Join(file, "cards")

		transport := httpmock.NewMockTransport()
		_, err := newTestScraper(t, cfg, transport, nil).Run(context.Background())
		assert.Error(t, err)
		assert.Zero(t, transport.GetTotalCallCount())
	})
}

func TestRunCheckpointAndResume(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.Limit = 4
	catalog := &catalogResponder{total: 12, failAt: map[int]int{8: 500}}

	report, err := newTestScraper(t, cfg, catalogTransport(catalog), nil).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, report.Pages)

	cps, err := checkpoint.Open(cfg.Output.SaveDirectory, logger.NewTestLogger())
	require.NoError(t, err)
	cp, err := cps.Load("US")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 8, cp.NextOffset)
	assert.Equal(t, 8, cp.Saved)
	require.NoError(t, cps.Close())

	// Resume picks up at the failed page and clears the checkpoint at the end.
	resumed := &catalogResponder{total: 12}
	cfg.Output.Resume = true
	report, err = newTestScraper(t, cfg, catalogTransport(resumed), nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Resumed)
	assert.Equal(t, 8, report.StartOffset)
	assert.Equal(t, 8, resumed.requested()[0])
	assert.Equal(t, 4, report.Summary.Saved)
	assert.Len(t, pdfFiles(t, cfg.Output.SaveDirectory), 12)

	cps, err = checkpoint.Open(cfg.Output.SaveDirectory, logger.NewTestLogger())
	require.NoError(t, err)
	defer cps.Close()
	assert.False(t, cps.Exists("US"))
}

func TestRunHonoursLocale(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.Locale = "de"

	var locale, country string
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, siteURL, httpmock.NewStringResponder(200, sitePage))
	transport.RegisterResponder(http.MethodGet, searchPattern, func(req *http.Request) (*http.Response, error) {
		locale = req.URL.Query().Get("locale")
		country = req.URL.Query().Get("country")
		return httpmock.NewStringResponse(200, `{"items":[],"skip":0,"take":500,"count":0,"total":0}`), nil
	})

	report, err := newTestScraper(t, cfg, transport, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "DE", report.Locale)
	assert.Equal(t, "de-DE", locale)
	assert.Equal(t, "de", country)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Search.Locale = "XX"
	_, err := New(cfg)
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncPage()
		m.IncOutcome("saved")
		m.IncRetry()
		m.ObserveDownload(time.Second, 10)
		m.IncError("network")
	})
}

func TestRunWritesCardMetadata(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Metadata = true
	cfg.Search.Limit = 4
	catalog := &catalogResponder{total: 3}

	require.NoError(t, os.MkdirAll(cfg.Output.SaveDirectory, 0o755))
	orphan := filepath.Join(cfg.Output.SaveDirectory, "Old Recipe.pdf"+metadata.Ext)
	require.NoError(t, os.WriteFile(orphan, []byte("{}"), 0o644))

	report, err := newTestScraper(t, cfg, catalogTransport(catalog), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Summary.Saved)

	assert.NoFileExists(t, orphan)
	data, err := os.ReadFile(metadata.SidecarPath(filepath.Join(cfg.Output.SaveDirectory, "Recipe 1.pdf")))
	require.NoError(t, err)
	var meta metadata.CardMetadata
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "1", meta.ID)
	assert.Equal(t, "https://cdn.test/1.pdf", meta.CardLink)
	assert.Equal(t, "US", meta.Locale)
	assert.EqualValues(t, len("%PDF"), meta.FileSize)
}

func TestRunCancelledDuringRetryRedoesPage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.Limit = 4
	catalog := &catalogResponder{total: 4}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, siteURL, httpmock.NewStringResponder(200, sitePage))
	transport.RegisterResponder(http.MethodGet, searchPattern, catalog.respond)
	for _, i := range []int{0, 2, 3} {
		transport.RegisterResponder(http.MethodGet, fmt.Sprintf("https://cdn.test/%d.pdf", i), httpmock.NewBytesResponder(200, []byte("%PDF")))
	}
	transport.RegisterResponder(http.MethodGet, "https://cdn.test/1.pdf", func(*http.Request) (*http.Response, error) {
		cancel()
		return nil, syscall.ECONNRESET
	})

	report, err := newTestScraper(t, cfg, transport, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, report.Summary.Saved)
	assert.Zero(t, report.Summary.Failed)

	cps, err := checkpoint.Open(cfg.Output.SaveDirectory, logger.NewTestLogger())
	require.NoError(t, err)
	cp, err := cps.Load("US")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 0, cp.NextOffset, "the interrupted page is redone")
	require.NoError(t, cps.Close())

	cfg.Output.Resume = true
	report, err = newTestScraper(t, cfg, catalogTransport(&catalogResponder{total: 4}), nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Resumed)
	assert.Equal(t, 1, report.Summary.Saved)
	assert.Equal(t, 3, report.Summary.Existing)
	assert.Len(t, pdfFiles(t, cfg.Output.SaveDirectory), 4)
}

func TestRunResumeWithoutCheckpointStartsOver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.Limit = 4
	cfg.Output.Resume = true
	catalog := &catalogResponder{total: 3}

	log := logger.NewTestLogger()
	s, err := New(cfg, WithHTTPTransport(catalogTransport(catalog)), WithLogger(log))
	require.NoError(t, err)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Resumed)
	assert.Equal(t, 0, catalog.requested()[0])
	assert.True(t, log.HasMessage("No checkpoint to resume from, starting at the first page"))
}

func TestNewRejectsResumeWithoutCheckpoints(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Resume = true
	cfg.Output.Checkpoint = false

	_, err := New(cfg)
	assert.ErrorContains(t, err, "resume requires checkpoints")
}
