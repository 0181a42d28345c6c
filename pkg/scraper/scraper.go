package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"recipecards/internal/downloader"
	"recipecards/pkg/checkpoint"
	"recipecards/pkg/config"
	errs "recipecards/pkg/errors"
	"recipecards/pkg/hellofresh"
	"recipecards/pkg/logger"
	"recipecards/pkg/metadata"
	"recipecards/pkg/storage"
)

// Report summarises a crawl
type Report struct {
	Locale      string
	Pages       int
	TotalPages  int
	Total       int
	Resumed     bool
	StartOffset int
	Summary     downloader.Summary
	Duration    time.Duration
}

// Option configures a Scraper
type Option func(*Scraper)

// WithClient replaces the recipe site client.
func WithClient(client CatalogClient) Option {
	return func(s *Scraper) { s.client = client }
}

// WithHTTPTransport routes the default client through rt.
func WithHTTPTransport(rt http.RoundTripper) Option {
	return func(s *Scraper) { s.transport = rt }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Scraper) { s.logger = log }
}

// WithMetrics enables instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

// Scraper runs a complete recipe card crawl
type Scraper struct {
	config    *config.Config
	client    CatalogClient
	transport http.RoundTripper
	metrics   *Metrics
	logger    logger.Logger
}

// New creates a new Scraper instance
func New(cfg *config.Config, opts ...Option) (*Scraper, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Scraper{config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.GetLogger()
	}

	if s.client == nil {
		clientOpts := hellofresh.OptionsFromConfig(cfg)
		clientOpts.Transport = s.transport
		clientOpts.Logger = s.logger
		s.client = hellofresh.NewClient(clientOpts)
	}

	return s, nil
}

// Run crawls the catalog for the configured locale and saves every card
// that is not on disk yet. It stops at the last page, on a fatal error, or
// when ctx is cancelled; the report is returned in every case.
func (s *Scraper) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	cfg := s.config

	locale, err := config.ResolveLocale(cfg.Search.Locale)
	if err != nil {
		return nil, err
	}
	key := strings.ToUpper(strings.TrimSpace(cfg.Search.Locale))
	report := &Report{Locale: key}
	defer func() { report.Duration = time.Since(start) }()

	log := s.logger.WithField("locale", key)

	store, err := storage.NewManager(cfg.Output.SaveDirectory)
	if err != nil {
		return report, s.fatal(err)
	}
	log.InfoWithFields("Save directory ready", map[string]interface{}{
		"dir":           store.OutputDir(),
		"cards_on_disk": store.KnownCount(),
	})

	var cps *checkpoint.Manager
	if cfg.Output.Checkpoint {
		cps, err = checkpoint.Open(cfg.Output.SaveDirectory, log)
		if err != nil {
			return report, s.fatal(err)
		}
		defer cps.Close()
	}

	offset := 0
	switch {
	case !cfg.Output.Resume || cps == nil:
	case !cps.Exists(key):
		log.Info("No checkpoint to resume from, starting at the first page")
	default:
		cp, err := cps.Load(key)
		if err != nil {
			return report, s.fatal(err)
		}
		if cp != nil {
			offset = cp.NextOffset
			report.Resumed = true
			report.StartOffset = offset
			log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"offset": offset,
				"saved":  cp.Saved,
			})
		}
	}

	cred, err := s.client.AcquireCredential(ctx)
	if err != nil {
		return report, s.fatal(fmt.Errorf("acquire credential: %w", err))
	}
	log.Info("API token acquired. Searching recipes.")

	query := hellofresh.QueryFromConfig(cfg.Search, locale, offset)
	pager := hellofresh.NewPaginator(s.client, query, cred, hellofresh.PaginatorOptions{
		CeilPageCount: cfg.Search.CeilPageCount,
	})
	dlOpts := downloader.OptionsFromConfig(cfg.Download)
	if cfg.Output.Metadata {
		if removed, err := metadata.CleanOrphaned(store.OutputDir()); err != nil {
			log.WithError(err).Warn("Failed to clean orphaned card metadata")
		} else if removed > 0 {
			log.WithField("removed", removed).Info("Removed orphaned card metadata")
		}
		dlOpts.Recorder = &metadataRecorder{store: store, locale: key}
	}
	orchestrator := downloader.NewOrchestrator(s.client, store, dlOpts, s.metrics, log)

	for pager.Next(ctx) {
		page := pager.Page()
		if report.Pages == 0 {
			report.Total = page.Total
			report.TotalPages = pager.Pages() + 1
			log.InfoWithFields("Initiating download of recipes", map[string]interface{}{
				"total": page.Total,
				"pages": report.TotalPages,
			})
		}
		report.Pages++
		s.metrics.IncPage()

		log.InfoWithFields(fmt.Sprintf("Page [%d/%d] downloading search results", pager.PageNumber(), report.TotalPages), map[string]interface{}{
			"offset": pager.Query().Offset,
			"items":  len(page.Items),
		})

		sum, err := orchestrator.DownloadPage(ctx, jobsFromItems(page.Items))
		report.Summary.Add(sum)

		next := pager.Query().Next().Offset
		if err != nil {
			// The page is incomplete; a resumed run starts over on it.
			next = pager.Query().Offset
		}
		s.saveCheckpoint(cps, report, pager.Query(), next)

		if err != nil {
			return report, s.fatal(err)
		}

		log.InfoWithFields("Page completed", map[string]interface{}{
			"page":     pager.PageNumber(),
			"saved":    sum.Saved,
			"existing": sum.Existing,
			"skipped":  sum.Skipped,
			"failed":   sum.Failed,
		})
	}

	if err := pager.Err(); err != nil {
		return report, s.fatal(fmt.Errorf("search at offset %d: %w", pager.Query().Offset, err))
	}

	if cps != nil {
		if err := cps.Delete(key); err != nil {
			log.WithError(err).Warn("Failed to clear checkpoint")
		}
	}

	log.InfoWithFields("Recipe card crawl completed", map[string]interface{}{
		"pages":     report.Pages,
		"processed": report.Summary.Processed(),
		"saved":     report.Summary.Saved,
		"existing":  report.Summary.Existing,
		"skipped":   report.Summary.Skipped,
		"failed":    report.Summary.Failed,
		"retries":   report.Summary.Retries,
	})
	return report, nil
}

// saveCheckpoint records progress. Failures are logged and do not stop the
// crawl.
func (s *Scraper) saveCheckpoint(cps *checkpoint.Manager, report *Report, q hellofresh.SearchQuery, nextOffset int) {
	if cps == nil {
		return
	}

	cp, err := cps.Load(report.Locale)
	if err != nil || cp == nil {
		cp = &checkpoint.Checkpoint{Key: report.Locale}
	}
	cp.Query = q.Encode()
	cp.NextOffset = nextOffset
	cp.Total = report.Total
	cp.Pages = report.Pages
	cp.Saved = report.Summary.Saved
	cp.Existing = report.Summary.Existing
	cp.Skipped = report.Summary.Skipped
	cp.Failed = report.Summary.Failed

	if err := cps.Save(cp); err != nil {
		s.logger.WithError(err).Warn("Failed to update checkpoint")
	}
}

// fatal counts and logs an error that ends the crawl.
func (s *Scraper) fatal(err error) error {
	errType := errs.TypeOf(err)
	if errType != errs.ErrorTypeCanceled {
		s.metrics.IncError(string(errType))
		s.logger.WithError(err).ErrorWithFields("Crawl aborted", map[string]interface{}{
			"error_type": string(errType),
		})
	}
	return err
}

// metadataRecorder writes a JSON sidecar next to each saved card.
type metadataRecorder struct {
	store  *storage.Manager
	locale string
}

func (r *metadataRecorder) Record(job downloader.DownloadJob, size int) error {
	path := r.store.Path(job.FileName())
	return metadata.New(job.ID, job.Name, job.CardLink, path, r.locale, int64(size)).Save(path)
}

func jobsFromItems(items []hellofresh.RecipeItem) []downloader.DownloadJob {
	jobs := make([]downloader.DownloadJob, len(items))
	for i, item := range items {
		jobs[i] = downloader.DownloadJob{
			ID:       item.ID,
			Name:     item.Name,
			CardLink: item.CardLink,
		}
	}
	return jobs
}
