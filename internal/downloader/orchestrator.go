package downloader

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"recipecards/pkg/config"
	errs "recipecards/pkg/errors"
	"recipecards/pkg/logger"
	"recipecards/pkg/retry"
)

// Outcome labels reported to Metrics.
const (
	OutcomeSaved    = "saved"
	OutcomeExisting = "existing"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// DownloadJob represents a single card to fetch
type DownloadJob struct {
	ID       string
	Name     string
	CardLink string
}

// FileName is the name the card is stored under; the ID stands in for a
// blank recipe name.
func (j DownloadJob) FileName() string {
	if strings.TrimSpace(j.Name) != "" {
		return j.Name
	}
	return j.ID
}

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job      DownloadJob
	Data     []byte
	Err      error
	Existing bool
	Attempts int
	Retries  int
	Duration time.Duration
}

// Summary counts what happened to the items of one or more pages
type Summary struct {
	Saved    int `json:"saved"`
	Skipped  int `json:"skipped"`
	Existing int `json:"existing"`
	Failed   int `json:"failed"`
	Retries  int `json:"retries"`
}

// Add accumulates other into s
func (s *Summary) Add(other Summary) {
	s.Saved += other.Saved
	s.Skipped += other.Skipped
	s.Existing += other.Existing
	s.Failed += other.Failed
	s.Retries += other.Retries
}

// Processed is the number of items accounted for
func (s Summary) Processed() int {
	return s.Saved + s.Skipped + s.Existing + s.Failed
}

// CardFetcher downloads a card by link
type CardFetcher interface {
	DownloadCard(ctx context.Context, link string) ([]byte, error)
}

// CardStore persists cards without overwriting
type CardStore interface {
	Exists(name string) bool
	Save(name string, data []byte) (bool, error)
}

// Metrics receives download instrumentation. A nil Metrics is allowed.
type Metrics interface {
	IncRetry()
	IncOutcome(outcome string)
	ObserveDownload(d time.Duration, size int)
}

// Recorder is told about every card written by the orchestrator.
type Recorder interface {
	Record(job DownloadJob, size int) error
}

type noopMetrics struct{}

func (noopMetrics) IncRetry() {}
func (noopMetrics) IncOutcome(string) {}
func (noopMetrics) ObserveDownload(time.Duration, int) {}

// Options controls batching and retries
type Options struct {
	ParallelDownloads int
	MaxRetryAttempts  int
	RetryDelayMin     time.Duration
	RetryDelayMax     time.Duration
	BatchDelay        time.Duration

	// Backoff overrides the uniform random delay between attempts.
	Backoff retry.BackoffStrategy

	// Recorder, when set, is called after each newly saved card.
	Recorder Recorder
}

// OptionsFromConfig maps download configuration onto Options
func OptionsFromConfig(cfg config.DownloadConfig) Options {
	return Options{
		ParallelDownloads: cfg.ParallelDownloads,
		MaxRetryAttempts:  cfg.MaxRetryAttempts,
		RetryDelayMin:     cfg.RetryDelayMin,
		RetryDelayMax:     cfg.RetryDelayMax,
		BatchDelay:        cfg.BatchDelay,
	}
}

// Orchestrator downloads the cards of one page in sequential batches of
// concurrent requests
type Orchestrator struct {
	client  CardFetcher
	store   CardStore
	opts    Options
	backoff retry.BackoffStrategy
	metrics Metrics
	logger  logger.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(client CardFetcher, store CardStore, opts Options, metrics Metrics, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.GetLogger()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if opts.ParallelDownloads <= 0 {
		opts.ParallelDownloads = 10
	}
	if opts.MaxRetryAttempts < 0 {
		opts.MaxRetryAttempts = 0
	}

	backoff := opts.Backoff
	switch {
	case backoff != nil:
	case opts.RetryDelayMin == opts.RetryDelayMax:
		backoff = &retry.ConstantBackoff{Delay: opts.RetryDelayMin}
	default:
		backoff = retry.NewUniformJitter(opts.RetryDelayMin, opts.RetryDelayMax)
	}

	return &Orchestrator{
		client:  client,
		store:   store,
		opts:    opts,
		backoff: backoff,
		metrics: metrics,
		logger:  log.WithField("component", "downloader"),
	}
}

// DownloadPage fetches and saves the cards of jobs. Items without a card link
// are skipped. Item failures are counted in the summary, never returned; the
// only error is the context's, once no further batch may start or once a
// retry was abandoned because of it. Requests already in flight when ctx is
// cancelled are allowed to finish and their cards are saved.
func (o *Orchestrator) DownloadPage(ctx context.Context, jobs []DownloadJob) (Summary, error) {
	var sum Summary

	downloadable := make([]DownloadJob, 0, len(jobs))
	for _, job := range jobs {
		if job.CardLink == "" {
			sum.Skipped++
			o.metrics.IncOutcome(OutcomeSkipped)
			o.logger.DebugWithFields("Recipe has no card link", map[string]interface{}{
				"name": job.Name,
				"id":   job.ID,
			})
			continue
		}
		downloadable = append(downloadable, job)
	}

	batches := splitBatches(downloadable, o.opts.ParallelDownloads)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if i > 0 {
			if err := retry.Wait(ctx, o.opts.BatchDelay); err != nil {
				return sum, err
			}
		}

		results := o.runBatch(ctx, batch)
		batchSum, interrupted := o.persist(ctx, results)
		sum.Add(batchSum)

		o.logger.InfoWithFields("Batch of recipe card downloads completed", map[string]interface{}{
			"batch":    i + 1,
			"batches":  len(batches),
			"saved":    batchSum.Saved,
			"existing": batchSum.Existing,
			"failed":   batchSum.Failed,
		})

		// A card whose retry was cut short is not failed; the page is
		// incomplete and must be redone.
		if interrupted > 0 {
			return sum, ctx.Err()
		}
	}

	return sum, nil
}

// runBatch downloads every job of the batch concurrently and waits for all
// of them. Each goroutine writes only its own slot.
func (o *Orchestrator) runBatch(ctx context.Context, batch []DownloadJob) []DownloadResult {
	results := make([]DownloadResult, len(batch))

	var g errgroup.Group
	for i, job := range batch {
		i, job := i, job
		g.Go(func() error {
			results[i] = o.fetch(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// fetch downloads one card, retrying transient failures. The request itself
// is detached from ctx cancellation so that it drains; retry delays are not.
func (o *Orchestrator) fetch(ctx context.Context, job DownloadJob) DownloadResult {
	result := DownloadResult{Job: job}
	if o.store.Exists(job.FileName()) {
		result.Existing = true
		return result
	}

	start := time.Now()
	requestCtx := context.WithoutCancel(ctx)
	var retries atomic.Int32

	cfg := retry.DefaultConfig()
	cfg.MaxRetries = o.opts.MaxRetryAttempts
	cfg.Backoff = o.backoff
	cfg.Context = ctx
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retries.Add(1)
		o.metrics.IncRetry()
		o.logger.WarnWithFields("Retrying download", map[string]interface{}{
			"name":    job.Name,
			"attempt": attempt,
			"delay":   delay,
			"error":   err.Error(),
		})
	}

	data, attempts, err := retry.DoWithResult(func() ([]byte, error) {
		return o.client.DownloadCard(requestCtx, job.CardLink)
	}, cfg)

	result.Data = data
	result.Err = err
	result.Attempts = attempts
	result.Retries = int(retries.Load())
	result.Duration = time.Since(start)
	return result
}

// persist saves the successful results of a batch in order and tallies the
// batch. Results abandoned because ctx was cancelled during a retry delay are
// left out of the tally and counted as interrupted. It runs on the calling
// goroutine only.
func (o *Orchestrator) persist(ctx context.Context, results []DownloadResult) (Summary, int) {
	var sum Summary
	interrupted := 0
	for _, r := range results {
		sum.Retries += r.Retries

		switch {
		case r.Existing:
			sum.Existing++
			o.metrics.IncOutcome(OutcomeExisting)

		case r.Err != nil && isInterrupted(ctx, r.Err):
			interrupted++
			o.logger.DebugWithFields("Recipe card download interrupted", map[string]interface{}{
				"name":     r.Job.Name,
				"attempts": r.Attempts,
			})

		case r.Err != nil:
			sum.Failed++
			o.metrics.IncOutcome(OutcomeFailed)
			o.logger.WithError(r.Err).ErrorWithFields("Recipe card download failed", map[string]interface{}{
				"name":       r.Job.Name,
				"link":       r.Job.CardLink,
				"attempts":   r.Attempts,
				"error_type": string(errs.TypeOf(r.Err)),
			})

		default:
			saved, err := o.store.Save(r.Job.FileName(), r.Data)
			switch {
			case err != nil:
				sum.Failed++
				o.metrics.IncOutcome(OutcomeFailed)
				o.logger.WithError(err).ErrorWithFields("Failed to save recipe card", map[string]interface{}{
					"name": r.Job.Name,
				})
			case !saved:
				sum.Existing++
				o.metrics.IncOutcome(OutcomeExisting)
			default:
				sum.Saved++
				o.metrics.IncOutcome(OutcomeSaved)
				o.metrics.ObserveDownload(r.Duration, len(r.Data))
				o.logger.DebugWithFields("Recipe card saved", map[string]interface{}{
					"name":     r.Job.Name,
					"bytes":    len(r.Data),
					"duration": r.Duration,
				})
				if o.opts.Recorder != nil {
					if err := o.opts.Recorder.Record(r.Job, len(r.Data)); err != nil {
						o.logger.WithError(err).WarnWithFields("Failed to record card metadata", map[string]interface{}{
							"name": r.Job.Name,
						})
					}
				}
			}
		}
	}
	return sum, interrupted
}

func isInterrupted(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// splitBatches cuts jobs into consecutive slices of at most size items
func splitBatches(jobs []DownloadJob, size int) [][]DownloadJob {
	if size <= 0 {
		size = 1
	}
	batches := make([][]DownloadJob, 0, (len(jobs)+size-1)/size)
	for start := 0; start < len(jobs); start += size {
		end := min(start+size, len(jobs))
		batches = append(batches, jobs[start:end])
	}
	return batches
}
