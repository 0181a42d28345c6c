package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a crawl. All methods are safe on
// a nil *Metrics.
type Metrics struct {
	Registry         *prometheus.Registry
	PagesTotal       prometheus.Counter
	CardsTotal       *prometheus.CounterVec
	RetriesTotal     prometheus.Counter
	DownloadDuration prometheus.Histogram
	DownloadBytes    prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recipecards_pages_total",
			Help: "Search result pages processed.",
		},
	)
	cards := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipecards_cards_total",
			Help: "Recipe items handled, by outcome.",
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recipecards_download_retries_total",
			Help: "Card download retries scheduled.",
		},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recipecards_download_duration_seconds",
			Help:    "Time to fetch a saved card, retries included.",
			Buckets: prometheus.DefBuckets,
		},
	)
	bytes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recipecards_download_bytes_total",
			Help: "Bytes of card data saved.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipecards_errors_total",
			Help: "Errors that ended a crawl, by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(pages, cards, retries, duration, bytes, errorsTotal)

	return &Metrics{
		Registry:         registry,
		PagesTotal:       pages,
		CardsTotal:       cards,
		RetriesTotal:     retries,
		DownloadDuration: duration,
		DownloadBytes:    bytes,
		ErrorsTotal:      errorsTotal,
	}
}

// IncPage increments the pages counter.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncOutcome counts one item with the given outcome.
func (m *Metrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.CardsTotal.WithLabelValues(outcome).Inc()
}

// IncRetry increments the retries counter.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// ObserveDownload records a saved card's fetch time and size.
func (m *Metrics) ObserveDownload(d time.Duration, size int) {
	if m == nil {
		return
	}
	m.DownloadDuration.Observe(d.Seconds())
	m.DownloadBytes.Add(float64(size))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
