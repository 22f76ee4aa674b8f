package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for one scraper run.
type Metrics struct {
	Registry            *prometheus.Registry
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     prometheus.Histogram
	RetriesTotal        prometheus.Counter
	CategoriesTotal     *prometheus.CounterVec
	FieldsResolvedTotal *prometheus.CounterVec
	ErrorsTotal         *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mag_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mag_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mag_retries_total",
			Help: "Total number of retry attempts performed.",
		},
	)
	categories := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mag_categories_total",
			Help: "Market categories processed, by result.",
		},
		[]string{"result"},
	)
	fieldsResolved := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mag_dashboard_fields_resolved_total",
			Help: "Dashboard fields resolved, by extraction strategy.",
		},
		[]string{"strategy"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mag_errors_total",
			Help: "Total number of scraper errors by failure kind.",
		},
		[]string{"kind"},
	)

	registry.MustRegister(requests, requestDuration, retries, categories, fieldsResolved, errorsTotal)

	return &Metrics{
		Registry:            registry,
		RequestsTotal:       requests,
		RequestDuration:     requestDuration,
		RetriesTotal:        retries,
		CategoriesTotal:     categories,
		FieldsResolvedTotal: fieldsResolved,
		ErrorsTotal:         errorsTotal,
	}
}

// IncRequest increments the requests counter for an outcome label.
func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncCategory increments the categories counter for a result label.
func (m *Metrics) IncCategory(result string) {
	if m == nil {
		return
	}
	m.CategoriesTotal.WithLabelValues(result).Inc()
}

// IncFieldResolved increments the resolved-fields counter for a strategy.
func (m *Metrics) IncFieldResolved(strategy string) {
	if m == nil {
		return
	}
	m.FieldsResolvedTotal.WithLabelValues(strategy).Inc()
}

// IncError increments the errors counter for a failure kind.
func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}
