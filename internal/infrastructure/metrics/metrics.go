package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/mpay/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Payment metrics
	PaymentsCreated prometheus.Counter
	PaymentDuration prometheus.Histogram
	PaymentAmount   prometheus.Histogram
	PaymentErrors   *prometheus.CounterVec

	// Standing order metrics
	OccurrencesMaterialized prometheus.Counter
	OrdersExhausted         prometheus.Counter
	OrderFailures           *prometheus.CounterVec
	RunDuration             prometheus.Histogram

	// Consistency metrics
	Violations    *prometheus.CounterVec
	CheckDuration prometheus.Histogram

	// Retry metrics
	Retries *prometheus.CounterVec

	// Reporting cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// HTTP metrics
	HTTPRequests         *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

// New creates all metrics and registers them with reg.
// A nil reg uses the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		// Payment metrics
		PaymentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "mpay_payments_created_total",
			Help: "Total number of payments recorded",
		}),
		PaymentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mpay_payment_duration_seconds",
			Help:    "Duration of payment operations",
			Buckets: prometheus.DefBuckets,
		}),
		PaymentAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mpay_payment_amount",
			Help:    "Payment amounts",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
		}),
		PaymentErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpay_payment_errors_total",
				Help: "Total number of rejected payments by class",
			},
			[]string{"error_type"},
		),

		// Standing order metrics
		OccurrencesMaterialized: factory.NewCounter(prometheus.CounterOpts{
			Name: "mpay_occurrences_materialized_total",
			Help: "Total number of standing order occurrences turned into transactions",
		}),
		OrdersExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "mpay_orders_exhausted_total",
			Help: "Total number of standing orders that ran out of occurrences",
		}),
		OrderFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpay_order_failures_total",
				Help: "Total number of failed standing order runs by class",
			},
			[]string{"error_type"},
		),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mpay_run_due_duration_seconds",
			Help:    "Duration of a full run over due standing orders",
			Buckets: prometheus.DefBuckets,
		}),

		// Consistency metrics
		Violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpay_consistency_violations_total",
				Help: "Total consistency violations found by code",
			},
			[]string{"code"},
		),
		CheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mpay_check_duration_seconds",
			Help:    "Duration of consistency checks",
			Buckets: prometheus.DefBuckets,
		}),

		// Retry metrics
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpay_db_retries_total",
				Help: "Total retried database operations by PostgreSQL error code",
			},
			[]string{"code"},
		),

		// Reporting cache metrics
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "mpay_balance_cache_hits_total",
			Help: "Total reporting cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "mpay_balance_cache_misses_total",
			Help: "Total reporting cache misses",
		}),

		// HTTP metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
	}
}

// ErrorType returns a low-cardinality label for err.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case domain.IsValidation(err):
		return "validation"
	case domain.IsRetryable(err):
		return "conflict"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
