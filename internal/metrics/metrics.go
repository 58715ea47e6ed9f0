package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hoursd"

var (
	once sync.Once

	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Count of per-business reconciliations by result.",
		},
		[]string{"result"},
	)

	availabilityUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_updates_total",
			Help:      "Count of open-flag writes by what caused them.",
		},
		[]string{"source"},
	)

	toggleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toggle_total",
			Help:      "Count of manual toggles by result.",
		},
		[]string{"result"},
	)

	overridesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overrides_expired_total",
			Help:      "Count of overrides cleared after reaching their expiry.",
		},
	)

	storeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Count of failed store operations.",
		},
		[]string{"op"},
	)

	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time to reconcile every active business once.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5, 10},
		},
	)

	configReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reload_total",
			Help:      "Count of businesses config reloads by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reconcileTotal, availabilityUpdates, toggleTotal, overridesExpired,
			storeErrors, tickDuration, configReloads, httpRequests,
		)
	})
}

func IncReconcile(result string) {
	reconcileTotal.WithLabelValues(result).Inc()
}

func IncAvailabilityUpdate(source string) {
	availabilityUpdates.WithLabelValues(source).Inc()
}

func IncToggle(result string) {
	toggleTotal.WithLabelValues(result).Inc()
}

func IncOverrideExpired() {
	overridesExpired.Inc()
}

func IncStoreError(op string) {
	storeErrors.WithLabelValues(op).Inc()
}

func ObserveTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncConfigReload(result string) {
	configReloads.WithLabelValues(result).Inc()
}
