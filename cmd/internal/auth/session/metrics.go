package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation label values.
const (
	OpCreate  = "create"
	OpLogin   = "login"
	OpRefresh = "refresh"
	OpLogout  = "logout"
	OpDelete  = "delete"
	OpWhoAmI  = "whoami"
)

// OutcomeOK is the outcome label for successful operations; failures use the apperr kind name.
const OutcomeOK = "ok"

// Operations counts lifecycle operations by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Operations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authority_session_operations_total",
		Help: "Total number of session lifecycle operations",
	},
	[]string{"operation", "outcome"},
)

// OperationDuration observes lifecycle operation latency.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "authority_session_operation_duration_seconds",
		Help:    "Session lifecycle operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// RegisterMetrics registers session metrics with reg. Panics on duplicate registration.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Operations)
	reg.MustRegister(OperationDuration)
}

func record(op string, started time.Time, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = kindOf(err).String()
	}
	Operations.WithLabelValues(op, outcome).Inc()
	OperationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
