package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CasesCreated      prometheus.Counter
	CasesUpdated      prometheus.Counter
	CheckoutSessions  prometheus.Counter
	PaymentsCompleted prometheus.Counter

	// ExtractDispatches counts dispatch attempts by terminal outcome
	// (queued, failed, not_configured, not_deployed, auth_failed).
	ExtractDispatches *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics against the given
// registerer so tests can use private registries without collisions.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CasesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_cases_created_total",
			Help: "Total number of cases created.",
		}),
		CasesUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_cases_updated_total",
			Help: "Total number of case payload merges.",
		}),
		CheckoutSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_checkout_sessions_created_total",
			Help: "Total number of checkout sessions created.",
		}),
		PaymentsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_payments_completed_total",
			Help: "Total number of payment completion events applied.",
		}),
		ExtractDispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_extract_dispatches_total",
			Help: "Extraction dispatch attempts by outcome.",
		}, []string{"outcome"}),
	}
}
