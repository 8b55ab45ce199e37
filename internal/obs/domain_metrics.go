package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts cart store mutations by operation and outcome.
	CartMutationsTotal *prometheus.CounterVec
	// CartStorageFailuresTotal counts cart persistence failures by operation.
	CartStorageFailuresTotal *prometheus.CounterVec
	// CheckoutGateTotal counts checkout gate evaluations by resulting state.
	CheckoutGateTotal *prometheus.CounterVec
	// CheckoutSubmissionsTotal counts checkout submission attempts by outcome.
	CheckoutSubmissionsTotal *prometheus.CounterVec
	// SubmissionTasksTotal counts worker-side processing of submitted orders.
	SubmissionTasksTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by operation and result.",
		}, []string{"op", "result"})
		CartStorageFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_storage_failures_total",
			Help:      "Count of cart persistence failures by operation.",
		}, []string{"op"})
		CheckoutGateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_gate_total",
			Help:      "Count of checkout gate evaluations by state.",
		}, []string{"state"})
		CheckoutSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_submissions_total",
			Help:      "Count of checkout submissions by result.",
		}, []string{"result"})
		SubmissionTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_tasks_total",
			Help:      "Count of processed order submission tasks by result.",
		}, []string{"result"})

		for _, c := range []**prometheus.CounterVec{
			&CartMutationsTotal,
			&CartStorageFailuresTotal,
			&CheckoutGateTotal,
			&CheckoutSubmissionsTotal,
			&SubmissionTasksTotal,
		} {
			target := c
			mustRegisterCollector(reg, *target, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*target = v
				}
			})
		}
	})
}

// ObserveCartMutation records a cart mutation outcome when metrics are enabled.
func ObserveCartMutation(op, result string) {
	inc(CartMutationsTotal, op, result)
}

// ObserveCartStorageFailure records a persistence failure when metrics are enabled.
func ObserveCartStorageFailure(op string) {
	inc(CartStorageFailuresTotal, op)
}

// ObserveCheckoutGate records a gate evaluation when metrics are enabled.
func ObserveCheckoutGate(state string) {
	inc(CheckoutGateTotal, state)
}

// ObserveCheckoutSubmission records a submission outcome when metrics are enabled.
func ObserveCheckoutSubmission(result string) {
	inc(CheckoutSubmissionsTotal, result)
}

// ObserveSubmissionTask records a worker task outcome when metrics are enabled.
func ObserveSubmissionTask(result string) {
	inc(SubmissionTasksTotal, result)
}

func inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
