package opstate

import (
	"github.com/prometheus/client_golang/prometheus"
)

// stuckOperationsTotal counts operations FindStuck discovers, labeled by
// operation type, so an operator dashboard can alert on a growing backlog
// before the recovery sweep (C9) catches up.
var stuckOperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_opstate_stuck_operations_total",
		Help: "Operations found stuck (pending/in_progress past their heartbeat deadline) by FindStuck.",
	},
	[]string{"operation_type"},
)

func init() {
	prometheus.MustRegister(stuckOperationsTotal)
}
