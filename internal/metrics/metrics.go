package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	clockEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smena",
			Name:      "clock_events_total",
			Help:      "Count of clock operations by operation and result.",
		},
		[]string{"op", "result"},
	)

	commitConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smena",
			Name:      "commit_conflicts_total",
			Help:      "Count of ledger commits lost to a concurrent writer.",
		},
	)

	corrections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smena",
			Name:      "manual_corrections_total",
			Help:      "Count of manual corrections by result.",
		},
		[]string{"result"},
	)

	payrollExports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smena",
			Name:      "payroll_exports_total",
			Help:      "Count of payroll workbook exports by status.",
		},
		[]string{"status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(clockEvents, commitConflicts, corrections, payrollExports)
	})
}

func IncClockEvent(op, result string) {
	clockEvents.WithLabelValues(op, result).Inc()
}

func IncCommitConflict() {
	commitConflicts.Inc()
}

func IncCorrection(result string) {
	corrections.WithLabelValues(result).Inc()
}

func IncPayrollExport(status string) {
	payrollExports.WithLabelValues(status).Inc()
}
