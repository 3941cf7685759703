package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricPrefix = "coldstore_"

var (
	ContractsRegisteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "contracts_registered_total",
		Help: "Total number of storage contracts registered.",
	},
		[]string{"class"},
	)

	ContractsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "contracts_completed_total",
		Help: "Total number of storage contracts fully withdrawn.",
	},
		[]string{"class"},
	)

	WithdrawalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "withdrawals_total",
		Help: "Total number of withdrawals recorded in the ledger.",
	},
		[]string{"class"},
	)

	BilledAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "billed_amount_total",
		Help: "Sum of bill amounts of recorded withdrawals.",
	},
		[]string{"class"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	SnapshotSaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    metricPrefix + "snapshot_save_duration_seconds",
		Help:    "Duration of persisting the ledger snapshot.",
		Buckets: prometheus.DefBuckets,
	})

	ActiveContracts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: metricPrefix + "active_contracts",
		Help: "Current number of active storage contracts.",
	})
)
