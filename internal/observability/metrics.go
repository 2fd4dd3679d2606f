package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for MarginSettle.
type Metrics struct {
	// --- Settlement operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec

	// --- Live state ---
	OpenPositions prometheus.Gauge
	PendingOrders prometheus.Gauge
	OpenInterest  *prometheus.GaugeVec

	// --- Risk events ---
	Liquidations   *prometheus.CounterVec
	FundingAccrued *prometheus.CounterVec

	// --- Fees ---
	FeesCollected *prometheus.CounterVec

	// --- Internal book ---
	BookErrors *prometheus.CounterVec

	// --- Attestations ---
	AttestationsRejected *prometheus.CounterVec

	// --- Outbound publishing ---
	PublishDrops prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "margin_settle_ops_applied_total",
			Help: "Settlement operations applied",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "margin_settle_ops_rejected_total",
			Help: "Settlement operations rejected, by failure reason",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "margin_settle_op_duration_seconds",
			Help:    "Time to apply a single settlement operation",
			Buckets: opBuckets,
		}, []string{"op"}),

		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "margin_settle_open_positions",
			Help: "Currently open positions",
		}),

		PendingOrders: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "margin_settle_pending_orders",
			Help: "Currently pending limit/stop orders",
		}),

		OpenInterest: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "margin_settle_open_interest",
			Help: "Open interest notional, settlement-asset units",
		}, []string{"pair", "side"}),

		Liquidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "margin_settle_liquidations_total",
			Help: "Positions liquidated",
		}, []string{"pair"}),

		FundingAccrued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "margin_settle_funding_accruals_total",
			Help: "Lazy funding accruals folded into positions",
		}, []string{"pair"}),

		FeesCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "margin_settle_fees_collected_total",
			Help: "Fees collected, settlement-asset units, by component",
		}, []string{"component"}),

		BookErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "margin_settle_book_transfer_errors_total",
			Help: "Failed internal book movements, by settlement leg",
		}, []string{"leg"}),

		AttestationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "margin_settle_attestations_rejected_total",
			Help: "Price attestations rejected, by failure reason",
		}, []string{"reason"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "margin_settle_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "margin_settle_persist_events_written_total",
			Help: "Settlement events written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "margin_settle_persist_batch_size",
			Help:    "Events per Postgres batch write",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "margin_settle_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "margin_settle_persist_errors_total",
			Help: "Postgres write errors",
		}, []string{"kind"}),
	}
}
