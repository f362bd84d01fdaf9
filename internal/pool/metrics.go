package pool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics for the pool.
type Metrics struct {
	transfersTotal     *prometheus.CounterVec
	bootstrapTotal     *prometheus.CounterVec
	payoutRejections   prometheus.Counter
	trackedSupply      *prometheus.GaugeVec
	invocationDuration prometheus.Histogram
}

// NewMetrics creates the pool metrics and registers them when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_transfers_total",
			Help: "Incoming transfers handled by the pool, labeled by outcome.",
		}, []string{"outcome"}),
		bootstrapTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_bootstrap_total",
			Help: "Bootstrap attempts, labeled by result.",
		}, []string{"result"}),
		payoutRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pool_payout_rejections_total",
			Help: "Exchanges rolled back because the payout was rejected.",
		}),
		trackedSupply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_tracked_supply",
			Help: "Tracked supply per pool side in base units (float approximation).",
		}, []string{"side", "symbol"}),
		invocationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_invocation_duration_seconds",
			Help:    "Time spent handling one incoming transfer, payout included.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.transfersTotal, m.bootstrapTotal, m.payoutRejections, m.trackedSupply, m.invocationDuration)
	}
	return m
}

func (m *Metrics) observeSupplies(l *ledger) {
	m.trackedSupply.WithLabelValues("a", l.a.token.Symbol).Set(l.a.supply.Float64())
	m.trackedSupply.WithLabelValues("b", l.b.token.Symbol).Set(l.b.supply.Float64())
}
