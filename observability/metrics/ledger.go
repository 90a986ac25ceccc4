package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"lmcv/core/events"
)

// LedgerMetrics bundles the collectors tracking protocol activity. It
// implements the event emitter interface, so wiring it into the node is
// enough to keep the counters current.
type LedgerMetrics struct {
	eventsTotal  *prometheus.CounterVec
	auctionsOpen prometheus.Gauge
	liquidations prometheus.Counter
	teleports    *prometheus.CounterVec
	totalDebt    prometheus.Gauge
	stableSupply prometheus.Gauge
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

// Ledger returns the lazily-initialised ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lmcv",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Count of ledger events segmented by type.",
			}, []string{"type"}),
			auctionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lmcv",
				Subsystem: "auction",
				Name:      "open",
				Help:      "Number of currently open collateral auctions.",
			}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "lmcv",
				Subsystem: "liquidation",
				Name:      "total",
				Help:      "Count of vault liquidations.",
			}),
			teleports: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lmcv",
				Subsystem: "bridge",
				Name:      "teleports_total",
				Help:      "Count of teleport transfers segmented by direction.",
			}, []string{"direction"}),
			totalDebt: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lmcv",
				Subsystem: "ledger",
				Name:      "normalized_debt",
				Help:      "Total normalized debt across all vaults in whole tokens.",
			}),
			stableSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lmcv",
				Subsystem: "ledger",
				Name:      "stable_supply",
				Help:      "Total stable token supply in whole tokens.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.eventsTotal,
			ledgerRegistry.auctionsOpen,
			ledgerRegistry.liquidations,
			ledgerRegistry.teleports,
			ledgerRegistry.totalDebt,
			ledgerRegistry.stableSupply,
		)
	})
	return ledgerRegistry
}

// Emit implements the event emitter interface.
func (m *LedgerMetrics) Emit(event events.Event) {
	if m == nil || event == nil {
		return
	}
	m.eventsTotal.WithLabelValues(event.EventType()).Inc()
	switch event.(type) {
	case events.Liquidation:
		m.liquidations.Inc()
	case events.AuctionStarted:
		m.auctionsOpen.Inc()
	case events.AuctionSettled:
		m.auctionsOpen.Dec()
	case events.TeleportInitiated:
		m.teleports.WithLabelValues("outbound").Inc()
	case events.TeleportReceived:
		m.teleports.WithLabelValues("inbound").Inc()
	}
}

// SetTotals updates the debt and supply gauges from the ledger globals. Both
// values arrive in Rad and are scaled to whole tokens for display.
func (m *LedgerMetrics) SetTotals(totalDebt, stableSupply *big.Int) {
	if m == nil {
		return
	}
	m.totalDebt.Set(radToFloat(totalDebt))
	m.stableSupply.Set(radToFloat(stableSupply))
}

var radUnit = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(45), nil))

func radToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	scaled := new(big.Float).SetInt(value)
	scaled.Quo(scaled, radUnit)
	out, _ := scaled.Float64()
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0
	}
	return out
}
