// Package metrics exposes the simulation driver's prometheus instruments:
// live node count, blocks validated, splits, merges, and messages in
// flight.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the driver's instruments. A nil *Metrics is safe to call
// methods on (they become no-ops), so callers that don't care about
// metrics don't need a conditional at every call site.
type Metrics struct {
	liveNodes      prometheus.Gauge
	validBlocks    prometheus.Counter
	currentBlocks  prometheus.Gauge
	splits         prometheus.Counter
	merges         prometheus.Counter
	messagesQueued prometheus.Gauge
	step           prometheus.Gauge
}

// New builds and registers the driver's metrics with registerer.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		liveNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ewok_live_nodes",
			Help: "Number of nodes currently participating in the simulation",
		}),
		validBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ewok_valid_blocks_total",
			Help: "Cumulative count of blocks that became valid",
		}),
		currentBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ewok_current_blocks",
			Help: "Number of distinct current blocks across all nodes' views",
		}),
		splits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ewok_splits_total",
			Help: "Cumulative count of section splits",
		}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ewok_merges_total",
			Help: "Cumulative count of section merges",
		}),
		messagesQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ewok_messages_queued",
			Help: "Number of messages still in flight in the network model",
		}),
		step: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ewok_step",
			Help: "Current simulation step",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.liveNodes, m.validBlocks, m.currentBlocks,
		m.splits, m.merges, m.messagesQueued, m.step,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) SetLiveNodes(n int) {
	if m == nil {
		return
	}
	m.liveNodes.Set(float64(n))
}

func (m *Metrics) AddValidBlocks(n int) {
	if m == nil {
		return
	}
	m.validBlocks.Add(float64(n))
}

func (m *Metrics) SetCurrentBlocks(n int) {
	if m == nil {
		return
	}
	m.currentBlocks.Set(float64(n))
}

func (m *Metrics) IncSplits() {
	if m == nil {
		return
	}
	m.splits.Inc()
}

func (m *Metrics) IncMerges() {
	if m == nil {
		return
	}
	m.merges.Inc()
}

func (m *Metrics) SetMessagesQueued(n int) {
	if m == nil {
		return
	}
	m.messagesQueued.Set(float64(n))
}

func (m *Metrics) SetStep(step uint64) {
	if m == nil {
		return
	}
	m.step.Set(float64(step))
}
