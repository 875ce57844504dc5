// Package telemetry exports reaction store metrics to Prometheus.
package telemetry

import (
	"github.com/lazypower/reactions/internal/breaker"
	"github.com/lazypower/reactions/internal/engine"
	"github.com/prometheus/client_golang/prometheus"
)

// Source is what the collector reads on every scrape.
type Source interface {
	GetMetrics() engine.Snapshot
}

// BreakerSource exposes breaker counters.
type BreakerSource interface {
	Stats() breaker.Stats
}

var (
	reactionsDesc = prometheus.NewDesc("reactions_total_reactions",
		"Sum of all reaction counts currently tracked.", nil, nil)
	messagesDesc = prometheus.NewDesc("reactions_tracked_messages",
		"Messages with at least one reaction.", nil, nil)
	memoryDesc = prometheus.NewDesc("reactions_memory_estimate_bytes",
		"Linear estimate of memory held by reaction state.", nil, nil)
	rateDesc = prometheus.NewDesc("reactions_recent_events_per_minute",
		"Committed mutations over the last 60 seconds.", nil, nil)
	breakerStateDesc = prometheus.NewDesc("reactions_circuit_breaker_state",
		"1 for the current breaker state, 0 otherwise.", []string{"state"}, nil)
	breakerFailuresDesc = prometheus.NewDesc("reactions_persist_failures_total",
		"Backend operations that failed.", nil, nil)
	breakerRejectionsDesc = prometheus.NewDesc("reactions_persist_rejections_total",
		"Backend operations rejected by the open breaker.", nil, nil)
)

var breakerStates = []string{
	breaker.Closed.String(),
	breaker.Open.String(),
	breaker.HalfOpen.String(),
}

// Collector is a prometheus.Collector over an engine. Toggle and eviction
// counters are fed by subscribing to the engine.
type Collector struct {
	src     Source
	breaker BreakerSource

	toggles   *prometheus.CounterVec
	evictions prometheus.Counter
}

// NewCollector builds a collector reading src and b.
func NewCollector(src Source, b BreakerSource) *Collector {
	return &Collector{
		src:     src,
		breaker: b,
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reactions_toggles_total",
			Help: "Committed toggles by direction.",
		}, []string{"direction"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reactions_evictions_total",
			Help: "Reactions and messages removed by cleanup.",
		}),
	}
}

// Observe records a committed mutation. Pass it to Engine.Subscribe.
func (c *Collector) Observe(ev engine.Event) {
	if ev.Kind == engine.EventToggle {
		direction := "remove"
		if ev.Added {
			direction = "add"
		}
		c.toggles.WithLabelValues(direction).Inc()
	}
	if n := len(ev.Evicted); n > 0 {
		c.evictions.Add(float64(n))
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- reactionsDesc
	ch <- messagesDesc
	ch <- memoryDesc
	ch <- rateDesc
	ch <- breakerStateDesc
	ch <- breakerFailuresDesc
	ch <- breakerRejectionsDesc
	c.toggles.Describe(ch)
	c.evictions.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.src.GetMetrics()
	ch <- prometheus.MustNewConstMetric(reactionsDesc, prometheus.GaugeValue, float64(m.TotalReactions))
	ch <- prometheus.MustNewConstMetric(messagesDesc, prometheus.GaugeValue, float64(m.TotalMessages))
	ch <- prometheus.MustNewConstMetric(memoryDesc, prometheus.GaugeValue, float64(m.MemoryEstimateBytes))
	ch <- prometheus.MustNewConstMetric(rateDesc, prometheus.GaugeValue, m.RecentEventRate)

	for _, state := range breakerStates {
		v := 0.0
		if state == m.CircuitBreakerState {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(breakerStateDesc, prometheus.GaugeValue, v, state)
	}

	s := c.breaker.Stats()
	ch <- prometheus.MustNewConstMetric(breakerFailuresDesc, prometheus.CounterValue, float64(s.TotalFailures))
	ch <- prometheus.MustNewConstMetric(breakerRejectionsDesc, prometheus.CounterValue, float64(s.TotalRejections))

	c.toggles.Collect(ch)
	c.evictions.Collect(ch)
}
