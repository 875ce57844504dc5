package telemetry

import (
	"strings"
	"testing"

	"github.com/lazypower/reactions/internal/breaker"
	"github.com/lazypower/reactions/internal/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type staticSource engine.Snapshot

func (s staticSource) GetMetrics() engine.Snapshot { return engine.Snapshot(s) }

type staticBreaker breaker.Stats

func (s staticBreaker) Stats() breaker.Stats { return breaker.Stats(s) }

func TestCollectorGauges(t *testing.T) {
	c := NewCollector(
		staticSource{TotalReactions: 7, TotalMessages: 3, MemoryEstimateBytes: 1024, CircuitBreakerState: "OPEN", RecentEventRate: 4},
		staticBreaker{TotalFailures: 3, TotalRejections: 2},
	)

	want := `
# HELP reactions_circuit_breaker_state 1 for the current breaker state, 0 otherwise.
# TYPE reactions_circuit_breaker_state gauge
reactions_circuit_breaker_state{state="CLOSED"} 0
reactions_circuit_breaker_state{state="HALF_OPEN"} 0
reactions_circuit_breaker_state{state="OPEN"} 1
# HELP reactions_total_reactions Sum of all reaction counts currently tracked.
# TYPE reactions_total_reactions gauge
reactions_total_reactions 7
# HELP reactions_tracked_messages Messages with at least one reaction.
# TYPE reactions_tracked_messages gauge
reactions_tracked_messages 3
# HELP reactions_persist_failures_total Backend operations that failed.
# TYPE reactions_persist_failures_total counter
reactions_persist_failures_total 3
`
	err := testutil.CollectAndCompare(c, strings.NewReader(want),
		"reactions_circuit_breaker_state",
		"reactions_total_reactions",
		"reactions_tracked_messages",
		"reactions_persist_failures_total",
	)
	if err != nil {
		t.Error(err)
	}
}

func TestCollectorObserve(t *testing.T) {
	c := NewCollector(staticSource{CircuitBreakerState: "CLOSED"}, staticBreaker{})
	c.Observe(engine.Event{Kind: engine.EventToggle, Added: true})
	c.Observe(engine.Event{Kind: engine.EventToggle, Added: true, Evicted: []string{"m1/a", "m1/b"}})
	c.Observe(engine.Event{Kind: engine.EventToggle})
	c.Observe(engine.Event{Kind: engine.EventCleanup, Evicted: []string{"m9"}})

	if got := testutil.ToFloat64(c.toggles.WithLabelValues("add")); got != 2 {
		t.Errorf("add toggles = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.toggles.WithLabelValues("remove")); got != 1 {
		t.Errorf("remove toggles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.evictions); got != 3 {
		t.Errorf("evictions = %v, want 3", got)
	}
}

func TestCollectorRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(staticSource{CircuitBreakerState: "CLOSED"}, staticBreaker{})
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Errorf("GatherAndCount = %d, %v", n, err)
	}
}
