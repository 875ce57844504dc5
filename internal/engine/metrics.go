package engine

import (
	"sync/atomic"
	"time"

	"github.com/lazypower/reactions/internal/reactions"
)

// Snapshot is the UI-facing metrics view. It reflects the last committed
// state and may lag a mutation in flight.
type Snapshot struct {
	TotalReactions      int     `json:"total_reactions"`
	TotalMessages       int     `json:"total_messages"`
	MemoryEstimateBytes int64   `json:"memory_estimate_bytes"`
	CircuitBreakerState string  `json:"circuit_breaker_state"`
	RecentEventRate     float64 `json:"recent_event_rate"` // committed mutations per minute, last 60s
}

const windowSeconds = 60

// eventWindow counts events in one-second buckets over the last minute.
// Writers are serialized by the store's mutation lock; readers never block.
type eventWindow struct {
	buckets [windowSeconds]struct {
		sec atomic.Int64
		n   atomic.Int64
	}
}

func (w *eventWindow) record(t time.Time) {
	sec := t.Unix()
	b := &w.buckets[bucketIndex(sec)]
	if b.sec.Load() != sec {
		b.n.Store(0)
		b.sec.Store(sec)
	}
	b.n.Add(1)
}

// perMinute returns the number of events recorded in the 60 seconds up to t.
func (w *eventWindow) perMinute(t time.Time) float64 {
	now := t.Unix()
	var total int64
	for i := range w.buckets {
		b := &w.buckets[i]
		sec := b.sec.Load()
		if sec > now-windowSeconds && sec <= now {
			total += b.n.Load()
		}
	}
	return float64(total)
}

func bucketIndex(sec int64) int {
	i := sec % windowSeconds
	if i < 0 {
		i += windowSeconds
	}
	return int(i)
}

// Metrics aggregates the committed state. It never blocks on a mutation.
func (s *ReactionStore) Metrics() Snapshot {
	cur := s.load()
	return Snapshot{
		TotalReactions:      cur.TotalReactions(),
		TotalMessages:       len(cur),
		MemoryEstimateBytes: reactions.MemoryEstimate(cur),
		CircuitBreakerState: s.breaker.State().String(),
		RecentEventRate:     s.events.perMinute(s.now()),
	}
}
