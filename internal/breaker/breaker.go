// Package breaker isolates the reaction store from a failing persistence
// backend.
//
// The breaker has three states:
//
//   - Closed: operations pass through.
//   - Open: after FailureThreshold consecutive failures, operations are
//     rejected with ErrCircuitOpen and never attempted.
//   - HalfOpen: once Cooldown has elapsed, a single trial operation runs.
//     Success closes the breaker; failure reopens it and restarts the cooldown.
//
// Safe for concurrent use.
package breaker

import (
	"context"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// String returns the state name shown in metrics and health output.
func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before a trial is allowed.
	Cooldown time.Duration

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Stats is a point-in-time view of the breaker.
type Stats struct {
	State           string    `json:"state"`
	FailureCount    int       `json:"failure_count"`
	LastFailureAt   time.Time `json:"last_failure_at,omitempty"`
	TotalCalls      int64     `json:"total_calls"`
	TotalFailures   int64     `json:"total_failures"`
	TotalRejections int64     `json:"total_rejections"`
}

// Breaker wraps persistence operations.
type Breaker struct {
	cfg Config

	mu            sync.Mutex
	state         State
	failureCount  int
	lastFailureAt time.Time
	openedAt      time.Time
	trialActive   bool

	totalCalls      int64
	totalFailures   int64
	totalRejections int64
}

// New creates a closed breaker.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg, state: Closed}
}

// State returns the current state, promoting Open to HalfOpen when the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state
}

// maybeHalfOpen must be called with mu held.
func (b *Breaker) maybeHalfOpen() {
	if b.state == Open && b.cfg.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.state = HalfOpen
	}
}

// allow decides whether an operation may run. trial is true when the caller
// holds the single HalfOpen slot.
func (b *Breaker) allow(op string) (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	b.maybeHalfOpen()

	switch b.state {
	case Closed:
		return false, nil
	case HalfOpen:
		if b.trialActive {
			b.totalRejections++
			return false, &OpenError{Op: op, RetryAt: b.cfg.Now()}
		}
		b.trialActive = true
		return true, nil
	default:
		b.totalRejections++
		return false, &OpenError{Op: op, RetryAt: b.openedAt.Add(b.cfg.Cooldown)}
	}
}

func (b *Breaker) recordSuccess(trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialActive = false
	}
	b.failureCount = 0
	if b.state == HalfOpen {
		b.state = Closed
	}
}

func (b *Breaker) recordFailure(trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.cfg.Now()
	if trial {
		b.trialActive = false
	}
	b.totalFailures++
	b.failureCount++
	b.lastFailureAt = now

	switch b.state {
	case Closed:
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = Open
			b.openedAt = now
		}
	case HalfOpen:
		b.state = Open
		b.openedAt = now
	}
}

// Do runs fn under breaker protection. When the breaker is open it returns
// an *OpenError without calling fn. A failing fn is counted and its error is
// returned wrapped in a *PersistenceError.
func (b *Breaker) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	trial, err := b.allow(op)
	if err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		b.recordFailure(trial)
		return &PersistenceError{Op: op, Err: err}
	}
	b.recordSuccess(trial)
	return nil
}

// Stats returns breaker counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()

	return Stats{
		State:           b.state.String(),
		FailureCount:    b.failureCount,
		LastFailureAt:   b.lastFailureAt,
		TotalCalls:      b.totalCalls,
		TotalFailures:   b.totalFailures,
		TotalRejections: b.totalRejections,
	}
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.failureCount = 0
	b.trialActive = false
	b.openedAt = time.Time{}
}
