// Package engine implements the bounded reaction store: the aggregate that
// enforces the policy, the eviction passes, and the Engine facade the chat
// UI talks to.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lazypower/reactions/internal/breaker"
	"github.com/lazypower/reactions/internal/policy"
	"github.com/lazypower/reactions/internal/reactions"
	"github.com/lazypower/reactions/internal/store"
)

// HealthyStatus is the status message while persistence is healthy.
const HealthyStatus = "Sacred Protection: All systems operational"

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	Logger         *slog.Logger
	Now            func() time.Time
	BackendTimeout time.Duration // default 2s; negative disables
}

// Engine is the facade over the reaction store.
type Engine struct {
	Store   *ReactionStore
	Breaker *breaker.Breaker
	Policy  policy.Policy

	logger   *slog.Logger
	cleaning atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an Engine over backend. The policy is validated first.
func New(p policy.Policy, backend store.Backend, opts Options) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BackendTimeout == 0 {
		opts.BackendTimeout = 2 * time.Second
	}

	br := breaker.New(breaker.Config{
		FailureThreshold: p.FailureThreshold,
		Cooldown:         p.Cooldown,
		Now:              opts.Now,
	})
	return &Engine{
		Store:   newReactionStore(p, backend, br, opts),
		Breaker: br,
		Policy:  p,
		logger:  opts.Logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Load restores persisted state. Returns the number of messages restored.
func (e *Engine) Load(ctx context.Context) (int, error) {
	return e.Store.Restore(ctx)
}

// ToggleReaction adds the user's reaction, or removes it if present.
// false with a nil error means a bound rejected the add and nothing changed.
// A *breaker.PersistenceError or *breaker.OpenError means the change is
// committed in memory but was not saved.
func (e *Engine) ToggleReaction(ctx context.Context, messageID, emoji, userID, userName string) (bool, error) {
	req := toggleRequest{MessageID: messageID, Emoji: emoji, UserID: userID, UserName: userName}
	if err := req.validate(); err != nil {
		return false, err
	}
	return e.Store.Toggle(ctx, messageID, emoji, reactions.User{ID: userID, Name: userName})
}

// GetReactionsForMessage returns the reactions on messageID keyed by emoji;
// ok is false when the message has none.
func (e *Engine) GetReactionsForMessage(messageID string) (map[string]reactions.Entry, bool) {
	return e.Store.Get(messageID)
}

// PerformManualCleanup runs a cleanup pass now. It is skipped when the
// periodic pass is already running.
func (e *Engine) PerformManualCleanup(ctx context.Context) error {
	_, err := e.runCleanup(ctx, "manual")
	return err
}

// runCleanup reports whether the pass ran. Only one pass runs at a time.
func (e *Engine) runCleanup(ctx context.Context, trigger string) (bool, error) {
	if !e.cleaning.CompareAndSwap(false, true) {
		e.logger.Info("cleanup: already in progress, skipping", "trigger", trigger)
		return false, nil
	}
	defer e.cleaning.Store(false)

	evicted, err := e.Store.Cleanup(ctx, e.Policy.GlobalTarget())
	if err != nil {
		e.logger.Warn("cleanup: failed", "trigger", trigger, "error", err)
		return true, err
	}
	if evicted > 0 {
		e.logger.Info("cleanup: done", "trigger", trigger, "evicted_messages", evicted)
	}
	return true, nil
}

// StartCleanupTimer runs a cleanup pass every interval until Stop.
func (e *Engine) StartCleanupTimer(interval time.Duration) {
	if interval <= 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				e.runCleanup(ctx, "periodic")
				cancel()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the cleanup timer and waits for it to exit.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// GetMetrics returns the current metrics snapshot.
func (e *Engine) GetMetrics() Snapshot {
	return e.Store.Metrics()
}

// Subscribe registers fn to run after every committed mutation.
func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) {
	return e.Store.Subscribe(fn)
}

// IsHealthy reports whether persistence is operating normally.
func (e *Engine) IsHealthy() bool {
	return e.Breaker.State() == breaker.Closed
}

// StatusMessage describes the protection state for display.
func (e *Engine) StatusMessage() string {
	switch e.Breaker.State() {
	case breaker.Closed:
		return HealthyStatus
	case breaker.HalfOpen:
		return "Sacred Protection: Recovering, testing persistence"
	default:
		return "Sacred Protection: Persistence degraded, reactions kept in memory"
	}
}
