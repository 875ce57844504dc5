package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lazypower/reactions/internal/breaker"
	"github.com/lazypower/reactions/internal/policy"
	"github.com/lazypower/reactions/internal/reactions"
	"github.com/lazypower/reactions/internal/store"
	"golang.org/x/sync/semaphore"
)

// StateKey is the backend key holding the serialized reaction state.
const StateKey = "reactions/state/v1"

// ReactionStore owns the canonical reaction state and enforces the policy
// on every mutation.
//
// Mutations are serialized by a weight-1 semaphore and published
// copy-on-write, so readers load the last committed state without locking.
// Every backend call goes through the breaker.
type ReactionStore struct {
	policy  policy.Policy
	backend store.Backend
	breaker *breaker.Breaker
	now     func() time.Time
	timeout time.Duration
	logger  *slog.Logger

	sem    *semaphore.Weighted
	state  atomic.Pointer[reactions.State]
	events *eventWindow

	obsMu     sync.Mutex
	observers map[int]func(Event)
	nextObs   int
}

// EventKind says what kind of committed mutation an Event reports.
type EventKind string

const (
	EventToggle  EventKind = "toggle"
	EventCleanup EventKind = "cleanup"
	EventRestore EventKind = "restore"
)

// Event describes a committed mutation.
type Event struct {
	Kind      EventKind
	MessageID string
	Emoji     string
	UserID    string
	Added     bool     // toggle only: true for add, false for remove
	Evicted   []string // reactions ("message/emoji") or messages removed by eviction
	At        time.Time
}

func newReactionStore(p policy.Policy, backend store.Backend, br *breaker.Breaker, opts Options) *ReactionStore {
	s := &ReactionStore{
		policy:    p,
		backend:   backend,
		breaker:   br,
		now:       opts.Now,
		timeout:   opts.BackendTimeout,
		logger:    opts.Logger,
		sem:       semaphore.NewWeighted(1),
		events:    &eventWindow{},
		observers: make(map[int]func(Event)),
	}
	empty := reactions.State{}
	s.state.Store(&empty)
	return s
}

func (s *ReactionStore) load() reactions.State {
	return *s.state.Load()
}

func (s *ReactionStore) publish(next reactions.State) {
	s.state.Store(&next)
}

// Get returns a copy of the reactions on messageID. ok is false when the
// message has none.
func (s *ReactionStore) Get(messageID string) (map[string]reactions.Entry, bool) {
	m := s.load()[messageID]
	if m == nil {
		return nil, false
	}
	return m.Snapshot(), true
}

// Toggle adds or removes user's emoji reaction on messageID. It returns false
// without changing anything when the add would exceed a bound.
//
// Once the mutation lock is held, the outcome is decided and persisted
// whether or not ctx is canceled; cancellation only stops the wait, and a
// caller that stops waiting gets false with ctx's error. A persistence error
// on a committed toggle comes back with true.
func (s *ReactionStore) Toggle(ctx context.Context, messageID, emoji string, user reactions.User) (bool, error) {
	ev, err := s.mutate(ctx, func() *Event {
		return s.applyToggle(messageID, emoji, user)
	})
	return ev != nil, err
}

// Cleanup trims oversized messages and then drops the oldest messages until
// fewer than target remain. Returns the number of reactions and messages
// evicted.
func (s *ReactionStore) Cleanup(ctx context.Context, target int) (int, error) {
	ev, err := s.mutate(ctx, func() *Event {
		return s.applyCleanup(target)
	})
	if ev == nil {
		return 0, err
	}
	return len(ev.Evicted), err
}

type outcome struct {
	ev  *Event
	err error
}

// mutate runs apply under the mutation lock, persists when apply returns an
// event, then notifies observers. It returns the committed event, or nil
// when nothing changed or the caller stopped waiting first.
func (s *ReactionStore) mutate(ctx context.Context, apply func() *Event) (*Event, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	done := make(chan outcome, 1)
	go func() {
		ev := apply()
		var err error
		if ev != nil {
			s.events.record(s.now())
			err = s.persist(context.WithoutCancel(ctx))
		}
		s.sem.Release(1)

		if ev != nil {
			s.notify(*ev)
		}
		done <- outcome{ev: ev, err: err}
	}()

	select {
	case out := <-done:
		return out.ev, out.err
	case <-ctx.Done():
		// Prefer the outcome when it is already available.
		select {
		case out := <-done:
			return out.ev, out.err
		default:
			return nil, ctx.Err()
		}
	}
}

func (s *ReactionStore) applyToggle(messageID, emoji string, user reactions.User) *Event {
	cur := s.load()
	now := s.now()
	msg := cur[messageID]
	entry := msg.Entry(emoji)
	ev := &Event{Kind: EventToggle, MessageID: messageID, Emoji: emoji, UserID: user.ID, At: now}

	if entry != nil {
		if i := entry.IndexOf(user.ID); i >= 0 {
			next := entry.WithoutUser(i, now, s.policy)
			s.publish(cur.With(messageID, msg.With(messageID, emoji, next, now)))
			return ev
		}
		if !s.policy.CanAdd(entry.Count) {
			return nil
		}
	}

	if entry == nil {
		if s.policy.ExceedsCleanupTrigger(msg.Len() + 1) {
			trimmed, evicted := CleanupMessage(msg, s.policy.RetentionCount()-1, s.policy)
			for _, e := range evicted {
				ev.Evicted = append(ev.Evicted, messageID+"/"+e)
			}
			if len(evicted) > 0 {
				s.logger.Info("cleanup: trimmed message", "message", messageID, "evicted", len(evicted), "kept", trimmed.Len())
			}
			msg = trimmed
		}
		if msg.Len()+1 > s.policy.MaxReactionsPerMessage {
			return nil
		}
		if cur[messageID] == nil && s.policy.ExceedsWatermark(len(cur)+1) {
			var dropped []string
			cur, dropped = CleanupGlobal(cur, s.policy.GlobalTarget()-1)
			ev.Evicted = append(ev.Evicted, dropped...)
			s.logger.Info("cleanup: watermark crossed", "evicted_messages", len(dropped), "remaining", len(cur))
		}
	}

	next := entry.WithUser(emoji, user, now, s.policy)
	s.publish(cur.With(messageID, msg.With(messageID, emoji, next, now)))
	ev.Added = true
	return ev
}

func (s *ReactionStore) applyCleanup(target int) *Event {
	cur := s.load()
	next, trimmed := trimOversized(cur, s.policy.CleanupTrigger(), s.policy.RetentionCount(), s.policy)
	next, dropped := CleanupGlobal(next, target)
	if trimmed == 0 && len(dropped) == 0 {
		return nil
	}
	s.publish(next)
	s.logger.Info("cleanup: global pass", "trimmed_reactions", trimmed, "evicted_messages", len(dropped), "remaining", len(next))
	return &Event{Kind: EventCleanup, Evicted: dropped, At: s.now()}
}

// persist writes the committed state through the breaker. An empty state
// removes the key.
func (s *ReactionStore) persist(ctx context.Context) error {
	cur := s.load()
	data, err := reactions.Encode(cur, s.now())
	if err != nil {
		return err
	}

	err = s.breaker.Do(ctx, "persist", func(ctx context.Context) error {
		return s.withTimeout(ctx, func(ctx context.Context) error {
			if len(cur) == 0 {
				return s.backend.Remove(ctx, StateKey)
			}
			return s.backend.Set(ctx, StateKey, string(data))
		})
	})
	if err != nil {
		s.logger.Warn("persist: state not saved", "error", err, "breaker", s.breaker.State().String())
	}
	return err
}

// Restore loads persisted state through the breaker and replaces the
// in-memory state. Entries that violate the policy are repaired or evicted.
func (s *ReactionStore) Restore(ctx context.Context) (int, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	n, err := s.restoreLocked(ctx)
	s.sem.Release(1)
	if err != nil {
		return 0, err
	}

	s.notify(Event{Kind: EventRestore, At: s.now()})
	return n, nil
}

func (s *ReactionStore) restoreLocked(ctx context.Context) (int, error) {
	var raw string
	var found bool
	err := s.breaker.Do(ctx, "restore", func(ctx context.Context) error {
		return s.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			raw, found, err = s.backend.Get(ctx, StateKey)
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	state, repaired, err := reactions.Decode([]byte(raw), s.policy.MaxUsersPerReaction)
	if err != nil {
		return 0, fmt.Errorf("restore: %w", err)
	}
	state, trimmed := trimOversized(state, s.policy.MaxReactionsPerMessage, s.policy.RetentionCount(), s.policy)
	var dropped []string
	if s.policy.ExceedsWatermark(len(state)) {
		state, dropped = CleanupGlobal(state, s.policy.GlobalTarget())
	}

	s.publish(state)
	if repaired+trimmed+len(dropped) > 0 {
		s.logger.Warn("restore: repaired persisted state", "repaired", repaired, "trimmed", trimmed, "evicted_messages", len(dropped))
		// The repaired state replaces the stored one. A failed write is
		// logged by persist and retried on the next mutation.
		s.persist(context.WithoutCancel(ctx))
	}
	return len(state), nil
}

// withTimeout bounds a backend call. A backend that ignores ctx still
// returns to the caller once the deadline passes.
func (s *ReactionStore) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if s.timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("backend timeout after %v: %w", s.timeout, ctx.Err())
	}
}

// Subscribe registers fn to run after every committed mutation. The
// returned function unregisters it.
func (s *ReactionStore) Subscribe(fn func(Event)) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *ReactionStore) notify(ev Event) {
	s.obsMu.Lock()
	fns := make([]func(Event), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
