package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lazypower/reactions/internal/policy"
	"github.com/lazypower/reactions/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errQuota = errors.New("quota exceeded")

// scriptedBackend wraps a Memory backend with failure injection and call
// counting.
type scriptedBackend struct {
	*store.Memory

	mu      sync.Mutex
	failSet bool
	sets    int
	removes int
	entered chan struct{} // receives once per Set when non-nil
	block   chan struct{} // Set waits on it when non-nil, ignoring ctx
	onSet   func()        // runs at the start of every Set when non-nil
}

func newScriptedBackend() *scriptedBackend {
	return &scriptedBackend{Memory: store.NewMemory()}
}

func (b *scriptedBackend) Set(ctx context.Context, key, value string) error {
	b.mu.Lock()
	b.sets++
	fail, entered, block, onSet := b.failSet, b.entered, b.block, b.onSet
	b.mu.Unlock()

	if onSet != nil {
		onSet()
	}
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if fail {
		return errQuota
	}
	return b.Memory.Set(ctx, key, value)
}

func (b *scriptedBackend) Remove(ctx context.Context, key string) error {
	b.mu.Lock()
	b.removes++
	fail := b.failSet
	b.mu.Unlock()
	if fail {
		return errQuota
	}
	return b.Memory.Remove(ctx, key)
}

func (b *scriptedBackend) setFailing(v bool) {
	b.mu.Lock()
	b.failSet = v
	b.mu.Unlock()
}

func (b *scriptedBackend) setCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sets
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine(t *testing.T, p policy.Policy, backend store.Backend) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	e, err := New(p, backend, Options{Logger: quietLogger(), Now: clock.Now, BackendTimeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Stop)
	return e, clock
}

// checkInvariants asserts count == |users| and the per-message bound for
// every committed message.
func checkInvariants(t *testing.T, e *Engine) {
	t.Helper()
	for id, m := range e.Store.load() {
		if m.Len() == 0 {
			t.Errorf("message %s tracked with no reactions", id)
		}
		if m.Len() > e.Policy.MaxReactionsPerMessage {
			t.Errorf("message %s has %d reactions, limit %d", id, m.Len(), e.Policy.MaxReactionsPerMessage)
		}
		for emoji, entry := range m.Reactions {
			if entry.Count != len(entry.Users) {
				t.Errorf("%s/%s: count %d != %d users", id, emoji, entry.Count, len(entry.Users))
			}
			if entry.Count > e.Policy.MaxUsersPerReaction {
				t.Errorf("%s/%s: count %d over limit", id, emoji, entry.Count)
			}
			if entry.Popularity < 0 || entry.Popularity > 1 {
				t.Errorf("%s/%s: popularity %v outside [0,1]", id, emoji, entry.Popularity)
			}
		}
	}
}

func mustToggle(t *testing.T, e *Engine, messageID, emoji, userID string) bool {
	t.Helper()
	ok, err := e.ToggleReaction(context.Background(), messageID, emoji, userID, "name-"+userID)
	if err != nil {
		t.Fatalf("ToggleReaction(%s,%s,%s): %v", messageID, emoji, userID, err)
	}
	checkInvariants(t, e)
	return ok
}

func countOf(e *Engine, messageID, emoji string) int {
	got, ok := e.GetReactionsForMessage(messageID)
	if !ok {
		return 0
	}
	return got[emoji].Count
}

