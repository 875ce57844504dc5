package engine

// Sacred Cleanup
//
// Per message: when admitting a new emoji would push a message past the
// cleanup trigger, entries are ranked by (popularity desc, last update desc,
// emoji asc) and only the top few survive. Popularity is scored against the
// message's newest entry, so an entry nobody has touched for several
// half-lives loses to a fresh one with fewer users. Retention is well under the hard
// limit so the next add does not trigger another pass.
//
// Global: when too many messages are tracked, messages are ranked by last
// update (oldest first, ties by ID) and the oldest are dropped until the
// count is below the target.
//
// Both passes are pure functions of their input. Running either twice with
// no mutation in between changes nothing.

import (
	"sort"
	"time"

	"github.com/lazypower/reactions/internal/policy"
	"github.com/lazypower/reactions/internal/reactions"
)

// CleanupMessage keeps the top keep entries of m and returns the trimmed
// message and the evicted emojis. When m already fits it is returned as is.
func CleanupMessage(m *reactions.Message, keep int, p policy.Policy) (*reactions.Message, []string) {
	if keep < 0 {
		keep = 0
	}
	if m.Len() <= keep {
		return m, nil
	}

	ranked := make([]*reactions.Entry, 0, len(m.Reactions))
	var ref time.Time
	for _, e := range m.Reactions {
		ranked = append(ranked, e)
		if e.LastUpdated.After(ref) {
			ref = e.LastUpdated
		}
	}
	score := make(map[string]float64, len(ranked))
	for _, e := range ranked {
		score[e.Emoji] = reactions.Popularity(e.Count, e.LastUpdated, ref, p)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if sa, sb := score[a.Emoji], score[b.Emoji]; sa != sb {
			return sa > sb
		}
		if !a.LastUpdated.Equal(b.LastUpdated) {
			return a.LastUpdated.After(b.LastUpdated)
		}
		return a.Emoji < b.Emoji
	})

	evicted := make([]string, 0, len(ranked)-keep)
	for _, e := range ranked[keep:] {
		evicted = append(evicted, e.Emoji)
	}
	if keep == 0 {
		return nil, evicted
	}

	out := &reactions.Message{
		ID:          m.ID,
		Reactions:   make(map[string]*reactions.Entry, keep),
		LastUpdated: m.LastUpdated,
	}
	for _, e := range ranked[:keep] {
		out.Reactions[e.Emoji] = e
	}
	return out, evicted
}

// CleanupGlobal drops the least recently updated messages until fewer than
// target remain. Returns the new state and the evicted message IDs.
func CleanupGlobal(s reactions.State, target int) (reactions.State, []string) {
	keep := target - 1
	if keep < 0 {
		keep = 0
	}
	if len(s) <= keep {
		return s, nil
	}

	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s[ids[i]], s[ids[j]]
		if !a.LastUpdated.Equal(b.LastUpdated) {
			return a.LastUpdated.Before(b.LastUpdated)
		}
		return ids[i] < ids[j]
	})

	drop := len(s) - keep
	out := make(reactions.State, keep)
	for _, id := range ids[drop:] {
		out[id] = s[id]
	}
	return out, ids[:drop]
}

// trimOversized applies CleanupMessage to every message past the trigger.
// Used by manual cleanup and state restore.
func trimOversized(s reactions.State, trigger, keep int, p policy.Policy) (reactions.State, int) {
	var out reactions.State
	evicted := 0
	for id, m := range s {
		if m.Len() <= trigger {
			continue
		}
		trimmed, ev := CleanupMessage(m, keep, p)
		if out == nil {
			out = s.With(id, trimmed)
		} else if trimmed == nil {
			delete(out, id)
		} else {
			out[id] = trimmed
		}
		evicted += len(ev)
	}
	if out == nil {
		return s, 0
	}
	return out, evicted
}
