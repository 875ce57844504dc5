package reactions

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion is bumped when the persisted layout changes.
const SnapshotVersion = 1

type snapshotJSON struct {
	Version  int                 `json:"version"`
	SavedAt  time.Time           `json:"saved_at"`
	Messages map[string]*Message `json:"messages"`
}

// Encode serializes s for the persistence backend.
func Encode(s State, savedAt time.Time) ([]byte, error) {
	data, err := json.Marshal(snapshotJSON{
		Version:  SnapshotVersion,
		SavedAt:  savedAt,
		Messages: s,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a persisted snapshot and repairs per-entry invariants:
// users are deduplicated in order, Count is recomputed, entries are capped at
// maxUsers and empty entries or messages are dropped. Per-message reaction
// bounds are left to the caller. Returns the number of entries dropped or
// repaired.
func Decode(data []byte, maxUsers int) (State, int, error) {
	var snap snapshotJSON
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, 0, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, 0, fmt.Errorf("decode snapshot: unsupported version %d", snap.Version)
	}

	repaired := 0
	out := make(State, len(snap.Messages))
	for id, m := range snap.Messages {
		if id == "" || m == nil {
			repaired++
			continue
		}
		msg := &Message{ID: id, Reactions: make(map[string]*Entry, len(m.Reactions)), LastUpdated: m.LastUpdated}
		for emoji, e := range m.Reactions {
			if emoji == "" || e == nil {
				repaired++
				continue
			}
			users := dedupeUsers(e.Users)
			if len(users) > maxUsers {
				users = users[:maxUsers]
			}
			if len(users) == 0 {
				repaired++
				continue
			}
			if len(users) != e.Count || len(users) != len(e.Users) || e.Emoji != emoji {
				repaired++
			}
			msg.Reactions[emoji] = &Entry{
				Emoji:       emoji,
				Count:       len(users),
				Users:       users,
				Popularity:  clamp01(e.Popularity),
				LastUpdated: e.LastUpdated,
			}
			if e.LastUpdated.After(msg.LastUpdated) {
				msg.LastUpdated = e.LastUpdated
			}
		}
		if len(msg.Reactions) > 0 {
			out[id] = msg
		}
	}
	return out, repaired, nil
}

func dedupeUsers(users []User) []User {
	seen := make(map[string]bool, len(users))
	out := make([]User, 0, len(users))
	for _, u := range users {
		if u.ID == "" || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, u)
	}
	return out
}
