package reactions

import "time"

// Message holds the distinct reactions on one message.
type Message struct {
	ID          string            `json:"id"`
	Reactions   map[string]*Entry `json:"reactions"`
	LastUpdated time.Time         `json:"last_updated"`
}

// Len returns the number of distinct reactions.
func (m *Message) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Reactions)
}

// Entry returns the entry for emoji, or nil.
func (m *Message) Entry(emoji string) *Entry {
	if m == nil {
		return nil
	}
	return m.Reactions[emoji]
}

// With returns a copy of m where emoji maps to e. A nil e deletes the emoji.
// The result is nil when no reactions remain. m may be nil.
func (m *Message) With(id, emoji string, e *Entry, now time.Time) *Message {
	out := &Message{ID: id, Reactions: make(map[string]*Entry, m.Len()+1), LastUpdated: now}
	if m != nil {
		for k, v := range m.Reactions {
			out.Reactions[k] = v
		}
	}
	if e == nil {
		delete(out.Reactions, emoji)
	} else {
		out.Reactions[emoji] = e
	}
	if len(out.Reactions) == 0 {
		return nil
	}
	return out
}

// TotalReactions sums entry counts.
func (m *Message) TotalReactions() int {
	total := 0
	if m == nil {
		return total
	}
	for _, e := range m.Reactions {
		total += e.Count
	}
	return total
}

// Snapshot returns deep copies of the entries keyed by emoji.
func (m *Message) Snapshot() map[string]Entry {
	out := make(map[string]Entry, len(m.Reactions))
	for k, e := range m.Reactions {
		out[k] = e.Clone()
	}
	return out
}

// State maps message ID to its reactions. Published states are never
// mutated in place.
type State map[string]*Message

// With returns a shallow copy of s where id maps to m. A nil m deletes id.
func (s State) With(id string, m *Message) State {
	out := make(State, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	if m == nil {
		delete(out, id)
	} else {
		out[id] = m
	}
	return out
}

// TotalReactions sums every entry count in s.
func (s State) TotalReactions() int {
	total := 0
	for _, m := range s {
		total += m.TotalReactions()
	}
	return total
}
