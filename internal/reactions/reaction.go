// Package reactions defines the reaction data model.
//
// Values published by the store are immutable: every mutation builds new
// Entry and Message values and shares the untouched ones.
package reactions

import (
	"math"
	"time"

	"github.com/lazypower/reactions/internal/policy"
)

// User is someone who reacted.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entry is the tally for one emoji on one message.
// Count always equals len(Users).
type Entry struct {
	Emoji       string    `json:"emoji"`
	Count       int       `json:"count"`
	Users       []User    `json:"users"`
	Popularity  float64   `json:"popularity"`
	LastUpdated time.Time `json:"last_updated"`
}

// IndexOf returns the position of userID in Users, or -1.
func (e *Entry) IndexOf(userID string) int {
	for i, u := range e.Users {
		if u.ID == userID {
			return i
		}
	}
	return -1
}

// WithUser returns a copy of e with u appended. e may be nil for a new entry.
func (e *Entry) WithUser(emoji string, u User, now time.Time, p policy.Policy) *Entry {
	var users []User
	if e != nil {
		users = make([]User, len(e.Users), len(e.Users)+1)
		copy(users, e.Users)
	}
	users = append(users, u)
	return &Entry{
		Emoji:       emoji,
		Count:       len(users),
		Users:       users,
		Popularity:  Popularity(len(users), now, now, p),
		LastUpdated: now,
	}
}

// WithoutUser returns a copy of e minus the user at index i, or nil when the
// entry becomes empty.
func (e *Entry) WithoutUser(i int, now time.Time, p policy.Policy) *Entry {
	if len(e.Users) <= 1 {
		return nil
	}
	users := make([]User, 0, len(e.Users)-1)
	users = append(users, e.Users[:i]...)
	users = append(users, e.Users[i+1:]...)
	return &Entry{
		Emoji:       e.Emoji,
		Count:       len(users),
		Users:       users,
		Popularity:  Popularity(len(users), now, now, p),
		LastUpdated: now,
	}
}

// Clone returns a deep copy safe to hand to callers.
func (e *Entry) Clone() Entry {
	c := *e
	c.Users = append([]User(nil), e.Users...)
	return c
}

// Popularity scores an entry in [0,1]: a weighted blend of how full the
// reaction is and how recently it changed. Recency halves every
// PopularityHalfLife.
func Popularity(count int, lastUpdated, now time.Time, p policy.Policy) float64 {
	fill := 0.0
	if p.MaxUsersPerReaction > 0 {
		fill = float64(count) / float64(p.MaxUsersPerReaction)
	}

	recency := 1.0
	if age := now.Sub(lastUpdated); age > 0 && p.PopularityHalfLife > 0 {
		recency = math.Pow(0.5, float64(age)/float64(p.PopularityHalfLife))
	}

	score := p.PopularityCountWeight*fill + (1-p.PopularityCountWeight)*recency
	return clamp01(score)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
