// Package policy holds the resource bounds for the reaction store.
//
// Every limit is configuration. The eviction and breaker algorithms read
// them through a Policy value and never hard-code a threshold.
package policy

import (
	"fmt"
	"math"
	"time"
)

// Policy is the set of bounds enforced on every mutation.
type Policy struct {
	MaxUsersPerReaction    int           `mapstructure:"max_users_per_reaction"`
	MaxReactionsPerMessage int           `mapstructure:"max_reactions_per_message"`
	CleanupThreshold       float64       `mapstructure:"cleanup_threshold"` // fraction of MaxReactionsPerMessage
	RetentionFactor        float64       `mapstructure:"retention_factor"`  // fraction kept by a per-message cleanup
	FailureThreshold       int           `mapstructure:"failure_threshold"`
	Cooldown               time.Duration `mapstructure:"cooldown"`

	// Global pressure watermark on tracked messages.
	MaxTrackedMessages int     `mapstructure:"max_tracked_messages"`
	GlobalTargetFactor float64 `mapstructure:"global_target_factor"`

	// Popularity = CountWeight * count/MaxUsers + (1-CountWeight) * recency.
	PopularityCountWeight float64       `mapstructure:"popularity_count_weight"`
	PopularityHalfLife    time.Duration `mapstructure:"popularity_half_life"`
}

// Default returns the production bounds.
func Default() Policy {
	return Policy{
		MaxUsersPerReaction:    50,
		MaxReactionsPerMessage: 20,
		CleanupThreshold:       0.8,
		RetentionFactor:        0.4,
		FailureThreshold:       3,
		Cooldown:               30 * time.Second,
		MaxTrackedMessages:     1000,
		GlobalTargetFactor:     0.75,
		PopularityCountWeight:  0.7,
		PopularityHalfLife:     24 * time.Hour,
	}
}

// Validate rejects combinations under which the hard limits could not hold.
func (p Policy) Validate() error {
	switch {
	case p.MaxUsersPerReaction < 1:
		return fmt.Errorf("policy: max_users_per_reaction must be >= 1, got %d", p.MaxUsersPerReaction)
	case p.MaxReactionsPerMessage < 1:
		return fmt.Errorf("policy: max_reactions_per_message must be >= 1, got %d", p.MaxReactionsPerMessage)
	case p.CleanupThreshold <= 0 || p.CleanupThreshold > 1:
		return fmt.Errorf("policy: cleanup_threshold must be in (0,1], got %v", p.CleanupThreshold)
	case p.RetentionFactor <= 0 || p.RetentionFactor > p.CleanupThreshold:
		return fmt.Errorf("policy: retention_factor must be in (0,cleanup_threshold], got %v", p.RetentionFactor)
	case p.FailureThreshold < 1:
		return fmt.Errorf("policy: failure_threshold must be >= 1, got %d", p.FailureThreshold)
	case p.Cooldown <= 0:
		return fmt.Errorf("policy: cooldown must be positive, got %v", p.Cooldown)
	case p.MaxTrackedMessages < 1:
		return fmt.Errorf("policy: max_tracked_messages must be >= 1, got %d", p.MaxTrackedMessages)
	case p.GlobalTargetFactor <= 0 || p.GlobalTargetFactor > 1:
		return fmt.Errorf("policy: global_target_factor must be in (0,1], got %v", p.GlobalTargetFactor)
	case p.PopularityCountWeight < 0 || p.PopularityCountWeight > 1:
		return fmt.Errorf("policy: popularity_count_weight must be in [0,1], got %v", p.PopularityCountWeight)
	case p.PopularityHalfLife <= 0:
		return fmt.Errorf("policy: popularity_half_life must be positive, got %v", p.PopularityHalfLife)
	}
	return nil
}

// CanAdd reports whether a reaction with count users can take one more.
func (p Policy) CanAdd(count int) bool {
	return count < p.MaxUsersPerReaction
}

// CleanupTrigger is the distinct-reaction count a message may hold before
// admitting another emoji forces a per-message cleanup.
func (p Policy) CleanupTrigger() int {
	return int(math.Floor(float64(p.MaxReactionsPerMessage) * p.CleanupThreshold))
}

// ExceedsCleanupTrigger reports whether a message holding size distinct
// reactions is past the trigger.
func (p Policy) ExceedsCleanupTrigger(size int) bool {
	return size > p.CleanupTrigger()
}

// RetentionCount is how many reactions a per-message cleanup leaves behind.
func (p Policy) RetentionCount() int {
	n := int(math.Floor(float64(p.MaxReactionsPerMessage) * p.RetentionFactor))
	if n < 1 {
		n = 1
	}
	return n
}

// ExceedsWatermark reports whether tracking n messages crosses the global
// pressure watermark.
func (p Policy) ExceedsWatermark(n int) bool {
	return n > p.MaxTrackedMessages
}

// GlobalTarget is the message count a global cleanup trims below.
func (p Policy) GlobalTarget() int {
	n := int(math.Floor(float64(p.MaxTrackedMessages) * p.GlobalTargetFactor))
	if n < 1 {
		n = 1
	}
	return n
}
