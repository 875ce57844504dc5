package policy

import (
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestDerivedBounds(t *testing.T) {
	p := Default()

	if got := p.CleanupTrigger(); got != 16 {
		t.Errorf("CleanupTrigger = %d, want 16", got)
	}
	if got := p.RetentionCount(); got != 8 {
		t.Errorf("RetentionCount = %d, want 8", got)
	}
	if got := p.GlobalTarget(); got != 750 {
		t.Errorf("GlobalTarget = %d, want 750", got)
	}
}

func TestCanAdd(t *testing.T) {
	p := Default()
	tests := []struct {
		count int
		want  bool
	}{
		{0, true},
		{49, true},
		{50, false},
		{51, false},
	}
	for _, tt := range tests {
		if got := p.CanAdd(tt.count); got != tt.want {
			t.Errorf("CanAdd(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestExceedsCleanupTrigger(t *testing.T) {
	p := Default()
	if p.ExceedsCleanupTrigger(16) {
		t.Error("16 reactions should not exceed the trigger")
	}
	if !p.ExceedsCleanupTrigger(17) {
		t.Error("17 reactions should exceed the trigger")
	}
}

func TestExceedsWatermark(t *testing.T) {
	p := Default()
	p.MaxTrackedMessages = 10
	if p.ExceedsWatermark(10) {
		t.Error("10 messages should not exceed a watermark of 10")
	}
	if !p.ExceedsWatermark(11) {
		t.Error("11 messages should exceed a watermark of 10")
	}
}

func TestRetentionCountFloor(t *testing.T) {
	p := Default()
	p.MaxReactionsPerMessage = 2
	p.RetentionFactor = 0.1
	if got := p.RetentionCount(); got != 1 {
		t.Errorf("RetentionCount = %d, want 1", got)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"zero users", func(p *Policy) { p.MaxUsersPerReaction = 0 }},
		{"zero reactions", func(p *Policy) { p.MaxReactionsPerMessage = 0 }},
		{"threshold above one", func(p *Policy) { p.CleanupThreshold = 1.2 }},
		{"retention above threshold", func(p *Policy) { p.RetentionFactor = 0.9 }},
		{"zero failure threshold", func(p *Policy) { p.FailureThreshold = 0 }},
		{"zero cooldown", func(p *Policy) { p.Cooldown = 0 }},
		{"zero watermark", func(p *Policy) { p.MaxTrackedMessages = 0 }},
		{"target factor zero", func(p *Policy) { p.GlobalTargetFactor = 0 }},
		{"negative weight", func(p *Policy) { p.PopularityCountWeight = -0.1 }},
		{"zero half-life", func(p *Policy) { p.PopularityHalfLife = 0 * time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
