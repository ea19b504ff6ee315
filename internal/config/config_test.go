package config

import (
	"strings"
	"testing"
	"time"
)

func validMatching() MatchingConfig {
	return MatchingConfig{
		Weights: ScoringWeights{
			Distance:   0.40,
			Rating:     0.15,
			Acceptance: 0.10,
			Completion: 0.05,
			Time:       0.30,
		},
		AlgorithmVersion:        "v2.1",
		MinRating:               3.0,
		MinAcceptanceRate:       0.30,
		MaxPickupDistanceMeters: 5000,
		HeartbeatWindow:         2 * time.Minute,
		CandidateCap:            20,
		AssignmentDeadline:      5 * time.Minute,
		MaxAttempts:             3,
		ExpansionFactor:         1.5,
		TerminalRetention:       15 * time.Minute,
	}
}

func TestValidateDefaults(t *testing.T) {
	if err := validMatching().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateWeightSum(t *testing.T) {
	m := validMatching()
	m.Weights.Distance = 0.50 // sum is now 1.10
	err := m.Validate()
	if err == nil {
		t.Fatal("expected weight-sum error")
	}
	if !strings.Contains(err.Error(), "sum") {
		t.Fatalf("expected a weight-sum message, got: %v", err)
	}
}

func TestValidateWeightSumTolerance(t *testing.T) {
	// Float addition noise within 1e-9 must not fail startup.
	m := validMatching()
	m.Weights = ScoringWeights{
		Distance:   0.1,
		Rating:     0.2,
		Acceptance: 0.3,
		Completion: 0.2,
		Time:       0.2,
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("tolerant sum rejected: %v", err)
	}
}

func TestValidateFieldBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*MatchingConfig)
	}{
		{"negative weight", func(m *MatchingConfig) { m.Weights.Distance = -0.1 }},
		{"weight above one", func(m *MatchingConfig) { m.Weights.Time = 1.5 }},
		{"rating above scale", func(m *MatchingConfig) { m.MinRating = 6 }},
		{"acceptance above one", func(m *MatchingConfig) { m.MinAcceptanceRate = 1.2 }},
		{"zero radius", func(m *MatchingConfig) { m.MaxPickupDistanceMeters = 0 }},
		{"zero deadline", func(m *MatchingConfig) { m.AssignmentDeadline = 0 }},
		{"zero attempts", func(m *MatchingConfig) { m.MaxAttempts = 0 }},
		{"expansion not expanding", func(m *MatchingConfig) { m.ExpansionFactor = 1.0 }},
		{"zero candidate cap", func(m *MatchingConfig) { m.CandidateCap = 0 }},
		{"zero retention", func(m *MatchingConfig) { m.TerminalRetention = 0 }},
		{"missing algorithm version", func(m *MatchingConfig) { m.AlgorithmVersion = "" }},
	}
	for _, c := range cases {
		m := validMatching()
		c.mutate(&m)
		if err := m.Validate(); err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("expected default addr, got %s", cfg.HTTP.Addr)
	}
	if cfg.Matching.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.Matching.MaxAttempts)
	}
	if cfg.Matching.AssignmentDeadline != 5*time.Minute {
		t.Fatalf("expected 5m deadline, got %s", cfg.Matching.AssignmentDeadline)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("XPRESS_MAX_ATTEMPTS", "5")
	t.Setenv("XPRESS_EXPANSION_FACTOR", "2.0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Matching.MaxAttempts != 5 {
		t.Fatalf("expected override to 5, got %d", cfg.Matching.MaxAttempts)
	}
	if cfg.Matching.ExpansionFactor != 2.0 {
		t.Fatalf("expected override to 2.0, got %f", cfg.Matching.ExpansionFactor)
	}
}

func TestLoadRejectsBadWeights(t *testing.T) {
	t.Setenv("XPRESS_WEIGHT_DISTANCE", "0.9")
	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail on bad weight sum")
	}
}
