// Package performance supplies driver quality signals to the scoring engine.
package performance

import (
	"context"
	"sync"
	"time"

	"xpress/internal/types"
)

// Snapshot is one driver's current performance signals. Rates are in [0,1],
// rating on a 0-5 scale.
type Snapshot struct {
	Rating          float64
	AcceptanceRate  float64
	CompletionRate  float64
	AvgResponseTime time.Duration
}

// Provider is the external performance-tracking collaborator. The matching
// core reads snapshots and reports rejections; it never owns the decay model.
type Provider interface {
	Snapshot(ctx context.Context, driverID types.ID) (Snapshot, error)
	ApplyRejectionPenalty(ctx context.Context, driverID types.ID) error
}

// FixedProvider returns canned snapshots; used in tests and local runs where
// no signal store is configured. Unknown drivers get the default snapshot.
// One instance is shared by every matching pipeline, so access to the map is
// serialized on its own mutex.
type FixedProvider struct {
	Snapshots map[types.ID]Snapshot
	Default   Snapshot

	mu sync.Mutex
}

func NewFixedProvider() *FixedProvider {
	return &FixedProvider{
		Snapshots: make(map[types.ID]Snapshot),
		Default:   Snapshot{Rating: 4.5, AcceptanceRate: 0.8, CompletionRate: 0.9},
	}
}

func (p *FixedProvider) Snapshot(_ context.Context, driverID types.ID) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.Snapshots[driverID]; ok {
		return s, nil
	}
	return p.Default, nil
}

func (p *FixedProvider) ApplyRejectionPenalty(_ context.Context, driverID types.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.Snapshots[driverID]
	if !ok {
		s = p.Default
	}
	s.AcceptanceRate = clampRate(s.AcceptanceRate - penaltyStep)
	p.Snapshots[driverID] = s
	return nil
}

const penaltyStep = 0.02

func clampRate(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
