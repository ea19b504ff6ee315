package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"xpress/internal/config"
	"xpress/internal/modules/discovery"
	"xpress/internal/modules/performance"
	"xpress/internal/types"
)

// ETAProvider estimates driving time to the pickup point. Optional; without
// one the engine derives ETA from straight-line distance at a fixed average
// speed so the time weight still applies and output stays deterministic.
type ETAProvider interface {
	PickupETA(ctx context.Context, from, to types.Point) (time.Duration, error)
}

const (
	// fallbackSpeedKmh is the assumed approach speed when no ETA provider is
	// configured or it fails for a candidate.
	fallbackSpeedKmh = 30.0
	// etaZeroPoint: a pickup 20 minutes away scores zero on the time factor.
	etaZeroPointMin = 20.0
)

// Engine computes composite scores. Identical (seeds, pickup, config) input
// produces identical output, which replay tests rely on.
type Engine struct {
	cfg  config.MatchingConfig
	perf performance.Provider
	eta  ETAProvider
}

func NewEngine(cfg config.MatchingConfig, perf performance.Provider, eta ETAProvider) *Engine {
	return &Engine{cfg: cfg, perf: perf, eta: eta}
}

// Score converts discovery seeds into a ranked candidate list, descending by
// composite score. Ties break on acceptance rate, then driver ID ascending.
func (e *Engine) Score(ctx context.Context, pickup types.Point, seeds []discovery.Seed) ([]Candidate, error) {
	out := make([]Candidate, 0, len(seeds))
	for _, seed := range seeds {
		snap, err := e.perf.Snapshot(ctx, seed.DriverID)
		if err != nil {
			return nil, fmt.Errorf("performance snapshot for %s: %w", seed.DriverID, err)
		}
		out = append(out, e.scoreOne(ctx, pickup, seed, snap))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].AcceptanceRate != out[j].AcceptanceRate {
			return out[i].AcceptanceRate > out[j].AcceptanceRate
		}
		return out[i].DriverID < out[j].DriverID
	})
	return out, nil
}

func (e *Engine) scoreOne(ctx context.Context, pickup types.Point, seed discovery.Seed, snap performance.Snapshot) Candidate {
	eta := e.pickupETA(ctx, seed, pickup)

	distanceScore := clampScore(100 - seed.DistanceMeters/50)
	ratingScore := clampScore(snap.Rating * 20)
	acceptanceScore := clampScore(snap.AcceptanceRate * 100)
	completionScore := clampScore(snap.CompletionRate * 100)
	timeScore := clampScore(100 - eta.Minutes()*(100/etaZeroPointMin))

	w := e.cfg.Weights
	composite := distanceScore*w.Distance +
		ratingScore*w.Rating +
		acceptanceScore*w.Acceptance +
		completionScore*w.Completion +
		timeScore*w.Time

	c := Candidate{
		DriverID:         seed.DriverID,
		Location:         seed.Location,
		DistanceMeters:   seed.DistanceMeters,
		PickupETA:        eta,
		Rating:           snap.Rating,
		AcceptanceRate:   snap.AcceptanceRate,
		CompletionRate:   snap.CompletionRate,
		Score:            composite,
		Tier:             TierFor(composite),
		AlgorithmVersion: e.cfg.AlgorithmVersion,
		Eligible:         true,
	}

	switch {
	case snap.Rating < e.cfg.MinRating:
		c.Eligible = false
		c.IneligibleReason = fmt.Sprintf("rating %.2f below minimum %.2f", snap.Rating, e.cfg.MinRating)
	case snap.AcceptanceRate < e.cfg.MinAcceptanceRate:
		c.Eligible = false
		c.IneligibleReason = fmt.Sprintf("acceptance rate %.2f below minimum %.2f", snap.AcceptanceRate, e.cfg.MinAcceptanceRate)
	}
	return c
}

func (e *Engine) pickupETA(ctx context.Context, seed discovery.Seed, pickup types.Point) time.Duration {
	if e.eta != nil {
		if eta, err := e.eta.PickupETA(ctx, seed.Location, pickup); err == nil {
			return eta
		}
	}
	hours := (seed.DistanceMeters / 1000) / fallbackSpeedKmh
	return time.Duration(hours * float64(time.Hour))
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
