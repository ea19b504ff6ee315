// Package scoring ranks discovered candidates for one matching request.
package scoring

import (
	"time"

	"xpress/internal/types"
)

// Tier is the coarse quality bucket derived from the composite score.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
)

// TierFor buckets a composite score.
func TierFor(score float64) Tier {
	switch {
	case score >= 80:
		return TierExcellent
	case score >= 60:
		return TierGood
	case score >= 40:
		return TierFair
	default:
		return TierPoor
	}
}

// Candidate is a scored driver. Scores are never patched after calculation;
// callers that need fresh numbers rescore.
type Candidate struct {
	DriverID       types.ID
	Location       types.Point
	DistanceMeters float64
	PickupETA      time.Duration

	Rating         float64
	AcceptanceRate float64
	CompletionRate float64

	Score            float64
	Tier             Tier
	AlgorithmVersion string

	// Below-threshold drivers are scored but flagged, so callers can report
	// why nobody qualified instead of seeing a silently shorter list.
	Eligible         bool
	IneligibleReason string
}
