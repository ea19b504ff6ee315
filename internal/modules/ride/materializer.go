package ride

import (
	"context"
	"fmt"
	"time"

	"xpress/internal/modules/dispatch"
	"xpress/internal/modules/pricing"
	"xpress/internal/modules/scoring"
	"xpress/internal/types"
)

// Materializer adapts the Store to the dispatch queue's Materializer
// contract: one ride per winning acceptance, distinct error on failure.
type Materializer struct {
	store *Store
}

func NewMaterializer(store *Store) *Materializer {
	return &Materializer{store: store}
}

func (m *Materializer) Materialize(ctx context.Context, req *dispatch.MatchingRequest, winner scoring.Candidate, fare pricing.Estimate) (types.ID, error) {
	r := &Ride{
		ID:           types.NewID(),
		RequestID:    req.ID,
		RiderID:      req.RiderID,
		DriverID:     winner.DriverID,
		Pickup:       req.Pickup,
		Destination:  req.Destination,
		VehicleClass: req.VehicleClass,
		Fare:         fare.Total,
		Surge:        fare.SurgeMultiplier,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.store.Create(ctx, r); err != nil {
		return "", fmt.Errorf("create ride for request %s: %w", req.ID, err)
	}
	return r.ID, nil
}
