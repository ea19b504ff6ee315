package discovery

import (
	"context"
	"time"
)

// Service applies the discovery filters over a Store. All filters are
// conjunctive; an empty result is not an error.
type Service struct {
	store Store
	cap   int
	now   func() time.Time
}

func NewService(store Store, candidateCap int) *Service {
	return &Service{store: store, cap: candidateCap, now: time.Now}
}

// FindCandidates returns up to the candidate cap of online drivers that are
// within the query radius, have capacity for the passenger count, and have a
// heartbeat inside the freshness window. Sorted by raw distance ascending.
func (s *Service) FindCandidates(ctx context.Context, q Query) ([]Seed, error) {
	seeds, err := s.store.NearbyDrivers(ctx, q.Pickup, q.RadiusMeters)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-q.HeartbeatWindow)
	filtered := seeds[:0]
	for _, seed := range seeds {
		if seed.Capacity < q.Passengers {
			continue
		}
		if seed.LastSeen.Before(cutoff) {
			continue
		}
		filtered = append(filtered, seed)
		if len(filtered) == s.cap {
			break
		}
	}
	return filtered, nil
}
