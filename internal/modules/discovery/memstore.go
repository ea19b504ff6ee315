package discovery

import (
	"context"
	"sync"

	"github.com/uber/h3-go/v4"

	"xpress/internal/geo"
	"xpress/internal/types"
)

// MemoryStore is an in-process Store used for tests and single-node runs
// without Redis. Drivers are bucketed into H3 cells so a radius query only
// scans nearby buckets.
type MemoryStore struct {
	mu      sync.Mutex
	index   geo.CellIndex
	drivers map[types.ID]*DriverState
	cells   map[h3.Cell]map[types.ID]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drivers: make(map[types.ID]*DriverState),
		cells:   make(map[h3.Cell]map[types.ID]struct{}),
	}
}

func (s *MemoryStore) UpsertDriver(_ context.Context, d DriverState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.drivers[d.ID]; ok {
		s.removeFromCell(prev)
	}
	cp := d
	s.drivers[d.ID] = &cp
	cell := s.index.CellFor(d.Location)
	if s.cells[cell] == nil {
		s.cells[cell] = make(map[types.ID]struct{})
	}
	s.cells[cell][d.ID] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveDriver(_ context.Context, id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.drivers[id]; ok {
		s.removeFromCell(d)
		delete(s.drivers, id)
	}
	return nil
}

func (s *MemoryStore) NearbyDrivers(_ context.Context, pickup types.Point, radiusMeters float64) ([]Seed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var seeds []Seed
	for _, cell := range s.index.Covering(pickup, radiusMeters/1000.0) {
		for id := range s.cells[cell] {
			d := s.drivers[id]
			if d.Status != DriverOnline {
				continue
			}
			dist := geo.HaversineMeters(pickup, d.Location)
			if dist > radiusMeters {
				continue
			}
			seeds = append(seeds, Seed{
				DriverID:       d.ID,
				Location:       d.Location,
				DistanceMeters: dist,
				Capacity:       d.Capacity,
				VehicleClass:   d.VehicleClass,
				LastSeen:       d.LastSeen,
			})
		}
	}
	geo.SortByDistance(seeds, func(s Seed) float64 { return s.DistanceMeters })
	return seeds, nil
}

func (s *MemoryStore) ClaimDriver(_ context.Context, id types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drivers[id]
	if !ok || d.Status != DriverOnline {
		return false, nil
	}
	d.Status = DriverBusy
	return true, nil
}

func (s *MemoryStore) ReleaseDriver(_ context.Context, id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.drivers[id]; ok && d.Status == DriverBusy {
		d.Status = DriverOnline
	}
	return nil
}

// removeFromCell must be called with the lock held.
func (s *MemoryStore) removeFromCell(d *DriverState) {
	cell := s.index.CellFor(d.Location)
	if members, ok := s.cells[cell]; ok {
		delete(members, d.ID)
		if len(members) == 0 {
			delete(s.cells, cell)
		}
	}
}
