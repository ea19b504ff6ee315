package discovery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"xpress/internal/types"
)

// Store is the driver availability surface shared by every matching pipeline.
// ClaimDriver is compare-and-swap: two pipelines racing for the same driver
// see exactly one true.
type Store interface {
	UpsertDriver(ctx context.Context, d DriverState) error
	RemoveDriver(ctx context.Context, id types.ID) error
	NearbyDrivers(ctx context.Context, pickup types.Point, radiusMeters float64) ([]Seed, error)
	ClaimDriver(ctx context.Context, id types.ID) (bool, error)
	ReleaseDriver(ctx context.Context, id types.ID) error
}

const (
	geoKey          = "dispatch:drivers"
	stateKeyPrefix  = "dispatch:driver:%s"
	claimKeyPrefix  = "dispatch:driver:%s:claim"
	// Claims are released explicitly on trip completion or rollback; the TTL
	// only guards against a crashed pipeline leaving a driver stuck busy.
	claimTTL = time.Hour
	stateTTL = 24 * time.Hour
)

// RedisStore keeps driver positions in a GEO set and state in per-driver
// hashes.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{redis: rdb}
}

func (s *RedisStore) UpsertDriver(ctx context.Context, d DriverState) error {
	pipe := s.redis.Pipeline()
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      string(d.ID),
		Longitude: d.Location.Lng,
		Latitude:  d.Location.Lat,
	})
	key := stateKey(d.ID)
	pipe.HSet(ctx, key,
		"status", string(d.Status),
		"capacity", d.Capacity,
		"vehicle_class", d.VehicleClass,
		"last_seen", d.LastSeen.UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, stateTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) RemoveDriver(ctx context.Context, id types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.ZRem(ctx, geoKey, string(id))
	pipe.Del(ctx, stateKey(id))
	_, err := pipe.Exec(ctx)
	return err
}

// NearbyDrivers returns every online driver within the radius, nearest first,
// regardless of capacity or freshness; the discovery service applies the
// remaining filters.
func (s *RedisStore) NearbyDrivers(ctx context.Context, pickup types.Point, radiusMeters float64) ([]Seed, error) {
	locs, err := s.redis.GeoSearchLocation(ctx, geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  pickup.Lng,
			Latitude:   pickup.Lat,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	seeds := make([]Seed, 0, len(locs))
	for _, loc := range locs {
		state, err := s.redis.HGetAll(ctx, stateKey(types.ID(loc.Name))).Result()
		if err != nil {
			return nil, err
		}
		if len(state) == 0 || DriverStatus(state["status"]) != DriverOnline {
			continue
		}
		capacity, _ := strconv.Atoi(state["capacity"])
		lastSeen, _ := time.Parse(time.RFC3339Nano, state["last_seen"])
		seeds = append(seeds, Seed{
			DriverID:       types.ID(loc.Name),
			Location:       types.Point{Lat: loc.Latitude, Lng: loc.Longitude},
			DistanceMeters: loc.Dist,
			Capacity:       capacity,
			VehicleClass:   state["vehicle_class"],
			LastSeen:       lastSeen,
		})
	}
	return seeds, nil
}

// ClaimDriver atomically marks a driver busy. Returns false when another
// pipeline holds the claim or the driver is not online.
func (s *RedisStore) ClaimDriver(ctx context.Context, id types.ID) (bool, error) {
	ok, err := s.redis.SetNX(ctx, claimKey(id), "1", claimTTL).Result()
	if err != nil || !ok {
		return false, err
	}
	if err := s.redis.HSet(ctx, stateKey(id), "status", string(DriverBusy)).Err(); err != nil {
		// Undo the claim so the driver is not half-marked.
		_ = s.redis.Del(ctx, claimKey(id)).Err()
		return false, err
	}
	return true, nil
}

func (s *RedisStore) ReleaseDriver(ctx context.Context, id types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.Del(ctx, claimKey(id))
	pipe.HSet(ctx, stateKey(id), "status", string(DriverOnline))
	_, err := pipe.Exec(ctx)
	return err
}

func stateKey(id types.ID) string {
	return fmt.Sprintf(stateKeyPrefix, string(id))
}

func claimKey(id types.ID) string {
	return fmt.Sprintf(claimKeyPrefix, string(id))
}
