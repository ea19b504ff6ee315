package performance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"xpress/internal/types"
)

const (
	statsKeyPrefix = "dispatch:driver:%s:stats"
	// Counters age out so a bad week does not follow a driver forever; every
	// write refreshes the window.
	statsTTL = 30 * 24 * time.Hour

	neutralRating     = 4.5
	neutralAcceptance = 0.8
	neutralCompletion = 0.9
	// priorWeight is the pseudo-count the neutral rates carry when blending
	// with the live counters. One response moves a rate by a bounded step
	// instead of swinging it to 0 or 1.
	priorWeight = 10.0
)

// RedisProvider keeps rolling offer/accept/complete counters per driver and
// recomputes rates from them, so rejection penalties are bounded by the
// counter window rather than compounding.
type RedisProvider struct {
	redis *redis.Client
}

func NewRedisProvider(rdb *redis.Client) *RedisProvider {
	return &RedisProvider{redis: rdb}
}

func (p *RedisProvider) Snapshot(ctx context.Context, driverID types.ID) (Snapshot, error) {
	vals, err := p.redis.HGetAll(ctx, statsKey(driverID)).Result()
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotFromStats(vals), nil
}

// snapshotFromStats derives rates from the counter hash. A missing rating
// field falls back to the neutral default, and counter-derived rates are
// blended with a neutral prior so a driver's first few responses cannot
// crater their standing below the eligibility thresholds.
func snapshotFromStats(vals map[string]string) Snapshot {
	snap := Snapshot{
		Rating:         neutralRating,
		AcceptanceRate: neutralAcceptance,
		CompletionRate: neutralCompletion,
	}
	if len(vals) == 0 {
		return snap
	}

	if _, ok := vals["rating"]; ok {
		snap.Rating = floatField(vals, "rating")
	}
	offered := floatField(vals, "offered")
	accepted := floatField(vals, "accepted")
	completed := floatField(vals, "completed")
	snap.AcceptanceRate = clampRate((accepted + neutralAcceptance*priorWeight) / (offered + priorWeight))
	snap.CompletionRate = clampRate((completed + neutralCompletion*priorWeight) / (accepted + priorWeight))
	snap.AvgResponseTime = time.Duration(floatField(vals, "avg_response_ms")) * time.Millisecond
	return snap
}

// ApplyRejectionPenalty counts one declined offer. The acceptance rate drops
// by at most one offer's worth and recovers as new accepts arrive.
func (p *RedisProvider) ApplyRejectionPenalty(ctx context.Context, driverID types.ID) error {
	key := statsKey(driverID)
	pipe := p.redis.Pipeline()
	pipe.HIncrBy(ctx, key, "offered", 1)
	pipe.Expire(ctx, key, statsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RecordAcceptance counts one accepted offer.
func (p *RedisProvider) RecordAcceptance(ctx context.Context, driverID types.ID, responseTime time.Duration) error {
	key := statsKey(driverID)
	pipe := p.redis.Pipeline()
	pipe.HIncrBy(ctx, key, "offered", 1)
	pipe.HIncrBy(ctx, key, "accepted", 1)
	pipe.HSet(ctx, key, "avg_response_ms", responseTime.Milliseconds())
	pipe.Expire(ctx, key, statsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func statsKey(id types.ID) string {
	return fmt.Sprintf(statsKeyPrefix, string(id))
}

func floatField(vals map[string]string, field string) float64 {
	f, _ := strconv.ParseFloat(vals[field], 64)
	return f
}
