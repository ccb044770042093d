package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bustix/internal/domain/models"

	"github.com/redis/go-redis/v9"
)

const (
	defaultSeatMapTTL = 30 * time.Second
	generationTTL     = 24 * time.Hour
)

// setIfGeneration writes the seat map only while the trip's generation still
// matches the one read before the ledger was queried.
const setIfGeneration = `
if (redis.call('GET', KEYS[2]) or '0') == ARGV[1] then
  return redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
end
return false`

// SeatMapCache keeps the display seat map of a trip in Redis. It is filled on
// read and dropped after every commit that changes occupancy; booking writes
// never read from it. Each drop bumps a per-trip generation so a fill that
// raced with a commit is discarded.
type SeatMapCache struct {
	Client redis.Cmdable
	TTL    time.Duration
}

func NewSeatMapCache(client redis.Cmdable, ttl time.Duration) *SeatMapCache {
	if ttl <= 0 {
		ttl = defaultSeatMapTTL
	}
	return &SeatMapCache{Client: client, TTL: ttl}
}

func SeatMapKey(tripID int64) string {
	return fmt.Sprintf("seats:%d", tripID)
}

func generationKey(tripID int64) string {
	return fmt.Sprintf("seats:%d:gen", tripID)
}

func (c *SeatMapCache) Get(ctx context.Context, tripID int64) (models.SeatMap, bool, error) {
	raw, err := c.Client.Get(ctx, SeatMapKey(tripID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.SeatMap{}, false, nil
	}
	if err != nil {
		return models.SeatMap{}, false, fmt.Errorf("seat map get: %w", err)
	}
	var m models.SeatMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return models.SeatMap{}, false, fmt.Errorf("seat map decode: %w", err)
	}
	return m, true, nil
}

// Generation returns the trip's invalidation counter. Read it before loading
// the seat map from the ledger and hand it to Set.
func (c *SeatMapCache) Generation(ctx context.Context, tripID int64) (int64, error) {
	n, err := c.Client.Get(ctx, generationKey(tripID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("seat map generation: %w", err)
	}
	return n, nil
}

// Set stores m unless the trip was invalidated after generation was read.
// stored reports whether the write happened.
func (c *SeatMapCache) Set(ctx context.Context, m models.SeatMap, generation int64) (stored bool, err error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return false, err
	}
	err = c.Client.Eval(ctx, setIfGeneration,
		[]string{SeatMapKey(m.TripID), generationKey(m.TripID)},
		generation, string(raw), c.TTL.Milliseconds()).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seat map set: %w", err)
	}
	return true, nil
}

// Invalidate bumps the generation first, then drops the cached map.
func (c *SeatMapCache) Invalidate(ctx context.Context, tripID int64) error {
	gen := generationKey(tripID)
	if err := c.Client.Incr(ctx, gen).Err(); err != nil {
		return fmt.Errorf("seat map generation bump: %w", err)
	}
	if err := c.Client.Expire(ctx, gen, generationTTL).Err(); err != nil {
		return fmt.Errorf("seat map generation expiry: %w", err)
	}
	return c.Client.Del(ctx, SeatMapKey(tripID)).Err()
}
