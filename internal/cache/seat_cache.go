// Package cache holds the Redis-backed helpers of the booking flow: the
// booked-seats cache and the per-showtime reservation lock.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// genTTL keeps generation counters well past any in-flight read. A counter
// that expires mid-read would let that read's stale list be written.
const genTTL = time.Hour

// setIfGenScript writes the seat list only while the showtime's generation
// still equals the one observed before the database read.
//
// KEYS[1] seats key, KEYS[2] generation key
// ARGV[1] expected generation, ARGV[2] payload, ARGV[3] ttl in ms
var setIfGenScript = redis.NewScript(`
	local gen = redis.call("GET", KEYS[2])
	if not gen then gen = "0" end
	if gen ~= ARGV[1] then
		return 0
	end
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
`)

// invalidateScript bumps the generation and drops the cached list in one
// step, so no reader can slip a write in between.
//
// KEYS[1] seats key, KEYS[2] generation key
// ARGV[1] generation ttl in ms
var invalidateScript = redis.NewScript(`
	redis.call("INCR", KEYS[2])
	redis.call("PEXPIRE", KEYS[2], ARGV[1])
	redis.call("DEL", KEYS[1])
	return 1
`)

// SeatCache caches the booked seat list of a showtime as a JSON array.
// Writes are guarded by a per-showtime generation counter that every
// invalidation increments.
type SeatCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSeatCache(client *redis.Client, ttl time.Duration) *SeatCache {
	return &SeatCache{client: client, ttl: ttl}
}

// Get returns the cached seats for key or ErrCacheMiss.
func (c *SeatCache) Get(ctx context.Context, key string) ([]int, error) {
	raw, err := c.client.Get(ctx, c.seatsKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("read booked seats cache: %w", err)
	}
	var seats []int
	if err := json.Unmarshal(raw, &seats); err != nil {
		_ = c.client.Del(ctx, c.seatsKey(key)).Err()
		return nil, ErrCacheMiss
	}
	return seats, nil
}

// Generation returns the current invalidation count of key. Read it before
// loading seats from the database and hand it back to Set.
func (c *SeatCache) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read booked seats generation: %w", err)
	}
	return gen, nil
}

// Set stores seats for key unless key was invalidated after gen was read.
// A skipped write is not an error.
func (c *SeatCache) Set(ctx context.Context, key string, gen int64, seats []int) error {
	if seats == nil {
		seats = []int{}
	}
	raw, err := json.Marshal(seats)
	if err != nil {
		return err
	}
	keys := []string{c.seatsKey(key), c.genKey(key)}
	if err := setIfGenScript.Run(ctx, c.client, keys, gen, raw, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("write booked seats cache: %w", err)
	}
	return nil
}

func (c *SeatCache) Invalidate(ctx context.Context, key string) error {
	keys := []string{c.seatsKey(key), c.genKey(key)}
	if err := invalidateScript.Run(ctx, c.client, keys, genTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("invalidate booked seats cache: %w", err)
	}
	return nil
}

func (c *SeatCache) seatsKey(key string) string {
	return fmt.Sprintf("seats:booked:%s", key)
}

func (c *SeatCache) genKey(key string) string {
	return fmt.Sprintf("seats:gen:%s", key)
}
