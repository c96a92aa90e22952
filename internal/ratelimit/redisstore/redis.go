// Package redisstore keeps rate windows in Redis sorted sets so several
// feedbackd replicas can share one quota.
package redisstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/feedbackd/feedbackd/internal/ratelimit"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "feedbackd:ratelimit"

// Store implements ratelimit.WindowStore over one sorted set per user.
// Scores are submission times in unix milliseconds.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	scan   int64
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		prefix = strings.Trim(strings.TrimSpace(prefix), ":")
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithScanCount sets the COUNT hint used when iterating keys.
func WithScanCount(count int64) Option {
	return func(s *Store) {
		if count > 0 {
			s.scan = count
		}
	}
}

// New wraps an existing client.
func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		rdb:    rdb,
		prefix: DefaultPrefix,
		scan:   100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ ratelimit.WindowStore = (*Store)(nil)
	_ ratelimit.WindowAdmin = (*Store)(nil)
	_ ratelimit.Pinger      = (*Store)(nil)
)

func (s *Store) key(userID string) string {
	return s.prefix + ":" + userID
}

func (s *Store) userFromKey(key string) string {
	return strings.TrimPrefix(key, s.prefix+":")
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// Window returns the user's timestamps in ascending order.
func (s *Store) Window(ctx context.Context, userID string) ([]time.Time, error) {
	members, err := s.rdb.ZRangeWithScores(ctx, s.key(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read window: %w", err)
	}
	return toTimes(members), nil
}

// Append adds at and drops entries at or before cutoff. The key expires
// once its newest entry leaves the window.
func (s *Store) Append(ctx context.Context, userID string, at time.Time, cutoff time.Time) error {
	key := s.key(userID)
	member := millis(at) + "-" + uuid.NewString()

	pipe := s.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", millis(cutoff))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
	if ttl := at.Sub(cutoff); ttl > 0 {
		pipe.PExpire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append window: %w", err)
	}
	return nil
}

// Sweep trims every user's set. Redis deletes a sorted set when its last
// member goes, so emptied users count as evicted.
func (s *Store) Sweep(ctx context.Context, cutoff time.Time) (ratelimit.SweepStats, error) {
	var stats ratelimit.SweepStats

	keys, err := s.keys(ctx)
	if err != nil {
		return stats, err
	}

	upper := millis(cutoff)
	for _, key := range keys {
		pipe := s.rdb.Pipeline()
		removed := pipe.ZRemRangeByScore(ctx, key, "-inf", upper)
		card := pipe.ZCard(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			return stats, fmt.Errorf("sweep %s: %w", key, err)
		}
		stats.Removed += int(removed.Val())
		if card.Val() == 0 {
			stats.Evicted++
			continue
		}
		stats.Users++
	}
	return stats, nil
}

// Windows lists every stored window ordered by user id.
func (s *Store) Windows(ctx context.Context) ([]ratelimit.WindowEntry, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]ratelimit.WindowEntry, 0, len(keys))
	for _, key := range keys {
		members, err := s.rdb.ZRangeWithScores(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if len(members) == 0 {
			continue
		}
		entries = append(entries, ratelimit.WindowEntry{
			UserID:     s.userFromKey(key),
			Timestamps: toTimes(members),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	return entries, nil
}

// Reset deletes one user's window, or every window when userID is empty.
func (s *Store) Reset(ctx context.Context, userID string) (int, error) {
	if userID != "" {
		n, err := s.rdb.Del(ctx, s.key(userID)).Result()
		if err != nil {
			return 0, fmt.Errorf("reset %s: %w", userID, err)
		}
		return int(n), nil
	}

	keys, err := s.keys(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("reset all: %w", err)
	}
	return int(n), nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) keys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	match := s.prefix + ":*"
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, match, s.scan).Result()
		if err != nil {
			return nil, fmt.Errorf("scan keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func toTimes(members []redis.Z) []time.Time {
	if len(members) == 0 {
		return nil
	}
	out := make([]time.Time, 0, len(members))
	for _, m := range members {
		out = append(out, time.UnixMilli(int64(m.Score)).UTC())
	}
	return out
}
