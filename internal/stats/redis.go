package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMirror pushes each latency observation to Redis so external
// dashboards can chart probe latency without parsing the CSV ledger.
// The ledger stays the source of truth; the mirror is best effort.
type RedisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	seq    uint64
}

// Observation is a single mirrored data point.
type Observation struct {
	Timestamp time.Time
	Duration  float64 // seconds
}

// NewRedisMirror connects to Redis and verifies the connection.
func NewRedisMirror(url string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisMirror{
		client: client,
		prefix: "esprobe:latency:",
		ttl:    24 * time.Hour,
	}, nil
}

// SaveObservation stores one data point in a per-query sorted set keyed by
// timestamp, trimming entries older than the retention window.
func (m *RedisMirror) SaveObservation(ctx context.Context, name string, obs Observation) error {
	key := m.prefix + name
	score := float64(obs.Timestamp.Unix())
	member := memberFor(obs, atomic.AddUint64(&m.seq, 1))

	pipe := m.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  score,
		Member: member,
	})

	minScore := time.Now().Add(-m.ttl).Unix()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", minScore))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving observation: %w", err)
	}

	return nil
}

// LoadHistory loads observations for a query since the given time.
func (m *RedisMirror) LoadHistory(ctx context.Context, name string, since time.Time) ([]Observation, error) {
	key := m.prefix + name

	results, err := m.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.Unix()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	observations := make([]Observation, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		obs, err := parseMember(member)
		if err != nil {
			// Skip entries written by other tooling.
			continue
		}
		observations = append(observations, obs)
	}

	return observations, nil
}

// memberFor builds the sorted-set member for an observation. The sequence
// suffix keeps members unique: without it, two observations in the same
// millisecond with equal durations would collapse into one entry.
func memberFor(obs Observation, seq uint64) string {
	return fmt.Sprintf("%d:%s:%d",
		obs.Timestamp.UnixMilli(),
		strconv.FormatFloat(obs.Duration, 'f', -1, 64),
		seq,
	)
}

func parseMember(member string) (Observation, error) {
	parts := strings.SplitN(member, ":", 3)
	if len(parts) < 2 {
		return Observation{}, fmt.Errorf("malformed member %q", member)
	}

	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Observation{}, fmt.Errorf("malformed member timestamp %q: %w", parts[0], err)
	}

	duration, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Observation{}, fmt.Errorf("malformed member duration %q: %w", parts[1], err)
	}

	return Observation{
		Timestamp: time.UnixMilli(ms).UTC(),
		Duration:  duration,
	}, nil
}

// Close releases the Redis connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
