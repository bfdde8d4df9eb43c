package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cgillinger/facebook-stats/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix = "job:status:"
	recentKey       = "job:recent"
)

// RedisTracker stores each job as a JSON string with a TTL and keeps a
// sorted set of job ids by creation time for listing.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisTracker{client: client, ttl: ttl}
}

func (r *RedisTracker) statusKey(id string) string { return statusKeyPrefix + id }

func (r *RedisTracker) Save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.statusKey(job.ID), data, r.ttl)
	pipe.ZAdd(ctx, recentKey, redis.Z{Score: float64(job.CreatedAt.UnixNano()), Member: job.ID})
	pipe.Expire(ctx, recentKey, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (r *RedisTracker) Get(ctx context.Context, id string) (*Job, error) {
	data, err := r.client.Get(ctx, r.statusKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// List skips ids whose status key has expired and prunes them from the
// index.
func (r *RedisTracker) List(ctx context.Context, limit int) ([]*Job, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.client.ZRevRange(ctx, recentKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]*Job, 0, len(ids))
	var stale []interface{}
	for _, id := range ids {
		job, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, recentKey, stale...).Err(); err != nil {
			logger.Warn("prune expired jobs", "error", err)
		}
	}
	return out, nil
}
