package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tmarceau/bidscope/internal/domain/jobs"
)

const (
	keyPrefix  = "bidscope:job:"
	defaultTTL = 24 * time.Hour
)

// JobCache keeps the current job snapshot in Redis so status polling
// does not hit the database on every request.
type JobCache struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewJobCache(rc *redis.Client) *JobCache {
	return &JobCache{rc: rc, ttl: defaultTTL}
}

func (c *JobCache) key(id jobs.JobID) string { return keyPrefix + string(id) }

// Get returns jobs.ErrNotFound on a miss; callers fall back to the repository.
func (c *JobCache) Get(ctx context.Context, id jobs.JobID) (*jobs.Job, error) {
	raw, err := c.rc.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var j jobs.Job
	if err := json.Unmarshal(raw, &j); err != nil {
		// A corrupt entry behaves like a miss; the repository is authoritative.
		c.rc.Del(ctx, c.key(id))
		return nil, jobs.ErrNotFound
	}
	return &j, nil
}

func (c *JobCache) Set(ctx context.Context, j *jobs.Job) error {
	raw, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return c.rc.Set(ctx, c.key(j.ID), raw, c.ttl).Err()
}

func (c *JobCache) Delete(ctx context.Context, id jobs.JobID) error {
	return c.rc.Del(ctx, c.key(id)).Err()
}
