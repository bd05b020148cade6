package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/tmarceau/bidscope/internal/domain/analysis"
)

// Queue is a durable Redis-backed work queue. Claims move items to a
// per-queue processing list, so a claim is exclusive until Ack and a
// crashed worker's items stay visible for operational requeue.
type Queue struct {
	rc   *redis.Client
	name string
}

func New(rc *redis.Client, name string) *Queue {
	return &Queue{rc: rc, name: name}
}

func (q *Queue) pendingKey() string    { return q.name + ":pending" }
func (q *Queue) processingKey() string { return q.name + ":processing" }

// Enqueue pushes a task; intake returns to the caller immediately after.
func (q *Queue) Enqueue(ctx context.Context, t domain.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.rc.LPush(ctx, q.pendingKey(), payload).Err(); err != nil {
		return fmt.Errorf("enqueue task %s: %w", t.JobID, err)
	}
	return nil
}

// Dequeue blocks until a task is available or ctx is done. The blocking
// pop is bounded so cancellation is noticed promptly.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payload, err := q.rc.BLMove(ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT", 5*time.Second).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("dequeue: %w", err)
		}

		var t domain.Task
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			// Drop the malformed payload from the processing list so it
			// cannot wedge the queue.
			q.rc.LRem(ctx, q.processingKey(), 1, payload)
			return nil, fmt.Errorf("decode task: %w", err)
		}
		t.Raw = payload
		return &t, nil
	}
}

// Ack releases the claim once processing ended, whatever the outcome.
func (q *Queue) Ack(ctx context.Context, t *domain.Task) error {
	payload := t.Raw
	if payload == "" {
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		payload = string(b)
	}
	return q.rc.LRem(ctx, q.processingKey(), 1, payload).Err()
}
