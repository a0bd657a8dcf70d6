// Package queue is the durable at-least-once dispatcher for sync job
// descriptors. Descriptors live on a redis list; claimed deliveries move
// to a processing list with a lease deadline, and expired leases are
// reclaimed back onto the main list for redelivery.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ecomsync/feedsync/internal/domain/job"
)

const (
	mainKey       = "feedsync:jobs"
	processingKey = "feedsync:jobs:processing"
	leaseKey      = "feedsync:jobs:leases"
)

// Delivery is one claimed queue entry. The raw payload is kept verbatim
// so Ack can remove exactly what was delivered.
type Delivery struct {
	ID         string         `json:"id"`
	Descriptor job.Descriptor `json:"descriptor"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`

	raw string
}

// Queue is the redis-backed dispatcher.
type Queue struct {
	rdb *redis.Client
}

// New wraps a redis client.
func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Enqueue pushes a descriptor onto the main list.
func (q *Queue) Enqueue(ctx context.Context, d job.Descriptor) (string, error) {
	delivery := Delivery{
		ID:         uuid.NewString(),
		Descriptor: d,
		EnqueuedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(delivery)
	if err != nil {
		return "", fmt.Errorf("encode descriptor: %w", err)
	}
	if err := q.rdb.LPush(ctx, mainKey, payload).Err(); err != nil {
		return "", fmt.Errorf("enqueue descriptor: %w", err)
	}
	return delivery.ID, nil
}

// Dequeue blocks up to wait for the next descriptor, moving it onto the
// processing list and registering a lease deadline. A nil delivery with
// nil error means the wait timed out.
func (q *Queue) Dequeue(ctx context.Context, wait, lease time.Duration) (*Delivery, error) {
	raw, err := q.rdb.BLMove(ctx, mainKey, processingKey, "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	var delivery Delivery
	if err := json.Unmarshal([]byte(raw), &delivery); err != nil {
		// Poison entry; drop it rather than redeliver forever.
		q.rdb.LRem(ctx, processingKey, 1, raw)
		return nil, fmt.Errorf("decode queue entry: %w", err)
	}
	delivery.raw = raw

	deadline := float64(time.Now().Add(lease).Unix())
	if err := q.rdb.ZAdd(ctx, leaseKey, redis.Z{Score: deadline, Member: raw}).Err(); err != nil {
		return nil, fmt.Errorf("register lease: %w", err)
	}
	return &delivery, nil
}

// ExtendLease pushes the delivery's redelivery deadline out; called by
// long-running jobs between checkpoint writes.
func (q *Queue) ExtendLease(ctx context.Context, d *Delivery, lease time.Duration) error {
	deadline := float64(time.Now().Add(lease).Unix())
	return q.rdb.ZAdd(ctx, leaseKey, redis.Z{Score: deadline, Member: d.raw}).Err()
}

// Ack removes a finished delivery from the processing list and its
// lease entry.
func (q *Queue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.rdb.LRem(ctx, processingKey, 1, d.raw).Err(); err != nil {
		return fmt.Errorf("ack delivery %s: %w", d.ID, err)
	}
	return q.rdb.ZRem(ctx, leaseKey, d.raw).Err()
}

// Reclaim moves deliveries with expired leases back onto the main list.
// Workers tolerate the resulting redelivery through the resume protocol.
func (q *Queue) Reclaim(ctx context.Context) (int, error) {
	now := fmt.Sprint(time.Now().Unix())
	expired, err := q.rdb.ZRangeByScore(ctx, leaseKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan expired leases: %w", err)
	}

	reclaimed := 0
	for _, raw := range expired {
		removed, err := q.rdb.LRem(ctx, processingKey, 1, raw).Result()
		if err != nil {
			return reclaimed, fmt.Errorf("remove expired delivery: %w", err)
		}
		q.rdb.ZRem(ctx, leaseKey, raw)
		if removed == 0 {
			// Acked between the scan and the removal.
			continue
		}
		if err := q.rdb.LPush(ctx, mainKey, raw).Err(); err != nil {
			return reclaimed, fmt.Errorf("requeue expired delivery: %w", err)
		}
		reclaimed++
	}
	return reclaimed, nil
}
