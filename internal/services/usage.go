package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"wandernest-backend/internal/models"
)

// UsageRecorder stores one chat usage record. Failures never affect the reply.
type UsageRecorder interface {
	Record(ctx context.Context, u *models.ChatUsage) error
}

type usageStore interface {
	Create(ctx context.Context, u *models.ChatUsage) error
}

// QueueRecorder pushes records onto the Redis usage queue for the worker pool.
type QueueRecorder struct {
	rdb *redis.Client
}

func NewQueueRecorder(rdb *redis.Client) *QueueRecorder {
	return &QueueRecorder{rdb: rdb}
}

func (q *QueueRecorder) Record(ctx context.Context, u *models.ChatUsage) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal usage: %w", err)
	}
	return q.rdb.LPush(ctx, models.ChatUsageQueue, string(data)).Err()
}

// DirectRecorder writes records straight to the store.
type DirectRecorder struct {
	store usageStore
}

func NewDirectRecorder(store usageStore) *DirectRecorder {
	return &DirectRecorder{store: store}
}

func (d *DirectRecorder) Record(ctx context.Context, u *models.ChatUsage) error {
	return d.store.Create(ctx, u)
}

// NopRecorder discards records.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *models.ChatUsage) error { return nil }
