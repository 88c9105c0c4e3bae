// Package pubsub relays tenant cache invalidation events between service
// instances over Redis Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/shared/goroutine"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

const tenantInvalidateChannel = "atrium:tenant:invalidate"

// InvalidationReason says why a tenant's cached metadata went stale.
type InvalidationReason string

const (
	ReasonCredentialsRotated InvalidationReason = "credentials_rotated"
	ReasonTenantSuspended    InvalidationReason = "tenant_suspended"
	ReasonTenantDeleted      InvalidationReason = "tenant_deleted"
	ReasonRecordUpdated      InvalidationReason = "record_updated"
)

// TenantInvalidationEvent tells every instance to drop cached metadata and
// pooled connections for a tenant. An empty TenantID means flush everything.
type TenantInvalidationEvent struct {
	TenantID   string             `json:"tenant_id,omitempty"`
	Reason     InvalidationReason `json:"reason"`
	Timestamp  int64              `json:"timestamp"`
	InstanceID string             `json:"instance_id,omitempty"` // Source instance ID to avoid self-delivery
}

// InvalidationPublisher publishes invalidation events across instances.
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, id tenant.ID, reason InvalidationReason) error
}

// InvalidationSubscriber delivers remote invalidation events.
type InvalidationSubscriber interface {
	SubscribeInvalidations(ctx context.Context, handler func(event TenantInvalidationEvent)) error
}

// InvalidationBus combines publisher and subscriber interfaces.
type InvalidationBus interface {
	InvalidationPublisher
	InvalidationSubscriber
}

// RedisInvalidationBus implements InvalidationBus using Redis Pub/Sub.
type RedisInvalidationBus struct {
	client     *redis.Client
	logger     logger.Interface
	instanceID string // Unique ID for this instance to avoid self-delivery
}

// NewRedisInvalidationBus creates a new Redis-based invalidation bus.
func NewRedisInvalidationBus(client *redis.Client, logger logger.Interface) *RedisInvalidationBus {
	return &RedisInvalidationBus{
		client:     client,
		logger:     logger,
		instanceID: uuid.NewString(),
	}
}

// PublishInvalidation publishes an invalidation event to Redis. The
// instance ID is automatically set to avoid self-delivery; the local caches
// are expected to be invalidated by the caller directly.
func (b *RedisInvalidationBus) PublishInvalidation(ctx context.Context, id tenant.ID, reason InvalidationReason) error {
	event := TenantInvalidationEvent{
		TenantID:   string(id),
		Reason:     reason,
		Timestamp:  time.Now().UTC().Unix(),
		InstanceID: b.instanceID,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation event: %w", err)
	}

	if err := b.client.Publish(ctx, tenantInvalidateChannel, data).Err(); err != nil {
		b.logger.Errorw("failed to publish tenant invalidation",
			"tenant_id", id,
			"reason", reason,
			"error", err,
		)
		return fmt.Errorf("failed to publish invalidation event: %w", err)
	}

	b.logger.Debugw("tenant invalidation published to Redis",
		"tenant_id", id,
		"reason", reason,
	)
	return nil
}

// SubscribeInvalidations subscribes to invalidation events from Redis.
// Events published by this instance are automatically filtered out.
func (b *RedisInvalidationBus) SubscribeInvalidations(ctx context.Context, handler func(event TenantInvalidationEvent)) error {
	return b.subscribeWithReconnect(ctx, tenantInvalidateChannel, func(payload string) {
		var event TenantInvalidationEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			b.logger.Warnw("failed to unmarshal invalidation event",
				"payload", payload,
				"error", err,
			)
			return
		}

		// Skip events from own instance, the local caches are already clean
		if event.InstanceID == b.instanceID {
			return
		}

		handler(event)
	})
}

// subscribeWithReconnect wraps subscribe with automatic reconnection and exponential backoff.
func (b *RedisInvalidationBus) subscribeWithReconnect(ctx context.Context, channel string, handler func(payload string)) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		err := b.subscribe(ctx, channel, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b.logger.Warnw("invalidation subscription disconnected, reconnecting",
			"channel", channel,
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

// subscribe is a generic Redis Pub/Sub subscriber.
func (b *RedisInvalidationBus) subscribe(ctx context.Context, channel string, handler func(payload string)) error {
	pubsub := b.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	_, err := pubsub.Receive(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}

	b.logger.Infow("subscribed to invalidation channel",
		"channel", channel,
	)

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			b.logger.Infow("invalidation subscriber stopped",
				"channel", channel,
				"reason", ctx.Err(),
			)
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				b.logger.Warnw("invalidation channel closed",
					"channel", channel,
				)
				return nil
			}

			goroutine.SafeGo(b.logger, "tenant-invalidation-handler", func() {
				handler(msg.Payload)
			})
		}
	}
}
