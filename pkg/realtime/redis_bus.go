package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus publishes change events on a Redis pub/sub channel so every instance's hub
// sees writes made by any other instance.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisBus(client *redis.Client, channel string, logger *zap.Logger) (*RedisBus, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if channel == "" {
		channel = "tutorhub:changes"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, channel: channel, logger: logger.Named("realtime_bus")}, nil
}

func (b *RedisBus) Publish(ctx context.Context, event ChangeEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, raw).Err()
}

func (b *RedisBus) StartForwarder(ctx context.Context, onEvent func(ChangeEvent)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var event ChangeEvent
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					b.logger.Warn("bad change event payload", zap.Error(err))
					continue
				}
				onEvent(event)
			}
		}
	}()
	return nil
}

// Close is a no-op; the shared client is owned by the caller.
func (b *RedisBus) Close() error { return nil }
