package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const DefaultChannelPrefix = "kiosk:fanout:"

// RedisRelay carries events between the orders service and every gateway
// instance. Publish is used by the producer side; Run by each gateway.
type RedisRelay struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedisRelay(client *redis.Client, prefix string, logger *zap.Logger) *RedisRelay {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisRelay{client: client, prefix: prefix, logger: logger}
}

func (r *RedisRelay) Publish(ctx context.Context, group string, e Event) error {
	payload, err := Encode(e)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.prefix+group, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", group, err)
	}
	return nil
}

// Run forwards relayed events into hub until ctx ends. ready, if not nil,
// is closed once the subscription is confirmed by the server.
func (r *RedisRelay) Run(ctx context.Context, hub *Hub, ready chan<- struct{}) error {
	sub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	r.logger.Info("fan-out relay subscribed", zap.String("pattern", r.prefix+"*"))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			group := strings.TrimPrefix(msg.Channel, r.prefix)
			if !json.Valid([]byte(msg.Payload)) {
				r.logger.Warn("discarding malformed relay payload", zap.String("group", group))
				continue
			}
			hub.Broadcast(group, []byte(msg.Payload))
		}
	}
}
