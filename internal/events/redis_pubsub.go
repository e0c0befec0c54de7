package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/metrics"
)

const channelPrefix = "taskmesh:events:"

// RedisPublisher publishes lifecycle events over Redis pub/sub, one
// channel per event type, for the admin dashboard's websocket feed to
// relay to connected clients.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps an already-constructed Redis client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, event *Event) error {
	start := time.Now()
	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("events.Publish: marshal: %w", err)
	}

	channel := channelPrefix + string(event.Type)
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		metrics.RecordRedisError("publish")
		return fmt.Errorf("events.Publish: %w", err)
	}
	metrics.RecordRedisOperation("publish", time.Since(start).Seconds())

	logger.WithComponent("events").Debug().Str("type", string(event.Type)).Str("channel", channel).Msg("event published")
	return nil
}

// Subscribe opens a channel streaming every event across all types,
// used by internal/adminapi to feed its websocket hub.
func (p *RedisPublisher) Subscribe(ctx context.Context) (<-chan *Event, error) {
	pubsub := p.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		metrics.RecordRedisError("subscribe")
		return nil, fmt.Errorf("events.Subscribe: %w", err)
	}

	out := make(chan *Event, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		log := logger.WithComponent("events")

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				event, err := FromJSON([]byte(msg.Payload))
				if err != nil {
					log.Error().Err(err).Msg("failed to parse event")
					continue
				}
				select {
				case out <- event:
				default:
					log.Warn().Str("type", string(event.Type)).Msg("event channel full, dropping event")
				}
			}
		}
	}()

	return out, nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
