package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSink publishes events as JSON messages on Redis pub/sub channels.
// The channel name is the event type, optionally namespaced by a prefix.
// Publish failures are logged and swallowed: there are no subscribers this
// subsystem depends on for correctness.
type RedisSink struct {
	redis  redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewRedisSink creates a [RedisSink]. prefix may be empty.
func NewRedisSink(client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{redis: client, prefix: prefix, logger: logger}
}

func (s *RedisSink) topic(eventType string) string {
	if s.prefix == "" {
		return eventType
	}
	return s.prefix + "." + eventType
}

// Emit implements [Sink].
func (s *RedisSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.redis == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("event marshal failed", zap.String("event_type", event.Type), zap.Error(err))
		return
	}

	if err := s.redis.Publish(ctx, s.topic(event.Type), payload).Err(); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", event.Type),
			zap.Error(err))
	}
}
