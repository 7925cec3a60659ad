package publisher

import (
	"context"

	"github.com/redis/go-redis/v9"

	"sjsage522/listingworker/logger"
	pkgerrors "sjsage522/listingworker/pkg/errors"
)

// SummaryField is the stream entry field holding the JSON run summary
const SummaryField = "summary"

// RedisPublisher implements Publisher using a capped Redis stream
type RedisPublisher struct {
	client          *redis.Client
	stream          string
	streamMaxLength int
	log             *logger.Logger
}

// Ensure RedisPublisher implements Publisher
var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, stream string, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:          client,
		stream:          stream,
		streamMaxLength: streamMaxLength,
		log:             logger.ForPublisher(),
	}
}

// Ping checks that Redis is reachable
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return pkgerrors.NewPublisher("redis ping failed", err)
	}
	return nil
}

// Publish adds the summary to the stream, trimming it to the configured length
func (p *RedisPublisher) Publish(ctx context.Context, summary []byte) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			SummaryField: string(summary),
		},
	}
	if p.streamMaxLength > 0 {
		args.MaxLen = int64(p.streamMaxLength)
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		p.log.Warn().Err(err).Str("stream", p.stream).Msg("Failed to publish run summary")
		return pkgerrors.NewPublisher("failed to publish run summary to "+p.stream, err)
	}

	p.log.Debug().Str("stream", p.stream).Str("id", id).Msg("Published run summary")
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
