package publisher

import (
	"context"
	"math/rand/v2"
	"strconv"

	"sjsage522/olxworker/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher implements Publisher on top of Redis streams
type RedisPublisher struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int64
}

// NewRedisPublisher creates a publisher writing to streamCount streams named
// <streamPrefix>:0 .. <streamPrefix>:<streamCount-1>
func NewRedisPublisher(addr string, db int, streamPrefix string, streamCount, streamMaxLength int) *RedisPublisher {
	if streamCount < 1 {
		streamCount = 1
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:          client,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: int64(streamMaxLength),
	}
}

// Ping checks the connection to Redis
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return errors.NewPublisher("redis", "ping failed", err)
	}
	return nil
}

// Stream returns the name of shard n
func (p *RedisPublisher) Stream(n int) string {
	return p.streamPrefix + ":" + strconv.Itoa(n)
}

// Publish appends message to a randomly chosen shard. Consumers read the
// JSON document from the field named key.
func (p *RedisPublisher) Publish(ctx context.Context, key string, message []byte) error {
	stream := p.Stream(rand.IntN(p.streamCount))

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			key: string(message),
		},
	}).Err()
	if err != nil {
		return errors.NewPublisher("redis", "xadd to "+stream+" failed", err)
	}
	return nil
}

// TrimStreams trims every shard to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}

	for n := 0; n < p.streamCount; n++ {
		stream := p.Stream(n)
		if err := p.client.XTrimMaxLen(ctx, stream, p.streamMaxLength).Err(); err != nil {
			return errors.NewPublisher("redis", "trim "+stream+" failed", err)
		}
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
