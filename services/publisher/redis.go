package publisher

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/redis/go-redis/v9"

	"sjsage522/dealworker/logger"
)

// RedisPublisher implements Publisher using Redis streams
type RedisPublisher struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
	log             *logger.Logger
}

// Ensure RedisPublisher implements Publisher
var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if streamCount < 1 {
		streamCount = 1
	}

	return &RedisPublisher{
		client:          client,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
		log:             logger.ForPublisher(),
	}
}

// Ping checks the Redis connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish publishes a message to a Redis stream
// The message is base64 encoded before publishing
func (p *RedisPublisher) Publish(ctx context.Context, key string, message []byte) error {
	encodedMessage := base64.StdEncoding.EncodeToString(message)

	// if streamCount is 10, stream name will be deals:0 ~ deals:9
	stream := p.StreamName(rand.Intn(p.streamCount))

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			key: encodedMessage,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}

// StreamName returns the name of the i-th stream
func (p *RedisPublisher) StreamName(i int) string {
	return p.streamPrefix + ":" + strconv.Itoa(i)
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	pattern := p.streamPrefix + ":*"
	streams, err := p.client.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}

	for _, stream := range streams {
		err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Err()
		if err != nil {
			return err
		}
	}

	p.log.Debug().Int("streams", len(streams)).Int("max_length", p.streamMaxLength).Msg("Streams trimmed")
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
