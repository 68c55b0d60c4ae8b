package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"sjsage522/storecrawler/internal/crawler"
	"sjsage522/storecrawler/logger"
	"sjsage522/storecrawler/pkg/errors"
)

// RedisPublisher implements Publisher on Redis streams
type RedisPublisher struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
	log             *logger.Logger
}

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
		log:             logger.ForComponent("publisher"),
	}
}

// Ping checks that Redis answers
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return errors.NewPublisher(p.client.Options().Addr, "redis ping failed", err)
	}
	return nil
}

// PublishProducts publishes every product of one listing crawl
func (p *RedisPublisher) PublishProducts(ctx context.Context, source string, products []crawler.ProductRecord) error {
	now := time.Now().UTC()
	envelopes := make([]Envelope, len(products))
	for i := range products {
		envelopes[i] = Envelope{
			Kind:      KindProduct,
			Source:    source,
			Position:  i + 1,
			CrawledAt: now,
			Product:   &products[i],
		}
	}
	return p.publish(ctx, source, envelopes)
}

// PublishSliderImages publishes every image of one slider crawl
func (p *RedisPublisher) PublishSliderImages(ctx context.Context, source string, images []string) error {
	now := time.Now().UTC()
	envelopes := make([]Envelope, len(images))
	for i, src := range images {
		envelopes[i] = Envelope{
			Kind:      KindSlider,
			Source:    source,
			Position:  i + 1,
			CrawledAt: now,
			ImageURL:  src,
		}
	}
	return p.publish(ctx, source, envelopes)
}

// publish sends all envelopes in one pipeline. Each message is JSON, base64
// encoded, stored under the field b64_<kind> of a random stream.
func (p *RedisPublisher) publish(ctx context.Context, source string, envelopes []Envelope) error {
	if len(envelopes) == 0 {
		return nil
	}

	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, env := range envelopes {
			data, err := json.Marshal(env)
			if err != nil {
				return err
			}
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: p.stream(),
				Values: map[string]interface{}{
					"b64_" + env.Kind: base64.StdEncoding.EncodeToString(data),
				},
			})
		}
		return nil
	})
	if err != nil {
		return errors.NewPublisher(source, "failed to publish results", err)
	}

	p.log.Debug().
		Str("source", source).
		Int("messages", len(envelopes)).
		Msg("Published crawl results")
	return nil
}

// stream picks one of <prefix>:0 .. <prefix>:<count-1>
func (p *RedisPublisher) stream() string {
	return p.streamPrefix + ":" + strconv.Itoa(rand.IntN(p.streamCount))
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	streams, err := p.client.Keys(ctx, p.streamPrefix+":*").Result()
	if err != nil {
		return errors.NewPublisher(p.streamPrefix, "failed to list streams", err)
	}

	for _, stream := range streams {
		if err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return errors.NewPublisher(stream, "failed to trim stream", err)
		}
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
