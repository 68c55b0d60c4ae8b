package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/storecrawler/internal/crawler"
)

const testStream = "storecrawler_test"

func newTestPublisher(t *testing.T) (*RedisPublisher, *redis.Client) {
	t.Helper()
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 0})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		t.Skip("Redis is not available, skipping test")
	}
	client.Del(ctx, testStream+":0")

	p := NewRedisPublisher("localhost:6379", 0, testStream, 1, 2)
	t.Cleanup(func() {
		client.Del(ctx, testStream+":0")
		p.Close()
		client.Close()
	})
	return p, client
}

func decode(t *testing.T, msg redis.XMessage, field string) Envelope {
	t.Helper()
	raw, ok := msg.Values[field].(string)
	require.True(t, ok, "missing field %s", field)

	data, err := base64.StdEncoding.DecodeString(raw)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestRedisPublisherProducts(t *testing.T) {
	p, client := newTestPublisher(t)
	ctx := context.Background()

	products := []crawler.ProductRecord{
		{Title: "A", Link: "https://x/a.html", Price: "EGP 1"},
		{Title: "B", Link: "https://x/b.html"},
	}
	require.NoError(t, p.PublishProducts(ctx, "https://x/list.html", products))

	msgs, err := client.XRange(ctx, testStream+":0", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	env := decode(t, msgs[0], "b64_product")
	assert.Equal(t, KindProduct, env.Kind)
	assert.Equal(t, "https://x/list.html", env.Source)
	assert.Equal(t, 1, env.Position)
	require.NotNil(t, env.Product)
	assert.Equal(t, products[0], *env.Product)

	assert.Equal(t, 2, decode(t, msgs[1], "b64_product").Position)
}

func TestRedisPublisherSliderAndTrim(t *testing.T) {
	p, client := newTestPublisher(t)
	ctx := context.Background()

	require.NoError(t, p.PublishSliderImages(ctx, "https://x/", []string{"/s1.jpg", "/s2.jpg", "/s3.jpg"}))
	require.NoError(t, p.PublishSliderImages(ctx, "https://x/", nil))

	n, err := client.XLen(ctx, testStream+":0").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, p.TrimStreams(ctx))

	msgs, err := client.XRange(ctx, testStream+":0", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "/s3.jpg", decode(t, msgs[1], "b64_slider_image").ImageURL)
}
