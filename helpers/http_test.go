package helpers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/storecrawler/logger"
	"sjsage522/storecrawler/pkg/errors"
	"sjsage522/storecrawler/services/cache"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{cache: make(map[string][]byte)}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	delete(m.cache, key)
	return nil
}

// failingCache refuses every write
type failingCache struct {
	*MockCacheService
}

func (failingCache) Set(string, []byte, time.Duration) error {
	return fmt.Errorf("memcache: no servers configured or available")
}

// captureLogs points the default logger at a buffer until the test ends
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logger.Default
	logger.Default = logger.New(&buf)
	t.Cleanup(func() { logger.Default = prev })
	return &buf
}

func testFetcher(opts FetcherOptions) *Fetcher {
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	return NewFetcher(opts)
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SmartCrawler/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello, World!</body></html>"))
	}))
	defer server.Close()

	body, err := testFetcher(FetcherOptions{}).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Hello, World!")
}

func TestFetchNonUTF8(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.WriteHeader(http.StatusOK)
		// "Café" in ISO-8859-1
		w.Write([]byte("<html><body>Caf\xe9</body></html>"))
	}))
	defer server.Close()

	body, err := testFetcher(FetcherOptions{}).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Café")
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	body, err := testFetcher(FetcherOptions{Attempts: 3}).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ok")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchExhaustsRetriesWithLinearBackoff(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewFetcher(FetcherOptions{Attempts: 3, Backoff: 20 * time.Millisecond})

	start := time.Now()
	_, err := f.Fetch(context.Background(), server.URL)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.IsFetchFailed(err))
	assert.Contains(t, err.Error(), "status 503")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	// 20ms after the first attempt, 40ms after the second
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestFetchClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testFetcher(FetcherOptions{}).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.IsFetchFailed(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchRateLimitBlocksHost(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	mockCache := NewMockCacheService()
	f := testFetcher(FetcherOptions{Cache: mockCache, BlockTime: time.Minute})

	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
	assert.Len(t, mockCache.cache, 1)

	// second call is refused without a request
	_, err = f.Fetch(context.Background(), server.URL+"/other")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := testFetcher(FetcherOptions{Attempts: 2}).Fetch(context.Background(), url)
	require.Error(t, err)
	assert.True(t, errors.IsFetchFailed(err))
}

func TestProbe(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	page, err := testFetcher(FetcherOptions{}).Probe(context.Background(), server.URL+"/feed")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, page.StatusCode)
	assert.Equal(t, "application/rss+xml", page.ContentType)
	// probes never retry
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchLogsOnlyRetriesThatHappen(t *testing.T) {
	logs := captureLogs(t)

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testFetcher(FetcherOptions{Attempts: 3}).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	// two retries follow the first and second attempts, none the third
	assert.Equal(t, 2, strings.Count(logs.String(), "Fetch attempt failed, retrying"))
}

func TestFetchRateLimitCacheFailure(t *testing.T) {
	logs := captureLogs(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f := testFetcher(FetcherOptions{Cache: failingCache{NewMockCacheService()}})

	_, err := f.Fetch(context.Background(), server.URL)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
	assert.Contains(t, logs.String(), "Host not blocked")
	assert.Contains(t, logs.String(), "[cache]")
}
