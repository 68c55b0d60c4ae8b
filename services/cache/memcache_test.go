package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")
	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	err := mc.Set("example.com_rate_limited", []byte("300"), 2*time.Second)
	require.NoError(t, err)

	value, err := mc.Get("example.com_rate_limited")
	assert.NoError(t, err)
	assert.Equal(t, "300", string(value))

	assert.NoError(t, mc.Delete("example.com_rate_limited"))

	_, err = mc.Get("example.com_rate_limited")
	assert.ErrorIs(t, err, ErrMiss)

	// deleting an absent key is not an error
	assert.NoError(t, mc.Delete("example.com_rate_limited"))
}

func TestNewMemcacheServiceMultipleServers(t *testing.T) {
	mc := NewMemcacheService("127.0.0.1:11211, 127.0.0.2:11211")
	assert.NotNil(t, mc.client)
}
