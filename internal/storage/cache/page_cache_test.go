package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlatam/indago/internal/common"
)

func TestPageCache(t *testing.T) {
	cache, err := NewPageCache(common.GetLogger(), &common.CacheConfig{
		Path: t.TempDir() + "/pages",
		TTL:  time.Hour,
	})
	require.NoError(t, err)
	defer cache.Close()

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	t.Run("miss on empty cache", func(t *testing.T) {
		_, ok := cache.Get("https://example.com/careers", now)
		assert.False(t, ok)
	})

	t.Run("hit while fresh", func(t *testing.T) {
		require.NoError(t, cache.Put("https://example.com/careers", "<html>jobs</html>", now))
		body, ok := cache.Get("https://example.com/careers", now.Add(30*time.Minute))
		require.True(t, ok)
		assert.Equal(t, "<html>jobs</html>", body)
	})

	t.Run("miss after ttl", func(t *testing.T) {
		_, ok := cache.Get("https://example.com/careers", now.Add(2*time.Hour))
		assert.False(t, ok)
	})

	t.Run("put replaces the entry", func(t *testing.T) {
		require.NoError(t, cache.Put("https://example.com/careers", "<html>new</html>", now.Add(3*time.Hour)))
		body, ok := cache.Get("https://example.com/careers", now.Add(3*time.Hour))
		require.True(t, ok)
		assert.Equal(t, "<html>new</html>", body)
	})
}
