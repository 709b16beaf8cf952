package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTL_GetAdd(t *testing.T) {
	c := New[int](2, time.Minute)
	require.NotNil(t, c)

	c.Add("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	c.Add("b", 2)
	c.Add("c", 3)
	_, ok = c.Get("a")
	assert.False(t, ok, "least recently used entry should be evicted")
	assert.Equal(t, 2, c.Len())
}

func TestTTL_Expiry(t *testing.T) {
	c := New[string](10, 30*time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Add("k", "v")
	now = now.Add(29 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTL_PurgeExpired(t *testing.T) {
	c := New[int](10, time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Add("old", 1)
	now = now.Add(2 * time.Second)
	c.Add("new", 2)
	c.PurgeExpired()

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("new")
	assert.True(t, ok)
}

func TestTTL_Seen(t *testing.T) {
	c := New[struct{}](10, 0)
	assert.False(t, c.Seen("sig", struct{}{}))
	assert.True(t, c.Seen("sig", struct{}{}))
}

func TestTTL_NilSafe(t *testing.T) {
	var c *TTL[int]
	c.Add("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, New[int](0, time.Second))
}
