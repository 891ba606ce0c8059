package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	assertion := assert.New(t)
	c := NewTTLCache()

	c.Set("asset", "BTCUSDT", time.Minute)
	v, ok := c.Get("asset")
	assertion.True(ok)
	assertion.Equal("BTCUSDT", v)

	_, ok = c.Get("missing")
	assertion.False(ok)
}

func TestTTLCacheExpiry(t *testing.T) {
	assertion := assert.New(t)
	c := NewTTLCache()

	c.Set("quote", 42.5, 20*time.Millisecond)
	_, ok := c.Get("quote")
	assertion.True(ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get("quote")
	assertion.False(ok)
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	assertion := assert.New(t)
	c := NewTTLCache()

	c.Set("pinned", "keep", 0)
	time.Sleep(10 * time.Millisecond)

	v, ok := c.Get("pinned")
	assertion.True(ok)
	assertion.Equal("keep", v)
}

func TestTTLCacheDelete(t *testing.T) {
	assertion := assert.New(t)
	c := NewTTLCache()

	c.Set("gone", 1, time.Minute)
	c.Delete("gone")

	_, ok := c.Get("gone")
	assertion.False(ok)
}

func TestTTLCacheBytes(t *testing.T) {
	assertion := assert.New(t)
	c := NewTTLCache()

	assertion.NoError(c.SetBytes("payload", []byte(`[1,2,3]`), time.Minute))
	b, ok, err := c.GetBytes("payload")
	assertion.NoError(err)
	assertion.True(ok)
	assertion.Equal([]byte(`[1,2,3]`), b)

	_, ok, err = c.GetBytes("missing")
	assertion.NoError(err)
	assertion.False(ok)

	c.Set("text", "not bytes", time.Minute)
	_, ok, err = c.GetBytes("text")
	assertion.NoError(err)
	assertion.False(ok)
}
