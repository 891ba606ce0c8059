package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterBurstThenThrottle(t *testing.T) {
	assertion := assert.New(t)
	l := New()

	assertion.True(l.Allow("BTCUSDT", 2, 0.001))
	assertion.True(l.Allow("BTCUSDT", 2, 0.001))
	assertion.False(l.Allow("BTCUSDT", 2, 0.001))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	assertion := assert.New(t)
	l := New()

	assertion.True(l.Allow("BTCUSDT", 1, 0.001))
	assertion.False(l.Allow("BTCUSDT", 1, 0.001))
	assertion.True(l.Allow("ETHUSDT", 1, 0.001))
}

func TestLimiterRefills(t *testing.T) {
	assertion := assert.New(t)
	l := New()

	assertion.True(l.Allow("SOLUSDT", 1, 50))
	assertion.False(l.Allow("SOLUSDT", 1, 50))

	time.Sleep(40 * time.Millisecond)
	assertion.True(l.Allow("SOLUSDT", 1, 50))
}

func TestLimiterReset(t *testing.T) {
	assertion := assert.New(t)
	l := New()

	assertion.True(l.Allow("XRPUSDT", 1, 0.001))
	assertion.False(l.Allow("XRPUSDT", 1, 0.001))

	l.Reset("XRPUSDT")
	assertion.True(l.Allow("XRPUSDT", 1, 0.001))
}
