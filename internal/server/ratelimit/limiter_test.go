package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(perMinute float64, burst int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(perMinute, burst)
	l.now = clock.now
	l.lastSweep = clock.t
	return l, clock
}

func TestAllow_BurstThenRefill(t *testing.T) {
	l, clock := newTestLimiter(6, 2) // one token per 10s

	ok, _ := l.Allow("+886912345678")
	assert.True(t, ok)
	ok, _ = l.Allow("+886912345678")
	assert.True(t, ok)

	ok, retry := l.Allow("+886912345678")
	assert.False(t, ok)
	assert.InDelta(t, float64(10*time.Second), float64(retry), float64(time.Millisecond))

	clock.advance(10 * time.Second)
	ok, _ = l.Allow("+886912345678")
	assert.True(t, ok)
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, 1)

	ok, _ := l.Allow("a@x")
	assert.True(t, ok)
	ok, _ = l.Allow("a@x")
	assert.False(t, ok)

	ok, _ = l.Allow("b@x")
	assert.True(t, ok)
}

func TestAllow_RejectedCallDoesNotConsume(t *testing.T) {
	l, clock := newTestLimiter(6, 1)

	ok, _ := l.Allow("k")
	assert.True(t, ok)
	for i := 0; i < 5; i++ {
		ok, _ = l.Allow("k")
		assert.False(t, ok)
	}

	clock.advance(10 * time.Second)
	ok, _ = l.Allow("k")
	assert.True(t, ok, "denied calls must not push the refill further out")
}

func TestSweep_DropsIdleBuckets(t *testing.T) {
	l, clock := newTestLimiter(60, 1)

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Len())

	clock.advance(11 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Len())
}
