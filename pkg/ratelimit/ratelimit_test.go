package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestFixedWindow_AllowsUpToMax(t *testing.T) {
	clock := newClock()
	l := NewFixedWindow(20, 5*time.Minute, WithClock(clock.Now))

	for i := 1; i <= 20; i++ {
		res := l.Allow("10.0.0.1")
		require.True(t, res.Allowed, "hit %d", i)
		assert.Equal(t, 20, res.Limit)
		assert.Equal(t, 20-i, res.Remaining)
	}

	res := l.Allow("10.0.0.1")
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, clock.Now().Add(5*time.Minute), res.ResetAt)
}

func TestFixedWindow_KeysAreIndependent(t *testing.T) {
	l := NewFixedWindow(1, time.Minute, WithClock(newClock().Now))

	assert.True(t, l.Allow("a").Allowed)
	assert.False(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("b").Allowed)
}

func TestFixedWindow_ResetsAfterWindow(t *testing.T) {
	clock := newClock()
	l := NewFixedWindow(2, 5*time.Minute, WithClock(clock.Now))

	l.Allow("ip")
	l.Allow("ip")
	assert.False(t, l.Allow("ip").Allowed)

	clock.Advance(4*time.Minute + 59*time.Second)
	assert.False(t, l.Allow("ip").Allowed)

	clock.Advance(time.Second)
	res := l.Allow("ip")
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestFixedWindow_Sweep(t *testing.T) {
	clock := newClock()
	l := NewFixedWindow(5, time.Minute, WithClock(clock.Now))

	l.Allow("old")
	clock.Advance(30 * time.Second)
	l.Allow("new")

	clock.Advance(31 * time.Second)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestFixedWindow_Concurrent(t *testing.T) {
	l := NewFixedWindow(100, time.Minute, WithClock(newClock().Now))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 250; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
}

func BenchmarkFixedWindow_Allow(b *testing.B) {
	l := NewFixedWindow(b.N+1, time.Minute)
	keys := make([]string, 64)
	for i := range keys {
		keys[i] = fmt.Sprintf("10.0.0.%d", i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Allow(keys[i%len(keys)])
	}
}
