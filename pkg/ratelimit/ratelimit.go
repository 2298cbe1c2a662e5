package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result describes the state of a client's window after a hit.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or rejects a hit for a client key.
type Limiter interface {
	Allow(key string) Result
}

type window struct {
	hits    int
	resetAt time.Time
}

// FixedWindow counts hits per key in windows that start at the key's first
// hit and last for a fixed duration.
type FixedWindow struct {
	max    int
	length time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

type Option func(*FixedWindow)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindow) {
		l.now = now
	}
}

func NewFixedWindow(limit int, length time.Duration, opts ...Option) *FixedWindow {
	l := &FixedWindow{
		max:     limit,
		length:  length,
		now:     time.Now,
		windows: make(map[string]*window),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a hit for key. Rejected hits are counted as well.
func (l *FixedWindow) Allow(key string) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.length)}
		l.windows[key] = w
	}
	w.hits++

	return Result{
		Allowed:   w.hits <= l.max,
		Limit:     l.max,
		Remaining: max(l.max-w.hits, 0),
		ResetAt:   w.resetAt,
	}
}

// Sweep drops expired windows and returns how many were removed.
func (l *FixedWindow) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *FixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Run sweeps every interval until ctx is done.
func (l *FixedWindow) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
