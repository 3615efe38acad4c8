package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterTTL = 10 * time.Minute

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// Limiter throttles commands per user with independent token buckets.
// Buckets idle for longer than limiterTTL are dropped on the next Allow.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	now      func() time.Time
	lastScan time.Time
}

func NewLimiter(perMinute float64, burst int) *Limiter {
	return &Limiter{
		m:     make(map[string]*limiterEntry),
		limit: rate.Limit(perMinute / 60),
		burst: burst,
		now:   time.Now,
	}
}

func (l *Limiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastScan) > limiterTTL {
		for k, e := range l.m {
			if now.Sub(e.lastSeen) > limiterTTL {
				delete(l.m, k)
			}
		}
		l.lastScan = now
	}
	e, ok := l.m[userID]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(l.limit, l.burst)}
		l.m[userID] = e
	}
	e.lastSeen = now
	return e.l.AllowN(now, 1)
}
