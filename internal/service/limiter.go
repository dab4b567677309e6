package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const minLimiterIdle = time.Minute

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// callerLimiter keeps one token bucket per caller. Buckets idle long enough
// to have refilled completely are dropped, since a fresh bucket behaves the
// same.
type callerLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu        sync.Mutex
	entries   map[string]*limiterEntry
	nextSweep time.Time
}

func newCallerLimiter(limit rate.Limit, burst int) *callerLimiter {
	idle := minLimiterIdle
	if limit != rate.Inf && limit > 0 {
		refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second))
		if refill > idle {
			idle = refill
		}
	}
	return &callerLimiter{
		limit:   limit,
		burst:   burst,
		idle:    idle,
		entries: make(map[string]*limiterEntry),
	}
}

func (c *callerLimiter) allow(caller string, now time.Time) bool {
	if c.limit == rate.Inf {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !now.Before(c.nextSweep) {
		c.sweep(now)
		c.nextSweep = now.Add(c.idle)
	}

	e, ok := c.entries[caller]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(c.limit, c.burst)}
		c.entries[caller] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

func (c *callerLimiter) sweep(now time.Time) {
	for caller, e := range c.entries {
		if now.Sub(e.lastSeen) >= c.idle {
			delete(c.entries, caller)
		}
	}
}

func (c *callerLimiter) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
