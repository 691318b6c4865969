package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// VoteThrottle is the server-side token bucket per actor. The client
// cooldown is advisory; this bounds what a misbehaving client can submit.
type VoteThrottle struct {
	mu       sync.Mutex
	limiters map[string]*throttleEntry
	rate     rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type throttleEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewVoteThrottle allows perSecond votes per actor with the given burst
func NewVoteThrottle(perSecond float64, burst int) *VoteThrottle {
	return &VoteThrottle{
		limiters: make(map[string]*throttleEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow consumes one token for the actor
func (t *VoteThrottle) Allow(actorID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e, ok := t.limiters[actorID]
	if !ok {
		e = &throttleEntry{limiter: rate.NewLimiter(t.rate, t.burst)}
		t.limiters[actorID] = e
	}
	e.seen = now
	return e.limiter.AllowN(now, 1)
}

// Cleanup drops limiters for actors idle longer than the idle window
func (t *VoteThrottle) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	now := t.now()
	for id, e := range t.limiters {
		if now.Sub(e.seen) > t.idle {
			delete(t.limiters, id)
			removed++
		}
	}
	return removed
}

// Run cleans up idle limiters every interval until ctx is done
func (t *VoteThrottle) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Cleanup()
		}
	}
}
