package engagement

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// VoteCooldown is the minimum spacing between two votes on one target from
// one client session.
const VoteCooldown = 1000 * time.Millisecond

// RateLimiter is the client-local per-target cooldown guard. It is private to
// one session and gives no protection across devices or tabs.
type RateLimiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	now      func() time.Time
	windows  map[string]*window
}

type window struct {
	limiter *rate.Limiter
	last    time.Time
}

// RateLimiterOption customizes a RateLimiter
type RateLimiterOption func(*RateLimiter)

// WithClock sets the time source, used by tests to step through the cooldown
func WithClock(now func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) { r.now = now }
}

// WithCooldown overrides VoteCooldown
func WithCooldown(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) { r.cooldown = d }
}

// NewRateLimiter creates an empty limiter
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		cooldown: VoteCooldown,
		now:      time.Now,
		windows:  make(map[string]*window),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckAndRecord reports whether a vote on targetID may proceed. An allowed
// call records now immediately, whether or not the remote call later succeeds.
func (r *RateLimiter) CheckAndRecord(targetID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w, ok := r.windows[targetID]
	if !ok {
		// burst 1: one token per cooldown period
		w = &window{limiter: rate.NewLimiter(rate.Every(r.cooldown), 1)}
		r.windows[targetID] = w
	}
	if !w.limiter.AllowN(now, 1) {
		return false
	}
	w.last = now
	return true
}

// LastVote returns the recorded timestamp for targetID
func (r *RateLimiter) LastVote(targetID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[targetID]
	if !ok {
		return time.Time{}, false
	}
	return w.last, true
}

// Purge drops windows whose cooldown has fully elapsed and returns how many
// were removed. A purged target behaves exactly like one never voted on.
func (r *RateLimiter) Purge() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, w := range r.windows {
		if now.Sub(w.last) >= r.cooldown {
			delete(r.windows, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked targets
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}
