package services

import (
	"sync"

	"golang.org/x/time/rate"
)

// SubmissionLimiter applies a per-user token bucket to result submission
// endpoints, keeping one noisy operator from starving the pool.
type SubmissionLimiter struct {
	mu       sync.Mutex
	limiters map[uint]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewSubmissionLimiter allows perMinute submissions with the given burst.
func NewSubmissionLimiter(perMinute int, burst int) *SubmissionLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &SubmissionLimiter{
		limiters: make(map[uint]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

// Allow reports whether the user may submit now.
func (l *SubmissionLimiter) Allow(userID uint) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
