package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig controls per-client request limiting on the submit
// endpoint.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

// RateLimiter tracks per-client request counts over a sliding minute.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	clients           map[string]*clientUsage
}

type clientUsage struct {
	requestsLastMinute int
	lastRequestTime    time.Time
}

// NewRateLimiter creates a rate limiter with the given per-minute limit.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		clients:           make(map[string]*clientUsage),
	}
}

// CheckRateLimit checks if a request from the given client is allowed
// and records it if so.
func (rl *RateLimiter) CheckRateLimit(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	usage, exists := rl.clients[clientID]
	if !exists {
		usage = &clientUsage{lastRequestTime: now}
		rl.clients[clientID] = usage
	}

	if now.Sub(usage.lastRequestTime) >= time.Minute {
		usage.requestsLastMinute = 0
	}

	if rl.requestsPerMinute > 0 && usage.requestsLastMinute >= rl.requestsPerMinute {
		return &RateLimitError{
			Limit:      rl.requestsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.lastRequestTime),
		}
	}

	usage.requestsLastMinute++
	usage.lastRequestTime = now
	return nil
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %d/min, retry after: %v)", e.Limit, e.RetryAfter)
}
