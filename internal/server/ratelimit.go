package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter tracks per-client request rates and daily quotas. All limits
// are optional; a zero limit is never enforced.
type RateLimiter struct {
	mu  sync.Mutex
	cfg RateLimitConfig

	clients map[string]*clientUsage
}

// clientUsage tracks usage for a single client IP.
type clientUsage struct {
	requestsLastMinute int
	requestsToday      int
	dataToday          int64

	lastRequestTime time.Time
	dayStartTime    time.Time
}

// NewRateLimiter creates a rate limiter with the given limits.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientUsage),
	}
}

// Check returns an error if a request from the given client would exceed a
// limit; otherwise it records the request and returns nil.
func (rl *RateLimiter) Check(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &clientUsage{lastRequestTime: now, dayStartTime: now}
		rl.clients[clientID] = usage
	}

	// Reset counters across period boundaries
	if now.Day() != usage.dayStartTime.Day() || now.Month() != usage.dayStartTime.Month() {
		usage.requestsToday = 0
		usage.dataToday = 0
		usage.dayStartTime = now
	}
	if now.Sub(usage.lastRequestTime) >= time.Minute {
		usage.requestsLastMinute = 0
	}

	if rl.cfg.RequestsPerMinute > 0 && usage.requestsLastMinute >= rl.cfg.RequestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      int64(rl.cfg.RequestsPerMinute),
			RetryAfter: time.Minute - now.Sub(usage.lastRequestTime),
		}
	}
	if rl.cfg.MaxRequestsPerDay > 0 && usage.requestsToday >= rl.cfg.MaxRequestsPerDay {
		return &RateLimitError{
			Type:       "requests",
			Limit:      int64(rl.cfg.MaxRequestsPerDay),
			RetryAfter: untilMidnight(now),
		}
	}
	if rl.cfg.MaxDataPerDay > 0 && usage.dataToday+dataSize > rl.cfg.MaxDataPerDay {
		return &RateLimitError{
			Type:       "data",
			Limit:      rl.cfg.MaxDataPerDay,
			RetryAfter: untilMidnight(now),
		}
	}

	usage.requestsLastMinute++
	usage.requestsToday++
	usage.dataToday += dataSize
	usage.lastRequestTime = now
	return nil
}

func untilMidnight(now time.Time) time.Duration {
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return midnight.Sub(now)
}

// RateLimitError represents a rate limit or quota violation.
type RateLimitError struct {
	Type       string        // "minute", "requests" or "data"
	Limit      int64         // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}
