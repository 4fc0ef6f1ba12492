package models

import (
	"fmt"
	"time"
)

const (
	// RateLimitBuffer is the remaining budget below which a batch waits for the reset
	RateLimitBuffer = 100
	// RateLimitGrace is added on top of the reported reset time
	RateLimitGrace = 5 * time.Second
	// RateLimitFallbackWait is used when no usable reset time is known
	RateLimitFallbackWait = 60 * time.Second
	// DefaultRateLimit is GitHub's hourly GraphQL budget for a personal token
	DefaultRateLimit = 5000
)

// RateLimitState is the last rate limit snapshot reported by GitHub.
// It is never persisted; each response replaces it.
type RateLimitState struct {
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"reset_time"`
	Limit     int   `json:"limit"`
	Used      int   `json:"used"`
}

// NewRateLimitState returns the state assumed before the first response
func NewRateLimitState() RateLimitState {
	return RateLimitState{
		Remaining: DefaultRateLimit,
		Limit:     DefaultRateLimit,
	}
}

// ResetTime returns the reset time, zero when unknown
func (s RateLimitState) ResetTime() time.Time {
	if s.ResetAt <= 0 {
		return time.Time{}
	}
	return time.Unix(s.ResetAt, 0)
}

// PreflightWait returns how long to block before the next batch.
// Zero when the remaining budget is at or above the buffer.
func (s RateLimitState) PreflightWait(now time.Time) time.Duration {
	if s.Remaining >= RateLimitBuffer {
		return 0
	}
	reset := s.ResetTime()
	if reset.After(now) {
		return reset.Sub(now) + RateLimitGrace
	}
	return RateLimitFallbackWait
}

// RetryWait returns the wait after a throttled response: until the reset
// plus grace, never less than the fallback wait.
func (s RateLimitState) RetryWait(now time.Time) time.Duration {
	wait := RateLimitFallbackWait
	if reset := s.ResetTime(); !reset.IsZero() {
		if untilReset := reset.Sub(now) + RateLimitGrace; untilReset > wait {
			wait = untilReset
		}
	}
	return wait
}

// PacingDelay spreads batches out as the budget shrinks
func (s RateLimitState) PacingDelay() time.Duration {
	switch {
	case s.Remaining < RateLimitBuffer*2:
		return time.Second
	case s.Remaining < RateLimitBuffer*5:
		return 500 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

func (s RateLimitState) String() string {
	return fmt.Sprintf("%d/%d remaining (used %d, resets %d)", s.Remaining, s.Limit, s.Used, s.ResetAt)
}
