package scheduler

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/ternarybob/vigil/internal/services/browser"
)

// RetryPolicy defines retry behavior with exponential backoff
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

// NewRetryPolicy creates the default retry policy
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// ShouldRetry checks whether a failed run warrants another attempt.
// TLS and client-error navigation failures never retry.
func (p *RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxAttempts {
		return false
	}

	var navErr *browser.NavError
	if errors.As(err, &navErr) {
		return navErr.Retryable()
	}
	return true
}

// Backoff computes the delay before the given attempt (1-based) as
// initial * base^(attempt-1), capped at MaxDelay, with ±50% jitter
// when enabled.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.InitialDelay) * math.Pow(p.ExponentialBase, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter {
		delay += delay * 0.5 * (rand.Float64()*2 - 1)
	}

	if delay < 0 {
		delay = float64(p.InitialDelay)
	}
	return time.Duration(delay)
}
