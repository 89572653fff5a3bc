package browser

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestClassifyNavError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind NavErrorKind
	}{
		{"dns failure", fmt.Errorf("page load error net::ERR_NAME_NOT_RESOLVED"), NavErrDNS},
		{"tls failure", fmt.Errorf("page load error net::ERR_CERT_AUTHORITY_INVALID"), NavErrTLS},
		{"timeout", context.DeadlineExceeded, NavErrTimeout},
		{"timeout message", fmt.Errorf("navigation timed out"), NavErrTimeout},
		{"connection refused", fmt.Errorf("net::ERR_CONNECTION_REFUSED"), NavErrDNS},
		{"render failure", fmt.Errorf("could not find node"), NavErrRender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			navErr := classifyNavError("https://acme.example.com", tt.err)
			assert.Equal(t, tt.kind, navErr.Kind)
			assert.ErrorIs(t, navErr, tt.err)
		})
	}
}

func TestNavErrorRetryable(t *testing.T) {
	assert.True(t, (&NavError{Kind: NavErrDNS}).Retryable())
	assert.True(t, (&NavError{Kind: NavErrTimeout}).Retryable())
	assert.True(t, (&NavError{Kind: NavErrRender}).Retryable())
	assert.False(t, (&NavError{Kind: NavErrTLS}).Retryable())

	assert.True(t, (&NavError{Kind: NavErrHTTP, HTTPStatus: 503}).Retryable())
	assert.True(t, (&NavError{Kind: NavErrHTTP, HTTPStatus: 429}).Retryable())
	assert.False(t, (&NavError{Kind: NavErrHTTP, HTTPStatus: 404}).Retryable())
	assert.False(t, (&NavError{Kind: NavErrHTTP, HTTPStatus: 403}).Retryable())
}

func TestPickUserAgentRotation(t *testing.T) {
	fetcher := NewFetcher(FetcherConfig{
		UserAgents: []string{"ua-one", "ua-two", "ua-three"},
	}, nil, arbor.NewLogger())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[fetcher.pickUserAgent()] = true
	}
	assert.Len(t, seen, 3, "all configured user agents should rotate in")
}

func TestPickUserAgentDefault(t *testing.T) {
	fetcher := NewFetcher(FetcherConfig{}, nil, arbor.NewLogger())
	assert.Contains(t, fetcher.pickUserAgent(), "Mozilla/5.0")
}

func TestBlockedPatterns(t *testing.T) {
	fetcher := NewFetcher(FetcherConfig{
		BlockedResources: []string{"images", "fonts", "*.css"},
	}, nil, arbor.NewLogger())

	patterns := fetcher.blockedPatterns()
	assert.Contains(t, patterns, "*.png")
	assert.Contains(t, patterns, "*.woff2")
	assert.Contains(t, patterns, "*.css")
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	pool := NewPool(PoolConfig{PoolSize: 1}, arbor.NewLogger())

	// pool never started: Acquire must respect the caller's deadline
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := pool.Acquire(ctx)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
