package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NavErrorKind categorizes why a fetch failed
type NavErrorKind string

const (
	NavErrDNS     NavErrorKind = "dns"
	NavErrTLS     NavErrorKind = "tls"
	NavErrHTTP    NavErrorKind = "http"
	NavErrTimeout NavErrorKind = "timeout"
	NavErrRender  NavErrorKind = "render"
)

// NavError is a typed navigation failure. The kind decides retry
// behavior: DNS and timeout failures are retryable, TLS failures are not.
type NavError struct {
	Kind       NavErrorKind
	URL        string
	HTTPStatus int
	Err        error
}

func (e *NavError) Error() string {
	if e.Kind == NavErrHTTP {
		return fmt.Sprintf("navigation failed (%s %d): %s", e.Kind, e.HTTPStatus, e.URL)
	}
	return fmt.Sprintf("navigation failed (%s): %s: %v", e.Kind, e.URL, e.Err)
}

func (e *NavError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the scheduler should retry this failure
func (e *NavError) Retryable() bool {
	switch e.Kind {
	case NavErrDNS, NavErrTimeout, NavErrRender:
		return true
	case NavErrHTTP:
		return e.HTTPStatus == 429 || e.HTTPStatus >= 500
	default:
		return false
	}
}

// classifyNavError maps a chromedp failure onto the error taxonomy
func classifyNavError(url string, err error) *NavError {
	msg := strings.ToLower(err.Error())

	kind := NavErrRender
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		kind = NavErrTimeout
	case strings.Contains(msg, "name_not_resolved") || strings.Contains(msg, "dns"):
		kind = NavErrDNS
	case strings.Contains(msg, "cert") || strings.Contains(msg, "ssl") || strings.Contains(msg, "tls"):
		kind = NavErrTLS
	case strings.Contains(msg, "connection_refused") || strings.Contains(msg, "connection_reset") ||
		strings.Contains(msg, "address_unreachable") || strings.Contains(msg, "internet_disconnected"):
		kind = NavErrDNS
	}

	return &NavError{Kind: kind, URL: url, Err: err}
}
