package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FailureKind classifies a fetch or extraction failure and drives the
// retry decision.
type FailureKind string

const (
	// KindTransientNetwork covers timeouts, connection failures and
	// 5xx-class responses. Always retried.
	KindTransientNetwork FailureKind = "transient_network"
	// KindMalformedResponse means the body did not parse as the expected
	// format. Retried for the JSON endpoint, fatal for HTML.
	KindMalformedResponse FailureKind = "malformed_response"
	// KindFatal covers non-retryable client errors (4xx). The fetcher
	// returns immediately without consuming remaining attempts.
	KindFatal FailureKind = "fatal"
	// KindNoData means zero fields or categories resolved.
	KindNoData FailureKind = "no_data"
)

// ErrNoDataFound is returned when an entire run resolved nothing.
var ErrNoDataFound = errors.New("no data found")

// FetchError is the typed failure a fetch returns after exhausting its
// attempts (or aborting early on a fatal error).
type FetchError struct {
	Kind     FailureKind
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s after %d attempt(s): %v", e.URL, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// classify maps a transport error and HTTP status onto a FailureKind.
// Unknown transport errors count as transient: retrying them is safe.
func classify(statusCode int) FailureKind {
	if statusCode >= 500 {
		return KindTransientNetwork
	}
	if statusCode >= 400 {
		return KindFatal
	}
	return KindTransientNetwork
}

// transientLabel names the flavor of a transient failure for metrics and
// logs.
func transientLabel(err error, statusCode int) string {
	if statusCode >= 500 {
		return "server_error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}
	return "network"
}

// statusError mirrors the error colly synthesizes for non-2xx responses.
func statusError(code int) error {
	return fmt.Errorf("http status %d %s", code, http.StatusText(code))
}
