package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/agrodatos/mag-scraper/config"
	"github.com/jarcoal/httpmock"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.MaxAttempts = 3
	cfg.RetryBackoff = 100 * time.Millisecond
	cfg.RetryBackoffMax = 10 * time.Second
	cfg.CategoryPause = 0
	return cfg
}

func newTestFetcher(t *testing.T, cfg *config.Config) (*Fetcher, *httpmock.MockTransport, *[]time.Duration) {
	t.Helper()

	f, err := NewFetcher(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	transport := httpmock.NewMockTransport()
	f.WithTransport(transport)

	var sleeps []time.Duration
	f.sleep = func(d time.Duration) {
		sleeps = append(sleeps, d)
	}
	return f, transport, &sleeps
}

func validateJSON(body []byte) error {
	if !json.Valid(body) {
		return fmt.Errorf("not valid json")
	}
	return nil
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	cfg := testConfig()
	f, transport, sleeps := newTestFetcher(t, cfg)

	url := cfg.BaseURL + "/data"
	calls := 0
	transport.RegisterResponder("GET", url, func(req *http.Request) (*http.Response, error) {
		calls++
		if calls <= 2 {
			return httpmock.NewStringResponse(http.StatusInternalServerError, "oops"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, `{"ok":true}`), nil
	})

	res, err := f.Fetch(context.Background(), url, FetchOptions{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}
	if calls != 3 {
		t.Fatalf("transport calls = %d, want 3", calls)
	}

	want := []time.Duration{cfg.RetryBackoff, 2 * cfg.RetryBackoff}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Fatalf("sleep[%d] = %v, want %v", i, (*sleeps)[i], d)
		}
	}
}

func TestFetchClientErrorIsFatal(t *testing.T) {
	cfg := testConfig()
	f, transport, sleeps := newTestFetcher(t, cfg)

	url := cfg.BaseURL + "/missing"
	calls := 0
	transport.RegisterResponder("GET", url, func(req *http.Request) (*http.Response, error) {
		calls++
		return httpmock.NewStringResponse(http.StatusNotFound, ""), nil
	})

	_, err := f.Fetch(context.Background(), url, FetchOptions{})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != KindFatal {
		t.Fatalf("kind = %s, want %s", fe.Kind, KindFatal)
	}
	if fe.Attempts != 1 || calls != 1 {
		t.Fatalf("attempts = %d, calls = %d, want 1 each", fe.Attempts, calls)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("no backoff expected for fatal error, got %v", *sleeps)
	}
}

func TestFetchExhaustsAttemptsOnServerErrors(t *testing.T) {
	cfg := testConfig()
	f, transport, _ := newTestFetcher(t, cfg)

	url := cfg.BaseURL + "/flaky"
	transport.RegisterResponder("GET", url, httpmock.NewStringResponder(http.StatusBadGateway, ""))

	_, err := f.Fetch(context.Background(), url, FetchOptions{})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != KindTransientNetwork {
		t.Fatalf("kind = %s, want %s", fe.Kind, KindTransientNetwork)
	}
	if fe.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", fe.Attempts)
	}
}

func TestFetchMalformedRetriedForJSON(t *testing.T) {
	cfg := testConfig()
	f, transport, _ := newTestFetcher(t, cfg)

	url := cfg.BaseURL + "/chart"
	calls := 0
	transport.RegisterResponder("GET", url, func(req *http.Request) (*http.Response, error) {
		calls++
		return httpmock.NewStringResponse(http.StatusOK, "<html>not json</html>"), nil
	})

	_, err := f.Fetch(context.Background(), url, FetchOptions{
		Validate:       validateJSON,
		RetryMalformed: true,
	})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != KindMalformedResponse {
		t.Fatalf("kind = %s, want %s", fe.Kind, KindMalformedResponse)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestFetchMalformedNotRetriedWhenDisabled(t *testing.T) {
	cfg := testConfig()
	f, transport, _ := newTestFetcher(t, cfg)

	url := cfg.BaseURL + "/page"
	calls := 0
	transport.RegisterResponder("GET", url, func(req *http.Request) (*http.Response, error) {
		calls++
		return httpmock.NewStringResponse(http.StatusOK, "garbage"), nil
	})

	_, err := f.Fetch(context.Background(), url, FetchOptions{
		Validate:       validateJSON,
		RetryMalformed: false,
	})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != KindMalformedResponse {
		t.Fatalf("kind = %s, want %s", fe.Kind, KindMalformedResponse)
	}
	if fe.Attempts != 1 || calls != 1 {
		t.Fatalf("attempts = %d, calls = %d, want 1 each", fe.Attempts, calls)
	}
}

func TestFetchSendsSessionHeaders(t *testing.T) {
	cfg := testConfig()
	f, transport, _ := newTestFetcher(t, cfg)

	url := cfg.BaseURL + "/headers"
	var got http.Header
	transport.RegisterResponder("GET", url, func(req *http.Request) (*http.Response, error) {
		got = req.Header.Clone()
		return httpmock.NewStringResponse(http.StatusOK, "{}"), nil
	})

	if _, err := f.Fetch(context.Background(), url, FetchOptions{}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Get("Accept") != cfg.Accept {
		t.Fatalf("accept header = %q, want %q", got.Get("Accept"), cfg.Accept)
	}
	if got.Get("Accept-Language") != cfg.AcceptLanguage {
		t.Fatalf("accept-language header = %q", got.Get("Accept-Language"))
	}
	if got.Get("User-Agent") != cfg.UserAgent {
		t.Fatalf("user-agent header = %q", got.Get("User-Agent"))
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := testConfig()
	cfg.RetryBackoff = 200 * time.Millisecond
	cfg.RetryBackoffMax = 500 * time.Millisecond

	f, _, _ := newTestFetcher(t, cfg)
	if delay := f.backoff(4); delay != cfg.RetryBackoffMax {
		t.Fatalf("delay = %v, want capped at %v", delay, cfg.RetryBackoffMax)
	}
	if delay := f.backoff(0); delay != cfg.RetryBackoff {
		t.Fatalf("delay = %v, want base %v", delay, cfg.RetryBackoff)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       FailureKind
	}{
		{name: "server error", statusCode: http.StatusInternalServerError, want: KindTransientNetwork},
		{name: "bad gateway", statusCode: http.StatusBadGateway, want: KindTransientNetwork},
		{name: "not found", statusCode: http.StatusNotFound, want: KindFatal},
		{name: "forbidden", statusCode: http.StatusForbidden, want: KindFatal},
		{name: "transport failure", statusCode: 0, want: KindTransientNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.statusCode); got != tt.want {
				t.Fatalf("classify(%d) = %s, want %s", tt.statusCode, got, tt.want)
			}
		})
	}
}

func TestTransientLabel(t *testing.T) {
	if got := transientLabel(context.DeadlineExceeded, 0); got != "timeout" {
		t.Fatalf("label = %q, want timeout", got)
	}
	if got := transientLabel(nil, http.StatusInternalServerError); got != "server_error" {
		t.Fatalf("label = %q, want server_error", got)
	}
}
