// Package scraper implements the resilient extraction core for the
// Mercado Agroganadero site: a retrying fetcher, the JSON category
// pipeline and the HTML dashboard pipeline.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/agrodatos/mag-scraper/config"
	"github.com/agrodatos/mag-scraper/models"
	"github.com/gocolly/colly/v2"
)

// FetchOptions tunes one fetch call.
type FetchOptions struct {
	// MaxAttempts overrides the configured attempt budget when positive.
	MaxAttempts int
	// Validate checks the payload of a 2xx response. A validation failure
	// is classified MalformedResponse.
	Validate func([]byte) error
	// RetryMalformed retries malformed payloads instead of failing
	// immediately. True for the JSON endpoint, false for HTML.
	RetryMalformed bool
}

type capture struct {
	body       []byte
	statusCode int
	err        error
}

// Fetcher issues GET requests with bounded retries and exponential
// backoff. It is not safe for concurrent use: the run is sequential by
// design and the collector callbacks write into per-call capture state.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	metrics   *Metrics
	sleep     func(time.Duration)

	current *capture
}

// NewFetcher builds a fetcher whose session headers and timeout come from
// cfg.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		metrics:   metrics,
		sleep:     time.Sleep,
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", cfg.Accept)
		r.Headers.Set("Accept-Language", cfg.AcceptLanguage)
		r.Headers.Set("Referer", cfg.BaseURL+"/")
	})
	collector.OnResponse(func(r *colly.Response) {
		if f.current == nil {
			return
		}
		f.current.body = r.Body
		f.current.statusCode = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		if f.current == nil {
			return
		}
		if r != nil {
			f.current.statusCode = r.StatusCode
		}
		f.current.err = err
	})

	return f, nil
}

// WithTransport swaps the underlying transport. Test hook.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch issues the request up to the attempt budget, sleeping
// base*2^attemptIndex before each retry. It returns either a result or a
// *FetchError; no other failure escapes this boundary.
func (f *Fetcher) Fetch(ctx context.Context, fetchURL string, opts FetchOptions) (*models.FetchResult, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = f.cfg.MaxAttempts
	}

	attempts := 0
	var lastKind FailureKind
	var lastErr error

	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			delay := f.backoff(i - 1)
			slog.Debug("retrying fetch",
				slog.String("url", fetchURL),
				slog.Int("attempt", i+1),
				slog.Duration("delay", delay),
			)
			f.metrics.IncRetries()
			f.sleep(delay)
		}
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{Kind: KindFatal, URL: fetchURL, Attempts: attempts, Err: err}
		}

		attempts++
		rec := &capture{}
		f.current = rec
		start := time.Now()
		visitErr := f.collector.Visit(fetchURL)
		f.metrics.ObserveDuration(time.Since(start))
		f.current = nil

		err := rec.err
		if err == nil {
			err = visitErr
		}

		if err == nil {
			if opts.Validate != nil {
				if verr := opts.Validate(rec.body); verr != nil {
					f.metrics.IncRequest("malformed")
					if !opts.RetryMalformed {
						f.metrics.IncError(string(KindMalformedResponse))
						return nil, &FetchError{Kind: KindMalformedResponse, URL: fetchURL, Attempts: attempts, Err: verr}
					}
					slog.Warn("malformed payload",
						slog.String("url", fetchURL),
						slog.Int("attempt", attempts),
						slog.Any("error", verr),
					)
					lastKind, lastErr = KindMalformedResponse, verr
					continue
				}
			}
			f.metrics.IncRequest("success")
			return &models.FetchResult{
				Body:       rec.body,
				StatusCode: rec.statusCode,
				Attempts:   attempts,
			}, nil
		}

		if rec.statusCode >= 400 {
			err = statusError(rec.statusCode)
		}
		kind := classify(rec.statusCode)
		if kind == KindFatal {
			f.metrics.IncRequest("fatal")
			f.metrics.IncError(string(KindFatal))
			return nil, &FetchError{Kind: KindFatal, URL: fetchURL, Attempts: attempts, Err: err}
		}

		f.metrics.IncRequest(transientLabel(err, rec.statusCode))
		slog.Warn("request failed",
			slog.String("url", fetchURL),
			slog.Int("attempt", attempts),
			slog.Int("status", rec.statusCode),
			slog.Any("error", err),
		)
		lastKind, lastErr = kind, err
	}

	f.metrics.IncError(string(lastKind))
	return nil, &FetchError{Kind: lastKind, URL: fetchURL, Attempts: attempts, Err: lastErr}
}

func (f *Fetcher) backoff(attemptIndex int) time.Duration {
	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<attemptIndex)
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
