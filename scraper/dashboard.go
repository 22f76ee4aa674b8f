package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/agrodatos/mag-scraper/config"
	"github.com/agrodatos/mag-scraper/extractor"
	"github.com/agrodatos/mag-scraper/models"
)

// DebugSink receives the raw document when a run resolved nothing, for
// offline diagnosis of drifted markup.
type DebugSink interface {
	SaveHTML(name string, body []byte) (string, error)
}

// DashboardScraper drives the HTML pipeline: fetch the homepage, run the
// extraction cascade, assemble the snapshot.
type DashboardScraper struct {
	cfg     *config.Config
	fetcher *Fetcher
	metrics *Metrics
	specs   []extractor.FieldSpec
	debug   DebugSink

	now func() time.Time
}

// NewDashboardScraper builds the dashboard pipeline with the field set of
// the current site revision. debug may be nil.
func NewDashboardScraper(cfg *config.Config, fetcher *Fetcher, metrics *Metrics, debug DebugSink) *DashboardScraper {
	return &DashboardScraper{
		cfg:     cfg,
		fetcher: fetcher,
		metrics: metrics,
		specs:   extractor.DashboardFields(),
		debug:   debug,
		now:     time.Now,
	}
}

// Run produces the persisted dashboard document and the number of fields
// that resolved. Partial resolution is a soft warning; zero resolution
// saves a debug artifact and fails with ErrNoDataFound.
func (s *DashboardScraper) Run(ctx context.Context) (*models.DashboardDocument, int, error) {
	res, err := s.fetcher.Fetch(ctx, s.cfg.BaseURL, FetchOptions{})
	if err != nil {
		return nil, 0, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		// A structurally unparseable HTML body is not retried.
		s.metrics.IncError(string(KindMalformedResponse))
		return nil, 0, &FetchError{
			Kind:     KindMalformedResponse,
			URL:      s.cfg.BaseURL,
			Attempts: res.Attempts,
			Err:      err,
		}
	}

	fields, extractErr := extractor.Extract(doc, s.specs)
	resolved := 0
	for _, field := range fields {
		if field.MatchedBy == "" {
			continue
		}
		resolved++
		s.metrics.IncFieldResolved(field.MatchedBy)
		slog.Debug("field resolved",
			slog.String("field", field.Key),
			slog.String("strategy", field.MatchedBy),
			slog.String("raw", field.RawText),
		)
	}

	if errors.Is(extractErr, extractor.ErrNoData) {
		s.metrics.IncError(string(KindNoData))
		if s.debug != nil {
			if path, saveErr := s.debug.SaveHTML("dashboard", res.Body); saveErr != nil {
				slog.Error("saving debug artifact", slog.Any("error", saveErr))
			} else {
				slog.Info("raw document saved for diagnosis", slog.String("path", path))
			}
		}
		return nil, 0, fmt.Errorf("dashboard: %w", ErrNoDataFound)
	}

	if resolved < len(s.specs) {
		var missing []string
		for _, spec := range s.specs {
			if fields[spec.Key].MatchedBy == "" {
				missing = append(missing, spec.Key)
			}
		}
		slog.Warn("partial dashboard data",
			slog.Int("resolved", resolved),
			slog.Int("configured", len(s.specs)),
			slog.Any("missing", missing),
		)
	} else {
		slog.Info("all dashboard fields resolved", slog.Int("count", resolved))
	}

	now := s.now()
	snap := AssembleSnapshot(fields, s.specs, s.cfg.BaseURL, now)
	return BuildDashboardDocument(snap, now), resolved, nil
}
