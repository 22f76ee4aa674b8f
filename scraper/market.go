package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/agrodatos/mag-scraper/config"
	"github.com/agrodatos/mag-scraper/models"
)

// chartPayload is the shape of the undocumented chartjs endpoint: parallel
// label/value arrays keyed by category class.
type chartPayload struct {
	Labels []string      `json:"labels"`
	Data   []chartSeries `json:"data"`
}

type chartSeries struct {
	Vals []float64 `json:"vals"`
}

// MarketScraper drives the JSON category pipeline: one chartjs request per
// configured livestock category, each independent of the others.
type MarketScraper struct {
	cfg     *config.Config
	fetcher *Fetcher
	metrics *Metrics

	pause func(time.Duration)
	now   func() time.Time
}

// NewMarketScraper builds the category pipeline on top of an existing
// fetcher.
func NewMarketScraper(cfg *config.Config, fetcher *Fetcher, metrics *Metrics) *MarketScraper {
	return &MarketScraper{
		cfg:     cfg,
		fetcher: fetcher,
		metrics: metrics,
		pause:   time.Sleep,
		now:     time.Now,
	}
}

// Run fetches every configured category. Per-category failures are
// contained: the run only fails when zero categories succeed; a partial
// result is logged as a warning and still returned.
func (s *MarketScraper) Run(ctx context.Context) (*models.MarketDocument, error) {
	doc := &models.MarketDocument{
		Metadata:   buildMetadata(s.cfg.BaseURL, s.now(), false),
		Categorias: make(map[string]*models.CategoryRecord, len(s.cfg.Categories)),
	}

	names := make([]string, 0, len(s.cfg.Categories))
	for name := range s.cfg.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		if i > 0 && s.cfg.CategoryPause > 0 {
			s.pause(s.cfg.CategoryPause)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("market run interrupted: %w", err)
		}

		url := s.categoryURL(s.cfg.Categories[name])
		slog.Info("fetching category", slog.String("category", name))

		res, err := s.fetcher.Fetch(ctx, url, FetchOptions{
			Validate:       validateChart,
			RetryMalformed: true,
		})
		if err != nil {
			slog.Warn("category fetch failed",
				slog.String("category", name),
				slog.Any("error", err),
			)
			s.metrics.IncCategory("failed")
			continue
		}

		record := MapCategory(res.Body, name)
		if record == nil {
			slog.Warn("category payload incomplete, skipping",
				slog.String("category", name),
				slog.Int("attempts", res.Attempts),
			)
			s.metrics.IncCategory("skipped")
			continue
		}

		doc.Categorias[name] = record
		s.metrics.IncCategory("ok")
		slog.Info("category scraped",
			slog.String("category", name),
			slog.Int("points", len(record.Labels)),
			slog.Int("attempts", res.Attempts),
		)
	}

	got, want := len(doc.Categorias), len(names)
	switch {
	case got == 0:
		s.metrics.IncError(string(KindNoData))
		return nil, fmt.Errorf("market: zero categories scraped: %w", ErrNoDataFound)
	case got < want:
		slog.Warn("partial market data",
			slog.Int("scraped", got),
			slog.Int("configured", want),
		)
	default:
		slog.Info("all categories scraped", slog.Int("count", got))
	}

	return doc, nil
}

// MapCategory reshapes a chartjs payload into a category record. It
// returns nil when the payload violates the expected shape (missing or
// empty labels/data); the caller logs and skips the category.
func MapCategory(payload []byte, categoria string) *models.CategoryRecord {
	var chart chartPayload
	if err := json.Unmarshal(payload, &chart); err != nil {
		return nil
	}
	if len(chart.Labels) == 0 || len(chart.Data) == 0 {
		return nil
	}

	record := &models.CategoryRecord{
		Categoria: categoria,
		Labels:    chart.Labels,
		Precios:   chart.Data[0].Vals,
		Cabezas:   []float64{},
	}
	if record.Precios == nil {
		record.Precios = []float64{}
	}
	if len(chart.Data) > 1 && chart.Data[1].Vals != nil {
		record.Cabezas = chart.Data[1].Vals
	}
	return record
}

// categoryURL builds the chartjs query for a class id over the
// today-minus-N .. today window, recomputed fresh per call.
func (s *MarketScraper) categoryURL(clase int) string {
	end := s.now().In(reportZone)
	start := end.AddDate(0, 0, -s.cfg.DaysBack)
	return fmt.Sprintf("%s%s?txtFECHAINI=%s&txtFECHAFIN=%s&txtCLASE=%d",
		s.cfg.BaseURL,
		s.cfg.ChartPath,
		start.Format("02/01/2006"),
		end.Format("02/01/2006"),
		clase,
	)
}

func validateChart(body []byte) error {
	var chart chartPayload
	if err := json.Unmarshal(body, &chart); err != nil {
		return fmt.Errorf("chart payload: %w", err)
	}
	return nil
}
