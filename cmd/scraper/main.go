package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agrodatos/mag-scraper/config"
	"github.com/agrodatos/mag-scraper/pipeline"
	"github.com/agrodatos/mag-scraper/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	defaultCfg := config.DefaultConfig()
	daysDefault := defaultCfg.DaysBack
	if value, ok, err := config.EnvInt("MAG_DAYS_BACK"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid MAG_DAYS_BACK: %v\n", err)
		os.Exit(1)
	} else if ok {
		daysDefault = value
	}
	attemptsDefault := defaultCfg.MaxAttempts
	if value, ok, err := config.EnvInt("MAG_MAX_ATTEMPTS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid MAG_MAX_ATTEMPTS: %v\n", err)
		os.Exit(1)
	} else if ok {
		attemptsDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("MAG_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	mode := flag.String("mode", "all", "Pipelines to run: market, dashboard, or all")
	baseURL := flag.String("base-url", defaultCfg.BaseURL, "Source site base URL")
	daysBack := flag.Int("days-back", daysDefault, "Days of price history to query")
	maxAttempts := flag.Int("max-attempts", attemptsDefault, "Fetch attempts per request")
	timeout := flag.Duration("timeout", defaultCfg.Timeout, "Per-attempt request timeout")
	backoff := flag.Duration("backoff", defaultCfg.RetryBackoff, "Base retry backoff")
	pause := flag.Duration("pause", defaultCfg.CategoryPause, "Pause between category requests")
	marketOutput := flag.String("output-market", defaultCfg.MarketOutput, "Market snapshot output file")
	dashboardOutput := flag.String("output-dashboard", defaultCfg.DashboardOutput, "Dashboard snapshot output file")
	debugDir := flag.String("debug-dir", defaultCfg.DebugDir, "Directory for raw-document debug artifacts")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	cfg := defaultCfg
	cfg.BaseURL = *baseURL
	cfg.DaysBack = *daysBack
	cfg.MaxAttempts = *maxAttempts
	cfg.Timeout = *timeout
	cfg.RetryBackoff = *backoff
	cfg.CategoryPause = *pause
	cfg.MarketOutput = *marketOutput
	cfg.DashboardOutput = *dashboardOutput
	cfg.DebugDir = *debugDir
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if dir, ok := config.EnvString("MAG_OUTPUT_DIR"); ok {
		cfg.MarketOutput = filepath.Join(dir, filepath.Base(cfg.MarketOutput))
		cfg.DashboardOutput = filepath.Join(dir, filepath.Base(cfg.DashboardOutput))
		cfg.DebugDir = filepath.Join(dir, "debug")
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if *mode != "market" && *mode != "dashboard" && *mode != "all" {
		slog.Error("invalid mode", slog.String("mode", *mode))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.String("mode", *mode),
		slog.Int("max_attempts", cfg.MaxAttempts),
	)

	metrics := scraper.NewMetrics()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	succeeded := false
	persistFailed := false
	categories := 0
	fieldsResolved := -1

	if *mode == "market" || *mode == "all" {
		ms := scraper.NewMarketScraper(cfg, fetcher, metrics)
		doc, err := ms.Run(ctx)
		if err != nil {
			slog.Error("market pipeline failed", slog.Any("error", err))
		} else {
			categories = len(doc.Categorias)
			writer := pipeline.NewSnapshotWriter(cfg.MarketOutput)
			if err := persist(writer, doc); err != nil {
				slog.Error("persisting market snapshot", slog.Any("error", err))
				persistFailed = true
			} else {
				slog.Info("market snapshot saved", slog.String("path", writer.Path()))
				succeeded = true
			}
		}
	}

	if *mode == "dashboard" || *mode == "all" {
		ds := scraper.NewDashboardScraper(cfg, fetcher, metrics, pipeline.NewDebugWriter(cfg.DebugDir))
		doc, resolved, err := ds.Run(ctx)
		if err != nil {
			slog.Error("dashboard pipeline failed", slog.Any("error", err))
		} else {
			fieldsResolved = resolved
			writer := pipeline.NewSnapshotWriter(cfg.DashboardOutput)
			if err := persist(writer, doc); err != nil {
				slog.Error("persisting dashboard snapshot", slog.Any("error", err))
				persistFailed = true
			} else {
				slog.Info("dashboard snapshot saved", slog.String("path", writer.Path()))
				succeeded = true
			}
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(*mode, categories, fieldsResolved, time.Since(start), cfg)

	if !succeeded || persistFailed {
		os.Exit(1)
	}
}

// persist writes the snapshot and re-checks the file on disk.
func persist(writer *pipeline.SnapshotWriter, doc any) error {
	if err := writer.Write(doc); err != nil {
		return err
	}
	return writer.Validate()
}

func printSummary(mode string, categories, fieldsResolved int, duration time.Duration, cfg *config.Config) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Mode:          %s\n", mode)
	if mode == "market" || mode == "all" {
		fmt.Printf("  Categories:    %d/%d\n", categories, len(cfg.Categories))
		fmt.Printf("  Market file:   %s\n", cfg.MarketOutput)
	}
	if mode == "dashboard" || mode == "all" {
		if fieldsResolved >= 0 {
			fmt.Printf("  Fields:        %d\n", fieldsResolved)
		}
		fmt.Printf("  Dashboard file: %s\n", cfg.DashboardOutput)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
