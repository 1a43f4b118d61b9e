// Package main is the entry point for the GeckoPulse sales engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/geckopulse/engine/internal/alert"
	"github.com/geckopulse/engine/internal/api"
	"github.com/geckopulse/engine/internal/cache"
	"github.com/geckopulse/engine/internal/config"
	"github.com/geckopulse/engine/internal/detector"
	"github.com/geckopulse/engine/internal/ingest"
	"github.com/geckopulse/engine/internal/metrics"
	"github.com/geckopulse/engine/internal/pipeline"
	"github.com/geckopulse/engine/internal/ui"
)

// tuiLogFile receives logs while the terminal UI owns stdout.
const tuiLogFile = "geckopulse.log"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logOut, closeLog := logOutput(cfg.EnableTUI)
	defer closeLog()
	slog.SetDefault(setupLogger(cfg.LogLevel, logOut))

	slog.Info("geckopulse starting",
		"version", "1.0.0",
	)

	slog.Info("config_loaded",
		"bot_token", cfg.MaskedBotToken(),
		"chat_id", cfg.TelegramChatID,
		"helius_key", cfg.MaskedHeliusKey(),
		"tensor_collection", cfg.MaskedCollectionID(),
		"howrare_key", cfg.MaskedHowRareKey(),
		"watch_sources", cfg.WatchSources,
		"watch_mints", len(cfg.WatchMints),
		"mintlist_url", cfg.WatchMintlistURL,
		"whale_sol", cfg.WhaleSOL,
		"sweep_count", cfg.SweepCount,
		"sweep_window", cfg.SweepWindow,
		"send_listing_alerts", cfg.SendListingAlerts,
		"http_port", cfg.HTTPPort,
		"prometheus_port", cfg.PrometheusPort,
		"enable_tui", cfg.EnableTUI,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collect := metrics.NewCollectors(reg)

	var telegram *alert.TelegramNotifier
	if cfg.TelegramConfigured() {
		telegram = alert.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.AlertGIFURL, alert.TelegramAPIURL, cfg.FetchTimeout)
	}

	p := buildPipeline(cfg, collect, telegram)
	go serveMetrics(ctx, cfg.PrometheusPort, reg)

	// One-time startup mint list load
	if cfg.WatchMintlistURL != "" {
		go func() {
			if _, err := p.ReloadMintlist(ctx); err != nil {
				slog.Warn("mintlist_load_failed", "url", cfg.WatchMintlistURL, "error", err)
			}
		}()
	}

	var tester api.TextSender
	if telegram != nil {
		tester = telegram
	}
	server := api.NewServer(cfg, p, tester)
	go func() {
		if err := server.Run(ctx); err != nil {
			slog.Error("http_server_failed", "error", err)
			cancel()
		}
	}()

	slog.Info("engine_started",
		"status", "listening for webhooks",
		"webhook", pipeline.WebhookPath,
		"telegram", cfg.TelegramConfigured(),
		"tui_enabled", cfg.EnableTUI,
	)

	// Start TUI or run in background mode
	if cfg.EnableTUI {
		app := ui.NewApp(p, cfg.UIRefreshRate)

		go func() {
			if err := app.Run(); err != nil {
				slog.Error("tui_error", "error", err)
			}
			cancel()
		}()

		select {
		case sig := <-sigChan:
			slog.Info("shutdown_signal_received", "signal", sig.String())
			app.Stop()
		case <-app.Done():
		case <-ctx.Done():
			app.Stop()
		}
	} else {
		select {
		case sig := <-sigChan:
			slog.Info("shutdown_signal_received", "signal", sig.String())
		case <-ctx.Done():
		}
	}

	cancel()

	// Let the HTTP servers finish their shutdown.
	time.Sleep(200 * time.Millisecond)

	seen, sent := p.Tracker().Counts()
	slog.Info("shutdown_complete", "events_seen", seen, "alerts_sent", sent)
}

// buildPipeline wires the caches, fetchers and notifier. Providers without
// credentials stay nil so the dependent cache short-circuits to absent.
func buildPipeline(cfg *config.Config, collect *metrics.Collectors, telegram *alert.TelegramNotifier) *pipeline.Pipeline {
	var metadataFetcher cache.MetadataFetcher
	if cfg.HeliusAPIKey != "" {
		metadataFetcher = ingest.NewHeliusClient(cfg.HeliusAPIKey, "", cfg.FetchTimeout)
	}
	var floorFetcher cache.FloorFetcher
	if cfg.TensorCollectionID != "" {
		floorFetcher = ingest.NewTensorClient(cfg.TensorCollectionID, "", cfg.FetchTimeout)
	}
	var rarityFetcher cache.RarityFetcher
	if cfg.HowRareAPIKey != "" {
		rarityFetcher = ingest.NewHowRareClient(cfg.HowRareAPIKey, "", cfg.FetchTimeout)
	}
	var notifier alert.Notifier
	if telegram != nil {
		notifier = telegram
	} else {
		slog.Warn("telegram_not_configured", "hint", "set TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
	}

	mints := ingest.NewWatchList(cfg.WatchMints)
	metadata := cache.NewMetadataCache(metadataFetcher, cache.DefaultMetadataCapacity)
	collect.RegisterCacheStats("metadata", metadata.Stats)

	return pipeline.New(cfg, pipeline.Options{
		Metadata:   metadata,
		Floor:      cache.NewFloorCache(floorFetcher, cache.DefaultFloorTTL, nil),
		Rarity:     cache.NewRarityCache(rarityFetcher, cache.DefaultRarityTTL, mints.Len),
		Detector:   detector.NewDetector(cfg, detector.NewSalesWindow(detector.DefaultWindowCapacity, nil)),
		Collectors: collect,
		Notifier:   notifier,
		Mints:      mints,
	})
}

// serveMetrics exposes reg on /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, port int, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics_server_starting", "port", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics_server_failed", "error", err)
	}
}

// logOutput picks the log destination. The TUI owns the terminal, so logs go
// to a file while it runs.
func logOutput(tui bool) (io.Writer, func()) {
	if !tui {
		return os.Stdout, func() {}
	}
	f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return io.Discard, func() {}
	}
	return f, func() { f.Close() }
}

// setupLogger creates a structured logger with the specified level.
// Format: 2025-01-04 14:32:01 [INFO]  message key=value
func setupLogger(levelStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
