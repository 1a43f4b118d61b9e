// Command replay runs a saved webhook payload through the pipeline offline
// and prints the alerts it would have produced.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/geckopulse/engine/internal/config"
)

func main() {
	file := flag.String("file", "", "JSON file holding a webhook payload or a list of payloads (required)")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	taggedOnly := flag.Bool("tagged", true, "Only show alerts carrying tags")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if *file == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		os.Exit(2)
	}

	payload, err := os.ReadFile(*file)
	if err != nil {
		slog.Error("read_payload_failed", "file", *file, "error", err)
		os.Exit(1)
	}

	// Thresholds and filters come from the environment like the engine, but
	// nothing is fetched or delivered.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg.WatchMintlistURL = ""

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := replay(ctx, cfg, payload)
	if err != nil {
		slog.Error("replay_failed", "error", err)
		os.Exit(1)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}
	render(os.Stdout, result, *taggedOnly)
}
