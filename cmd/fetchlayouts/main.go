package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/brensch/pursuit/config"
	"github.com/brensch/pursuit/layouts"
	"github.com/brensch/pursuit/store"
)

func main() {
	index := flag.String("index", config.EnvOrDefault("LAYOUT_INDEX", ""), "Comma separated index page URLs linking to .lay files")
	outDir := flag.String("out-dir", config.EnvOrDefault("LAYOUT_DIR", "layouts"), "Directory to write .lay files")
	logPath := flag.String("log-path", config.EnvOrDefault("FETCHED_LOG", ""), "Append-only log of fetched layout names (default <out-dir>/fetched.log)")
	delay := flag.Duration("delay", config.EnvDurationOrDefault("DELAY", 500*time.Millisecond), "Delay between HTTP requests")
	maxLayouts := flag.Int("max", config.EnvIntOrDefault("MAX_LAYOUTS", 0), "Stop after fetching this many layouts (0 = unlimited)")
	logFlags := config.RegisterLogFlags(flag.CommandLine)
	flag.Parse()

	logger, err := logFlags.Logger()
	if err != nil {
		log.Fatalf("Invalid logging flags: %v", err)
	}

	var urls []string
	for _, u := range strings.Split(*index, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		log.Fatalf("-index is required")
	}

	if *logPath == "" {
		*logPath = filepath.Join(*outDir, "fetched.log")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}
	written, err := store.OpenWrittenLog(*logPath)
	if err != nil {
		log.Fatalf("Failed to open fetched log: %v", err)
	}
	defer written.Close()
	logger.Info("loaded fetched log", "path", *logPath, "layouts", written.Count())

	cfg := layouts.DefaultConfig()
	cfg.IndexURLs = urls
	cfg.OutDir = *outDir
	cfg.RequestDelay = *delay
	cfg.MaxLayouts = *maxLayouts
	cfg.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := layouts.NewFetcher(cfg, written).Fetch(ctx)
	logger.Info("fetch finished", "found", stats.Found, "fetched", stats.Fetched, "skipped", stats.Skipped, "failed", stats.Failed)
	if err != nil && ctx.Err() == nil {
		log.Fatalf("Fetch failed: %v", err)
	}
}
