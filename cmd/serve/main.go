package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/pursuit/config"
	"github.com/brensch/pursuit/search"
	"github.com/brensch/pursuit/server"
)

func main() {
	addr := flag.String("addr", config.EnvOrDefault("ADDR", ":8080"), "Listen address")
	moveTimeout := flag.Duration("move-timeout", config.EnvDurationOrDefault("MOVE_TIMEOUT", 500*time.Millisecond), "Default time allowed per decision")
	outDir := flag.String("out-dir", config.EnvOrDefault("OUT_DIR", ""), "Directory for parquet logs of websocket games (empty = don't write)")
	searchFlags := config.RegisterSearchFlags(flag.CommandLine)
	logFlags := config.RegisterLogFlags(flag.CommandLine)
	flag.Parse()

	logger, err := logFlags.Logger()
	if err != nil {
		log.Fatalf("Invalid logging flags: %v", err)
	}
	searchCfg, err := searchFlags.Config(logger)
	if err != nil {
		log.Fatalf("Invalid search flags: %v", err)
	}

	srv := server.New(server.Config{
		Search:      searchCfg,
		MoveTimeout: *moveTimeout,
		OutDir:      *outDir,
		Logger:      logger,
	}, search.NewDistanceIndex())

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", *addr, "mode", searchCfg.Mode.String(), "depth", searchCfg.EffectiveDepth())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	logger.Info("server stopped", "open_games", srv.Games())
}
