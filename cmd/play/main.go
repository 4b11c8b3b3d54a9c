package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/pursuit/config"
	"github.com/brensch/pursuit/game"
	"github.com/brensch/pursuit/layouts"
	"github.com/brensch/pursuit/search"
	"github.com/brensch/pursuit/session"
	"github.com/brensch/pursuit/store"
	"github.com/brensch/pursuit/tui"
)

func main() {
	layoutDir := flag.String("layouts", config.EnvOrDefault("LAYOUT_DIR", "layouts"), "Directory of .lay files to play")
	layoutPath := flag.String("layout", "", "Play only this .lay file")
	outDir := flag.String("out-dir", config.EnvOrDefault("OUT_DIR", "data/decisions"), "Directory for parquet decision logs (empty = don't write)")
	ghost := flag.String("ghost", config.EnvOrDefault("GHOST", session.GhostGreedy), "Ghost policy: greedy or random")
	extraFood := flag.Int("extra-food", config.EnvIntOrDefault("EXTRA_FOOD", 0), "Food scattered onto each game's free cells on top of the layout's")
	repeat := flag.Int("repeat", config.EnvIntOrDefault("REPEAT", 1), "Games per layout")
	maxTurns := flag.Int("max-turns", config.EnvIntOrDefault("MAX_TURNS", 500), "Agent moves before a game is abandoned (0 = unlimited)")
	parallel := flag.Int("parallel", config.EnvIntOrDefault("PARALLEL", 4), "Games played at once")
	seed := flag.Int64("seed", config.EnvInt64OrDefault("SEED", 1), "Seed for random ghosts")
	trace := flag.Bool("trace", config.EnvBoolOrDefault("TRACE", false), "Print every board and decision")
	useTUI := flag.Bool("tui", false, "Show progress in a terminal UI")
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

	var entries []layouts.Entry
	if *layoutPath != "" {
		e, err := layouts.Load(*layoutPath)
		if err != nil {
			log.Fatalf("Failed to load layout: %v", err)
		}
		entries = append(entries, e)
	} else {
		entries, err = layouts.LoadDir(*layoutDir)
		if err != nil {
			log.Fatalf("Failed to load layouts: %v", err)
		}
	}
	if len(entries) == 0 {
		log.Fatalf("No layouts found in %s", *layoutDir)
	}

	var games []session.Game
	for _, e := range entries {
		for i := 0; i < *repeat; i++ {
			state := e.State
			if *extraFood > 0 {
				state = e.State.Clone()
				game.ScatterFood(state, nil, *extraFood, uint64(*seed)+uint64(len(games)))
			}
			games = append(games, session.Game{Layout: e.Name, State: state})
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var writer *store.BatchWriter
	if *outDir != "" {
		writer, err = store.NewBatchWriter(*outDir)
		if err != nil {
			log.Fatalf("Failed to create batch writer: %v", err)
		}
	}

	cfg := session.Config{
		Search:      searchCfg,
		Ghost:       *ghost,
		MaxTurns:    *maxTurns,
		Seed:        *seed,
		Parallelism: *parallel,
		Trace:       *trace && !*useTUI,
		Logger:      logger,
	}

	var (
		updates chan session.Update
		results chan session.Result
	)
	if *useTUI {
		updates = make(chan session.Update, 64)
		results = make(chan session.Result, 64)
		cfg.OnTurn = func(u session.Update) {
			select {
			case updates <- u:
			default: // drop frames rather than stall the search
			}
		}
		// Log lines would tear the UI.
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		cfg.Search.Logger = cfg.Logger
	}

	var bar *tui.Bar
	if !*useTUI && !*trace {
		bar = tui.NewBar(os.Stderr, len(games), "games")
	}

	onGame := func(res session.Result) error {
		if bar != nil {
			bar.Add(res)
		}
		if results != nil {
			select {
			case results <- res:
			case <-ctx.Done():
			}
		}
		if writer == nil {
			return nil
		}
		return writer.WriteGame(res.Rows)
	}

	index := search.NewDistanceIndex()
	done := make(chan error, 1)
	go func() {
		_, err := session.PlayMany(ctx, games, index, cfg, onGame)
		if updates != nil {
			close(updates)
		}
		done <- err
	}()

	if *useTUI {
		p := tea.NewProgram(tui.New(updates, results), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			log.Printf("TUI exited: %v", err)
		}
		stop()
	}
	playErr := <-done
	if bar != nil {
		bar.Close()
	}

	if writer != nil {
		path, err := writer.Finalize()
		if err != nil {
			log.Fatalf("Failed to finalize decision log: %v", err)
		}
		if path != "" {
			logger.Info("wrote decision log", "path", path, "games", writer.Games(), "rows", writer.Rows())
		}
	}

	if playErr != nil && ctx.Err() == nil {
		log.Fatalf("Play failed: %v", playErr)
	}
	logger.Info("done", "games", len(games), "layouts", index.Layouts(), "distance_builds", index.Builds())
}
