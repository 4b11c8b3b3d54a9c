package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/brensch/pursuit/config"
	"github.com/brensch/pursuit/game"
	"github.com/brensch/pursuit/layouts"
	"github.com/brensch/pursuit/rules"
	"github.com/brensch/pursuit/search"
	"github.com/brensch/pursuit/server"
	"github.com/brensch/pursuit/session"
	"github.com/brensch/pursuit/store"
)

func main() {
	layoutPath := flag.String("layout", "layouts/smallMaze.lay", "Layout to play")
	outDir := flag.String("out-dir", "debug_games", "Output directory for the debug game's decision log")
	ghost := flag.String("ghost", session.GhostGreedy, "Ghost policy: greedy or random")
	maxTurns := flag.Int("max-turns", 200, "Agent moves before the game is abandoned")
	remote := flag.String("remote", "", "Ask a running server for moves instead, e.g. ws://localhost:8080/ws")
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

	entry, err := layouts.Load(*layoutPath)
	if err != nil {
		log.Fatalf("Failed to load layout: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *remote != "" {
		if err := playRemote(ctx, *remote, entry, *ghost, *maxTurns); err != nil {
			log.Fatalf("Remote game failed: %v", err)
		}
		return
	}

	log.Printf("Playing %s with %s (depth %d)", entry.Name, searchCfg.Mode, searchCfg.EffectiveDepth())
	cfg := session.DefaultConfig()
	cfg.Search = searchCfg
	cfg.Ghost = *ghost
	cfg.MaxTurns = *maxTurns
	cfg.Trace = true
	cfg.Logger = logger

	res, err := session.Play(ctx, session.Game{Layout: entry.Name, State: entry.State}, nil, cfg)
	if err != nil {
		log.Fatalf("Failed to play debug game: %v", err)
	}
	log.Printf("Game complete: %s after %d turns, score %d, %d nodes, %d cache hits",
		res.Status, res.Turns, res.Score, res.Nodes, res.CacheHits)

	path, err := store.WriteBatchParquetAtomic(*outDir, res.Rows)
	if err != nil {
		log.Fatalf("Failed to write debug game: %v", err)
	}

	rows, err := store.ReadDecisionRows(path)
	if err != nil {
		log.Fatalf("Failed to read back debug game: %v", err)
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("  Game %s: %d decisions written to %s\n", res.GameID, len(rows), path)
	fmt.Println("═══════════════════════════════════════════════════════════════")
}

// playRemote plays the game locally but asks the server for every agent move.
func playRemote(ctx context.Context, url string, entry layouts.Entry, ghostName string, maxTurns int) error {
	client, err := server.Dial(ctx, url, 30*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()

	state := entry.State.Clone()
	var policy rules.GhostPolicy = rules.NewRandomGhost(1)
	if ghostName != session.GhostRandom {
		policy = rules.GreedyGhost{Distances: search.BuildDistanceTable(state.Layout)}
	}

	for turn := 0; !state.Terminal() && turn < maxTurns; turn++ {
		resp, err := client.Move(server.MoveRequest{
			Board: game.FormatBoard(state),
			Score: state.Score,
			Turn:  state.Turn,
		})
		if err != nil {
			return fmt.Errorf("turn %d: %w", state.Turn, err)
		}
		move, err := game.ParseMove(resp.Move)
		if err != nil {
			return fmt.Errorf("turn %d: %w", state.Turn, err)
		}
		session.PrintBoard(state, nil)
		log.Printf("server: move=%s value=%d nodes=%d cache_hit=%v elapsed=%dms",
			resp.Move, resp.Value, resp.Nodes, resp.CacheHit, resp.ElapsedMS)

		state = rules.NextAgentState(state, move)
		for i := range state.Ghosts {
			if state.Terminal() {
				break
			}
			if m, ok := policy.Move(state, i); ok {
				state = rules.NextGhostState(state, i, m)
			}
		}
	}

	log.Printf("Remote game complete: %s, score %d", state.Status, state.Score)
	return client.End()
}
