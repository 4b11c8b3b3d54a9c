package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/brensch/pursuit/game"
	"github.com/brensch/pursuit/rules"
)

var allModes = []Mode{ModeMinimax, ModeAlphaBeta, ModeHeuristic}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAgent(mode Mode, depth int) *Agent {
	return NewAgent(rules.Engine{}, NewDistanceIndex(), Config{Mode: mode, Depth: depth, Logger: quietLogger()})
}

func legal(state *game.GameState, m game.Move) bool {
	for _, s := range (rules.Engine{}).AgentSuccessors(state) {
		if s.Move == m {
			return true
		}
	}
	return false
}

func TestDecide_CorridorWalksToGoal(t *testing.T) {
	const corridor = "%%%%%%%\n%P   .%\n%%%%%%%\n"

	for _, mode := range allModes {
		t.Run(mode.String(), func(t *testing.T) {
			state := mustParse(t, corridor)
			agent := newTestAgent(mode, 0)

			for step := 0; !state.Terminal(); step++ {
				if step > 4 {
					t.Fatalf("goal not reached after %d steps\n%s", step, dumpState(state))
				}
				move, err := agent.ChooseMove(context.Background(), state)
				if err != nil {
					t.Fatalf("step %d: %v", step, err)
				}
				if move != game.MoveRight {
					t.Fatalf("step %d: move=%s want=right\n%s", step, move, dumpState(state))
				}
				state = rules.NextAgentState(state, move)
			}
			if state.Status != game.StatusWon {
				t.Fatalf("status=%s want=won", state.Status)
			}
		})
	}
}

func TestDecide_RootTieKeepsFirstReply(t *testing.T) {
	cases := []struct {
		name  string
		board string
		want  game.Move
	}{
		{"left before right", "%%%%%\n%.P.%\n%%%%%\n", game.MoveLeft},
		{"up before down", "%%%\n%.%\n%P%\n%.%\n%%%\n", game.MoveUp},
	}
	for _, tc := range cases {
		for _, mode := range allModes {
			t.Run(tc.name+"/"+mode.String(), func(t *testing.T) {
				state := mustParse(t, tc.board)
				d, err := newTestAgent(mode, 0).Decide(context.Background(), state)
				if err != nil {
					t.Fatalf("decide: %v", err)
				}
				if d.Move != tc.want {
					t.Fatalf("move=%s value=%d want=%s\n%s", d.Move, d.Value, tc.want, dumpState(state))
				}
			})
		}
	}
}

func TestRoot_TieFollowsReplyOrder(t *testing.T) {
	state := mustParse(t, "%%%%%\n%.P.%\n%%%%%\n")
	replies := (rules.Engine{}).AgentSuccessors(state)
	if len(replies) != 2 {
		t.Fatalf("replies=%d want=2", len(replies))
	}
	reversed := []game.Successor{replies[1], replies[0]}

	for _, prune := range []bool{false, true} {
		for _, order := range [][]game.Successor{replies, reversed} {
			s := &searcher{
				ctx:       context.Background(),
				engine:    rules.Engine{},
				eval:      NewEvaluator(nil),
				prune:     prune,
				goalsRoot: len(state.Food),
			}
			res := s.root(state, ComputeFingerprint(state, MoverAgent), order, 0)
			if !res.found || res.move != order[0].Move {
				t.Fatalf("prune=%v order=[%s %s]: move=%s want=%s",
					prune, order[0].Move, order[1].Move, res.move, order[0].Move)
			}
		}
	}
}

// Agent at (2,2) can eat the last food to the left. Going right lets the
// ghost step up and catch it.
const oneFromWin = `
%%%%%
%.P %
% %G%
%%%%%
`

func TestDecide_OneMoveFromWin(t *testing.T) {
	for _, mode := range allModes {
		t.Run(mode.String(), func(t *testing.T) {
			state := mustParse(t, oneFromWin)
			agent := newTestAgent(mode, 0)

			d, err := agent.Decide(context.Background(), state)
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if d.Move != game.MoveLeft {
				t.Fatalf("move=%s want=left\n%s", d.Move, dumpState(state))
			}
			want := -rules.TimePenalty + rules.FoodReward + rules.WinReward
			if d.Value != want {
				t.Fatalf("value=%d want=%d", d.Value, want)
			}
		})
	}
}

// The only exit is past the ghost; the food behind it can never be eaten.
const forcedLoss = "%%%%%%\n%P G.%\n%%%%%%\n"

func TestDecide_ForcedLossValue(t *testing.T) {
	for _, mode := range []Mode{ModeMinimax, ModeAlphaBeta} {
		t.Run(mode.String(), func(t *testing.T) {
			state := mustParse(t, forcedLoss)
			agent := newTestAgent(mode, 0)

			d, err := agent.Decide(context.Background(), state)
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if d.Move != game.MoveRight {
				t.Fatalf("move=%s want=right (only legal move)", d.Move)
			}
			if d.Value > -rules.LosePenalty {
				t.Fatalf("value=%d want <= %d\n%s", d.Value, -rules.LosePenalty, dumpState(state))
			}
			if d.Truncated {
				t.Fatalf("full-depth search truncated")
			}
		})
	}
}

func randomBoard(rng *rand.Rand) *game.GameState {
	const w, h = 7, 6
	layout := game.NewLayout(w, h)
	for x := int32(0); x < w; x++ {
		for y := int32(0); y < h; y++ {
			border := x == 0 || y == 0 || x == w-1 || y == h-1
			if border || rng.Float64() < 0.2 {
				layout.SetWall(game.Point{X: x, Y: y}, true)
			}
		}
	}

	open := layout.OpenCells()
	if len(open) < 4 {
		return nil
	}
	rng.Shuffle(len(open), func(i, j int) { open[i], open[j] = open[j], open[i] })

	state := &game.GameState{
		Layout: layout,
		Agent:  open[0],
		Ghosts: []game.Point{open[1]},
	}
	game.ScatterFood(state, rng, 1+rng.Intn(3), 0)
	if len(rules.LegalMoves(state, state.Agent)) == 0 {
		return nil
	}
	return state
}

func TestAlphaBetaMatchesMinimax(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	boards := 0

	for boards < 40 {
		state := randomBoard(rng)
		if state == nil {
			continue
		}
		boards++

		for _, depth := range []int{1, 2, 3, 4, 6} {
			mm, err := newTestAgent(ModeMinimax, depth).Decide(context.Background(), state)
			if err != nil {
				t.Fatalf("minimax: %v\n%s", err, dumpState(state))
			}
			ab, err := newTestAgent(ModeAlphaBeta, depth).Decide(context.Background(), state)
			if err != nil {
				t.Fatalf("alphabeta: %v\n%s", err, dumpState(state))
			}

			if mm.Move != ab.Move || mm.Value != ab.Value {
				t.Fatalf("depth %d: minimax=%s/%d alphabeta=%s/%d\n%s",
					depth, mm.Move, mm.Value, ab.Move, ab.Value, dumpState(state))
			}
			if ab.Nodes > mm.Nodes {
				t.Fatalf("depth %d: alphabeta expanded %d nodes, minimax %d", depth, ab.Nodes, mm.Nodes)
			}
			if !legal(state, ab.Move) {
				t.Fatalf("depth %d: illegal move %s\n%s", depth, ab.Move, dumpState(state))
			}
		}
	}
}

func TestAlphaBetaMatchesMinimax_FullDepth(t *testing.T) {
	for _, board := range []string{oneFromWin, forcedLoss, "%%%%%%%\n%P . G%\n%%%%%%%\n"} {
		state := mustParse(t, board)
		mm, err := newTestAgent(ModeMinimax, 0).Decide(context.Background(), state)
		if err != nil {
			t.Fatalf("minimax: %v", err)
		}
		ab, err := newTestAgent(ModeAlphaBeta, 0).Decide(context.Background(), state)
		if err != nil {
			t.Fatalf("alphabeta: %v", err)
		}
		if mm.Move != ab.Move || mm.Value != ab.Value {
			t.Fatalf("minimax=%s/%d alphabeta=%s/%d\n%s", mm.Move, mm.Value, ab.Move, ab.Value, dumpState(state))
		}
	}
}

func TestDecide_CacheIdempotent(t *testing.T) {
	state := mustParse(t, smallMaze)
	agent := newTestAgent(ModeAlphaBeta, 4)

	first, err := agent.Decide(context.Background(), state)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if first.CacheHit {
		t.Fatalf("first decision cannot be a cache hit")
	}

	// Same configuration reached another way: different score, turn and food order.
	again := state.Clone()
	again.Score = 123
	again.Turn = 9
	again.Food[0], again.Food[len(again.Food)-1] = again.Food[len(again.Food)-1], again.Food[0]

	second, err := agent.Decide(context.Background(), again)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !second.CacheHit {
		t.Fatalf("second decision should hit the cache")
	}
	if second.Move != first.Move {
		t.Fatalf("cached move=%s first=%s", second.Move, first.Move)
	}
	if agent.Cache().Len() != 1 {
		t.Fatalf("cache len=%d want=1", agent.Cache().Len())
	}

	// A fresh agent recomputes the same move.
	fresh, err := newTestAgent(ModeAlphaBeta, 4).Decide(context.Background(), again)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if fresh.Move != first.Move {
		t.Fatalf("recomputed move=%s first=%s", fresh.Move, first.Move)
	}
}

func TestDecide_TerminatesOnCycles(t *testing.T) {
	boards := map[string]string{
		// 2x2 loop, food walled off so the game can never end.
		"isolated food": "%%%%%%\n%P %.%\n%  %%%\n%%%%%%\n",
		// Agent and ghost chasing round a 2x2 loop with nothing to eat.
		"ghost loop": "%%%%\n%P %\n% G%\n%%%%\n",
		// Both sides can shuffle back and forth along the corridor.
		"corridor": "%%%%%%%\n%P . G%\n%%%%%%%\n",
	}

	for name, board := range boards {
		t.Run(name, func(t *testing.T) {
			state := mustParse(t, board)
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			d, err := newTestAgent(ModeMinimax, 0).Decide(ctx, state)
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if d.Truncated {
				t.Fatalf("unbounded search did not finish (%d nodes)", d.Nodes)
			}
			if !legal(state, d.Move) {
				t.Fatalf("illegal move %s", d.Move)
			}
			t.Logf("%s: move=%s value=%d nodes=%d", name, d.Move, d.Value, d.Nodes)
		})
	}
}

func TestDecide_NodeBudgetTruncates(t *testing.T) {
	state := mustParse(t, smallMaze)
	agent := NewAgent(rules.Engine{}, nil, Config{Mode: ModeMinimax, NodeBudget: 50, Logger: quietLogger()})

	d, err := agent.Decide(context.Background(), state)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !d.Truncated {
		t.Fatalf("expected truncation with a 50 node budget (nodes=%d)", d.Nodes)
	}
	if !legal(state, d.Move) {
		t.Fatalf("illegal move %s", d.Move)
	}
	if agent.Cache().Len() != 0 {
		t.Fatalf("truncated decisions must not be cached")
	}
}

func TestDecide_CancelledContextTruncates(t *testing.T) {
	state := mustParse(t, smallMaze)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := newTestAgent(ModeMinimax, 0).Decide(ctx, state)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !d.Truncated {
		t.Fatalf("expected truncation on a cancelled context (nodes=%d)", d.Nodes)
	}
	if !legal(state, d.Move) {
		t.Fatalf("illegal move %s", d.Move)
	}
}

func TestDecide_Errors(t *testing.T) {
	agent := newTestAgent(ModeAlphaBeta, 2)
	ctx := context.Background()

	if _, err := agent.Decide(ctx, nil); !errors.Is(err, ErrMalformedState) {
		t.Fatalf("nil state err=%v", err)
	}

	noLayout := &game.GameState{}
	if _, err := agent.Decide(ctx, noLayout); !errors.Is(err, ErrMalformedState) {
		t.Fatalf("missing layout err=%v", err)
	}

	onWall := mustParse(t, smallMaze)
	onWall.Agent = game.Point{X: 0, Y: 0}
	if _, err := agent.Decide(ctx, onWall); !errors.Is(err, ErrMalformedState) {
		t.Fatalf("agent on wall err=%v", err)
	}

	twoGhosts := mustParse(t, "%%%%%%\n%PG G%\n%%%%%%\n")
	if _, err := agent.Decide(ctx, twoGhosts); !errors.Is(err, ErrTooManyAdversaries) {
		t.Fatalf("two ghosts err=%v", err)
	}

	over := mustParse(t, smallMaze)
	over.Status = game.StatusLost
	if _, err := agent.Decide(ctx, over); !errors.Is(err, ErrNoLegalMoves) {
		t.Fatalf("terminal root err=%v", err)
	}
}

func TestChooseMove_AlwaysLegal(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 30; i++ {
		state := randomBoard(rng)
		if state == nil {
			continue
		}
		for _, mode := range allModes {
			move, err := newTestAgent(mode, 3).ChooseMove(context.Background(), state)
			if err != nil {
				t.Fatalf("%s: %v\n%s", mode, err, dumpState(state))
			}
			if !legal(state, move) {
				t.Fatalf("%s: illegal move %s\n%s", mode, move, dumpState(state))
			}
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, mode := range allModes {
		got, err := ParseMode(mode.String())
		if err != nil || got != mode {
			t.Fatalf("ParseMode(%q)=%v,%v", mode.String(), got, err)
		}
	}
	if _, err := ParseMode("expectimax"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if d := (Config{Mode: ModeHeuristic}).EffectiveDepth(); d != DefaultHeuristicDepth {
		t.Fatalf("heuristic default depth=%d want=%d", d, DefaultHeuristicDepth)
	}
}

func TestAgent_Index(t *testing.T) {
	shared := NewDistanceIndex()
	a := NewAgent(rules.Engine{}, shared, Config{Depth: 2, Logger: quietLogger()})
	if a.Index() != shared {
		t.Fatalf("agent must search with the index it was given")
	}

	state := mustParse(t, smallMaze)
	if _, err := a.Decide(context.Background(), state); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if shared.Builds() != 1 {
		t.Fatalf("builds=%d want=1", shared.Builds())
	}

	private := NewAgent(rules.Engine{}, nil, Config{Logger: quietLogger()})
	if private.Index() == nil || private.Index() == shared {
		t.Fatalf("nil index must give the agent its own")
	}
}

func BenchmarkDecide_AlphaBeta(b *testing.B) {
	state := mustParse(b, smallMaze)
	index := NewDistanceIndex()
	cfg := Config{Mode: ModeAlphaBeta, Depth: 6, Logger: quietLogger()}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Fresh agent each time so the decision cache never short-circuits.
		if _, err := NewAgent(rules.Engine{}, index, cfg).Decide(context.Background(), state); err != nil {
			b.Fatalf("decide: %v", err)
		}
	}
}
