package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brensch/pursuit/game"
	"github.com/brensch/pursuit/rules"
	"github.com/brensch/pursuit/search"
	"github.com/brensch/pursuit/store"
)

var oneFromWin = []string{
	"%%%%%",
	"%.P %",
	"% %G%",
	"%%%%%",
}

var corridor = []string{
	"%%%%%%%",
	"%P   .%",
	"%%%%%%%",
}

func testServer(t *testing.T, outDir string) (*Server, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.MoveTimeout = 5 * time.Second
	cfg.OutDir = outDir
	s := New(cfg, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func postMove(t *testing.T, url string, req MoveRequest) (int, MoveResponse) {
	t.Helper()
	body, _ := json.Marshal(req)
	resp, err := http.Post(url+"/move", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out MoveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, out
}

func TestIndex(t *testing.T) {
	_, ts := testServer(t, "")
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var info InfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Mode != "alphabeta" || info.Depth != 4 {
		t.Fatalf("info=%+v", info)
	}
}

func TestMove_HTTP(t *testing.T) {
	s, ts := testServer(t, "")

	status, resp := postMove(t, ts.URL, MoveRequest{Board: oneFromWin})
	if status != http.StatusOK || resp.Move != "left" {
		t.Fatalf("status=%d resp=%+v want 200 left", status, resp)
	}
	if s.Games() != 0 {
		t.Fatalf("request without game id must not keep state")
	}

	// Same game twice: second answer comes from the game's cache.
	_, first := postMove(t, ts.URL, MoveRequest{GameID: "g1", Board: corridor})
	_, second := postMove(t, ts.URL, MoveRequest{GameID: "g1", Board: corridor, Score: 50, Turn: 3})
	if first.Move != "right" || second.Move != "right" || first.CacheHit || !second.CacheHit {
		t.Fatalf("first=%+v second=%+v", first, second)
	}
	if s.Games() != 1 {
		t.Fatalf("games=%d want=1", s.Games())
	}

	body, _ := json.Marshal(MoveRequest{GameID: "g1"})
	endResp, err := http.Post(ts.URL+"/end", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	endResp.Body.Close()
	if s.Games() != 0 {
		t.Fatalf("games=%d after end want=0", s.Games())
	}
}

func TestGames_EvictsIdleAndLeastRecentlyUsed(t *testing.T) {
	s, _ := testServer(t, "")
	s.cfg.MaxGames = 2
	s.cfg.GameIdle = time.Minute
	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }

	has := func(id string) bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, ok := s.games[id]
		return ok
	}

	a := s.agentFor("a")
	clock = clock.Add(time.Second)
	s.agentFor("b")
	clock = clock.Add(time.Second)
	if s.agentFor("a") != a {
		t.Fatalf("known game must keep its agent")
	}
	clock = clock.Add(time.Second)

	// Full: "b" is the least recently used.
	s.agentFor("c")
	if s.Games() != 2 || !has("a") || has("b") || !has("c") {
		t.Fatalf("games=%d a=%v b=%v c=%v want a and c kept", s.Games(), has("a"), has("b"), has("c"))
	}

	clock = clock.Add(2 * time.Minute)
	s.agentFor("d")
	if s.Games() != 1 || !has("d") {
		t.Fatalf("games=%d want only d after idle sweep", s.Games())
	}

	// Requests without a game id never enter the table.
	s.agentFor("")
	if s.Games() != 1 {
		t.Fatalf("games=%d want=1", s.Games())
	}
}

func TestMove_GhostOnFood(t *testing.T) {
	_, ts := testServer(t, "")

	truth, err := game.ParseBoard([]string{
		"%%%%%",
		"%.P %",
		"% %.%",
		"%%%%%",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	truth.Ghosts = []game.Point{{X: 3, Y: 1}}

	req := MoveRequest{Board: game.FormatBoard(truth)}
	got, err := req.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(got.Food) != 2 || !got.HasFood(game.Point{X: 3, Y: 1}) {
		t.Fatalf("food=%v want the food under the ghost kept", got.Food)
	}
	if search.ComputeFingerprint(got, search.MoverAgent) != search.ComputeFingerprint(truth, search.MoverAgent) {
		t.Fatalf("request state differs from the board it was drawn from")
	}

	cfg := search.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	want, err := search.NewAgent(rules.Engine{}, nil, cfg).Decide(context.Background(), truth)
	if err != nil {
		t.Fatalf("local decide: %v", err)
	}

	status, resp := postMove(t, ts.URL, req)
	if status != http.StatusOK || resp.Move != want.Move.String() || resp.Value != want.Value {
		t.Fatalf("status=%d resp=%+v want move=%s value=%d", status, resp, want.Move, want.Value)
	}
}

func TestMove_HTTPErrors(t *testing.T) {
	_, ts := testServer(t, "")

	cases := map[string]struct {
		board []string
		want  int
	}{
		"ragged":      {[]string{"%%%", "%P", "%%%"}, http.StatusBadRequest},
		"no agent":    {[]string{"%%%", "% %", "%%%"}, http.StatusBadRequest},
		"two ghosts":  {[]string{"%%%%%%", "%PG G%", "%%%%%%"}, http.StatusBadRequest},
		"boxed agent": {[]string{"%%%", "%P%", "%%%"}, http.StatusUnprocessableEntity},
	}
	for name, tc := range cases {
		status, resp := postMove(t, ts.URL, MoveRequest{Board: tc.board})
		if status != tc.want || resp.Error == "" {
			t.Fatalf("%s: status=%d resp=%+v want=%d", name, status, resp, tc.want)
		}
	}

	resp, err := http.Get(ts.URL + "/move")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /move status=%d", resp.StatusCode)
	}
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestWebsocket_GameSession(t *testing.T) {
	outDir := t.TempDir()
	_, ts := testServer(t, outDir)

	c, err := Dial(context.Background(), wsURL(ts), 5*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	first, err := c.Move(MoveRequest{Board: corridor})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if first.Move != "right" || first.CacheHit {
		t.Fatalf("first=%+v", first)
	}
	again, err := c.Move(MoveRequest{Board: corridor, Turn: 1})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !again.CacheHit || again.Move != "right" {
		t.Fatalf("repeat on the same connection should hit the cache: %+v", again)
	}

	if _, err := c.Move(MoveRequest{Board: []string{"%%%", "%P", "%%%"}}); err == nil {
		t.Fatalf("malformed board should come back as an error")
	}
	// The connection survives a bad message.
	if _, err := c.Move(MoveRequest{Board: oneFromWin}); err != nil {
		t.Fatalf("move after error: %v", err)
	}

	if err := c.End(); err != nil {
		t.Fatalf("end: %v", err)
	}

	// The server writes its log after the handler returns.
	var files []string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		files, _ = filepath.Glob(filepath.Join(outDir, "*.parquet"))
		if len(files) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(files) != 1 {
		t.Fatalf("parquet files=%v want 1", files)
	}
	rows, err := store.ReadDecisionRows(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows=%d want=3", len(rows))
	}
	if _, err := os.Stat(filepath.Join(outDir, "tmp")); err != nil {
		t.Fatalf("tmp dir: %v", err)
	}
}

func TestWebsocket_SeparateConnectionsSeparateCaches(t *testing.T) {
	_, ts := testServer(t, "")
	for i := 0; i < 2; i++ {
		c, err := Dial(context.Background(), wsURL(ts), 5*time.Second)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		resp, err := c.Move(MoveRequest{Board: corridor})
		if err != nil {
			t.Fatalf("move: %v", err)
		}
		if resp.CacheHit {
			t.Fatalf("connection %d saw another connection's cache", i)
		}
		c.Close()
	}
}
