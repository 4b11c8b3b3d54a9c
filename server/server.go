// Package server exposes the search agent over HTTP and websockets.
//
// POST /move answers a single board. A game_id in the request keeps a
// decision cache for that game until POST /end. GET /ws upgrades to a
// websocket where the whole connection is one game.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/brensch/pursuit/game"
	"github.com/brensch/pursuit/rules"
	"github.com/brensch/pursuit/search"
	"github.com/brensch/pursuit/session"
	"github.com/brensch/pursuit/store"
)

type Config struct {
	Search      search.Config
	MoveTimeout time.Duration

	// OutDir, if set, receives one parquet decision log per finished
	// websocket game.
	OutDir string

	// HTTP games unused for GameIdle are dropped when a new game starts.
	// At most MaxGames are kept; the least recently used goes first.
	GameIdle time.Duration
	MaxGames int

	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Search:      search.DefaultConfig(),
		MoveTimeout: 500 * time.Millisecond,
		GameIdle:    10 * time.Minute,
		MaxGames:    1024,
		Logger:      slog.Default(),
	}
}

type Server struct {
	cfg      Config
	index    *search.DistanceIndex
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	games map[string]*httpGame
	now   func() time.Time
}

// httpGame is the decision cache of one game played over POST /move.
type httpGame struct {
	agent    *search.Agent
	lastUsed time.Time
}

func New(cfg Config, index *search.DistanceIndex) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if index == nil {
		index = search.NewDistanceIndex()
	}
	cfg.Search.Logger = cfg.Logger
	return &Server{
		cfg:   cfg,
		index: index,
		log:   cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		games: make(map[string]*httpGame),
		now:   time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/move", s.handleMove)
	mux.HandleFunc("/end", s.handleEnd)
	mux.HandleFunc("/ws", s.handleWebsocket)
	return mux
}

// Games is the number of HTTP games holding a decision cache.
func (s *Server) Games() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

func (s *Server) newAgent() *search.Agent {
	return search.NewAgent(rules.Engine{}, s.index, s.cfg.Search)
}

func (s *Server) agentFor(gameID string) *search.Agent {
	if gameID == "" {
		return s.newAgent()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	g, ok := s.games[gameID]
	if !ok {
		s.evictLocked(now)
		g = &httpGame{agent: s.newAgent()}
		s.games[gameID] = g
	}
	g.lastUsed = now
	return g.agent
}

// evictLocked drops idle games, then the least recently used ones until
// there is room for one more. s.mu must be held.
func (s *Server) evictLocked(now time.Time) {
	if s.cfg.GameIdle > 0 {
		for id, g := range s.games {
			if now.Sub(g.lastUsed) > s.cfg.GameIdle {
				delete(s.games, id)
				s.log.Info("game evicted", "game", id, "reason", "idle")
			}
		}
	}
	if s.cfg.MaxGames <= 0 {
		return
	}
	for len(s.games) >= s.cfg.MaxGames {
		oldestID := ""
		var oldest time.Time
		for id, g := range s.games {
			if oldestID == "" || g.lastUsed.Before(oldest) {
				oldestID, oldest = id, g.lastUsed
			}
		}
		delete(s.games, oldestID)
		s.log.Info("game evicted", "game", oldestID, "reason", "capacity")
	}
}

func (s *Server) timeout(req MoveRequest) time.Duration {
	if req.TimeoutMS > 0 {
		return time.Duration(req.TimeoutMS) * time.Millisecond
	}
	return s.cfg.MoveTimeout
}

// decide parses the request board and runs the agent under the move timeout.
func (s *Server) decide(ctx context.Context, agent *search.Agent, req MoveRequest) (*game.GameState, search.Decision, error) {
	state, err := req.State()
	if err != nil {
		return nil, search.Decision{}, err
	}
	if t := s.timeout(req); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	d, err := agent.Decide(ctx, state)
	return state, d, err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, InfoResponse{
		APIVersion: "1",
		Author:     "pursuit",
		Version:    "1.0.0",
		Mode:       s.cfg.Search.Mode.String(),
		Depth:      s.cfg.Search.EffectiveDepth(),
	})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MoveResponse{Error: err.Error()})
		return
	}

	state, d, err := s.decide(r.Context(), s.agentFor(req.GameID), req)
	if err != nil {
		writeJSON(w, statusFor(err), MoveResponse{Error: err.Error()})
		return
	}

	s.log.Info("move",
		"game", req.GameID,
		"turn", state.Turn,
		"move", d.Move.String(),
		"nodes", d.Nodes,
		"cache_hit", d.CacheHit,
		"truncated", d.Truncated,
		"elapsed", d.Elapsed,
	)
	writeJSON(w, http.StatusOK, responseFor(d))
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	delete(s.games, req.GameID)
	s.mu.Unlock()
	s.log.Info("game ended", "game", req.GameID)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	gameID := uuid.NewString()
	agent := s.newAgent()
	logger := s.log.With("game", gameID, "remote", r.RemoteAddr)
	logger.Info("websocket game started")

	var rows []store.DecisionRow
	defer func() {
		s.flushRows(logger, rows)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var req MoveRequest
		if err := json.Unmarshal(message, &req); err != nil {
			if err := conn.WriteJSON(MoveResponse{Error: "decode message: " + err.Error()}); err != nil {
				return
			}
			continue
		}

		switch strings.ToLower(req.Type) {
		case MessageEnd:
			logger.Info("websocket game ended", "decisions", len(rows))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game over"))
			return
		case MessageMove, "":
		default:
			if err := conn.WriteJSON(MoveResponse{Error: "unknown message type " + req.Type}); err != nil {
				return
			}
			continue
		}

		state, d, err := s.decide(r.Context(), agent, req)
		if err != nil {
			if err := conn.WriteJSON(MoveResponse{Error: err.Error()}); err != nil {
				return
			}
			continue
		}
		rows = append(rows, session.Row(gameID, "websocket", s.cfg.Search, state, d))
		if err := conn.WriteJSON(responseFor(d)); err != nil {
			logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) flushRows(logger *slog.Logger, rows []store.DecisionRow) {
	if s.cfg.OutDir == "" || len(rows) == 0 {
		return
	}
	path, err := store.WriteBatchParquetAtomic(s.cfg.OutDir, rows)
	if err != nil {
		logger.Error("write decision log", "error", err)
		return
	}
	logger.Info("wrote decision log", "path", path, "rows", len(rows))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrMalformedLayout),
		errors.Is(err, search.ErrMalformedState),
		errors.Is(err, search.ErrTooManyAdversaries):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrNoLegalMoves):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
