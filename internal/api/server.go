// Package api exposes the staking projection, pool history and leaderboard
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"npc-stake/internal/leaderboard"
	"npc-stake/internal/observability"
	"npc-stake/internal/projection"
	"npc-stake/internal/refresh"
	"npc-stake/internal/storage"
)

// Refresher is the part of refresh.Refresher the API drives.
type Refresher interface {
	Refresh(ctx context.Context, force bool) (bool, error)
	Status() refresh.Status
}

// Config wires the server's dependencies. History, Refresher and
// Leaderboard are optional; their routes answer 503 when absent.
type Config struct {
	Projector   *projection.Projector
	Refresher   Refresher
	History     storage.PoolHistoryStore
	Leaderboard *leaderboard.Service
	Pool        string // pool address used for history queries
	Now         func() time.Time
	Logger      *log.Logger
}

// Server serves the HTTP API.
type Server struct {
	projector   *projection.Projector
	refresher   Refresher
	history     storage.PoolHistoryStore
	leaderboard *leaderboard.Service
	pool        string
	now         func() time.Time
	logger      *log.Logger
}

// NewServer creates a Server.
func NewServer(cfg Config) *Server {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Server{
		projector:   cfg.Projector,
		refresher:   cfg.Refresher,
		history:     cfg.History,
		leaderboard: cfg.Leaderboard,
		pool:        cfg.Pool,
		now:         now,
		logger:      logger,
	}
}

// Router returns the HTTP routes wrapped in CORS handling.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	// Staking
	r.HandleFunc("/api/staking/projection", s.handleProjection).Methods(http.MethodGet)
	r.HandleFunc("/api/staking/apy", s.handleAPY).Methods(http.MethodGet)
	r.HandleFunc("/api/staking/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/staking/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/staking/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/staking/stream", s.handleStream).Methods(http.MethodGet)

	// Leaderboard; submit is registered before the {gameType} pattern.
	r.HandleFunc("/api/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/api/leaderboard/submit", s.handleSubmitScore).Methods(http.MethodPost)
	r.HandleFunc("/api/leaderboard/{gameType}", s.handleGameLeaderboard).Methods(http.MethodGet)

	return WithCORS(r)
}

// WithCORS adds permissive CORS headers and answers preflight requests.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
