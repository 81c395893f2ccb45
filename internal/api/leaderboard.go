package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"npc-stake/internal/domain"
	"npc-stake/internal/leaderboard"
)

// SubmitScoreRequest is the body of POST /api/leaderboard/submit.
type SubmitScoreRequest struct {
	WalletAddress string          `json:"walletAddress"`
	Score         *int64          `json:"score"`
	GameType      domain.GameType `json:"gameType"`
}

// SubmitScoreResponse is the reply to a score submission.
type SubmitScoreResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	NewRank int    `json:"newRank,omitempty"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.leaderboard == nil {
		s.writeError(w, http.StatusServiceUnavailable, "leaderboard not configured")
		return
	}

	data, err := s.leaderboard.All(r.Context())
	if err != nil {
		s.logger.Printf("leaderboard query failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch leaderboard data")
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleGameLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.leaderboard == nil {
		s.writeError(w, http.StatusServiceUnavailable, "leaderboard not configured")
		return
	}

	game := domain.GameType(mux.Vars(r)["gameType"])
	if !game.Valid() {
		s.writeError(w, http.StatusBadRequest, "Invalid game type")
		return
	}

	entries, err := s.leaderboard.Board(r.Context(), game)
	if err != nil {
		s.logger.Printf("leaderboard query failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch leaderboard data")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	if s.leaderboard == nil {
		s.writeError(w, http.StatusServiceUnavailable, "leaderboard not configured")
		return
	}

	var req SubmitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, SubmitScoreResponse{Message: "Invalid request body"})
		return
	}
	if req.WalletAddress == "" || req.Score == nil || req.GameType == "" {
		s.writeJSON(w, http.StatusBadRequest, SubmitScoreResponse{
			Message: "Missing required fields: walletAddress, score, gameType",
		})
		return
	}

	rank, err := s.leaderboard.Submit(r.Context(), req.WalletAddress, *req.Score, req.GameType)
	switch {
	case err == nil:
	case errors.Is(err, leaderboard.ErrInvalidScore):
		s.writeJSON(w, http.StatusBadRequest, SubmitScoreResponse{Message: "Score must be non-negative"})
		return
	case errors.Is(err, leaderboard.ErrInvalidGameType):
		s.writeJSON(w, http.StatusBadRequest, SubmitScoreResponse{
			Message: "Invalid game type. Must be cyber-defense or pop-pop",
		})
		return
	case errors.Is(err, leaderboard.ErrInvalidWallet):
		s.writeJSON(w, http.StatusBadRequest, SubmitScoreResponse{Message: "Invalid wallet address"})
		return
	default:
		s.logger.Printf("submit score failed: %v", err)
		s.writeJSON(w, http.StatusInternalServerError, SubmitScoreResponse{Message: "Failed to submit score"})
		return
	}

	s.writeJSON(w, http.StatusOK, SubmitScoreResponse{
		Success: true,
		Message: "Score submitted successfully",
		NewRank: rank,
	})
}
