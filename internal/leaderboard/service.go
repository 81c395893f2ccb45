// Package leaderboard ranks mini-game scores per game and across games.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log"

	"npc-stake/internal/domain"
	"npc-stake/internal/observability"
	"npc-stake/internal/solana"
	"npc-stake/internal/storage"
)

// MaxEntries is the number of players shown on a board.
const MaxEntries = 100

// Validation errors.
var (
	ErrInvalidGameType = errors.New("invalid game type")
	ErrInvalidWallet   = errors.New("invalid wallet address")
	ErrInvalidScore    = errors.New("score must be non-negative")
)

// Service submits scores and builds boards from a LeaderboardStore.
type Service struct {
	store  storage.LeaderboardStore
	logger *log.Logger
}

// NewService creates a leaderboard service.
func NewService(store storage.LeaderboardStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, logger: logger}
}

// DisplayName shortens a wallet address to "abcd...wxyz".
func DisplayName(wallet string) string {
	if len(wallet) <= 8 {
		return wallet
	}
	return wallet[:4] + "..." + wallet[len(wallet)-4:]
}

// Submit records a score and returns the wallet's rank on that game's board.
// A wallet that falls outside the shown entries ranks just below them.
func (s *Service) Submit(ctx context.Context, wallet string, score int64, game domain.GameType) (int, error) {
	if !solana.IsValidAddress(wallet) {
		return 0, ErrInvalidWallet
	}
	if score < 0 {
		return 0, ErrInvalidScore
	}
	if !game.Playable() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGameType, game)
	}

	player, err := s.store.GetOrCreatePlayer(ctx, wallet, DisplayName(wallet))
	if err != nil {
		return 0, fmt.Errorf("get player: %w", err)
	}

	session := &domain.GameSession{PlayerID: player.ID, GameType: game, Score: score}
	if err := s.store.InsertSession(ctx, session); err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	observability.RecordScoreSubmitted(string(game))

	rank, err := s.store.Rank(ctx, wallet, game)
	if err != nil {
		return 0, fmt.Errorf("rank: %w", err)
	}
	if rank > MaxEntries {
		rank = MaxEntries + 1
	}

	played, err := s.store.CountSessions(ctx, wallet, game)
	if err != nil {
		s.logger.Printf("WARN: count sessions for %s: %v", wallet, err)
	}
	s.logger.Printf("Score %d submitted for %s in %s: rank=%d games=%d", score, player.DisplayName, game, rank, played)

	return rank, nil
}

// Board returns the best score per player, highest first, ranked from 1.
// Equal scores keep the earlier submission first.
func (s *Service) Board(ctx context.Context, game domain.GameType) ([]domain.LeaderboardEntry, error) {
	if !game.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGameType, game)
	}

	entries, err := s.store.TopScores(ctx, game, MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("top scores: %w", err)
	}
	if entries == nil {
		entries = make([]domain.LeaderboardEntry, 0)
	}

	for i := range entries {
		entries[i].GameType = game
		if entries[i].DisplayName == "" {
			entries[i].DisplayName = DisplayName(entries[i].WalletAddress)
		}
	}
	return entries, nil
}

// All returns every board.
func (s *Service) All(ctx context.Context) (*domain.LeaderboardData, error) {
	cyber, err := s.Board(ctx, domain.GameCyberDefense)
	if err != nil {
		return nil, err
	}
	pop, err := s.Board(ctx, domain.GamePopPop)
	if err != nil {
		return nil, err
	}
	global, err := s.Board(ctx, domain.GameGlobal)
	if err != nil {
		return nil, err
	}

	return &domain.LeaderboardData{CyberDefense: cyber, PopPop: pop, Global: global}, nil
}
