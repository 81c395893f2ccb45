package storage

import (
	"context"

	"npc-stake/internal/domain"
)

// PoolHistoryStore provides access to pool_snapshots storage.
type PoolHistoryStore interface {
	// Insert adds a new point. Returns ErrDuplicateKey if (pool, timestamp_ms) exists.
	Insert(ctx context.Context, p *domain.PoolHistoryPoint) error

	// GetRange retrieves points for a pool within [from, to] ms (inclusive), ordered by timestamp ASC.
	GetRange(ctx context.Context, pool string, from, to int64) ([]*domain.PoolHistoryPoint, error)

	// Latest retrieves the most recent point for a pool. Returns ErrNotFound if none exist.
	Latest(ctx context.Context, pool string) (*domain.PoolHistoryPoint, error)
}

// LeaderboardStore provides access to players and game_sessions storage.
type LeaderboardStore interface {
	// GetOrCreatePlayer returns the player for a wallet, creating it with
	// displayName when it does not exist yet.
	GetOrCreatePlayer(ctx context.Context, wallet, displayName string) (*domain.Player, error)

	// InsertSession records a score. ID and CreatedAt are assigned by the store
	// when zero. Returns ErrNotFound if the player does not exist.
	InsertSession(ctx context.Context, s *domain.GameSession) error

	// TopScores returns each wallet's best session of one game, or of every
	// game for GameGlobal, ordered by score DESC then created_at ASC and
	// ranked from 1. At most limit entries are returned.
	TopScores(ctx context.Context, game domain.GameType, limit int) ([]domain.LeaderboardEntry, error)

	// Rank returns the 1-based position of a wallet's best session in the
	// same ordering as TopScores. Returns ErrNotFound if the wallet has no
	// session for the game.
	Rank(ctx context.Context, wallet string, game domain.GameType) (int, error)

	// CountSessions returns how many sessions a wallet played in a game, or
	// in every game for GameGlobal.
	CountSessions(ctx context.Context, wallet string, game domain.GameType) (int, error)
}
