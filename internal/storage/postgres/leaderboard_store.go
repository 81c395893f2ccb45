package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"npc-stake/internal/domain"
	"npc-stake/internal/observability"
	"npc-stake/internal/storage"
)

// LeaderboardStore implements storage.LeaderboardStore using PostgreSQL.
type LeaderboardStore struct {
	pool *Pool
}

// NewLeaderboardStore creates a new LeaderboardStore.
func NewLeaderboardStore(pool *Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

var _ storage.LeaderboardStore = (*LeaderboardStore)(nil)

// GetOrCreatePlayer returns the player for a wallet, creating it if needed.
// The existing display name is kept when the player already exists.
func (s *LeaderboardStore) GetOrCreatePlayer(ctx context.Context, wallet, displayName string) (p *domain.Player, err error) {
	if wallet == "" {
		return nil, storage.ErrInvalidInput
	}
	defer record("get_or_create_player", time.Now(), &err)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO players (wallet_address, display_name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO NOTHING
	`, wallet, displayName, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert player: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, wallet_address, display_name, created_at
		FROM players
		WHERE wallet_address = $1
	`, wallet)

	p, err = scanPlayer(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get player: %w", err)
	}
	return p, nil
}

// InsertSession records a score. Returns ErrNotFound if the player does not exist.
func (s *LeaderboardStore) InsertSession(ctx context.Context, gs *domain.GameSession) (err error) {
	if gs == nil || !gs.GameType.Playable() || gs.Score < 0 {
		return storage.ErrInvalidInput
	}
	defer record("insert_session", time.Now(), &err)

	if gs.CreatedAt == 0 {
		gs.CreatedAt = time.Now().UnixMilli()
	}

	query := `
		WITH inserted AS (
			INSERT INTO game_sessions (player_id, game_type, score, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, player_id
		)
		SELECT i.id, p.wallet_address, p.display_name
		FROM inserted i
		JOIN players p ON p.id = i.player_id
	`

	err = s.pool.QueryRow(ctx, query, gs.PlayerID, string(gs.GameType), gs.Score, gs.CreatedAt).
		Scan(&gs.ID, &gs.WalletAddress, &gs.DisplayName)
	if err != nil {
		if isForeignKeyError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert game session: %w", err)
	}
	return nil
}

// bestSessionsCTE selects one best session per player for $1, ordered like
// the board: score DESC, created_at ASC, id ASC.
const bestSessionsCTE = `
	best AS (
		SELECT DISTINCT ON (gs.player_id) gs.player_id, gs.score, gs.created_at, gs.id
		FROM game_sessions gs
		WHERE $1 = 'global' OR gs.game_type = $1
		ORDER BY gs.player_id, gs.score DESC, gs.created_at ASC, gs.id ASC
	)`

// TopScores returns each wallet's best session of a game, highest first,
// ranked from 1 and limited to limit entries.
func (s *LeaderboardStore) TopScores(ctx context.Context, game domain.GameType, limit int) (_ []domain.LeaderboardEntry, err error) {
	if !game.Valid() || limit < 0 {
		return nil, storage.ErrInvalidInput
	}
	defer record("top_scores", time.Now(), &err)

	query := `
		WITH` + bestSessionsCTE + `,
		played AS (
			SELECT player_id, COUNT(*) AS games
			FROM game_sessions
			WHERE $1 = 'global' OR game_type = $1
			GROUP BY player_id
		)
		SELECT p.wallet_address, p.display_name, b.score, pl.games
		FROM best b
		JOIN players p ON p.id = b.player_id
		JOIN played pl ON pl.player_id = b.player_id
		ORDER BY b.score DESC, b.created_at ASC, b.id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, string(game), limit)
	if err != nil {
		return nil, fmt.Errorf("query top scores: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0)
	for rows.Next() {
		var e domain.LeaderboardEntry
		var games int64
		if err := rows.Scan(&e.WalletAddress, &e.DisplayName, &e.Score, &games); err != nil {
			return nil, fmt.Errorf("scan top score: %w", err)
		}
		e.Rank = len(entries) + 1
		e.GamesPlayed = int(games)
		e.GameType = game
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top scores: %w", err)
	}

	return entries, nil
}

// Rank returns the position of a wallet's best session among every wallet's
// best session of a game. Returns ErrNotFound if the wallet has not played it.
func (s *LeaderboardStore) Rank(ctx context.Context, wallet string, game domain.GameType) (rank int, err error) {
	if !game.Valid() {
		return 0, storage.ErrInvalidInput
	}
	defer record("rank", time.Now(), &err)

	query := `
		WITH` + bestSessionsCTE + `,
		me AS (
			SELECT b.score, b.created_at, b.id
			FROM best b
			JOIN players p ON p.id = b.player_id
			WHERE p.wallet_address = $2
		)
		SELECT 1 + (
			SELECT COUNT(*)
			FROM best b
			WHERE b.score > me.score
			   OR (b.score = me.score AND (b.created_at, b.id) < (me.created_at, me.id))
		)
		FROM me
	`

	var pos int64
	if err = s.pool.QueryRow(ctx, query, string(game), wallet).Scan(&pos); err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("query rank: %w", err)
	}
	return int(pos), nil
}

// CountSessions returns how many sessions a wallet played in a game.
func (s *LeaderboardStore) CountSessions(ctx context.Context, wallet string, game domain.GameType) (n int, err error) {
	if !game.Valid() {
		return 0, storage.ErrInvalidInput
	}
	defer record("count_sessions", time.Now(), &err)

	query := `
		SELECT COUNT(*)
		FROM game_sessions gs
		JOIN players p ON p.id = gs.player_id
		WHERE p.wallet_address = $1 AND ($2 = 'global' OR gs.game_type = $2)
	`

	if err = s.pool.QueryRow(ctx, query, wallet, string(game)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count game sessions: %w", err)
	}
	return n, nil
}

func record(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), *err)
}

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	if err := row.Scan(&p.ID, &p.WalletAddress, &p.DisplayName, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
