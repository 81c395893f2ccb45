package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"npc-stake/internal/domain"
	"npc-stake/internal/storage"
)

// LeaderboardStore is an in-memory implementation of storage.LeaderboardStore.
type LeaderboardStore struct {
	mu          sync.RWMutex
	players     map[string]*domain.Player // keyed by wallet_address
	byID        map[int64]*domain.Player
	sessions    []*domain.GameSession
	nextPlayer  int64
	nextSession int64
}

// NewLeaderboardStore creates a new in-memory leaderboard store.
func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{
		players: make(map[string]*domain.Player),
		byID:    make(map[int64]*domain.Player),
	}
}

// GetOrCreatePlayer returns the player for a wallet, creating it if needed.
func (s *LeaderboardStore) GetOrCreatePlayer(_ context.Context, wallet, displayName string) (*domain.Player, error) {
	if wallet == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, exists := s.players[wallet]; exists {
		playerCopy := *p
		return &playerCopy, nil
	}

	s.nextPlayer++
	p := &domain.Player{
		ID:            s.nextPlayer,
		WalletAddress: wallet,
		DisplayName:   displayName,
		CreatedAt:     time.Now().UnixMilli(),
	}
	s.players[wallet] = p
	s.byID[p.ID] = p

	playerCopy := *p
	return &playerCopy, nil
}

// InsertSession records a score. Returns ErrNotFound if the player does not exist.
func (s *LeaderboardStore) InsertSession(_ context.Context, gs *domain.GameSession) error {
	if gs == nil || !gs.GameType.Playable() || gs.Score < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.byID[gs.PlayerID]
	if !exists {
		return storage.ErrNotFound
	}

	s.nextSession++
	if gs.ID == 0 {
		gs.ID = s.nextSession
	}
	if gs.CreatedAt == 0 {
		gs.CreatedAt = time.Now().UnixMilli()
	}
	gs.WalletAddress = p.WalletAddress
	gs.DisplayName = p.DisplayName

	sessionCopy := *gs
	s.sessions = append(s.sessions, &sessionCopy)
	return nil
}

// TopScores returns each wallet's best session of a game, highest first,
// ranked from 1 and limited to limit entries.
func (s *LeaderboardStore) TopScores(_ context.Context, game domain.GameType, limit int) ([]domain.LeaderboardEntry, error) {
	if !game.Valid() || limit < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	best := s.bestLocked(game)
	if len(best) > limit {
		best = best[:limit]
	}

	entries := make([]domain.LeaderboardEntry, 0, len(best))
	for i, b := range best {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:          i + 1,
			WalletAddress: b.session.WalletAddress,
			Score:         b.session.Score,
			GamesPlayed:   b.played,
			GameType:      game,
			DisplayName:   b.session.DisplayName,
		})
	}
	return entries, nil
}

// Rank returns the position of a wallet's best session among every wallet's
// best session of a game. Returns ErrNotFound if the wallet has not played it.
func (s *LeaderboardStore) Rank(_ context.Context, wallet string, game domain.GameType) (int, error) {
	if !game.Valid() {
		return 0, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, b := range s.bestLocked(game) {
		if b.session.WalletAddress == wallet {
			return i + 1, nil
		}
	}
	return 0, storage.ErrNotFound
}

type bestScore struct {
	session *domain.GameSession
	played  int
}

// bestLocked returns one best session per wallet ordered by score DESC,
// created_at ASC, id ASC. Caller holds s.mu.
func (s *LeaderboardStore) bestLocked(game domain.GameType) []bestScore {
	byWallet := make(map[string]*bestScore)
	for _, gs := range s.sessions {
		if game != domain.GameGlobal && gs.GameType != game {
			continue
		}
		b, ok := byWallet[gs.WalletAddress]
		if !ok {
			byWallet[gs.WalletAddress] = &bestScore{session: gs, played: 1}
			continue
		}
		b.played++
		if sessionBefore(gs, b.session) {
			b.session = gs
		}
	}

	result := make([]bestScore, 0, len(byWallet))
	for _, b := range byWallet {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		return sessionBefore(result[i].session, result[j].session)
	})
	return result
}

func sessionBefore(a, b *domain.GameSession) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.ID < b.ID
}

// CountSessions returns how many sessions a wallet played in a game.
func (s *LeaderboardStore) CountSessions(_ context.Context, wallet string, game domain.GameType) (int, error) {
	if !game.Valid() {
		return 0, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, gs := range s.sessions {
		if gs.WalletAddress == wallet && (game == domain.GameGlobal || gs.GameType == game) {
			n++
		}
	}
	return n, nil
}

var _ storage.LeaderboardStore = (*LeaderboardStore)(nil)
