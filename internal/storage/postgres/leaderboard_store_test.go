package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npc-stake/internal/domain"
	"npc-stake/internal/storage"
)

func TestLeaderboardStore_GetOrCreatePlayer(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLeaderboardStore(pool)
	ctx := context.Background()

	first, err := store.GetOrCreatePlayer(ctx, "wallet-a", "wall...et-a")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, "wall...et-a", first.DisplayName)

	again, err := store.GetOrCreatePlayer(ctx, "wallet-a", "renamed")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "wall...et-a", again.DisplayName)

	_, err = store.GetOrCreatePlayer(ctx, "", "x")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestLeaderboardStore_InsertSession(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLeaderboardStore(pool)
	ctx := context.Background()

	p, err := store.GetOrCreatePlayer(ctx, "wallet-a", "a")
	require.NoError(t, err)

	gs := &domain.GameSession{PlayerID: p.ID, GameType: domain.GamePopPop, Score: 42}
	require.NoError(t, store.InsertSession(ctx, gs))
	assert.NotZero(t, gs.ID)
	assert.NotZero(t, gs.CreatedAt)
	assert.Equal(t, "wallet-a", gs.WalletAddress)
	assert.Equal(t, "a", gs.DisplayName)

	err = store.InsertSession(ctx, &domain.GameSession{PlayerID: 9999, GameType: domain.GamePopPop, Score: 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.InsertSession(ctx, &domain.GameSession{PlayerID: p.ID, GameType: domain.GameGlobal, Score: 1})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.InsertSession(ctx, &domain.GameSession{PlayerID: p.ID, GameType: domain.GamePopPop, Score: -1})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestLeaderboardStore_TopScoresRankAndCount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLeaderboardStore(pool)
	ctx := context.Background()

	a, err := store.GetOrCreatePlayer(ctx, "wallet-a", "a")
	require.NoError(t, err)
	b, err := store.GetOrCreatePlayer(ctx, "wallet-b", "b")
	require.NoError(t, err)

	sessions := []*domain.GameSession{
		{PlayerID: a.ID, GameType: domain.GamePopPop, Score: 10, CreatedAt: 1000},
		{PlayerID: b.ID, GameType: domain.GamePopPop, Score: 10, CreatedAt: 500},
		{PlayerID: a.ID, GameType: domain.GameCyberDefense, Score: 99, CreatedAt: 2000},
		{PlayerID: b.ID, GameType: domain.GamePopPop, Score: 3, CreatedAt: 3000},
	}
	for _, gs := range sessions {
		require.NoError(t, store.InsertSession(ctx, gs))
	}

	pop, err := store.TopScores(ctx, domain.GamePopPop, 10)
	require.NoError(t, err)
	require.Len(t, pop, 2)
	assert.Equal(t, "wallet-b", pop[0].WalletAddress) // tie broken by earlier created_at
	assert.Equal(t, 1, pop[0].Rank)
	assert.Equal(t, 2, pop[0].GamesPlayed)
	assert.Equal(t, "wallet-a", pop[1].WalletAddress)
	assert.Equal(t, int64(10), pop[1].Score)
	assert.Equal(t, 2, pop[1].Rank)

	all, err := store.TopScores(ctx, domain.GameGlobal, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "wallet-a", all[0].WalletAddress)
	assert.Equal(t, int64(99), all[0].Score)
	assert.Equal(t, 2, all[0].GamesPlayed)
	assert.Equal(t, domain.GameGlobal, all[0].GameType)

	limited, err := store.TopScores(ctx, domain.GameGlobal, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	rank, err := store.Rank(ctx, "wallet-b", domain.GamePopPop)
	require.NoError(t, err)
	assert.Equal(t, 1, rank)

	rank, err = store.Rank(ctx, "wallet-a", domain.GamePopPop)
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	rank, err = store.Rank(ctx, "wallet-b", domain.GameGlobal)
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	_, err = store.Rank(ctx, "wallet-b", domain.GameCyberDefense)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	n, err := store.CountSessions(ctx, "wallet-b", domain.GamePopPop)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.CountSessions(ctx, "wallet-a", domain.GameGlobal)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.CountSessions(ctx, "nobody", domain.GameGlobal)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.TopScores(ctx, domain.GameType("chess"), 10)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
