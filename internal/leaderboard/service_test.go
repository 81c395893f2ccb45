package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npc-stake/internal/domain"
	"npc-stake/internal/solana"
	"npc-stake/internal/storage/memory"
)

func wallet(n byte) string {
	return solana.PublicKey{n}.String()
}

func newService() *Service {
	return NewService(memory.NewLeaderboardStore(), log.New(io.Discard, "", 0))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "4Nd1...Pa7h", DisplayName("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4TPa7h"))
	assert.Equal(t, "short", DisplayName("short"))
}

func TestSubmit_Validation(t *testing.T) {
	s := newService()
	ctx := context.Background()

	_, err := s.Submit(ctx, "not a wallet", 10, domain.GamePopPop)
	assert.ErrorIs(t, err, ErrInvalidWallet)

	_, err = s.Submit(ctx, wallet(1), -1, domain.GamePopPop)
	assert.ErrorIs(t, err, ErrInvalidScore)

	_, err = s.Submit(ctx, wallet(1), 10, domain.GameGlobal)
	assert.ErrorIs(t, err, ErrInvalidGameType)

	_, err = s.Submit(ctx, wallet(1), 10, domain.GameType("chess"))
	assert.ErrorIs(t, err, ErrInvalidGameType)
}

func TestSubmit_ReturnsRank(t *testing.T) {
	s := newService()
	ctx := context.Background()

	rank, err := s.Submit(ctx, wallet(1), 100, domain.GamePopPop)
	require.NoError(t, err)
	assert.Equal(t, 1, rank)

	rank, err = s.Submit(ctx, wallet(2), 200, domain.GamePopPop)
	require.NoError(t, err)
	assert.Equal(t, 1, rank)

	// a worse score keeps the player's best
	rank, err = s.Submit(ctx, wallet(2), 5, domain.GamePopPop)
	require.NoError(t, err)
	assert.Equal(t, 1, rank)

	rank, err = s.Submit(ctx, wallet(3), 150, domain.GamePopPop)
	require.NoError(t, err)
	assert.Equal(t, 2, rank)
}

// rankOnlyStore fails board reads so Submit must rank through the store.
type rankOnlyStore struct {
	*memory.LeaderboardStore
	rankCalls int
}

func (s *rankOnlyStore) TopScores(context.Context, domain.GameType, int) ([]domain.LeaderboardEntry, error) {
	return nil, errors.New("board read not expected")
}

func (s *rankOnlyStore) Rank(ctx context.Context, wallet string, game domain.GameType) (int, error) {
	s.rankCalls++
	return s.LeaderboardStore.Rank(ctx, wallet, game)
}

func TestSubmit_RanksWithoutReadingBoard(t *testing.T) {
	store := &rankOnlyStore{LeaderboardStore: memory.NewLeaderboardStore()}
	s := NewService(store, log.New(io.Discard, "", 0))
	ctx := context.Background()

	_, err := s.Submit(ctx, wallet(1), 50, domain.GamePopPop)
	require.NoError(t, err)

	rank, err := s.Submit(ctx, wallet(2), 10, domain.GamePopPop)
	require.NoError(t, err)
	assert.Equal(t, 2, rank)
	assert.Equal(t, 2, store.rankCalls)
}

func TestBoard_BestScorePerPlayer(t *testing.T) {
	s := newService()
	ctx := context.Background()

	submit := func(w byte, score int64, game domain.GameType) {
		_, err := s.Submit(ctx, wallet(w), score, game)
		require.NoError(t, err)
	}
	submit(1, 10, domain.GamePopPop)
	submit(1, 30, domain.GamePopPop)
	submit(2, 20, domain.GamePopPop)
	submit(2, 500, domain.GameCyberDefense)
	submit(3, 30, domain.GamePopPop)

	board, err := s.Board(ctx, domain.GamePopPop)
	require.NoError(t, err)
	require.Len(t, board, 3)

	// wallet 1 reached 30 first
	assert.Equal(t, wallet(1), board[0].WalletAddress)
	assert.Equal(t, int64(30), board[0].Score)
	assert.Equal(t, 2, board[0].GamesPlayed)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, DisplayName(wallet(1)), board[0].DisplayName)
	assert.Equal(t, domain.GamePopPop, board[0].GameType)

	assert.Equal(t, wallet(3), board[1].WalletAddress)
	assert.Equal(t, wallet(2), board[2].WalletAddress)
	assert.Equal(t, 1, board[2].GamesPlayed)
	assert.Equal(t, 3, board[2].Rank)

	global, err := s.Board(ctx, domain.GameGlobal)
	require.NoError(t, err)
	require.Len(t, global, 3)
	assert.Equal(t, wallet(2), global[0].WalletAddress)
	assert.Equal(t, int64(500), global[0].Score)
	assert.Equal(t, 2, global[0].GamesPlayed)
	assert.Equal(t, domain.GameGlobal, global[0].GameType)
}

func TestBoard_TopEntriesOnly(t *testing.T) {
	s := newService()
	ctx := context.Background()

	for i := 0; i < MaxEntries+5; i++ {
		w := solana.PublicKey{byte(i), byte(i >> 8), 1}.String()
		_, err := s.Submit(ctx, w, int64(i), domain.GameCyberDefense)
		require.NoError(t, err, fmt.Sprint(i))
	}

	board, err := s.Board(ctx, domain.GameCyberDefense)
	require.NoError(t, err)
	assert.Len(t, board, MaxEntries)
	assert.Equal(t, int64(MaxEntries+4), board[0].Score)
	assert.Equal(t, MaxEntries, board[MaxEntries-1].Rank)

	// below the shown entries ranks just past them
	rank, err := s.Submit(ctx, wallet(250), 0, domain.GameCyberDefense)
	require.NoError(t, err)
	assert.Equal(t, MaxEntries+1, rank)
}

func TestBoard_InvalidGameType(t *testing.T) {
	_, err := newService().Board(context.Background(), domain.GameType("chess"))
	assert.ErrorIs(t, err, ErrInvalidGameType)
}

func TestAll_EmptyBoards(t *testing.T) {
	data, err := newService().All(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, data.CyberDefense)
	assert.Empty(t, data.CyberDefense)
	assert.Empty(t, data.PopPop)
	assert.Empty(t, data.Global)
}
