package program

import (
	"context"
	"math/big"

	"npc-stake/internal/accrual"
	"npc-stake/internal/domain"
	"npc-stake/internal/solana"
)

// Signer authorizes transactions for a wallet.
type Signer interface {
	PublicKey() solana.PublicKey
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// RemoteProgram submits the staking program's instructions. Each call returns
// the transaction signature once confirmed. Implementations build, sign and
// send the transaction; amounts are in base units.
type RemoteProgram interface {
	Initialize(ctx context.Context, signer Signer, stakingMint solana.PublicKey) (string, error)
	ConfigureRewards(ctx context.Context, signer Signer, rewardMint solana.PublicKey, ratePerSec uint64) (string, error)
	SetRewardRate(ctx context.Context, signer Signer, ratePerSec uint64) (string, error)
	SetPaused(ctx context.Context, signer Signer, paused bool) (string, error)
	FundRewards(ctx context.Context, signer Signer, amount uint64) (string, error)
	WithdrawRewards(ctx context.Context, signer Signer, amount uint64) (string, error)
	Stake(ctx context.Context, signer Signer, amount uint64) (string, error)
	Unstake(ctx context.Context, signer Signer, amount uint64) (string, error)
	EmergencyUnstake(ctx context.Context, signer Signer, amount uint64) (string, error)
	Claim(ctx context.Context, signer Signer) (string, error)
	CloseUser(ctx context.Context, signer Signer) (string, error)
	ClosePool(ctx context.Context, signer Signer) (string, error)
}

// CloseUserAllowed mirrors the program's close_user constraint at nowSecs:
// nothing staked and nothing pending, carry-over included.
func CloseUserAllowed(pool *domain.PoolSnapshot, user *domain.UserSnapshot, nowSecs int64) bool {
	if pool == nil || user == nil {
		return false
	}
	if user.Staked != nil && user.Staked.Sign() != 0 {
		return false
	}
	return accrual.PendingRewards(pool, user, nowSecs).Sign() == 0
}

// RateCap returns the largest reward rate ConfigureRewards accepts for a
// reward mint with the given decimals.
func RateCap(rewardDecimals int) *big.Int {
	return accrual.RateCap(rewardDecimals)
}

// RateAllowed reports whether rate is within the emission cap for a reward
// mint with the given decimals.
func RateAllowed(rate uint64, rewardDecimals int) bool {
	return new(big.Int).SetUint64(rate).Cmp(RateCap(rewardDecimals)) <= 0
}
