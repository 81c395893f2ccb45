// Package actions runs staking program instructions one at a time on behalf
// of a wallet and refreshes snapshots once they land.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"npc-stake/internal/accrual"
	"npc-stake/internal/domain"
	"npc-stake/internal/observability"
	"npc-stake/internal/program"
	"npc-stake/internal/projection"
	"npc-stake/internal/solana"
)

// Action names an instruction submitted through the Runner.
type Action string

const (
	ActionInitialize       Action = "initialize"
	ActionConfigureRewards Action = "configure_rewards"
	ActionSetRewardRate    Action = "set_reward_rate"
	ActionSetPaused        Action = "set_paused"
	ActionFundRewards      Action = "fund_rewards"
	ActionWithdrawRewards  Action = "withdraw_rewards"
	ActionStake            Action = "stake"
	ActionUnstake          Action = "unstake"
	ActionEmergencyUnstake Action = "emergency_unstake"
	ActionClaim            Action = "claim"
	ActionCloseUser        Action = "close_user"
	ActionClosePool        Action = "close_pool"
)

// Errors returned before anything is submitted.
var (
	ErrActionInFlight    = errors.New("another action is in progress")
	ErrNoSigner          = errors.New("no wallet connected")
	ErrPoolNotFound      = errors.New("pool not initialized")
	ErrNoPosition        = errors.New("no staking position")
	ErrInsufficientStake = errors.New("amount exceeds staked balance")
	ErrRateTooHigh       = errors.New("reward rate exceeds cap")
	ErrUserNotClosable   = errors.New("user account still holds stake or rewards")
)

// Refresher forces a snapshot refresh after a successful action.
type Refresher interface {
	Refresh(ctx context.Context, force bool) (bool, error)
}

// Options configures a Runner.
type Options struct {
	Program     program.RemoteProgram
	Signer      program.Signer
	Projector   *projection.Projector
	Refresher   Refresher // optional
	StakingMint solana.PublicKey
	Now         func() time.Time
	Logger      *log.Logger
}

// Runner serializes actions: at most one is in flight at any time.
type Runner struct {
	program     program.RemoteProgram
	signer      program.Signer
	projector   *projection.Projector
	refresher   Refresher
	stakingMint solana.PublicKey
	now         func() time.Time
	logger      *log.Logger

	mu       sync.Mutex
	inFlight Action
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		program:     opts.Program,
		signer:      opts.Signer,
		projector:   opts.Projector,
		refresher:   opts.Refresher,
		stakingMint: opts.StakingMint,
		now:         now,
		logger:      logger,
	}
}

// InFlight returns the action currently running, or "" when idle.
func (r *Runner) InFlight() Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

func (r *Runner) begin(a Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight != "" {
		return fmt.Errorf("%s: %w (%s)", a, ErrActionInFlight, r.inFlight)
	}
	r.inFlight = a
	return nil
}

func (r *Runner) end() {
	r.mu.Lock()
	r.inFlight = ""
	r.mu.Unlock()
}

// do holds the in-flight slot for the duration of submit and forces a
// refresh once it succeeds.
func (r *Runner) do(ctx context.Context, a Action, submit func(program.Signer) (string, error)) (string, error) {
	if r.signer == nil {
		observability.RecordAction(string(a), "rejected")
		return "", fmt.Errorf("%s: %w", a, ErrNoSigner)
	}
	if err := r.begin(a); err != nil {
		observability.RecordAction(string(a), "rejected")
		return "", err
	}
	defer r.end()

	sig, err := submit(r.signer)
	if err != nil {
		observability.RecordAction(string(a), "error")
		return "", fmt.Errorf("%s: %w", a, err)
	}
	observability.RecordAction(string(a), "success")
	r.logger.Printf("%s confirmed: %s", a, sig)

	if r.refresher != nil {
		if _, err := r.refresher.Refresh(ctx, true); err != nil {
			r.logger.Printf("WARN: refresh after %s: %v", a, err)
		}
	}
	return sig, nil
}

func (r *Runner) pool() (*domain.PoolSnapshot, error) {
	pool := r.projector.Snapshots().Pool
	if pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

// parseAmount converts a human amount to positive base units that fit a u64.
func parseAmount(human string, decimals int) (uint64, error) {
	v, err := accrual.ToBaseUnits(human, decimals)
	if err != nil {
		return 0, err
	}
	if v.Sign() <= 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%w: %q", accrual.ErrInvalidAmount, human)
	}
	return v.Uint64(), nil
}

// Initialize creates the pool for the configured staking mint.
func (r *Runner) Initialize(ctx context.Context) (string, error) {
	return r.do(ctx, ActionInitialize, func(s program.Signer) (string, error) {
		return r.program.Initialize(ctx, s, r.stakingMint)
	})
}

// ConfigureRewards sets the reward mint and its initial rate, given in reward
// tokens per second.
func (r *Runner) ConfigureRewards(ctx context.Context, rewardMint string, rewardDecimals int, ratePerSec string) (string, error) {
	return r.do(ctx, ActionConfigureRewards, func(s program.Signer) (string, error) {
		mint, err := solana.ParsePublicKey(rewardMint)
		if err != nil {
			return "", fmt.Errorf("reward mint: %w", err)
		}
		rate, err := parseAmount(ratePerSec, rewardDecimals)
		if err != nil {
			return "", err
		}
		if !program.RateAllowed(rate, rewardDecimals) {
			return "", ErrRateTooHigh
		}
		return r.program.ConfigureRewards(ctx, s, mint, rate)
	})
}

// SetRewardRate changes the emission rate, given in reward tokens per second.
func (r *Runner) SetRewardRate(ctx context.Context, ratePerSec string) (string, error) {
	return r.do(ctx, ActionSetRewardRate, func(s program.Signer) (string, error) {
		pool, err := r.pool()
		if err != nil {
			return "", err
		}
		rate, err := parseAmount(ratePerSec, pool.RewardDecimals)
		if err != nil {
			return "", err
		}
		if !program.RateAllowed(rate, pool.RewardDecimals) {
			return "", ErrRateTooHigh
		}
		return r.program.SetRewardRate(ctx, s, rate)
	})
}

// SetPaused pauses or resumes staking.
func (r *Runner) SetPaused(ctx context.Context, paused bool) (string, error) {
	return r.do(ctx, ActionSetPaused, func(s program.Signer) (string, error) {
		return r.program.SetPaused(ctx, s, paused)
	})
}

// FundRewards deposits reward tokens into the reward vault.
func (r *Runner) FundRewards(ctx context.Context, amount string) (string, error) {
	return r.do(ctx, ActionFundRewards, func(s program.Signer) (string, error) {
		pool, err := r.pool()
		if err != nil {
			return "", err
		}
		v, err := parseAmount(amount, pool.RewardDecimals)
		if err != nil {
			return "", err
		}
		return r.program.FundRewards(ctx, s, v)
	})
}

// WithdrawRewards pulls reward tokens back out of the reward vault.
func (r *Runner) WithdrawRewards(ctx context.Context, amount string) (string, error) {
	return r.do(ctx, ActionWithdrawRewards, func(s program.Signer) (string, error) {
		pool, err := r.pool()
		if err != nil {
			return "", err
		}
		v, err := parseAmount(amount, pool.RewardDecimals)
		if err != nil {
			return "", err
		}
		return r.program.WithdrawRewards(ctx, s, v)
	})
}

// Stake deposits staking tokens.
func (r *Runner) Stake(ctx context.Context, amount string) (string, error) {
	return r.do(ctx, ActionStake, func(s program.Signer) (string, error) {
		pool, err := r.pool()
		if err != nil {
			return "", err
		}
		v, err := parseAmount(amount, pool.StakingDecimals)
		if err != nil {
			return "", err
		}
		return r.program.Stake(ctx, s, v)
	})
}

// Unstake withdraws staking tokens and settles rewards.
func (r *Runner) Unstake(ctx context.Context, amount string) (string, error) {
	return r.do(ctx, ActionUnstake, func(s program.Signer) (string, error) {
		v, err := r.withdrawable(amount)
		if err != nil {
			return "", err
		}
		return r.program.Unstake(ctx, s, v)
	})
}

// EmergencyUnstake withdraws staking tokens while forfeiting pending rewards.
func (r *Runner) EmergencyUnstake(ctx context.Context, amount string) (string, error) {
	return r.do(ctx, ActionEmergencyUnstake, func(s program.Signer) (string, error) {
		v, err := r.withdrawable(amount)
		if err != nil {
			return "", err
		}
		return r.program.EmergencyUnstake(ctx, s, v)
	})
}

func (r *Runner) withdrawable(amount string) (uint64, error) {
	snaps := r.projector.Snapshots()
	if snaps.Pool == nil {
		return 0, ErrPoolNotFound
	}
	if snaps.User == nil {
		return 0, ErrNoPosition
	}
	v, err := parseAmount(amount, snaps.Pool.StakingDecimals)
	if err != nil {
		return 0, err
	}
	if new(big.Int).SetUint64(v).Cmp(snaps.User.Staked) > 0 {
		return 0, ErrInsufficientStake
	}
	return v, nil
}

// Claim pays out pending rewards.
func (r *Runner) Claim(ctx context.Context) (string, error) {
	return r.do(ctx, ActionClaim, func(s program.Signer) (string, error) {
		snaps := r.projector.Snapshots()
		if snaps.Pool == nil {
			return "", ErrPoolNotFound
		}
		if snaps.User == nil {
			return "", ErrNoPosition
		}
		return r.program.Claim(ctx, s)
	})
}

// CloseUser reclaims the user account's rent once it holds nothing.
func (r *Runner) CloseUser(ctx context.Context) (string, error) {
	return r.do(ctx, ActionCloseUser, func(s program.Signer) (string, error) {
		snaps := r.projector.Snapshots()
		if snaps.Pool == nil {
			return "", ErrPoolNotFound
		}
		if snaps.User == nil {
			return "", ErrNoPosition
		}
		if !program.CloseUserAllowed(snaps.Pool, snaps.User, r.now().Unix()) {
			return "", ErrUserNotClosable
		}
		return r.program.CloseUser(ctx, s)
	})
}

// ClosePool closes an empty pool.
func (r *Runner) ClosePool(ctx context.Context) (string, error) {
	return r.do(ctx, ActionClosePool, func(s program.Signer) (string, error) {
		return r.program.ClosePool(ctx, s)
	})
}
