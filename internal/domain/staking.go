package domain

import "math/big"

// PoolSnapshot is the accrual state of a staking pool as last fetched from the
// staking program. Snapshots are replaced wholesale on refresh, never mutated.
type PoolSnapshot struct {
	Address          string   // pool PDA (base58), informational
	AccScaled        *big.Int // reward-per-staked-unit accumulator, scaled by 1e12
	LastUpdateTs     int64    // unix seconds of the last on-chain accumulator update
	RewardRatePerSec *big.Int // reward-mint base units emitted per second
	TotalStaked      *big.Int // staking-mint base units staked pool-wide
	StakingDecimals  int      // staking mint decimals
	RewardDecimals   int      // reward mint decimals
}

// UserSnapshot is one wallet's staking position in a pool.
type UserSnapshot struct {
	Owner         string   // wallet address (base58), informational
	Staked        *big.Int // staking-mint base units
	Debt          *big.Int // accumulator share already settled against the user
	UnpaidRewards *big.Int // rewards credited but not yet paid out
}

// ProjectionResult is the derived, display-ready view of a user's position at
// one instant. It has no identity and is recomputed on every tick.
type ProjectionResult struct {
	PendingBaseUnits *big.Int // reward-mint base units owed now
	PendingDisplay   float64  // PendingBaseUnits / 10^RewardDecimals
	APYPercent       float64  // annualised yield, 0 when undefined
	APYTheoretical   bool     // APY computed against 1 display unit because nothing is staked
	AsOf             int64    // unix seconds the projection was computed for
	HasPool          bool     // a pool snapshot was available
	HasUser          bool     // a user snapshot was available
	RewardDecimals   int      // reward mint decimals of the pool snapshot used
	Slot             int64    // context slot of the snapshot pair used
}

// ZeroProjection returns the projection used when no pool or user is known.
func ZeroProjection(asOf int64) ProjectionResult {
	return ProjectionResult{
		PendingBaseUnits: new(big.Int),
		AsOf:             asOf,
	}
}

// PoolHistoryPoint is one recorded pool snapshot, kept for APY/TVL charts.
// Corresponds to pool_snapshots table in ClickHouse.
type PoolHistoryPoint struct {
	Pool             string  // pool PDA
	TimestampMs      int64   // when the snapshot was fetched (ms)
	Slot             int64   // context slot of the fetch
	AccScaled        string  // decimal string, u128 on-chain
	RewardRatePerSec uint64  // base units per second
	TotalStaked      uint64  // base units
	APYPercent       float64 // APY at fetch time
	Theoretical      bool    // APY computed against 1 display unit
}
