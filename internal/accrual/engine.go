// Package accrual mirrors the staking program's fixed-point reward accrual so
// pending rewards can be projected between on-chain refreshes.
//
// All accrual math is done on arbitrary-precision integers. Floats appear only
// in the display conversions (units.go) and the APY figure.
package accrual

import (
	"math/big"

	"npc-stake/internal/domain"
)

// Program constants. These must equal the staking program's SCALAR and the
// dashboard's seconds-per-year; they are not discoverable on-chain.
const (
	ScalarExponent = 12
	SecondsPerYear = 31_536_000
)

// Scalar returns 10^12, the accumulator's fixed-point precision.
func Scalar() *big.Int {
	return new(big.Int).Set(scalar)
}

var scalar = new(big.Int).Exp(big.NewInt(10), big.NewInt(ScalarExponent), nil)

// orZero treats a nil amount as zero.
func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}

// Elapsed returns max(0, now-lastUpdateTs). The difference is taken on big
// integers so extreme timestamps cannot wrap.
func Elapsed(lastUpdateTs, nowSecs int64) *big.Int {
	elapsed := new(big.Int).Sub(big.NewInt(nowSecs), big.NewInt(lastUpdateTs))
	if elapsed.Sign() < 0 {
		return new(big.Int)
	}
	return elapsed
}

// ProjectAccumulator advances pool.AccScaled to nowSecs:
//
//	accScaled + floor(rate * elapsed * 1e12 / totalStaked)
//
// The remainder is dropped exactly as the program drops it. With nothing staked
// the accumulator is returned unchanged.
func ProjectAccumulator(pool *domain.PoolSnapshot, nowSecs int64) *big.Int {
	acc := new(big.Int).Set(orZero(pool.AccScaled))

	total := orZero(pool.TotalStaked)
	if total.Sign() <= 0 {
		return acc
	}

	elapsed := Elapsed(pool.LastUpdateTs, nowSecs)
	if elapsed.Sign() == 0 {
		return acc
	}

	add := new(big.Int).Mul(orZero(pool.RewardRatePerSec), elapsed)
	add.Mul(add, scalar)
	add.Quo(add, total)
	if add.Sign() < 0 {
		return acc
	}
	return acc.Add(acc, add)
}

// Earned returns floor(staked * accHead / 1e12). Multiplication happens first.
func Earned(staked, accHead *big.Int) *big.Int {
	earned := new(big.Int).Mul(orZero(staked), orZero(accHead))
	return earned.Quo(earned, scalar)
}

// PendingRewards returns the reward-mint base units owed to user at nowSecs.
// The result is never negative: when earned does not exceed debt the last
// known unpaid balance is returned instead.
func PendingRewards(pool *domain.PoolSnapshot, user *domain.UserSnapshot, nowSecs int64) *big.Int {
	if pool == nil || user == nil {
		return new(big.Int)
	}

	unpaid := orZero(user.UnpaidRewards)

	// staked <= totalStaked, so an empty pool has nothing new to credit.
	if orZero(pool.TotalStaked).Sign() <= 0 {
		return clampNonNegative(unpaid)
	}

	accHead := ProjectAccumulator(pool, nowSecs)
	earned := Earned(user.Staked, accHead)

	debt := orZero(user.Debt)
	if earned.Cmp(debt) <= 0 {
		return clampNonNegative(unpaid)
	}

	pending := new(big.Int).Sub(earned, debt)
	pending.Add(pending, unpaid)
	return clampNonNegative(pending)
}

func clampNonNegative(x *big.Int) *big.Int {
	if x.Sign() < 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

// Project computes the full display projection for a snapshot pair. Either
// snapshot may be nil, in which case the zero projection (pending 0, APY 0)
// is returned.
func Project(pool *domain.PoolSnapshot, user *domain.UserSnapshot, nowSecs int64) domain.ProjectionResult {
	result := domain.ZeroProjection(nowSecs)
	result.HasPool = pool != nil
	result.HasUser = user != nil
	result.RewardDecimals = DefaultDecimals
	if pool != nil {
		result.RewardDecimals = pool.RewardDecimals
	}
	if pool == nil || user == nil {
		return result
	}

	apy := ComputeAPY(pool)
	result.APYPercent = apy.Percent
	result.APYTheoretical = apy.Theoretical

	result.PendingBaseUnits = PendingRewards(pool, user, nowSecs)
	result.PendingDisplay = ToDisplay(result.PendingBaseUnits, result.RewardDecimals)
	return result
}
