package accrual

import (
	"math/big"

	"github.com/shopspring/decimal"

	"npc-stake/internal/domain"
)

// apyPrecision is the number of decimal places kept in APY intermediates.
const apyPrecision = 18

// APY is the annualised yield of a pool together with the inputs it was
// derived from, as shown on the admin screen.
type APY struct {
	Percent        float64 `json:"apyPercent"`
	Theoretical    bool    `json:"theoretical"`
	RatePerSecUI   float64 `json:"ratePerSecUI"`
	TotalStakedUI  float64 `json:"totalStakedUI"`
	YearlyRewards  float64 `json:"yearlyRewards"`
	SecondsPerYear int64   `json:"secondsPerYear"`
}

// ComputeAPY returns the pool's APY:
//
//	(rateUI * SecondsPerYear / totalStakedUI) * 100
//
// A non-positive rate yields 0. When nothing is staked the yield is computed
// against a denominator of one display unit and flagged Theoretical.
func ComputeAPY(pool *domain.PoolSnapshot) APY {
	out := APY{SecondsPerYear: SecondsPerYear}
	if pool == nil {
		return out
	}

	rate := orZero(pool.RewardRatePerSec)
	total := orZero(pool.TotalStaked)

	rateUI := displayDecimal(rate, pool.RewardDecimals)
	totalUI := displayDecimal(total, pool.StakingDecimals)
	yearly := rateUI.Mul(decimal.NewFromInt(SecondsPerYear))

	out.RatePerSecUI = rateUI.InexactFloat64()
	out.TotalStakedUI = totalUI.InexactFloat64()
	out.YearlyRewards = yearly.InexactFloat64()

	if rate.Sign() <= 0 {
		return out
	}

	denominator := totalUI
	if total.Sign() <= 0 {
		denominator = decimal.NewFromInt(1)
		out.Theoretical = true
	}
	percent := yearly.DivRound(denominator, apyPrecision).Mul(decimal.NewFromInt(100))
	out.Percent = percent.InexactFloat64()
	return out
}

// RateCap mirrors the program's emission cap for a reward mint:
// u64::MAX / 10^decimals - 1.
func RateCap(rewardDecimals int) *big.Int {
	maxU64 := new(big.Int).SetUint64(^uint64(0))
	limit := maxU64.Quo(maxU64, pow10(rewardDecimals))
	if limit.Sign() > 0 {
		limit.Sub(limit, big.NewInt(1))
	}
	return limit
}
