package accrual

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npc-stake/internal/domain"
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "parse %s", s)
	return v
}

// scenarioPool is 1 token/sec (6 decimals) over 1000 staked tokens.
func scenarioPool() *domain.PoolSnapshot {
	return &domain.PoolSnapshot{
		AccScaled:        bi(0),
		LastUpdateTs:     1000,
		RewardRatePerSec: bi(1_000_000),
		TotalStaked:      bi(1_000_000_000),
		StakingDecimals:  6,
		RewardDecimals:   6,
	}
}

func TestProgramConstants(t *testing.T) {
	// Must match SCALAR in the staking program and the dashboard's 365-day year.
	assert.Equal(t, "1000000000000", Scalar().String())
	assert.Equal(t, int64(31_536_000), int64(SecondsPerYear))
}

func TestScalar_ReturnsCopy(t *testing.T) {
	s := Scalar()
	s.SetInt64(7)
	assert.Equal(t, "1000000000000", Scalar().String())
}

func TestPendingRewards_FullPoolOwner(t *testing.T) {
	pool := scenarioPool()
	user := &domain.UserSnapshot{Staked: bi(1_000_000_000), Debt: bi(0), UnpaidRewards: bi(0)}

	acc := ProjectAccumulator(pool, 1010)
	assert.Equal(t, "10000000000", acc.String())

	earned := Earned(user.Staked, acc)
	assert.Equal(t, "10000000", earned.String())

	pending := PendingRewards(pool, user, 1010)
	assert.Equal(t, "10000000", pending.String())
	assert.Equal(t, 10.0, ToDisplay(pending, pool.RewardDecimals))
}

func TestPendingRewards_ProportionalSplit(t *testing.T) {
	pool := scenarioPool()
	user := &domain.UserSnapshot{Staked: bi(500_000_000), Debt: bi(0), UnpaidRewards: bi(0)}

	pending := PendingRewards(pool, user, 1010)
	assert.Equal(t, "5000000", pending.String())
}

func TestPendingRewards_EmptyPoolKeepsUnpaid(t *testing.T) {
	pool := scenarioPool()
	pool.TotalStaked = bi(0)
	pool.AccScaled = bi(123_456_789)

	for _, unpaid := range []int64{0, 42, 9_999_999} {
		user := &domain.UserSnapshot{Staked: bi(0), Debt: bi(0), UnpaidRewards: bi(unpaid)}
		for _, now := range []int64{0, 999, 1000, 1010, 1_000_000_000} {
			pending := PendingRewards(pool, user, now)
			assert.Equal(t, unpaid, pending.Int64(), "unpaid=%d now=%d", unpaid, now)
		}
	}

	assert.Equal(t, "123456789", ProjectAccumulator(pool, 5000).String())
}

func TestPendingRewards_ClockSkewActsAsZeroElapsed(t *testing.T) {
	pool := scenarioPool()
	pool.LastUpdateTs = 2000
	pool.AccScaled = bi(50_000_000_000)
	user := &domain.UserSnapshot{Staked: bi(1_000_000_000), Debt: bi(10_000_000), UnpaidRewards: bi(7)}

	skewed := PendingRewards(pool, user, 1000)
	atUpdate := PendingRewards(pool, user, 2000)

	assert.Equal(t, atUpdate.String(), skewed.String())
	assert.Equal(t, "0", Elapsed(2000, 1000).String())
	// 1e9 * 5e10 / 1e12 = 5e7; minus debt 1e7, plus unpaid 7
	assert.Equal(t, "40000007", skewed.String())
}

func TestPendingRewards_ExtremeLastUpdateDoesNotWrap(t *testing.T) {
	pool := scenarioPool()
	pool.LastUpdateTs = math.MinInt64
	user := &domain.UserSnapshot{Staked: bi(1_000_000_000), Debt: bi(0), UnpaidRewards: bi(0)}

	assert.Equal(t, "9223372036854776818", Elapsed(math.MinInt64, 1010).String())
	assert.Equal(t, "9223372036854776818000000000", ProjectAccumulator(pool, 1010).String())
	assert.Equal(t, "9223372036854776818000000", PendingRewards(pool, user, 1010).String())

	assert.Equal(t, "0", Elapsed(math.MaxInt64, math.MinInt64).String())
}

// The program settles at most seven days of emissions per update; the
// projection applies the plain formula, so a pool idle for longer displays
// more than a claim would pay until the next on-chain update.
func TestPendingRewards_NoSettlementCap(t *testing.T) {
	const settlementMaxDt = 7 * 24 * 60 * 60

	pool := scenarioPool()
	user := &domain.UserSnapshot{Staked: bi(1_000_000_000), Debt: bi(0), UnpaidRewards: bi(0)}

	now := pool.LastUpdateTs + 8*24*60*60
	pending := PendingRewards(pool, user, now)
	// 8 days at 1 token/s, sole staker
	assert.Equal(t, "691200000000", pending.String())

	settled := new(big.Int).Mul(pool.RewardRatePerSec, bi(settlementMaxDt))
	assert.Equal(t, 1, pending.Cmp(settled))
}

func TestPendingRewards_UnderflowFallsBackToUnpaid(t *testing.T) {
	pool := scenarioPool()
	user := &domain.UserSnapshot{
		Staked:        bi(1_000_000_000),
		Debt:          bi(50_000_000), // more than the 10 tokens earned after 10s
		UnpaidRewards: bi(3_000_000),
	}

	pending := PendingRewards(pool, user, 1010)
	assert.Equal(t, "3000000", pending.String())

	// earned == debt also falls back
	user.Debt = bi(10_000_000)
	assert.Equal(t, "3000000", PendingRewards(pool, user, 1010).String())
}

func TestPendingRewards_TruncationDustIsKept(t *testing.T) {
	pool := &domain.PoolSnapshot{
		AccScaled:        bi(0),
		LastUpdateTs:     0,
		RewardRatePerSec: bi(1),
		TotalStaked:      bi(3),
		RewardDecimals:   6,
	}
	user := &domain.UserSnapshot{Staked: bi(3), Debt: bi(0), UnpaidRewards: bi(0)}

	// floor(1 * 1 * 1e12 / 3) = 333333333333
	assert.Equal(t, "333333333333", ProjectAccumulator(pool, 1).String())
	// floor(3 * 333333333333 / 1e12) = 0: the third of a unit is dropped
	assert.Equal(t, "0", PendingRewards(pool, user, 1).String())
	// floor(2e12 / 3) = 666666666666 -> floor(3 * 666666666666 / 1e12) = 1, not 2
	assert.Equal(t, "1", PendingRewards(pool, user, 2).String())
	// exact division leaves no dust
	assert.Equal(t, "3", PendingRewards(pool, user, 3).String())
}

func TestPendingRewards_Monotonic(t *testing.T) {
	pool := &domain.PoolSnapshot{
		AccScaled:        mustBig(t, "987654321987"),
		LastUpdateTs:     1_700_000_000,
		RewardRatePerSec: bi(123_457),
		TotalStaked:      bi(987_654_321),
		RewardDecimals:   9,
	}
	user := &domain.UserSnapshot{Staked: bi(12_345_678), Debt: bi(11_000), UnpaidRewards: bi(5)}

	prev := PendingRewards(pool, user, pool.LastUpdateTs-100)
	for now := pool.LastUpdateTs - 99; now < pool.LastUpdateTs+5000; now += 7 {
		cur := PendingRewards(pool, user, now)
		require.True(t, cur.Cmp(prev) >= 0, "pending decreased at now=%d: %s < %s", now, cur, prev)
		prev = cur
	}
}

func TestPendingRewards_NeverNegative(t *testing.T) {
	cases := []struct {
		name string
		pool *domain.PoolSnapshot
		user *domain.UserSnapshot
		now  int64
	}{
		{
			name: "huge debt",
			pool: scenarioPool(),
			user: &domain.UserSnapshot{Staked: bi(1), Debt: mustBig(t, "340282366920938463463374607431768211455"), UnpaidRewards: bi(0)},
			now:  1010,
		},
		{
			name: "negative unpaid from a corrupt snapshot",
			pool: scenarioPool(),
			user: &domain.UserSnapshot{Staked: bi(0), Debt: bi(0), UnpaidRewards: bi(-5)},
			now:  1010,
		},
		{
			name: "far past now",
			pool: scenarioPool(),
			user: &domain.UserSnapshot{Staked: bi(1_000_000_000), Debt: bi(1), UnpaidRewards: bi(0)},
			now:  -1 << 40,
		},
		{
			name: "nil fields",
			pool: &domain.PoolSnapshot{TotalStaked: bi(10)},
			user: &domain.UserSnapshot{},
			now:  10,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pending := PendingRewards(tc.pool, tc.user, tc.now)
			require.NotNil(t, pending)
			assert.GreaterOrEqual(t, pending.Sign(), 0)
		})
	}
}

func TestEarned_LargeValuesKeepPrecision(t *testing.T) {
	staked := mustBig(t, "1000000000000000")
	accHead := mustBig(t, "1000000000000000")

	ref := new(big.Int).Mul(staked, accHead)
	ref.Quo(ref, mustBig(t, "1000000000000"))

	assert.Equal(t, ref.String(), Earned(staked, accHead).String())
	assert.Equal(t, "1000000000000000000", Earned(staked, accHead).String())

	// u64::MAX staked against a u128-sized accumulator
	staked = mustBig(t, "18446744073709551615")
	accHead = mustBig(t, "170141183460469231731687303715884105727")
	ref = new(big.Int).Mul(staked, accHead)
	ref.Quo(ref, mustBig(t, "1000000000000"))
	assert.Equal(t, ref.String(), Earned(staked, accHead).String())
}

func TestProjectAccumulator_LargeRate(t *testing.T) {
	pool := &domain.PoolSnapshot{
		AccScaled:        mustBig(t, "5"),
		LastUpdateTs:     0,
		RewardRatePerSec: mustBig(t, "18446744073709"),
		TotalStaked:      bi(1),
	}

	// rate * 7 days * 1e12 overflows u64 many times over.
	elapsed := int64(7 * 24 * 3600)
	want := new(big.Int).Mul(pool.RewardRatePerSec, big.NewInt(elapsed))
	want.Mul(want, Scalar())
	want.Add(want, big.NewInt(5))

	assert.Equal(t, want.String(), ProjectAccumulator(pool, elapsed).String())
}

func TestProject_AbsentSnapshots(t *testing.T) {
	pool := scenarioPool()
	user := &domain.UserSnapshot{Staked: bi(1), Debt: bi(0), UnpaidRewards: bi(0)}

	for _, tc := range []struct {
		name string
		pool *domain.PoolSnapshot
		user *domain.UserSnapshot
	}{
		{"no pool", nil, user},
		{"no user", pool, nil},
		{"neither", nil, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res := Project(tc.pool, tc.user, 1010)
			assert.Equal(t, "0", res.PendingBaseUnits.String())
			assert.Zero(t, res.PendingDisplay)
			assert.Zero(t, res.APYPercent)
			assert.False(t, res.APYTheoretical)
			assert.Equal(t, tc.pool != nil, res.HasPool)
			assert.Equal(t, tc.user != nil, res.HasUser)
			assert.Equal(t, 6, res.RewardDecimals)
		})
	}
}

func TestProject_UsesSnapshotDecimals(t *testing.T) {
	pool := scenarioPool()
	user := &domain.UserSnapshot{Staked: bi(1_000_000_000), Debt: bi(0), UnpaidRewards: bi(0)}

	res := Project(pool, user, 1010)
	assert.Equal(t, "10000000", res.PendingBaseUnits.String())
	assert.Equal(t, 10.0, res.PendingDisplay)

	pool.RewardDecimals = 9
	res = Project(pool, user, 1010)
	assert.Equal(t, 0.01, res.PendingDisplay)
	assert.Equal(t, 9, res.RewardDecimals)
	assert.Equal(t, int64(1010), res.AsOf)
}
