package projection

import (
	"io"
	"log"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npc-stake/internal/domain"
)

type fakeClock struct {
	secs atomic.Int64
}

func (c *fakeClock) Now() time.Time { return time.Unix(c.secs.Load(), 0) }

func newTestProjector(t *testing.T, clock *fakeClock) *Projector {
	t.Helper()
	p := New(Options{
		Interval: 5 * time.Millisecond,
		Now:      clock.Now,
		Logger:   log.New(io.Discard, "", 0),
	})
	t.Cleanup(p.Close)
	return p
}

func testPool(staked int64) *domain.PoolSnapshot {
	return &domain.PoolSnapshot{
		Address:          "pool",
		AccScaled:        big.NewInt(0),
		LastUpdateTs:     1000,
		RewardRatePerSec: big.NewInt(1_000_000),
		TotalStaked:      big.NewInt(staked),
		StakingDecimals:  6,
		RewardDecimals:   6,
	}
}

func testUser(staked int64) *domain.UserSnapshot {
	return &domain.UserSnapshot{
		Owner:         "owner",
		Staked:        big.NewInt(staked),
		Debt:          big.NewInt(0),
		UnpaidRewards: big.NewInt(0),
	}
}

func recv(t *testing.T, ch <-chan domain.ProjectionResult) domain.ProjectionResult {
	t.Helper()
	select {
	case res, ok := <-ch:
		require.True(t, ok, "channel closed")
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for projection")
		return domain.ProjectionResult{}
	}
}

func TestProjector_EmptyIsZero(t *testing.T) {
	clock := &fakeClock{}
	clock.secs.Store(1010)
	p := newTestProjector(t, clock)

	res := p.Current()
	assert.Equal(t, "0", res.PendingBaseUnits.String())
	assert.False(t, res.HasPool)
	assert.False(t, res.HasUser)
}

func TestProjector_ProjectAt(t *testing.T) {
	clock := &fakeClock{}
	p := newTestProjector(t, clock)
	p.Replace(testPool(1_000_000_000), testUser(1_000_000_000))

	assert.Equal(t, "10000000", p.ProjectAt(1010).PendingBaseUnits.String())
	assert.Equal(t, "0", p.ProjectAt(900).PendingBaseUnits.String())
}

func TestProjector_ResultCarriesPairSlotAndDecimals(t *testing.T) {
	clock := &fakeClock{}
	p := newTestProjector(t, clock)

	p.Store(Snapshots{Pool: testPool(1_000_000_000), User: testUser(1_000_000_000), Slot: 7})
	res := p.ProjectAt(1010)
	assert.Equal(t, int64(7), res.Slot)
	assert.Equal(t, 6, res.RewardDecimals)

	pool := testPool(1_000_000_000)
	pool.RewardDecimals = 9
	p.Store(Snapshots{Pool: pool, User: testUser(1_000_000_000), Slot: 8})

	// the earlier result is unaffected by the new pair
	assert.Equal(t, int64(7), res.Slot)
	assert.Equal(t, 6, res.RewardDecimals)

	res = p.ProjectAt(1010)
	assert.Equal(t, int64(8), res.Slot)
	assert.Equal(t, 9, res.RewardDecimals)
	assert.Equal(t, 0.01, res.PendingDisplay)
}

func TestProjector_SubscribeReceivesImmediateValue(t *testing.T) {
	clock := &fakeClock{}
	clock.secs.Store(1010)
	p := newTestProjector(t, clock)
	p.Replace(testPool(1_000_000_000), testUser(500_000_000))

	ch, cancel := p.Subscribe()
	defer cancel()

	res := recv(t, ch)
	assert.Equal(t, "5000000", res.PendingBaseUnits.String())
	assert.Equal(t, 5.0, res.PendingDisplay)
	assert.True(t, res.HasPool)
	assert.True(t, res.HasUser)
}

func TestProjector_TickFollowsClockAndReplace(t *testing.T) {
	clock := &fakeClock{}
	clock.secs.Store(1010)
	p := newTestProjector(t, clock)
	p.Replace(testPool(1_000_000_000), testUser(1_000_000_000))

	ch, cancel := p.Subscribe()
	defer cancel()
	recv(t, ch)

	clock.secs.Store(1020)
	waitFor(t, ch, "20000000")

	p.Replace(testPool(1_000_000_000), testUser(500_000_000))
	waitFor(t, ch, "10000000")
}

// waitFor reads ticks until one carries the wanted pending amount.
func waitFor(t *testing.T, ch <-chan domain.ProjectionResult, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if recv(t, ch).PendingBaseUnits.String() == want {
			return
		}
	}
	t.Fatalf("never observed pending %s", want)
}

func TestProjector_TickerLifecycle(t *testing.T) {
	clock := &fakeClock{}
	p := newTestProjector(t, clock)
	assert.False(t, p.Running())

	_, cancelA := p.Subscribe()
	_, cancelB := p.Subscribe()
	assert.True(t, p.Running())
	assert.Equal(t, 2, p.Subscribers())

	cancelA()
	assert.True(t, p.Running())

	cancelB()
	assert.False(t, p.Running())
	assert.Equal(t, 0, p.Subscribers())

	// cancel is idempotent
	cancelB()
	assert.Equal(t, 0, p.Subscribers())

	_, cancelC := p.Subscribe()
	assert.True(t, p.Running())
	cancelC()
	assert.False(t, p.Running())
}

func TestProjector_CancelClosesChannel(t *testing.T) {
	clock := &fakeClock{}
	p := newTestProjector(t, clock)

	ch, cancel := p.Subscribe()
	cancel()

	// drain the buffered value, then the channel must be closed
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestProjector_CloseDetachesAll(t *testing.T) {
	clock := &fakeClock{}
	p := New(Options{Interval: 5 * time.Millisecond, Now: clock.Now})

	ch, cancel := p.Subscribe()
	p.Close()
	cancel()

	<-ch
	_, ok := <-ch
	assert.False(t, ok)
	assert.False(t, p.Running())

	late, _ := p.Subscribe()
	<-late
	_, ok = <-late
	assert.False(t, ok)
}

func TestProjector_SnapshotPairIsConsistent(t *testing.T) {
	clock := &fakeClock{}
	clock.secs.Store(1010)
	p := newTestProjector(t, clock)

	// Each pair is built so that pending equals the user's stake in tokens
	// only when pool and user come from the same Replace call.
	pair := func(n int64) (*domain.PoolSnapshot, *domain.UserSnapshot) {
		return testPool(n * 1_000_000), testUser(n * 1_000_000)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := int64(1); ; n++ {
			select {
			case <-stop:
				return
			default:
			}
			p.Replace(pair(n%50 + 1))
		}
	}()

	for i := 0; i < 2000; i++ {
		s := p.Snapshots()
		if s.Pool == nil {
			continue
		}
		require.Equal(t, s.Pool.TotalStaked.String(), s.User.Staked.String())
		// full owner of the pool after 10 s at 1 token/s
		res := p.ProjectAt(1010)
		require.Equal(t, "10000000", res.PendingBaseUnits.String())
	}
	close(stop)
	wg.Wait()
}

func TestPublish_LatestWins(t *testing.T) {
	ch := make(chan domain.ProjectionResult, 1)
	publish(ch, domain.ProjectionResult{AsOf: 1})
	publish(ch, domain.ProjectionResult{AsOf: 2})
	publish(ch, domain.ProjectionResult{AsOf: 3})

	assert.Equal(t, int64(3), (<-ch).AsOf)
	select {
	case <-ch:
		t.Fatal("expected a single buffered value")
	default:
	}
}
