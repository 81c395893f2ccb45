// Package refresh keeps the projector's pool/user snapshot pair current by
// polling the staking accounts and reacting to account change notifications.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"npc-stake/internal/accrual"
	"npc-stake/internal/domain"
	"npc-stake/internal/observability"
	"npc-stake/internal/program"
	"npc-stake/internal/projection"
	"npc-stake/internal/solana"
	"npc-stake/internal/storage"
)

// Defaults.
const (
	DefaultInterval    = 30 * time.Second
	DefaultCacheWindow = 10 * time.Second
)

// Status describes the outcome of the latest refresh.
type Status struct {
	LastSuccess time.Time `json:"lastSuccess"`
	LastAttempt time.Time `json:"lastAttempt"`
	LastError   string    `json:"lastError,omitempty"`
	Slot        int64     `json:"slot"`
	PoolFound   bool      `json:"poolFound"`
	UserFound   bool      `json:"userFound"`
	Runs        int       `json:"runs"`
}

// Options configures a Refresher.
type Options struct {
	RPC       solana.RPCClient
	WS        solana.WSClient // optional: change notifications force a refresh
	Projector *projection.Projector
	Addresses program.Addresses
	History   storage.PoolHistoryStore // optional

	Interval    time.Duration // poll period, default 30s
	CacheWindow time.Duration // non-forced refreshes inside this window are skipped
	Now         func() time.Time
	Logger      *log.Logger
}

// Refresher fetches the pool and user accounts and hands consistent snapshot
// pairs to the projector.
type Refresher struct {
	rpc       solana.RPCClient
	ws        solana.WSClient
	projector *projection.Projector
	addrs     program.Addresses
	history   storage.PoolHistoryStore

	interval    time.Duration
	cacheWindow time.Duration
	now         func() time.Time
	logger      *log.Logger

	// run serializes refreshes so two fetches never race on Store.
	run sync.Mutex

	mu       sync.Mutex
	status   Status
	decimals map[solana.PublicKey]int
}

// New creates a Refresher.
func New(opts Options) *Refresher {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	cacheWindow := opts.CacheWindow
	if cacheWindow < 0 {
		cacheWindow = 0
	} else if cacheWindow == 0 {
		cacheWindow = DefaultCacheWindow
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Refresher{
		rpc:         opts.RPC,
		ws:          opts.WS,
		projector:   opts.Projector,
		addrs:       opts.Addresses,
		history:     opts.History,
		interval:    interval,
		cacheWindow: cacheWindow,
		now:         now,
		logger:      logger,
		decimals:    make(map[solana.PublicKey]int),
	}
}

// Status returns a copy of the latest refresh status.
func (r *Refresher) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Addresses returns the accounts this refresher reads.
func (r *Refresher) Addresses() program.Addresses {
	return r.addrs
}

// Refresh fetches fresh snapshots. A non-forced refresh within the cache
// window of the last success is skipped and reports false.
func (r *Refresher) Refresh(ctx context.Context, force bool) (bool, error) {
	r.run.Lock()
	defer r.run.Unlock()

	start := r.now()
	if !force && r.fresh(start) {
		return false, nil
	}

	slot, poolFound, userFound, err := r.fetch(ctx, start)
	duration := r.now().Sub(start).Seconds()

	r.mu.Lock()
	r.status.Runs++
	r.status.LastAttempt = start
	if err != nil {
		r.status.LastError = err.Error()
	} else {
		r.status.LastError = ""
		r.status.LastSuccess = start
		r.status.Slot = slot
		r.status.PoolFound = poolFound
		r.status.UserFound = userFound
	}
	r.mu.Unlock()

	if err != nil {
		observability.RecordRefresh("error", duration, start.Unix())
		return true, err
	}
	observability.RecordRefresh("success", duration, start.Unix())
	return true, nil
}

func (r *Refresher) fresh(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	last := r.status.LastSuccess
	return !last.IsZero() && now.Sub(last) < r.cacheWindow
}

// fetch reads pool and user in one call so both come from the same slot.
func (r *Refresher) fetch(ctx context.Context, now time.Time) (slot int64, poolFound, userFound bool, err error) {
	keys := []string{r.addrs.Pool.String()}
	if r.addrs.HasUser() {
		keys = append(keys, r.addrs.User.String())
	}

	res, err := r.rpc.GetMultipleAccounts(ctx, keys)
	if err != nil {
		return 0, false, false, fmt.Errorf("get accounts: %w", err)
	}

	poolAcct := res.Accounts[0]
	if poolAcct == nil {
		// Pool not initialized: neither side is meaningful.
		r.projector.Store(projection.Snapshots{FetchedAt: now, Slot: res.Slot})
		return res.Slot, false, false, nil
	}

	pool, err := program.DecodePool(poolAcct.Data)
	if err != nil {
		return 0, false, false, fmt.Errorf("decode pool: %w", err)
	}

	var user *domain.UserSnapshot
	if len(res.Accounts) > 1 && res.Accounts[1] != nil {
		u, err := program.DecodeUser(res.Accounts[1].Data)
		if err != nil {
			return 0, false, false, fmt.Errorf("decode user: %w", err)
		}
		user = u.Snapshot()
	}

	stakingDecimals := r.mintDecimals(ctx, pool.StakingMint)
	rewardDecimals := accrual.DefaultDecimals
	if pool.RewardConfigured {
		rewardDecimals = r.mintDecimals(ctx, pool.RewardMint)
	}

	snap := pool.Snapshot(r.addrs.Pool.String(), stakingDecimals, rewardDecimals)
	r.projector.Store(projection.Snapshots{Pool: snap, User: user, FetchedAt: now, Slot: res.Slot})
	r.record(ctx, snap, now, res.Slot)

	return res.Slot, true, user != nil, nil
}

// mintDecimals returns a mint's decimals, falling back to the default when the
// mint cannot be read. Only successful lookups are cached.
func (r *Refresher) mintDecimals(ctx context.Context, mint solana.PublicKey) int {
	r.mu.Lock()
	d, ok := r.decimals[mint]
	r.mu.Unlock()
	if ok {
		return d
	}

	acct, err := r.rpc.GetAccountInfo(ctx, mint.String())
	if err == nil && acct == nil {
		err = errors.New("mint account not found")
	}
	if err == nil {
		d, err = program.DecodeMintDecimals(acct.Data)
	}
	if err != nil {
		r.logger.Printf("WARN: mint %s decimals unavailable, using %d: %v", mint, accrual.DefaultDecimals, err)
		return accrual.DefaultDecimals
	}

	r.mu.Lock()
	r.decimals[mint] = d
	r.mu.Unlock()
	return d
}

// record appends the pool snapshot to the history store. Failures are logged
// and never fail the refresh.
func (r *Refresher) record(ctx context.Context, pool *domain.PoolSnapshot, now time.Time, slot int64) {
	if r.history == nil {
		return
	}

	apy := accrual.ComputeAPY(pool)
	point := &domain.PoolHistoryPoint{
		Pool:             pool.Address,
		TimestampMs:      now.UnixMilli(),
		Slot:             slot,
		AccScaled:        pool.AccScaled.String(),
		RewardRatePerSec: pool.RewardRatePerSec.Uint64(),
		TotalStaked:      pool.TotalStaked.Uint64(),
		APYPercent:       apy.Percent,
		Theoretical:      apy.Theoretical,
	}

	if err := r.history.Insert(ctx, point); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		r.logger.Printf("WARN: record pool history: %v", err)
	}
}

// Run refreshes immediately, then on every poll tick and on every account
// change notification. It blocks until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Printf("Starting refresher: pool=%s user=%s interval=%v", r.addrs.Pool, r.addrs.User, r.interval)

	if _, err := r.Refresh(ctx, true); err != nil {
		r.logger.Printf("Initial refresh failed: %v", err)
	}

	poolCh, userCh := r.subscribe(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("Refresher stopping...")
			return ctx.Err()

		case <-ticker.C:
			r.refreshAndLog(ctx, false)

		case _, ok := <-poolCh:
			if !ok {
				r.logger.Println("Pool notifications closed, polling only")
				poolCh = nil
				continue
			}
			observability.RecordAccountNotification("pool")
			r.refreshAndLog(ctx, true)

		case _, ok := <-userCh:
			if !ok {
				r.logger.Println("User notifications closed, polling only")
				userCh = nil
				continue
			}
			observability.RecordAccountNotification("user")
			r.refreshAndLog(ctx, true)
		}
	}
}

func (r *Refresher) refreshAndLog(ctx context.Context, force bool) {
	if _, err := r.Refresh(ctx, force); err != nil && ctx.Err() == nil {
		r.logger.Printf("Refresh failed: %v", err)
	}
}

// subscribe registers for pool and user account changes. Nil channels are
// returned for anything that could not be subscribed.
func (r *Refresher) subscribe(ctx context.Context) (pool, user <-chan solana.AccountNotification) {
	if r.ws == nil {
		return nil, nil
	}

	var err error
	if pool, err = r.ws.SubscribeAccount(ctx, r.addrs.Pool.String()); err != nil {
		r.logger.Printf("WARN: subscribe pool account: %v", err)
		pool = nil
	}
	if r.addrs.HasUser() {
		if user, err = r.ws.SubscribeAccount(ctx, r.addrs.User.String()); err != nil {
			r.logger.Printf("WARN: subscribe user account: %v", err)
			user = nil
		}
	}
	return pool, user
}
