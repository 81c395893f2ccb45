// Package projection re-evaluates pending rewards once per second against the
// latest pool/user snapshot pair and fans the result out to subscribers.
package projection

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"npc-stake/internal/accrual"
	"npc-stake/internal/domain"
	"npc-stake/internal/observability"
)

// DefaultInterval is the projection tick period.
const DefaultInterval = time.Second

// Snapshots is an immutable pool/user pair. It is always replaced whole so a
// tick never sees the pool from one fetch and the user from another.
type Snapshots struct {
	Pool      *domain.PoolSnapshot
	User      *domain.UserSnapshot
	FetchedAt time.Time
	Slot      int64
}

// Options configures a Projector.
type Options struct {
	Interval time.Duration
	Now      func() time.Time
	Logger   *log.Logger
}

// Projector holds the current snapshot pair and drives the tick loop while
// at least one subscriber is attached.
type Projector struct {
	interval time.Duration
	now      func() time.Time
	logger   *log.Logger

	snap atomic.Pointer[Snapshots]

	mu     sync.Mutex
	nextID int
	subs   map[int]chan domain.ProjectionResult
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// New creates a Projector with no snapshots.
func New(opts Options) *Projector {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	p := &Projector{
		interval: opts.Interval,
		now:      opts.Now,
		logger:   opts.Logger,
		subs:     make(map[int]chan domain.ProjectionResult),
	}
	p.snap.Store(&Snapshots{})
	return p
}

// Replace swaps in a new snapshot pair. Either side may be nil.
func (p *Projector) Replace(pool *domain.PoolSnapshot, user *domain.UserSnapshot) {
	p.Store(Snapshots{Pool: pool, User: user, FetchedAt: p.now()})
}

// Store swaps in s as the current pair.
func (p *Projector) Store(s Snapshots) {
	p.snap.Store(&s)
	observability.RecordSnapshotReplaced()

	if s.Pool != nil {
		apy := accrual.ComputeAPY(s.Pool)
		observability.UpdatePoolGauges(s.Pool.Address, apy.Percent, apy.Theoretical, apy.TotalStakedUI)
	}
}

// Snapshots returns the current pair.
func (p *Projector) Snapshots() Snapshots {
	return *p.snap.Load()
}

// Current projects pending rewards at the current wall clock.
func (p *Projector) Current() domain.ProjectionResult {
	return p.ProjectAt(p.now().Unix())
}

// ProjectAt projects pending rewards at nowSecs using one consistent pair.
func (p *Projector) ProjectAt(nowSecs int64) domain.ProjectionResult {
	s := p.snap.Load()
	res := accrual.Project(s.Pool, s.User, nowSecs)
	res.Slot = s.Slot
	return res
}

// Subscribe attaches a listener. The returned channel receives the current
// projection immediately and then one value per tick; a slow reader only ever
// sees the latest value. The cancel func detaches and closes the channel.
func (p *Projector) Subscribe() (<-chan domain.ProjectionResult, func()) {
	ch := make(chan domain.ProjectionResult, 1)
	ch <- p.Current()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	if len(p.subs) == 1 {
		p.startLocked()
	}
	observability.SetProjectionSubscribers(len(p.subs))
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { p.unsubscribe(id) })
	}
}

func (p *Projector) unsubscribe(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.subs[id]
	if !ok {
		return
	}
	delete(p.subs, id)
	close(ch)
	observability.SetProjectionSubscribers(len(p.subs))

	if len(p.subs) == 0 {
		p.stopLocked()
	}
}

// Subscribers returns the number of attached listeners.
func (p *Projector) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Running reports whether the tick loop is active.
func (p *Projector) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// Close detaches every subscriber and stops the tick loop.
func (p *Projector) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
	observability.SetProjectionSubscribers(0)
	p.stopLocked()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Projector) startLocked() {
	stop := make(chan struct{})
	p.stop = stop
	p.wg.Add(1)
	go p.run(stop)
}

func (p *Projector) stopLocked() {
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

func (p *Projector) run(stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.tick(stop)
		}
	}
}

func (p *Projector) tick(stop <-chan struct{}) {
	res := p.Current()
	observability.RecordProjectionTick()

	p.mu.Lock()
	defer p.mu.Unlock()

	// A stale loop may still fire once after being replaced.
	select {
	case <-stop:
		return
	default:
	}

	for _, ch := range p.subs {
		publish(ch, res)
	}
}

// publish delivers res without blocking, dropping any unread older value.
func publish(ch chan domain.ProjectionResult, res domain.ProjectionResult) {
	select {
	case ch <- res:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- res:
	default:
	}
}
