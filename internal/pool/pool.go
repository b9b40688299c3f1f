// Package pool implements spec component C5: a bounded pool of Bolt
// connections per server address with lifetime/idle/staleness policies and
// fair FIFO acquisition.
package pool

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/boltstream/gobolt/internal/db"
	"github.com/boltstream/gobolt/internal/errorutil"
	"github.com/boltstream/gobolt/log"
)

// Dialer creates and authenticates a brand-new connection. It must be safe
// to call without holding the pool's lock (spec §4.4: "connect+handshake
// +authenticate outside any lock").
type Dialer func(ctx context.Context, address string) (db.Connection, error)

// Config carries the pool-wide knobs from spec §6.
type Config struct {
	MaxSize             int
	MaxConnectionLifetime time.Duration // < 0 disables staleness-by-age
	AcquisitionTimeout  time.Duration
	Dial                Dialer
	Log                 log.Logger
	Metrics             *Metrics
}

type addrState struct {
	idle       []db.Connection
	busy       map[db.Connection]bool
	inCreation int
	waiters    *list.List // of chan struct{}
}

func newAddrState() *addrState {
	return &addrState{busy: make(map[db.Connection]bool), waiters: list.New()}
}

func (s *addrState) total() int {
	return len(s.idle) + len(s.busy) + s.inCreation
}

// Pool owns every connection it creates by identity; callers hold only the
// db.Connection handle returned by Acquire (spec §9 "arena-like pool").
type Pool struct {
	cfg Config

	mu    sync.Mutex
	addrs map[string]*addrState
	closed bool
}

func New(cfg Config) *Pool {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100
	}
	if cfg.AcquisitionTimeout <= 0 {
		cfg.AcquisitionTimeout = 60 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = log.Void{}
	}
	return &Pool{cfg: cfg, addrs: make(map[string]*addrState)}
}

func (p *Pool) stateFor(addr string) *addrState {
	s, ok := p.addrs[addr]
	if !ok {
		s = newAddrState()
		p.addrs[addr] = s
	}
	return s
}

func (p *Pool) isStale(c db.Connection) bool {
	if c.IsStale() {
		return true
	}
	if p.cfg.MaxConnectionLifetime >= 0 && time.Since(c.Birthdate()) > p.cfg.MaxConnectionLifetime {
		return true
	}
	return false
}

// Acquire implements spec §4.4's algorithm: reuse an idle non-stale
// connection, else create one if under max_size, else wait FIFO for a
// release, bounded by ctx / AcquisitionTimeout.
func (p *Pool) Acquire(ctx context.Context, address string) (db.Connection, error) {
	start := time.Now()
	deadline := start.Add(p.cfg.AcquisitionTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, errorutil.NewDriverError(errorutil.KindServiceUnavailable, "pool is shut down", nil)
		}
		st := p.stateFor(address)

		// 1. Reuse an idle, non-stale connection.
		for len(st.idle) > 0 {
			c := st.idle[len(st.idle)-1]
			st.idle = st.idle[:len(st.idle)-1]
			if p.isStale(c) {
				p.mu.Unlock()
				c.Close(ctx)
				p.mu.Lock()
				continue
			}
			st.busy[c] = true
			p.updateMetrics(address, st)
			p.mu.Unlock()
			p.cfg.Metrics.observeAcquireWaitSeconds(time.Since(start).Seconds())
			return c, nil
		}

		// 2. Create a new connection if there is room.
		if st.total() < p.cfg.MaxSize {
			st.inCreation++
			p.updateMetrics(address, st)
			p.mu.Unlock()

			c, err := p.cfg.Dial(waitCtx, address)

			p.mu.Lock()
			st.inCreation--
			if err != nil {
				p.updateMetrics(address, st)
				p.mu.Unlock()
				p.cfg.Log.Warnf("pool", "", "failed to create connection to %s: %v", address, err)
				return nil, fmt.Errorf("pool: create connection to %s: %w", address, err)
			}
			st.busy[c] = true
			p.updateMetrics(address, st)
			p.mu.Unlock()
			p.cfg.Metrics.observeAcquireWaitSeconds(time.Since(start).Seconds())
			return c, nil
		}

		// 3. Enqueue as a FIFO waiter.
		wakeup := make(chan struct{}, 1)
		elem := st.waiters.PushBack(wakeup)
		p.mu.Unlock()

		select {
		case <-wakeup:
			// loop back around and retry from the top
		case <-waitCtx.Done():
			p.mu.Lock()
			st.waiters.Remove(elem)
			p.mu.Unlock()
			return nil, errorutil.NewDriverError(errorutil.KindServiceUnavailable,
				fmt.Sprintf("connection acquisition timed out for %s after %s", address, p.cfg.AcquisitionTimeout), waitCtx.Err())
		}
	}
}

// Release returns a connection to its address's idle set, or closes it if
// broken/stale (spec §4.4). needsReset indicates the session left the
// connection in a non-READY state and a RESET must be sent first.
func (p *Pool) Release(ctx context.Context, c db.Connection, needsReset bool) error {
	if needsReset && c.IsAlive() {
		if err := c.Reset(ctx); err != nil {
			c.SetBroken()
		}
	}

	p.mu.Lock()
	address := c.ServerAddress()
	st := p.stateFor(address)
	delete(st.busy, c)

	discard := !c.IsAlive() || p.isStale(c)
	if !discard {
		c.ResetIdleTimer()
		st.idle = append(st.idle, c)
	}
	p.updateMetrics(address, st)
	p.wakeOneWaiter(st)
	p.mu.Unlock()

	if discard {
		c.Close(ctx)
	}
	return nil
}

func (p *Pool) wakeOneWaiter(st *addrState) {
	if front := st.waiters.Front(); front != nil {
		st.waiters.Remove(front)
		ch := front.Value.(chan struct{})
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (p *Pool) updateMetrics(address string, st *addrState) {
	p.cfg.Metrics.setIdle(address, len(st.idle))
	p.cfg.Metrics.setBusy(address, len(st.busy))
	p.cfg.Metrics.setInCreation(address, st.inCreation)
}

// Shutdown closes idle connections, rejects waiters, lets busy connections
// drain briefly, then force-closes whatever remains (spec §4.4).
func (p *Pool) Shutdown(ctx context.Context, drain time.Duration) error {
	p.mu.Lock()
	p.closed = true
	var toClose []db.Connection
	var merr *multierror.Error
	for _, st := range p.addrs {
		toClose = append(toClose, st.idle...)
		st.idle = nil
		for e := st.waiters.Front(); e != nil; e = e.Next() {
			ch := e.Value.(chan struct{})
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		st.waiters.Init()
	}
	p.mu.Unlock()

	var g errgroup.Group
	for _, c := range toClose {
		c := c
		g.Go(func() error {
			c.Close(ctx)
			return nil
		})
	}
	_ = g.Wait()

	deadline := time.Now().Add(drain)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		remaining := 0
		for _, st := range p.addrs {
			remaining += len(st.busy)
		}
		p.mu.Unlock()
		if remaining == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	p.mu.Lock()
	for addr, st := range p.addrs {
		leaked := len(st.busy)
		for c := range st.busy {
			c.SetBroken()
			c.Close(ctx)
			delete(st.busy, c)
		}
		if leaked != 0 {
			p.cfg.Log.Warnf("pool", "", "%s still had %d busy connection(s) after shutdown drain; force-closed", addr, leaked)
			merr = multierror.Append(merr, fmt.Errorf("pool: %s still had %d busy connection(s) after shutdown drain", addr, leaked))
		}
	}
	p.mu.Unlock()
	return merr.ErrorOrNil()
}

// Snapshot returns the current (idle, busy, inCreation) counts for address,
// used by tests asserting the invariant in spec §8.
func (p *Pool) Snapshot(address string) (idle, busy, inCreation int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.addrs[address]
	if !ok {
		return 0, 0, 0
	}
	return len(st.idle), len(st.busy), st.inCreation
}
