// Package refresh re-primes the read cache after a transaction lands.
// Reads lag writes by a block or so, hence the fixed delays.
package refresh

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/baseminer/internal/clock"
	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/readcache"
)

// Refetcher triggers reads by name; no names means every query.
type Refetcher interface {
	Refetch(names ...string)
}

type Delays struct {
	First     time.Duration // every query
	Second    time.Duration // sell value again, after First
	Sponsored time.Duration // after a sponsored call is accepted
}

func DefaultDelays() Delays {
	return Delays{First: time.Second, Second: 500 * time.Millisecond, Sponsored: 2 * time.Second}
}

type Refresher struct {
	cache  Refetcher
	clk    clock.Clock
	delays Delays
	log    *logging.Logger

	mu     sync.Mutex
	seen   map[common.Hash]struct{}
	timers map[int]clock.Timer
	next   int
	closed bool
}

func New(cache Refetcher, clk clock.Clock, d Delays, log *logging.Logger) *Refresher {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Refresher{
		cache:  cache,
		clk:    clk,
		delays: d,
		log:    log.WithComponent("refresh"),
		seen:   map[common.Hash]struct{}{},
		timers: map[int]clock.Timer{},
	}
}

// Confirmed schedules the post-confirmation refresh for hash. Repeated calls
// for the same hash do nothing while its refresh is pending.
func (r *Refresher) Confirmed(hash common.Hash) {
	r.mu.Lock()
	if _, dup := r.seen[hash]; dup || r.closed {
		r.mu.Unlock()
		return
	}
	r.seen[hash] = struct{}{}
	r.mu.Unlock()

	r.log.Debug("scheduling refresh", logging.TxHash(hash))
	r.after(r.delays.First, func() {
		r.cache.Refetch()
		r.after(r.delays.Second, func() {
			r.cache.Refetch(readcache.SellValue)
			r.forget(hash)
		})
	})
}

func (r *Refresher) forget(hash common.Hash) {
	r.mu.Lock()
	delete(r.seen, hash)
	r.mu.Unlock()
}

// Sponsored schedules the refresh used after a sponsored hatch.
func (r *Refresher) Sponsored() {
	r.after(r.delays.Sponsored, func() { r.cache.Refetch(readcache.SponsoredRefresh...) })
}

func (r *Refresher) after(d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	id := r.next
	r.next++
	r.timers[id] = r.clk.AfterFunc(d, func() {
		r.mu.Lock()
		delete(r.timers, id)
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return
		}
		fn()
	})
}

// Pending reports scheduled, unfired refreshes.
func (r *Refresher) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Close cancels pending refreshes. Timers that already started firing are ignored.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	timers := r.timers
	r.timers = map[int]clock.Timer{}
	r.mu.Unlock()
	for _, t := range timers {
		t.Stop()
	}
}
