// Package readcache keeps named contract reads warm on independent timers.
package readcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ligun0805/baseminer/internal/clock"
	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/metrics"
)

// Fetch loads the current value of one query.
type Fetch func(ctx context.Context) (any, error)

// Query describes one polled read.
type Query struct {
	Name       string
	Every      time.Duration
	Retries    int
	RetryDelay time.Duration
	// Enabled gates both polling and refetches. Nil means always on.
	Enabled func() bool
	Fetch   Fetch
}

// Entry is the last known state of a query.
type Entry struct {
	Value     any
	Loading   bool
	Err       error
	UpdatedAt time.Time
}

// Snapshot maps query names to entries.
type Snapshot map[string]Entry

// Subscriber is called after every stored result.
type Subscriber func(name string, e Entry)

var ErrClosed = errors.New("read cache closed")

type query struct {
	Query
	started uint64 // fetches begun
	stored  uint64 // sequence of the newest stored result
}

// Cache runs one poller per query. Results that arrive after Reset or Close
// belong to an older generation and are dropped.
type Cache struct {
	log     *logging.Logger
	limiter *rate.Limiter
	clk     clock.Clock
	metrics metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	queries map[string]*query
	order   []string
	entries map[string]Entry
	subs    []Subscriber
	gen     uint64
	started bool
	closed  bool
}

type Option func(*Cache)

func WithClock(c clock.Clock) Option { return func(x *Cache) { x.clk = c } }

func WithMetrics(m metrics.Metrics) Option { return func(x *Cache) { x.metrics = m } }

// New creates a cache. A nil limiter means unlimited.
func New(log *logging.Logger, limiter *rate.Limiter, opts ...Option) *Cache {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		log:     log.WithComponent("readcache"),
		limiter: limiter,
		clk:     clock.RealClock{},
		metrics: metrics.NewNopMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		queries: map[string]*query{},
		entries: map[string]Entry{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Register adds a query. Registering after Start only makes it refetchable;
// it will not get its own poller.
func (c *Cache) Register(q Query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.queries[q.Name]; !ok {
		c.order = append(c.order, q.Name)
	}
	c.queries[q.Name] = &query{Query: q}
}

// Names returns the registered query names in registration order.
func (c *Cache) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

func (c *Cache) Subscribe(fn Subscriber) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Start launches the pollers. Each polls immediately, then on its interval.
func (c *Cache) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	qs := make([]*query, 0, len(c.order))
	for _, name := range c.order {
		qs = append(qs, c.queries[name])
	}
	c.wg.Add(len(qs))
	c.mu.Unlock()

	for _, q := range qs {
		go c.poll(q.Name, q.Every)
	}
}

func (c *Cache) poll(name string, every time.Duration) {
	defer c.wg.Done()
	c.fetch(name)
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			c.fetch(name)
		}
	}
}

// Refetch fetches the named queries now, in the background. No names means all.
func (c *Cache) Refetch(names ...string) {
	if len(names) == 0 {
		names = c.Names()
	}
	for _, name := range names {
		c.mu.Lock()
		closed := c.closed
		if !closed {
			c.wg.Add(1)
		}
		c.mu.Unlock()
		if closed {
			return
		}
		go func(n string) {
			defer c.wg.Done()
			c.fetch(n)
		}(name)
	}
}

// RefetchSync fetches the named queries and waits for them. Used by the CLI.
func (c *Cache) RefetchSync(names ...string) {
	if len(names) == 0 {
		names = c.Names()
	}
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			c.fetch(n)
		}(name)
	}
	wg.Wait()
}

func (c *Cache) fetch(name string) {
	c.mu.Lock()
	q, ok := c.queries[name]
	closed := c.closed
	c.mu.Unlock()
	if !ok || closed {
		return
	}
	// Enabled may read other entries, so it runs unlocked
	if q.Enabled != nil && !q.Enabled() {
		return
	}

	c.mu.Lock()
	q.started++
	seq, gen := q.started, c.gen
	e := c.entries[name]
	e.Loading = true
	c.entries[name] = e
	fetch, retries, delay := q.Fetch, q.Retries, q.RetryDelay
	c.mu.Unlock()

	begin := c.clk.Now()
	v, err := c.withRetry(name, fetch, retries, delay)
	c.metrics.ObserveReadLatency(name, c.clk.Now().Sub(begin))
	if err != nil && c.ctx.Err() == nil {
		c.metrics.IncReadError(name)
		c.log.Warn("read failed", logging.Query(name), logging.Err(err))
	}

	c.mu.Lock()
	if c.closed || gen != c.gen || seq < q.stored {
		// the loading mark belongs to this generation; settle it unless a newer fetch owns it
		if gen == c.gen && seq == q.started {
			c.settleLocked(name)
		}
		c.mu.Unlock()
		return
	}
	q.stored = seq
	e = c.entries[name]
	e.Loading = false
	e.Err = err
	if err == nil {
		e.Value = v
		e.UpdatedAt = c.clk.Now()
	}
	c.entries[name] = e
	subs := append([]Subscriber(nil), c.subs...)
	c.mu.Unlock()

	for _, s := range subs {
		s(name, e)
	}
}

// settleLocked clears a dropped fetch's loading mark. An entry that never
// held a value or an error is removed so it reads as absent.
func (c *Cache) settleLocked(name string) {
	e, ok := c.entries[name]
	if !ok {
		return
	}
	if e.Value == nil && e.Err == nil && e.UpdatedAt.IsZero() {
		delete(c.entries, name)
		return
	}
	e.Loading = false
	c.entries[name] = e
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005")
}

// withRetry runs fetch up to retries+1 times. Rate-limit errors double the wait.
func (c *Cache) withRetry(name string, fetch Fetch, retries int, delay time.Duration) (any, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := c.limiter.Wait(c.ctx); err != nil {
			return nil, err
		}
		v, err := fetch(c.ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == retries {
			break
		}
		c.log.Debug("read retry", logging.Query(name), "attempt", attempt+1, logging.Err(err))
		if isRateLimitError(err) {
			delay *= 2
		}
		select {
		case <-c.ctx.Done():
			return nil, c.ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func (c *Cache) Get(name string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	return e, ok
}

// Value returns the cached value of name, or nil.
func (c *Cache) Value(name string) any {
	e, _ := c.Get(name)
	return e.Value
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(Snapshot, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Reset forgets every value and drops in-flight results. Called when the
// bound account changes.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.gen++
	c.entries = map[string]Entry{}
	c.mu.Unlock()
}

// Close stops the pollers and waits for in-flight fetches to unwind.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}
