// Package cooldown derives the hatch countdown from the lastHatch timestamp
// and sends one notification each time the countdown reaches zero.
package cooldown

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ligun0805/baseminer/internal/clock"
	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/metrics"
	"github.com/ligun0805/baseminer/internal/notify"
)

const DefaultDuration = time.Hour

// Remaining returns max(0, lastHatch + d - now).
func Remaining(lastHatch, now time.Time, d time.Duration) time.Duration {
	r := lastHatch.Add(d).Sub(now)
	if r < 0 {
		return 0
	}
	return r
}

// Format renders a millisecond remainder as "Ready", "{h}h {m}m", "{m}m {s}s" or "{s}s".
func Format(ms int64) string {
	if ms <= 0 {
		return "Ready"
	}
	hours := ms / 3_600_000
	minutes := (ms % 3_600_000) / 60_000
	seconds := (ms % 60_000) / 1000
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// Notifier delivers the readiness notification.
type Notifier interface {
	Send(ctx context.Context, n notify.Notification) error
}

// Gate reports whether the user added the host frame. Notifications only
// go out when it is true.
type Gate interface {
	Added() bool
}

// notifyState only moves to armed while the countdown is running, so a
// countdown that is already over when first loaded does not notify.
type notifyState int

const (
	fired notifyState = iota
	armed
)

// State is one tick's view of the countdown.
type State struct {
	Loaded     bool
	LastAction time.Time
	Duration   time.Duration
	Remaining  time.Duration
	Ready      bool
	// Fire is set on the one tick that should send the notification.
	Fire bool
}

func (s State) Format() string { return Format(s.Remaining.Milliseconds()) }

// Engine holds the countdown for the bound account.
type Engine struct {
	duration time.Duration
	clk      clock.Clock
	gate     Gate
	notifier Notifier
	log      *logging.Logger
	metrics  metrics.Metrics

	mu        sync.Mutex
	loaded    bool
	lastHatch time.Time
	ns        notifyState
	state     State
	listeners []func(State)

	wg sync.WaitGroup
}

type Option func(*Engine)

func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clk = c } }

func WithMetrics(m metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func NewEngine(d time.Duration, gate Gate, n Notifier, log *logging.Logger, opts ...Option) *Engine {
	if d <= 0 {
		d = DefaultDuration
	}
	e := &Engine{
		duration: d,
		clk:      clock.RealClock{},
		gate:     gate,
		notifier: n,
		log:      log.WithComponent("cooldown"),
		metrics:  metrics.NewNopMetrics(),
	}
	for _, o := range opts {
		o(e)
	}
	e.state = State{Duration: d, Ready: true}
	return e
}

// SetLastHatch feeds the lastHatch read in unix seconds. Nil or zero means
// "not loaded" and leaves the countdown untouched.
func (e *Engine) SetLastHatch(secs *big.Int) {
	if secs == nil || secs.Sign() <= 0 || !secs.IsInt64() {
		return
	}
	e.mu.Lock()
	e.loaded = true
	e.lastHatch = time.Unix(secs.Int64(), 0)
	e.mu.Unlock()
}

// Clear forgets the account. Called when the session address changes.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.loaded = false
	e.lastHatch = time.Time{}
	e.ns = fired
	e.state = State{Duration: e.duration, Ready: true}
	e.mu.Unlock()
}

func (e *Engine) OnTick(fn func(State)) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// Tick recomputes the countdown at now and advances the notify machine.
func (e *Engine) Tick(now time.Time) State {
	e.mu.Lock()
	if !e.loaded {
		st := e.state
		e.mu.Unlock()
		return st
	}
	rem := Remaining(e.lastHatch, now, e.duration)
	st := State{
		Loaded:     true,
		LastAction: e.lastHatch,
		Duration:   e.duration,
		Remaining:  rem,
		Ready:      rem <= 0,
	}
	switch {
	case rem > 0:
		e.ns = armed
	case e.ns == armed && e.gate != nil && e.gate.Added():
		e.ns = fired
		st.Fire = true
	}
	e.state = st
	ls := append([]func(State){}, e.listeners...)
	e.mu.Unlock()

	e.metrics.SetCooldownRemaining(rem)
	for _, l := range ls {
		l(st)
	}
	return st
}

func (e *Engine) Current() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Remaining() time.Duration { return e.Current().Remaining }

func (e *Engine) IsReady() bool { return e.Current().Remaining <= 0 }

// Run ticks every interval until ctx is done. Notifications are sent in the
// background so a slow endpoint never delays a tick.
func (e *Engine) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		if st := e.Tick(e.clk.Now()); st.Fire {
			e.send(ctx)
		}
		select {
		case <-ctx.Done():
			e.wg.Wait()
			return
		case <-t.C:
		}
	}
}

func (e *Engine) send(ctx context.Context) {
	if e.notifier == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := e.notifier.Send(ctx, notify.Notification{Title: notify.RefineReadyTitle, Body: notify.RefineReadyBody})
		if err != nil {
			e.metrics.IncNotification("failed")
			e.log.Warn("cooldown notification failed", logging.Err(err))
			return
		}
		e.metrics.IncNotification("sent")
		e.log.Info("cooldown notification sent")
	}()
}
