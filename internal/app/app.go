// Package app wires the session, read cache, cooldown, capability probe and
// action orchestrator into the single-wallet page model.
package app

import (
	"context"
	"errors"
	"math/big"
	"net/url"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/baseminer/internal/actions"
	"github.com/ligun0805/baseminer/internal/capability"
	"github.com/ligun0805/baseminer/internal/cooldown"
	"github.com/ligun0805/baseminer/internal/format"
	"github.com/ligun0805/baseminer/internal/frame"
	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/readcache"
	"github.com/ligun0805/baseminer/internal/referral"
	"github.com/ligun0805/baseminer/internal/session"
)

// ErrCooldown is returned by Hatch while the countdown is still running.
var ErrCooldown = errors.New("refine cooldown has not elapsed")

// Deps are the already-constructed parts. Cooldown must be built with
// Frame as its gate for notifications to honor the added flag.
type Deps struct {
	Binder   *session.Binder
	Cache    *readcache.Cache
	Cooldown *cooldown.Engine
	Probe    *capability.Probe
	Actions  *actions.Orchestrator
	Referral *referral.State
	Frame    *frame.State

	Manifest  frame.Manifest
	PublicURL string
	Log       *logging.Logger
}

type App struct {
	d   Deps
	log *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	lastRewards *big.Int
	watchers    []func()
}

func New(d Deps) *App {
	if d.Log == nil {
		d.Log = logging.NewNopLogger()
	}
	if d.Referral == nil {
		d.Referral = &referral.State{}
	}
	if d.Frame == nil {
		d.Frame = &frame.State{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{d: d, log: d.Log.WithComponent("app"), ctx: ctx, cancel: cancel}

	d.Binder.OnChange(a.onSession)
	d.Cache.Subscribe(a.onRead)
	d.Cooldown.OnTick(func(cooldown.State) { a.changed() })
	return a
}

// onSession drops everything tied to the previous account and re-probes.
func (a *App) onSession(prev, next session.Session) {
	a.d.Cache.Reset()
	a.d.Cooldown.Clear()
	a.mu.Lock()
	a.lastRewards = nil
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.d.Probe.OnAddress(a.ctx, next.Address)
		a.changed()
	}()
	if next.Address != nil {
		a.d.Cache.Refetch()
	}
	a.changed()
}

func (a *App) onRead(name string, e readcache.Entry) {
	switch name {
	case readcache.LastHatch:
		if v, ok := e.Value.(*big.Int); ok {
			a.d.Cooldown.SetLastHatch(v)
		}
	case readcache.SellValue:
		// a zero read keeps the previous figure on screen
		if v, ok := e.Value.(*big.Int); ok && v.Sign() != 0 {
			a.mu.Lock()
			a.lastRewards = new(big.Int).Set(v)
			a.mu.Unlock()
		}
	}
	a.changed()
}

// OnChange registers fn to run after any state the view depends on moved.
func (a *App) OnChange(fn func()) {
	a.mu.Lock()
	a.watchers = append(a.watchers, fn)
	a.mu.Unlock()
}

func (a *App) changed() {
	a.mu.Lock()
	ws := append([]func(){}, a.watchers...)
	a.mu.Unlock()
	for _, fn := range ws {
		fn()
	}
}

// Run starts the pollers and tickers and blocks until ctx is done.
func (a *App) Run(ctx context.Context, sessionPoll, tick time.Duration) {
	a.d.Cache.Start()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); a.d.Binder.Run(ctx, sessionPoll) }()
	go func() { defer wg.Done(); a.d.Cooldown.Run(ctx, tick) }()
	<-ctx.Done()
	wg.Wait()
}

// Close stops background work. Call after Run returned.
func (a *App) Close() {
	a.cancel()
	a.wg.Wait()
	a.d.Actions.Close()
	a.d.Cache.Close()
}

func (a *App) Address() *common.Address { return a.d.Binder.Address() }

// CaptureReferral stores the ref query value on first load.
func (a *App) CaptureReferral(q url.Values) {
	if v, ok := referral.FromQuery(q); ok && a.d.Referral.Set(v) {
		a.log.Info("referral captured", "ref", v)
	}
}

func (a *App) Buy(ctx context.Context, amount string) (actions.Outcome, error) {
	return a.d.Actions.Buy(ctx, amount)
}

// Hatch refines once the countdown allows it, sponsored when the wallet
// supports a paymaster.
func (a *App) Hatch(ctx context.Context) (actions.Outcome, error) {
	if !a.d.Cooldown.IsReady() {
		return actions.Outcome{Kind: actions.KindRefine}, ErrCooldown
	}
	if a.d.Actions.CanSponsor() {
		return a.d.Actions.SponsoredHatch(ctx)
	}
	return a.d.Actions.Refine(ctx)
}

func (a *App) Sell(ctx context.Context) (actions.Outcome, error) {
	return a.d.Actions.Sell(ctx)
}

func (a *App) CheckCapabilities(ctx context.Context) capability.Result {
	res := a.d.Probe.CheckManual(ctx, a.Address())
	a.changed()
	return res
}

// Share builds the referral cast for the bound account.
func (a *App) Share() (frame.Cast, error) {
	addr := a.Address()
	if addr == nil {
		return frame.Cast{}, actions.ErrNotConnected
	}
	return frame.ShareCast(a.d.PublicURL, *addr), nil
}

func (a *App) SetFrameAdded(v bool) {
	a.d.Frame.SetAdded(v)
	a.changed()
}

// Manifest returns the pass-through values plus the current added flag.
func (a *App) Manifest() frame.Manifest {
	m := a.d.Manifest
	m.Added = a.d.Frame.Added()
	return m
}

// Percentage is pct percent of the wallet balance as an ETH string with six decimals.
func (a *App) Percentage(pct uint64) string {
	return format.EtherFixed(format.PercentOf(a.d.Cache.BigValue(readcache.WalletBalance), pct), 6)
}
