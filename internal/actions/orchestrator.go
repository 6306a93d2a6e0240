// Package actions runs the user-initiated contract calls: buy, hatch, sell,
// and the gas-sponsored hatch with its fallback to the plain one.
package actions

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/baseminer/internal/contract"
	"github.com/ligun0805/baseminer/internal/format"
	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/metrics"
	"github.com/ligun0805/baseminer/internal/wallet"
)

var (
	ErrNotConnected   = errors.New("wallet not connected")
	ErrInvalidAmount  = errors.New("amount must be a positive ETH value")
	ErrInFlight       = errors.New("action already in progress")
	ErrNotSponsorable = errors.New("sponsored gas not available")
)

// Refresher is told when a tx confirms or a sponsored batch is accepted.
type Refresher interface {
	Confirmed(hash common.Hash)
	Sponsored()
}

// Deps wires an Orchestrator. Address, Eggs and Sponsorable are read at call time.
type Deps struct {
	Writer    contract.Writer
	Confirmer contract.Confirmer
	Resolver  wallet.Resolver
	Refresher Refresher

	Address     func() *common.Address
	Eggs        func() *big.Int
	Sponsorable func() bool
	// Referral picks the buy beneficiary; nil means self.
	Referral func(self common.Address) common.Address

	Contract     common.Address
	ChainID      uint64
	PaymasterURL string

	Log     *logging.Logger
	Metrics metrics.Metrics
}

// Outcome describes what an action call submitted.
type Outcome struct {
	Kind      Kind        `json:"kind"`
	TxHash    common.Hash `json:"txHash,omitempty"`
	CallID    string      `json:"callId,omitempty"`
	Sponsored bool        `json:"sponsored"`
	Fallback  string      `json:"fallback,omitempty"`
}

type Orchestrator struct {
	d       Deps
	log     *logging.Logger
	metrics metrics.Metrics

	flags   Flags
	journal Journal

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func New(d Deps) *Orchestrator {
	if d.Metrics == nil {
		d.Metrics = metrics.NewNopMetrics()
	}
	if d.Log == nil {
		d.Log = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		d:       d,
		log:     d.Log.WithComponent("actions"),
		metrics: d.Metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (o *Orchestrator) Flags() FlagState { return o.flags.State() }

func (o *Orchestrator) Journal() []JournalItem { return o.journal.List() }

func (o *Orchestrator) address() (common.Address, error) {
	if o.d.Address == nil {
		return common.Address{}, ErrNotConnected
	}
	a := o.d.Address()
	if a == nil {
		return common.Address{}, ErrNotConnected
	}
	return *a, nil
}

// Buy stakes amount ETH, crediting the stored referrer or the caller.
func (o *Orchestrator) Buy(ctx context.Context, amount string) (Outcome, error) {
	from, err := o.address()
	if err != nil {
		return Outcome{Kind: KindMine}, err
	}
	value, err := format.ParseEther(amount)
	if err != nil || value.Sign() <= 0 {
		return Outcome{Kind: KindMine}, ErrInvalidAmount
	}
	ref := from
	if o.d.Referral != nil {
		ref = o.d.Referral(from)
	}
	return o.submit(ctx, KindMine, func() (common.Hash, error) {
		return o.d.Writer.Buy(ctx, from, ref, value)
	}, "value", format.Ether(value), "referral", ref.Hex())
}

// Refine compounds pending gems into miners with a plain transaction.
func (o *Orchestrator) Refine(ctx context.Context) (Outcome, error) {
	from, err := o.address()
	if err != nil {
		return Outcome{Kind: KindRefine}, err
	}
	return o.submit(ctx, KindRefine, func() (common.Hash, error) {
		return o.d.Writer.Hatch(ctx, from)
	})
}

// Sell cashes out pending gems.
func (o *Orchestrator) Sell(ctx context.Context) (Outcome, error) {
	from, err := o.address()
	if err != nil {
		return Outcome{Kind: KindSell}, err
	}
	return o.submit(ctx, KindSell, func() (common.Hash, error) {
		return o.d.Writer.Sell(ctx, from)
	})
}

func (o *Orchestrator) submit(ctx context.Context, kind Kind, send func() (common.Hash, error), attrs ...any) (Outcome, error) {
	out := Outcome{Kind: kind}
	if !o.flags.TryAcquire(kind) {
		o.metrics.IncAction(string(kind), "busy")
		return out, ErrInFlight
	}
	defer o.flags.Release(kind)

	hash, err := send()
	if err != nil {
		o.log.Error("submit failed", append(attrs, logging.Action(string(kind)), logging.Err(err))...)
		o.metrics.IncAction(string(kind), "failed")
		o.journal.Add(JournalItem{Time: time.Now(), Action: kind, Error: wallet.Describe(err)})
		return out, fmt.Errorf("%s: %w", kind, err)
	}
	out.TxHash = hash
	o.log.Info("submitted", append(attrs, logging.Action(string(kind)), logging.TxHash(hash))...)
	o.metrics.IncAction(string(kind), "submitted")
	o.journal.Add(JournalItem{Time: time.Now(), Action: kind, OK: true, TxHash: hash.Hex()})
	o.watch(kind, hash)
	return out, nil
}

// watch waits for the receipt in the background and then hands the hash to
// the refresher. Any receipt counts, reverted ones included.
func (o *Orchestrator) watch(kind Kind, hash common.Hash) {
	if o.d.Confirmer == nil {
		return
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		rc, err := o.d.Confirmer.Wait(o.ctx, hash)
		if err != nil {
			if o.ctx.Err() == nil {
				o.log.Warn("receipt wait failed", logging.Action(string(kind)), logging.TxHash(hash), logging.Err(err))
			}
			return
		}
		result := "confirmed"
		if rc.Status != types.ReceiptStatusSuccessful {
			result = "reverted"
		}
		o.log.Info("receipt", logging.Action(string(kind)), logging.TxHash(hash), "status", result, "block", rc.BlockNumber)
		o.metrics.IncAction(string(kind), result)
		if o.d.Refresher != nil {
			o.d.Refresher.Confirmed(hash)
		}
	}()
}

// CanSponsor reports whether a sponsored refine can be attempted: a paymaster
// is configured and the wallet advertised support.
func (o *Orchestrator) CanSponsor() bool {
	if o.d.PaymasterURL == "" {
		return false
	}
	return o.d.Sponsorable == nil || o.d.Sponsorable()
}

// SponsoredHatch asks the wallet to run hatchEggs through the paymaster.
// No pending gems, no provider, or any wallet_sendCalls error falls back to
// a single plain Refine.
func (o *Orchestrator) SponsoredHatch(ctx context.Context) (Outcome, error) {
	from, err := o.address()
	if err != nil {
		return Outcome{Kind: KindSponsored}, err
	}
	if !o.CanSponsor() {
		return Outcome{Kind: KindSponsored}, ErrNotSponsorable
	}
	var eggs *big.Int
	if o.d.Eggs != nil {
		eggs = o.d.Eggs()
	}
	if eggs == nil || eggs.Sign() <= 0 {
		o.log.Info("no gems to refine, using regular refine")
		return o.fallback(ctx, FallbackNoEggs)
	}

	if !o.flags.TryAcquire(KindSponsored) {
		o.metrics.IncAction(string(KindSponsored), "busy")
		return Outcome{Kind: KindSponsored}, ErrInFlight
	}
	defer o.flags.Release(KindSponsored)

	p, err := o.d.Resolver.Resolve()
	if err != nil {
		o.log.Warn("no provider for sponsored call, using regular refine", logging.Err(err))
		return o.fallback(ctx, FallbackNoProvider)
	}

	req := wallet.NewSponsoredCall(o.d.ChainID, from, o.d.Contract, contract.HatchSelector(), o.d.PaymasterURL)
	id, err := wallet.SendCalls(ctx, p, req)
	if err != nil {
		reason, detail := ClassifySponsorError(err)
		attrs := []any{logging.Err(err), "reason", reason}
		if code, ok := wallet.ErrorCode(err); ok {
			attrs = append(attrs, logging.Code(code))
		}
		o.log.Warn(detail+", falling back to regular refine", attrs...)
		o.metrics.IncAction(string(KindSponsored), "failed")
		o.journal.Add(JournalItem{Time: time.Now(), Action: KindSponsored, Reason: reason, Error: err.Error()})
		return o.fallback(ctx, reason)
	}

	o.log.Info("sponsored transaction sent", "call_id", id, logging.Address(from))
	o.metrics.IncAction(string(KindSponsored), "submitted")
	o.journal.Add(JournalItem{Time: time.Now(), Action: KindSponsored, OK: true, CallID: id})
	if o.d.Refresher != nil {
		o.d.Refresher.Sponsored()
	}
	return Outcome{Kind: KindSponsored, CallID: id, Sponsored: true}, nil
}

func (o *Orchestrator) fallback(ctx context.Context, reason string) (Outcome, error) {
	o.metrics.IncSponsoredFallback(reason)
	out, err := o.Refine(ctx)
	out.Fallback = reason
	return out, err
}

// Close stops receipt watchers and waits for them to exit.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cancel()
	o.wg.Wait()
}
