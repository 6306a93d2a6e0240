// Package capability discovers whether the wallet can sponsor gas through a
// paymaster on the target chain.
package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/metrics"
	"github.com/ligun0805/baseminer/internal/wallet"
)

const (
	MsgConnectFirst = "Please connect your wallet first"
	MsgNoProvider   = "No wallet provider detected. Please ensure your wallet is properly connected."
	MsgSupported    = "✅ Sponsored gas is available! Gas-free transactions enabled."
	MsgNotSupported = "❌ Sponsored gas not available. Using regular transactions."
	MsgUnauthorized = "❌ Capabilities check not authorized. Please enable permissions in your wallet settings."
	MsgUnsupported  = "❌ wallet_getCapabilities not supported by this wallet version."
	msgErrorPrefix  = "❌ Error checking capabilities: "
)

// State is the cached probe outcome for the bound account.
type State struct {
	Supported bool            `json:"supported"`
	ProbedFor *common.Address `json:"probedFor,omitempty"`
}

// Result is what a manual check reports back to the user.
type Result struct {
	Supported bool   `json:"supported"`
	Message   string `json:"message"`
	Code      int    `json:"code,omitempty"`
}

// Probe issues wallet_getCapabilities and caches the answer per address.
type Probe struct {
	resolver wallet.Resolver
	chainKey string
	log      *logging.Logger
	metrics  metrics.Metrics

	mu    sync.Mutex
	state State
	gen   uint64
}

func New(r wallet.Resolver, chainID uint64, log *logging.Logger, m metrics.Metrics) *Probe {
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	return &Probe{
		resolver: r,
		chainKey: hexutil.EncodeUint64(chainID),
		log:      log.WithComponent("capability"),
		metrics:  m,
	}
}

func (p *Probe) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Probe) Supported() bool { return p.State().Supported }

// Reset drops the cached answer. Results of probes started earlier are ignored.
func (p *Probe) Reset() {
	p.mu.Lock()
	p.gen++
	p.state = State{}
	p.mu.Unlock()
}

// OnAddress re-probes for a new bound address, or resets when addr is nil.
func (p *Probe) OnAddress(ctx context.Context, addr *common.Address) {
	p.Reset()
	if addr == nil {
		return
	}
	p.Check(ctx, *addr)
}

// Check probes addr and never fails; any error reads as unsupported.
func (p *Probe) Check(ctx context.Context, addr common.Address) bool {
	supported, err := p.query(ctx, addr)
	switch code, _ := wallet.ErrorCode(err); {
	case err == nil:
		p.log.Debug("paymaster support", logging.Address(addr), "supported", supported)
	case errors.Is(err, wallet.ErrNoProvider):
		p.log.Info("no wallet provider, skipping capability check")
	case code == wallet.CodeUnauthorized:
		p.log.Info("capabilities check not authorized by user, using regular transactions", logging.Code(code))
	case code == wallet.CodeUnsupportedMethod:
		p.log.Info("wallet_getCapabilities not supported by this wallet", logging.Code(code))
	default:
		p.log.Warn("capability check failed", logging.Err(err))
	}
	return supported
}

// CheckManual probes like Check and also returns the message shown to the user.
func (p *Probe) CheckManual(ctx context.Context, addr *common.Address) Result {
	if addr == nil {
		return Result{Message: MsgConnectFirst, Supported: p.Supported()}
	}
	if _, err := p.resolver.Resolve(); err != nil {
		return Result{Message: MsgNoProvider, Supported: p.Supported()}
	}
	supported, err := p.query(ctx, *addr)
	if err == nil {
		if supported {
			return Result{Supported: true, Message: MsgSupported}
		}
		return Result{Message: MsgNotSupported}
	}
	p.log.Warn("capability check failed", logging.Err(err))
	code, _ := wallet.ErrorCode(err)
	switch code {
	case wallet.CodeUnauthorized:
		return Result{Message: MsgUnauthorized, Code: code}
	case wallet.CodeUnsupportedMethod:
		return Result{Message: MsgUnsupported, Code: code}
	}
	return Result{Message: msgErrorPrefix + errorMessage(err), Code: code}
}

// query runs the request and stores the outcome unless the address moved on.
func (p *Probe) query(ctx context.Context, addr common.Address) (bool, error) {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	supported, err := p.request(ctx, addr)
	outcome := "unsupported"
	switch {
	case err != nil:
		outcome = "error"
	case supported:
		outcome = "supported"
	}
	p.metrics.IncCapabilityProbe(outcome)

	p.mu.Lock()
	if gen == p.gen {
		a := addr
		p.state = State{Supported: supported, ProbedFor: &a}
	}
	p.mu.Unlock()
	return supported, err
}

func (p *Probe) request(ctx context.Context, addr common.Address) (bool, error) {
	prov, err := p.resolver.Resolve()
	if err != nil {
		return false, err
	}
	caps, err := wallet.GetCapabilities(ctx, prov, addr)
	if err != nil {
		return false, err
	}
	return PaymasterSupported(caps, p.chainKey), nil
}

// PaymasterSupported reads caps[chainKey].paymasterService.supported with
// JavaScript truthiness. Anything missing or malformed is false.
func PaymasterSupported(caps map[string]json.RawMessage, chainKey string) bool {
	chain, ok := field(caps[chainKey], "paymasterService")
	if !ok {
		return false
	}
	v, ok := field(chain, "supported")
	if !ok {
		return false
	}
	return truthy(v)
}

func field(raw json.RawMessage, key string) (json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	v, ok := obj[key]
	return v, ok
}

func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		// objects and arrays
		return true
	}
}

func errorMessage(err error) string {
	var pe *wallet.ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
