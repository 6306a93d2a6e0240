package capability

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/metrics"
	"github.com/ligun0805/baseminer/internal/wallet"
	"github.com/ligun0805/baseminer/internal/wallet/wallettest"
)

var addr = common.HexToAddress("0x00000000000000000000000000000000000000d4")

func respond(raw string) *wallettest.Provider {
	return &wallettest.Provider{Fn: func(method string, params []any) (any, error) {
		if method != "wallet_getCapabilities" {
			return nil, errors.New("unexpected " + method)
		}
		return json.RawMessage(raw), nil
	}}
}

func fail(err error) *wallettest.Provider {
	return &wallettest.Provider{Fn: func(string, []any) (any, error) { return nil, err }}
}

func newProbe(p wallet.Provider) *Probe {
	r := wallet.Resolver{}
	if p != nil {
		r.Injected = p
	}
	return New(r, 8453, logging.NewNopLogger(), metrics.NewNopMetrics())
}

func TestCheckSupported(t *testing.T) {
	p := newProbe(respond(`{"0x2105":{"paymasterService":{"supported":true}}}`))
	assert.True(t, p.Check(context.Background(), addr))
	st := p.State()
	assert.True(t, st.Supported)
	require.NotNil(t, st.ProbedFor)
	assert.Equal(t, addr, *st.ProbedFor)
}

func TestCheckUnsupportedShapes(t *testing.T) {
	for name, raw := range map[string]string{
		"missing chain":       `{"0x1":{"paymasterService":{"supported":true}}}`,
		"supported false":     `{"0x2105":{"paymasterService":{"supported":false}}}`,
		"no service":          `{"0x2105":{"atomicBatch":{"supported":true}}}`,
		"null chain":          `{"0x2105":null}`,
		"empty":               `{}`,
		"null result":         `null`,
		"zero":                `{"0x2105":{"paymasterService":{"supported":0}}}`,
		"empty string":        `{"0x2105":{"paymasterService":{"supported":""}}}`,
		"chain not an object": `{"0x2105":"yes"}`,
	} {
		p := newProbe(respond(raw))
		assert.False(t, p.Check(context.Background(), addr), name)
		assert.False(t, p.Supported(), name)
	}
}

func TestTruthyValues(t *testing.T) {
	caps := func(v string) map[string]json.RawMessage {
		return map[string]json.RawMessage{"0x2105": json.RawMessage(`{"paymasterService":{"supported":` + v + `}}`)}
	}
	assert.True(t, PaymasterSupported(caps(`1`), "0x2105"))
	assert.True(t, PaymasterSupported(caps(`"yes"`), "0x2105"))
	assert.True(t, PaymasterSupported(caps(`{}`), "0x2105"))
	assert.False(t, PaymasterSupported(caps(`null`), "0x2105"))
	assert.False(t, PaymasterSupported(nil, "0x2105"))
}

func TestKnownErrorCodesResolveFalse(t *testing.T) {
	for _, code := range []int{wallet.CodeUnauthorized, wallet.CodeUnsupportedMethod} {
		p := newProbe(fail(&wallet.ProviderError{Code: code, Message: "x"}))
		assert.False(t, p.Check(context.Background(), addr))
	}
	p := newProbe(fail(errors.New("socket closed")))
	assert.False(t, p.Check(context.Background(), addr))
	assert.False(t, newProbe(nil).Check(context.Background(), addr), "no provider")
}

func TestOnAddressResets(t *testing.T) {
	p := newProbe(respond(`{"0x2105":{"paymasterService":{"supported":true}}}`))
	p.OnAddress(context.Background(), &addr)
	assert.True(t, p.Supported())

	p.OnAddress(context.Background(), nil)
	assert.False(t, p.Supported())
	assert.Nil(t, p.State().ProbedFor)
}

func TestStaleProbeIgnoredAfterReset(t *testing.T) {
	var p *Probe
	prov := &wallettest.Provider{Fn: func(string, []any) (any, error) {
		p.Reset()
		return json.RawMessage(`{"0x2105":{"paymasterService":{"supported":true}}}`), nil
	}}
	p = newProbe(prov)
	assert.True(t, p.Check(context.Background(), addr), "caller still sees the answer")
	assert.False(t, p.Supported(), "but it is not cached for the new address")
}

func TestCheckManualMessages(t *testing.T) {
	ctx := context.Background()

	res := newProbe(respond(`{"0x2105":{"paymasterService":{"supported":true}}}`)).CheckManual(ctx, &addr)
	assert.Equal(t, Result{Supported: true, Message: MsgSupported}, res)

	res = newProbe(respond(`{}`)).CheckManual(ctx, &addr)
	assert.Equal(t, MsgNotSupported, res.Message)

	res = newProbe(fail(&wallet.ProviderError{Code: 4100, Message: "unauthorized"})).CheckManual(ctx, &addr)
	assert.Equal(t, MsgUnauthorized, res.Message)
	assert.Equal(t, 4100, res.Code)

	res = newProbe(fail(&wallet.ProviderError{Code: 4200, Message: "unsupported"})).CheckManual(ctx, &addr)
	assert.Equal(t, MsgUnsupported, res.Message)

	res = newProbe(fail(&wallet.ProviderError{Code: -32603, Message: "internal error"})).CheckManual(ctx, &addr)
	assert.Equal(t, "❌ Error checking capabilities: internal error", res.Message)

	assert.Equal(t, MsgConnectFirst, newProbe(respond(`{}`)).CheckManual(ctx, nil).Message)
	assert.Equal(t, MsgNoProvider, newProbe(nil).CheckManual(ctx, &addr).Message)
}

func TestCheckManualFailureClearsSupport(t *testing.T) {
	supported := true
	prov := &wallettest.Provider{Fn: func(string, []any) (any, error) {
		if supported {
			return json.RawMessage(`{"0x2105":{"paymasterService":{"supported":true}}}`), nil
		}
		return nil, &wallet.ProviderError{Code: 4100, Message: "no"}
	}}
	p := newProbe(prov)
	require.True(t, p.Check(context.Background(), addr))
	supported = false
	p.CheckManual(context.Background(), &addr)
	assert.False(t, p.Supported())
}
