package wallet_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/baseminer/internal/wallet"
	"github.com/ligun0805/baseminer/internal/wallet/wallettest"
)

var (
	user     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	contract = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func dial(t *testing.T, srv *wallettest.Server) *wallet.RPCProvider {
	t.Helper()
	p, err := wallet.DialProvider(context.Background(), srv.URL)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestRPCConnector(t *testing.T) {
	srv := wallettest.NewServer(t)
	srv.Handle("eth_accounts", func(json.RawMessage) (any, error) { return []string{user.Hex()}, nil })
	srv.Handle("eth_chainId", func(json.RawMessage) (any, error) { return "0x1", nil })
	srv.Handle("wallet_switchEthereumChain", func(json.RawMessage) (any, error) { return nil, nil })

	c := wallet.NewRPCConnector(dial(t, srv))
	ctx := context.Background()

	accs, err := c.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{user}, accs)

	id, err := c.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	require.NoError(t, c.SwitchChain(ctx, 8453))
	calls := srv.Calls("wallet_switchEthereumChain")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `[{"chainId":"0x2105"}]`, string(calls[0]))
	assert.NotNil(t, c.Provider())
}

func TestErrorCodeFromRPC(t *testing.T) {
	srv := wallettest.NewServer(t)
	srv.Handle("wallet_getCapabilities", func(json.RawMessage) (any, error) {
		return nil, &wallet.ProviderError{Code: wallet.CodeUnauthorized, Message: "not authorized"}
	})
	_, err := wallet.GetCapabilities(context.Background(), dial(t, srv), user)
	require.Error(t, err)
	code, ok := wallet.ErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, wallet.CodeUnauthorized, code)
	assert.True(t, wallet.HasCode(fmt.Errorf("wrapped: %w", err), wallet.CodeUnauthorized))
}

func TestErrorCodeUncoded(t *testing.T) {
	_, ok := wallet.ErrorCode(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, wallet.HasCode(nil, wallet.CodeUnauthorized))
}

func TestSendCallsWireShape(t *testing.T) {
	srv := wallettest.NewServer(t)
	srv.Handle("wallet_sendCalls", func(json.RawMessage) (any, error) { return "0xcall", nil })

	req := wallet.NewSponsoredCall(8453, user, contract, []byte{0x22, 0x96, 0x45, 0x9e}, "https://pm.example/rpc")
	id, err := wallet.SendCalls(context.Background(), dial(t, srv), req)
	require.NoError(t, err)
	assert.Equal(t, "0xcall", id)

	calls := srv.Calls("wallet_sendCalls")
	require.Len(t, calls, 1)
	want := `[{
		"version": "1.0",
		"chainId": "0x2105",
		"from": "0x00000000000000000000000000000000000000aa",
		"calls": [{"to": "0x00000000000000000000000000000000000000bb", "value": "0x0", "data": "0x2296459e"}],
		"capabilities": {"paymasterService": {"url": "https://pm.example/rpc"}}
	}]`
	assert.JSONEq(t, want, string(calls[0]))
}

func TestSendCallsObjectResult(t *testing.T) {
	p := &wallettest.Provider{Fn: func(string, []any) (any, error) {
		return map[string]any{"id": "bundle-1"}, nil
	}}
	id, err := wallet.SendCalls(context.Background(), p, wallet.SendCallsRequest{})
	require.NoError(t, err)
	assert.Equal(t, "bundle-1", id)

	p.Fn = func(string, []any) (any, error) { return map[string]any{}, nil }
	_, err = wallet.SendCalls(context.Background(), p, wallet.SendCallsRequest{})
	require.Error(t, err)
}

type stubConnector struct{ p wallet.Provider }

func (s stubConnector) Accounts(context.Context) ([]common.Address, error) { return nil, nil }
func (s stubConnector) ChainID(context.Context) (uint64, error)           { return 8453, nil }
func (s stubConnector) SwitchChain(context.Context, uint64) error         { return nil }
func (s stubConnector) Provider() wallet.Provider                         { return s.p }

func TestResolverOrder(t *testing.T) {
	own := &wallettest.Provider{}
	injected := &wallettest.Provider{}

	p, err := wallet.Resolver{Connector: stubConnector{p: own}, Injected: injected}.Resolve()
	require.NoError(t, err)
	assert.Same(t, own, p)

	p, err = wallet.Resolver{Connector: stubConnector{}, Injected: injected}.Resolve()
	require.NoError(t, err)
	assert.Same(t, injected, p)

	_, err = wallet.Resolver{Connector: stubConnector{}}.Resolve()
	assert.ErrorIs(t, err, wallet.ErrNoProvider)

	_, err = wallet.Resolver{}.Resolve()
	assert.ErrorIs(t, err, wallet.ErrNoProvider)
}

func TestKeyConnector(t *testing.T) {
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	hexKey := "0x" + common.Bytes2Hex(gethcrypto.FromECDSA(key))

	c, err := wallet.NewKeyConnector(hexKey, nil)
	require.NoError(t, err)
	want := gethcrypto.PubkeyToAddress(key.PublicKey)
	assert.Equal(t, want, c.Address())

	accs, err := c.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{want}, accs)
	assert.Nil(t, c.Provider())
	assert.ErrorIs(t, c.SwitchChain(context.Background(), 8453), wallet.ErrSwitchUnsupported)

	_, err = wallet.NewKeyConnector("  ", nil)
	require.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", wallet.Describe(nil))
	assert.Equal(t, "request rejected by user", wallet.Describe(&wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "nope"}))
	assert.Equal(t, "network/DNS error", wallet.Describe(errors.New("Post \"http://x\": dial tcp: connection refused")))
	assert.Equal(t, "chain not added to wallet", wallet.Describe(&wallet.ProviderError{Code: wallet.CodeUnrecognizedChain, Message: "Unrecognized chain ID"}))
	assert.Equal(t, "something else", wallet.Describe(errors.New("something else")))
}
