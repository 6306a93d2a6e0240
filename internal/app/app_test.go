package app

import (
	"context"
	"math/big"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/baseminer/internal/actions"
	"github.com/ligun0805/baseminer/internal/capability"
	"github.com/ligun0805/baseminer/internal/clock"
	"github.com/ligun0805/baseminer/internal/contract"
	"github.com/ligun0805/baseminer/internal/cooldown"
	"github.com/ligun0805/baseminer/internal/format"
	"github.com/ligun0805/baseminer/internal/frame"
	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/notify"
	"github.com/ligun0805/baseminer/internal/readcache"
	"github.com/ligun0805/baseminer/internal/referral"
	"github.com/ligun0805/baseminer/internal/session"
	"github.com/ligun0805/baseminer/internal/wallet"
	"github.com/ligun0805/baseminer/internal/wallet/wallettest"
)

var (
	player  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	miner   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	t0      = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	oneEth  = mustEth("1")
	halfEth = mustEth("0.5")
)

func mustEth(s string) *big.Int {
	v, err := format.ParseEther(s)
	if err != nil {
		panic(err)
	}
	return v
}

type connector struct {
	mu       sync.Mutex
	accounts []common.Address
}

func (c *connector) Accounts(context.Context) ([]common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts, nil
}

func (c *connector) ChainID(context.Context) (uint64, error)  { return 8453, nil }
func (c *connector) SwitchChain(context.Context, uint64) error { return nil }
func (c *connector) Provider() wallet.Provider                 { return nil }

type chain struct {
	mu        sync.Mutex
	sellValue *big.Int
	lastHatch *big.Int
}

func (c *chain) WalletBalance(context.Context, common.Address) (*big.Int, error) {
	return mustEth("2"), nil
}
func (c *chain) Miners(context.Context, common.Address) (*big.Int, error) { return big.NewInt(120), nil }
func (c *chain) Eggs(context.Context, common.Address) (*big.Int, error)   { return big.NewInt(5000), nil }
func (c *chain) SellValue(context.Context, *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sellValue, nil
}
func (c *chain) LastHatch(context.Context, common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHatch, nil
}
func (c *chain) TotalBalance(context.Context) (*big.Int, error) { return mustEth("3"), nil }
func (c *chain) Breakdown(context.Context) (contract.Breakdown, error) {
	return contract.Breakdown{ETH: oneEth, Aave: mustEth("2")}, nil
}
func (c *chain) AaveDeposits(context.Context) (*big.Int, error) { return mustEth("1.5"), nil }

type writer struct {
	mu      sync.Mutex
	methods []string
}

func (w *writer) add(m string) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.methods = append(w.methods, m)
	return common.BigToHash(big.NewInt(int64(len(w.methods)))), nil
}

func (w *writer) Buy(context.Context, common.Address, common.Address, *big.Int) (common.Hash, error) {
	return w.add("buyEggs")
}
func (w *writer) Hatch(context.Context, common.Address) (common.Hash, error) { return w.add("hatchEggs") }
func (w *writer) Sell(context.Context, common.Address) (common.Hash, error)  { return w.add("sellEggs") }

func (w *writer) calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.methods...)
}

type noReceipt struct{}

func (noReceipt) Wait(ctx context.Context, _ common.Hash) (*types.Receipt, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, notify.Notification) error { return nil }

type fixture struct {
	app      *App
	conn     *connector
	chain    *chain
	writer   *writer
	provider *wallettest.Provider
	clk      *clock.FakeClock
	engine   *cooldown.Engine
	cache    *readcache.Cache
	probe    *capability.Probe
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, "https://paymaster.example/rpc")
}

func newFixtureWith(t *testing.T, paymasterURL string) *fixture {
	t.Helper()
	log := logging.NewNopLogger()
	f := &fixture{
		conn:     &connector{},
		chain:    &chain{sellValue: halfEth, lastHatch: big.NewInt(t0.Add(-10 * time.Minute).Unix())},
		writer:   &writer{},
		provider: &wallettest.Provider{},
		clk:      clock.NewFakeClock(t0),
	}
	binder := session.NewBinder(f.conn, 8453, log)
	f.cache = readcache.New(log, nil)
	readcache.RegisterContractQueries(f.cache, f.chain, binder.Address, readcache.Timing{Slow: time.Hour, Fast: time.Hour})

	fr := &frame.State{}
	ref := &referral.State{}
	f.engine = cooldown.NewEngine(time.Hour, fr, nopNotifier{}, log, cooldown.WithClock(f.clk))
	resolver := wallet.Resolver{Injected: f.provider}
	f.probe = capability.New(resolver, 8453, log, nil)
	orch := actions.New(actions.Deps{
		Writer:       f.writer,
		Confirmer:    noReceipt{},
		Resolver:     resolver,
		Address:      binder.Address,
		Eggs:         func() *big.Int { return f.cache.BigValue(readcache.Eggs) },
		Sponsorable:  f.probe.Supported,
		Referral:     ref.Beneficiary,
		Contract:     miner,
		ChainID:      8453,
		PaymasterURL: paymasterURL,
		Log:          log,
	})
	f.app = New(Deps{
		Binder:    binder,
		Cache:     f.cache,
		Cooldown:  f.engine,
		Probe:     f.probe,
		Actions:   orch,
		Referral:  ref,
		Frame:     fr,
		PublicURL: "https://basemine.fun",
		Log:       log,
	})
	t.Cleanup(f.app.Close)
	return f
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	f.conn.mu.Lock()
	f.conn.accounts = []common.Address{player}
	f.conn.mu.Unlock()
	require.NoError(t, f.app.d.Binder.Refresh(context.Background()))
	f.cache.RefetchSync()
	f.cache.RefetchSync(readcache.SellValue)
}

func TestHatchWaitsForCooldown(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.engine.Tick(f.clk.Now())

	_, err := f.app.Hatch(context.Background())
	require.ErrorIs(t, err, ErrCooldown)
	assert.Empty(t, f.writer.calls())

	f.clk.Advance(50 * time.Minute)
	f.engine.Tick(f.clk.Now())
	out, err := f.app.Hatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, actions.KindRefine, out.Kind)
	assert.Equal(t, []string{"hatchEggs"}, f.writer.calls())
}

func TestHatchPrefersSponsoredWhenSupported(t *testing.T) {
	f := newFixture(t)
	f.provider.Fn = func(method string, _ []any) (any, error) {
		switch method {
		case "wallet_getCapabilities":
			return map[string]any{"0x2105": map[string]any{"paymasterService": map[string]any{"supported": true}}}, nil
		case "wallet_sendCalls":
			return "0xbatch", nil
		}
		return nil, &wallet.ProviderError{Code: 4200, Message: "unsupported"}
	}
	f.chain.lastHatch = big.NewInt(t0.Add(-2 * time.Hour).Unix())
	f.connect(t)
	require.Eventually(t, f.probe.Supported, time.Second, 5*time.Millisecond, "session change re-probes")

	f.engine.Tick(f.clk.Now())
	out, err := f.app.Hatch(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Sponsored)
	assert.Equal(t, 1, f.provider.Count("wallet_sendCalls"))
	assert.Empty(t, f.writer.calls())
}

func TestHatchWithoutPaymasterUsesRefine(t *testing.T) {
	f := newFixtureWith(t, "")
	f.provider.Fn = func(method string, _ []any) (any, error) {
		if method == "wallet_getCapabilities" {
			return map[string]any{"0x2105": map[string]any{"paymasterService": map[string]any{"supported": true}}}, nil
		}
		return nil, &wallet.ProviderError{Code: 4200, Message: "unsupported"}
	}
	f.chain.lastHatch = big.NewInt(t0.Add(-2 * time.Hour).Unix())
	f.connect(t)
	require.Eventually(t, f.probe.Supported, time.Second, 5*time.Millisecond)

	f.engine.Tick(f.clk.Now())
	out, err := f.app.Hatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, actions.KindRefine, out.Kind)
	assert.Zero(t, f.provider.Count("wallet_sendCalls"))
	assert.Equal(t, []string{"hatchEggs"}, f.writer.calls())
}

func TestViewKeepsLastKnownRewards(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	v := f.app.View()
	assert.True(t, v.Session.Connected)
	assert.Equal(t, "2", v.WalletBalance)
	assert.Equal(t, "120", v.Miners)
	assert.Equal(t, "0.50000000", v.Rewards)
	assert.Equal(t, "0.5000", v.RewardsShort)
	assert.Equal(t, "3", v.TVL.Total)
	assert.Equal(t, "0.5", v.TVL.Yield)

	f.chain.mu.Lock()
	f.chain.sellValue = big.NewInt(0)
	f.chain.mu.Unlock()
	f.cache.RefetchSync(readcache.SellValue)
	assert.Equal(t, "0.50000000", f.app.View().Rewards, "zero read keeps previous rewards")
}

func TestCooldownFollowsLastHatchRead(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	st := f.engine.Tick(f.clk.Now())
	require.True(t, st.Loaded)
	assert.Equal(t, 50*time.Minute, st.Remaining)
	assert.Equal(t, "50m 0s", f.app.View().Cooldown.Text)
}

func TestDisconnectClearsState(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.engine.Tick(f.clk.Now())

	f.conn.mu.Lock()
	f.conn.accounts = nil
	f.conn.mu.Unlock()
	require.NoError(t, f.app.d.Binder.Refresh(context.Background()))

	v := f.app.View()
	assert.False(t, v.Session.Connected)
	assert.Equal(t, "", v.Miners)
	assert.False(t, v.Cooldown.Loaded)
	assert.False(t, f.probe.Supported())
}

func TestPercentageAndShare(t *testing.T) {
	f := newFixture(t)
	_, err := f.app.Share()
	require.ErrorIs(t, err, actions.ErrNotConnected)

	f.connect(t)
	assert.Equal(t, "0.500000", f.app.Percentage(25))
	assert.Equal(t, "2.000000", f.app.Percentage(100))

	c, err := f.app.Share()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://basemine.fun/ref/" + player.Hex()}, c.Embeds)
}

func TestReferralCapturedOnce(t *testing.T) {
	f := newFixture(t)
	f.app.CaptureReferral(url.Values{"ref": {"not-an-address"}})
	assert.Empty(t, f.app.View().Referral)
	first := "0xABCDEF0123456789ABCDEF0123456789ABCDEF01"
	f.app.CaptureReferral(url.Values{"ref": {first}})
	f.app.CaptureReferral(url.Values{"ref": {"0x2222222222222222222222222222222222222222"}})
	assert.Equal(t, first, f.app.View().Referral)
}

func TestManifestCarriesAddedFlag(t *testing.T) {
	f := newFixture(t)
	f.app.d.Manifest = frame.Manifest{Name: "BaseMiner", IconURL: "https://basemine.fun/icon.png"}
	assert.False(t, f.app.Manifest().Added)
	f.app.SetFrameAdded(true)
	m := f.app.Manifest()
	assert.True(t, m.Added)
	assert.Equal(t, "BaseMiner", m.Name)
}
