package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/ligun0805/baseminer/internal/actions"
	"github.com/ligun0805/baseminer/internal/app"
	"github.com/ligun0805/baseminer/internal/capability"
	"github.com/ligun0805/baseminer/internal/clock"
	"github.com/ligun0805/baseminer/internal/config"
	"github.com/ligun0805/baseminer/internal/contract"
	"github.com/ligun0805/baseminer/internal/cooldown"
	"github.com/ligun0805/baseminer/internal/frame"
	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/metrics"
	"github.com/ligun0805/baseminer/internal/notify"
	"github.com/ligun0805/baseminer/internal/readcache"
	"github.com/ligun0805/baseminer/internal/referral"
	"github.com/ligun0805/baseminer/internal/refresh"
	"github.com/ligun0805/baseminer/internal/server"
	"github.com/ligun0805/baseminer/internal/session"
	"github.com/ligun0805/baseminer/internal/wallet"
)

var errNoWallet = errors.New("set wallet_rpc_url or private_key (or use --prompt-key)")

// walletSide is the connector plus how writes are sent for it.
type walletSide struct {
	conn     wallet.Connector
	resolver wallet.Resolver
	writer   contract.Writer
	closers  []func()
}

func (w *walletSide) close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		w.closers[i]()
	}
}

// dialWallet picks the remote wallet when configured, else the local key.
func dialWallet(ctx context.Context, st config.Settings) (*walletSide, error) {
	ws := &walletSide{}
	var injected wallet.Provider
	if st.InjectedRPCURL != "" {
		p, err := wallet.DialProvider(ctx, st.InjectedRPCURL)
		if err != nil {
			return nil, err
		}
		ws.closers = append(ws.closers, p.Close)
		injected = p
	}

	switch {
	case st.WalletRPCURL != "":
		p, err := wallet.DialProvider(ctx, st.WalletRPCURL)
		if err != nil {
			ws.close()
			return nil, err
		}
		ws.closers = append(ws.closers, p.Close)
		ws.conn = wallet.NewRPCConnector(p)
		ws.resolver = wallet.Resolver{Connector: ws.conn, Injected: injected}
		ws.writer = contract.NewWalletWriter(ws.resolver, st.Contract())

	case st.PrivateKeyHex != "":
		ec, err := ethclient.DialContext(ctx, st.RPCURL)
		if err != nil {
			ws.close()
			return nil, fmt.Errorf("dial rpc: %w", err)
		}
		ws.closers = append(ws.closers, ec.Close)
		kc, err := wallet.NewKeyConnector(st.PrivateKeyHex, ec)
		if err != nil {
			ws.close()
			return nil, err
		}
		opts, err := contract.NewTransactorFromKey(kc.Key(), wallet.ChainIDBig(st.ChainID))
		if err != nil {
			ws.close()
			return nil, fmt.Errorf("transactor: %w", err)
		}
		kw, err := contract.NewKeyedWriter(ec, st.Contract(), opts)
		if err != nil {
			ws.close()
			return nil, err
		}
		ws.conn = kc
		ws.resolver = wallet.Resolver{Connector: kc, Injected: injected}
		ws.writer = kw

	default:
		ws.close()
		return nil, errNoWallet
	}
	return ws, nil
}

// daemon is everything serve runs.
type daemon struct {
	app       *app.App
	server    *server.Server
	refresher *refresh.Refresher
	closers   []func()
}

func (d *daemon) close() {
	d.app.Close()
	d.refresher.Close()
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func build(ctx context.Context, st config.Settings, log *logging.Logger) (*daemon, error) {
	client, err := contract.Dial(st.RPCURL)
	if err != nil {
		return nil, err
	}
	ws, err := dialWallet(ctx, st)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	closers := []func(){func() { _ = client.Close() }, ws.close}

	pm := metrics.NewPrometheusMetrics("baseminer")
	reader := contract.NewReader(client, st.Contract())
	binder := session.NewBinder(ws.conn, st.ChainID, log)

	limiter := rate.NewLimiter(rate.Limit(st.RPCRatePerSec), st.RPCBurst)
	cache := readcache.New(log, limiter, readcache.WithMetrics(pm))
	readcache.RegisterContractQueries(cache, reader, binder.Address, readcache.Timing{
		Slow:       st.SlowPoll,
		Fast:       st.FastPoll,
		Retries:    st.ReadRetries,
		RetryDelay: st.ReadRetryDelay,
	})

	fr := &frame.State{}
	engine := cooldown.NewEngine(st.Cooldown, fr, notify.NewClient(st.NotifyURL, log), log, cooldown.WithMetrics(pm))
	probe := capability.New(ws.resolver, st.ChainID, log, pm)
	refresher := refresh.New(cache, clock.RealClock{}, refresh.Delays{
		First:     st.RefreshDelay,
		Second:    st.RefreshSecondDelay,
		Sponsored: st.SponsoredRefreshDelay,
	}, log)
	ref := &referral.State{}

	orch := actions.New(actions.Deps{
		Writer:       ws.writer,
		Confirmer:    contract.NewReceiptPoller(client, 2*time.Second),
		Resolver:     ws.resolver,
		Refresher:    refresher,
		Address:      binder.Address,
		Eggs:         func() *big.Int { return cache.BigValue(readcache.Eggs) },
		Sponsorable:  probe.Supported,
		Referral:     ref.Beneficiary,
		Contract:     st.Contract(),
		ChainID:      st.ChainID,
		PaymasterURL: st.PaymasterURL,
		Log:          log,
		Metrics:      pm,
	})

	a := app.New(app.Deps{
		Binder:    binder,
		Cache:     cache,
		Cooldown:  engine,
		Probe:     probe,
		Actions:   orch,
		Referral:  ref,
		Frame:     fr,
		Manifest:  frame.Manifest{Name: st.AppName, APIKey: st.APIKey, IconURL: st.IconURL},
		PublicURL: st.PublicURL,
		Log:       log,
	})

	srvCfg := server.Config{
		ListenAddr:     st.ListenAddr,
		MetricsHandler: pm.Handler(),
		AllowedOrigins: []string{st.PublicURL},
	}
	if st.NotifyWebhookURL != "" {
		srvCfg.Forwarder = notify.NewClient(st.NotifyWebhookURL, log)
	}
	return &daemon{
		app:       a,
		server:    server.New(srvCfg, a, log, pm),
		refresher: refresher,
		closers:   closers,
	}, nil
}
