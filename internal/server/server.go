// Package server exposes the page model over HTTP and a websocket push stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ligun0805/baseminer/internal/actions"
	"github.com/ligun0805/baseminer/internal/app"
	"github.com/ligun0805/baseminer/internal/capability"
	"github.com/ligun0805/baseminer/internal/frame"
	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/metrics"
	"github.com/ligun0805/baseminer/internal/notify"
)

// Backend is what the handlers need from app.App.
type Backend interface {
	View() app.View
	CaptureReferral(q url.Values)
	Buy(ctx context.Context, amount string) (actions.Outcome, error)
	Hatch(ctx context.Context) (actions.Outcome, error)
	Sell(ctx context.Context) (actions.Outcome, error)
	CheckCapabilities(ctx context.Context) capability.Result
	Share() (frame.Cast, error)
	SetFrameAdded(v bool)
	Manifest() frame.Manifest
	Percentage(pct uint64) string
	OnChange(fn func())
}

// Forwarder relays inbound notifications. *notify.Client implements it.
type Forwarder interface {
	Post(ctx context.Context, r notify.Request) error
}

type Config struct {
	ListenAddr string
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// Forwarder receives POST /api/notify bodies when set.
	Forwarder Forwarder
	// AllowedOrigins may call the POST routes and open /ws from a browser.
	// Loopback same-host requests are always allowed.
	AllowedOrigins []string
}

type Server struct {
	cfg     Config
	backend Backend
	log     *logging.Logger
	metrics metrics.Metrics
	hub     *hub
	ws      websocket.Upgrader

	httpServer *http.Server
}

func New(cfg Config, b Backend, log *logging.Logger, m metrics.Metrics) *Server {
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	log = log.WithComponent("server")
	s := &Server{cfg: cfg, backend: b, log: log, metrics: m}
	s.hub = newHub(b.View, log, m)
	s.ws = websocket.Upgrader{CheckOrigin: s.originAllowed}
	b.OnChange(s.hub.kick)
	return s
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ref/{address}", s.handleRef)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/buy", s.guard(s.handleBuy))
	mux.HandleFunc("POST /api/hatch", s.guard(s.handleHatch))
	mux.HandleFunc("POST /api/sell", s.guard(s.handleSell))
	mux.HandleFunc("POST /api/capabilities/check", s.guard(s.handleCapabilities))
	mux.HandleFunc("GET /api/frame", s.handleFrame)
	mux.HandleFunc("POST /api/frame/added", s.guard(s.handleFrameAdded))
	mux.HandleFunc("GET /api/share", s.handleShare)
	mux.HandleFunc("GET /api/percentage", s.handlePercentage)
	mux.HandleFunc("POST /api/notify", s.guard(s.handleNotify))
	mux.HandleFunc("GET /ws", s.handleWS)
	if s.cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.cfg.MetricsHandler)
	}
	return mux
}

// Run serves until ctx is done, then shuts down with a 5 second grace period.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.run(hubCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(ln) }()
	s.log.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.closeAll()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
