// Package wallettest provides wallet provider doubles for tests.
package wallettest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ligun0805/baseminer/internal/wallet"
)

// Handler answers one JSON-RPC method. Returning a *wallet.ProviderError
// produces a JSON-RPC error object with that code.
type Handler func(params json.RawMessage) (any, error)

// Server is an httptest JSON-RPC endpoint with per-method handlers.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string][]json.RawMessage
}

func NewServer(t testing.TB) *Server {
	s := &Server{handlers: map[string]Handler{}, calls: map[string][]json.RawMessage{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	s.handlers[method] = h
	s.mu.Unlock()
}

// Calls returns the params of every request received for method.
func (s *Server) Calls(method string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.calls[method]...)
}

type rpcReq struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResp struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcErr         `json:"error,omitempty"`
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	// go-ethereum sends arrays for batched calls
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []rpcReq
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([]rpcResp, 0, len(reqs))
		for _, req := range reqs {
			out = append(out, s.answer(req))
		}
		_ = json.NewEncoder(w).Encode(out)
		return
	}
	var req rpcReq
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_ = json.NewEncoder(w).Encode(s.answer(req))
}

func (s *Server) answer(req rpcReq) rpcResp {
	s.mu.Lock()
	h := s.handlers[req.Method]
	s.calls[req.Method] = append(s.calls[req.Method], req.Params)
	s.mu.Unlock()

	resp := rpcResp{Jsonrpc: "2.0", ID: req.ID}
	if h == nil {
		resp.Error = &rpcErr{Code: -32601, Message: "method not found"}
		return resp
	}
	res, err := h(req.Params)
	var pe *wallet.ProviderError
	switch {
	case errors.As(err, &pe):
		resp.Error = &rpcErr{Code: pe.Code, Message: pe.Message}
	case err != nil:
		resp.Error = &rpcErr{Code: -32000, Message: err.Error()}
	case res == nil:
		resp.Result = json.RawMessage("null")
	default:
		resp.Result = res
	}
	return resp
}

// Provider is an in-process wallet.Provider driven by a function.
type Provider struct {
	Fn func(method string, params []any) (any, error)

	mu    sync.Mutex
	calls []Request
}

type Request struct {
	Method string
	Params []any
}

func (p *Provider) Request(ctx context.Context, result any, method string, params ...any) error {
	p.mu.Lock()
	p.calls = append(p.calls, Request{Method: method, Params: params})
	p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Fn == nil {
		return &wallet.ProviderError{Code: wallet.CodeUnsupportedMethod, Message: "unsupported"}
	}
	res, err := p.Fn(method, params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, result)
}

// Requests returns every request seen, in order.
func (p *Provider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request(nil), p.calls...)
}

// Count returns how many times method was requested.
func (p *Provider) Count(method string) int {
	n := 0
	for _, r := range p.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}
