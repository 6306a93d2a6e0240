package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Provider is an EIP-1193 style request handle. result must be a pointer
// the JSON response can be decoded into, or nil to discard it.
type Provider interface {
	Request(ctx context.Context, result any, method string, params ...any) error
}

// RPCProvider forwards requests to a wallet reachable over JSON-RPC.
type RPCProvider struct {
	c *rpc.Client
}

func DialProvider(ctx context.Context, url string) (*RPCProvider, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial wallet %s: %w", url, err)
	}
	return &RPCProvider{c: c}, nil
}

func (p *RPCProvider) Request(ctx context.Context, result any, method string, params ...any) error {
	return p.c.CallContext(ctx, result, method, params...)
}

func (p *RPCProvider) Close() { p.c.Close() }
