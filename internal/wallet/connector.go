package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Connector is the account source a session binds to.
type Connector interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	// Provider returns the connector's own request handle, or nil.
	Provider() Provider
}

// RPCConnector talks to a remote wallet over JSON-RPC.
type RPCConnector struct {
	p Provider
}

func NewRPCConnector(p Provider) *RPCConnector { return &RPCConnector{p: p} }

func (c *RPCConnector) Accounts(ctx context.Context) ([]common.Address, error) {
	var accs []common.Address
	if err := c.p.Request(ctx, &accs, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w", err)
	}
	return accs, nil
}

func (c *RPCConnector) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := c.p.Request(ctx, &id, "eth_chainId"); err != nil {
		return 0, fmt.Errorf("eth_chainId: %w", err)
	}
	return uint64(id), nil
}

func (c *RPCConnector) SwitchChain(ctx context.Context, chainID uint64) error {
	arg := map[string]string{"chainId": hexutil.EncodeUint64(chainID)}
	if err := c.p.Request(ctx, nil, "wallet_switchEthereumChain", arg); err != nil {
		return fmt.Errorf("wallet_switchEthereumChain: %w", err)
	}
	return nil
}

func (c *RPCConnector) Provider() Provider { return c.p }

// KeyConnector holds a local private key. It signs its own transactions and
// has no request handle of its own, so sponsored calls need an injected provider.
type KeyConnector struct {
	key  *ecdsa.PrivateKey
	addr common.Address
	ec   *ethclient.Client
}

// HexToECDSA parses a hex private key with or without 0x.
func HexToECDSA(s string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if len(h) == 0 {
		return nil, errors.New("empty private key")
	}
	return gethcrypto.HexToECDSA(h)
}

func NewKeyConnector(pkHex string, ec *ethclient.Client) (*KeyConnector, error) {
	key, err := HexToECDSA(pkHex)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	return &KeyConnector{key: key, addr: gethcrypto.PubkeyToAddress(key.PublicKey), ec: ec}, nil
}

func (c *KeyConnector) Address() common.Address { return c.addr }

func (c *KeyConnector) Key() *ecdsa.PrivateKey { return c.key }

func (c *KeyConnector) Accounts(context.Context) ([]common.Address, error) {
	return []common.Address{c.addr}, nil
}

func (c *KeyConnector) ChainID(ctx context.Context) (uint64, error) {
	id, err := c.ec.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain id: %w", err)
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("chain id %s out of range", id)
	}
	return id.Uint64(), nil
}

func (c *KeyConnector) SwitchChain(context.Context, uint64) error { return ErrSwitchUnsupported }

func (c *KeyConnector) Provider() Provider { return nil }

// ChainIDBig is a small helper for the signer constructors.
func ChainIDBig(id uint64) *big.Int { return new(big.Int).SetUint64(id) }
