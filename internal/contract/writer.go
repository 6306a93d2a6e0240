package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ligun0805/baseminer/internal/wallet"
)

// Writer submits the three state-changing calls and returns the tx hash.
type Writer interface {
	Buy(ctx context.Context, from, referral common.Address, value *big.Int) (common.Hash, error)
	Hatch(ctx context.Context, from common.Address) (common.Hash, error)
	Sell(ctx context.Context, from common.Address) (common.Hash, error)
}

// KeyedWriter signs locally with bind.
type KeyedWriter struct {
	bc   *bind.BoundContract
	opts *bind.TransactOpts

	// one submit at a time so pending nonces do not collide
	mu sync.Mutex
}

// NewTransactorFromKey builds *bind.TransactOpts from a key and chain ID.
func NewTransactorFromKey(key *ecdsa.PrivateKey, chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(key, chainID)
}

func NewKeyedWriter(ec *ethclient.Client, contract common.Address, opts *bind.TransactOpts) (*KeyedWriter, error) {
	parsed, err := parseWriteABI()
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	return &KeyedWriter{bc: bind.NewBoundContract(contract, parsed, ec, ec, ec), opts: opts}, nil
}

func (w *KeyedWriter) transact(ctx context.Context, from common.Address, value *big.Int, method string, args ...any) (common.Hash, error) {
	if from != w.opts.From {
		return common.Hash{}, fmt.Errorf("%s: signer is %s, not %s", method, w.opts.From.Hex(), from.Hex())
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	o := *w.opts
	o.Context = ctx
	o.Value = value
	tx, err := w.bc.Transact(&o, method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", method, err)
	}
	return tx.Hash(), nil
}

func (w *KeyedWriter) Buy(ctx context.Context, from, referral common.Address, value *big.Int) (common.Hash, error) {
	return w.transact(ctx, from, value, "buyEggs", referral)
}

func (w *KeyedWriter) Hatch(ctx context.Context, from common.Address) (common.Hash, error) {
	return w.transact(ctx, from, nil, "hatchEggs")
}

func (w *KeyedWriter) Sell(ctx context.Context, from common.Address) (common.Hash, error) {
	return w.transact(ctx, from, nil, "sellEggs")
}

// WalletWriter asks the connected wallet to sign and send via eth_sendTransaction.
type WalletWriter struct {
	resolver wallet.Resolver
	contract common.Address
}

func NewWalletWriter(r wallet.Resolver, contract common.Address) *WalletWriter {
	return &WalletWriter{resolver: r, contract: contract}
}

type sendTxArgs struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value,omitempty"`
	Data  hexutil.Bytes  `json:"data"`
}

func (w *WalletWriter) send(ctx context.Context, method string, from common.Address, value *big.Int, data []byte) (common.Hash, error) {
	p, err := w.resolver.Resolve()
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", method, err)
	}
	args := sendTxArgs{From: from, To: w.contract, Data: data}
	if value != nil && value.Sign() > 0 {
		args.Value = (*hexutil.Big)(value)
	}
	var hash common.Hash
	if err := p.Request(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", method, err)
	}
	return hash, nil
}

func (w *WalletWriter) Buy(ctx context.Context, from, referral common.Address, value *big.Int) (common.Hash, error) {
	data, err := BuyCalldata(referral)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode buyEggs: %w", err)
	}
	return w.send(ctx, "buyEggs", from, value, data)
}

func (w *WalletWriter) Hatch(ctx context.Context, from common.Address) (common.Hash, error) {
	return w.send(ctx, "hatchEggs", from, nil, HatchSelector())
}

func (w *WalletWriter) Sell(ctx context.Context, from common.Address) (common.Hash, error) {
	return w.send(ctx, "sellEggs", from, nil, SellCalldata())
}
