package contract

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
)

// Confirmer blocks until a transaction has a receipt or ctx is done.
type Confirmer interface {
	Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// ReceiptPoller polls eth_getTransactionReceipt.
type ReceiptPoller struct {
	client *w3.Client
	every  time.Duration
}

func NewReceiptPoller(client *w3.Client, every time.Duration) *ReceiptPoller {
	if every <= 0 {
		every = 2 * time.Second
	}
	return &ReceiptPoller{client: client, every: every}
}

func (p *ReceiptPoller) Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(p.every)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		err := p.client.CallCtx(ctx, eth.TxReceipt(hash).Returns(&receipt))
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
