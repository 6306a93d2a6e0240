package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
)

// Breakdown splits the pool balance into the part held as ETH and the part in Aave.
type Breakdown struct {
	ETH  *big.Int
	Aave *big.Int
}

// Overview is every read the page shows, fetched in one batch.
type Overview struct {
	WalletBalance *big.Int
	Miners        *big.Int
	Eggs          *big.Int
	SellValue     *big.Int
	LastHatch     *big.Int
	TotalBalance  *big.Int
	Breakdown     Breakdown
	AaveDeposits  *big.Int
}

// Reader issues view calls against the contract.
type Reader struct {
	client   *w3.Client
	contract common.Address
}

func NewReader(client *w3.Client, contract common.Address) *Reader {
	return &Reader{client: client, contract: contract}
}

func Dial(rpcURL string) (*w3.Client, error) {
	client, err := w3.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return client, nil
}

func (r *Reader) callUint(ctx context.Context, name string, fn *w3.Func, args ...any) (*big.Int, error) {
	out := new(big.Int)
	if err := r.client.CallCtx(ctx, eth.CallFunc(r.contract, fn, args...).Returns(out)); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func (r *Reader) WalletBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var bal *big.Int
	if err := r.client.CallCtx(ctx, eth.Balance(addr, nil).Returns(&bal)); err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	return bal, nil
}

func (r *Reader) Miners(ctx context.Context, addr common.Address) (*big.Int, error) {
	return r.callUint(ctx, "getMyMiners", funcGetMyMiners, addr)
}

func (r *Reader) Eggs(ctx context.Context, addr common.Address) (*big.Int, error) {
	return r.callUint(ctx, "getMyEggs", funcGetMyEggs, addr)
}

// SellValue prices eggs through calculateEggSell.
func (r *Reader) SellValue(ctx context.Context, eggs *big.Int) (*big.Int, error) {
	return r.callUint(ctx, "calculateEggSell", funcCalculateEggSell, eggs)
}

// LastHatch returns the unix seconds of the address' last hatch, zero if never.
func (r *Reader) LastHatch(ctx context.Context, addr common.Address) (*big.Int, error) {
	return r.callUint(ctx, "lastHatch", funcLastHatch, addr)
}

func (r *Reader) TotalBalance(ctx context.Context) (*big.Int, error) {
	return r.callUint(ctx, "getTotalBalance", funcGetTotalBalance)
}

func (r *Reader) Breakdown(ctx context.Context) (Breakdown, error) {
	b := Breakdown{ETH: new(big.Int), Aave: new(big.Int)}
	if err := r.client.CallCtx(ctx, eth.CallFunc(r.contract, funcGetBalanceBreakdown).Returns(b.ETH, b.Aave)); err != nil {
		return Breakdown{}, fmt.Errorf("getBalanceBreakdown: %w", err)
	}
	return b, nil
}

func (r *Reader) AaveDeposits(ctx context.Context) (*big.Int, error) {
	return r.callUint(ctx, "totalAaveDeposits", funcTotalAaveDeposits)
}

// Overview batches every read into a single round trip. The sell value is
// priced in a second call since it depends on the egg count.
func (r *Reader) Overview(ctx context.Context, addr common.Address) (Overview, error) {
	o := Overview{
		Miners:       new(big.Int),
		Eggs:         new(big.Int),
		LastHatch:    new(big.Int),
		TotalBalance: new(big.Int),
		Breakdown:    Breakdown{ETH: new(big.Int), Aave: new(big.Int)},
		AaveDeposits: new(big.Int),
		SellValue:    new(big.Int),
	}
	err := r.client.CallCtx(ctx,
		eth.Balance(addr, nil).Returns(&o.WalletBalance),
		eth.CallFunc(r.contract, funcGetMyMiners, addr).Returns(o.Miners),
		eth.CallFunc(r.contract, funcGetMyEggs, addr).Returns(o.Eggs),
		eth.CallFunc(r.contract, funcLastHatch, addr).Returns(o.LastHatch),
		eth.CallFunc(r.contract, funcGetTotalBalance).Returns(o.TotalBalance),
		eth.CallFunc(r.contract, funcGetBalanceBreakdown).Returns(o.Breakdown.ETH, o.Breakdown.Aave),
		eth.CallFunc(r.contract, funcTotalAaveDeposits).Returns(o.AaveDeposits),
	)
	if err != nil {
		return Overview{}, fmt.Errorf("overview: %w", err)
	}
	if o.Eggs.Sign() > 0 {
		sv, err := r.SellValue(ctx, o.Eggs)
		if err != nil {
			return Overview{}, err
		}
		o.SellValue = sv
	}
	return o, nil
}
