package readcache

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/baseminer/internal/contract"
)

// Query names as exposed in the state view.
const (
	WalletBalance    = "walletBalance"
	Miners           = "miners"
	Eggs             = "eggs"
	SellValue        = "sellValue"
	LastHatch        = "lastHatch"
	TotalBalance     = "totalBalance"
	BalanceBreakdown = "balanceBreakdown"
	AaveDeposits     = "aaveDeposits"
)

// SponsoredRefresh lists the queries refreshed after a sponsored hatch.
var SponsoredRefresh = []string{Miners, Eggs, SellValue, TotalBalance, BalanceBreakdown, AaveDeposits}

var errNoAddress = errors.New("no bound address")

// ChainReader is the subset of contract.Reader the queries use.
type ChainReader interface {
	WalletBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	Miners(ctx context.Context, addr common.Address) (*big.Int, error)
	Eggs(ctx context.Context, addr common.Address) (*big.Int, error)
	SellValue(ctx context.Context, eggs *big.Int) (*big.Int, error)
	LastHatch(ctx context.Context, addr common.Address) (*big.Int, error)
	TotalBalance(ctx context.Context) (*big.Int, error)
	Breakdown(ctx context.Context) (contract.Breakdown, error)
	AaveDeposits(ctx context.Context) (*big.Int, error)
}

// Timing holds the poll intervals and retry policy.
type Timing struct {
	Slow       time.Duration
	Fast       time.Duration
	Retries    int
	RetryDelay time.Duration
}

// RegisterContractQueries wires the eight page reads. addr returns the
// currently bound account or nil.
func RegisterContractQueries(c *Cache, r ChainReader, addr func() *common.Address, t Timing) {
	hasAddr := func() bool { return addr() != nil }
	perAddr := func(f func(context.Context, common.Address) (*big.Int, error)) Fetch {
		return func(ctx context.Context) (any, error) {
			a := addr()
			if a == nil {
				return nil, errNoAddress
			}
			return f(ctx, *a)
		}
	}
	global := func(f func(context.Context) (*big.Int, error)) Fetch {
		return func(ctx context.Context) (any, error) { return f(ctx) }
	}

	sellEnabled := func() bool { return hasAddr() && Positive(c.Value(Eggs)) }
	sellFetch := func(ctx context.Context) (any, error) {
		eggs := c.BigValue(Eggs)
		if eggs == nil {
			return nil, errors.New("eggs not loaded")
		}
		return r.SellValue(ctx, eggs)
	}
	breakdown := func(ctx context.Context) (any, error) { return r.Breakdown(ctx) }

	c.Register(Query{Name: WalletBalance, Every: t.Slow, Enabled: hasAddr, Fetch: perAddr(r.WalletBalance)})
	c.Register(Query{Name: Miners, Every: t.Slow, Retries: t.Retries, RetryDelay: t.RetryDelay, Enabled: hasAddr, Fetch: perAddr(r.Miners)})
	c.Register(Query{Name: Eggs, Every: t.Slow, Retries: t.Retries, RetryDelay: t.RetryDelay, Enabled: hasAddr, Fetch: perAddr(r.Eggs)})
	c.Register(Query{Name: SellValue, Every: t.Slow, Enabled: sellEnabled, Fetch: sellFetch})
	c.Register(Query{Name: LastHatch, Every: t.Fast, Enabled: hasAddr, Fetch: perAddr(r.LastHatch)})
	c.Register(Query{Name: TotalBalance, Every: t.Slow, Fetch: global(r.TotalBalance)})
	c.Register(Query{Name: BalanceBreakdown, Every: t.Slow, Fetch: breakdown})
	c.Register(Query{Name: AaveDeposits, Every: t.Slow, Fetch: global(r.AaveDeposits)})
}

// Positive reports whether v is a *big.Int greater than zero.
func Positive(v any) bool {
	b, ok := v.(*big.Int)
	return ok && b != nil && b.Sign() > 0
}

// BigValue returns the cached *big.Int for name, or nil.
func (c *Cache) BigValue(name string) *big.Int {
	b, _ := c.Value(name).(*big.Int)
	return b
}
