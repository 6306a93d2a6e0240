package app

import (
	"math/big"
	"time"

	"github.com/ligun0805/baseminer/internal/actions"
	"github.com/ligun0805/baseminer/internal/capability"
	"github.com/ligun0805/baseminer/internal/contract"
	"github.com/ligun0805/baseminer/internal/format"
	"github.com/ligun0805/baseminer/internal/readcache"
)

// View is the page state served at /api/state and pushed over /ws.
// Amounts are decimal ETH strings; an empty string means not loaded yet.
type View struct {
	Session   SessionView      `json:"session"`
	Referral  string           `json:"referral,omitempty"`
	FrameAdd  bool             `json:"frameAdded"`
	Sponsored capability.State `json:"sponsored"`

	WalletBalance string    `json:"walletBalance"`
	Miners        string    `json:"miners"`
	Eggs          string    `json:"eggs"`
	Rewards       string    `json:"rewards"`
	RewardsShort  string    `json:"rewardsShort"`
	TVL           TVLView   `json:"tvl"`
	Cooldown      Countdown `json:"cooldown"`

	Loading map[string]bool   `json:"loading"`
	Errors  map[string]string `json:"errors,omitempty"`

	Flags   actions.FlagState     `json:"flags"`
	Journal []actions.JournalItem `json:"journal"`
}

type SessionView struct {
	ID        string `json:"id,omitempty"`
	Address   string `json:"address,omitempty"`
	Short     string `json:"short,omitempty"`
	ChainID   uint64 `json:"chainId,omitempty"`
	Connected bool   `json:"connected"`
}

// TVLView splits the contract's holdings. Principal is what was deposited
// into Aave; Yield is what Aave added on top.
type TVLView struct {
	Total     string `json:"total"`
	Reserve   string `json:"reserve"`
	Aave      string `json:"aave"`
	Principal string `json:"principal"`
	Yield     string `json:"yield"`
}

type Countdown struct {
	Loaded      bool      `json:"loaded"`
	RemainingMs int64     `json:"remainingMs"`
	Text        string    `json:"text"`
	Ready       bool      `json:"ready"`
	LastAction  time.Time `json:"lastAction,omitempty"`
}

func ether(v *big.Int) string {
	if v == nil {
		return ""
	}
	return format.Ether(v)
}

func integer(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// View assembles the current page state.
func (a *App) View() View {
	cur := a.d.Binder.Current()
	snap := a.d.Cache.Snapshot()
	num := func(name string) *big.Int {
		v, _ := snap[name].Value.(*big.Int)
		return v
	}

	v := View{
		Referral:  a.d.Referral.Get(),
		FrameAdd:  a.d.Frame.Added(),
		Sponsored: a.d.Probe.State(),
		Loading:   map[string]bool{},
		Errors:    map[string]string{},
		Flags:     a.d.Actions.Flags(),
		Journal:   a.d.Actions.Journal(),
	}
	if cur.Connected && cur.Address != nil {
		v.Session = SessionView{
			ID:        cur.ID.String(),
			Address:   cur.Address.Hex(),
			Short:     format.ShortAddress(cur.Address),
			ChainID:   cur.ChainID,
			Connected: true,
		}
	}
	for name, e := range snap {
		if e.Loading {
			v.Loading[name] = true
		}
		if e.Err != nil {
			v.Errors[name] = e.Err.Error()
		}
	}

	v.WalletBalance = ether(num(readcache.WalletBalance))
	v.Miners = integer(num(readcache.Miners))
	v.Eggs = integer(num(readcache.Eggs))

	rewards := num(readcache.SellValue)
	if rewards == nil || rewards.Sign() == 0 {
		a.mu.Lock()
		if a.lastRewards != nil {
			rewards = a.lastRewards
		}
		a.mu.Unlock()
	}
	if rewards != nil {
		v.Rewards = format.EtherFixed(rewards, 8)
		v.RewardsShort = format.TruncateTo4Decimals(format.Ether(rewards))
	}

	v.TVL.Total = ether(num(readcache.TotalBalance))
	if bd, ok := snap[readcache.BalanceBreakdown].Value.(contract.Breakdown); ok {
		v.TVL.Reserve = ether(bd.ETH)
		v.TVL.Aave = ether(bd.Aave)
		if dep := num(readcache.AaveDeposits); dep != nil {
			v.TVL.Principal = ether(dep)
			v.TVL.Yield = format.Ether(format.Diff(bd.Aave, dep))
		}
	}

	st := a.d.Cooldown.Current()
	v.Cooldown = Countdown{
		Loaded:      st.Loaded,
		RemainingMs: st.Remaining.Milliseconds(),
		Text:        st.Format(),
		Ready:       st.Remaining <= 0,
	}
	if st.Loaded {
		v.Cooldown.LastAction = st.LastAction
	}
	return v
}
