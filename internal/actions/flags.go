package actions

import "sync/atomic"

// Kind names an action. Each kind has its own in-flight flag.
type Kind string

const (
	KindMine      Kind = "mining"
	KindRefine    Kind = "refining"
	KindSell      Kind = "selling"
	KindSponsored Kind = "sponsoredHatching"
)

// Flags are per-kind in-flight markers. Distinct kinds may overlap; a second
// call of the same kind is refused while the first is submitting. The lock is
// advisory and per process.
type Flags struct {
	mining    atomic.Bool
	refining  atomic.Bool
	selling   atomic.Bool
	sponsored atomic.Bool
}

// FlagState is a point-in-time copy for the state view.
type FlagState struct {
	Mining            bool `json:"isMining"`
	Refining          bool `json:"isRefining"`
	Selling           bool `json:"isSelling"`
	SponsoredHatching bool `json:"isSponsoredHatching"`
}

func (f *Flags) flag(k Kind) *atomic.Bool {
	switch k {
	case KindMine:
		return &f.mining
	case KindRefine:
		return &f.refining
	case KindSell:
		return &f.selling
	case KindSponsored:
		return &f.sponsored
	}
	return nil
}

// TryAcquire sets the flag for k and reports whether it was clear.
func (f *Flags) TryAcquire(k Kind) bool {
	b := f.flag(k)
	return b != nil && b.CompareAndSwap(false, true)
}

func (f *Flags) Release(k Kind) {
	if b := f.flag(k); b != nil {
		b.Store(false)
	}
}

func (f *Flags) Busy(k Kind) bool {
	b := f.flag(k)
	return b != nil && b.Load()
}

func (f *Flags) State() FlagState {
	return FlagState{
		Mining:            f.Busy(KindMine),
		Refining:          f.Busy(KindRefine),
		Selling:           f.Busy(KindSell),
		SponsoredHatching: f.Busy(KindSponsored),
	}
}
