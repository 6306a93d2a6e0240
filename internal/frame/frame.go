// Package frame holds what the mini-app host needs from us: whether the user
// saved the frame, the pass-through manifest, and the referral share cast.
package frame

import (
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

// State tracks the host's "frame added" flag. It gates cooldown notifications.
type State struct {
	added atomic.Bool
}

func (s *State) Added() bool { return s.added.Load() }

func (s *State) SetAdded(v bool) { s.added.Store(v) }

// Manifest carries the environment-derived values unchanged.
type Manifest struct {
	Name    string `json:"name"`
	APIKey  string `json:"apiKey,omitempty"`
	IconURL string `json:"iconUrl,omitempty"`
	Added   bool   `json:"added"`
}

// Cast is a compose-cast request for the host.
type Cast struct {
	Text   string   `json:"text"`
	Embeds []string `json:"embeds"`
}

const shareBody = "🎮 Just discovered BaseMiner - the ultimate mining game on Base! \n\n" +
	"⛏️ Mine gems, refine them, and earn ETH rewards\n" +
	"💰 Dynamic fees and referral rewards\n" +
	"🛡️ Protected against whale attacks\n\n" +
	"Join me and start mining: "

// ReferralLink is the public /ref route for addr.
func ReferralLink(publicURL string, addr common.Address) string {
	return strings.TrimRight(publicURL, "/") + "/ref/" + addr.Hex()
}

// ShareCast builds the referral share. The link is both in the text and the only embed.
func ShareCast(publicURL string, addr common.Address) Cast {
	link := ReferralLink(publicURL, addr)
	return Cast{Text: shareBody + link, Embeds: []string{link}}
}
