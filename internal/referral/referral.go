// Package referral extracts the referrer address from page URLs.
// Only the shape is checked: a 0x prefix and 42 characters. No checksum.
package referral

import (
	"net/url"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

const (
	QueryParam = "ref"
	addrLen    = 42
)

// Valid reports whether s looks like an address.
func Valid(s string) bool {
	return strings.HasPrefix(s, "0x") && len(s) == addrLen
}

// FromQuery returns the ref parameter when it passes Valid.
func FromQuery(q url.Values) (string, bool) {
	v := q.Get(QueryParam)
	if !Valid(v) {
		return "", false
	}
	return v, true
}

// RedirectTarget is where /ref/{address} sends the browser: the root page
// with the address as ref, or the bare root when it is malformed.
func RedirectTarget(addr string) string {
	if !Valid(addr) {
		return "/"
	}
	return "/?" + url.Values{QueryParam: {addr}}.Encode()
}

// State holds the referrer for the session. The first valid value sticks.
type State struct {
	mu   sync.RWMutex
	addr string
}

// Set stores v if nothing is stored yet and v is valid. It reports whether v was taken.
func (s *State) Set(v string) bool {
	if !Valid(v) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr != "" {
		return false
	}
	s.addr = v
	return true
}

func (s *State) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Beneficiary is the buy call argument: the referrer when set, else self.
func (s *State) Beneficiary(self common.Address) common.Address {
	v := s.Get()
	if v == "" {
		return self
	}
	return common.HexToAddress(v)
}
