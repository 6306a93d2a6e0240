package wallet

import (
	"errors"
	"fmt"
	"strings"
)

// EIP-1193 / EIP-5792 provider error codes.
const (
	CodeUserRejected       = 4001
	CodeUnauthorized       = 4100
	CodeUnsupportedMethod  = 4200
	CodeServiceUnavailable = 4300
	CodeDisconnected       = 4900
	CodeChainDisconnected  = 4901
	CodeUnrecognizedChain  = 4902
	CodeCapabilityRequired = 5700
)

var (
	ErrNoProvider        = errors.New("no wallet provider available")
	ErrSwitchUnsupported = errors.New("connector cannot switch chains")
)

// ProviderError is a coded error returned by a wallet provider.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string { return fmt.Sprintf("%d: %s", e.Code, e.Message) }

func (e *ProviderError) ErrorCode() int { return e.Code }

type coded interface {
	error
	ErrorCode() int
}

// ErrorCode extracts the provider/JSON-RPC error code from err.
// go-ethereum rpc errors and ProviderError both satisfy it.
func ErrorCode(err error) (int, bool) {
	var c coded
	if errors.As(err, &c) {
		return c.ErrorCode(), true
	}
	return 0, false
}

// HasCode reports whether err carries the given provider code.
func HasCode(err error, code int) bool {
	c, ok := ErrorCode(err)
	return ok && c == code
}

// Describe normalizes common transport and wallet failures into short text.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	ls := strings.ToLower(strings.TrimSpace(s))
	switch c, _ := ErrorCode(err); {
	case c == CodeUserRejected:
		return "request rejected by user"
	case c == CodeDisconnected, c == CodeChainDisconnected:
		return "wallet disconnected"
	case c == CodeUnrecognizedChain:
		return "chain not added to wallet"
	case strings.Contains(ls, "invalid character '<'"):
		return "non-JSON/HTML response (proxy?)"
	case strings.Contains(ls, "dial tcp"), strings.Contains(ls, "lookup "):
		return "network/DNS error"
	case strings.Contains(ls, "method not found"), strings.Contains(ls, "method not available"):
		return "method not supported by wallet"
	case strings.Contains(ls, "insufficient funds"):
		return "insufficient ETH for gas"
	}
	return s
}
