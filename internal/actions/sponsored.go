package actions

import (
	"strings"

	"github.com/ligun0805/baseminer/internal/wallet"
)

// Reasons a sponsored hatch fell back to the plain one. Used as the metrics
// label and in the journal.
const (
	FallbackNoEggs             = "no_eggs"
	FallbackNoProvider         = "no_provider"
	FallbackUnauthorized       = "unauthorized"
	FallbackUnsupported        = "unsupported"
	FallbackServiceError       = "service_error"
	FallbackCapabilityRequired = "capability_required"
	FallbackPaymaster          = "paymaster"
	FallbackOther              = "other"
)

// ClassifySponsorError maps a wallet_sendCalls failure to a fallback reason
// and the line we log for it.
func ClassifySponsorError(err error) (reason, detail string) {
	if code, ok := wallet.ErrorCode(err); ok {
		switch code {
		case wallet.CodeUnauthorized:
			return FallbackUnauthorized, "Paymaster service not supported by wallet"
		case wallet.CodeUnsupportedMethod:
			return FallbackUnsupported, "Invalid paymaster URL or unreachable"
		case wallet.CodeServiceUnavailable:
			return FallbackServiceError, "Paymaster service returned an error or is unavailable"
		case wallet.CodeCapabilityRequired:
			return FallbackCapabilityRequired, "Paymaster capability required but wallet doesn't support it"
		}
	}
	if err != nil && strings.Contains(err.Error(), "paymaster") {
		return FallbackPaymaster, "Paymaster-related error"
	}
	return FallbackOther, "Unknown error during sponsored transaction"
}
