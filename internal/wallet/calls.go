package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SendCallsVersion is the wallet_sendCalls request version the wallets we target accept.
const SendCallsVersion = "1.0"

// Call is one entry of a wallet_sendCalls batch.
type Call struct {
	To    common.Address `json:"to"`
	Value string         `json:"value"`
	Data  hexutil.Bytes  `json:"data"`
}

type PaymasterService struct {
	URL string `json:"url"`
}

type CallCapabilities struct {
	PaymasterService *PaymasterService `json:"paymasterService,omitempty"`
}

// SendCallsRequest is the single parameter of wallet_sendCalls.
type SendCallsRequest struct {
	Version      string            `json:"version"`
	ChainID      string            `json:"chainId"`
	From         common.Address    `json:"from"`
	Calls        []Call            `json:"calls"`
	Capabilities *CallCapabilities `json:"capabilities,omitempty"`
}

// NewSponsoredCall builds a one-call, zero-value batch tagged with a paymaster URL.
func NewSponsoredCall(chainID uint64, from, to common.Address, data []byte, paymasterURL string) SendCallsRequest {
	return SendCallsRequest{
		Version: SendCallsVersion,
		ChainID: hexutil.EncodeUint64(chainID),
		From:    from,
		Calls:   []Call{{To: to, Value: "0x0", Data: data}},
		Capabilities: &CallCapabilities{
			PaymasterService: &PaymasterService{URL: paymasterURL},
		},
	}
}

// SendCalls submits the batch and returns the wallet's call identifier.
// Wallets answer with either a bare string or an object carrying "id".
func SendCalls(ctx context.Context, p Provider, req SendCallsRequest) (string, error) {
	var raw json.RawMessage
	if err := p.Request(ctx, &raw, "wallet_sendCalls", req); err != nil {
		return "", err
	}
	id, err := parseCallsID(raw)
	if err != nil {
		return "", fmt.Errorf("wallet_sendCalls result: %w", err)
	}
	return id, nil
}

func parseCallsID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	if strings.TrimSpace(obj.ID) == "" {
		return "", errors.New("missing call id")
	}
	return obj.ID, nil
}

// GetCapabilities issues wallet_getCapabilities for addr and returns the
// result keyed by hex chain id. Values are left undecoded.
func GetCapabilities(ctx context.Context, p Provider, addr common.Address) (map[string]json.RawMessage, error) {
	var out map[string]json.RawMessage
	if err := p.Request(ctx, &out, "wallet_getCapabilities", addr); err != nil {
		return nil, err
	}
	return out, nil
}
