// Package contract binds the BaseMiner contract: view reads through w3,
// buy/hatch/sell submission and receipt confirmation.
package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

var (
	funcGetMyMiners         = w3.MustNewFunc("getMyMiners(address)", "uint256")
	funcGetMyEggs           = w3.MustNewFunc("getMyEggs(address)", "uint256")
	funcCalculateEggSell    = w3.MustNewFunc("calculateEggSell(uint256)", "uint256")
	funcLastHatch           = w3.MustNewFunc("lastHatch(address)", "uint256")
	funcGetTotalBalance     = w3.MustNewFunc("getTotalBalance()", "uint256")
	funcGetBalanceBreakdown = w3.MustNewFunc("getBalanceBreakdown()", "uint256,uint256")
	funcTotalAaveDeposits   = w3.MustNewFunc("totalAaveDeposits()", "uint256")

	funcBuyEggs   = w3.MustNewFunc("buyEggs(address)", "")
	funcHatchEggs = w3.MustNewFunc("hatchEggs()", "")
	funcSellEggs  = w3.MustNewFunc("sellEggs()", "")
)

// writeABI covers the state-changing methods for the bind-based writer.
const writeABI = `[
 {"type":"function","name":"buyEggs","stateMutability":"payable","inputs":[{"name":"ref","type":"address"}],"outputs":[]},
 {"type":"function","name":"hatchEggs","stateMutability":"nonpayable","inputs":[],"outputs":[]},
 {"type":"function","name":"sellEggs","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

func parseWriteABI() (abi.ABI, error) { return abi.JSON(strings.NewReader(writeABI)) }

// HatchSelector is the 4-byte selector of hatchEggs().
func HatchSelector() []byte {
	sel := funcHatchEggs.Selector
	return sel[:]
}

// BuyCalldata encodes buyEggs(referral).
func BuyCalldata(referral common.Address) ([]byte, error) {
	return funcBuyEggs.EncodeArgs(referral)
}

func SellCalldata() []byte {
	sel := funcSellEggs.Selector
	return sel[:]
}
