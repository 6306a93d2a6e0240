package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/ligun0805/baseminer/internal/config"
	"github.com/ligun0805/baseminer/internal/contract"
	"github.com/ligun0805/baseminer/internal/cooldown"
	"github.com/ligun0805/baseminer/internal/format"
)

var (
	statusAddress string
	statusJSON    bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the account and pool figures once",
	Long: `Read every figure the page shows in one batch and print it.

The account is --address, or the one the configured wallet reports.

Example:
  baseminer status
  baseminer status --address 0x... --json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddress, "address", "", "account to inspect")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

type statusReport struct {
	Address       string `json:"address"`
	WalletBalance string `json:"walletBalance"`
	Miners        string `json:"miners"`
	Eggs          string `json:"eggs"`
	Rewards       string `json:"rewards"`
	Refine        string `json:"refine"`
	TVL           string `json:"tvl"`
	Reserve       string `json:"reserve"`
	Aave          string `json:"aave"`
	Yield         string `json:"yield"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, log, err := loadSettings()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	addr, err := statusAccount(ctx, st)
	if err != nil {
		return err
	}
	client, err := contract.Dial(st.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()

	o, err := contract.NewReader(client, st.Contract()).Overview(ctx, addr)
	if err != nil {
		return err
	}
	log.Debug("overview read", "address", addr.Hex())

	remaining := time.Duration(0)
	if o.LastHatch.Sign() > 0 {
		remaining = cooldown.Remaining(time.Unix(o.LastHatch.Int64(), 0), time.Now(), st.Cooldown)
	}
	rep := statusReport{
		Address:       addr.Hex(),
		WalletBalance: format.Ether(o.WalletBalance),
		Miners:        o.Miners.String(),
		Eggs:          o.Eggs.String(),
		Rewards:       format.EtherFixed(o.SellValue, 8),
		Refine:        cooldown.Format(remaining.Milliseconds()),
		TVL:           format.Ether(o.TotalBalance),
		Reserve:       format.Ether(o.Breakdown.ETH),
		Aave:          format.Ether(o.Breakdown.Aave),
		Yield:         format.Ether(format.Diff(o.Breakdown.Aave, o.AaveDeposits)),
	}
	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	printConfig(st)
	fmt.Println("=== ACCOUNT ===")
	fmt.Println("Address          :", format.ShortAddress(&addr))
	fmt.Println("Wallet balance   :", rep.WalletBalance, "ETH")
	fmt.Println("Miners           :", rep.Miners, "GEMS")
	fmt.Println("Pending gems     :", rep.Eggs)
	fmt.Println("Rewards          :", rep.Rewards, "ETH")
	fmt.Println("Refine           :", rep.Refine)
	fmt.Println("=== POOL ===")
	fmt.Println("TVL              :", rep.TVL, "ETH")
	fmt.Println("Reserve          :", rep.Reserve, "ETH")
	fmt.Println("Aave             :", rep.Aave, "ETH")
	fmt.Println("Yield            :", rep.Yield, "ETH")
	return nil
}

// statusAccount resolves --address or asks the configured wallet.
func statusAccount(ctx context.Context, st config.Settings) (common.Address, error) {
	if statusAddress != "" {
		if !common.IsHexAddress(statusAddress) {
			return common.Address{}, fmt.Errorf("--address %q is not a hex address", statusAddress)
		}
		return common.HexToAddress(statusAddress), nil
	}
	ws, err := dialWallet(ctx, st)
	if err != nil {
		return common.Address{}, err
	}
	defer ws.close()
	accs, err := ws.conn.Accounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("accounts: %w", err)
	}
	if len(accs) == 0 {
		return common.Address{}, fmt.Errorf("wallet reports no accounts")
	}
	return accs[0], nil
}
