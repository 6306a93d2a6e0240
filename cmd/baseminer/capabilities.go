package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ligun0805/baseminer/internal/capability"
	"github.com/ligun0805/baseminer/internal/metrics"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Check whether the wallet can sponsor gas",
	Long: `Ask the wallet for its capabilities on the configured chain and print
whether a paymaster can sponsor the refine transaction.`,
	RunE: runCapabilities,
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	st, log, err := loadSettings()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	ws, err := dialWallet(ctx, st)
	if err != nil {
		return err
	}
	defer ws.close()

	accs, err := ws.conn.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("accounts: %w", err)
	}
	probe := capability.New(ws.resolver, st.ChainID, log, metrics.NewNopMetrics())
	var res capability.Result
	if len(accs) == 0 {
		res = probe.CheckManual(ctx, nil)
	} else {
		res = probe.CheckManual(ctx, &accs[0])
	}
	fmt.Println(res.Message)
	if res.Code != 0 {
		fmt.Println("code:", res.Code)
	}
	return nil
}
