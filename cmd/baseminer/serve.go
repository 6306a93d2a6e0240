package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ligun0805/baseminer/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon",
	Long: `Run the session binder, read cache, countdown and HTTP surface until
interrupted (Ctrl+C) or terminated.

Example:
  baseminer serve --config baseminer.toml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	st, log, err := loadSettings()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := build(ctx, st, log)
	if err != nil {
		return fmt.Errorf("starting: %w", err)
	}
	defer d.close()

	log.Info("starting baseminer",
		"version", Version,
		"chain_id", st.ChainID,
		"contract", st.ContractAddress,
		"listen", st.ListenAddr,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.app.Run(ctx, st.SessionPoll, st.TickEvery)
	}()

	srvErr := d.server.Run(ctx)
	if srvErr != nil {
		log.Error("http server stopped", logging.Err(srvErr))
		stop()
	}
	wg.Wait()
	log.Info("stopped")
	return srvErr
}
