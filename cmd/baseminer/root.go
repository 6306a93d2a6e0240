package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ligun0805/baseminer/internal/config"
	"github.com/ligun0805/baseminer/internal/logging"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	GitCommit = "unknown"

	cfgFile   string
	promptKey bool
)

var rootCmd = &cobra.Command{
	Use:   "baseminer",
	Short: "BaseMiner wallet daemon",
	Long: `baseminer binds one wallet to the BaseMiner contract on Base.

It keeps the contract reads fresh, runs the refine countdown and submits
buy, refine and sell transactions, sponsored through a paymaster when the
wallet supports it.`,
	Version:       fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "baseminer.toml", "config file path (optional)")
	rootCmd.PersistentFlags().BoolVar(&promptKey, "prompt-key", false, "ask for the private key on the terminal")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("baseminer %s\n", Version)
		fmt.Printf("  Git commit: %s\n", GitCommit)
	},
}

// loadSettings reads the config and, when asked and attached to a terminal,
// prompts for a private key that is not configured.
func loadSettings() (config.Settings, *logging.Logger, error) {
	st, err := config.Load(cfgFile)
	if err != nil {
		return st, nil, fmt.Errorf("loading config: %w", err)
	}
	if promptKey && st.PrivateKeyHex == "" && st.WalletRPCURL == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return st, nil, fmt.Errorf("--prompt-key needs a terminal")
		}
		pk, err := readPassword("Private key (hex): ")
		if err != nil {
			return st, nil, err
		}
		st.PrivateKeyHex = pk
	}
	return st, logging.NewFromConfig(st.LogFormat, st.LogLevel), nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func maskHex(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return "(not set)"
	}
	if len(h) <= 10 {
		return "***"
	}
	return h[:6] + "…" + h[len(h)-4:]
}

func orUnset(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(not set)"
	}
	return s
}

func printConfig(st config.Settings) {
	fmt.Println("=== CONFIG ===")
	fmt.Println("RPC_URL          :", st.RPCURL)
	fmt.Println("CHAIN_ID         :", st.ChainID)
	fmt.Println("CONTRACT_ADDRESS :", st.ContractAddress)
	fmt.Println("WALLET_RPC_URL   :", orUnset(st.WalletRPCURL))
	fmt.Println("INJECTED_RPC_URL :", orUnset(st.InjectedRPCURL))
	fmt.Println("PRIVATE_KEY      :", maskHex(st.PrivateKeyHex))
	fmt.Println("PAYMASTER_URL    :", orUnset(st.PaymasterURL))
	fmt.Println("Cooldown         :", st.Cooldown)
	fmt.Println("==============")
}
