package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Settings keeps all configuration options.
// Every key can come from the TOML file or from the environment (UPPER_CASE or lower_case).
type Settings struct {
	RPCURL          string `toml:"rpc_url"`
	ChainID         uint64 `toml:"chain_id"`
	ContractAddress string `toml:"contract_address"`

	// Wallet side. WalletRPCURL selects the remote connector; PrivateKeyHex the local one.
	WalletRPCURL   string `toml:"wallet_rpc_url"`
	InjectedRPCURL string `toml:"injected_rpc_url"`
	PrivateKeyHex  string `toml:"private_key"`
	PaymasterURL   string `toml:"paymaster_url"`

	// HTTP surface
	ListenAddr       string `toml:"listen_addr"`
	PublicURL        string `toml:"public_url"`
	NotifyURL        string `toml:"notify_url"`
	NotifyWebhookURL string `toml:"notify_webhook_url"`

	// Passed through to the host frame untouched.
	AppName string `toml:"app_name"`
	APIKey  string `toml:"api_key"`
	IconURL string `toml:"icon_url"`

	// Timing
	Cooldown              time.Duration `toml:"cooldown"`
	TickEvery             time.Duration `toml:"tick_every"`
	SessionPoll           time.Duration `toml:"session_poll"`
	FastPoll              time.Duration `toml:"fast_poll"`
	SlowPoll              time.Duration `toml:"slow_poll"`
	ReadRetries           int           `toml:"read_retries"`
	ReadRetryDelay        time.Duration `toml:"read_retry_delay"`
	RefreshDelay          time.Duration `toml:"refresh_delay"`
	RefreshSecondDelay    time.Duration `toml:"refresh_second_delay"`
	SponsoredRefreshDelay time.Duration `toml:"sponsored_refresh_delay"`
	RPCRatePerSec         float64       `toml:"rpc_rate_per_sec"`
	RPCBurst              int           `toml:"rpc_burst"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Default returns the Base mainnet settings the frontend shipped with.
func Default() Settings {
	return Settings{
		RPCURL:                "https://mainnet.base.org",
		ChainID:               8453,
		ListenAddr:            "127.0.0.1:3000",
		PublicURL:             "https://basemine.fun",
		NotifyURL:             "http://127.0.0.1:3000/api/notify",
		AppName:               "BaseMiner",
		Cooldown:              time.Hour,
		TickEvery:             time.Second,
		SessionPoll:           5 * time.Second,
		FastPoll:              5 * time.Second,
		SlowPoll:              30 * time.Second,
		ReadRetries:           3,
		ReadRetryDelay:        5 * time.Second,
		RefreshDelay:          1000 * time.Millisecond,
		RefreshSecondDelay:    500 * time.Millisecond,
		SponsoredRefreshDelay: 2000 * time.Millisecond,
		RPCRatePerSec:         10,
		RPCBurst:              20,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// LoadFile overlays a TOML file on top of s. A missing file is not an error.
func LoadFile(s *Settings, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if _, err := toml.DecodeFile(path, s); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Load reads settings: defaults, then the optional TOML file, then the environment.
func Load(path string) (Settings, error) {
	st := Default()
	if err := LoadFile(&st, path); err != nil {
		return st, err
	}
	ApplyEnv(&st)
	return st, st.Validate()
}

// ApplyEnv overrides s with whatever is set in the environment.
func ApplyEnv(st *Settings) {
	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" { return v }
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" { return def }
		if n, err := strconv.Atoi(s); err == nil { return n }
		return def
	}
	getUint64 := func(keys []string, def uint64) uint64 {
		s := get(keys, "")
		if s == "" { return def }
		if n, err := strconv.ParseUint(s, 0, 64); err == nil { return n }
		return def
	}
	getFloat := func(keys []string, def float64) float64 {
		s := get(keys, "")
		if s == "" { return def }
		if n, err := strconv.ParseFloat(s, 64); err == nil { return n }
		return def
	}
	// plain integers are milliseconds, anything else goes through time.ParseDuration
	getDur := func(keys []string, def time.Duration) time.Duration {
		s := get(keys, "")
		if s == "" { return def }
		if n, err := strconv.ParseInt(s, 10, 64); err == nil { return time.Duration(n) * time.Millisecond }
		if d, err := time.ParseDuration(s); err == nil { return d }
		return def
	}

	st.RPCURL          = get([]string{"rpc_url", "RPC_URL"}, st.RPCURL)
	st.ChainID         = getUint64([]string{"chain_id", "CHAIN_ID"}, st.ChainID)
	st.ContractAddress = get([]string{"contract_address", "CONTRACT_ADDRESS"}, st.ContractAddress)

	st.WalletRPCURL   = get([]string{"wallet_rpc_url", "WALLET_RPC_URL"}, st.WalletRPCURL)
	st.InjectedRPCURL = get([]string{"injected_rpc_url", "INJECTED_RPC_URL"}, st.InjectedRPCURL)
	st.PrivateKeyHex  = get([]string{"private_key", "PRIVATE_KEY"}, st.PrivateKeyHex)
	st.PaymasterURL   = get([]string{"paymaster_url", "PAYMASTER_URL"}, st.PaymasterURL)

	st.ListenAddr       = get([]string{"listen_addr", "LISTEN_ADDR"}, st.ListenAddr)
	st.PublicURL        = get([]string{"public_url", "PUBLIC_URL"}, st.PublicURL)
	st.NotifyURL        = get([]string{"notify_url", "NOTIFY_URL"}, st.NotifyURL)
	st.NotifyWebhookURL = get([]string{"notify_webhook_url", "NOTIFY_WEBHOOK_URL"}, st.NotifyWebhookURL)

	st.AppName = get([]string{"onchainkit_project_name", "ONCHAINKIT_PROJECT_NAME", "NEXT_PUBLIC_ONCHAINKIT_PROJECT_NAME"}, st.AppName)
	st.APIKey  = get([]string{"onchainkit_api_key", "ONCHAINKIT_API_KEY", "NEXT_PUBLIC_ONCHAINKIT_API_KEY"}, st.APIKey)
	st.IconURL = get([]string{"icon_url", "ICON_URL", "NEXT_PUBLIC_ICON_URL"}, st.IconURL)

	st.Cooldown              = getDur([]string{"cooldown", "COOLDOWN"}, st.Cooldown)
	st.TickEvery             = getDur([]string{"tick_every", "TICK_EVERY"}, st.TickEvery)
	st.SessionPoll           = getDur([]string{"session_poll", "SESSION_POLL"}, st.SessionPoll)
	st.FastPoll              = getDur([]string{"fast_poll", "FAST_POLL"}, st.FastPoll)
	st.SlowPoll              = getDur([]string{"slow_poll", "SLOW_POLL"}, st.SlowPoll)
	st.ReadRetries           = getInt([]string{"read_retries", "READ_RETRIES"}, st.ReadRetries)
	st.ReadRetryDelay        = getDur([]string{"read_retry_delay", "READ_RETRY_DELAY"}, st.ReadRetryDelay)
	st.RefreshDelay          = getDur([]string{"refresh_delay", "REFRESH_DELAY"}, st.RefreshDelay)
	st.RefreshSecondDelay    = getDur([]string{"refresh_second_delay", "REFRESH_SECOND_DELAY"}, st.RefreshSecondDelay)
	st.SponsoredRefreshDelay = getDur([]string{"sponsored_refresh_delay", "SPONSORED_REFRESH_DELAY"}, st.SponsoredRefreshDelay)
	st.RPCRatePerSec         = getFloat([]string{"rpc_rate_per_sec", "RPC_RATE_PER_SEC"}, st.RPCRatePerSec)
	st.RPCBurst              = getInt([]string{"rpc_burst", "RPC_BURST"}, st.RPCBurst)

	st.LogLevel  = get([]string{"log_level", "LOG_LEVEL"}, st.LogLevel)
	st.LogFormat = get([]string{"log_format", "LOG_FORMAT"}, st.LogFormat)
}

// Validate checks the few settings nothing can run without.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.RPCURL) == "" {
		return errors.New("rpc_url is empty")
	}
	if s.ChainID == 0 {
		return errors.New("chain_id is zero")
	}
	if !common.IsHexAddress(s.ContractAddress) {
		return fmt.Errorf("contract_address %q is not a hex address", s.ContractAddress)
	}
	if s.Cooldown <= 0 || s.TickEvery <= 0 {
		return errors.New("cooldown and tick_every must be positive")
	}
	return nil
}

// Contract returns the parsed contract address. Call Validate first.
func (s Settings) Contract() common.Address { return common.HexToAddress(s.ContractAddress) }
