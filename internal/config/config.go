// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/snipekit/solana-sniper/internal/types"
)

// Config is the full engine configuration. A malformed configuration is the
// only fatal startup condition; everything else degrades at runtime.
type Config struct {
	RPCList []string `mapstructure:"rpc_list"`

	JupiterQuoteURL string `mapstructure:"jupiter_quote_url"`
	JupiterSwapURL  string `mapstructure:"jupiter_swap_url"`
	JupiterTokenURL string `mapstructure:"jupiter_token_url"`
	DexscreenerURL  string `mapstructure:"dexscreener_url"`
	RugOracleURL    string `mapstructure:"rug_oracle_url"`

	PostgresURL string `mapstructure:"postgres_url"`

	ScanInterval    time.Duration `mapstructure:"scan_interval"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
	ExitCooldown    time.Duration `mapstructure:"exit_cooldown"`

	MintSuffix string `mapstructure:"mint_suffix"`

	Risk     RiskConfig            `mapstructure:"risk"`
	Slippage types.SlippageTiers   `mapstructure:"slippage"`
	Priority types.PriorityProfile `mapstructure:"priority"`

	// Single-user defaults; overridden per user when running from storage.
	TakeProfitMultiplier float64 `mapstructure:"take_profit_multiplier"`
	BuyAmountSol         float64 `mapstructure:"buy_amount_sol"`

	LogFile      string `mapstructure:"log_file"`
	DebugLogging bool   `mapstructure:"debug_logging"`
}

// RiskConfig pins the scoring policy. Baseline and acceptance threshold are
// policy knobs, not mechanism: the scorer itself never reads them directly.
type RiskConfig struct {
	Baseline       int     `mapstructure:"baseline"`
	MinScore       int     `mapstructure:"min_score"`
	MaxRugPercent  float64 `mapstructure:"max_rug_percent"`
	CrashThreshold float64 `mapstructure:"crash_threshold"`
	MinTxCount     int     `mapstructure:"min_tx_count"`
}

const (
	DefaultScanInterval    = 30 * time.Second
	DefaultMonitorInterval = 5 * time.Second
	DefaultConfirmTimeout  = 20 * time.Second
	DefaultExitCooldown    = 2 * time.Second
	DefaultMintSuffix      = "pump"
	DefaultMaxRugPercent   = 55.0
	DefaultCrashThreshold  = -40.0
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"jupiter_quote_url":      "https://lite-api.jup.ag/swap/v1/quote",
		"jupiter_swap_url":       "https://lite-api.jup.ag/swap/v1/swap",
		"jupiter_token_url":      "https://lite-api.jup.ag/tokens/v2/search",
		"dexscreener_url":        "https://api.dexscreener.com",
		"scan_interval":          DefaultScanInterval,
		"monitor_interval":       DefaultMonitorInterval,
		"confirm_timeout":        DefaultConfirmTimeout,
		"exit_cooldown":          DefaultExitCooldown,
		"mint_suffix":            DefaultMintSuffix,
		"risk.baseline":          50,
		"risk.min_score":         40,
		"risk.max_rug_percent":   DefaultMaxRugPercent,
		"risk.crash_threshold":   DefaultCrashThreshold,
		"risk.min_tx_count":      100,
		"slippage.buy_bps":       500,
		"slippage.sell_bps":      1500,
		"slippage.emergency_bps": 2500,
		"priority.normal":        50_000,
		"priority.emergency":     100_000,
		"take_profit_multiplier": 2.0,
		"buy_amount_sol":         0.001,
		"log_file":               "sniper.log",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	for _, apiURL := range []string{cfg.JupiterQuoteURL, cfg.JupiterSwapURL, cfg.JupiterTokenURL, cfg.DexscreenerURL} {
		if err := validateURLWithCache(apiURL, "http"); err != nil {
			return errors.New("invalid API URL: " + apiURL)
		}
	}
	if cfg.RugOracleURL != "" {
		if err := validateURLWithCache(cfg.RugOracleURL, "http"); err != nil {
			return errors.New("invalid rug oracle URL")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.ScanInterval <= 0 {
		return errors.New("invalid scan_interval")
	}
	if cfg.MonitorInterval <= 0 {
		return errors.New("invalid monitor_interval")
	}
	if cfg.ConfirmTimeout <= 0 {
		return errors.New("invalid confirm_timeout")
	}
	if cfg.TakeProfitMultiplier <= 1 {
		return errors.New("take_profit_multiplier must be greater than 1")
	}
	if cfg.BuyAmountSol <= 0 {
		return errors.New("buy_amount_sol must be positive")
	}
	if cfg.Risk.Baseline < 0 || cfg.Risk.Baseline > 100 {
		return errors.New("risk.baseline must be within [0,100]")
	}
	if cfg.Risk.MinScore < 0 || cfg.Risk.MinScore > 100 {
		return errors.New("risk.min_score must be within [0,100]")
	}
	if cfg.Risk.MaxRugPercent < 0 || cfg.Risk.MaxRugPercent > 100 {
		return errors.New("risk.max_rug_percent must be within [0,100]")
	}
	if cfg.Risk.CrashThreshold >= 0 {
		return errors.New("risk.crash_threshold must be negative")
	}
	if cfg.Slippage.Buy == 0 || cfg.Slippage.Sell == 0 || cfg.Slippage.Emergency == 0 {
		return errors.New("slippage tiers must be positive")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("SNIPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envRPCList := v.GetString("RPC_LIST")
	if envRPCList != "" {
		rpcs := strings.Split(envRPCList, ",")
		var cleanRPCs []string
		for _, rpc := range rpcs {
			clean := strings.TrimSpace(rpc)
			if clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}

	envPostgres := v.GetString("POSTGRES_URL")
	if envPostgres != "" {
		cfg.PostgresURL = envPostgres
	}
	return nil
}
