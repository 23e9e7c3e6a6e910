// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Flat snake_case keys shared by the YAML file and ENGAGE_* env vars.
// - New(ctx) returns a Config holding every default.
// - Load layers file and env on top and validates the result.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/engageboard/internal/domain/model"
)

// Ledger modes.
const (
	LedgerMemory = "memory"
	LedgerEVM    = "evm"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// MaxLimit caps every ?limit= parameter.
	MaxLimit int `koanf:"max_limit"`

	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `koanf:"shutdown_timeout_seconds"`

	// Pipeline.
	Query                    string `koanf:"query"`
	RewardTotal              string `koanf:"reward_total"`
	TopN                     int    `koanf:"top_n"`
	MinBalance               string `koanf:"min_balance"`
	RateLimitCooldownSeconds int    `koanf:"rate_limit_cooldown_seconds"`
	LookbackHours            int    `koanf:"lookback_hours"`

	// Metrics source.
	SearchURL               string            `koanf:"search_url"`
	BearerToken             string            `koanf:"bearer_token"`
	MaxResults              int               `koanf:"max_results"`
	MaxPages                int               `koanf:"max_pages"`
	SearchRequestsPerSecond float64           `koanf:"search_requests_per_second"`
	MaxRateLimitRetries     int               `koanf:"max_rate_limit_retries"`
	ReplayPath              string            `koanf:"replay_path"`
	DefaultWallet           string            `koanf:"default_wallet"`
	Wallets                 map[string]string `koanf:"wallets"`

	// DBPath is the sqlite file. Empty keeps everything in memory.
	DBPath string `koanf:"db_path"`

	// Ledger.
	LedgerMode                  string `koanf:"ledger_mode"`
	LedgerRPCURL                string `koanf:"ledger_rpc_url"`
	LedgerPrivateKey            string `koanf:"ledger_private_key"`
	LedgerAsset                 string `koanf:"ledger_asset"`
	LedgerTokenAddress          string `koanf:"ledger_token_address"`
	LedgerTokenDecimals         int    `koanf:"ledger_token_decimals"`
	LedgerFaucetURL             string `koanf:"ledger_faucet_url"`
	LedgerConfirmTimeoutSeconds int    `koanf:"ledger_confirm_timeout_seconds"`
	LedgerMemoryBalance         string `koanf:"ledger_memory_balance"`
	LedgerMemoryFaucetDrip      string `koanf:"ledger_memory_faucet_drip"`
	AnchorContract              string `koanf:"anchor_contract"`

	// Scheduling and commands.
	Schedule             string `koanf:"schedule"`
	Timezone             string `koanf:"timezone"`
	CommandQueueSize     int    `koanf:"command_queue_size"`
	IdempotencyCacheSize int    `koanf:"idempotency_cache_size"`
}

// New creates a Config holding the defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                    "info",
		LogFormat:                   "text",
		Addr:                        ":9080",
		MaxLimit:                    100,
		ShutdownTimeoutSeconds:      30,
		Query:                       "@basedindia #indiaonchain",
		RewardTotal:                 "0.003",
		TopN:                        3,
		MinBalance:                  "0",
		RateLimitCooldownSeconds:    900,
		SearchURL:                   "https://api.twitter.com/2/tweets/search/recent",
		MaxResults:                  100,
		MaxPages:                    5,
		SearchRequestsPerSecond:     1,
		DBPath:                      "data/engageboard.db",
		LedgerMode:                  LedgerMemory,
		LedgerAsset:                 "usdc",
		LedgerTokenDecimals:         6,
		LedgerConfirmTimeoutSeconds: 120,
		LedgerMemoryBalance:         "1",
		LedgerMemoryFaucetDrip:      "1",
		Timezone:                    "UTC",
		CommandQueueSize:            16,
		IdempotencyCacheSize:        10_000,
	}
}

// Validate reports the first invalid option.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case c.TopN < 1:
		return invalid("top_n must be at least 1, got %d", c.TopN)
	case c.RateLimitCooldownSeconds < 0:
		return invalid("rate_limit_cooldown_seconds must not be negative")
	case c.LookbackHours < 0:
		return invalid("lookback_hours must not be negative")
	case c.MaxResults < 10 || c.MaxResults > 100:
		return invalid("max_results must be within 10..100, got %d", c.MaxResults)
	case c.MaxPages < 1:
		return invalid("max_pages must be at least 1")
	case c.SearchRequestsPerSecond <= 0:
		return invalid("search_requests_per_second must be positive")
	case c.MaxLimit < 1:
		return invalid("max_limit must be at least 1")
	case c.CommandQueueSize < 1:
		return invalid("command_queue_size must be at least 1")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	if _, err := c.RewardAmount(); err != nil {
		return invalid("reward_total: %v", err)
	}
	if _, err := model.ParseAmount(c.MinBalance); err != nil {
		return invalid("min_balance: %v", err)
	}

	switch c.LedgerMode {
	case LedgerMemory:
		for key, v := range map[string]string{
			"ledger_memory_balance":     c.LedgerMemoryBalance,
			"ledger_memory_faucet_drip": c.LedgerMemoryFaucetDrip,
		} {
			if _, err := model.ParseAmount(v); err != nil {
				return invalid("%s: %v", key, err)
			}
		}
	case LedgerEVM:
		if c.LedgerRPCURL == "" {
			return invalid("ledger_rpc_url is required in evm mode")
		}
		if c.LedgerPrivateKey == "" {
			return invalid("ledger_private_key is required in evm mode")
		}
	default:
		return invalid("ledger_mode must be %s or %s, got %q", LedgerMemory, LedgerEVM, c.LedgerMode)
	}

	if c.ReplayPath == "" && c.BearerToken == "" {
		return invalid("bearer_token is required unless replay_path is set")
	}
	return nil
}

// RewardAmount parses reward_total.
func (c *Config) RewardAmount() (model.Amount, error) {
	return model.ParseAmount(c.RewardTotal)
}

// RateLimitCooldown is the wait after an upstream 429.
func (c *Config) RateLimitCooldown() time.Duration {
	return time.Duration(c.RateLimitCooldownSeconds) * time.Second
}

// Lookback is the fetch window. Zero means since midnight UTC.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

// LedgerConfirmTimeout bounds the wait for a transaction receipt.
func (c *Config) LedgerConfirmTimeout() time.Duration {
	return time.Duration(c.LedgerConfirmTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
