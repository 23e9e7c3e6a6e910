package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/engageboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func validConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.BearerToken = "token"
	return cfg
}

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Query, convey.ShouldEqual, "@basedindia #indiaonchain")
			convey.So(cfg.RewardTotal, convey.ShouldEqual, "0.003")
			convey.So(cfg.TopN, convey.ShouldEqual, 3)
			convey.So(cfg.RateLimitCooldown(), convey.ShouldEqual, 15*time.Minute)
			convey.So(cfg.LedgerMode, convey.ShouldEqual, config.LedgerMemory)
			convey.So(cfg.Timezone, convey.ShouldEqual, "UTC")
			convey.So(cfg.Schedule, convey.ShouldBeEmpty)
		})

		convey.Convey("Then the reward parses to micro-units", func() {
			amount, err := cfg.RewardAmount()
			convey.So(err, convey.ShouldBeNil)
			convey.So(amount.String(), convey.ShouldEqual, "0.003000")
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config", t, func() {
		cfg := validConfig()

		convey.Convey("When every option is valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		cases := []struct {
			name   string
			mutate func(c *config.Config)
			want   string
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }, "addr must not be empty"},
			{"zero top_n", func(c *config.Config) { c.TopN = 0 }, "top_n"},
			{"bad reward", func(c *config.Config) { c.RewardTotal = "lots" }, "reward_total"},
			{"negative reward", func(c *config.Config) { c.RewardTotal = "-1" }, "reward_total"},
			{"bad min balance", func(c *config.Config) { c.MinBalance = "x" }, "min_balance"},
			{"negative cooldown", func(c *config.Config) { c.RateLimitCooldownSeconds = -1 }, "rate_limit_cooldown_seconds"},
			{"page size too large", func(c *config.Config) { c.MaxResults = 500 }, "max_results"},
			{"unknown ledger", func(c *config.Config) { c.LedgerMode = "paper" }, "ledger_mode"},
			{"evm without rpc", func(c *config.Config) { c.LedgerMode = config.LedgerEVM; c.LedgerPrivateKey = "k" }, "ledger_rpc_url"},
			{"evm without key", func(c *config.Config) { c.LedgerMode = config.LedgerEVM; c.LedgerRPCURL = "http://rpc" }, "ledger_private_key"},
			{"no credentials", func(c *config.Config) { c.BearerToken = "" }, "bearer_token"},
			{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }, "log_format"},
			{"zero queue", func(c *config.Config) { c.CommandQueueSize = 0 }, "command_queue_size"},
		}
		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
			})
		}

		convey.Convey("When a replay file replaces the bearer token", func() {
			cfg.BearerToken = ""
			cfg.ReplayPath = "testdata/replay.json"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When evm mode is fully configured", func() {
			cfg.LedgerMode = config.LedgerEVM
			cfg.LedgerRPCURL = "http://localhost:8545"
			cfg.LedgerPrivateKey = "0x01"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Durations(t *testing.T) {
	convey.Convey("Given second and hour based options", t, func() {
		cfg := validConfig()
		cfg.LookbackHours = 6
		cfg.LedgerConfirmTimeoutSeconds = 30
		cfg.ShutdownTimeoutSeconds = 5

		convey.So(cfg.Lookback(), convey.ShouldEqual, 6*time.Hour)
		convey.So(cfg.LedgerConfirmTimeout(), convey.ShouldEqual, 30*time.Second)
		convey.So(cfg.ShutdownTimeout(), convey.ShouldEqual, 5*time.Second)
	})
}
