// Package config centralises runtime configuration for the bridge.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coachpo/futubridge/internal/schema"
)

// Gateway holds the OpenD endpoint and session identity.
type Gateway struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	ClientID   string `yaml:"client_id"`
	ClientVer  int32  `yaml:"client_ver"`
	RSAKeyPath string `yaml:"rsa_key_path"`
}

// Trading selects the account and environment to trade.
type Trading struct {
	Env          schema.TradingEnv `yaml:"env"`
	AccID        uint64            `yaml:"acc_id"`
	Market       schema.TrdMarket  `yaml:"market"`
	UnlockPwdMD5 string            `yaml:"unlock_pwd_md5"`
	// CumulativeFillFallback enables the lower-fidelity mode that derives
	// fill events from order-update cumulative totals when no fill push
	// arrives. Off by default.
	CumulativeFillFallback bool `yaml:"cumulative_fill_fallback"`
}

// Resilience tunes the push loop and reconnection behaviour.
type Resilience struct {
	Reconnect         bool          `yaml:"reconnect"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	PollTimeout       time.Duration `yaml:"poll_timeout"`
	FailureThreshold  int           `yaml:"failure_threshold"`
	QueryRateLimit    float64       `yaml:"query_rate_limit"`
}

// Journal configures the optional execution journal.
type Journal struct {
	DSN           string `yaml:"dsn"`
	MigrationsDir string `yaml:"migrations_dir"`
}

// Logging configures the structured logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Settings is the full configuration tree.
type Settings struct {
	Gateway    Gateway    `yaml:"gateway"`
	Trading    Trading    `yaml:"trading"`
	Resilience Resilience `yaml:"resilience"`
	Journal    Journal    `yaml:"journal"`
	Logging    Logging    `yaml:"logging"`
}

// Default returns the defaults matching a local OpenD installation.
func Default() Settings {
	return Settings{
		Gateway: Gateway{
			Host:      "127.0.0.1",
			Port:      11111,
			ClientID:  "futubridge",
			ClientVer: 100,
		},
		Trading: Trading{
			Env:    schema.EnvSimulate,
			AccID:  0, // auto-detect
			Market: schema.TrdMarketHK,
		},
		Resilience: Resilience{
			Reconnect:         true,
			ReconnectInterval: 5 * time.Second,
			PollTimeout:       100 * time.Millisecond,
			FailureThreshold:  5,
			QueryRateLimit:    10,
		},
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// Load reads settings from the yaml file at path, layered over defaults and
// finished with environment overrides. A missing file is not an error.
func Load(path string) (Settings, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the bridge cannot run with.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Gateway.Host) == "" {
		return fmt.Errorf("gateway host required")
	}
	if s.Gateway.Port <= 0 || s.Gateway.Port > 65535 {
		return fmt.Errorf("gateway port %d out of range", s.Gateway.Port)
	}
	if s.Trading.Env != schema.EnvSimulate && s.Trading.Env != schema.EnvReal {
		return fmt.Errorf("trading env %d unknown", s.Trading.Env)
	}
	if s.Resilience.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive")
	}
	if s.Resilience.FailureThreshold <= 0 {
		return fmt.Errorf("failure threshold must be positive")
	}
	if s.Resilience.Reconnect && s.Resilience.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect interval must be positive when reconnect is enabled")
	}
	return nil
}

func applyEnv(cfg *Settings) {
	if v := strings.TrimSpace(os.Getenv("FUTUBRIDGE_HOST")); v != "" {
		cfg.Gateway.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("FUTUBRIDGE_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("FUTUBRIDGE_ACC_ID")); v != "" {
		if acc, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Trading.AccID = acc
		}
	}
	if v := strings.TrimSpace(os.Getenv("FUTUBRIDGE_TRD_ENV")); v != "" {
		switch strings.ToLower(v) {
		case "real", "1":
			cfg.Trading.Env = schema.EnvReal
		case "simulate", "sim", "0":
			cfg.Trading.Env = schema.EnvSimulate
		}
	}
	if v := strings.TrimSpace(os.Getenv("FUTUBRIDGE_UNLOCK_PWD_MD5")); v != "" {
		cfg.Trading.UnlockPwdMD5 = v
	}
	if v := strings.TrimSpace(os.Getenv("FUTUBRIDGE_JOURNAL_DSN")); v != "" {
		cfg.Journal.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("FUTUBRIDGE_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("FUTUBRIDGE_RECONNECT")); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Resilience.Reconnect = enabled
		}
	}
}
