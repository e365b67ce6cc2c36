// Package config provides configuration management for the trading engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all engine configuration. Read-only during a trading session.
type Config struct {
	Trading    TradingConfig    `mapstructure:"trading"`
	Risk       RiskLimits       `mapstructure:"risk"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
	Exit       ExitConfig       `mapstructure:"exit"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Store      StoreConfig      `mapstructure:"store"`
	Log        LogConfig        `mapstructure:"log"`
}

// TradingConfig holds session-level trading configuration.
type TradingConfig struct {
	Mode         string        `mapstructure:"mode"` // "live", "paper"
	Watchlist    []string      `mapstructure:"watchlist"`
	ScanInterval time.Duration `mapstructure:"scan_interval"`
	BarInterval  time.Duration `mapstructure:"bar_interval"`
	WindowSize   int           `mapstructure:"window_size"` // bars kept per symbol
}

// RiskLimits holds account-level risk constraints.
type RiskLimits struct {
	MaxPositionNotional    float64 `mapstructure:"max_position_notional"`
	MaxConcurrentPositions int     `mapstructure:"max_concurrent_positions"`
	MaxDayTrades           int     `mapstructure:"max_day_trades"`
	MaxConcentration       float64 `mapstructure:"max_concentration"` // fraction of total exposure
	MinConfidence          float64 `mapstructure:"min_confidence"`    // percent, 0-100
	MinConfirmations       int     `mapstructure:"min_confirmations"`
}

// ScoringConfig holds confidence-scorer tunables.
type ScoringConfig struct {
	RelVolumeThreshold float64 `mapstructure:"rel_volume_threshold"`
	FreshCrossBars     int     `mapstructure:"fresh_cross_bars"`
	RSIOverbought      float64 `mapstructure:"rsi_overbought"`
	RSIOversold        float64 `mapstructure:"rsi_oversold"`
}

// StrategyConfig holds per-strategy tunables.
type StrategyConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MinConfirmations int     `mapstructure:"min_confirmations"`
	StopATRMultiple  float64 `mapstructure:"stop_atr_multiple"`
	RewardMultiple   float64 `mapstructure:"reward_multiple"`
}

// StrategiesConfig holds configuration for all strategy generators.
type StrategiesConfig struct {
	Momentum      StrategyConfig `mapstructure:"momentum"`
	MeanReversion StrategyConfig `mapstructure:"mean_reversion"`
	VWAPBounce    StrategyConfig `mapstructure:"vwap_bounce"`
}

// ExitConfig holds exit-monitor and lifecycle configuration.
type ExitConfig struct {
	TrailingMode       string        `mapstructure:"trailing_mode"` // "percent", "atr"
	TrailingPercent    float64       `mapstructure:"trailing_percent"`
	TrailingATRMult    float64       `mapstructure:"trailing_atr_multiple"`
	MaxHoldTime        time.Duration `mapstructure:"max_hold_time"`
	PartialFillTimeout time.Duration `mapstructure:"partial_fill_timeout"`
	DrainDeadline      time.Duration `mapstructure:"drain_deadline"`
}

// RetryConfig holds the bounded-retry policy for broker calls.
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
}

// FeedConfig holds market-data feed configuration.
type FeedConfig struct {
	URL string `mapstructure:"url"`
}

// StoreConfig holds decision-log store configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
	Path    string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/intraday-trader"
	}
	return filepath.Join(home, ".config", "intraday-trader")
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Trading: TradingConfig{
			Mode:         "paper",
			ScanInterval: 10 * time.Second,
			BarInterval:  time.Minute,
			WindowSize:   120,
		},
		Risk: RiskLimits{
			MaxPositionNotional:    25000,
			MaxConcurrentPositions: 5,
			MaxDayTrades:           3,
			MaxConcentration:       0.40,
			MinConfidence:          62.5,
			MinConfirmations:       5,
		},
		Scoring: ScoringConfig{
			RelVolumeThreshold: 1.5,
			FreshCrossBars:     3,
			RSIOverbought:      70,
			RSIOversold:        30,
		},
		Strategies: StrategiesConfig{
			Momentum:      StrategyConfig{Enabled: true, MinConfirmations: 4, StopATRMultiple: 2.0, RewardMultiple: 2.0},
			MeanReversion: StrategyConfig{Enabled: true, MinConfirmations: 3, StopATRMultiple: 1.5, RewardMultiple: 1.5},
			VWAPBounce:    StrategyConfig{Enabled: true, MinConfirmations: 3, StopATRMultiple: 1.5, RewardMultiple: 2.0},
		},
		Exit: ExitConfig{
			TrailingMode:       "atr",
			TrailingPercent:    1.0,
			TrailingATRMult:    2.0,
			MaxHoldTime:        4 * time.Hour,
			PartialFillTimeout: 30 * time.Second,
			DrainDeadline:      time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  200 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
		},
		Store: StoreConfig{
			Path: filepath.Join(DefaultConfigDir(), "decisions.db"),
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
			File:    true,
			Path:    filepath.Join(DefaultConfigDir(), "logs", "engine.log"),
		},
	}
}

// Load loads configuration from the specified directory, applying defaults
// for any value not present. If configDir is empty, the default config
// directory is used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		// No config file: run on defaults.
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "" && c.Trading.Mode != "live" && c.Trading.Mode != "paper" {
		return fmt.Errorf("invalid trading mode: %s (must be 'live' or 'paper')", c.Trading.Mode)
	}
	if c.Trading.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval must be positive")
	}
	if c.Trading.WindowSize < 2 {
		return fmt.Errorf("window_size must be at least 2")
	}
	if c.Risk.MinConfidence < 0 || c.Risk.MinConfidence > 100 {
		return fmt.Errorf("min_confidence must be between 0 and 100")
	}
	if c.Risk.MaxConcentration < 0 || c.Risk.MaxConcentration > 1 {
		return fmt.Errorf("max_concentration must be a fraction between 0 and 1")
	}
	if c.Risk.MaxPositionNotional <= 0 {
		return fmt.Errorf("max_position_notional must be positive")
	}
	if c.Risk.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("max_concurrent_positions must be positive")
	}
	if c.Exit.TrailingMode != "percent" && c.Exit.TrailingMode != "atr" {
		return fmt.Errorf("invalid trailing_mode: %s (must be 'percent' or 'atr')", c.Exit.TrailingMode)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max_attempts must be positive")
	}
	return nil
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode == "paper"
}
