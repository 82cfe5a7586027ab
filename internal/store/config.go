package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode        string   `yaml:"mode"`
	PollSeconds int      `yaml:"poll_seconds"`
	Symbols     []string `yaml:"symbols"`
	Exchange    struct {
		BaseURL        string `yaml:"base_url"`
		RecvWindowMs   int64  `yaml:"recv_window_ms"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"exchange"`
	Trading struct {
		Leverage        int     `yaml:"leverage"`
		UsdSize         float64 `yaml:"usd_size"`
		MaxUsdOrderSize float64 `yaml:"max_usd_order_size"`
		MinNotional     float64 `yaml:"min_notional"`
		UseLimitOrders  bool    `yaml:"use_limit_orders"`
	} `yaml:"trading"`
	Chase struct {
		MaxAttempts    int `yaml:"max_attempts"`
		PollIntervalMs int `yaml:"poll_interval_ms"`
		CancelSettleMs int `yaml:"cancel_settle_ms"`
	} `yaml:"chase"`
	Close struct {
		DustThreshold     float64 `yaml:"dust_threshold"`
		MaxChunks         int     `yaml:"max_chunks"`
		InterChunkDelayMs int     `yaml:"inter_chunk_delay_ms"`
	} `yaml:"close"`
	Decider struct {
		Provider string `yaml:"provider"`
	} `yaml:"decider"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Symbols) == 0 {
		return errors.New("symbols cannot be empty")
	}
	if c.Trading.Leverage < 1 || c.Trading.Leverage > 125 {
		return fmt.Errorf("trading.leverage must be between 1-125, got %d", c.Trading.Leverage)
	}
	if c.Trading.UsdSize <= 0 {
		return fmt.Errorf("trading.usd_size must be positive, got %.2f", c.Trading.UsdSize)
	}
	if c.Trading.MaxUsdOrderSize <= 0 {
		return fmt.Errorf("trading.max_usd_order_size must be positive, got %.2f", c.Trading.MaxUsdOrderSize)
	}
	if c.Chase.MaxAttempts <= 0 {
		return fmt.Errorf("chase.max_attempts must be positive, got %d", c.Chase.MaxAttempts)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.PollSeconds == 0 {
		c.PollSeconds = 15
	}
	if c.Exchange.RecvWindowMs == 0 {
		c.Exchange.RecvWindowMs = 5000
	}
	if c.Exchange.TimeoutSeconds == 0 {
		c.Exchange.TimeoutSeconds = 10
	}
	if c.Trading.Leverage == 0 {
		c.Trading.Leverage = 5
	}
	if c.Trading.MinNotional == 0 {
		c.Trading.MinNotional = 5.0
	}
	if c.Chase.MaxAttempts == 0 {
		c.Chase.MaxAttempts = 20
	}
	if c.Chase.PollIntervalMs == 0 {
		c.Chase.PollIntervalMs = 500
	}
	if c.Chase.CancelSettleMs == 0 {
		c.Chase.CancelSettleMs = 200
	}
	if c.Close.DustThreshold == 0 {
		c.Close.DustThreshold = 1e-4
	}
	if c.Close.MaxChunks == 0 {
		c.Close.MaxChunks = 100
	}
	if c.Close.InterChunkDelayMs == 0 {
		c.Close.InterChunkDelayMs = 1000
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
