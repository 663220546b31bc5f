// Package config defines all configuration for the matching engine daemon.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// fields overridable via MATCHBOOK_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Instrument InstrumentConfig `mapstructure:"instrument"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Sink       SinkConfig       `mapstructure:"sink"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
}

// InstrumentConfig names the single instrument this engine matches and how
// its integer minor-unit prices are rendered for humans.
type InstrumentConfig struct {
	Symbol     string `mapstructure:"symbol"`
	PriceScale int32  `mapstructure:"price_scale"` // decimals, e.g. 6 renders 9800000 as 9.8
}

// FeedConfig selects and tunes the message source.
//
//   - Mode: "replay" reads NDJSON order messages from Path ("-" for stdin);
//     "generate" produces random flow for simulation and benchmarking.
//   - Rate/Burst: token-bucket throttle in messages per second; Rate 0 runs
//     unthrottled.
//   - Count: generate mode stops after this many messages (0 = unbounded).
//   - Seed: generate mode RNG seed (0 seeds from the clock).
//   - MidPrice/PriceBand: generated limit prices land in [mid-band, mid+band].
//   - MaxVolume: generated order sizes land in [1, MaxVolume].
//   - MarketRatio/CancelRatio: fraction of generated flow that is market
//     orders and cancels respectively; the rest is limit flow.
type FeedConfig struct {
	Mode        string  `mapstructure:"mode"`
	Path        string  `mapstructure:"path"`
	Rate        float64 `mapstructure:"rate"`
	Burst       float64 `mapstructure:"burst"`
	Count       int     `mapstructure:"count"`
	Seed        int64   `mapstructure:"seed"`
	MidPrice    uint64  `mapstructure:"mid_price"`
	PriceBand   uint64  `mapstructure:"price_band"`
	MaxVolume   uint64  `mapstructure:"max_volume"`
	MarketRatio float64 `mapstructure:"market_ratio"`
	CancelRatio float64 `mapstructure:"cancel_ratio"`
}

// JournalConfig sets where the outbound event log is written (NDJSON files).
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DataDir string `mapstructure:"data_dir"`
}

// SinkConfig points the webhook drop-copy at a receiver. An empty URL
// disables the sink.
type SinkConfig struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	BatchSize int           `mapstructure:"batch_size"`
}

// AuditConfig toggles the post-execute integrity checker. Verification walks
// the whole book after every message, so it is meant for simulation and
// soak runs, not latency-sensitive production flow.
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the web dashboard server.
type DashboardConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	DepthLevels    int           `mapstructure:"depth_levels"`
	FlowWindow     time.Duration `mapstructure:"flow_window"`
}

// Load reads config from a YAML file with env var overrides under the
// MATCHBOOK_ prefix (e.g. MATCHBOOK_FEED_MODE=generate).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MATCHBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Instrument.Symbol == "" {
		return fmt.Errorf("instrument.symbol is required")
	}
	if c.Instrument.PriceScale < 0 {
		return fmt.Errorf("instrument.price_scale must be >= 0")
	}
	switch c.Feed.Mode {
	case "replay":
		if c.Feed.Path == "" {
			return fmt.Errorf("feed.path is required in replay mode (use \"-\" for stdin)")
		}
	case "generate":
		if c.Feed.MidPrice == 0 {
			return fmt.Errorf("feed.mid_price must be > 0 in generate mode")
		}
		if c.Feed.PriceBand >= c.Feed.MidPrice {
			return fmt.Errorf("feed.price_band must be < feed.mid_price")
		}
		if c.Feed.MaxVolume == 0 {
			return fmt.Errorf("feed.max_volume must be > 0 in generate mode")
		}
		if c.Feed.MarketRatio < 0 || c.Feed.CancelRatio < 0 ||
			c.Feed.MarketRatio+c.Feed.CancelRatio > 1 {
			return fmt.Errorf("feed.market_ratio + feed.cancel_ratio must stay within [0, 1]")
		}
	default:
		return fmt.Errorf("feed.mode must be \"replay\" or \"generate\", got %q", c.Feed.Mode)
	}
	if c.Feed.Rate < 0 {
		return fmt.Errorf("feed.rate must be >= 0")
	}
	if c.Journal.Enabled && c.Journal.DataDir == "" {
		return fmt.Errorf("journal.data_dir is required when the journal is enabled")
	}
	if c.Sink.URL != "" && c.Sink.BatchSize <= 0 {
		return fmt.Errorf("sink.batch_size must be > 0 when a sink URL is set")
	}
	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port must be in (0, 65535]")
	}
	return nil
}
