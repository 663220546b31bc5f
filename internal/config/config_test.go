package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
instrument:
  symbol: "BTC-USD"
  price_scale: 6
feed:
  mode: "generate"
  count: 1000
  mid_price: 9800000
  price_band: 50000
  max_volume: 1000
  market_ratio: 0.2
  cancel_ratio: 0.1
journal:
  enabled: true
  data_dir: "data"
sink:
  url: "http://localhost:9000/fills"
  timeout: 5s
  batch_size: 50
audit:
  enabled: true
logging:
  level: "debug"
  format: "json"
dashboard:
  enabled: true
  port: 8080
  depth_levels: 5
  flow_window: 30s
`

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	if cfg.Instrument.Symbol != "BTC-USD" || cfg.Instrument.PriceScale != 6 {
		t.Errorf("instrument = %+v", cfg.Instrument)
	}
	if cfg.Feed.Mode != "generate" || cfg.Feed.MidPrice != 9_800_000 || cfg.Feed.Count != 1000 {
		t.Errorf("feed = %+v", cfg.Feed)
	}
	if cfg.Sink.Timeout != 5*time.Second || cfg.Sink.BatchSize != 50 {
		t.Errorf("sink = %+v", cfg.Sink)
	}
	if cfg.Dashboard.FlowWindow != 30*time.Second {
		t.Errorf("dashboard = %+v", cfg.Dashboard)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() on a missing file did not fail")
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Instrument: InstrumentConfig{Symbol: "X"},
			Feed: FeedConfig{
				Mode:      "generate",
				MidPrice:  1000,
				PriceBand: 100,
				MaxVolume: 10,
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing symbol", func(c *Config) { c.Instrument.Symbol = "" }},
		{"unknown feed mode", func(c *Config) { c.Feed.Mode = "kafka" }},
		{"replay without path", func(c *Config) { c.Feed.Mode = "replay" }},
		{"generate without mid price", func(c *Config) { c.Feed.MidPrice = 0 }},
		{"band as wide as mid", func(c *Config) { c.Feed.PriceBand = 1000 }},
		{"ratios above one", func(c *Config) { c.Feed.MarketRatio = 0.8; c.Feed.CancelRatio = 0.5 }},
		{"journal without dir", func(c *Config) { c.Journal.Enabled = true }},
		{"sink without batch size", func(c *Config) { c.Sink.URL = "http://x" }},
		{"dashboard bad port", func(c *Config) { c.Dashboard.Enabled = true; c.Dashboard.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
}
