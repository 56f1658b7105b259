package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Beraflow  BeraflowConfig  `yaml:"beraflow"`
	Asset     AssetConfig     `yaml:"asset"`
	Collector CollectorConfig `yaml:"collector"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Live      LiveConfig      `yaml:"live"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Venues    VenuesConfig    `yaml:"venues"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type BeraflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type AssetConfig struct {
	// Symbol is the base asset tracked across all venues (e.g. "BERA").
	Symbol string `yaml:"symbol"`
	// KrwUsd converts Korean-won notionals to USD. Fixed rate, not a feed.
	KrwUsd float64 `yaml:"krw_usd"`
}

type CollectorConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size"`
	MaxIdleConns      int           `yaml:"max_idle_conns"`
	MaxConnsPerHost   int           `yaml:"max_conns_per_host"`
	IdleConnTimeout   time.Duration `yaml:"idle_conn_timeout"`
	UserAgent         string        `yaml:"user_agent"`
}

type LiveConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// PriceFallback lists venue names consulted in order for the current
	// price; DefaultPrice is the last resort when every ticker is down.
	PriceFallback []string `yaml:"price_fallback"`
	DefaultPrice  float64  `yaml:"default_price"`
	KlineLimit    int      `yaml:"kline_limit"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

type VenuesConfig struct {
	Binance     VenueConfig `yaml:"binance"`
	Okx         VenueConfig `yaml:"okx"`
	Upbit       VenueConfig `yaml:"upbit"`
	Bybit       VenueConfig `yaml:"bybit"`
	Kucoin      VenueConfig `yaml:"kucoin"`
	Mexc        VenueConfig `yaml:"mexc"`
	Bitget      VenueConfig `yaml:"bitget"`
	Bingx       VenueConfig `yaml:"bingx"`
	Hyperliquid VenueConfig `yaml:"hyperliquid"`
}

type VenueConfig struct {
	SpotURL    string `yaml:"spot_url"`
	PerpURL    string `yaml:"perp_url"`
	SpotSymbol string `yaml:"spot_symbol"`
	PerpSymbol string `yaml:"perp_symbol"`
	// Currency is used by venues whose stats APIs key on the bare asset
	// rather than a pair (OKX taker-volume).
	Currency string `yaml:"currency"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatchRegion    string        `yaml:"cloudwatch_region"`
	CloudWatchNamespace string        `yaml:"cloudwatch_namespace"`
	ReportInterval      time.Duration `yaml:"report_interval"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Beraflow: BeraflowConfig{Name: "beraflow", Version: "dev"},
		Asset:    AssetConfig{Symbol: "BERA", KrwUsd: 1450},
		Collector: CollectorConfig{
			Interval: 5 * time.Minute,
		},
		Fetch: FetchConfig{
			Timeout:           10 * time.Second,
			RequestsPerSecond: 10,
			BurstSize:         5,
			MaxIdleConns:      32,
			MaxConnsPerHost:   8,
			IdleConnTimeout:   90 * time.Second,
			UserAgent:         "BERA-Flow-Collector/1.0",
		},
		Live: LiveConfig{
			CacheTTL:      30 * time.Second,
			PriceFallback: []string{"Binance", "OKX", "Bybit"},
			DefaultPrice:  0.45,
			KlineLimit:    7,
		},
		Storage: StorageConfig{DataDir: "./data"},
		Server:  ServerConfig{Address: "0.0.0.0:8080"},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Metrics: MetricsConfig{ReportInterval: 30 * time.Second},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = strings.TrimSpace(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		host, _, err := net.SplitHostPort(cfg.Server.Address)
		if err != nil || host == "" {
			host = "0.0.0.0"
		}
		cfg.Server.Address = net.JoinHostPort(host, strings.TrimSpace(v))
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.TrimSpace(v)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Beraflow.Name == "" {
		return fmt.Errorf("beraflow.name is required")
	}
	if cfg.Asset.Symbol == "" {
		return fmt.Errorf("asset.symbol is required")
	}
	if cfg.Asset.KrwUsd <= 0 {
		return fmt.Errorf("asset.krw_usd must be greater than 0")
	}
	if cfg.Collector.Interval <= 0 {
		return fmt.Errorf("collector.interval must be greater than 0")
	}
	if cfg.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be greater than 0")
	}
	if cfg.Live.CacheTTL <= 0 {
		return fmt.Errorf("live.cache_ttl must be greater than 0")
	}
	if cfg.Live.DefaultPrice <= 0 {
		return fmt.Errorf("live.default_price must be greater than 0")
	}
	if len(cfg.Live.PriceFallback) == 0 {
		return fmt.Errorf("live.price_fallback must list at least one venue")
	}
	if cfg.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if cfg.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	return nil
}
