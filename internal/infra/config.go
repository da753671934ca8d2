package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// LiquidityConfig configures one currency's liquidity node.
type LiquidityConfig struct {
	// Account is the hex id of the liquidity account for this currency.
	Account string `yaml:"account"`
	// BaseRate is the currency's value relative to the common reference unit.
	BaseRate decimal.Decimal `yaml:"base_rate"`
	// KeyPair is the path to the node's ed25519 key in PEM (PKCS#8).
	KeyPair string `yaml:"key_pair"`
}

// Config holds all application settings. LoadConfig reads the yaml file and
// then applies environment overrides for deploy-time values.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Ledger struct {
		HTTPURL    string `yaml:"http_url"`
		WSURL      string `yaml:"ws_url"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"ledger"`

	// Liquidity maps currency code -> node configuration.
	Liquidity map[string]LiquidityConfig `yaml:"liquidity"`

	Swap struct {
		// PollIntervalSec is the swap monitor tick cadence.
		PollIntervalSec int `yaml:"poll_interval_sec"`
	} `yaml:"swap"`

	Journal struct {
		// Path of the sqlite journal file. Empty selects the per-user
		// default location.
		Path string `yaml:"path"`
		// Disabled turns the journal off entirely.
		Disabled bool `yaml:"disabled"`
	} `yaml:"journal"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Ledger.HTTPURL == "" || (!hasPrefix(c.Ledger.HTTPURL, "http://") && !hasPrefix(c.Ledger.HTTPURL, "https://")) {
		return fmt.Errorf("invalid ledger HTTP URL: %s", c.Ledger.HTTPURL)
	}
	if c.Ledger.WSURL == "" || (!hasPrefix(c.Ledger.WSURL, "ws://") && !hasPrefix(c.Ledger.WSURL, "wss://")) {
		return fmt.Errorf("invalid ledger WS URL: %s", c.Ledger.WSURL)
	}
	if len(c.Liquidity) == 0 {
		return fmt.Errorf("at least one liquidity currency is required")
	}
	for code, liq := range c.Liquidity {
		if liq.Account == "" {
			return fmt.Errorf("liquidity account is required for %s", code)
		}
		if liq.BaseRate.Sign() <= 0 {
			return fmt.Errorf("base rate for %s must be positive, got %s", code, liq.BaseRate)
		}
		if liq.KeyPair == "" {
			return fmt.Errorf("key pair path is required for %s", code)
		}
	}
	if c.Swap.PollIntervalSec < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variables over file values.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("FXSWAP_LEDGER_HTTP_URL"); url != "" {
		cfg.Ledger.HTTPURL = url
	}
	if url := os.Getenv("FXSWAP_LEDGER_WS_URL"); url != "" {
		cfg.Ledger.WSURL = url
	}
	if level := os.Getenv("FXSWAP_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
	if path := os.Getenv("FXSWAP_JOURNAL_PATH"); path != "" {
		cfg.Journal.Path = path
	}
}
