package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the aidd daemon configuration.
type Config struct {
	DataDir        string `toml:"DataDir"`
	Backend        string `toml:"Backend"`
	MetricsAddress string `toml:"MetricsAddress"`
	Environment    string `toml:"Environment"`
	LogLevel       string `toml:"LogLevel"`
	LogFile        string `toml:"LogFile"`
	GenesisFile    string `toml:"GenesisFile"`

	AutoMintImpact      bool `toml:"AutoMintImpact"`
	BadgeOnFirstDeposit bool `toml:"BadgeOnFirstDeposit"`

	RedemptionQuota Quota     `toml:"redemption_quota"`
	Indexer         Indexer   `toml:"indexer"`
	Journal         Journal   `toml:"journal"`
	Exports         Exports   `toml:"exports"`
	Webhooks        Webhooks  `toml:"webhooks"`
	API             API       `toml:"api"`
	Telemetry       Telemetry `toml:"telemetry"`
}

// Load loads the configuration from path. A default file is written when
// path does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.resolvePaths(filepath.Dir(path))
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh installation.
func Default() *Config {
	return &Config{
		DataDir:        "./aid-data",
		Backend:        BackendLevelDB,
		MetricsAddress: ":9464",
		Environment:    "local",
		LogLevel:       "info",
		AutoMintImpact: true,
		RedemptionQuota: Quota{
			EpochSeconds: 86400,
		},
		Indexer: Indexer{
			Driver: "sqlite",
			DSN:    "index.db",
		},
		Journal: Journal{
			Path: "journal.db",
		},
		Exports: Exports{
			Dir:             "exports",
			PseudonymKeyEnv: "AID_EXPORT_PSEUDONYM_KEY",
		},
		Webhooks: Webhooks{
			MaxAttempts:     5,
			RatePerSecond:   10,
			RateBurst:       5,
			MinBackoffMs:    2000,
			MaxBackoffMs:    30000,
			RequestTimeoutS: 15,
		},
		API: API{
			EventStream: true,
		},
		Telemetry: Telemetry{
			ServiceName: "aidd",
			Endpoint:    "localhost:4318",
			Insecure:    true,
			SampleRatio: 1,
		},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// resolvePaths anchors relative data paths at the data directory, and the
// data directory itself at the directory holding the config file.
func (c *Config) resolvePaths(base string) {
	if c.DataDir != "" && !filepath.IsAbs(c.DataDir) && base != "" && base != "." {
		c.DataDir = filepath.Join(base, c.DataDir)
	}
	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.DataDir, p)
	}
	c.Journal.Path = anchor(c.Journal.Path)
	c.Exports.Dir = anchor(c.Exports.Dir)
	if strings.EqualFold(c.Indexer.Driver, "sqlite") && !strings.HasPrefix(c.Indexer.DSN, "file:") {
		c.Indexer.DSN = anchor(c.Indexer.DSN)
	}
}

// StatePath is the LevelDB directory holding the ledger state.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
