package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aidd.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}
	if cfg.Backend != BackendLevelDB || !cfg.AutoMintImpact {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DataDir != filepath.Join(dir, "aid-data") {
		t.Fatalf("data dir not anchored: %s", cfg.DataDir)
	}
	if cfg.Journal.Path != filepath.Join(dir, "aid-data", "journal.db") {
		t.Fatalf("journal path not anchored: %s", cfg.Journal.Path)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.DataDir != cfg.DataDir || reloaded.Indexer.DSN != cfg.Indexer.DSN {
		t.Fatalf("reload mismatch: %+v vs %+v", reloaded, cfg)
	}
}

func TestLoadParsesSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aidd.toml")
	contents := `DataDir = "/var/lib/aid"
Backend = "memory"
MetricsAddress = "127.0.0.1:9000"
Environment = "staging"
GenesisFile = "/etc/aid/genesis.yaml"
AutoMintImpact = false
BadgeOnFirstDeposit = true

[redemption_quota]
MaxRequestsPerEpoch = 3
MaxAmountPerEpoch = "500"
EpochSeconds = 3600

[indexer]
Driver = "postgres"
DSN = "postgres://aid@localhost/aid"

[webhooks]
Endpoint = "https://ngo.example/hooks"
SecretEnv = "AID_WEBHOOK_SECRET"

[telemetry]
Traces = true
SampleRatio = 0.5
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendMemory || cfg.AutoMintImpact || !cfg.BadgeOnFirstDeposit {
		t.Fatalf("flags not parsed: %+v", cfg)
	}
	if cfg.Indexer.DSN != "postgres://aid@localhost/aid" {
		t.Fatalf("postgres dsn must not be rewritten: %s", cfg.Indexer.DSN)
	}
	if cfg.Journal.Path != "/var/lib/aid/journal.db" {
		t.Fatalf("unexpected journal path %s", cfg.Journal.Path)
	}
	quota, err := cfg.RedemptionQuota.Runtime()
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	if quota.MaxRequestsPerEpoch != 3 || quota.MaxAmountPerEpoch.Int64() != 500 || quota.EpochSeconds != 3600 {
		t.Fatalf("unexpected quota %+v", quota)
	}
	if cfg.Telemetry.ServiceName != "aidd" {
		t.Fatalf("defaults must survive partial sections: %+v", cfg.Telemetry)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aidd.toml")
	if err := os.WriteFile(path, []byte("Backnd = \"memory\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "Backnd") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"backend":        func(c *Config) { c.Backend = "rocksdb" },
		"data dir":       func(c *Config) { c.DataDir = " " },
		"quota amount":   func(c *Config) { c.RedemptionQuota.MaxAmountPerEpoch = "-1" },
		"indexer driver": func(c *Config) { c.Indexer.Driver = "mysql" },
		"postgres dsn":   func(c *Config) { c.Indexer = Indexer{Driver: "postgres"} },
		"webhook secret": func(c *Config) { c.Webhooks.Endpoint = "https://x" },
		"sample ratio":   func(c *Config) { c.Telemetry.SampleRatio = 2 },
		"service name": func(c *Config) {
			c.Telemetry.Metrics = true
			c.Telemetry.ServiceName = ""
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}
