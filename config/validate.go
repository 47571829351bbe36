package config

import (
	"fmt"
	"strings"
)

// Validate checks cfg for values the daemon cannot run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendMemory, BackendLevelDB:
	default:
		return fmt.Errorf("Backend must be %q or %q, got %q", BackendMemory, BackendLevelDB, cfg.Backend)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("DataDir must be provided")
	}
	if _, err := cfg.RedemptionQuota.Runtime(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Indexer.Driver)) {
	case "", "sqlite":
	case "postgres", "postgresql":
		if strings.TrimSpace(cfg.Indexer.DSN) == "" {
			return fmt.Errorf("indexer: DSN required for postgres")
		}
	default:
		return fmt.Errorf("indexer: unsupported driver %q", cfg.Indexer.Driver)
	}
	if cfg.Webhooks.Endpoint != "" && strings.TrimSpace(cfg.Webhooks.SecretEnv) == "" {
		return fmt.Errorf("webhooks: SecretEnv required when Endpoint is set")
	}
	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	if (cfg.Telemetry.Traces || cfg.Telemetry.Metrics) && strings.TrimSpace(cfg.Telemetry.ServiceName) == "" {
		return fmt.Errorf("telemetry: ServiceName required when exporters are enabled")
	}
	return nil
}
