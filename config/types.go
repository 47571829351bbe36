package config

import (
	"fmt"
	"math/big"
	"strings"

	nativecommon "aidchain/native/common"
)

// Storage backends for the ledger state.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
)

// Quota limits voucher redemptions per beneficiary and epoch. Zero values
// disable the corresponding limit.
type Quota struct {
	MaxRequestsPerEpoch uint32 `toml:"MaxRequestsPerEpoch"`
	MaxAmountPerEpoch   string `toml:"MaxAmountPerEpoch"`
	EpochSeconds        uint32 `toml:"EpochSeconds"`
}

// Runtime parses the quota into the form enforced by the voucher ledger.
func (q Quota) Runtime() (nativecommon.Quota, error) {
	out := nativecommon.Quota{MaxRequestsPerEpoch: q.MaxRequestsPerEpoch, EpochSeconds: q.EpochSeconds}
	amount, err := parseUintAmount(q.MaxAmountPerEpoch)
	if err != nil {
		return out, fmt.Errorf("redemption_quota.MaxAmountPerEpoch: %w", err)
	}
	out.MaxAmountPerEpoch = amount
	return out, nil
}

// Indexer selects the relational read model. An empty driver disables it.
type Indexer struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Journal configures the receipt journal. An empty path disables it.
type Journal struct {
	Path string `toml:"Path"`
}

// Exports configures where audit reports are written. PseudonymKeyEnv names
// the environment variable holding the key for beneficiary pseudonyms.
type Exports struct {
	Dir             string `toml:"Dir"`
	Currency        string `toml:"Currency"`
	PseudonymKeyEnv string `toml:"PseudonymKeyEnv"`
}

// Webhooks configures NGO notifications. An empty endpoint disables them.
type Webhooks struct {
	Endpoint        string  `toml:"Endpoint"`
	SecretEnv       string  `toml:"SecretEnv"`
	MaxAttempts     int     `toml:"MaxAttempts"`
	MinBackoffMs    int     `toml:"MinBackoffMs"`
	MaxBackoffMs    int     `toml:"MaxBackoffMs"`
	RatePerSecond   float64 `toml:"RatePerSecond"`
	RateBurst       int     `toml:"RateBurst"`
	RequestTimeoutS int     `toml:"RequestTimeoutSeconds"`
}

// API configures the daemon's HTTP surface. Report generation requires a
// bearer token signed with the secret named by AuthSecretEnv when it is set.
type API struct {
	AuthSecretEnv string `toml:"AuthSecretEnv"`
	Issuer        string `toml:"Issuer"`
	Audience      string `toml:"Audience"`
	EventStream   bool   `toml:"EventStream"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	ServiceName string  `toml:"ServiceName"`
	Endpoint    string  `toml:"Endpoint"`
	Headers     string  `toml:"Headers"`
	Insecure    bool    `toml:"Insecure"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

func parseUintAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
