package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"aidchain/config"
	"aidchain/core"
	"aidchain/core/events"
	"aidchain/core/genesis"
	"aidchain/indexer"
	"aidchain/integrations/webhooks"
	"aidchain/observability"
	"aidchain/observability/logging"
	telemetry "aidchain/observability/otel"
	"aidchain/storage"
	"aidchain/storage/journal"
)

const (
	genesisPathEnv = "AID_GENESIS"
	environmentEnv = "AID_ENV"
	version        = "0.1.0"
)

func main() {
	configFile := flag.String("config", "./aidd.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides AID_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if env := strings.TrimSpace(os.Getenv(environmentEnv)); env != "" {
		cfg.Environment = env
	}

	logger := logging.Setup("aidd", cfg.Environment, logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})

	if err := run(cfg, resolveGenesisPath(*genesisFlag, cfg.GenesisFile, os.LookupEnv), logger); err != nil {
		logger.Error("aidd stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, genesisPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:        cfg.Telemetry.Metrics,
		Traces:         cfg.Telemetry.Traces,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	db, closeDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	emitters := events.Multi{observability.Events()}

	var receipts *journal.Journal
	if cfg.Journal.Path != "" {
		receipts, err = journal.Open(cfg.Journal.Path, nil)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer receipts.Close()
	}

	var index *indexer.Indexer
	if cfg.Indexer.Driver != "" {
		index, err = indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN, logger)
		if err != nil {
			return err
		}
		defer index.Close()
		emitters = append(emitters, index)
	}

	var notifier *webhooks.Dispatcher
	if cfg.Webhooks.Endpoint != "" {
		notifier, err = newDispatcher(cfg.Webhooks, logger)
		if err != nil {
			return err
		}
		defer notifier.Close()
		emitters = append(emitters, notifier)
	}

	var hub *eventHub
	if cfg.API.EventStream {
		hub = newEventHub(logger.With("component", "stream"))
		emitters = append(emitters, hub)
	}

	var auth *authenticator
	if cfg.API.AuthSecretEnv != "" {
		auth, err = newAuthenticator(os.Getenv(cfg.API.AuthSecretEnv), cfg.API.Issuer, cfg.API.Audience, logger)
		if err != nil {
			return fmt.Errorf("%s: %w", cfg.API.AuthSecretEnv, err)
		}
	} else {
		logger.Warn("operator endpoints disabled: API.AuthSecretEnv not set")
	}
	pseudonymKey, err := loadPseudonymKey(cfg.Exports.PseudonymKeyEnv, logger)
	if err != nil {
		return err
	}

	quota, err := cfg.RedemptionQuota.Runtime()
	if err != nil {
		return err
	}
	opts := core.Options{
		AutoMintImpact:      cfg.AutoMintImpact,
		BadgeOnFirstDeposit: cfg.BadgeOnFirstDeposit,
		RedemptionQuota:     quota,
		Emitter:             emitters,
		Logger:              logger,
	}
	if receipts != nil {
		opts.Receipts = receipts
	}
	ledger, err := core.Open(db, opts)
	if err != nil {
		return err
	}

	if ledger.Sequence() == 0 {
		if genesisPath == "" {
			return errors.New("ledger is empty and no genesis file was provided")
		}
		spec, err := genesis.LoadGenesisSpec(genesisPath)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		receipt, err := ledger.InitGenesis(ctx, spec)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		logger.Info("genesis applied", "path", genesisPath, "state_root", fmt.Sprintf("%x", receipt.StateRoot))
	}
	logger.Info("ledger ready", "sequence", ledger.Sequence(), "state_root", ledger.StateRoot().Hex(), "backend", cfg.Backend)

	svc := &service{
		ledger:    ledger,
		journal:   receipts,
		index:     index,
		notifier:  notifier,
		hub:       hub,
		auth:      auth,
		exportDir: cfg.Exports.Dir,
		currency:  cfg.Exports.Currency,
		logger:    logger.With("component", "http"),
		now:       time.Now,

		pseudonymKey: pseudonymKey,
	}
	handler := svc.routes()
	if cfg.Telemetry.Traces {
		handler = otelhttp.NewHandler(handler, "aidd")
	}
	server := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.MetricsAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	logger.Info("aidd stopped", "sequence", ledger.Sequence())
	return nil
}

func openDatabase(cfg *config.Config) (storage.Database, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case config.BackendMemory:
		db := storage.NewMemDB()
		return db, db.Close, nil
	default:
		db, err := storage.NewLevelDB(cfg.StatePath())
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return db, db.Close, nil
	}
}

func newDispatcher(cfg config.Webhooks, logger *slog.Logger) (*webhooks.Dispatcher, error) {
	secret := strings.TrimSpace(os.Getenv(cfg.SecretEnv))
	if secret == "" {
		return nil, fmt.Errorf("webhooks: %s is not set", cfg.SecretEnv)
	}
	opts := []webhooks.Option{
		webhooks.WithLogger(logger),
		webhooks.WithRetryPolicy(cfg.MaxAttempts,
			time.Duration(cfg.MinBackoffMs)*time.Millisecond,
			time.Duration(cfg.MaxBackoffMs)*time.Millisecond),
		webhooks.WithRateLimit(cfg.RatePerSecond, cfg.RateBurst),
	}
	if cfg.RequestTimeoutS > 0 {
		opts = append(opts, webhooks.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.RequestTimeoutS) * time.Second}))
	}
	return webhooks.NewDispatcher(cfg.Endpoint, []byte(secret), opts...)
}

// loadPseudonymKey reads the export pseudonym key from env. Without one a
// random per-process key is used, so pseudonyms only stay stable until restart.
func loadPseudonymKey(env string, logger *slog.Logger) ([]byte, error) {
	if env != "" {
		if key := strings.TrimSpace(os.Getenv(env)); key != "" {
			return []byte(key), nil
		}
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate pseudonym key: %w", err)
	}
	logger.Warn("export pseudonym key not set; using an ephemeral key", "env", env)
	return key, nil
}

// resolveGenesisPath prefers the CLI flag, then the environment, then config.
func resolveGenesisPath(flagPath, cfgPath string, lookup func(string) (string, bool)) string {
	if trimmed := strings.TrimSpace(flagPath); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if env, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(env) != "" {
			return strings.TrimSpace(env)
		}
	}
	return strings.TrimSpace(cfgPath)
}
