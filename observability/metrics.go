package observability

import (
	"context"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	aiderrors "aidchain/core/errors"
)

// LedgerMetrics wraps the collectors describing ledger activity.
type LedgerMetrics struct {
	operations    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	vaultDeposits prometheus.Gauge
	redemptions   prometheus.Counter
	impactMinted  prometheus.Counter
	voucherVolume prometheus.Counter
	paused        *prometheus.GaugeVec

	otelOperations metric.Int64Counter
	otelLatency    metric.Float64Histogram
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Ledger returns the lazily-initialised ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "aid",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "aid",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution of atomic ledger operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			vaultDeposits: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "aid",
				Subsystem: "vault",
				Name:      "total_deposits",
				Help:      "Principal currently held by the donation vault.",
			}),
			redemptions: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "aid",
				Name:      "redemptions_total",
				Help:      "Voucher redemptions settled with merchants.",
			}),
			impactMinted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "aid",
				Name:      "impact_nfts_minted_total",
				Help:      "Proof-of-impact credentials minted.",
			}),
			voucherVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "aid",
				Name:      "voucher_volume_total",
				Help:      "Voucher value issued to beneficiaries in base units.",
			}),
			paused: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "aid",
				Name:      "module_paused",
				Help:      "Set to 1 while a module is paused.",
			}, []string{"module"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.latency,
			ledgerRegistry.vaultDeposits,
			ledgerRegistry.redemptions,
			ledgerRegistry.impactMinted,
			ledgerRegistry.voucherVolume,
			ledgerRegistry.paused,
		)
		ledgerRegistry.initMeter()
	})
	return ledgerRegistry
}

// Observe records the outcome of one ledger operation. Failures are labelled
// with their error class.
func (m *LedgerMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	m.operations.WithLabelValues(op, Outcome(err)).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
	attrs := metric.WithAttributes(attribute.String("operation", op), attribute.String("outcome", Outcome(err)))
	m.otelOperations.Add(context.Background(), 1, attrs)
	m.otelLatency.Record(context.Background(), duration.Seconds(), attrs)
}

// initMeter mirrors the operation series onto the global OpenTelemetry meter
// so they reach the OTLP exporter when one is configured.
func (m *LedgerMetrics) initMeter() {
	meter := otel.GetMeterProvider().Meter("aidchain/core")
	fallback := noop.NewMeterProvider().Meter("aidchain/core")
	counter, err := meter.Int64Counter("aid.ledger.operations")
	if err != nil {
		counter, _ = fallback.Int64Counter("aid.ledger.operations")
	}
	latency, err := meter.Float64Histogram("aid.ledger.operation.duration", metric.WithUnit("s"))
	if err != nil {
		latency, _ = fallback.Float64Histogram("aid.ledger.operation.duration", metric.WithUnit("s"))
	}
	m.otelOperations = counter
	m.otelLatency = latency
}

// SetVaultDeposits publishes the vault's total principal.
func (m *LedgerMetrics) SetVaultDeposits(total *big.Int) {
	if m == nil {
		return
	}
	m.vaultDeposits.Set(bigToFloat(total))
}

func (m *LedgerMetrics) RecordRedemption() {
	if m == nil {
		return
	}
	m.redemptions.Inc()
}

func (m *LedgerMetrics) RecordImpactMint() {
	if m == nil {
		return
	}
	m.impactMinted.Inc()
}

func (m *LedgerMetrics) RecordVoucherIssued(amount *big.Int) {
	if m == nil {
		return
	}
	m.voucherVolume.Add(bigToFloat(amount))
}

func (m *LedgerMetrics) SetPaused(module string, paused bool) {
	if m == nil {
		return
	}
	value := 0.0
	if paused {
		value = 1
	}
	m.paused.WithLabelValues(strings.ToLower(strings.TrimSpace(module))).Set(value)
}

// Outcome maps err onto a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := aiderrors.Kind(err); kind != nil {
		return strings.ReplaceAll(kind.Error(), " ", "_")
	}
	return "error"
}

func bigToFloat(value *big.Int) float64 {
	if value == nil || value.Sign() < 0 {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
