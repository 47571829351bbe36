package observability

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	aiderrors "aidchain/core/errors"
	"aidchain/core/events"
)

func TestObserveLabelsOutcome(t *testing.T) {
	m := Ledger()
	success := m.operations.WithLabelValues("deposit", "success")
	before := testutil.ToFloat64(success)

	m.Observe("deposit", 3*time.Millisecond, nil)
	m.Observe("deposit", time.Millisecond, fmt.Errorf("vault: %w", aiderrors.ErrInsufficientFunds))

	if got := testutil.ToFloat64(success) - before; got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	failed := m.operations.WithLabelValues("deposit", Outcome(aiderrors.ErrInsufficientFunds))
	if testutil.ToFloat64(failed) < 1 {
		t.Fatalf("expected failure to be counted")
	}
}

func latencySample(t *testing.T, m *LedgerMetrics, operation string) *dto.Histogram {
	t.Helper()
	hist, ok := m.latency.WithLabelValues(operation).(prometheus.Histogram)
	if !ok {
		t.Fatalf("latency observer is not a histogram")
	}
	var out dto.Metric
	if err := hist.Write(&out); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	return out.GetHistogram()
}

func TestObserveRecordsLatency(t *testing.T) {
	m := Ledger()
	before := latencySample(t, m, "redeem_voucher")

	m.Observe("redeem_voucher", 40*time.Millisecond, nil)
	m.Observe("redeem_voucher", 2*time.Second, aiderrors.ErrInvalidState)

	after := latencySample(t, m, "redeem_voucher")
	if got := after.GetSampleCount() - before.GetSampleCount(); got != 2 {
		t.Fatalf("expected two latency samples, got %d", got)
	}
	if delta := after.GetSampleSum() - before.GetSampleSum(); math.Abs(delta-2.04) > 1e-6 {
		t.Fatalf("unexpected latency sum delta %v", delta)
	}
	var within50ms uint64
	for _, bucket := range after.GetBucket() {
		if bucket.GetUpperBound() == 0.05 {
			within50ms = bucket.GetCumulativeCount()
		}
	}
	if within50ms < 1 {
		t.Fatalf("fast operation missing from the 50ms bucket")
	}
}

func TestOutcome(t *testing.T) {
	if Outcome(nil) != "success" {
		t.Fatalf("nil error must be success")
	}
	if Outcome(errors.New("boom")) != "error" {
		t.Fatalf("unclassified errors must map to error")
	}
	wrapped := fmt.Errorf("programs: %w", aiderrors.ErrUnauthorized)
	if got := Outcome(wrapped); got == "error" || got == "success" {
		t.Fatalf("expected classified outcome, got %q", got)
	}
}

func TestGaugesAndCounters(t *testing.T) {
	m := Ledger()
	m.SetVaultDeposits(big.NewInt(1500))
	if got := testutil.ToFloat64(m.vaultDeposits); got != 1500 {
		t.Fatalf("unexpected deposits gauge %v", got)
	}
	m.SetVaultDeposits(big.NewInt(-1))
	if got := testutil.ToFloat64(m.vaultDeposits); got != 0 {
		t.Fatalf("negative totals must clamp to zero, got %v", got)
	}

	volume := testutil.ToFloat64(m.voucherVolume)
	m.RecordVoucherIssued(big.NewInt(250))
	if got := testutil.ToFloat64(m.voucherVolume) - volume; got != 250 {
		t.Fatalf("unexpected voucher volume delta %v", got)
	}

	m.SetPaused(" Vault ", true)
	if got := testutil.ToFloat64(m.paused.WithLabelValues("vault")); got != 1 {
		t.Fatalf("vault should be reported paused")
	}
	m.SetPaused("vault", false)
	if got := testutil.ToFloat64(m.paused.WithLabelValues("vault")); got != 0 {
		t.Fatalf("vault should be reported running")
	}
}

func TestEventCounter(t *testing.T) {
	reg := Events()
	counter := reg.emitted.WithLabelValues(events.TypeBadgeMinted)
	before := testutil.ToFloat64(counter)
	reg.Emit(events.BadgeMinted{TokenID: 1})
	reg.Emit(nil)
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("expected one badge event, got %v", got)
	}
}
