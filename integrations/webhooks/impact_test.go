package webhooks

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"aidchain/core/events"
)

type recorder struct {
	mu     sync.Mutex
	bodies [][]byte
	heads  []http.Header
}

func (r *recorder) handler(status *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		_ = req.Body.Close()
		r.mu.Lock()
		r.bodies = append(r.bodies, body)
		r.heads = append(r.heads, req.Header.Clone())
		r.mu.Unlock()
		w.WriteHeader(int(status.Load()))
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func waitFor(cond func() bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDispatcherSignsRedemptions(t *testing.T) {
	rec := &recorder{}
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(rec.handler(&status))
	defer server.Close()

	dispatcher, err := NewDispatcher(server.URL, []byte("secret"))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()

	var beneficiary [20]byte
	beneficiary[19] = 0xBE
	dispatcher.Emit(events.VoucherRedeemed{RedemptionID: 7, Beneficiary: beneficiary, ProgramID: 1, Amount: big.NewInt(60), Timestamp: 1_700_000_000})
	dispatcher.Emit(events.BadgeMinted{TokenID: 1})
	waitFor(func() bool { return rec.count() == 1 }, time.Second)
	if rec.count() != 1 {
		t.Fatalf("expected one delivery, got %d", rec.count())
	}

	rec.mu.Lock()
	body, header := rec.bodies[0], rec.heads[0]
	rec.mu.Unlock()
	if header.Get("X-Aid-Event") != string(EventRedemption) {
		t.Fatalf("unexpected event header %q", header.Get("X-Aid-Event"))
	}
	if header.Get("X-Aid-Signature") != Sign([]byte("secret"), body) {
		t.Fatalf("signature mismatch")
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, leaked := payload["beneficiary"]; leaked {
		t.Fatalf("beneficiary must not be delivered")
	}
	if payload["amount"] != "60" || payload["deliveryId"] == "" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestDispatcherRetriesFailures(t *testing.T) {
	rec := &recorder{}
	var status atomic.Int32
	status.Store(http.StatusBadGateway)
	server := httptest.NewServer(rec.handler(&status))
	defer server.Close()

	dispatcher, err := NewDispatcher(server.URL, []byte("secret"),
		WithRetryPolicy(3, 5*time.Millisecond, 10*time.Millisecond),
		WithRateLimit(1000, 10))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()

	if err := dispatcher.EnqueueReport(ReportPayload{Rows: 2, Checksum: "abc"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(func() bool { return rec.count() >= 3 }, 2*time.Second)
	time.Sleep(50 * time.Millisecond)
	if got := rec.count(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestNewDispatcherValidation(t *testing.T) {
	if _, err := NewDispatcher(" ", []byte("secret")); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := NewDispatcher("http://localhost", nil); err == nil {
		t.Fatalf("expected secret error")
	}
}

func TestNextBackoff(t *testing.T) {
	if nextBackoff(time.Second, 3*time.Second) != 2*time.Second {
		t.Fatalf("expected doubling")
	}
	if nextBackoff(2*time.Second, 3*time.Second) != 3*time.Second {
		t.Fatalf("expected cap")
	}
}

func TestCloseDeliversQueuedNotifications(t *testing.T) {
	rec := &recorder{}
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(rec.handler(&status))
	defer server.Close()

	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithRateLimit(20, 1))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := dispatcher.EnqueueReport(ReportPayload{Rows: i}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	dispatcher.Close()
	if got := rec.count(); got != 4 {
		t.Fatalf("expected queued notifications to be delivered on close, got %d", got)
	}
	if err := dispatcher.EnqueueReport(ReportPayload{Rows: 9}); err == nil {
		t.Fatalf("expected enqueue after close to fail")
	}
	dispatcher.Close()
}

func TestCloseBoundsDrain(t *testing.T) {
	rec := &recorder{}
	var status atomic.Int32
	status.Store(http.StatusBadGateway)
	server := httptest.NewServer(rec.handler(&status))
	defer server.Close()

	dispatcher, err := NewDispatcher(server.URL, []byte("secret"),
		WithRetryPolicy(10, time.Minute, time.Minute),
		WithDrainTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	if err := dispatcher.EnqueueReport(ReportPayload{Rows: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(func() bool { return rec.count() >= 1 }, time.Second)

	start := time.Now()
	dispatcher.Close()
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("close waited %s for a failing endpoint", elapsed)
	}
}

func TestClientWithoutTimeoutStillDelivers(t *testing.T) {
	rec := &recorder{}
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(rec.handler(&status))
	defer server.Close()

	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithHTTPClient(&http.Client{}))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	if got := dispatcher.requestTimeout(); got != defaultRequestTimeout {
		t.Fatalf("expected default attempt timeout, got %s", got)
	}
	if err := dispatcher.EnqueueReport(ReportPayload{Rows: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(func() bool { return rec.count() == 1 }, time.Second)
	if rec.count() != 1 {
		t.Fatalf("expected delivery with a zero-timeout client, got %d", rec.count())
	}
}
