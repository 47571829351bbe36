package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"aidchain/core/events"
	"aidchain/crypto"
)

var errDispatcherClosed = errors.New("webhook: dispatcher closed")

// EventType represents the logical webhook topic.
type EventType string

const (
	// EventRedemption is sent when a voucher redemption settles.
	EventRedemption EventType = "aid.redemption.settled"
	// EventImpactMinted is sent when a proof-of-impact credential is minted.
	EventImpactMinted EventType = "aid.impact.minted"
	// EventReportReady is sent when an audit export has been written.
	EventReportReady EventType = "aid.report.ready"

	defaultMaxAttempts    = 5
	defaultMinBackoff     = 2 * time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultRequestTimeout = 15 * time.Second
	defaultDrainTimeout   = 10 * time.Second
)

// RedemptionPayload notifies an NGO that one of its vouchers was spent. The
// beneficiary is deliberately absent.
type RedemptionPayload struct {
	Type         EventType `json:"type"`
	RedemptionID uint64    `json:"redemptionId"`
	ProgramID    uint64    `json:"programId"`
	Merchant     string    `json:"merchant"`
	Amount       string    `json:"amount"`
	RedeemedAt   time.Time `json:"redeemedAt"`
	DeliveryID   string    `json:"deliveryId"`
}

// ImpactPayload announces a newly minted credential.
type ImpactPayload struct {
	Type         EventType `json:"type"`
	TokenID      uint64    `json:"tokenId"`
	RedemptionID uint64    `json:"redemptionId"`
	ProgramID    uint64    `json:"programId"`
	Amount       string    `json:"amount"`
	MetadataURI  string    `json:"metadataUri"`
	DeliveryID   string    `json:"deliveryId"`
}

// ReportPayload points subscribers at a written audit export.
type ReportPayload struct {
	Type        EventType `json:"type"`
	Rows        int       `json:"rows"`
	ExportURLs  []string  `json:"exportUrls"`
	Checksum    string    `json:"checksum"`
	GeneratedAt time.Time `json:"generatedAt"`
	DeliveryID  string    `json:"deliveryId"`
}

// Dispatcher delivers signed webhook notifications with retry and exponential
// backoff. It implements events.Emitter so it can be attached to the ledger;
// notifications never block a ledger operation.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
	drain       time.Duration

	// stopping closes when Close begins; ctx is cancelled once draining ends
	// or times out and aborts any delivery still in flight.
	stopping  chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	queue     chan delivery
	wg        sync.WaitGroup
}

type delivery struct {
	eventType EventType
	body      []byte
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetryPolicy overrides the retry configuration.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithRateLimit caps outbound deliveries per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(d *Dispatcher) {
		if perSecond > 0 {
			if burst <= 0 {
				burst = 1
			}
			d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithDrainTimeout bounds how long Close keeps delivering queued
// notifications.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.drain = timeout
		}
	}
}

// WithLogger sets the logger used for dropped and failed deliveries.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher and spawns the worker goroutine.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = string(bytes.TrimSpace([]byte(endpoint)))
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{Timeout: defaultRequestTimeout},
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		logger:      slog.Default(),
		drain:       defaultDrainTimeout,
		stopping:    make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan delivery, 256),
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	dispatcher.logger = dispatcher.logger.With("component", "webhooks")
	dispatcher.wg.Add(1)
	go dispatcher.worker()
	return dispatcher, nil
}

// Close stops accepting notifications and delivers the ones already queued,
// including their retries, for up to the drain timeout. Deliveries still
// pending after that are abandoned.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.stopping)
		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(d.drain):
			d.logger.Warn("webhook drain timed out", "pending", len(d.queue))
			d.cancel()
			<-done
		}
		d.cancel()
	})
}

// Emit turns settled redemptions and impact mints into notifications. Other
// events are ignored. A full queue drops the notification.
func (d *Dispatcher) Emit(evt events.Event) {
	var (
		eventType EventType
		body      interface{}
	)
	switch e := evt.(type) {
	case events.VoucherRedeemed:
		eventType = EventRedemption
		body = RedemptionPayload{
			Type:         EventRedemption,
			RedemptionID: e.RedemptionID,
			ProgramID:    e.ProgramID,
			Merchant:     crypto.Format(e.Merchant),
			Amount:       e.Amount.String(),
			RedeemedAt:   time.Unix(e.Timestamp, 0).UTC(),
			DeliveryID:   uuid.NewString(),
		}
	case events.ImpactMinted:
		eventType = EventImpactMinted
		body = ImpactPayload{
			Type:         EventImpactMinted,
			TokenID:      e.TokenID,
			RedemptionID: e.RedemptionID,
			ProgramID:    e.ProgramID,
			Amount:       e.Amount.String(),
			MetadataURI:  e.MetadataURI,
			DeliveryID:   uuid.NewString(),
		}
	default:
		return
	}
	if err := d.tryEnqueue(eventType, body); err != nil {
		d.logger.Warn("webhook dropped", "event", string(eventType), "error", err)
	}
}

// EnqueueReport announces an audit export, waiting for queue space.
func (d *Dispatcher) EnqueueReport(payload ReportPayload) error {
	payload.Type = EventReportReady
	if payload.GeneratedAt.IsZero() {
		payload.GeneratedAt = time.Now().UTC()
	}
	if payload.DeliveryID == "" {
		payload.DeliveryID = uuid.NewString()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case <-d.stopping:
		return errDispatcherClosed
	default:
	}
	select {
	case d.queue <- delivery{eventType: payload.Type, body: data}:
		return nil
	case <-d.stopping:
		return errDispatcherClosed
	}
}

func (d *Dispatcher) tryEnqueue(eventType EventType, body interface{}) error {
	if d == nil {
		return errors.New("webhook: dispatcher not initialised")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	select {
	case <-d.stopping:
		return errDispatcherClosed
	default:
	}
	select {
	case d.queue <- delivery{eventType: eventType, body: data}:
		return nil
	default:
		return errors.New("webhook: queue full")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.process(job)
		case <-d.stopping:
			for d.ctx.Err() == nil {
				select {
				case job := <-d.queue:
					d.process(job)
				default:
					return
				}
			}
			return
		}
	}
}

func (d *Dispatcher) process(job delivery) {
	attempt := 0
	backoff := d.minBackoff
	for {
		attempt++
		if d.limiter != nil {
			if err := d.limiter.Wait(d.ctx); err != nil {
				return
			}
		}
		ctx, cancel := context.WithTimeout(d.ctx, d.requestTimeout())
		err := d.send(ctx, job)
		cancel()
		if err == nil {
			return
		}
		if attempt >= d.maxAttempts {
			d.logger.Error("webhook delivery failed", "event", string(job.eventType), "attempts", attempt, "error", err)
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

// requestTimeout bounds one delivery attempt. A client without a timeout gets
// the default.
func (d *Dispatcher) requestTimeout() time.Duration {
	if d.client.Timeout > 0 {
		return d.client.Timeout
	}
	return defaultRequestTimeout
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Aid-Event", string(job.eventType))
	req.Header.Set("X-Aid-Signature", Sign(d.secret, job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

// Sign returns the signature header value for body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max || next < current {
		return max
	}
	return next
}
