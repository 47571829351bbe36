package core

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"aidchain/core/events"
	"aidchain/core/types"
	nativecommon "aidchain/native/common"
	"aidchain/observability"
	"aidchain/storage"
	"aidchain/storage/trie"
)

var (
	headRootKey     = []byte("aidchain/head/root")
	headSequenceKey = []byte("aidchain/head/sequence")
)

// ReceiptSink receives the receipt of every committed operation.
type ReceiptSink interface {
	Record(receipt *types.Receipt) error
}

// Options tunes ledger behaviour. The zero value is usable.
type Options struct {
	// AutoMintImpact mints a proof-of-impact credential for every redemption.
	AutoMintImpact bool
	// BadgeOnFirstDeposit awards a donor badge the first time a donor deposits.
	BadgeOnFirstDeposit bool
	// RedemptionQuota limits redemptions per beneficiary and epoch.
	RedemptionQuota nativecommon.Quota
	// Emitter receives the events of committed operations.
	Emitter events.Emitter
	// Receipts receives the receipt of committed operations.
	Receipts ReceiptSink
	Logger   *slog.Logger
	// Now overrides the unix time source handed to the engines.
	Now func() int64
}

// Ledger serialises every operation against the aid state trie. Each
// operation runs on a speculative copy of the trie; the copy replaces the live
// trie only when the whole operation succeeds.
type Ledger struct {
	mu       sync.Mutex
	db       storage.Database
	trie     *trie.Trie
	sequence uint64
	last     *types.Receipt

	opts    Options
	emitter events.Emitter
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.LedgerMetrics
}

// Open loads the ledger head from db, or starts from the empty state when db
// holds no head.
func Open(db storage.Database, opts Options) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: database must not be nil")
	}
	var root []byte
	raw, err := db.Get(headRootKey)
	switch {
	case err == nil:
		root = raw
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("ledger: load head root: %w", err)
	}
	var sequence uint64
	rawSeq, err := db.Get(headSequenceKey)
	switch {
	case err == nil && len(rawSeq) == 8:
		sequence = binary.BigEndian.Uint64(rawSeq)
	case err == nil, errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("ledger: load head sequence: %w", err)
	}
	tr, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("ledger: open state trie: %w", err)
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		db:       db,
		trie:     tr,
		sequence: sequence,
		opts:     opts,
		emitter:  emitter,
		logger:   logger.With("component", "ledger"),
		tracer:   otel.Tracer("aidchain/core"),
		metrics:  observability.Ledger(),
	}, nil
}

// StateRoot returns the root hash of the committed state.
func (l *Ledger) StateRoot() common.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trie.Root()
}

// Sequence returns the number of committed operations.
func (l *Ledger) Sequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sequence
}

// LastReceipt returns the receipt of the most recent committed operation.
func (l *Ledger) LastReceipt() *types.Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// View runs fn against the committed state. Mutations made by fn are
// discarded.
func (l *Ledger) View(fn func(*Modules) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	mods, err := l.bind(l.trie.Copy(), events.NoopEmitter{})
	if err != nil {
		return err
	}
	return fn(mods)
}

// Execute runs fn as one atomic operation. Either every state change and event
// produced by fn is committed, or none is.
func (l *Ledger) Execute(ctx context.Context, op string, fn func(*Modules) error) (*types.Receipt, error) {
	start := time.Now()
	_, span := l.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attribute.String("operation", op)))
	defer span.End()

	receipt, err := l.execute(op, fn)
	l.metrics.Observe(op, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Warn("ledger operation rejected", "operation", op, "error", err, "outcome", observability.Outcome(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int64("sequence", int64(receipt.Sequence)), attribute.Int("events", len(receipt.Events)))
	span.SetStatus(codes.Ok, "committed")
	l.logger.Info("ledger operation committed",
		"operation", op,
		"sequence", receipt.Sequence,
		"events", len(receipt.Events),
		"duration", time.Since(start))
	return receipt, nil
}

func (l *Ledger) execute(op string, fn func(*Modules) error) (*types.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	working := l.trie.Copy()
	buffer := &events.Buffer{}
	mods, err := l.bind(working, buffer)
	if err != nil {
		return nil, err
	}
	if err := fn(mods); err != nil {
		buffer.Discard()
		return nil, err
	}

	next := l.sequence + 1
	root, err := working.Commit(next)
	if err != nil {
		buffer.Discard()
		return nil, fmt.Errorf("ledger: commit state: %w", err)
	}
	if err := l.persistHead(root, next); err != nil {
		buffer.Discard()
		return nil, err
	}
	l.trie = working
	l.sequence = next

	delivered := buffer.Flush(l.emitter)
	receipt := &types.Receipt{
		Operation: op,
		Sequence:  next,
		StateRoot: root.Bytes(),
		Events:    make([]*types.Event, 0, len(delivered)),
	}
	for _, evt := range delivered {
		if rendered := events.Render(evt); rendered != nil {
			receipt.Events = append(receipt.Events, rendered)
		}
	}
	l.last = receipt
	if l.opts.Receipts != nil {
		if err := l.opts.Receipts.Record(receipt); err != nil {
			l.logger.Error("record receipt", "operation", op, "sequence", next, "error", err)
		}
	}
	return receipt, nil
}

func (l *Ledger) persistHead(root common.Hash, sequence uint64) error {
	if err := l.db.Put(headRootKey, root.Bytes()); err != nil {
		return fmt.Errorf("ledger: persist head root: %w", err)
	}
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], sequence)
	if err := l.db.Put(headSequenceKey, seq[:]); err != nil {
		return fmt.Errorf("ledger: persist head sequence: %w", err)
	}
	return nil
}
