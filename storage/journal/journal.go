package journal

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"aidchain/core/types"
)

var (
	bucketReceipts = []byte("receipts")
	bucketIDs      = []byte("receipt_ids")

	// ErrNotFound is returned when no receipt matches the lookup.
	ErrNotFound = errors.New("journal: receipt not found")
)

// Entry is a journaled receipt of a committed ledger operation.
type Entry struct {
	ID         string         `json:"id"`
	Operation  string         `json:"operation"`
	Sequence   uint64         `json:"sequence"`
	StateRoot  string         `json:"stateRoot"`
	Events     []*types.Event `json:"events"`
	RecordedAt time.Time      `json:"recordedAt"`
}

// Journal is an append-only receipt log kept in a Bolt database next to the
// ledger state. It gives operators a per-operation audit trail that survives
// state pruning.
type Journal struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (and migrates) the journal stored at path.
func Open(path string, options *bolt.Options) (*Journal, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketReceipts, bucketIDs} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close releases the underlying Bolt database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// SetClock overrides the time source used for RecordedAt.
func (j *Journal) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	j.now = now
}

func sequenceKey(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}

// Record appends receipt to the journal. Recording the same sequence twice
// is rejected.
func (j *Journal) Record(receipt *types.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("journal: nil receipt")
	}
	entry := Entry{
		ID:         uuid.NewString(),
		Operation:  receipt.Operation,
		Sequence:   receipt.Sequence,
		StateRoot:  "0x" + hex.EncodeToString(receipt.StateRoot),
		Events:     receipt.Events,
		RecordedAt: j.now().UTC(),
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		receipts := tx.Bucket(bucketReceipts)
		key := sequenceKey(entry.Sequence)
		if receipts.Get(key) != nil {
			return fmt.Errorf("journal: sequence %d already recorded", entry.Sequence)
		}
		if err := receipts.Put(key, encoded); err != nil {
			return err
		}
		return tx.Bucket(bucketIDs).Put([]byte(entry.ID), key)
	})
}

// Get returns the entry recorded for sequence.
func (j *Journal) Get(sequence uint64) (Entry, error) {
	var entry Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketReceipts).Get(sequenceKey(sequence))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &entry)
	})
	return entry, err
}

// ByID returns the entry carrying the journal identifier id.
func (j *Journal) ByID(id string) (Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Entry{}, fmt.Errorf("journal: invalid id %q: %w", id, err)
	}
	var entry Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketIDs).Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}
		raw := tx.Bucket(bucketReceipts).Get(key)
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &entry)
	})
	return entry, err
}

// rangePrealloc bounds the capacity reserved up front by Range; limit is a
// caller-supplied upper bound, not an expected size.
const rangePrealloc = 64

// Range returns up to limit entries starting at sequence from, in order.
func (j *Journal) Range(from uint64, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	entries := make([]Entry, 0, min(limit, rangePrealloc))
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReceipts).Cursor()
		for k, v := c.Seek(sequenceKey(from)); k != nil && len(entries) < limit; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}

// Latest returns the most recent entry.
func (j *Journal) Latest() (Entry, error) {
	var entry Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		_, v := tx.Bucket(bucketReceipts).Cursor().Last()
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &entry)
	})
	return entry, err
}
