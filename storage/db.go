package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ErrNotFound is returned by Get when the requested key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store.
// The ledger can run against any backend (in-memory or persistent) as long as
// it also exposes the trie database used for Merkle state.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	TrieDB() *triedb.Database
	Close() // A way to gracefully shut down the database connection.
}

// kvStore adapts a go-ethereum key-value database and keeps a single trie
// database bound to it for the lifetime of the store.
type kvStore struct {
	db     ethdb.Database
	trieDB *triedb.Database
}

func newKVStore(kv ethdb.KeyValueStore) kvStore {
	db := rawdb.NewDatabase(kv)
	return kvStore{
		db:     db,
		trieDB: triedb.NewDatabase(db, triedb.HashDefaults),
	}
}

func (s kvStore) Put(key []byte, value []byte) error {
	return s.db.Put(key, value)
}

func (s kvStore) Get(key []byte) ([]byte, error) {
	ok, err := s.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.db.Get(key)
}

func (s kvStore) Has(key []byte) (bool, error) {
	return s.db.Has(key)
}

func (s kvStore) Delete(key []byte) error {
	return s.db.Delete(key)
}

func (s kvStore) TrieDB() *triedb.Database {
	return s.trieDB
}

func (s kvStore) close() {
	_ = s.trieDB.Close()
	_ = s.db.Close()
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	kvStore
}

func NewMemDB() *MemDB {
	return &MemDB{kvStore: newKVStore(memorydb.New())}
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	db.close()
}

// --- Persistent DB ---

// LevelDBOptions tunes the goleveldb backend.
type LevelDBOptions struct {
	CacheMB  int
	Handles  int
	ReadOnly bool
}

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	kvStore
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	return NewLevelDBWithOptions(path, LevelDBOptions{})
}

// NewLevelDBWithOptions opens a LevelDB database with explicit cache and file
// handle limits.
func NewLevelDBWithOptions(path string, opts LevelDBOptions) (*LevelDB, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: leveldb path required")
	}
	cache := opts.CacheMB
	if cache <= 0 {
		cache = 16
	}
	handles := opts.Handles
	if handles <= 0 {
		handles = 64
	}
	kv, err := leveldb.NewCustom(path, "aidchain/db/", func(o *opt.Options) {
		o.BlockCacheCapacity = cache / 2 * opt.MiB
		o.WriteBuffer = cache / 4 * opt.MiB
		o.OpenFilesCacheCapacity = handles
		o.ReadOnly = opts.ReadOnly
	})
	if err != nil {
		return nil, err
	}
	return &LevelDB{kvStore: newKVStore(kv)}, nil
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.close()
}
