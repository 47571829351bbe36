package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"aidchain/storage"
)

// Trie is the Merkle Patricia trie holding the aid ledger state. Mutations
// stay in memory until Commit writes them through the trie database; a Copy
// taken before an operation can be dropped to roll the operation back.
//
// Keys must already be keccak256 digests. Trie is not safe for concurrent use.
type Trie struct {
	db   *triedb.Database
	trie *gethtrie.Trie
	root common.Hash
}

// NewTrie opens the trie at root. A nil or empty root opens the empty trie.
func NewTrie(store storage.Database, root []byte) (*Trie, error) {
	rootHash := gethtypes.EmptyRootHash
	if len(root) > 0 {
		rootHash = common.BytesToHash(root)
	}
	t := &Trie{db: store.TrieDB()}
	if err := t.open(rootHash); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trie) open(root common.Hash) error {
	underlying, err := gethtrie.New(gethtrie.TrieID(root), t.db)
	if err != nil {
		return fmt.Errorf("trie: open %s: %w", root.Hex(), err)
	}
	t.trie = underlying
	t.root = root
	return nil
}

// Get returns the value under key, or nil when the key is absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.trie.Get(key)
}

func (t *Trie) Update(key, value []byte) error {
	return t.trie.Update(key, value)
}

func (t *Trie) Delete(key []byte) error {
	return t.trie.Delete(key)
}

// Hash returns the root hash including uncommitted mutations.
func (t *Trie) Hash() common.Hash {
	return t.trie.Hash()
}

// Root returns the last committed root hash.
func (t *Trie) Root() common.Hash {
	return t.root
}

// Rollback drops every uncommitted mutation.
func (t *Trie) Rollback() error {
	return t.open(t.root)
}

// Copy returns an independent working copy sharing the trie database.
func (t *Trie) Copy() *Trie {
	return &Trie{db: t.db, trie: t.trie.Copy(), root: t.root}
}

// Commit writes pending mutations as the state of sequence, on top of the
// last committed root, and returns the new root.
func (t *Trie) Commit(sequence uint64) (common.Hash, error) {
	newRoot, nodes := t.trie.Commit(false)
	if nodes != nil {
		merged := trienode.NewMergedNodeSet()
		if err := merged.Merge(nodes); err != nil {
			return common.Hash{}, err
		}
		if err := t.db.Update(newRoot, t.root, sequence, merged, nil); err != nil {
			return common.Hash{}, fmt.Errorf("trie: update sequence %d: %w", sequence, err)
		}
		if err := t.db.Commit(newRoot, false); err != nil {
			return common.Hash{}, fmt.Errorf("trie: commit sequence %d: %w", sequence, err)
		}
	}
	if err := t.open(newRoot); err != nil {
		return common.Hash{}, err
	}
	return newRoot, nil
}
