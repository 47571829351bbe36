package state

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"aidchain/storage/trie"
)

// internalModule namespaces the records the manager keeps for itself.
const internalModule = "state"

// Manager provides typed access to the ledger state held in the Merkle trie:
// token balances, role assignments and module key/value records. Every value
// is RLP encoded and every trie key is a keccak256 digest.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// Trie exposes the trie backing the manager.
func (m *Manager) Trie() *trie.Trie {
	return m.trie
}

// TokenMetadata describes a registered settlement token.
type TokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

func internalKey(kind string, parts ...string) []byte {
	k := NewKey(internalModule, kind)
	for _, part := range parts {
		k = k.WithString(part)
	}
	return ethcrypto.Keccak256(k.Bytes())
}

func tokenKey(symbol string) []byte { return internalKey("token", symbol) }

func tokenIndexKey() []byte { return internalKey("tokens") }

func balanceKey(addr []byte, symbol string) []byte {
	return internalKey("balance", symbol, string(addr))
}

func roleKey(role string) []byte { return internalKey("role", role) }

func kvKey(key []byte) []byte { return ethcrypto.Keccak256(key) }

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// load decodes the value at hashed into out. It reports false when the slot
// is empty, leaving out untouched.
func (m *Manager) load(hashed []byte, out interface{}) (bool, error) {
	data, err := m.trie.Get(hashed)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode: %w", err)
	}
	return true, nil
}

func (m *Manager) store(hashed []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	return m.trie.Update(hashed, encoded)
}

// RegisterToken stores the metadata for a settlement token and records it in
// the token index.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8) error {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("token %s: name must not be empty", normalized)
	}
	if m.TokenExists(normalized) {
		return fmt.Errorf("token %s already registered", normalized)
	}
	symbols, err := m.TokenList()
	if err != nil {
		return err
	}
	symbols = append(symbols, normalized)
	sort.Strings(symbols)
	if err := m.store(tokenIndexKey(), symbols); err != nil {
		return err
	}
	return m.store(tokenKey(normalized), &TokenMetadata{Symbol: normalized, Name: name, Decimals: decimals})
}

// Token returns the metadata of a registered token, or nil when unknown.
func (m *Manager) Token(symbol string) (*TokenMetadata, error) {
	meta := new(TokenMetadata)
	ok, err := m.load(tokenKey(normalizeSymbol(symbol)), meta)
	if err != nil || !ok {
		return nil, err
	}
	return meta, nil
}

// TokenList returns all registered token symbols in sorted order.
func (m *Manager) TokenList() ([]string, error) {
	symbols := []string{}
	if _, err := m.load(tokenIndexKey(), &symbols); err != nil {
		return nil, err
	}
	return symbols, nil
}

// TokenExists reports whether the provided token symbol is registered.
func (m *Manager) TokenExists(symbol string) bool {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return false
	}
	ok, err := m.load(tokenKey(normalized), nil)
	return err == nil && ok
}

// SetBalance stores an account balance in a registered token.
func (m *Manager) SetBalance(addr []byte, symbol string, amount *big.Int) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	normalized := normalizeSymbol(symbol)
	if !m.TokenExists(normalized) {
		return fmt.Errorf("token %q not registered", normalized)
	}
	return m.store(balanceKey(addr, normalized), amount)
}

// Balance returns the balance of addr in symbol. Unknown accounts hold zero.
func (m *Manager) Balance(addr []byte, symbol string) (*big.Int, error) {
	amount := new(big.Int)
	if _, err := m.load(balanceKey(addr, normalizeSymbol(symbol)), amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// RoleMembers returns the addresses holding role, in byte order.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	members := [][]byte{}
	if _, err := m.load(roleKey(strings.TrimSpace(role)), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SetRole grants role to addr. Granting an existing assignment is a no-op.
func (m *Manager) SetRole(role string, addr []byte) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return err
	}
	idx := sort.Search(len(members), func(i int) bool { return bytes.Compare(members[i], addr) >= 0 })
	if idx < len(members) && bytes.Equal(members[idx], addr) {
		return nil
	}
	members = append(members, nil)
	copy(members[idx+1:], members[idx:])
	members[idx] = append([]byte(nil), addr...)
	return m.store(roleKey(role), members)
}

// RemoveRole revokes role from addr. Revoking an absent assignment is a no-op.
func (m *Manager) RemoveRole(role string, addr []byte) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return fmt.Errorf("role must not be empty")
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return err
	}
	kept := members[:0]
	for _, member := range members {
		if !bytes.Equal(member, addr) {
			kept = append(kept, member)
		}
	}
	if len(kept) == 0 {
		return m.trie.Delete(roleKey(role))
	}
	return m.store(roleKey(role), kept)
}

// HasRole reports whether addr holds role. Read failures count as absent.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return false
	}
	idx := sort.Search(len(members), func(i int) bool { return bytes.Compare(members[i], addr) >= 0 })
	return idx < len(members) && bytes.Equal(members[idx], addr)
}

func checkKey(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return nil
}

// KVPut stores value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return m.store(kvKey(key), value)
}

// KVGet decodes the value stored under key into out and reports whether the
// key existed. A nil out only checks presence.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	return m.load(kvKey(key), out)
}

// KVHas reports whether a value is stored under key.
func (m *Manager) KVHas(key []byte) (bool, error) {
	return m.KVGet(key, nil)
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return m.trie.Delete(kvKey(key))
}

// KVAppend adds value to the byte-slice list under key, keeping insertion
// order. Values already present are skipped.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	return m.KVPut(key, append(list, append([]byte(nil), value...)))
}

// KVGetList decodes the list under key into out, which must point to a slice.
// Missing keys yield an empty, non-nil slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Ptr || dst.IsNil() || dst.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must be a non-nil slice pointer")
	}
	ok, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok {
		dst.Elem().Set(reflect.MakeSlice(dst.Elem().Type(), 0, 0))
	}
	return nil
}

// NextSequence increments the counter under key and returns the new value.
// The first call yields 1.
func (m *Manager) NextSequence(key []byte) (uint64, error) {
	current, err := m.Sequence(key)
	if err != nil {
		return 0, err
	}
	current++
	if err := m.KVPut(key, current); err != nil {
		return 0, err
	}
	return current, nil
}

// Sequence returns the current value of the counter under key.
func (m *Manager) Sequence(key []byte) (uint64, error) {
	var current uint64
	if _, err := m.KVGet(key, &current); err != nil {
		return 0, err
	}
	return current, nil
}
