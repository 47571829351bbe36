package state

import (
	"bytes"
	"math/big"
	"testing"

	"aidchain/storage"
	"aidchain/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	return NewManager(tr)
}

func TestKeyComponentsDoNotCollide(t *testing.T) {
	a := NewKey("vault", "balance").WithString("ab").WithString("c").Bytes()
	b := NewKey("vault", "balance").WithString("a").WithString("bc").Bytes()
	if bytes.Equal(a, b) {
		t.Fatalf("expected distinct encodings for distinct tuples")
	}
	var addr [20]byte
	addr[19] = 0x01
	c := NewKey("vouchers", "balance").WithAddr(addr).WithID(1).Bytes()
	d := NewKey("vouchers", "balance").WithID(1).WithAddr(addr).Bytes()
	if bytes.Equal(c, d) {
		t.Fatalf("component order must be significant")
	}
	if !bytes.Equal(NewKey("VAULT", "total").Bytes(), NewKey("vault", "total").Bytes()) {
		t.Fatalf("module names should be case-insensitive")
	}
}

func TestEncodeDecodeID(t *testing.T) {
	if got := DecodeID(EncodeID(42)); got != 42 {
		t.Fatalf("unexpected id %d", got)
	}
	if got := DecodeID([]byte{0x01}); got != 0 {
		t.Fatalf("malformed id should decode to zero, got %d", got)
	}
}

func TestKVReadWrite(t *testing.T) {
	mgr := newTestManager(t)
	key := NewKey("programs", "record").WithID(1).Bytes()

	var missing uint64
	ok, err := mgr.KVGet(key, &missing)
	if err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := mgr.KVPut(key, big.NewInt(500)); err != nil {
		t.Fatalf("put: %v", err)
	}
	has, err := mgr.KVHas(key)
	if err != nil || !has {
		t.Fatalf("expected key present, has=%v err=%v", has, err)
	}
	out := new(big.Int)
	if _, err := mgr.KVGet(key, out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected value %s", out)
	}
	if err := mgr.KVDelete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if has, _ := mgr.KVHas(key); has {
		t.Fatalf("expected key removed")
	}
}

func TestKVAppendDeduplicates(t *testing.T) {
	mgr := newTestManager(t)
	key := NewKey("merchants", "category").WithString("food").Bytes()

	var empty [][]byte
	if err := mgr.KVGetList(key, &empty); err != nil {
		t.Fatalf("get empty list: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected initialised empty list")
	}
	for _, v := range [][]byte{{0x01}, {0x02}, {0x01}} {
		if err := mgr.KVAppend(key, v); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	var list [][]byte
	if err := mgr.KVGetList(key, &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
}

func TestNextSequenceStartsAtOne(t *testing.T) {
	mgr := newTestManager(t)
	key := NewKey("vouchers", "redemption-count").Bytes()
	for want := uint64(1); want <= 3; want++ {
		got, err := mgr.NextSequence(key)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
	current, err := mgr.Sequence(key)
	if err != nil || current != 3 {
		t.Fatalf("expected current 3, got %d err=%v", current, err)
	}
}

func TestRolesAndBalances(t *testing.T) {
	mgr := newTestManager(t)
	addr := []byte{0xAA, 0xBB}
	if mgr.HasRole("ROLE_VOUCHER_ISSUER", addr) {
		t.Fatalf("unexpected role before grant")
	}
	if err := mgr.SetRole("ROLE_VOUCHER_ISSUER", addr); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if err := mgr.SetRole("ROLE_VOUCHER_ISSUER", addr); err != nil {
		t.Fatalf("set role twice: %v", err)
	}
	members, err := mgr.RoleMembers("ROLE_VOUCHER_ISSUER")
	if err != nil || len(members) != 1 {
		t.Fatalf("expected single member, got %d err=%v", len(members), err)
	}
	if err := mgr.RemoveRole("ROLE_VOUCHER_ISSUER", addr); err != nil {
		t.Fatalf("remove role: %v", err)
	}
	if mgr.HasRole("ROLE_VOUCHER_ISSUER", addr) {
		t.Fatalf("role should be revoked")
	}

	if err := mgr.SetBalance(addr, "usdc", big.NewInt(10)); err == nil {
		t.Fatalf("expected unregistered token error")
	}
	if err := mgr.RegisterToken("usdc", "USD Coin", 6); err != nil {
		t.Fatalf("register token: %v", err)
	}
	if !mgr.TokenExists("USDC") {
		t.Fatalf("token should exist")
	}
	if err := mgr.SetBalance(addr, "USDC", big.NewInt(10)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	bal, err := mgr.Balance(addr, "usdc")
	if err != nil || bal.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected balance %v err=%v", bal, err)
	}
	if err := mgr.SetBalance(addr, "USDC", big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative balance rejection")
	}
}
