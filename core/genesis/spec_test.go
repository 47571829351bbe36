package genesis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aidchain/crypto"
)

func addrString(fill byte) string {
	var raw [20]byte
	for i := range raw {
		raw[i] = fill
	}
	return crypto.Format(raw)
}

func TestLoadGenesisSpec(t *testing.T) {
	admin := addrString(0x01)
	donor := addrString(0x02)
	shop := addrString(0x03)
	doc := `genesisTime: "2024-01-01T00:00:00Z"
admin: ` + admin + `
token:
  symbol: usdc
  name: USD Coin
  decimals: 6
alloc:
  ` + donor + `: "1000"
  ` + admin + `: "50"
roles:
  ROLE_VOUCHER_ISSUER:
    - ` + admin + `
merchants:
  - address: ` + shop + `
    name: Corner Pharmacy
    category: Healthcare
    verified: true
programs:
  - owner: ` + admin + `
    name: Food Relief
    category: food
    budget: "500"
    allocation: "200"
`
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	spec, err := LoadGenesisSpec(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if spec.Token.Symbol != "USDC" {
		t.Fatalf("symbol should be normalised, got %q", spec.Token.Symbol)
	}
	if spec.GenesisTimestamp().Unix() != 1704067200 {
		t.Fatalf("unexpected genesis time %v", spec.GenesisTimestamp())
	}
	allocs := spec.Allocations()
	if len(allocs) != 2 || allocs[0].Address[0] != 0x01 || allocs[1].Amount.Int64() != 1000 {
		t.Fatalf("allocations must be sorted by address: %+v", allocs)
	}
	if len(spec.RoleGrants()) != 1 {
		t.Fatalf("expected one role grant")
	}
	if got := spec.Merchants[0].AddressBytes(); got[0] != 0x03 {
		t.Fatalf("merchant address not parsed")
	}
	if spec.Programs[0].AllocationAmount().Int64() != 200 || spec.Programs[0].CategoryValue().String() != "Food" {
		t.Fatalf("program not parsed: %+v", spec.Programs[0])
	}
}

func TestGenesisSpecValidation(t *testing.T) {
	admin := addrString(0x01)
	cases := map[string]string{
		"missing admin":   "token: {symbol: USDC}\n",
		"unknown field":   "admin: " + admin + "\ntoken: {symbol: USDC}\nchainId: 4\n",
		"bad amount":      "admin: " + admin + "\ntoken: {symbol: USDC}\nalloc:\n  " + admin + ": \"-4\"\n",
		"unknown role":    "admin: " + admin + "\ntoken: {symbol: USDC}\nroles:\n  ROLE_ROOT: [" + admin + "]\n",
		"over allocation": "admin: " + admin + "\ntoken: {symbol: USDC}\nprograms:\n  - {owner: " + admin + ", name: X, category: Food, budget: \"5\", allocation: \"6\"}\n",
		"bad category":    "admin: " + admin + "\ntoken: {symbol: USDC}\nprograms:\n  - {owner: " + admin + ", name: X, category: Transport, budget: \"5\"}\n",
		"bad address":     "admin: nope\ntoken: {symbol: USDC}\n",
	}
	for name, doc := range cases {
		if _, err := ParseGenesisSpec([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	spec, err := ParseGenesisSpec([]byte("admin: " + admin + "\ntoken: {symbol: USDC}\n"))
	if err != nil {
		t.Fatalf("minimal spec: %v", err)
	}
	if !strings.EqualFold(spec.Token.Name, "USDC") {
		t.Fatalf("token name should default to symbol")
	}
}
