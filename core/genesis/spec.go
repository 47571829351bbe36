package genesis

import (
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"aidchain/crypto"
	"aidchain/native/common"
	"aidchain/native/programs"
)

// GenesisSpec seeds a fresh ledger. Addresses are bech32 (aid1...) or 0x hex.
type GenesisSpec struct {
	GenesisTime string              `yaml:"genesisTime"`
	Admin       string              `yaml:"admin"`
	Token       TokenSpec           `yaml:"token"`
	Alloc       map[string]string   `yaml:"alloc"`
	Roles       map[string][]string `yaml:"roles"`
	Merchants   []MerchantSpec      `yaml:"merchants"`
	Programs    []ProgramSpec       `yaml:"programs"`

	genesisTimestamp time.Time
	admin            [20]byte
	allocations      []Allocation
	grants           []RoleGrant
}

type TokenSpec struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
}

type MerchantSpec struct {
	Address      string `yaml:"address"`
	Name         string `yaml:"name"`
	Category     string `yaml:"category"`
	DocumentHash string `yaml:"documentHash"`
	Verified     bool   `yaml:"verified"`

	addr [20]byte
}

type ProgramSpec struct {
	Owner      string `yaml:"owner"`
	Name       string `yaml:"name"`
	Category   string `yaml:"category"`
	Budget     string `yaml:"budget"`
	Allocation string `yaml:"allocation"`

	owner      [20]byte
	category   programs.Category
	budget     *big.Int
	allocation *big.Int
}

// Allocation is an initial token balance.
type Allocation struct {
	Address [20]byte
	Amount  *big.Int
}

// RoleGrant assigns a role to an address at genesis.
type RoleGrant struct {
	Role    string
	Address [20]byte
}

// LoadGenesisSpec reads and validates a YAML genesis file.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates YAML genesis content. Unknown fields
// are rejected.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// AdminAddress is the admin of every module.
func (s *GenesisSpec) AdminAddress() [20]byte { return s.admin }

// Allocations returns the initial balances ordered by address.
func (s *GenesisSpec) Allocations() []Allocation { return s.allocations }

// RoleGrants returns role assignments ordered by role then address.
func (s *GenesisSpec) RoleGrants() []RoleGrant { return s.grants }

func (m *MerchantSpec) AddressBytes() [20]byte { return m.addr }

func (p *ProgramSpec) OwnerAddress() [20]byte           { return p.owner }
func (p *ProgramSpec) CategoryValue() programs.Category { return p.category }
func (p *ProgramSpec) BudgetAmount() *big.Int           { return new(big.Int).Set(p.budget) }
func (p *ProgramSpec) AllocationAmount() *big.Int       { return new(big.Int).Set(p.allocation) }

// Validate checks the spec and caches the parsed values.
func (s *GenesisSpec) Validate() error {
	ts, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = ts

	if strings.TrimSpace(s.Admin) == "" {
		return fmt.Errorf("admin must be provided")
	}
	admin, err := crypto.ParseAddress(s.Admin)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if common.ZeroAddress(admin) {
		return fmt.Errorf("admin must not be the zero address")
	}
	s.admin = admin

	s.Token.Symbol = strings.ToUpper(strings.TrimSpace(s.Token.Symbol))
	if s.Token.Symbol == "" {
		return fmt.Errorf("token: symbol must be provided")
	}
	if strings.TrimSpace(s.Token.Name) == "" {
		s.Token.Name = s.Token.Symbol
	}

	s.allocations = s.allocations[:0]
	for raw, amountStr := range s.Alloc {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", raw, err)
		}
		amount, err := parseAmountString(amountStr)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", raw, err)
		}
		s.allocations = append(s.allocations, Allocation{Address: addr, Amount: amount})
	}
	sort.Slice(s.allocations, func(i, j int) bool {
		return string(s.allocations[i].Address[:]) < string(s.allocations[j].Address[:])
	})
	for i := 1; i < len(s.allocations); i++ {
		if s.allocations[i].Address == s.allocations[i-1].Address {
			return fmt.Errorf("alloc: duplicate address %s", crypto.Format(s.allocations[i].Address))
		}
	}

	s.grants = s.grants[:0]
	for role, members := range s.Roles {
		if !common.KnownRole(role) {
			return fmt.Errorf("roles: unknown role %q", role)
		}
		for _, member := range members {
			addr, err := crypto.ParseAddress(member)
			if err != nil {
				return fmt.Errorf("roles %s: %w", role, err)
			}
			s.grants = append(s.grants, RoleGrant{Role: role, Address: addr})
		}
	}
	sort.Slice(s.grants, func(i, j int) bool {
		if s.grants[i].Role != s.grants[j].Role {
			return s.grants[i].Role < s.grants[j].Role
		}
		return string(s.grants[i].Address[:]) < string(s.grants[j].Address[:])
	})

	seenMerchants := make(map[[20]byte]struct{}, len(s.Merchants))
	for i := range s.Merchants {
		m := &s.Merchants[i]
		addr, err := crypto.ParseAddress(m.Address)
		if err != nil {
			return fmt.Errorf("merchant[%d]: %w", i, err)
		}
		if _, dup := seenMerchants[addr]; dup {
			return fmt.Errorf("merchant[%d]: duplicate address", i)
		}
		seenMerchants[addr] = struct{}{}
		if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Category) == "" {
			return fmt.Errorf("merchant[%d]: name and category must be provided", i)
		}
		m.addr = addr
	}

	for i := range s.Programs {
		p := &s.Programs[i]
		owner, err := crypto.ParseAddress(p.Owner)
		if err != nil {
			return fmt.Errorf("program[%d]: owner: %w", i, err)
		}
		category, err := programs.ParseCategory(p.Category)
		if err != nil {
			return fmt.Errorf("program[%d]: %w", i, err)
		}
		budget, err := parseAmountString(p.Budget)
		if err != nil {
			return fmt.Errorf("program[%d]: budget: %w", i, err)
		}
		allocation := big.NewInt(0)
		if strings.TrimSpace(p.Allocation) != "" {
			if allocation, err = parseAmountString(p.Allocation); err != nil {
				return fmt.Errorf("program[%d]: allocation: %w", i, err)
			}
		}
		if allocation.Cmp(budget) > 0 {
			return fmt.Errorf("program[%d]: allocation exceeds budget", i)
		}
		p.owner = owner
		p.category = category
		p.budget = budget
		p.allocation = allocation
	}
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("genesisTime: %w", err)
	}
	return ts.UTC(), nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must be provided")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if err := common.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return amount, nil
}
