package programs

import (
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/text/cases"
)

// Category is the closed set of aid categories a program may serve.
type Category uint8

const (
	CategoryHealthcare Category = iota + 1
	CategoryFood
	CategoryEducation
	CategoryHousing
	CategoryEmergency
)

var categoryNames = map[Category]string{
	CategoryHealthcare: "Healthcare",
	CategoryFood:       "Food",
	CategoryEducation:  "Education",
	CategoryHousing:    "Housing",
	CategoryEmergency:  "Emergency",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// Categories returns every known category in declaration order.
func Categories() []Category {
	return []Category{CategoryHealthcare, CategoryFood, CategoryEducation, CategoryHousing, CategoryEmergency}
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(value string) (Category, error) {
	folded := cases.Fold().String(strings.TrimSpace(value))
	for c, name := range categoryNames {
		if cases.Fold().String(name) == folded {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, value)
}

// Program is an NGO-run aid program funded under a budget ceiling.
type Program struct {
	ID          uint64
	Name        string
	Category    Category
	Owner       [20]byte
	TotalBudget *big.Int
	Allocated   *big.Int
	Spent       *big.Int
	Active      bool
	CreatedAt   int64
}

// Unspent returns the allocation not yet moved into vouchers.
func (p *Program) Unspent() *big.Int {
	out := new(big.Int).Sub(amountOrZero(p.Allocated), amountOrZero(p.Spent))
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

type storedProgram struct {
	ID          uint64
	Name        string
	Category    uint8
	Owner       [20]byte
	TotalBudget *big.Int
	Allocated   *big.Int
	Spent       *big.Int
	Active      bool
	CreatedAt   uint64
}

func newStoredProgram(p *Program) *storedProgram {
	stored := &storedProgram{
		ID:          p.ID,
		Name:        p.Name,
		Category:    uint8(p.Category),
		Owner:       p.Owner,
		TotalBudget: new(big.Int).Set(amountOrZero(p.TotalBudget)),
		Allocated:   new(big.Int).Set(amountOrZero(p.Allocated)),
		Spent:       new(big.Int).Set(amountOrZero(p.Spent)),
		Active:      p.Active,
	}
	if p.CreatedAt > 0 {
		stored.CreatedAt = uint64(p.CreatedAt)
	}
	return stored
}

func (s *storedProgram) toProgram() *Program {
	return &Program{
		ID:          s.ID,
		Name:        s.Name,
		Category:    Category(s.Category),
		Owner:       s.Owner,
		TotalBudget: new(big.Int).Set(amountOrZero(s.TotalBudget)),
		Allocated:   new(big.Int).Set(amountOrZero(s.Allocated)),
		Spent:       new(big.Int).Set(amountOrZero(s.Spent)),
		Active:      s.Active,
		CreatedAt:   int64(s.CreatedAt),
	}
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
