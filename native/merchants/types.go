package merchants

import (
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/text/cases"
)

// Status is the verification state of a merchant.
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusVerified
	StatusSuspended
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusVerified:
		return "verified"
	case StatusSuspended:
		return "suspended"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// ParseStatus converts a status name into a Status.
func ParseStatus(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pending":
		return StatusPending, nil
	case "verified":
		return StatusVerified, nil
	case "suspended":
		return StatusSuspended, nil
	case "rejected":
		return StatusRejected, nil
	default:
		return 0, fmt.Errorf("unknown merchant status %q", value)
	}
}

// transitions lists every admin-driven status change the registry permits.
var transitions = map[Status][]Status{
	StatusPending:   {StatusVerified, StatusRejected},
	StatusVerified:  {StatusSuspended},
	StatusSuspended: {StatusVerified},
}

// CanTransition reports whether a merchant may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Merchant is the registry profile of a point-of-redemption.
type Merchant struct {
	Address          [20]byte
	Name             string
	Category         string
	Status           Status
	DocumentHash     []byte
	TotalRedemptions uint64
	TotalVolume      *big.Int
	RegisteredAt     int64
	UpdatedAt        int64
}

type storedMerchant struct {
	Address          [20]byte
	Name             string
	Category         string
	Status           uint8
	DocumentHash     []byte
	TotalRedemptions uint64
	TotalVolume      *big.Int
	RegisteredAt     uint64
	UpdatedAt        uint64
}

func newStoredMerchant(m *Merchant) *storedMerchant {
	stored := &storedMerchant{
		Address:          m.Address,
		Name:             m.Name,
		Category:         m.Category,
		Status:           uint8(m.Status),
		DocumentHash:     append([]byte(nil), m.DocumentHash...),
		TotalRedemptions: m.TotalRedemptions,
		TotalVolume:      big.NewInt(0),
	}
	if m.TotalVolume != nil {
		stored.TotalVolume = new(big.Int).Set(m.TotalVolume)
	}
	if m.RegisteredAt > 0 {
		stored.RegisteredAt = uint64(m.RegisteredAt)
	}
	if m.UpdatedAt > 0 {
		stored.UpdatedAt = uint64(m.UpdatedAt)
	}
	return stored
}

func (s *storedMerchant) toMerchant() *Merchant {
	m := &Merchant{
		Address:          s.Address,
		Name:             s.Name,
		Category:         s.Category,
		Status:           Status(s.Status),
		DocumentHash:     append([]byte(nil), s.DocumentHash...),
		TotalRedemptions: s.TotalRedemptions,
		TotalVolume:      big.NewInt(0),
		RegisteredAt:     int64(s.RegisteredAt),
		UpdatedAt:        int64(s.UpdatedAt),
	}
	if s.TotalVolume != nil {
		m.TotalVolume = new(big.Int).Set(s.TotalVolume)
	}
	return m
}

// NormalizeCategory folds a category label for index lookups so "Food" and
// "FOOD" land in the same bucket.
func NormalizeCategory(category string) string {
	return cases.Fold().String(strings.TrimSpace(category))
}
