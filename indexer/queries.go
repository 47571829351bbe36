package indexer

import (
	"strings"
	"time"

	"aidchain/native/merchants"
)

// MerchantsByCategory lists merchants in category, optionally limited to one
// status, ordered by address.
func (ix *Indexer) MerchantsByCategory(category, status string) ([]Merchant, error) {
	var out []Merchant
	query := ix.db.Where("category = ?", merchants.NormalizeCategory(category))
	if status = strings.ToLower(strings.TrimSpace(status)); status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("address").Find(&out).Error
	return out, err
}

// TokensByOwner lists the credentials currently held by owner.
func (ix *Indexer) TokensByOwner(owner string) ([]ImpactToken, error) {
	var out []ImpactToken
	err := ix.db.Where("owner = ?", owner).Order("token_id").Find(&out).Error
	return out, err
}

// Marketplace lists credentials currently offered for sale.
func (ix *Indexer) Marketplace(limit int) ([]ImpactToken, error) {
	var out []ImpactToken
	query := ix.db.Where("for_sale = ?", true).Order("token_id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&out).Error
	return out, err
}

// TopDonors returns the donors with the largest outstanding principal.
func (ix *Indexer) TopDonors(limit int) ([]Donor, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Donor
	err := ix.db.Where("score > 0").Order("score desc").Order("address").Limit(limit).Find(&out).Error
	return out, err
}

// RedemptionFilter narrows a redemption listing. Zero fields match anything.
type RedemptionFilter struct {
	ProgramID uint64
	Merchant  string
	From      time.Time
	To        time.Time
}

// Redemptions lists redemptions matching filter ordered by id.
func (ix *Indexer) Redemptions(filter RedemptionFilter) ([]Redemption, error) {
	query := ix.db.Model(&Redemption{})
	if filter.ProgramID != 0 {
		query = query.Where("program_id = ?", filter.ProgramID)
	}
	if filter.Merchant != "" {
		query = query.Where("merchant = ?", filter.Merchant)
	}
	if !filter.From.IsZero() {
		query = query.Where("redeemed_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query = query.Where("redeemed_at < ?", filter.To.UTC())
	}
	var out []Redemption
	err := query.Order("id").Find(&out).Error
	return out, err
}

// Program returns the indexed program row.
func (ix *Indexer) Program(id uint64) (*Program, error) {
	var out Program
	if err := ix.db.First(&out, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &out, nil
}
