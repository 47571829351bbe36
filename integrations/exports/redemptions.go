package exports

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"aidchain/indexer"
)

// RedemptionRecord is one exported redemption. Beneficiaries are exported as a
// keyed pseudonym: stable for one key, unlinkable without it.
type RedemptionRecord struct {
	RedemptionID  uint64
	ProgramID     uint64
	Merchant      string
	BeneficiaryID string
	Amount        string
	Currency      string
	ProofHash     string
	Verified      bool
	RedeemedAt    time.Time
}

// Pseudonym derives the exported beneficiary identifier from an address as an
// HMAC-SHA256 under key, truncated to 128 bits.
func Pseudonym(key []byte, address string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(address))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}

// FromIndex converts indexed redemptions into export records.
func FromIndex(rows []indexer.Redemption, currency string, key []byte) []RedemptionRecord {
	out := make([]RedemptionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, RedemptionRecord{
			RedemptionID:  row.ID,
			ProgramID:     row.ProgramID,
			Merchant:      row.Merchant,
			BeneficiaryID: Pseudonym(key, row.Beneficiary),
			Amount:        row.Amount,
			Currency:      currency,
			ProofHash:     row.ProofHash,
			Verified:      row.Verified,
			RedeemedAt:    row.RedeemedAt.UTC(),
		})
	}
	return out
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
