package exports

import (
	"bytes"
	"encoding/json"
	"time"
)

// RedemptionsJSONL builds a JSON Lines export for the supplied redemptions and
// returns the serialised payload alongside a checksum.
func RedemptionsJSONL(records []RedemptionRecord) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, record := range records {
		payload := map[string]interface{}{
			"redemption_id":  record.RedemptionID,
			"program_id":     record.ProgramID,
			"merchant":       record.Merchant,
			"beneficiary_id": record.BeneficiaryID,
			"amount":         record.Amount,
			"currency":       record.Currency,
			"proof_hash":     record.ProofHash,
			"verified":       record.Verified,
			"redeemed_at":    record.RedeemedAt.UTC().Format(time.RFC3339),
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
