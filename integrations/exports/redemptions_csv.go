package exports

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

// RedemptionsCSV builds a CSV export for the supplied redemptions and returns
// the serialised data alongside a SHA-256 checksum of the payload.
func RedemptionsCSV(records []RedemptionRecord) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	header := []string{"redemption_id", "program_id", "merchant", "beneficiary_id", "amount", "currency", "proof_hash", "verified", "redeemed_at"}
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}
	for _, record := range records {
		row := []string{
			strconv.FormatUint(record.RedemptionID, 10),
			strconv.FormatUint(record.ProgramID, 10),
			record.Merchant,
			record.BeneficiaryID,
			record.Amount,
			record.Currency,
			record.ProofHash,
			strconv.FormatBool(record.Verified),
			record.RedeemedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
