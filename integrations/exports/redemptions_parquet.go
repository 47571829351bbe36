package exports

import (
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRedemption struct {
	RedemptionID  int64  `parquet:"name=redemption_id, type=INT64"`
	ProgramID     int64  `parquet:"name=program_id, type=INT64"`
	Merchant      string `parquet:"name=merchant, type=BYTE_ARRAY, convertedtype=UTF8"`
	BeneficiaryID string `parquet:"name=beneficiary_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount        string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Currency      string `parquet:"name=currency, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProofHash     string `parquet:"name=proof_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	Verified      bool   `parquet:"name=verified, type=BOOLEAN"`
	RedeemedAt    string `parquet:"name=redeemed_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// WriteRedemptionsParquet writes records to a Snappy-compressed Parquet file
// at path.
func WriteRedemptionsParquet(path string, records []RedemptionRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exports: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRedemption), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, record := range records {
		row := &parquetRedemption{
			RedemptionID:  int64(record.RedemptionID),
			ProgramID:     int64(record.ProgramID),
			Merchant:      record.Merchant,
			BeneficiaryID: record.BeneficiaryID,
			Amount:        record.Amount,
			Currency:      record.Currency,
			ProofHash:     record.ProofHash,
			Verified:      record.Verified,
			RedeemedAt:    record.RedeemedAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("exports: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("exports: close parquet file: %w", err)
	}
	return nil
}
