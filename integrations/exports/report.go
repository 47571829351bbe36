package exports

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"aidchain/indexer"
)

// Manifest describes one written redemption report.
type Manifest struct {
	Name        string    `json:"name"`
	Rows        int       `json:"rows"`
	CSVPath     string    `json:"csvPath"`
	CSVChecksum string    `json:"csvSha256"`
	JSONLPath   string    `json:"jsonlPath"`
	ParquetPath string    `json:"parquetPath"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ReportOptions names and keys one redemption report.
type ReportOptions struct {
	Dir      string
	Name     string
	Currency string
	// PseudonymKey keys the beneficiary pseudonyms and must not be empty.
	PseudonymKey []byte
	Now          time.Time
}

// WriteRedemptionReport queries the index with filter and writes CSV, JSONL
// and Parquet renditions plus a manifest into opts.Dir, named after
// opts.Name. Existing reports are never overwritten.
func WriteRedemptionReport(ix *indexer.Indexer, filter indexer.RedemptionFilter, opts ReportOptions) (*Manifest, error) {
	if ix == nil {
		return nil, fmt.Errorf("exports: indexer required")
	}
	if len(opts.PseudonymKey) == 0 {
		return nil, fmt.Errorf("exports: pseudonym key required")
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("exports: invalid report name %q", opts.Name)
	}
	dir := opts.Dir
	rows, err := ix.Redemptions(filter)
	if err != nil {
		return nil, fmt.Errorf("exports: query redemptions: %w", err)
	}
	records := FromIndex(rows, opts.Currency, opts.PseudonymKey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("exports: create dir: %w", err)
	}

	csvData, csvSum, err := RedemptionsCSV(records)
	if err != nil {
		return nil, err
	}
	jsonlData, _, err := RedemptionsJSONL(records)
	if err != nil {
		return nil, err
	}
	manifest := &Manifest{
		Name:        name,
		Rows:        len(records),
		CSVPath:     filepath.Join(dir, name+".csv"),
		CSVChecksum: csvSum,
		JSONLPath:   filepath.Join(dir, name+".jsonl"),
		ParquetPath: filepath.Join(dir, name+".parquet"),
		GeneratedAt: opts.Now.UTC(),
	}
	if err := writeNew(manifest.CSVPath, csvData); err != nil {
		return nil, fmt.Errorf("exports: write csv: %w", err)
	}
	if err := writeNew(manifest.JSONLPath, jsonlData); err != nil {
		return nil, fmt.Errorf("exports: write jsonl: %w", err)
	}
	if err := WriteRedemptionsParquet(manifest.ParquetPath, records); err != nil {
		return nil, err
	}
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeNew(filepath.Join(dir, name+".manifest.json"), encoded); err != nil {
		return nil, fmt.Errorf("exports: write manifest: %w", err)
	}
	return manifest, nil
}

// writeNew writes data to a file that must not exist yet.
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
