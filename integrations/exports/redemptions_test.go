package exports

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aidchain/core/events"
	"aidchain/crypto"
	"aidchain/indexer"
)

var testKey = []byte("export-pseudonym-key")

func addr(fill byte) [20]byte {
	var a [20]byte
	a[19] = fill
	return a
}

func sampleRecord(id uint64) RedemptionRecord {
	return RedemptionRecord{
		RedemptionID:  id,
		ProgramID:     1,
		Merchant:      crypto.Format(addr(0x51)),
		BeneficiaryID: Pseudonym(testKey, crypto.Format(addr(0xBE))),
		Amount:        "60",
		Currency:      "USDC",
		ProofHash:     "0102",
		RedeemedAt:    time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestRedemptionsCSV(t *testing.T) {
	data, checksum, err := RedemptionsCSV([]RedemptionRecord{sampleRecord(1)})
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(data) == 0 || len(checksum) != 64 {
		t.Fatalf("expected data and checksum")
	}
	output := string(data)
	if !strings.HasPrefix(output, "redemption_id,program_id,merchant,beneficiary_id,amount,currency,proof_hash,verified,redeemed_at\n") {
		t.Fatalf("missing header: %s", output)
	}
	if !strings.Contains(output, ",60,USDC,0102,false,2023-11-14T22:13:20Z") {
		t.Fatalf("unexpected row: %s", output)
	}
	if strings.Contains(output, crypto.Format(addr(0xBE))) {
		t.Fatalf("beneficiary address leaked into export")
	}
	again, checksumAgain, _ := RedemptionsCSV([]RedemptionRecord{sampleRecord(1)})
	if string(again) != output || checksumAgain != checksum {
		t.Fatalf("export must be deterministic")
	}
}

func TestRedemptionsJSONL(t *testing.T) {
	data, checksum, err := RedemptionsJSONL([]RedemptionRecord{sampleRecord(1), sampleRecord(2)})
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if checksum == "" {
		t.Fatalf("expected checksum")
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "\"redemption_id\":2") {
		t.Fatalf("unexpected payload: %s", lines[1])
	}
}

func TestPseudonymIsKeyed(t *testing.T) {
	a := Pseudonym(testKey, "aid1abc")
	if a != Pseudonym(testKey, "aid1abc") || a == Pseudonym(testKey, "aid1abd") || len(a) != 32 {
		t.Fatalf("unexpected pseudonym %q", a)
	}
	if a == Pseudonym([]byte("another-key"), "aid1abc") {
		t.Fatalf("pseudonym must depend on the key")
	}
	unkeyed := sha256.Sum256([]byte("aid1abc"))
	if strings.HasPrefix(hex.EncodeToString(unkeyed[:]), a) {
		t.Fatalf("pseudonym must not be a plain digest of the address")
	}
}

func TestWriteRedemptionReport(t *testing.T) {
	dir := t.TempDir()
	ix, err := indexer.Open("sqlite", filepath.Join(dir, "index.db"), nil)
	if err != nil {
		t.Fatalf("open indexer: %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	for id := uint64(1); id <= 3; id++ {
		ix.Emit(events.VoucherRedeemed{
			RedemptionID: id,
			Beneficiary:  addr(0xBE),
			Merchant:     addr(0x51),
			ProgramID:    id % 2,
			Amount:       big.NewInt(int64(10 * id)),
			ProofHash:    []byte{byte(id)},
			Timestamp:    1_700_000_000 + int64(id),
		})
	}

	out := filepath.Join(dir, "reports")
	opts := ReportOptions{
		Dir:          out,
		Name:         "program-1",
		Currency:     "USDC",
		PseudonymKey: testKey,
		Now:          time.Unix(1_700_000_100, 0),
	}
	manifest, err := WriteRedemptionReport(ix, indexer.RedemptionFilter{ProgramID: 1}, opts)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if manifest.Rows != 2 {
		t.Fatalf("expected two rows for program 1, got %d", manifest.Rows)
	}
	csvData, err := os.ReadFile(manifest.CSVPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if checksum(csvData) != manifest.CSVChecksum {
		t.Fatalf("manifest checksum does not match csv")
	}
	for _, path := range []string{manifest.JSONLPath, manifest.ParquetPath, filepath.Join(out, "program-1.manifest.json")} {
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Fatalf("expected %s to be written: %v", path, err)
		}
	}
	raw, _ := os.ReadFile(filepath.Join(out, "program-1.manifest.json"))
	var decoded Manifest
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if decoded.CSVChecksum != manifest.CSVChecksum || decoded.Name != "program-1" {
		t.Fatalf("manifest round trip mismatch")
	}
	if strings.Contains(string(csvData), crypto.Format(addr(0xBE))) {
		t.Fatalf("beneficiary address leaked into report")
	}

	if _, err := WriteRedemptionReport(ix, indexer.RedemptionFilter{ProgramID: 1}, opts); err == nil {
		t.Fatalf("rewriting an existing report must fail")
	}
	after, _ := os.ReadFile(manifest.CSVPath)
	if string(after) != string(csvData) {
		t.Fatalf("existing report was overwritten")
	}
	opts.Name = "program-1-b"
	opts.PseudonymKey = nil
	if _, err := WriteRedemptionReport(ix, indexer.RedemptionFilter{ProgramID: 1}, opts); err == nil {
		t.Fatalf("reports without a pseudonym key must be refused")
	}
}
