package impact

import (
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"
)

const metadataScheme = "ipfs://impact-credit/"

// NFT is a tradeable proof-of-impact credential minted for one redemption.
type NFT struct {
	TokenID      uint64
	RedemptionID uint64
	Beneficiary  [20]byte
	Merchant     [20]byte
	ProgramID    uint64
	Amount       *big.Int
	ProofHash    []byte
	Timestamp    int64
	Owner        [20]byte
	MetadataURI  string
	ForSale      bool
	Price        *big.Int
}

type storedNFT struct {
	TokenID      uint64
	RedemptionID uint64
	Beneficiary  [20]byte
	Merchant     [20]byte
	ProgramID    uint64
	Amount       *big.Int
	ProofHash    []byte
	Timestamp    uint64
	Owner        [20]byte
	MetadataURI  string
	ForSale      bool
	Price        *big.Int
}

func newStoredNFT(n *NFT) *storedNFT {
	stored := &storedNFT{
		TokenID:      n.TokenID,
		RedemptionID: n.RedemptionID,
		Beneficiary:  n.Beneficiary,
		Merchant:     n.Merchant,
		ProgramID:    n.ProgramID,
		Amount:       cloneOrZero(n.Amount),
		ProofHash:    append([]byte(nil), n.ProofHash...),
		Owner:        n.Owner,
		MetadataURI:  n.MetadataURI,
		ForSale:      n.ForSale,
		Price:        cloneOrZero(n.Price),
	}
	if n.Timestamp > 0 {
		stored.Timestamp = uint64(n.Timestamp)
	}
	return stored
}

func (s *storedNFT) toNFT() *NFT {
	return &NFT{
		TokenID:      s.TokenID,
		RedemptionID: s.RedemptionID,
		Beneficiary:  s.Beneficiary,
		Merchant:     s.Merchant,
		ProgramID:    s.ProgramID,
		Amount:       cloneOrZero(s.Amount),
		ProofHash:    append([]byte(nil), s.ProofHash...),
		Timestamp:    int64(s.Timestamp),
		Owner:        s.Owner,
		MetadataURI:  s.MetadataURI,
		ForSale:      s.ForSale,
		Price:        cloneOrZero(s.Price),
	}
}

// metadataRecord is the content hashed into a token's metadata URI.
type metadataRecord struct {
	RedemptionID uint64
	Beneficiary  [20]byte
	Merchant     [20]byte
	ProgramID    uint64
	Amount       *big.Int
	ProofHash    []byte
	Timestamp    uint64
}

// MetadataURI derives the content address of the credential's impact record.
// Identical records always map to the same URI.
func MetadataURI(n *NFT) (string, error) {
	record := metadataRecord{
		RedemptionID: n.RedemptionID,
		Beneficiary:  n.Beneficiary,
		Merchant:     n.Merchant,
		ProgramID:    n.ProgramID,
		Amount:       cloneOrZero(n.Amount),
		ProofHash:    n.ProofHash,
	}
	if n.Timestamp > 0 {
		record.Timestamp = uint64(n.Timestamp)
	}
	encoded, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return "", err
	}
	digest := blake3.Sum256(encoded)
	return metadataScheme + hex.EncodeToString(digest[:]), nil
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
