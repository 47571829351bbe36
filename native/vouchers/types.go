package vouchers

import "math/big"

// Redemption is the immutable record of a beneficiary spending voucher balance
// at a merchant. Only Verified may change after creation.
type Redemption struct {
	ID          uint64
	Beneficiary [20]byte
	Merchant    [20]byte
	ProgramID   uint64
	Amount      *big.Int
	Timestamp   int64
	ProofHash   []byte
	Verified    bool
}

type storedRedemption struct {
	ID          uint64
	Beneficiary [20]byte
	Merchant    [20]byte
	ProgramID   uint64
	Amount      *big.Int
	Timestamp   uint64
	ProofHash   []byte
	Verified    bool
}

func newStoredRedemption(r *Redemption) *storedRedemption {
	stored := &storedRedemption{
		ID:          r.ID,
		Beneficiary: r.Beneficiary,
		Merchant:    r.Merchant,
		ProgramID:   r.ProgramID,
		Amount:      big.NewInt(0),
		ProofHash:   append([]byte(nil), r.ProofHash...),
		Verified:    r.Verified,
	}
	if r.Amount != nil {
		stored.Amount = new(big.Int).Set(r.Amount)
	}
	if r.Timestamp > 0 {
		stored.Timestamp = uint64(r.Timestamp)
	}
	return stored
}

func (s *storedRedemption) toRedemption() *Redemption {
	r := &Redemption{
		ID:          s.ID,
		Beneficiary: s.Beneficiary,
		Merchant:    s.Merchant,
		ProgramID:   s.ProgramID,
		Amount:      big.NewInt(0),
		Timestamp:   int64(s.Timestamp),
		ProofHash:   append([]byte(nil), s.ProofHash...),
		Verified:    s.Verified,
	}
	if s.Amount != nil {
		r.Amount = new(big.Int).Set(s.Amount)
	}
	return r
}

type storedQuota struct {
	ReqCount   uint32
	AmountUsed *big.Int
	EpochID    uint64
}
