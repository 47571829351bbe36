package events

import (
	"encoding/hex"
	"math/big"

	"aidchain/core/types"
	"aidchain/crypto"
)

const (
	TypeVoucherIssued      = "voucher.issued"
	TypeVoucherRedeemed    = "voucher.redeemed"
	TypeRedemptionVerified = "voucher.redemption.verified"
)

// VoucherIssued captures a credit to a beneficiary's voucher balance.
type VoucherIssued struct {
	Beneficiary [20]byte
	ProgramID   uint64
	Amount      *big.Int
	Balance     *big.Int
}

func (VoucherIssued) EventType() string { return TypeVoucherIssued }

func (e VoucherIssued) Event() *types.Event {
	return &types.Event{
		Type: TypeVoucherIssued,
		Attributes: map[string]string{
			"beneficiary": crypto.Format(e.Beneficiary),
			"programId":   uintToString(e.ProgramID),
			"amount":      formatAmount(e.Amount),
			"balance":     formatAmount(e.Balance),
		},
	}
}

// VoucherRedeemed captures a completed redemption at a merchant.
type VoucherRedeemed struct {
	RedemptionID uint64
	Beneficiary  [20]byte
	Merchant     [20]byte
	ProgramID    uint64
	Amount       *big.Int
	ProofHash    []byte
	Timestamp    int64
}

func (VoucherRedeemed) EventType() string { return TypeVoucherRedeemed }

func (e VoucherRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeVoucherRedeemed,
		Attributes: map[string]string{
			"redemptionId": uintToString(e.RedemptionID),
			"beneficiary":  crypto.Format(e.Beneficiary),
			"merchant":     crypto.Format(e.Merchant),
			"programId":    uintToString(e.ProgramID),
			"amount":       formatAmount(e.Amount),
			"proofHash":    hex.EncodeToString(e.ProofHash),
			"timestamp":    intToString(e.Timestamp),
		},
	}
}

// RedemptionVerified captures the one-way verification of a redemption.
type RedemptionVerified struct {
	RedemptionID uint64
	Verifier     [20]byte
}

func (RedemptionVerified) EventType() string { return TypeRedemptionVerified }

func (e RedemptionVerified) Event() *types.Event {
	return &types.Event{
		Type: TypeRedemptionVerified,
		Attributes: map[string]string{
			"redemptionId": uintToString(e.RedemptionID),
			"verifier":     crypto.Format(e.Verifier),
		},
	}
}
