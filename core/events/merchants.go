package events

import (
	"encoding/hex"
	"math/big"

	"aidchain/core/types"
	"aidchain/crypto"
)

const (
	TypeMerchantRegistered    = "merchant.registered"
	TypeMerchantStatusChanged = "merchant.status"
	TypeMerchantRedemption    = "merchant.redemption"
)

// MerchantRegistered captures a merchant entering the registry as pending.
type MerchantRegistered struct {
	Merchant     [20]byte
	Name         string
	Category     string
	DocumentHash []byte
}

func (MerchantRegistered) EventType() string { return TypeMerchantRegistered }

func (e MerchantRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeMerchantRegistered,
		Attributes: map[string]string{
			"merchant":     crypto.Format(e.Merchant),
			"name":         e.Name,
			"category":     e.Category,
			"documentHash": hex.EncodeToString(e.DocumentHash),
		},
	}
}

// MerchantStatusChanged captures a verification state transition.
type MerchantStatusChanged struct {
	Merchant [20]byte
	From     string
	To       string
}

func (MerchantStatusChanged) EventType() string { return TypeMerchantStatusChanged }

func (e MerchantStatusChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeMerchantStatusChanged,
		Attributes: map[string]string{
			"merchant": crypto.Format(e.Merchant),
			"from":     e.From,
			"to":       e.To,
		},
	}
}

// MerchantRedemption captures the redemption statistics update for a
// merchant.
type MerchantRedemption struct {
	Merchant         [20]byte
	Amount           *big.Int
	TotalRedemptions uint64
	TotalVolume      *big.Int
}

func (MerchantRedemption) EventType() string { return TypeMerchantRedemption }

func (e MerchantRedemption) Event() *types.Event {
	return &types.Event{
		Type: TypeMerchantRedemption,
		Attributes: map[string]string{
			"merchant":         crypto.Format(e.Merchant),
			"amount":           formatAmount(e.Amount),
			"totalRedemptions": uintToString(e.TotalRedemptions),
			"totalVolume":      formatAmount(e.TotalVolume),
		},
	}
}
