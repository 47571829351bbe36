package events

import (
	"math/big"

	"aidchain/core/types"
	"aidchain/crypto"
)

const (
	TypeImpactMinted      = "impact.minted"
	TypeImpactTransferred = "impact.transferred"
	TypeImpactListed      = "impact.listed"
	TypeImpactDelisted    = "impact.delisted"
	TypeImpactSold        = "impact.sold"
)

// ImpactMinted captures the issuance of a proof-of-impact credential.
type ImpactMinted struct {
	TokenID      uint64
	RedemptionID uint64
	ProgramID    uint64
	Owner        [20]byte
	Amount       *big.Int
	MetadataURI  string
}

func (ImpactMinted) EventType() string { return TypeImpactMinted }

func (e ImpactMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeImpactMinted,
		Attributes: map[string]string{
			"tokenId":      uintToString(e.TokenID),
			"redemptionId": uintToString(e.RedemptionID),
			"programId":    uintToString(e.ProgramID),
			"owner":        crypto.Format(e.Owner),
			"amount":       formatAmount(e.Amount),
			"metadataUri":  e.MetadataURI,
		},
	}
}

// ImpactTransferred captures a direct credential transfer.
type ImpactTransferred struct {
	TokenID uint64
	From    [20]byte
	To      [20]byte
}

func (ImpactTransferred) EventType() string { return TypeImpactTransferred }

func (e ImpactTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeImpactTransferred,
		Attributes: map[string]string{
			"tokenId": uintToString(e.TokenID),
			"from":    crypto.Format(e.From),
			"to":      crypto.Format(e.To),
		},
	}
}

// ImpactListed captures a credential offered on the marketplace.
type ImpactListed struct {
	TokenID uint64
	Owner   [20]byte
	Price   *big.Int
}

func (ImpactListed) EventType() string { return TypeImpactListed }

func (e ImpactListed) Event() *types.Event {
	return &types.Event{
		Type: TypeImpactListed,
		Attributes: map[string]string{
			"tokenId": uintToString(e.TokenID),
			"owner":   crypto.Format(e.Owner),
			"price":   formatAmount(e.Price),
		},
	}
}

// ImpactDelisted captures a credential withdrawn from sale.
type ImpactDelisted struct {
	TokenID uint64
	Owner   [20]byte
}

func (ImpactDelisted) EventType() string { return TypeImpactDelisted }

func (e ImpactDelisted) Event() *types.Event {
	return &types.Event{
		Type: TypeImpactDelisted,
		Attributes: map[string]string{
			"tokenId": uintToString(e.TokenID),
			"owner":   crypto.Format(e.Owner),
		},
	}
}

// ImpactSold captures a marketplace purchase.
type ImpactSold struct {
	TokenID uint64
	Seller  [20]byte
	Buyer   [20]byte
	Price   *big.Int
}

func (ImpactSold) EventType() string { return TypeImpactSold }

func (e ImpactSold) Event() *types.Event {
	return &types.Event{
		Type: TypeImpactSold,
		Attributes: map[string]string{
			"tokenId": uintToString(e.TokenID),
			"seller":  crypto.Format(e.Seller),
			"buyer":   crypto.Format(e.Buyer),
			"price":   formatAmount(e.Price),
		},
	}
}
