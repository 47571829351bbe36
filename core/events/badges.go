package events

import (
	"aidchain/core/types"
	"aidchain/crypto"
)

const TypeBadgeMinted = "badge.minted"

// BadgeMinted captures a donor recognition badge.
type BadgeMinted struct {
	TokenID   uint64
	Owner     [20]byte
	Name      string
	BadgeType string
	Rarity    string
}

func (BadgeMinted) EventType() string { return TypeBadgeMinted }

func (e BadgeMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeBadgeMinted,
		Attributes: map[string]string{
			"tokenId":   uintToString(e.TokenID),
			"owner":     crypto.Format(e.Owner),
			"name":      e.Name,
			"badgeType": e.BadgeType,
			"rarity":    e.Rarity,
		},
	}
}
