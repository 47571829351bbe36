package badges

import (
	"encoding/hex"
	"fmt"
	"strings"

	"lukechampine.com/blake3"

	aiderrors "aidchain/core/errors"
	"aidchain/core/state"
	"aidchain/native/common"
)

var (
	ErrUnauthorized  = fmt.Errorf("%w: badges: caller not authorized", aiderrors.ErrUnauthorized)
	ErrBadgeNotFound = fmt.Errorf("%w: badges: badge not found", aiderrors.ErrNotFound)
	ErrInvalidBadge  = fmt.Errorf("%w: badges: invalid badge", aiderrors.ErrInvalidArgument)
)

const imageScheme = "ipfs://donor-badge/"

// Badge is a non-transferable donor recognition token.
type Badge struct {
	TokenID     uint64
	Owner       [20]byte
	Name        string
	Description string
	ImageURL    string
	BadgeType   string
	Rarity      string
	MintedAt    int64
}

type storedBadge struct {
	TokenID     uint64
	Owner       [20]byte
	Name        string
	Description string
	ImageURL    string
	BadgeType   string
	Rarity      string
	MintedAt    uint64
}

func newStoredBadge(b *Badge) *storedBadge {
	stored := &storedBadge{
		TokenID:     b.TokenID,
		Owner:       b.Owner,
		Name:        b.Name,
		Description: b.Description,
		ImageURL:    b.ImageURL,
		BadgeType:   b.BadgeType,
		Rarity:      b.Rarity,
	}
	if b.MintedAt > 0 {
		stored.MintedAt = uint64(b.MintedAt)
	}
	return stored
}

func (s *storedBadge) toBadge() *Badge {
	return &Badge{
		TokenID:     s.TokenID,
		Owner:       s.Owner,
		Name:        s.Name,
		Description: s.Description,
		ImageURL:    s.ImageURL,
		BadgeType:   s.BadgeType,
		Rarity:      s.Rarity,
		MintedAt:    int64(s.MintedAt),
	}
}

// imageURL addresses the artwork shared by every badge of the same design.
func imageURL(badgeType, rarity string) string {
	digest := blake3.Sum256([]byte(strings.ToLower(badgeType) + "/" + strings.ToLower(rarity)))
	return imageScheme + hex.EncodeToString(digest[:16])
}

func badgeKey(id uint64) []byte {
	return state.NewKey(common.ModuleBadges, "badge").WithID(id).Bytes()
}

func ownerIndexKey(owner [20]byte) []byte {
	return state.NewKey(common.ModuleBadges, "owner").WithAddr(owner).Bytes()
}

var supplyKey = state.NewKey(common.ModuleBadges, "supply").Bytes()
