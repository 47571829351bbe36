package impact

import (
	"fmt"

	aiderrors "aidchain/core/errors"
)

var (
	ErrUnauthorized  = fmt.Errorf("%w: impact: caller not authorized", aiderrors.ErrUnauthorized)
	ErrNotOwner      = fmt.Errorf("%w: impact: caller is not the token owner", aiderrors.ErrUnauthorized)
	ErrTokenNotFound = fmt.Errorf("%w: impact: token not found", aiderrors.ErrNotFound)
	ErrAlreadyMinted = fmt.Errorf("%w: impact: redemption already minted", aiderrors.ErrAlreadyExists)
	ErrNotForSale    = fmt.Errorf("%w: impact: token not for sale", aiderrors.ErrInvalidState)
	ErrSelfPurchase  = fmt.Errorf("%w: impact: buyer already owns token", aiderrors.ErrInvalidState)
	ErrInvalidToken  = fmt.Errorf("%w: impact: invalid token", aiderrors.ErrInvalidArgument)
)
