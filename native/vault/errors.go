package vault

import (
	"fmt"

	aiderrors "aidchain/core/errors"
)

var (
	ErrUnauthorized        = fmt.Errorf("%w: vault: caller is not the donor", aiderrors.ErrUnauthorized)
	ErrInsufficientBalance = fmt.Errorf("%w: vault: donor balance too low", aiderrors.ErrInsufficientBalance)
	ErrInsufficientIdle    = fmt.Errorf("%w: vault: idle principal too low", aiderrors.ErrInsufficientFunds)
	ErrInsufficientDeploy  = fmt.Errorf("%w: vault: deployed amount too low", aiderrors.ErrInsufficientFunds)
	ErrInsufficientYield   = fmt.Errorf("%w: vault: yield pool too low", aiderrors.ErrInsufficientFunds)
	ErrZeroAddress         = fmt.Errorf("%w: vault: address must not be zero", aiderrors.ErrInvalidArgument)
)
