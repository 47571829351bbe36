package merchants

import (
	"fmt"

	aiderrors "aidchain/core/errors"
)

var (
	ErrUnauthorized      = fmt.Errorf("%w: merchants: caller is not the merchant", aiderrors.ErrUnauthorized)
	ErrAlreadyRegistered = fmt.Errorf("%w: merchants: merchant already registered", aiderrors.ErrAlreadyExists)
	ErrMerchantNotFound  = fmt.Errorf("%w: merchants: merchant not found", aiderrors.ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("%w: merchants: status transition not allowed", aiderrors.ErrInvalidState)
	ErrInvalidMerchant   = fmt.Errorf("%w: merchants: invalid merchant", aiderrors.ErrInvalidArgument)
)
