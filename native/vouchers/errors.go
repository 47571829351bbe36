package vouchers

import (
	"fmt"

	aiderrors "aidchain/core/errors"
)

var (
	ErrUnauthorized               = fmt.Errorf("%w: vouchers: caller not authorized", aiderrors.ErrUnauthorized)
	ErrInsufficientVoucherBalance = fmt.Errorf("%w: vouchers: voucher balance too low", aiderrors.ErrInsufficientBalance)
	ErrMerchantNotVerified        = fmt.Errorf("%w: vouchers: merchant not verified", aiderrors.ErrInvalidState)
	ErrProgramInactive            = fmt.Errorf("%w: vouchers: program inactive", aiderrors.ErrInvalidState)
	ErrRedemptionNotFound         = fmt.Errorf("%w: vouchers: redemption not found", aiderrors.ErrNotFound)
	ErrQuotaExceeded              = fmt.Errorf("%w: vouchers: redemption quota exceeded", aiderrors.ErrInvalidState)
	ErrInvalidVoucher             = fmt.Errorf("%w: vouchers: invalid voucher", aiderrors.ErrInvalidArgument)
)
