package common

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	aiderrors "aidchain/core/errors"
)

// maxAmount is the largest value representable as a signed 128-bit integer.
var maxAmount = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 127), uint256.NewInt(1))

// ValidateAmount checks that v is a non-negative quantity that fits in a
// signed 128-bit integer.
func ValidateAmount(v *big.Int) error {
	if v == nil {
		return fmt.Errorf("%w: amount required", aiderrors.ErrInvalidAmount)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: amount must not be negative", aiderrors.ErrInvalidAmount)
	}
	u, overflow := uint256.FromBig(v)
	if overflow || u.Gt(maxAmount) {
		return fmt.Errorf("%w: amount exceeds 128-bit range", aiderrors.ErrInvalidAmount)
	}
	return nil
}

// ValidatePositive is ValidateAmount with zero rejected.
func ValidatePositive(v *big.Int) error {
	if err := ValidateAmount(v); err != nil {
		return err
	}
	if v.Sign() == 0 {
		return fmt.Errorf("%w: amount must be positive", aiderrors.ErrInvalidAmount)
	}
	return nil
}

// AddChecked returns a+b, failing when the sum leaves the 128-bit range.
func AddChecked(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(Clone(a), Clone(b))
	if err := ValidateAmount(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// Clone returns a copy of v, treating nil as zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
