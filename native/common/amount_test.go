package common

import (
	"errors"
	"math/big"
	"testing"

	aiderrors "aidchain/core/errors"
)

func TestValidateAmountBounds(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	if err := ValidateAmount(max); err != nil {
		t.Fatalf("max i128 should be accepted: %v", err)
	}
	if err := ValidateAmount(big.NewInt(0)); err != nil {
		t.Fatalf("zero should be accepted: %v", err)
	}
	tooLarge := new(big.Int).Add(max, big.NewInt(1))
	for _, v := range []*big.Int{nil, big.NewInt(-1), tooLarge, new(big.Int).Lsh(big.NewInt(1), 300)} {
		if err := ValidateAmount(v); !errors.Is(err, aiderrors.ErrInvalidAmount) {
			t.Fatalf("expected invalid amount for %v, got %v", v, err)
		}
	}
	if err := ValidatePositive(big.NewInt(0)); !errors.Is(err, aiderrors.ErrInvalidAmount) {
		t.Fatalf("expected zero rejected, got %v", err)
	}
}

func TestAddChecked(t *testing.T) {
	sum, err := AddChecked(big.NewInt(2), nil)
	if err != nil || sum.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("unexpected sum %v err=%v", sum, err)
	}
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	if _, err := AddChecked(max, big.NewInt(1)); err == nil {
		t.Fatalf("expected overflow error")
	}
}

type pauses map[string]bool

func (p pauses) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	if err := Guard(nil, ModuleVault); err != nil {
		t.Fatalf("nil view should not block: %v", err)
	}
	view := pauses{ModuleVault: true}
	err := Guard(view, ModuleVault)
	if !IsPaused(err) || !errors.Is(err, aiderrors.ErrInvalidState) {
		t.Fatalf("expected paused invalid state, got %v", err)
	}
	if err := Guard(view, ModuleImpact); err != nil {
		t.Fatalf("unexpected pause for other module: %v", err)
	}
}
