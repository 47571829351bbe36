package common

import (
	"errors"
	"fmt"

	aiderrors "aidchain/core/errors"
)

var ErrModulePaused = fmt.Errorf("%w: module paused", aiderrors.ErrInvalidState)

// Module names used for pause switches and holding accounts.
const (
	ModuleVault     = "vault"
	ModulePrograms  = "programs"
	ModuleVouchers  = "vouchers"
	ModuleMerchants = "merchants"
	ModuleImpact    = "impact"
	ModuleBadges    = "badges"
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// IsPaused reports whether err was produced by Guard.
func IsPaused(err error) bool {
	return errors.Is(err, ErrModulePaused)
}
