package common

import (
	"fmt"

	aiderrors "aidchain/core/errors"
	"aidchain/core/state"
)

// AdminStore is the subset of state needed to persist a module admin.
type AdminStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

func adminKey(module string) []byte {
	return state.NewKey(module, "admin").Bytes()
}

// LoadAdmin returns the admin recorded for module.
func LoadAdmin(st AdminStore, module string) ([20]byte, bool, error) {
	var admin [20]byte
	if st == nil {
		return admin, false, fmt.Errorf("%w: %s: state not configured", aiderrors.ErrNotInitialized, module)
	}
	ok, err := st.KVGet(adminKey(module), &admin)
	if err != nil {
		return admin, false, err
	}
	return admin, ok, nil
}

// InitAdmin records the one-time admin for module.
func InitAdmin(st AdminStore, module string, admin [20]byte) error {
	if ZeroAddress(admin) {
		return fmt.Errorf("%w: %s: admin must not be zero", aiderrors.ErrInvalidArgument, module)
	}
	_, ok, err := LoadAdmin(st, module)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s: already initialized", aiderrors.ErrAlreadyExists, module)
	}
	return st.KVPut(adminKey(module), admin)
}

// RequireAdmin fails unless caller is the module admin.
func RequireAdmin(st AdminStore, module string, caller [20]byte) error {
	admin, ok, err := LoadAdmin(st, module)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", aiderrors.ErrNotInitialized, module)
	}
	if caller != admin {
		return fmt.Errorf("%w: %s: admin required", aiderrors.ErrUnauthorized, module)
	}
	return nil
}
