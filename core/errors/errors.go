package errors

import stderrors "errors"

// Ledger error taxonomy. Module errors wrap one of these so callers can match
// either the broad class or the specific failure with errors.Is.
var (
	ErrUnauthorized           = stderrors.New("unauthorized")
	ErrNotFound               = stderrors.New("not found")
	ErrAlreadyExists          = stderrors.New("already exists")
	ErrInsufficientFunds      = stderrors.New("insufficient funds")
	ErrInsufficientBalance    = stderrors.New("insufficient balance")
	ErrInsufficientAllocation = stderrors.New("insufficient allocation")
	ErrBudgetExceeded         = stderrors.New("budget exceeded")
	ErrInvalidState           = stderrors.New("invalid state")
	ErrInvalidAmount          = stderrors.New("invalid amount")
	ErrInvalidArgument        = stderrors.New("invalid argument")
	ErrTransferFailed         = stderrors.New("transfer failed")
	ErrNotInitialized         = stderrors.New("not initialized")
)

// Kind returns the taxonomy sentinel matched by err, or nil when err does not
// belong to the ledger taxonomy.
func Kind(err error) error {
	for _, kind := range []error{
		ErrUnauthorized,
		ErrNotFound,
		ErrAlreadyExists,
		ErrInsufficientFunds,
		ErrInsufficientBalance,
		ErrInsufficientAllocation,
		ErrBudgetExceeded,
		ErrInvalidState,
		ErrInvalidAmount,
		ErrInvalidArgument,
		ErrTransferFailed,
		ErrNotInitialized,
	} {
		if stderrors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
