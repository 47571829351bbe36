package programs

import (
	"fmt"

	aiderrors "aidchain/core/errors"
)

var (
	ErrUnauthorized           = fmt.Errorf("%w: programs: caller is not the program owner", aiderrors.ErrUnauthorized)
	ErrProgramNotFound        = fmt.Errorf("%w: programs: program not found", aiderrors.ErrNotFound)
	ErrProgramInactive        = fmt.Errorf("%w: programs: program inactive", aiderrors.ErrInvalidState)
	ErrBudgetExceeded         = fmt.Errorf("%w: programs: allocation exceeds total budget", aiderrors.ErrBudgetExceeded)
	ErrInsufficientAllocation = fmt.Errorf("%w: programs: amount exceeds unspent allocation", aiderrors.ErrInsufficientAllocation)
	ErrInvalidCategory        = fmt.Errorf("%w: programs: unknown category", aiderrors.ErrInvalidArgument)
	ErrInvalidProgram         = fmt.Errorf("%w: programs: invalid program", aiderrors.ErrInvalidArgument)
)
