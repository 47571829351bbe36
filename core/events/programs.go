package events

import (
	"math/big"

	"aidchain/core/types"
	"aidchain/crypto"
)

const (
	TypeProgramCreated     = "program.created"
	TypeProgramAllocated   = "program.allocated"
	TypeProgramFunded      = "program.voucher_funded"
	TypeProgramDeactivated = "program.deactivated"
)

// ProgramCreated captures a newly registered aid program.
type ProgramCreated struct {
	ID       uint64
	Owner    [20]byte
	Name     string
	Category string
	Budget   *big.Int
}

func (ProgramCreated) EventType() string { return TypeProgramCreated }

func (e ProgramCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeProgramCreated,
		Attributes: map[string]string{
			"programId": uintToString(e.ID),
			"owner":     crypto.Format(e.Owner),
			"name":      e.Name,
			"category":  e.Category,
			"budget":    formatAmount(e.Budget),
		},
	}
}

// ProgramAllocated captures budget committed to a program.
type ProgramAllocated struct {
	ID        uint64
	Amount    *big.Int
	Allocated *big.Int
}

func (ProgramAllocated) EventType() string { return TypeProgramAllocated }

func (e ProgramAllocated) Event() *types.Event {
	return &types.Event{
		Type: TypeProgramAllocated,
		Attributes: map[string]string{
			"programId": uintToString(e.ID),
			"amount":    formatAmount(e.Amount),
			"allocated": formatAmount(e.Allocated),
		},
	}
}

// ProgramFunded captures program funds moved into the voucher ledger on
// behalf of a beneficiary.
type ProgramFunded struct {
	ID          uint64
	Beneficiary [20]byte
	Amount      *big.Int
	Spent       *big.Int
}

func (ProgramFunded) EventType() string { return TypeProgramFunded }

func (e ProgramFunded) Event() *types.Event {
	return &types.Event{
		Type: TypeProgramFunded,
		Attributes: map[string]string{
			"programId":   uintToString(e.ID),
			"beneficiary": crypto.Format(e.Beneficiary),
			"amount":      formatAmount(e.Amount),
			"spent":       formatAmount(e.Spent),
		},
	}
}

// ProgramDeactivated captures the irreversible shutdown of a program.
type ProgramDeactivated struct {
	ID     uint64
	Caller [20]byte
}

func (ProgramDeactivated) EventType() string { return TypeProgramDeactivated }

func (e ProgramDeactivated) Event() *types.Event {
	return &types.Event{
		Type: TypeProgramDeactivated,
		Attributes: map[string]string{
			"programId": uintToString(e.ID),
			"caller":    crypto.Format(e.Caller),
		},
	}
}
