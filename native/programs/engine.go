package programs

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"aidchain/core/events"
	"aidchain/core/state"
	"aidchain/native/bank"
	"aidchain/native/common"
)

var (
	errNilState    = errors.New("program engine: state not configured")
	errNilTransfer = errors.New("program engine: asset transfer not configured")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	NextSequence(key []byte) (uint64, error)
	Sequence(key []byte) (uint64, error)
}

// Engine owns aid programs and their budget counters. Program funds are held
// at the engine's holding address until they are moved into vouchers.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	transfer bank.Transferer
	pauses   common.PauseView
	holding  [20]byte
	nowFn    func() int64
}

// NewEngine creates a program engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferer configures the asset transfer capability.
func (e *Engine) SetTransferer(t bank.Transferer) { e.transfer = t }

// SetPauses configures the pause switch consulted before every mutation.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetHolding configures the address program funds are held at.
func (e *Engine) SetHolding(addr [20]byte) { e.holding = addr }

// Holding returns the program manager's holding address.
func (e *Engine) Holding() [20]byte { return e.holding }

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	return common.Guard(e.pauses, common.ModulePrograms)
}

// Initialize records the program manager admin. It can only be called once.
func (e *Engine) Initialize(admin [20]byte) error {
	if e.state == nil {
		return errNilState
	}
	return common.InitAdmin(e.state, common.ModulePrograms, admin)
}

// CreateProgram registers a new active program owned by the caller and returns
// its identifier. Identifiers start at 1.
func (e *Engine) CreateProgram(caller [20]byte, name string, category Category, budget *big.Int) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if common.ZeroAddress(caller) {
		return 0, fmt.Errorf("%w: owner required", ErrInvalidProgram)
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: name required", ErrInvalidProgram)
	}
	if !category.Valid() {
		return 0, ErrInvalidCategory
	}
	if err := common.ValidateAmount(budget); err != nil {
		return 0, err
	}
	id, err := e.state.NextSequence(programCountKey)
	if err != nil {
		return 0, err
	}
	program := &Program{
		ID:          id,
		Name:        trimmed,
		Category:    category,
		Owner:       caller,
		TotalBudget: common.Clone(budget),
		Allocated:   big.NewInt(0),
		Spent:       big.NewInt(0),
		Active:      true,
		CreatedAt:   e.now(),
	}
	if err := e.putProgram(program); err != nil {
		return 0, err
	}
	if err := e.state.KVAppend(ownerIndexKey(caller), state.EncodeID(id)); err != nil {
		return 0, err
	}
	e.emit(events.ProgramCreated{ID: id, Owner: caller, Name: trimmed, Category: category.String(), Budget: common.Clone(budget)})
	return id, nil
}

// AllocateToProgram commits amount of the program's budget. Allocation can
// never exceed the program's total budget.
func (e *Engine) AllocateToProgram(caller [20]byte, id uint64, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.RequireAdmin(e.state, common.ModulePrograms, caller); err != nil {
		return err
	}
	if err := common.ValidateAmount(amount); err != nil {
		return err
	}
	program, err := e.Program(id)
	if err != nil {
		return err
	}
	if !program.Active {
		return ErrProgramInactive
	}
	next := new(big.Int).Add(program.Allocated, amount)
	if next.Cmp(program.TotalBudget) > 0 {
		return fmt.Errorf("%w: %s + %s > %s", ErrBudgetExceeded, program.Allocated, amount, program.TotalBudget)
	}
	program.Allocated = next
	if err := e.putProgram(program); err != nil {
		return err
	}
	e.emit(events.ProgramAllocated{ID: id, Amount: common.Clone(amount), Allocated: common.Clone(next)})
	return nil
}

// IssueVoucher moves amount of unspent allocation from the program holding
// address to the voucher ledger on behalf of beneficiary. Only the program's
// owning NGO may call it. Allocation is a high-water mark; the spent counter
// tracks funds actually moved.
func (e *Engine) IssueVoucher(caller [20]byte, id uint64, beneficiary [20]byte, amount *big.Int, voucherLedger [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.transfer == nil {
		return errNilTransfer
	}
	program, err := e.Program(id)
	if err != nil {
		return err
	}
	if caller != program.Owner {
		return ErrUnauthorized
	}
	if err := common.ValidateAmount(amount); err != nil {
		return err
	}
	if !program.Active {
		return ErrProgramInactive
	}
	if common.ZeroAddress(beneficiary) || common.ZeroAddress(voucherLedger) {
		return fmt.Errorf("%w: beneficiary and voucher ledger required", ErrInvalidProgram)
	}
	if amount.Cmp(program.Unspent()) > 0 {
		return fmt.Errorf("%w: requested %s, unspent %s", ErrInsufficientAllocation, amount, program.Unspent())
	}
	if err := e.transfer.Transfer(e.holding, voucherLedger, amount); err != nil {
		return fmt.Errorf("programs: fund voucher: %w", err)
	}
	program.Spent = new(big.Int).Add(program.Spent, amount)
	if err := e.putProgram(program); err != nil {
		return err
	}
	e.emit(events.ProgramFunded{ID: id, Beneficiary: beneficiary, Amount: common.Clone(amount), Spent: common.Clone(program.Spent)})
	return nil
}

// DeactivateProgram permanently stops allocation and voucher issuance for the
// program. Deactivating an inactive program is a no-op.
func (e *Engine) DeactivateProgram(caller [20]byte, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.RequireAdmin(e.state, common.ModulePrograms, caller); err != nil {
		return err
	}
	program, err := e.Program(id)
	if err != nil {
		return err
	}
	if !program.Active {
		return nil
	}
	program.Active = false
	if err := e.putProgram(program); err != nil {
		return err
	}
	e.emit(events.ProgramDeactivated{ID: id, Caller: caller})
	return nil
}

// Program returns the program stored under id.
func (e *Engine) Program(id uint64) (*Program, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if id == 0 {
		return nil, ErrProgramNotFound
	}
	var stored storedProgram
	ok, err := e.state.KVGet(programKey(id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProgramNotFound
	}
	return stored.toProgram(), nil
}

// ProgramActive reports whether the program exists and accepts new activity.
func (e *Engine) ProgramActive(id uint64) (bool, error) {
	program, err := e.Program(id)
	if err != nil {
		return false, err
	}
	return program.Active, nil
}

// ProgramCount returns the number of programs ever created.
func (e *Engine) ProgramCount() (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	return e.state.Sequence(programCountKey)
}

// ProgramsByOwner lists the identifiers of programs owned by the NGO.
func (e *Engine) ProgramsByOwner(owner [20]byte) ([]uint64, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(ownerIndexKey(owner), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		ids = append(ids, state.DecodeID(entry))
	}
	return ids, nil
}

func (e *Engine) putProgram(p *Program) error {
	return e.state.KVPut(programKey(p.ID), newStoredProgram(p))
}
