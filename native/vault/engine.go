package vault

import (
	"errors"
	"math/big"

	"aidchain/core/events"
	"aidchain/native/bank"
	"aidchain/native/common"
)

var (
	errNilState    = errors.New("vault engine: state not configured")
	errNilTransfer = errors.New("vault engine: asset transfer not configured")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Engine keeps donor principal, deployed capital and the yield pool. The vault
// holds pooled funds at its own holding address.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	transfer bank.Transferer
	pauses   common.PauseView
	holding  [20]byte
}

// NewEngine creates a vault engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferer configures the asset transfer capability.
func (e *Engine) SetTransferer(t bank.Transferer) { e.transfer = t }

// SetPauses configures the pause switch consulted before every mutation.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetHolding configures the vault's holding address.
func (e *Engine) SetHolding(addr [20]byte) { e.holding = addr }

// Holding returns the vault's holding address.
func (e *Engine) Holding() [20]byte { return e.holding }

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

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if e.transfer == nil {
		return errNilTransfer
	}
	return common.Guard(e.pauses, common.ModuleVault)
}

func (e *Engine) loadAmount(key []byte) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	value := new(big.Int)
	ok, err := e.state.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (e *Engine) storeAmount(key []byte, value *big.Int) error {
	return e.state.KVPut(key, common.Clone(value))
}
