package core

import (
	"fmt"

	"aidchain/core/events"
	"aidchain/core/state"
	"aidchain/crypto"
	"aidchain/native/badges"
	"aidchain/native/bank"
	"aidchain/native/common"
	"aidchain/native/impact"
	"aidchain/native/merchants"
	"aidchain/native/programs"
	"aidchain/native/vault"
	"aidchain/native/vouchers"
	"aidchain/storage/trie"
)

const moduleLedger = "ledger"

var (
	settlementKey = state.NewKey(moduleLedger, "settlement").Bytes()
	ledgerModules = []string{
		common.ModuleVault,
		common.ModulePrograms,
		common.ModuleVouchers,
		common.ModuleMerchants,
		common.ModuleImpact,
		common.ModuleBadges,
	}
)

func pauseKey(module string) []byte {
	return state.NewKey(moduleLedger, "pause").WithString(module).Bytes()
}

func firstDepositKey(donor [20]byte) []byte {
	return state.NewKey(moduleLedger, "first-deposit").WithAddr(donor).Bytes()
}

// HoldingAddress returns the account that holds funds on behalf of module.
func HoldingAddress(module string) [20]byte {
	return crypto.ModuleAddress(module)
}

// Modules is the set of engines bound to one view of ledger state. Engines in
// the same Modules share state, the settlement bank and the event sink.
type Modules struct {
	State     *state.Manager
	Bank      *bank.Ledger
	Vault     *vault.Engine
	Programs  *programs.Engine
	Vouchers  *vouchers.Engine
	Merchants *merchants.Registry
	Impact    *impact.Engine
	Badges    *badges.Engine

	emitter events.Emitter
}

// pauseTable reads pause switches from ledger state so toggles commit and
// roll back with the operation that made them.
type pauseTable struct {
	st *state.Manager
}

// IsPaused reports the switch of module. Read failures count as paused.
func (p pauseTable) IsPaused(module string) bool {
	paused, err := p.lookup(module)
	return err != nil || paused
}

func (p pauseTable) lookup(module string) (bool, error) {
	var paused bool
	ok, err := p.st.KVGet(pauseKey(module), &paused)
	if err != nil {
		return false, fmt.Errorf("ledger: read pause switch %s: %w", module, err)
	}
	return ok && paused, nil
}

func settlementSymbol(st *state.Manager) (string, error) {
	var symbol string
	if _, err := st.KVGet(settlementKey, &symbol); err != nil {
		return "", err
	}
	return symbol, nil
}

func (l *Ledger) bind(tr *trie.Trie, emitter events.Emitter) (*Modules, error) {
	st := state.NewManager(tr)
	symbol, err := settlementSymbol(st)
	if err != nil {
		return nil, err
	}
	ledger := bank.NewLedger(st, symbol)
	pauses := pauseTable{st: st}
	now := l.opts.Now

	m := &Modules{State: st, Bank: ledger, emitter: emitter}

	m.Vault = vault.NewEngine()
	m.Vault.SetState(st)
	m.Vault.SetTransferer(ledger)
	m.Vault.SetPauses(pauses)
	m.Vault.SetHolding(HoldingAddress(common.ModuleVault))
	m.Vault.SetEmitter(emitter)

	m.Programs = programs.NewEngine()
	m.Programs.SetState(st)
	m.Programs.SetTransferer(ledger)
	m.Programs.SetPauses(pauses)
	m.Programs.SetHolding(HoldingAddress(common.ModulePrograms))
	m.Programs.SetNowFunc(now)
	m.Programs.SetEmitter(emitter)

	m.Merchants = merchants.NewRegistry(st)
	m.Merchants.SetPauses(pauses)
	m.Merchants.SetNowFunc(now)
	m.Merchants.SetEmitter(emitter)

	m.Vouchers = vouchers.NewEngine()
	m.Vouchers.SetState(st)
	m.Vouchers.SetTransferer(ledger)
	m.Vouchers.SetMerchants(m.Merchants)
	m.Vouchers.SetPrograms(m.Programs)
	m.Vouchers.SetPauses(pauses)
	m.Vouchers.SetRedemptionQuota(l.opts.RedemptionQuota)
	m.Vouchers.SetHolding(HoldingAddress(common.ModuleVouchers))
	m.Vouchers.SetNowFunc(now)
	m.Vouchers.SetEmitter(emitter)

	m.Impact = impact.NewEngine()
	m.Impact.SetState(st)
	m.Impact.SetTransferer(ledger)
	m.Impact.SetPauses(pauses)
	m.Impact.SetNowFunc(now)
	m.Impact.SetEmitter(emitter)

	m.Badges = badges.NewEngine()
	m.Badges.SetState(st)
	m.Badges.SetPauses(pauses)
	m.Badges.SetNowFunc(now)
	m.Badges.SetEmitter(emitter)

	return m, nil
}
