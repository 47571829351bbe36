package bank

import (
	"fmt"
	"math/big"
	"strings"

	aiderrors "aidchain/core/errors"
)

// Transferer moves settlement tokens between participants. Every failure is
// reported wrapped in ErrTransferFailed so callers can abort atomically.
type Transferer interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

// BalanceView exposes the token balance of a participant.
type BalanceView interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
}

type balanceState interface {
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
}

// Ledger is the default Transferer backed by token balances held in state.
type Ledger struct {
	st     balanceState
	symbol string
}

// NewLedger returns a transferer settling in the given token.
func NewLedger(st balanceState, symbol string) *Ledger {
	return &Ledger{st: st, symbol: strings.ToUpper(strings.TrimSpace(symbol))}
}

// Symbol returns the settlement token symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Transfer debits from and credits to. Zero-value transfers succeed without
// touching state.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil || l.st == nil {
		return fmt.Errorf("%w: bank: state not configured", aiderrors.ErrTransferFailed)
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: bank: invalid amount", aiderrors.ErrTransferFailed)
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBal, err := l.st.Balance(from[:], l.symbol)
	if err != nil {
		return fmt.Errorf("%w: bank: load sender balance: %v", aiderrors.ErrTransferFailed, err)
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: bank: sender balance %s below %s", aiderrors.ErrTransferFailed, fromBal, amount)
	}
	toBal, err := l.st.Balance(to[:], l.symbol)
	if err != nil {
		return fmt.Errorf("%w: bank: load recipient balance: %v", aiderrors.ErrTransferFailed, err)
	}
	if err := l.st.SetBalance(from[:], l.symbol, new(big.Int).Sub(fromBal, amount)); err != nil {
		return fmt.Errorf("%w: bank: debit: %v", aiderrors.ErrTransferFailed, err)
	}
	if err := l.st.SetBalance(to[:], l.symbol, new(big.Int).Add(toBal, amount)); err != nil {
		return fmt.Errorf("%w: bank: credit: %v", aiderrors.ErrTransferFailed, err)
	}
	return nil
}

// BalanceOf returns the settlement token balance of addr.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil || l.st == nil {
		return nil, fmt.Errorf("bank: state not configured")
	}
	return l.st.Balance(addr[:], l.symbol)
}

// Mint credits addr without a counterparty. It is used to seed balances at
// genesis.
func (l *Ledger) Mint(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	current, err := l.st.Balance(addr[:], l.symbol)
	if err != nil {
		return err
	}
	return l.st.SetBalance(addr[:], l.symbol, new(big.Int).Add(current, amount))
}
