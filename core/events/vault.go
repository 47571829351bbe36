package events

import (
	"math/big"

	"aidchain/core/types"
	"aidchain/crypto"
)

const (
	TypeVaultDeposited        = "vault.deposited"
	TypeVaultWithdrawn        = "vault.withdrawn"
	TypeVaultDeployed         = "vault.deployed"
	TypeVaultYieldWithdrawn   = "vault.yield.withdrawn"
	TypeVaultYieldDistributed = "vault.yield.distributed"
)

// VaultDeposited captures a donor deposit and the resulting balances.
type VaultDeposited struct {
	Donor   [20]byte
	Amount  *big.Int
	Balance *big.Int
	Total   *big.Int
}

func (VaultDeposited) EventType() string { return TypeVaultDeposited }

func (e VaultDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDeposited,
		Attributes: map[string]string{
			"donor":   crypto.Format(e.Donor),
			"amount":  formatAmount(e.Amount),
			"balance": formatAmount(e.Balance),
			"total":   formatAmount(e.Total),
		},
	}
}

// VaultWithdrawn captures a donor withdrawal of principal.
type VaultWithdrawn struct {
	Donor   [20]byte
	Amount  *big.Int
	Balance *big.Int
	Total   *big.Int
}

func (VaultWithdrawn) EventType() string { return TypeVaultWithdrawn }

func (e VaultWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultWithdrawn,
		Attributes: map[string]string{
			"donor":   crypto.Format(e.Donor),
			"amount":  formatAmount(e.Amount),
			"balance": formatAmount(e.Balance),
			"total":   formatAmount(e.Total),
		},
	}
}

// VaultDeployed captures idle capital moved to a yield venue.
type VaultDeployed struct {
	Venue    [20]byte
	Amount   *big.Int
	Deployed *big.Int
}

func (VaultDeployed) EventType() string { return TypeVaultDeployed }

func (e VaultDeployed) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDeployed,
		Attributes: map[string]string{
			"venue":    crypto.Format(e.Venue),
			"amount":   formatAmount(e.Amount),
			"deployed": formatAmount(e.Deployed),
		},
	}
}

// VaultYieldWithdrawn captures capital returned from a venue into the yield
// pool.
type VaultYieldWithdrawn struct {
	Venue     [20]byte
	Amount    *big.Int
	Deployed  *big.Int
	YieldPool *big.Int
}

func (VaultYieldWithdrawn) EventType() string { return TypeVaultYieldWithdrawn }

func (e VaultYieldWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultYieldWithdrawn,
		Attributes: map[string]string{
			"venue":     crypto.Format(e.Venue),
			"amount":    formatAmount(e.Amount),
			"deployed":  formatAmount(e.Deployed),
			"yieldPool": formatAmount(e.YieldPool),
		},
	}
}

// VaultYieldDistributed captures yield released to a recipient.
type VaultYieldDistributed struct {
	Recipient [20]byte
	Amount    *big.Int
	YieldPool *big.Int
}

func (VaultYieldDistributed) EventType() string { return TypeVaultYieldDistributed }

func (e VaultYieldDistributed) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultYieldDistributed,
		Attributes: map[string]string{
			"recipient": crypto.Format(e.Recipient),
			"amount":    formatAmount(e.Amount),
			"yieldPool": formatAmount(e.YieldPool),
		},
	}
}
