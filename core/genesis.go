package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	aiderrors "aidchain/core/errors"
	"aidchain/core/genesis"
	"aidchain/core/types"
	"aidchain/native/common"
)

// InitGenesis seeds an empty ledger from spec. The admin of spec becomes the
// admin of the ledger and of every module.
func (l *Ledger) InitGenesis(ctx context.Context, spec *genesis.GenesisSpec) (*types.Receipt, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: genesis spec required", aiderrors.ErrInvalidArgument)
	}
	if l.Sequence() != 0 {
		return nil, fmt.Errorf("%w: ledger already initialised", aiderrors.ErrAlreadyExists)
	}
	admin := spec.AdminAddress()
	return l.Execute(ctx, "genesis", func(m *Modules) error {
		if err := m.State.RegisterToken(spec.Token.Symbol, spec.Token.Name, spec.Token.Decimals); err != nil {
			return fmt.Errorf("genesis: register token: %w", err)
		}
		if err := m.State.KVPut(settlementKey, spec.Token.Symbol); err != nil {
			return err
		}
		// Rebind so every engine settles in the freshly registered token.
		m, err := l.bind(m.State.Trie(), m.emitter)
		if err != nil {
			return err
		}

		if err := common.InitAdmin(m.State, moduleLedger, admin); err != nil {
			return err
		}
		inits := []func([20]byte) error{
			m.Vault.Initialize,
			m.Programs.Initialize,
			m.Vouchers.Initialize,
			m.Merchants.Initialize,
			m.Impact.Initialize,
			m.Badges.Initialize,
		}
		for i, init := range inits {
			if err := init(admin); err != nil {
				return fmt.Errorf("genesis: initialise %s: %w", ledgerModules[i], err)
			}
		}

		for _, alloc := range spec.Allocations() {
			if err := m.Bank.Mint(alloc.Address, alloc.Amount); err != nil {
				return fmt.Errorf("genesis: allocation: %w", err)
			}
		}
		for _, grant := range spec.RoleGrants() {
			if err := m.State.SetRole(grant.Role, grant.Address[:]); err != nil {
				return fmt.Errorf("genesis: role %s: %w", grant.Role, err)
			}
		}

		for i := range spec.Merchants {
			merchant := &spec.Merchants[i]
			addr := merchant.AddressBytes()
			doc, err := decodeDocumentHash(merchant.DocumentHash)
			if err != nil {
				return fmt.Errorf("genesis: merchant %s: %w", merchant.Name, err)
			}
			if _, err := m.Merchants.RegisterMerchant(addr, addr, merchant.Name, merchant.Category, doc); err != nil {
				return fmt.Errorf("genesis: merchant %s: %w", merchant.Name, err)
			}
			if merchant.Verified {
				if err := m.Merchants.VerifyMerchant(admin, addr); err != nil {
					return fmt.Errorf("genesis: merchant %s: %w", merchant.Name, err)
				}
			}
		}

		for i := range spec.Programs {
			program := &spec.Programs[i]
			id, err := m.Programs.CreateProgram(program.OwnerAddress(), program.Name, program.CategoryValue(), program.BudgetAmount())
			if err != nil {
				return fmt.Errorf("genesis: program %s: %w", program.Name, err)
			}
			if allocation := program.AllocationAmount(); allocation.Sign() > 0 {
				if err := m.Programs.AllocateToProgram(admin, id, allocation); err != nil {
					return fmt.Errorf("genesis: program %s: %w", program.Name, err)
				}
			}
		}
		return nil
	})
}

func decodeDocumentHash(value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("document hash: %w", err)
	}
	return raw, nil
}
