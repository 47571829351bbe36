package core

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	aiderrors "aidchain/core/errors"
	"aidchain/crypto"
	"aidchain/native/common"
	"aidchain/native/impact"
	"aidchain/native/programs"
	"aidchain/native/vouchers"
)

// Badge awarded on a donor's first deposit when enabled.
const (
	firstDepositBadgeName        = "First Donation"
	firstDepositBadgeDescription = "Awarded for a first contribution to the aid vault"
	firstDepositBadgeType        = "donor"
	firstDepositBadgeRarity      = "common"
)

// RedemptionResult describes a settled redemption and the credential minted
// for it, if any.
type RedemptionResult struct {
	Redemption    *vouchers.Redemption
	ImpactTokenID uint64
}

func moduleAdmin(m *Modules, module string) ([20]byte, error) {
	admin, ok, err := common.LoadAdmin(m.State, module)
	if err != nil {
		return admin, err
	}
	if !ok {
		return admin, fmt.Errorf("%w: %s", aiderrors.ErrNotInitialized, module)
	}
	return admin, nil
}

// Deposit moves amount from the donor into the vault and returns the donor's
// principal. A first deposit may also award a donor badge.
func (l *Ledger) Deposit(ctx context.Context, caller, donor [20]byte, amount *big.Int) (*big.Int, error) {
	var balance, total *big.Int
	_, err := l.Execute(ctx, "deposit", func(m *Modules) error {
		var err error
		if balance, err = m.Vault.Deposit(caller, donor, amount); err != nil {
			return err
		}
		if total, err = m.Vault.TotalDeposits(); err != nil {
			return err
		}
		if !l.opts.BadgeOnFirstDeposit {
			return nil
		}
		return awardFirstDepositBadge(m, donor)
	})
	if err != nil {
		return nil, err
	}
	l.metrics.SetVaultDeposits(total)
	return balance, nil
}

func awardFirstDepositBadge(m *Modules, donor [20]byte) error {
	key := firstDepositKey(donor)
	awarded, err := m.State.KVHas(key)
	if err != nil || awarded {
		return err
	}
	admin, err := moduleAdmin(m, common.ModuleBadges)
	if err != nil {
		return err
	}
	if _, err := m.Badges.MintBadge(admin, donor, firstDepositBadgeName, firstDepositBadgeDescription, firstDepositBadgeType, firstDepositBadgeRarity); err != nil {
		return err
	}
	return m.State.KVPut(key, true)
}

// Withdraw returns principal from the vault to the donor.
func (l *Ledger) Withdraw(ctx context.Context, caller, donor [20]byte, amount *big.Int) (*big.Int, error) {
	var balance, total *big.Int
	_, err := l.Execute(ctx, "withdraw", func(m *Modules) error {
		var err error
		if balance, err = m.Vault.Withdraw(caller, donor, amount); err != nil {
			return err
		}
		total, err = m.Vault.TotalDeposits()
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.SetVaultDeposits(total)
	return balance, nil
}

// DeployToDefi sends idle principal to a yield venue.
func (l *Ledger) DeployToDefi(ctx context.Context, caller, venue [20]byte, amount *big.Int) error {
	_, err := l.Execute(ctx, "deploy_to_defi", func(m *Modules) error {
		return m.Vault.DeployToDefi(caller, venue, amount)
	})
	return err
}

// WithdrawYield records funds returned from a yield venue into the yield pool.
func (l *Ledger) WithdrawYield(ctx context.Context, caller, venue [20]byte, amount *big.Int) error {
	_, err := l.Execute(ctx, "withdraw_yield", func(m *Modules) error {
		return m.Vault.WithdrawYield(caller, venue, amount)
	})
	return err
}

// DistributeYield releases yield to recipient. The zero recipient sends it to
// the program manager's holding account, where it funds vouchers.
func (l *Ledger) DistributeYield(ctx context.Context, caller, recipient [20]byte, amount *big.Int) error {
	_, err := l.Execute(ctx, "distribute_yield", func(m *Modules) error {
		if common.ZeroAddress(recipient) {
			recipient = m.Programs.Holding()
		}
		return m.Vault.DistributeYield(caller, recipient, amount)
	})
	return err
}

// CreateProgram registers a program owned by caller.
func (l *Ledger) CreateProgram(ctx context.Context, caller [20]byte, name string, category programs.Category, budget *big.Int) (uint64, error) {
	var id uint64
	_, err := l.Execute(ctx, "create_program", func(m *Modules) error {
		var err error
		id, err = m.Programs.CreateProgram(caller, name, category, budget)
		return err
	})
	return id, err
}

// AllocateToProgram commits budget to a program.
func (l *Ledger) AllocateToProgram(ctx context.Context, caller [20]byte, programID uint64, amount *big.Int) error {
	_, err := l.Execute(ctx, "allocate_to_program", func(m *Modules) error {
		return m.Programs.AllocateToProgram(caller, programID, amount)
	})
	return err
}

// DeactivateProgram stops further activity on a program.
func (l *Ledger) DeactivateProgram(ctx context.Context, caller [20]byte, programID uint64) error {
	_, err := l.Execute(ctx, "deactivate_program", func(m *Modules) error {
		return m.Programs.DeactivateProgram(caller, programID)
	})
	return err
}

// IssueVoucher funds a beneficiary's voucher from a program's unspent
// allocation. The program owner is the caller; the voucher ledger credit is
// performed with the voucher admin's authority.
func (l *Ledger) IssueVoucher(ctx context.Context, caller [20]byte, programID uint64, beneficiary [20]byte, amount *big.Int) (*big.Int, error) {
	var balance *big.Int
	_, err := l.Execute(ctx, "issue_voucher", func(m *Modules) error {
		if err := m.Programs.IssueVoucher(caller, programID, beneficiary, amount, m.Vouchers.Holding()); err != nil {
			return err
		}
		admin, err := moduleAdmin(m, common.ModuleVouchers)
		if err != nil {
			return err
		}
		balance, err = m.Vouchers.IssueVoucher(admin, beneficiary, programID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.RecordVoucherIssued(amount)
	return balance, nil
}

// RedeemVoucher settles a beneficiary's purchase at a verified merchant and,
// when enabled, mints the matching proof-of-impact credential in the same
// operation.
func (l *Ledger) RedeemVoucher(ctx context.Context, caller, beneficiary, merchant [20]byte, programID uint64, amount *big.Int, proofHash []byte) (*RedemptionResult, error) {
	result := &RedemptionResult{}
	_, err := l.Execute(ctx, "redeem_voucher", func(m *Modules) error {
		redemption, err := m.Vouchers.RedeemVoucher(caller, beneficiary, merchant, programID, amount, proofHash)
		if err != nil {
			return err
		}
		result.Redemption = redemption
		if !l.opts.AutoMintImpact {
			return nil
		}
		admin, err := moduleAdmin(m, common.ModuleImpact)
		if err != nil {
			return err
		}
		result.ImpactTokenID, err = m.Impact.MintImpactNFT(admin, impact.MintRequest{
			RedemptionID: redemption.ID,
			Beneficiary:  redemption.Beneficiary,
			Merchant:     redemption.Merchant,
			ProgramID:    redemption.ProgramID,
			Amount:       redemption.Amount,
			ProofHash:    redemption.ProofHash,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.RecordRedemption()
	l.logger.Debug("voucher redeemed",
		"redemption", result.Redemption.ID,
		"beneficiary", crypto.Format(beneficiary),
		"merchant", crypto.Format(merchant),
		"impact_token", result.ImpactTokenID)
	if result.ImpactTokenID != 0 {
		l.metrics.RecordImpactMint()
	}
	return result, nil
}

// VerifyRedemption marks a redemption as verified.
func (l *Ledger) VerifyRedemption(ctx context.Context, caller [20]byte, redemptionID uint64) error {
	_, err := l.Execute(ctx, "verify_redemption", func(m *Modules) error {
		return m.Vouchers.VerifyRedemption(caller, redemptionID)
	})
	return err
}

// RegisterMerchant creates a pending merchant profile for the caller.
func (l *Ledger) RegisterMerchant(ctx context.Context, caller [20]byte, name, category string, documentHash []byte) error {
	_, err := l.Execute(ctx, "register_merchant", func(m *Modules) error {
		_, err := m.Merchants.RegisterMerchant(caller, caller, name, category, documentHash)
		return err
	})
	return err
}

// VerifyMerchant, RejectMerchant and SuspendMerchant drive the merchant
// status machine.
func (l *Ledger) VerifyMerchant(ctx context.Context, caller, merchant [20]byte) error {
	_, err := l.Execute(ctx, "verify_merchant", func(m *Modules) error {
		return m.Merchants.VerifyMerchant(caller, merchant)
	})
	return err
}

func (l *Ledger) RejectMerchant(ctx context.Context, caller, merchant [20]byte) error {
	_, err := l.Execute(ctx, "reject_merchant", func(m *Modules) error {
		return m.Merchants.RejectMerchant(caller, merchant)
	})
	return err
}

func (l *Ledger) SuspendMerchant(ctx context.Context, caller, merchant [20]byte) error {
	_, err := l.Execute(ctx, "suspend_merchant", func(m *Modules) error {
		return m.Merchants.SuspendMerchant(caller, merchant)
	})
	return err
}

// MintImpactNFT mints a credential for a redemption outside the automatic
// flow. The redemption must exist.
func (l *Ledger) MintImpactNFT(ctx context.Context, caller [20]byte, redemptionID uint64) (uint64, error) {
	var id uint64
	_, err := l.Execute(ctx, "mint_impact_nft", func(m *Modules) error {
		redemption, err := m.Vouchers.Redemption(redemptionID)
		if err != nil {
			return err
		}
		id, err = m.Impact.MintImpactNFT(caller, impact.MintRequest{
			RedemptionID: redemption.ID,
			Beneficiary:  redemption.Beneficiary,
			Merchant:     redemption.Merchant,
			ProgramID:    redemption.ProgramID,
			Amount:       redemption.Amount,
			ProofHash:    redemption.ProofHash,
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	l.metrics.RecordImpactMint()
	return id, nil
}

func (l *Ledger) TransferNFT(ctx context.Context, caller, from, to [20]byte, tokenID uint64) error {
	_, err := l.Execute(ctx, "transfer_nft", func(m *Modules) error {
		return m.Impact.Transfer(caller, from, to, tokenID)
	})
	return err
}

func (l *Ledger) ListNFT(ctx context.Context, caller [20]byte, tokenID uint64, price *big.Int) error {
	_, err := l.Execute(ctx, "list_nft", func(m *Modules) error {
		return m.Impact.ListForSale(caller, tokenID, price)
	})
	return err
}

func (l *Ledger) DelistNFT(ctx context.Context, caller [20]byte, tokenID uint64) error {
	_, err := l.Execute(ctx, "delist_nft", func(m *Modules) error {
		return m.Impact.Delist(caller, tokenID)
	})
	return err
}

func (l *Ledger) BuyNFT(ctx context.Context, caller, buyer [20]byte, tokenID uint64) error {
	_, err := l.Execute(ctx, "buy_nft", func(m *Modules) error {
		return m.Impact.BuyNFT(caller, buyer, tokenID)
	})
	return err
}

// MintBadge awards a donor badge.
func (l *Ledger) MintBadge(ctx context.Context, caller, to [20]byte, name, description, badgeType, rarity string) (uint64, error) {
	var id uint64
	_, err := l.Execute(ctx, "mint_badge", func(m *Modules) error {
		var err error
		id, err = m.Badges.MintBadge(caller, to, name, description, badgeType, rarity)
		return err
	})
	return id, err
}

// SetPaused toggles the pause switch of a module. Only the ledger admin may
// call it.
func (l *Ledger) SetPaused(ctx context.Context, caller [20]byte, module string, paused bool) error {
	module = strings.ToLower(strings.TrimSpace(module))
	_, err := l.Execute(ctx, "set_paused", func(m *Modules) error {
		if err := common.RequireAdmin(m.State, moduleLedger, caller); err != nil {
			return err
		}
		if !knownModule(module) {
			return fmt.Errorf("%w: unknown module %q", aiderrors.ErrInvalidArgument, module)
		}
		if !paused {
			return m.State.KVDelete(pauseKey(module))
		}
		return m.State.KVPut(pauseKey(module), true)
	})
	if err != nil {
		return err
	}
	l.metrics.SetPaused(module, paused)
	l.logger.Info("module pause updated", "module", module, "paused", paused)
	return nil
}

// IsPaused reports whether module is paused in the committed state.
func (l *Ledger) IsPaused(module string) (bool, error) {
	module = strings.ToLower(strings.TrimSpace(module))
	if !knownModule(module) {
		return false, fmt.Errorf("%w: unknown module %q", aiderrors.ErrInvalidArgument, module)
	}
	var paused bool
	err := l.View(func(m *Modules) error {
		var err error
		paused, err = pauseTable{st: m.State}.lookup(module)
		return err
	})
	if err != nil {
		return false, err
	}
	return paused, nil
}

// GrantRole assigns one of the known roles to addr. Only the ledger admin may
// call it.
func (l *Ledger) GrantRole(ctx context.Context, caller [20]byte, role string, addr [20]byte) error {
	_, err := l.Execute(ctx, "grant_role", func(m *Modules) error {
		if err := common.RequireAdmin(m.State, moduleLedger, caller); err != nil {
			return err
		}
		if !common.KnownRole(role) {
			return fmt.Errorf("%w: unknown role %q", aiderrors.ErrInvalidArgument, role)
		}
		return m.State.SetRole(role, addr[:])
	})
	return err
}

// RevokeRole removes role from addr. Only the ledger admin may call it.
func (l *Ledger) RevokeRole(ctx context.Context, caller [20]byte, role string, addr [20]byte) error {
	_, err := l.Execute(ctx, "revoke_role", func(m *Modules) error {
		if err := common.RequireAdmin(m.State, moduleLedger, caller); err != nil {
			return err
		}
		if !common.KnownRole(role) {
			return fmt.Errorf("%w: unknown role %q", aiderrors.ErrInvalidArgument, role)
		}
		return m.State.RemoveRole(role, addr[:])
	})
	return err
}

// MintTokens credits settlement tokens to addr. Only the ledger admin may call
// it; it stands in for an external funding bridge.
func (l *Ledger) MintTokens(ctx context.Context, caller, to [20]byte, amount *big.Int) error {
	_, err := l.Execute(ctx, "mint_tokens", func(m *Modules) error {
		if err := common.RequireAdmin(m.State, moduleLedger, caller); err != nil {
			return err
		}
		if err := common.ValidatePositive(amount); err != nil {
			return err
		}
		return m.Bank.Mint(to, amount)
	})
	return err
}

// TokenBalance returns the settlement token balance of addr.
func (l *Ledger) TokenBalance(addr [20]byte) (*big.Int, error) {
	var balance *big.Int
	err := l.View(func(m *Modules) error {
		var err error
		balance, err = m.Bank.BalanceOf(addr)
		return err
	})
	return balance, err
}

func knownModule(module string) bool {
	for _, name := range ledgerModules {
		if name == module {
			return true
		}
	}
	return false
}
