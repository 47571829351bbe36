package vault

import (
	"fmt"
	"math/big"

	"aidchain/core/events"
	"aidchain/native/common"
)

// Initialize records the vault admin. It can only be called once.
func (e *Engine) Initialize(admin [20]byte) error {
	if e.state == nil {
		return errNilState
	}
	return common.InitAdmin(e.state, common.ModuleVault, admin)
}

// Admin returns the configured vault admin.
func (e *Engine) Admin() ([20]byte, bool, error) {
	return common.LoadAdmin(e.state, common.ModuleVault)
}

// Deposit pulls amount from the donor into the vault and credits the donor's
// principal. The caller must be the donor.
func (e *Engine) Deposit(caller, donor [20]byte, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller != donor {
		return nil, ErrUnauthorized
	}
	if common.ZeroAddress(donor) {
		return nil, ErrZeroAddress
	}
	if err := common.ValidateAmount(amount); err != nil {
		return nil, err
	}
	balance, err := e.Balance(donor)
	if err != nil {
		return nil, err
	}
	total, err := e.TotalDeposits()
	if err != nil {
		return nil, err
	}
	newBalance, err := common.AddChecked(balance, amount)
	if err != nil {
		return nil, err
	}
	newTotal, err := common.AddChecked(total, amount)
	if err != nil {
		return nil, err
	}
	if err := e.transfer.Transfer(donor, e.holding, amount); err != nil {
		return nil, fmt.Errorf("vault: deposit: %w", err)
	}
	if err := e.storeAmount(balanceKey(donor), newBalance); err != nil {
		return nil, err
	}
	if err := e.storeAmount(totalKey, newTotal); err != nil {
		return nil, err
	}
	if err := e.state.KVAppend(donorIndexKey, donor[:]); err != nil {
		return nil, err
	}
	e.emit(events.VaultDeposited{Donor: donor, Amount: common.Clone(amount), Balance: newBalance, Total: newTotal})
	return common.Clone(newBalance), nil
}

// Withdraw returns principal to the donor. The caller must be the donor.
func (e *Engine) Withdraw(caller, donor [20]byte, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller != donor {
		return nil, ErrUnauthorized
	}
	if err := common.ValidateAmount(amount); err != nil {
		return nil, err
	}
	balance, err := e.Balance(donor)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(balance) > 0 {
		return nil, ErrInsufficientBalance
	}
	total, err := e.TotalDeposits()
	if err != nil {
		return nil, err
	}
	if err := e.transfer.Transfer(e.holding, donor, amount); err != nil {
		return nil, fmt.Errorf("vault: withdraw: %w", err)
	}
	newBalance := new(big.Int).Sub(balance, amount)
	newTotal := new(big.Int).Sub(total, amount)
	if err := e.storeAmount(balanceKey(donor), newBalance); err != nil {
		return nil, err
	}
	if err := e.storeAmount(totalKey, newTotal); err != nil {
		return nil, err
	}
	e.emit(events.VaultWithdrawn{Donor: donor, Amount: common.Clone(amount), Balance: newBalance, Total: newTotal})
	return common.Clone(newBalance), nil
}

// DeployToDefi moves idle principal to an external yield venue.
func (e *Engine) DeployToDefi(caller, venue [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.RequireAdmin(e.state, common.ModuleVault, caller); err != nil {
		return err
	}
	if common.ZeroAddress(venue) {
		return ErrZeroAddress
	}
	if err := common.ValidateAmount(amount); err != nil {
		return err
	}
	idle, err := e.IdlePrincipal()
	if err != nil {
		return err
	}
	if amount.Cmp(idle) > 0 {
		return ErrInsufficientIdle
	}
	deployed, err := e.DeployedAmount(venue)
	if err != nil {
		return err
	}
	deployedTotal, err := e.TotalDeployed()
	if err != nil {
		return err
	}
	if err := e.transfer.Transfer(e.holding, venue, amount); err != nil {
		return fmt.Errorf("vault: deploy: %w", err)
	}
	deployed.Add(deployed, amount)
	deployedTotal.Add(deployedTotal, amount)
	if err := e.storeAmount(deployedKey(venue), deployed); err != nil {
		return err
	}
	if err := e.storeAmount(deployedTotalKey, deployedTotal); err != nil {
		return err
	}
	e.emit(events.VaultDeployed{Venue: venue, Amount: common.Clone(amount), Deployed: common.Clone(deployed)})
	return nil
}

// WithdrawYield pulls amount back from a venue into the yield pool.
func (e *Engine) WithdrawYield(caller, venue [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.RequireAdmin(e.state, common.ModuleVault, caller); err != nil {
		return err
	}
	if err := common.ValidateAmount(amount); err != nil {
		return err
	}
	deployed, err := e.DeployedAmount(venue)
	if err != nil {
		return err
	}
	if amount.Cmp(deployed) > 0 {
		return ErrInsufficientDeploy
	}
	deployedTotal, err := e.TotalDeployed()
	if err != nil {
		return err
	}
	pool, err := e.TotalYield()
	if err != nil {
		return err
	}
	if err := e.transfer.Transfer(venue, e.holding, amount); err != nil {
		return fmt.Errorf("vault: withdraw yield: %w", err)
	}
	deployed.Sub(deployed, amount)
	deployedTotal.Sub(deployedTotal, amount)
	pool.Add(pool, amount)
	if err := e.storeAmount(deployedKey(venue), deployed); err != nil {
		return err
	}
	if err := e.storeAmount(deployedTotalKey, deployedTotal); err != nil {
		return err
	}
	if err := e.storeAmount(yieldPoolKey, pool); err != nil {
		return err
	}
	e.emit(events.VaultYieldWithdrawn{Venue: venue, Amount: common.Clone(amount), Deployed: common.Clone(deployed), YieldPool: common.Clone(pool)})
	return nil
}

// DistributeYield releases amount from the yield pool to recipient.
func (e *Engine) DistributeYield(caller, recipient [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.RequireAdmin(e.state, common.ModuleVault, caller); err != nil {
		return err
	}
	if common.ZeroAddress(recipient) {
		return ErrZeroAddress
	}
	if err := common.ValidateAmount(amount); err != nil {
		return err
	}
	pool, err := e.TotalYield()
	if err != nil {
		return err
	}
	if amount.Cmp(pool) > 0 {
		return ErrInsufficientYield
	}
	distributed, err := e.TotalDistributed()
	if err != nil {
		return err
	}
	if err := e.transfer.Transfer(e.holding, recipient, amount); err != nil {
		return fmt.Errorf("vault: distribute yield: %w", err)
	}
	pool.Sub(pool, amount)
	distributed.Add(distributed, amount)
	if err := e.storeAmount(yieldPoolKey, pool); err != nil {
		return err
	}
	if err := e.storeAmount(distributedKey, distributed); err != nil {
		return err
	}
	e.emit(events.VaultYieldDistributed{Recipient: recipient, Amount: common.Clone(amount), YieldPool: common.Clone(pool)})
	return nil
}

// Balance returns the donor's un-withdrawn principal.
func (e *Engine) Balance(donor [20]byte) (*big.Int, error) {
	return e.loadAmount(balanceKey(donor))
}

// TotalDeposits returns the sum of all donor principal.
func (e *Engine) TotalDeposits() (*big.Int, error) {
	return e.loadAmount(totalKey)
}

// TotalYield returns the undistributed yield pool.
func (e *Engine) TotalYield() (*big.Int, error) {
	return e.loadAmount(yieldPoolKey)
}

// DeployedAmount returns the capital currently deployed at venue.
func (e *Engine) DeployedAmount(venue [20]byte) (*big.Int, error) {
	return e.loadAmount(deployedKey(venue))
}

// TotalDeployed returns the capital deployed across all venues.
func (e *Engine) TotalDeployed() (*big.Int, error) {
	return e.loadAmount(deployedTotalKey)
}

// TotalDistributed returns the cumulative yield released to recipients.
func (e *Engine) TotalDistributed() (*big.Int, error) {
	return e.loadAmount(distributedKey)
}

// IdlePrincipal returns principal that is neither deployed nor withdrawn.
func (e *Engine) IdlePrincipal() (*big.Int, error) {
	total, err := e.TotalDeposits()
	if err != nil {
		return nil, err
	}
	deployed, err := e.TotalDeployed()
	if err != nil {
		return nil, err
	}
	idle := new(big.Int).Sub(total, deployed)
	if idle.Sign() < 0 {
		idle.SetInt64(0)
	}
	return idle, nil
}

// Donors lists every address that has ever deposited, in first-deposit order.
func (e *Engine) Donors() ([][20]byte, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(donorIndexKey, &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		var addr [20]byte
		copy(addr[:], entry)
		out = append(out, addr)
	}
	return out, nil
}
