package vouchers

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"aidchain/core/events"
	"aidchain/core/state"
	"aidchain/native/bank"
	"aidchain/native/common"
)

var (
	errNilState     = errors.New("voucher engine: state not configured")
	errNilTransfer  = errors.New("voucher engine: asset transfer not configured")
	errNilMerchants = errors.New("voucher engine: merchant registry not configured")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	NextSequence(key []byte) (uint64, error)
	Sequence(key []byte) (uint64, error)
	HasRole(role string, addr []byte) bool
}

// MerchantView is the slice of the merchant registry consulted during
// redemption.
type MerchantView interface {
	IsVerified(addr [20]byte) (bool, error)
	RecordRedemption(merchant [20]byte, amount *big.Int) error
}

// ProgramView reports whether a program accepts voucher activity.
type ProgramView interface {
	ProgramActive(id uint64) (bool, error)
}

// Engine keeps per-(beneficiary, program) voucher balances and the redemption
// log. Voucher funds are held at the engine's holding address.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	transfer  bank.Transferer
	merchants MerchantView
	programs  ProgramView
	pauses    common.PauseView
	quota     common.Quota
	holding   [20]byte
	nowFn     func() int64
}

// NewEngine creates a voucher engine with a no-op emitter.
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

// SetMerchants configures the merchant registry consulted on redemption.
func (e *Engine) SetMerchants(m MerchantView) { e.merchants = m }

// SetPrograms configures the program view used to reject inactive programs.
func (e *Engine) SetPrograms(p ProgramView) { e.programs = p }

// SetPauses configures the pause switch consulted before every mutation.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetRedemptionQuota limits how often and how much each beneficiary may
// redeem per epoch. The zero quota disables the limit.
func (e *Engine) SetRedemptionQuota(q common.Quota) { e.quota = q }

// SetHolding configures the address voucher funds are held at.
func (e *Engine) SetHolding(addr [20]byte) { e.holding = addr }

// Holding returns the voucher ledger's holding address.
func (e *Engine) Holding() [20]byte { return e.holding }

// SetNowFunc overrides the time source used for redemption timestamps.
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
	return common.Guard(e.pauses, common.ModuleVouchers)
}

// Initialize records the voucher ledger admin. It can only be called once.
func (e *Engine) Initialize(admin [20]byte) error {
	if e.state == nil {
		return errNilState
	}
	return common.InitAdmin(e.state, common.ModuleVouchers, admin)
}

func (e *Engine) authorize(caller [20]byte, role string) error {
	if err := common.RequireAdmin(e.state, common.ModuleVouchers, caller); err == nil {
		return nil
	}
	if e.state.HasRole(role, caller[:]) {
		return nil
	}
	return fmt.Errorf("%w: admin or %s required", ErrUnauthorized, role)
}

func (e *Engine) checkProgram(programID uint64) error {
	if e.programs == nil {
		return nil
	}
	active, err := e.programs.ProgramActive(programID)
	if err != nil {
		return err
	}
	if !active {
		return ErrProgramInactive
	}
	return nil
}

// IssueVoucher credits amount to the beneficiary's balance for programID and
// returns the new balance. Credits are additive. The caller must be the admin
// or hold the voucher issuer role.
func (e *Engine) IssueVoucher(caller, beneficiary [20]byte, programID uint64, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.authorize(caller, common.RoleVoucherIssuer); err != nil {
		return nil, err
	}
	if common.ZeroAddress(beneficiary) || programID == 0 {
		return nil, fmt.Errorf("%w: beneficiary and program required", ErrInvalidVoucher)
	}
	if err := common.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := e.checkProgram(programID); err != nil {
		return nil, err
	}
	balance, err := e.VoucherBalance(beneficiary, programID)
	if err != nil {
		return nil, err
	}
	next, err := common.AddChecked(balance, amount)
	if err != nil {
		return nil, err
	}
	if err := e.state.KVPut(balanceKey(beneficiary, programID), next); err != nil {
		return nil, err
	}
	e.emit(events.VoucherIssued{Beneficiary: beneficiary, ProgramID: programID, Amount: common.Clone(amount), Balance: common.Clone(next)})
	return next, nil
}

// RedeemVoucher spends amount of the beneficiary's voucher balance at a
// verified merchant. The merchant is paid from the voucher holding address and
// a redemption record with the next sequential identifier is appended.
func (e *Engine) RedeemVoucher(caller, beneficiary, merchant [20]byte, programID uint64, amount *big.Int, proofHash []byte) (*Redemption, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.transfer == nil {
		return nil, errNilTransfer
	}
	if e.merchants == nil {
		return nil, errNilMerchants
	}
	if caller != beneficiary {
		return nil, fmt.Errorf("%w: caller is not the beneficiary", ErrUnauthorized)
	}
	if err := common.ValidatePositive(amount); err != nil {
		return nil, err
	}
	balance, err := e.VoucherBalance(beneficiary, programID)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(balance) > 0 {
		return nil, fmt.Errorf("%w: requested %s, balance %s", ErrInsufficientVoucherBalance, amount, balance)
	}
	verified, err := e.merchants.IsVerified(merchant)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, ErrMerchantNotVerified
	}
	if err := e.checkProgram(programID); err != nil {
		return nil, err
	}
	now := e.now()
	usage, err := e.checkQuota(beneficiary, now, amount)
	if err != nil {
		return nil, err
	}

	if err := e.transfer.Transfer(e.holding, merchant, amount); err != nil {
		return nil, fmt.Errorf("vouchers: pay merchant: %w", err)
	}
	if err := e.state.KVPut(balanceKey(beneficiary, programID), new(big.Int).Sub(balance, amount)); err != nil {
		return nil, err
	}
	if usage != nil {
		if err := e.state.KVPut(quotaKey(beneficiary), usage); err != nil {
			return nil, err
		}
	}
	id, err := e.state.NextSequence(redemptionCountKey)
	if err != nil {
		return nil, err
	}
	redemption := &Redemption{
		ID:          id,
		Beneficiary: beneficiary,
		Merchant:    merchant,
		ProgramID:   programID,
		Amount:      common.Clone(amount),
		Timestamp:   now,
		ProofHash:   append([]byte(nil), proofHash...),
	}
	if err := e.state.KVPut(redemptionKey(id), newStoredRedemption(redemption)); err != nil {
		return nil, err
	}
	if err := e.state.KVAppend(beneficiaryIndexKey(beneficiary), state.EncodeID(id)); err != nil {
		return nil, err
	}
	if err := e.merchants.RecordRedemption(merchant, amount); err != nil {
		return nil, err
	}
	e.emit(events.VoucherRedeemed{
		RedemptionID: id,
		Beneficiary:  beneficiary,
		Merchant:     merchant,
		ProgramID:    programID,
		Amount:       common.Clone(amount),
		ProofHash:    redemption.ProofHash,
		Timestamp:    now,
	})
	return redemption, nil
}

func (e *Engine) checkQuota(beneficiary [20]byte, now int64, amount *big.Int) (*storedQuota, error) {
	if !e.quota.Enabled() {
		return nil, nil
	}
	var stored storedQuota
	if _, err := e.state.KVGet(quotaKey(beneficiary), &stored); err != nil {
		return nil, err
	}
	prev := common.QuotaNow{ReqCount: stored.ReqCount, AmountUsed: stored.AmountUsed, EpochID: stored.EpochID}
	next, err := common.CheckQuota(e.quota, e.quota.Epoch(now), prev, 1, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return &storedQuota{
		ReqCount:   next.ReqCount,
		AmountUsed: common.Clone(next.AmountUsed),
		EpochID:    next.EpochID,
	}, nil
}

// VerifyRedemption marks a redemption verified. Verifying an already verified
// redemption is a no-op. The caller must be the admin or hold the redemption
// verifier role.
func (e *Engine) VerifyRedemption(caller [20]byte, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.authorize(caller, common.RoleRedemptionVerifier); err != nil {
		return err
	}
	redemption, err := e.Redemption(id)
	if err != nil {
		return err
	}
	if redemption.Verified {
		return nil
	}
	redemption.Verified = true
	if err := e.state.KVPut(redemptionKey(id), newStoredRedemption(redemption)); err != nil {
		return err
	}
	e.emit(events.RedemptionVerified{RedemptionID: id, Verifier: caller})
	return nil
}

// VoucherBalance returns the beneficiary's spendable balance for programID.
func (e *Engine) VoucherBalance(beneficiary [20]byte, programID uint64) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	balance := new(big.Int)
	ok, err := e.state.KVGet(balanceKey(beneficiary, programID), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// Redemption returns the redemption stored under id.
func (e *Engine) Redemption(id uint64) (*Redemption, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var stored storedRedemption
	ok, err := e.state.KVGet(redemptionKey(id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRedemptionNotFound
	}
	return stored.toRedemption(), nil
}

// RedemptionCount returns the number of redemptions ever recorded.
func (e *Engine) RedemptionCount() (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	return e.state.Sequence(redemptionCountKey)
}

// BeneficiaryRedemptions lists the redemption identifiers of beneficiary in
// the order they were recorded.
func (e *Engine) BeneficiaryRedemptions(beneficiary [20]byte) ([]uint64, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(beneficiaryIndexKey(beneficiary), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		ids = append(ids, state.DecodeID(entry))
	}
	return ids, nil
}

// BeneficiaryRedemptionCount returns how many redemptions beneficiary made.
func (e *Engine) BeneficiaryRedemptionCount(beneficiary [20]byte) (uint64, error) {
	ids, err := e.BeneficiaryRedemptions(beneficiary)
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}
