package vouchers_test

import (
	"errors"
	"math/big"
	"testing"

	aiderrors "aidchain/core/errors"
	"aidchain/core/events"
	"aidchain/core/state"
	"aidchain/native/bank"
	"aidchain/native/common"
	"aidchain/native/vouchers"
	"aidchain/storage"
	statetrie "aidchain/storage/trie"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) {
	c.events = append(c.events, e)
}

type fakeMerchants struct {
	verified map[[20]byte]bool
	volume   map[[20]byte]*big.Int
}

func newFakeMerchants(verified ...[20]byte) *fakeMerchants {
	f := &fakeMerchants{verified: map[[20]byte]bool{}, volume: map[[20]byte]*big.Int{}}
	for _, m := range verified {
		f.verified[m] = true
	}
	return f
}

func (f *fakeMerchants) IsVerified(addr [20]byte) (bool, error) {
	return f.verified[addr], nil
}

func (f *fakeMerchants) RecordRedemption(merchant [20]byte, amount *big.Int) error {
	if !f.verified[merchant] {
		return nil
	}
	current, ok := f.volume[merchant]
	if !ok {
		current = big.NewInt(0)
	}
	f.volume[merchant] = new(big.Int).Add(current, amount)
	return nil
}

type fakePrograms map[uint64]bool

func (f fakePrograms) ProgramActive(id uint64) (bool, error) {
	return f[id], nil
}

func addr(fill byte) [20]byte {
	var a [20]byte
	a[19] = fill
	return a
}

var (
	admin       = addr(0xAD)
	issuer      = addr(0x1A)
	beneficiary = addr(0xBE)
	merchant    = addr(0x51)
	holding     = addr(0x30)
)

type fixture struct {
	engine    *vouchers.Engine
	manager   *state.Manager
	ledger    *bank.Ledger
	merchants *fakeMerchants
	programs  fakePrograms
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := statetrie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("create trie: %v", err)
	}
	manager := state.NewManager(tr)
	if err := manager.RegisterToken("USDC", "USD Coin", 6); err != nil {
		t.Fatalf("register token: %v", err)
	}
	ledger := bank.NewLedger(manager, "USDC")
	if err := ledger.Mint(holding, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	f := &fixture{
		engine:    vouchers.NewEngine(),
		manager:   manager,
		ledger:    ledger,
		merchants: newFakeMerchants(merchant),
		programs:  fakePrograms{1: true, 2: true},
	}
	f.engine.SetState(manager)
	f.engine.SetTransferer(ledger)
	f.engine.SetMerchants(f.merchants)
	f.engine.SetPrograms(f.programs)
	f.engine.SetHolding(holding)
	f.engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	if err := f.engine.Initialize(admin); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return f
}

func TestIssueAndRedeemScenario(t *testing.T) {
	f := newFixture(t)
	emitter := &capturingEmitter{}
	f.engine.SetEmitter(emitter)

	balance, err := f.engine.IssueVoucher(admin, beneficiary, 1, big.NewInt(100))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected balance 100, got %s", balance)
	}
	redemption, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 1, big.NewInt(60), []byte("receipt"))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redemption.ID != 1 || redemption.Timestamp != 1_700_000_000 || redemption.Verified {
		t.Fatalf("unexpected redemption %+v", redemption)
	}
	remaining, _ := f.engine.VoucherBalance(beneficiary, 1)
	if remaining.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected remaining 40, got %s", remaining)
	}
	paid, _ := f.ledger.BalanceOf(merchant)
	if paid.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("merchant should be paid 60, got %s", paid)
	}
	if f.merchants.volume[merchant].Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("merchant stats not recorded")
	}
	stored, err := f.engine.Redemption(1)
	if err != nil || string(stored.ProofHash) != "receipt" || stored.Merchant != merchant {
		t.Fatalf("unexpected stored redemption %+v err=%v", stored, err)
	}
	if len(emitter.events) != 2 || emitter.events[1].EventType() != events.TypeVoucherRedeemed {
		t.Fatalf("expected issue and redeem events, got %d", len(emitter.events))
	}

	root := f.manager.Trie().Hash()
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 1, big.NewInt(50), nil); !errors.Is(err, aiderrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if f.manager.Trie().Hash() != root {
		t.Fatalf("failed redemption mutated state")
	}
	remaining, _ = f.engine.VoucherBalance(beneficiary, 1)
	if remaining.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("balance changed after failed redemption: %s", remaining)
	}
}

func TestRedemptionIDsAreSequential(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.IssueVoucher(admin, beneficiary, 1, big.NewInt(30)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	for want := uint64(1); want <= 3; want++ {
		r, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 1, big.NewInt(10), nil)
		if err != nil {
			t.Fatalf("redeem %d: %v", want, err)
		}
		if r.ID != want {
			t.Fatalf("expected id %d, got %d", want, r.ID)
		}
	}
	count, err := f.engine.RedemptionCount()
	if err != nil || count != 3 {
		t.Fatalf("expected 3 redemptions, got %d err=%v", count, err)
	}
	ids, err := f.engine.BeneficiaryRedemptions(beneficiary)
	if err != nil || len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("unexpected beneficiary index %v err=%v", ids, err)
	}
	if n, _ := f.engine.BeneficiaryRedemptionCount(addr(0x77)); n != 0 {
		t.Fatalf("unknown beneficiary should have no redemptions")
	}
}

func TestBalancesArePerProgram(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.IssueVoucher(admin, beneficiary, 1, big.NewInt(20)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.engine.IssueVoucher(admin, beneficiary, 1, big.NewInt(5)); err != nil {
		t.Fatalf("issue additive: %v", err)
	}
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 2, big.NewInt(1), nil); !errors.Is(err, vouchers.ErrInsufficientVoucherBalance) {
		t.Fatalf("program 2 balance must be separate, got %v", err)
	}
	balance, _ := f.engine.VoucherBalance(beneficiary, 1)
	if balance.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("expected additive credit 25, got %s", balance)
	}
}

func TestRedeemRequiresVerifiedMerchantAndActiveProgram(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.IssueVoucher(admin, beneficiary, 1, big.NewInt(100)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	root := f.manager.Trie().Hash()
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, addr(0x52), 1, big.NewInt(10), nil); !errors.Is(err, vouchers.ErrMerchantNotVerified) {
		t.Fatalf("expected merchant not verified, got %v", err)
	}
	f.programs[1] = false
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 1, big.NewInt(10), nil); !errors.Is(err, aiderrors.ErrInvalidState) {
		t.Fatalf("expected inactive program, got %v", err)
	}
	if _, err := f.engine.IssueVoucher(admin, beneficiary, 1, big.NewInt(10)); !errors.Is(err, vouchers.ErrProgramInactive) {
		t.Fatalf("issuance against inactive program, got %v", err)
	}
	if f.manager.Trie().Hash() != root {
		t.Fatalf("rejected operations mutated state")
	}
}

func TestRedeemAuthorizationAndAmounts(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.IssueVoucher(admin, beneficiary, 1, big.NewInt(100)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	root := f.manager.Trie().Hash()
	if _, err := f.engine.RedeemVoucher(merchant, beneficiary, merchant, 1, big.NewInt(10), nil); !errors.Is(err, aiderrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 1, big.NewInt(0), nil); !errors.Is(err, aiderrors.ErrInvalidAmount) {
		t.Fatalf("expected zero amount rejection, got %v", err)
	}
	if _, err := f.engine.IssueVoucher(beneficiary, beneficiary, 1, big.NewInt(10)); !errors.Is(err, vouchers.ErrUnauthorized) {
		t.Fatalf("expected issuer authorization, got %v", err)
	}
	if f.manager.Trie().Hash() != root {
		t.Fatalf("unauthorized calls mutated state")
	}

	if err := f.manager.SetRole(common.RoleVoucherIssuer, issuer[:]); err != nil {
		t.Fatalf("grant role: %v", err)
	}
	if _, err := f.engine.IssueVoucher(issuer, beneficiary, 1, big.NewInt(10)); err != nil {
		t.Fatalf("issuer role should issue: %v", err)
	}
}

func TestRedeemTransferFailureLeavesBalance(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.IssueVoucher(admin, beneficiary, 1, big.NewInt(5_000)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	root := f.manager.Trie().Hash()
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 1, big.NewInt(2_000), nil); !errors.Is(err, aiderrors.ErrTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	if f.manager.Trie().Hash() != root {
		t.Fatalf("failed payment mutated state")
	}
}

func TestVerifyRedemption(t *testing.T) {
	f := newFixture(t)
	verifier := addr(0x7E)
	if _, err := f.engine.IssueVoucher(admin, beneficiary, 1, big.NewInt(10)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 1, big.NewInt(10), nil); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if err := f.engine.VerifyRedemption(verifier, 1); !errors.Is(err, aiderrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized verifier, got %v", err)
	}
	if err := f.manager.SetRole(common.RoleRedemptionVerifier, verifier[:]); err != nil {
		t.Fatalf("grant role: %v", err)
	}
	emitter := &capturingEmitter{}
	f.engine.SetEmitter(emitter)
	if err := f.engine.VerifyRedemption(verifier, 1); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := f.engine.VerifyRedemption(admin, 1); err != nil {
		t.Fatalf("re-verify should be a no-op: %v", err)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected a single verification event, got %d", len(emitter.events))
	}
	r, _ := f.engine.Redemption(1)
	if !r.Verified {
		t.Fatalf("redemption should be verified")
	}
	if err := f.engine.VerifyRedemption(admin, 9); !errors.Is(err, vouchers.ErrRedemptionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRedemptionQuota(t *testing.T) {
	f := newFixture(t)
	f.engine.SetRedemptionQuota(common.Quota{MaxRequestsPerEpoch: 2, MaxAmountPerEpoch: big.NewInt(50)})
	if _, err := f.engine.IssueVoucher(admin, beneficiary, 1, big.NewInt(100)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 1, big.NewInt(45), nil); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 1, big.NewInt(10), nil); !errors.Is(err, vouchers.ErrQuotaExceeded) {
		t.Fatalf("expected amount quota, got %v", err)
	}
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 1, big.NewInt(5), nil); err != nil {
		t.Fatalf("redeem within quota: %v", err)
	}
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 1, big.NewInt(1), nil); !errors.Is(err, aiderrors.ErrInvalidState) {
		t.Fatalf("expected request quota, got %v", err)
	}

	f.engine.SetNowFunc(func() int64 { return 1_700_000_000 + 86_400 })
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, merchant, 1, big.NewInt(10), nil); err != nil {
		t.Fatalf("quota should reset next epoch: %v", err)
	}
}

func TestUnknownMerchantStatsIgnored(t *testing.T) {
	f := newFixture(t)
	other := addr(0x53)
	f.merchants.verified[other] = true
	if _, err := f.engine.IssueVoucher(admin, beneficiary, 1, big.NewInt(10)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.engine.RedeemVoucher(beneficiary, beneficiary, other, 1, big.NewInt(10), nil); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, ok := f.merchants.volume[merchant]; ok {
		t.Fatalf("stats recorded for the wrong merchant")
	}
}

type pauseAll struct{}

func (pauseAll) IsPaused(string) bool { return true }

func TestPausedVouchers(t *testing.T) {
	f := newFixture(t)
	f.engine.SetPauses(pauseAll{})
	if _, err := f.engine.IssueVoucher(admin, beneficiary, 1, big.NewInt(10)); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	balance, err := f.engine.VoucherBalance(beneficiary, 1)
	if err != nil || balance.Sign() != 0 {
		t.Fatalf("reads should work while paused")
	}
}
