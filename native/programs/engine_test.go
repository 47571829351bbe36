package programs_test

import (
	"errors"
	"math/big"
	"testing"

	aiderrors "aidchain/core/errors"
	"aidchain/core/events"
	"aidchain/core/state"
	"aidchain/native/bank"
	"aidchain/native/programs"
	"aidchain/storage"
	statetrie "aidchain/storage/trie"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) {
	c.events = append(c.events, e)
}

func addr(fill byte) [20]byte {
	var a [20]byte
	a[19] = fill
	return a
}

var (
	admin         = addr(0xAD)
	ngo           = addr(0x0A)
	beneficiary   = addr(0xBE)
	holding       = addr(0x20)
	voucherLedger = addr(0x30)
)

func newTestEngine(t *testing.T) (*programs.Engine, *state.Manager, *bank.Ledger) {
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
	engine := programs.NewEngine()
	engine.SetState(manager)
	engine.SetTransferer(ledger)
	engine.SetHolding(holding)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	if err := engine.Initialize(admin); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return engine, manager, ledger
}

func TestCreateAndAllocateScenario(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)

	id, err := engine.CreateProgram(ngo, "Food", programs.CategoryFood, big.NewInt(500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}

	root := manager.Trie().Hash()
	err = engine.AllocateToProgram(admin, 1, big.NewInt(600))
	if !errors.Is(err, programs.ErrBudgetExceeded) || !errors.Is(err, aiderrors.ErrBudgetExceeded) {
		t.Fatalf("expected budget exceeded, got %v", err)
	}
	if manager.Trie().Hash() != root {
		t.Fatalf("failed allocation mutated state")
	}
	if err := engine.AllocateToProgram(admin, 1, big.NewInt(400)); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	program, err := engine.Program(1)
	if err != nil {
		t.Fatalf("program: %v", err)
	}
	if program.Allocated.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected allocated 400, got %s", program.Allocated)
	}
	if program.Allocated.Cmp(program.TotalBudget) > 0 {
		t.Fatalf("allocation exceeded budget")
	}
	if err := engine.AllocateToProgram(admin, 1, big.NewInt(101)); !errors.Is(err, programs.ErrBudgetExceeded) {
		t.Fatalf("expected budget exceeded on overflow, got %v", err)
	}
	if err := engine.AllocateToProgram(admin, 1, big.NewInt(100)); err != nil {
		t.Fatalf("allocate to ceiling: %v", err)
	}
	if len(emitter.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(emitter.events))
	}
}

func TestAllocateRequiresAdmin(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	if _, err := engine.CreateProgram(ngo, "Clinic", programs.CategoryHealthcare, big.NewInt(100)); err != nil {
		t.Fatalf("create: %v", err)
	}
	root := manager.Trie().Hash()
	if err := engine.AllocateToProgram(ngo, 1, big.NewInt(10)); !errors.Is(err, aiderrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := engine.DeactivateProgram(ngo, 1); !errors.Is(err, aiderrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized deactivate, got %v", err)
	}
	if manager.Trie().Hash() != root {
		t.Fatalf("unauthorized calls mutated state")
	}
	if err := engine.AllocateToProgram(admin, 9, big.NewInt(10)); !errors.Is(err, programs.ErrProgramNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIssueVoucherTracksSpent(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	if err := ledger.Mint(holding, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	id, err := engine.CreateProgram(ngo, "Shelter", programs.CategoryHousing, big.NewInt(500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := engine.AllocateToProgram(admin, id, big.NewInt(300)); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if err := engine.IssueVoucher(admin, id, beneficiary, big.NewInt(10), voucherLedger); !errors.Is(err, programs.ErrUnauthorized) {
		t.Fatalf("only the NGO may issue, got %v", err)
	}
	if err := engine.IssueVoucher(ngo, id, beneficiary, big.NewInt(301), voucherLedger); !errors.Is(err, aiderrors.ErrInsufficientAllocation) {
		t.Fatalf("expected insufficient allocation, got %v", err)
	}
	if err := engine.IssueVoucher(ngo, id, beneficiary, big.NewInt(200), voucherLedger); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := engine.IssueVoucher(ngo, id, beneficiary, big.NewInt(101), voucherLedger); !errors.Is(err, programs.ErrInsufficientAllocation) {
		t.Fatalf("spent must count against allocation, got %v", err)
	}
	program, _ := engine.Program(id)
	if program.Allocated.Cmp(big.NewInt(300)) != 0 || program.Spent.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("unexpected counters allocated=%s spent=%s", program.Allocated, program.Spent)
	}
	if program.Unspent().Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected unspent %s", program.Unspent())
	}
	held, _ := ledger.BalanceOf(voucherLedger)
	if held.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("voucher ledger should hold 200, got %s", held)
	}
}

func TestIssueVoucherTransferFailure(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	id, _ := engine.CreateProgram(ngo, "Food", programs.CategoryFood, big.NewInt(500))
	if err := engine.AllocateToProgram(admin, id, big.NewInt(100)); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	root := manager.Trie().Hash()
	if err := engine.IssueVoucher(ngo, id, beneficiary, big.NewInt(50), voucherLedger); !errors.Is(err, aiderrors.ErrTransferFailed) {
		t.Fatalf("expected transfer failure from empty holding, got %v", err)
	}
	if manager.Trie().Hash() != root {
		t.Fatalf("failed transfer mutated state")
	}
}

func TestDeactivateProgram(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	_ = ledger.Mint(holding, big.NewInt(100))
	id, _ := engine.CreateProgram(ngo, "Relief", programs.CategoryEmergency, big.NewInt(100))
	if err := engine.AllocateToProgram(admin, id, big.NewInt(50)); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := engine.DeactivateProgram(admin, id); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := engine.DeactivateProgram(admin, id); err != nil {
		t.Fatalf("deactivate twice: %v", err)
	}
	active, err := engine.ProgramActive(id)
	if err != nil || active {
		t.Fatalf("program should be inactive")
	}
	if err := engine.AllocateToProgram(admin, id, big.NewInt(1)); !errors.Is(err, programs.ErrProgramInactive) {
		t.Fatalf("expected inactive, got %v", err)
	}
	if err := engine.IssueVoucher(ngo, id, beneficiary, big.NewInt(1), voucherLedger); !errors.Is(err, aiderrors.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestProgramReadsAndValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	if _, err := engine.CreateProgram(ngo, " ", programs.CategoryFood, big.NewInt(1)); !errors.Is(err, programs.ErrInvalidProgram) {
		t.Fatalf("expected invalid program, got %v", err)
	}
	if _, err := engine.CreateProgram(ngo, "X", programs.Category(42), big.NewInt(1)); !errors.Is(err, programs.ErrInvalidCategory) {
		t.Fatalf("expected invalid category, got %v", err)
	}
	if _, err := engine.CreateProgram(ngo, "X", programs.CategoryFood, big.NewInt(-5)); !errors.Is(err, aiderrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := engine.CreateProgram(ngo, "School", programs.CategoryEducation, big.NewInt(10)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := engine.CreateProgram(addr(0x0B), "Other", programs.CategoryFood, big.NewInt(10)); err != nil {
		t.Fatalf("create: %v", err)
	}
	count, err := engine.ProgramCount()
	if err != nil || count != 4 {
		t.Fatalf("expected 4 programs, got %d err=%v", count, err)
	}
	owned, err := engine.ProgramsByOwner(ngo)
	if err != nil || len(owned) != 3 || owned[0] != 1 || owned[2] != 3 {
		t.Fatalf("unexpected owned programs %v err=%v", owned, err)
	}
	program, err := engine.Program(2)
	if err != nil || program.CreatedAt != 1_700_000_000 || !program.Active {
		t.Fatalf("unexpected program %+v err=%v", program, err)
	}
	if _, err := engine.Program(0); !errors.Is(err, aiderrors.ErrNotFound) {
		t.Fatalf("expected not found for zero id, got %v", err)
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range programs.Categories() {
		parsed, err := programs.ParseCategory(c.String())
		if err != nil || parsed != c {
			t.Fatalf("round trip failed for %s", c)
		}
	}
	if c, err := programs.ParseCategory("  healthCARE "); err != nil || c != programs.CategoryHealthcare {
		t.Fatalf("expected case-insensitive parse, got %v %v", c, err)
	}
	if _, err := programs.ParseCategory("transport"); !errors.Is(err, programs.ErrInvalidCategory) {
		t.Fatalf("expected invalid category, got %v", err)
	}
}

func TestIssueVoucherChecksOwnerBeforeAmount(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	id, err := engine.CreateProgram(ngo, "Water", programs.CategoryFood, big.NewInt(500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	root := manager.Trie().Hash()
	for _, amount := range []*big.Int{big.NewInt(-5), big.NewInt(0), nil} {
		err := engine.IssueVoucher(admin, id, beneficiary, amount, voucherLedger)
		if !errors.Is(err, aiderrors.ErrUnauthorized) || errors.Is(err, aiderrors.ErrInvalidAmount) {
			t.Fatalf("non-owner with amount %v: expected unauthorized, got %v", amount, err)
		}
	}
	if err := engine.IssueVoucher(ngo, id, beneficiary, big.NewInt(-5), voucherLedger); !errors.Is(err, aiderrors.ErrInvalidAmount) {
		t.Fatalf("owner with negative amount: expected invalid amount, got %v", err)
	}
	if manager.Trie().Hash() != root {
		t.Fatalf("rejected issuance mutated state")
	}
}
