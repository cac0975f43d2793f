package bank

import (
	"errors"
	"testing"

	"tycoon/internal/economy"
	"tycoon/internal/ledger"
)

func newCreditFixture(t *testing.T) (*ledger.Store, *economy.Monitor, *System) {
	t.Helper()
	store := ledger.NewStore()
	if err := store.AddPlayer(ledger.Player{ID: "alice", Cash: 1_000, Active: true, Human: true}); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if err := store.AddProperty(ledger.Property{ID: "boardwalk", Group: "darkblue", BasePrice: 200, BaseRent: 25}); err != nil {
		t.Fatalf("AddProperty: %v", err)
	}
	monitor := economy.NewMonitor(economy.DefaultThresholds)
	return store, monitor, NewSystem(store, monitor, DefaultConfig())
}

func giveProperty(t *testing.T, store *ledger.Store, propertyID, ownerID string) {
	t.Helper()
	p, err := store.Property(propertyID)
	if err != nil {
		t.Fatalf("Property(%s): %v", propertyID, err)
	}
	release := store.Acquire(ledger.PropertyKey(propertyID))
	p.OwnerID = ownerID
	release()
}

func TestQuotedRateFollowsRegime(t *testing.T) {
	_, monitor, sys := newCreditFixture(t)
	if sys.QuotedRate() != 0.08 {
		t.Fatalf("stable rate = %v, want 0.08", sys.QuotedRate())
	}
	monitor.Restore(economy.State{Regime: "recession", Factor: 0.9})
	if got := sys.RequoteRates(); got != 0.05 {
		t.Fatalf("recession rate = %v, want floor 0.05", got)
	}
	monitor.Restore(economy.State{Regime: "overheated", Factor: 1.4})
	if got := sys.RequoteRates(); got != 0.14 {
		t.Fatalf("overheated rate = %v, want 0.14", got)
	}
}

func TestTakeLoanDisbursesFromTreasury(t *testing.T) {
	store, _, sys := newCreditFixture(t)
	treasuryBefore := store.Treasury()

	inst, err := sys.TakeLoan("alice", 500, 0)
	if err != nil {
		t.Fatalf("TakeLoan: %v", err)
	}
	if inst.Kind != KindLoan || inst.Principal != 500 || !inst.Active {
		t.Fatalf("instrument = %+v", inst)
	}
	alice, _ := store.PlayerView("alice")
	if alice.Cash != 1_500 {
		t.Fatalf("alice cash = %d, want 1500", alice.Cash)
	}
	if got := store.Treasury(); got != treasuryBefore-500 {
		t.Fatalf("treasury = %d, want %d", got, treasuryBefore-500)
	}
	if got := sys.OutstandingPrincipal(); got != 500 {
		t.Fatalf("outstanding = %d, want 500", got)
	}
}

func TestTakeLoanBelowMinimum(t *testing.T) {
	_, _, sys := newCreditFixture(t)
	if _, err := sys.TakeLoan("alice", 50, 0); !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("tiny loan err = %v, want ErrBelowMinimum", err)
	}
}

func TestDebtCap(t *testing.T) {
	_, _, sys := newCreditFixture(t)
	// Net worth is 1000 cash, so the cap is 2000.
	if _, err := sys.TakeLoan("alice", 2_500, 0); !errors.Is(err, ErrDebtCapExceeded) {
		t.Fatalf("over-cap err = %v, want ErrDebtCapExceeded", err)
	}
	var capErr *DebtCapError
	_, err := sys.TakeLoan("alice", 2_500, 0)
	if !errors.As(err, &capErr) {
		t.Fatalf("err %T does not unwrap to DebtCapError", err)
	}
	if capErr.Cap != 2_000 || capErr.Requested != 2_500 || capErr.Outstanding != 0 {
		t.Fatalf("DebtCapError = %+v", capErr)
	}

	// Existing debt counts against the cap but the disbursed cash also
	// raises net worth, so a second loan can still clear.
	if _, err := sys.TakeLoan("alice", 1_000, 0); err != nil {
		t.Fatalf("first loan: %v", err)
	}
	if _, err := sys.TakeLoan("alice", 4_000, 0); !errors.Is(err, ErrDebtCapExceeded) {
		t.Fatalf("second over-cap err = %v, want ErrDebtCapExceeded", err)
	}
}

func TestRepayLoan(t *testing.T) {
	store, _, sys := newCreditFixture(t)
	inst, err := sys.TakeLoan("alice", 500, 0)
	if err != nil {
		t.Fatalf("TakeLoan: %v", err)
	}

	updated, err := sys.RepayLoan(inst.ID, 200)
	if err != nil {
		t.Fatalf("RepayLoan: %v", err)
	}
	if updated.Principal != 300 || !updated.Active {
		t.Fatalf("after partial repay = %+v", updated)
	}

	// Overpayment clamps to the remaining principal.
	updated, err = sys.RepayLoan(inst.ID, 9_999)
	if err != nil {
		t.Fatalf("final repay: %v", err)
	}
	if updated.Principal != 0 || updated.Active {
		t.Fatalf("after final repay = %+v", updated)
	}
	alice, _ := store.PlayerView("alice")
	if alice.Cash != 1_000 {
		t.Fatalf("alice cash = %d, want 1000", alice.Cash)
	}

	if _, err := sys.RepayLoan(inst.ID, 100); !errors.Is(err, ErrInstrumentClosed) {
		t.Fatalf("repay closed err = %v, want ErrInstrumentClosed", err)
	}
}

func TestMortgageRoundTrip(t *testing.T) {
	store, _, sys := newCreditFixture(t)
	giveProperty(t, store, "boardwalk", "alice")

	value, err := sys.Mortgage("alice", "boardwalk", 0)
	if err != nil {
		t.Fatalf("Mortgage: %v", err)
	}
	if value != 100 {
		t.Fatalf("mortgage value = %d, want half of 200", value)
	}
	prop, _ := store.PropertyView("boardwalk")
	if !prop.Lien || prop.LienKind != ledger.LienMortgage || prop.LienAmount != 100 {
		t.Fatalf("lien state = %+v", prop)
	}

	if _, err := sys.Mortgage("alice", "boardwalk", 0); !errors.Is(err, ledger.ErrPropertyLiened) {
		t.Fatalf("double mortgage err = %v, want ErrPropertyLiened", err)
	}

	cost, err := sys.Unmortgage("alice", "boardwalk")
	if err != nil {
		t.Fatalf("Unmortgage: %v", err)
	}
	if cost != 110 {
		t.Fatalf("unmortgage cost = %d, want 110%% of 100", cost)
	}
	prop, _ = store.PropertyView("boardwalk")
	if prop.Lien || prop.LienKind != ledger.LienNone {
		t.Fatalf("lien not cleared: %+v", prop)
	}
	// The round trip costs the 10% premium.
	alice, _ := store.PlayerView("alice")
	if alice.Cash != 990 {
		t.Fatalf("alice cash = %d, want 990", alice.Cash)
	}

	if _, err := sys.Unmortgage("alice", "boardwalk"); !errors.Is(err, ledger.ErrNoLien) {
		t.Fatalf("second unmortgage err = %v, want ErrNoLien", err)
	}
}

func TestHELOCEquityLimit(t *testing.T) {
	store, _, sys := newCreditFixture(t)
	giveProperty(t, store, "boardwalk", "alice")

	if _, err := sys.TakeHELOC("alice", "boardwalk", 150, 0); !errors.Is(err, ErrOverEquityLimit) {
		t.Fatalf("over-equity err = %v, want ErrOverEquityLimit", err)
	}
	inst, err := sys.TakeHELOC("alice", "boardwalk", 140, 0)
	if err != nil {
		t.Fatalf("TakeHELOC at the limit: %v", err)
	}
	if inst.Kind != KindHELOC || inst.Collateral != "boardwalk" {
		t.Fatalf("instrument = %+v", inst)
	}
	prop, _ := store.PropertyView("boardwalk")
	if !prop.Lien || prop.LienKind != ledger.LienHELOC {
		t.Fatalf("lien state = %+v", prop)
	}

	// Repaying in full releases the lien.
	if _, err := sys.RepayLoan(inst.ID, 140); err != nil {
		t.Fatalf("RepayLoan: %v", err)
	}
	prop, _ = store.PropertyView("boardwalk")
	if prop.Lien {
		t.Fatalf("heloc lien not cleared: %+v", prop)
	}
}

func TestCDWithdrawalSchedule(t *testing.T) {
	tests := []struct {
		name        string
		withdrawLap int
		want        int64
	}{
		// 1000 at 8% over 3 laps: early exit forfeits interest and pays a
		// 10% penalty, mid-term pays half interest minus 5%, maturity pays
		// the full return.
		{"early", 1, 900},
		{"mid-term", 2, 990},
		{"maturity", 3, 1_080},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, sys := newCreditFixture(t)
			inst, err := sys.CreateCD("alice", 1_000, 3, 0)
			if err != nil {
				t.Fatalf("CreateCD: %v", err)
			}
			alice, _ := store.PlayerView("alice")
			if alice.Cash != 0 {
				t.Fatalf("cash after lock-up = %d, want 0", alice.Cash)
			}
			payout, _, err := sys.WithdrawCD(inst.ID, tt.withdrawLap)
			if err != nil {
				t.Fatalf("WithdrawCD: %v", err)
			}
			if payout != tt.want {
				t.Fatalf("payout = %d, want %d", payout, tt.want)
			}
		})
	}
}

func TestCreateCDBadTerm(t *testing.T) {
	_, _, sys := newCreditFixture(t)
	if _, err := sys.CreateCD("alice", 500, 4, 0); !errors.Is(err, ErrBadTerm) {
		t.Fatalf("bad term err = %v, want ErrBadTerm", err)
	}
}

func TestAccrueLapsCompoundsAndForecloses(t *testing.T) {
	_, _, sys := newCreditFixture(t)
	inst, err := sys.TakeLoan("alice", 1_000, 0)
	if err != nil {
		t.Fatalf("TakeLoan: %v", err)
	}

	var foreclosed []Foreclosure
	for lap := 1; lap <= 6; lap++ {
		f, _ := sys.AccrueLaps(lap)
		foreclosed = append(foreclosed, f...)
	}
	if len(foreclosed) != 1 {
		t.Fatalf("foreclosures = %d, want 1 after 6 unpaid laps", len(foreclosed))
	}
	if foreclosed[0].InstrumentID != inst.ID || foreclosed[0].Kind != KindLoan {
		t.Fatalf("foreclosure = %+v", foreclosed[0])
	}
	// Six laps of 8% compounding.
	live, _ := sys.Instrument(inst.ID)
	if live.Principal <= 1_000 {
		t.Fatalf("principal = %d, want compounded above 1000", live.Principal)
	}
}

func TestRepaymentResetsForeclosureClock(t *testing.T) {
	_, _, sys := newCreditFixture(t)
	inst, err := sys.TakeLoan("alice", 200, 0)
	if err != nil {
		t.Fatalf("TakeLoan: %v", err)
	}
	for lap := 1; lap <= 5; lap++ {
		if f, _ := sys.AccrueLaps(lap); len(f) != 0 {
			t.Fatalf("premature foreclosure at lap %d", lap)
		}
	}
	if _, err := sys.RepayLoan(inst.ID, 50); err != nil {
		t.Fatalf("RepayLoan: %v", err)
	}
	if f, _ := sys.AccrueLaps(6); len(f) != 0 {
		t.Fatal("foreclosure fired despite recent repayment")
	}
}

func TestAccrueLapsMaturesCDs(t *testing.T) {
	store, _, sys := newCreditFixture(t)
	inst, err := sys.CreateCD("alice", 1_000, 3, 0)
	if err != nil {
		t.Fatalf("CreateCD: %v", err)
	}
	_, matured := sys.AccrueLaps(3)
	if len(matured) != 1 || matured[0].InstrumentID != inst.ID {
		t.Fatalf("matured = %+v", matured)
	}
	if matured[0].Payout != 1_080 {
		t.Fatalf("payout = %d, want 1080", matured[0].Payout)
	}
	alice, _ := store.PlayerView("alice")
	if alice.Cash != 1_080 {
		t.Fatalf("alice cash = %d, want 1080", alice.Cash)
	}
	// A matured certificate does not pay twice.
	if _, again := sys.AccrueLaps(4); len(again) != 0 {
		t.Fatal("certificate matured twice")
	}
}

func TestSnapshotRestore(t *testing.T) {
	store, monitor, sys := newCreditFixture(t)
	if _, err := sys.TakeLoan("alice", 500, 2); err != nil {
		t.Fatalf("TakeLoan: %v", err)
	}
	st := sys.Snapshot()

	restored := NewSystem(store, monitor, DefaultConfig())
	restored.Restore(st)
	if got := restored.OutstandingPrincipal(); got != 500 {
		t.Fatalf("outstanding after restore = %d, want 500", got)
	}
	insts := restored.InstrumentsFor("alice")
	if len(insts) != 1 || insts[0].StartLap != 2 {
		t.Fatalf("instruments after restore = %+v", insts)
	}
}
