package economy

import (
	"errors"
	"testing"

	"tycoon/internal/ledger"
)

func newValuationFixture(t *testing.T) (*ledger.Store, *Monitor, *Valuation) {
	t.Helper()
	store := ledger.NewStore()
	if err := store.AddPlayer(ledger.Player{ID: "alice", Cash: 2_000, Active: true, Human: true}); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	props := []ledger.Property{
		{ID: "baltic", Group: "brown", BasePrice: 100, BaseRent: 10},
		{ID: "mediterranean", Group: "brown", BasePrice: 80, BaseRent: 8},
		{ID: "boardwalk", Group: "darkblue", BasePrice: 400, BaseRent: 50},
	}
	for _, p := range props {
		if err := store.AddProperty(p); err != nil {
			t.Fatalf("AddProperty(%s): %v", p.ID, err)
		}
	}
	monitor := NewMonitor(DefaultThresholds)
	return store, monitor, NewValuation(store, monitor)
}

func setOwner(t *testing.T, store *ledger.Store, propertyID, ownerID string) {
	t.Helper()
	p, err := store.Property(propertyID)
	if err != nil {
		t.Fatalf("Property(%s): %v", propertyID, err)
	}
	release := store.Acquire(ledger.PropertyKey(propertyID))
	p.OwnerID = ownerID
	release()
}

func TestTargetPrice(t *testing.T) {
	tests := []struct {
		base   int64
		factor float64
		want   int64
	}{
		{100, 1.0, 100},
		{100, 1.15, 115},
		{400, 0.85, 340},
		{350, 1.0375, 363},
		// Exact half products round up.
		{50, 1.15, 58},
		{10, 1.15, 12},
	}
	for _, tt := range tests {
		if got := TargetPrice(tt.base, tt.factor); got != tt.want {
			t.Errorf("TargetPrice(%d, %v) = %d, want %d", tt.base, tt.factor, got, tt.want)
		}
	}
}

func TestRentFor(t *testing.T) {
	tests := []struct {
		name        string
		baseRent    int64
		factor      float64
		improvement int
		ownsGroup   bool
		want        int64
	}{
		{"plain", 50, 1.0, 0, false, 50},
		{"inflated", 50, 1.15, 0, false, 58},
		{"improved doubles", 50, 1.0, 1, false, 100},
		{"group bonus", 50, 1.0, 0, true, 75},
		{"improved and group", 50, 1.0, 1, true, 150},
	}
	for _, tt := range tests {
		if got := RentFor(tt.baseRent, tt.factor, tt.improvement, tt.ownsGroup); got != tt.want {
			t.Errorf("%s: RentFor = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestRecomputeAllStepsTowardTarget(t *testing.T) {
	store, monitor, v := newValuationFixture(t)
	monitor.Restore(State{Regime: "inflation", Factor: 1.15})

	updated := v.RecomputeAll()
	if len(updated) == 0 {
		t.Fatal("expected repriced properties")
	}
	// Base 100 targets 115; one smoothing step covers a quarter of the gap.
	baltic, _ := store.PropertyView("baltic")
	if baltic.Price != 104 {
		t.Fatalf("baltic price = %d, want 104", baltic.Price)
	}
	// Rent is unsmoothed.
	if baltic.Rent != RentFor(10, 1.15, 0, false) {
		t.Fatalf("baltic rent = %d, want %d", baltic.Rent, RentFor(10, 1.15, 0, false))
	}

	// Repeated recomputes converge on the target without overshooting.
	for i := 0; i < 50; i++ {
		v.RecomputeAll()
	}
	baltic, _ = store.PropertyView("baltic")
	if baltic.Price < 114 || baltic.Price > 115 {
		t.Fatalf("baltic price after convergence = %d, want ~115", baltic.Price)
	}
}

func TestImproveRequiresFullGroup(t *testing.T) {
	store, _, v := newValuationFixture(t)
	setOwner(t, store, "baltic", "alice")

	if _, err := v.Improve("alice", "baltic"); !errors.Is(err, ErrNotFullGroup) {
		t.Fatalf("partial group err = %v, want ErrNotFullGroup", err)
	}
}

func TestImprove(t *testing.T) {
	store, _, v := newValuationFixture(t)
	setOwner(t, store, "baltic", "alice")
	setOwner(t, store, "mediterranean", "alice")

	u, err := v.Improve("alice", "baltic")
	if err != nil {
		t.Fatalf("Improve: %v", err)
	}
	// Cost is half the current price, paid to the bank.
	alice, _ := store.PlayerView("alice")
	if alice.Cash != 2_000-50 {
		t.Fatalf("alice cash = %d, want 1950", alice.Cash)
	}
	baltic, _ := store.PropertyView("baltic")
	if baltic.Improvement != 1 {
		t.Fatalf("improvement = %d, want 1", baltic.Improvement)
	}
	// Improved + full group: base 10 x 2.0 x 1.5 = 30.
	if u.Rent != 30 {
		t.Fatalf("rent = %d, want 30", u.Rent)
	}

	if _, err := v.Improve("alice", "baltic"); !errors.Is(err, ErrAlreadyImproved) {
		t.Fatalf("second improve err = %v, want ErrAlreadyImproved", err)
	}
}

func TestImproveRejectsLienedProperty(t *testing.T) {
	store, _, v := newValuationFixture(t)
	setOwner(t, store, "baltic", "alice")
	setOwner(t, store, "mediterranean", "alice")
	p, _ := store.Property("baltic")
	release := store.Acquire(ledger.PropertyKey("baltic"))
	p.Lien = true
	p.LienKind = ledger.LienMortgage
	release()

	if _, err := v.Improve("alice", "baltic"); !errors.Is(err, ledger.ErrPropertyLiened) {
		t.Fatalf("liened improve err = %v, want ErrPropertyLiened", err)
	}
}

func TestImproveRejectsNonOwner(t *testing.T) {
	store, _, v := newValuationFixture(t)
	setOwner(t, store, "baltic", "someone-else")
	if _, err := v.Improve("alice", "baltic"); !errors.Is(err, ledger.ErrNotOwner) {
		t.Fatalf("non-owner improve err = %v, want ErrNotOwner", err)
	}
}
