package ledger

import (
	"errors"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	players := []Player{
		{ID: "alice", Name: "Alice", Cash: 1500, Active: true, Human: true},
		{ID: "bob", Name: "Bob", Cash: 1500, Active: true, Human: true},
	}
	for _, p := range players {
		if err := s.AddPlayer(p); err != nil {
			t.Fatalf("AddPlayer(%s): %v", p.ID, err)
		}
	}
	props := []Property{
		{ID: "boardwalk", Group: "darkblue", BasePrice: 400, BaseRent: 50},
		{ID: "park-place", Group: "darkblue", BasePrice: 350, BaseRent: 35},
	}
	for _, p := range props {
		if err := s.AddProperty(p); err != nil {
			t.Fatalf("AddProperty(%s): %v", p.ID, err)
		}
	}
	return s
}

func conservedTotal(s *Store) int64 {
	return s.TotalPlayerCash() + s.Treasury()
}

func TestAddDuplicates(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddPlayer(Player{ID: "alice"}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate player err = %v, want ErrDuplicateID", err)
	}
	if err := s.AddProperty(Property{ID: "boardwalk"}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate property err = %v, want ErrDuplicateID", err)
	}
}

func TestAddPropertySeedsDerivedFields(t *testing.T) {
	s := newTestStore(t)
	p, err := s.PropertyView("boardwalk")
	if err != nil {
		t.Fatalf("PropertyView: %v", err)
	}
	if p.Price != 400 || p.Rent != 50 {
		t.Fatalf("price/rent = %d/%d, want 400/50", p.Price, p.Rent)
	}
}

func TestTransfer(t *testing.T) {
	s := newTestStore(t)
	before := conservedTotal(s)

	if err := s.Transfer("alice", "bob", 500); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	alice, _ := s.PlayerView("alice")
	bob, _ := s.PlayerView("bob")
	if alice.Cash != 1000 || bob.Cash != 2000 {
		t.Fatalf("cash = %d/%d, want 1000/2000", alice.Cash, bob.Cash)
	}
	if got := conservedTotal(s); got != before {
		t.Fatalf("conserved total drifted: %d -> %d", before, got)
	}

	if err := s.Transfer("alice", "bob", 5000); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraw err = %v, want ErrInsufficientFunds", err)
	}
	if err := s.Transfer("alice", "ghost", 1); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("missing player err = %v, want ErrPlayerNotFound", err)
	}
}

func TestMintBurnMoveThroughTreasury(t *testing.T) {
	s := newTestStore(t)
	before := conservedTotal(s)
	treasuryBefore := s.Treasury()

	if err := s.Mint("alice", 200, "go-salary"); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if got := s.Treasury(); got != treasuryBefore-200 {
		t.Fatalf("treasury after mint = %d, want %d", got, treasuryBefore-200)
	}
	if err := s.Burn("alice", 700, "purchase"); err != nil {
		t.Fatalf("Burn: %v", err)
	}
	alice, _ := s.PlayerView("alice")
	if alice.Cash != 1000 {
		t.Fatalf("alice cash = %d, want 1000", alice.Cash)
	}
	if got := conservedTotal(s); got != before {
		t.Fatalf("conserved total drifted: %d -> %d", before, got)
	}

	if err := s.Burn("alice", 99999, "too much"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overburn err = %v, want ErrInsufficientFunds", err)
	}
}

func TestCashJournalRecordsReasons(t *testing.T) {
	s := newTestStore(t)
	if err := s.Mint("alice", 200, "go-salary"); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := s.Burn("alice", 700, "purchase:boardwalk"); err != nil {
		t.Fatalf("Burn: %v", err)
	}
	bob, _ := s.Player("bob")
	release := s.Acquire(PlayerKey("bob"))
	if err := s.MintLocked(bob, 50, "card-effect"); err != nil {
		t.Fatalf("MintLocked: %v", err)
	}
	release()

	want := []CashEvent{
		{Kind: "mint", PlayerID: "alice", Amount: 200, Reason: "go-salary"},
		{Kind: "burn", PlayerID: "alice", Amount: 700, Reason: "purchase:boardwalk"},
		{Kind: "mint", PlayerID: "bob", Amount: 50, Reason: "card-effect"},
	}
	got := s.CashJournal()
	if len(got) != len(want) {
		t.Fatalf("journal = %+v, want %d events", got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("journal[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	// A restored ledger starts a fresh audit trail.
	s.Restore(s.Snapshot())
	if len(s.CashJournal()) != 0 {
		t.Fatal("journal should reset on restore")
	}
}

func TestAcquireCollapsesDuplicates(t *testing.T) {
	s := newTestStore(t)
	// Duplicate keys must not self-deadlock.
	release := s.Acquire(PlayerKey("alice"), PlayerKey("alice"), PlayerKey("bob"))
	release()
}

func TestConcurrentTransfersConserveCash(t *testing.T) {
	s := newTestStore(t)
	before := conservedTotal(s)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Transfer("alice", "bob", 10)
		}()
		go func() {
			defer wg.Done()
			_ = s.Transfer("bob", "alice", 10)
		}()
	}
	wg.Wait()

	if got := conservedTotal(s); got != before {
		t.Fatalf("conserved total drifted under concurrency: %d -> %d", before, got)
	}
}

func TestOwnershipQueries(t *testing.T) {
	s := newTestStore(t)
	bw, _ := s.Property("boardwalk")
	release := s.Acquire(PropertyKey("boardwalk"))
	bw.OwnerID = "alice"
	release()

	if s.OwnsGroup("alice", "darkblue") {
		t.Fatal("OwnsGroup true with one of two properties")
	}
	pp, _ := s.Property("park-place")
	release = s.Acquire(PropertyKey("park-place"))
	pp.OwnerID = "alice"
	release()
	if !s.OwnsGroup("alice", "darkblue") {
		t.Fatal("OwnsGroup false with the full group")
	}
	owned := s.OwnedPropertyIDs("alice")
	if len(owned) != 2 || owned[0] != "boardwalk" || owned[1] != "park-place" {
		t.Fatalf("OwnedPropertyIDs = %v", owned)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if err := s.Mint("alice", 250, "seed"); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	snap := s.Snapshot()

	restored := NewStore()
	restored.Restore(snap)
	if got, want := restored.Treasury(), s.Treasury(); got != want {
		t.Fatalf("treasury = %d, want %d", got, want)
	}
	alice, err := restored.PlayerView("alice")
	if err != nil {
		t.Fatalf("PlayerView after restore: %v", err)
	}
	if alice.Cash != 1750 {
		t.Fatalf("alice cash = %d, want 1750", alice.Cash)
	}
	if got := len(restored.PropertyIDs()); got != 2 {
		t.Fatalf("restored properties = %d, want 2", got)
	}
}
