package fund

import (
	"errors"
	"testing"

	"tycoon/internal/ledger"
)

func newFundFixture(t *testing.T, cfg Config) (*ledger.Store, *Fund) {
	t.Helper()
	store := ledger.NewStore()
	for _, id := range []string{"alice", "bob", "carol"} {
		if err := store.AddPlayer(ledger.Player{ID: id, Cash: 1_000, Active: true, Human: true}); err != nil {
			t.Fatalf("AddPlayer(%s): %v", id, err)
		}
	}
	return store, New(store, cfg)
}

func TestDepositWithdraw(t *testing.T) {
	_, f := newFundFixture(t, DefaultConfig())
	if _, err := f.Deposit(300, "tax"); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	balance, err := f.Withdraw(100, "correction")
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if balance != 200 {
		t.Fatalf("balance = %d, want 200", balance)
	}
	if _, err := f.Withdraw(1_000, "too much"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraw err = %v, want ErrInsufficientBalance", err)
	}
	if _, err := f.Deposit(-1, "bad"); err == nil {
		t.Fatal("negative deposit accepted")
	}
}

func TestPayoutModes(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		balance int64
		want    int64
	}{
		{"half pot", Config{Mode: ModeHalfPot}, 400, 200},
		{"full pot", Config{Mode: ModeFullPot}, 400, 400},
		{"fixed", Config{Mode: ModeFixed, FixedAmount: 100}, 400, 100},
		{"fixed capped at balance", Config{Mode: ModeFixed, FixedAmount: 100}, 60, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, f := newFundFixture(t, tt.cfg)
			if _, err := f.Deposit(tt.balance, "seed"); err != nil {
				t.Fatalf("Deposit: %v", err)
			}
			paid, err := f.Payout("alice")
			if err != nil {
				t.Fatalf("Payout: %v", err)
			}
			if paid != tt.want {
				t.Fatalf("paid = %d, want %d", paid, tt.want)
			}
			alice, _ := store.PlayerView("alice")
			if alice.Cash != 1_000+tt.want {
				t.Fatalf("alice cash = %d, want %d", alice.Cash, 1_000+tt.want)
			}
			if f.Balance() != tt.balance-tt.want {
				t.Fatalf("balance = %d, want %d", f.Balance(), tt.balance-tt.want)
			}
		})
	}
}

func TestPayoutDisabled(t *testing.T) {
	_, f := newFundFixture(t, Config{Mode: ModeDisabled})
	f.Deposit(500, "seed")
	if _, err := f.Payout("alice"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("disabled payout err = %v, want ErrDisabled", err)
	}
}

func TestHolidaySplitsEqually(t *testing.T) {
	store, f := newFundFixture(t, Config{Mode: ModeHalfPot, HolidayThreshold: 600})
	f.Deposit(650, "seed")

	share, err := f.Holiday()
	if err != nil {
		t.Fatalf("Holiday: %v", err)
	}
	// 650 across three active players: 216 each, remainder stays pooled.
	if share != 216 {
		t.Fatalf("share = %d, want 216", share)
	}
	for _, id := range []string{"alice", "bob", "carol"} {
		p, _ := store.PlayerView(id)
		if p.Cash != 1_216 {
			t.Fatalf("%s cash = %d, want 1216", id, p.Cash)
		}
	}
	if f.Balance() != 650-3*216 {
		t.Fatalf("balance = %d, want %d", f.Balance(), 650-3*216)
	}
}

func TestHolidayBelowThresholdIsNoOp(t *testing.T) {
	_, f := newFundFixture(t, Config{Mode: ModeHalfPot, HolidayThreshold: 600})
	f.Deposit(599, "seed")
	share, err := f.Holiday()
	if err != nil {
		t.Fatalf("Holiday: %v", err)
	}
	if share != 0 {
		t.Fatalf("share = %d, want 0", share)
	}
	if f.Balance() != 599 {
		t.Fatalf("balance = %d, want 599", f.Balance())
	}
}

func TestHolidayReturnsUndeliverableShares(t *testing.T) {
	store, f := newFundFixture(t, Config{Mode: ModeHalfPot, HolidayThreshold: 600})
	f.Deposit(600, "seed")

	// A player deactivated between the split and the credit must not take
	// their share out of the conserved total.
	bob, _ := store.Player("bob")
	release := store.Acquire(ledger.PlayerKey("bob"))
	bob.Active = false
	release()

	paid := f.payShares([]string{"alice", "bob", "carol"}, 200)
	if paid != 200 {
		t.Fatalf("paid = %d, want 200", paid)
	}
	if f.Balance() != 600+200 {
		t.Fatalf("balance = %d, want 800 with bob's share returned", f.Balance())
	}
	alice, _ := store.PlayerView("alice")
	bobView, _ := store.PlayerView("bob")
	if alice.Cash != 1_200 || bobView.Cash != 1_000 {
		t.Fatalf("cash = alice %d, bob %d", alice.Cash, bobView.Cash)
	}
}

func TestMovementsCarryReasons(t *testing.T) {
	_, f := newFundFixture(t, DefaultConfig())
	f.Deposit(300, "tax:alice")
	f.Withdraw(100, "correction")
	if _, err := f.Payout("alice"); err != nil {
		t.Fatalf("Payout: %v", err)
	}

	moves := f.Movements()
	if len(moves) != 3 {
		t.Fatalf("movements = %d, want 3", len(moves))
	}
	want := []Movement{
		{Delta: 300, Reason: "tax:alice", Balance: 300},
		{Delta: -100, Reason: "correction", Balance: 200},
		{Delta: -100, Reason: "payout:alice", Balance: 100},
	}
	for i, m := range moves {
		if m != want[i] {
			t.Fatalf("movement[%d] = %+v, want %+v", i, m, want[i])
		}
	}

	f.Restore(State{Balance: 50, Config: DefaultConfig()})
	if len(f.Movements()) != 0 {
		t.Fatal("journal should reset on restore")
	}
}

func TestSetConfigValidatesMode(t *testing.T) {
	_, f := newFundFixture(t, DefaultConfig())
	if err := f.SetConfig(Config{Mode: "jackpot"}); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("bad mode err = %v, want ErrUnknownMode", err)
	}
	if err := f.SetConfig(Config{Mode: ModeFixed, FixedAmount: 50}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if f.Config().Mode != ModeFixed {
		t.Fatalf("mode = %s, want fixed", f.Config().Mode)
	}
}
