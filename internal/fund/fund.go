// Package fund holds the community redistribution pool fed by taxes, fines
// and auction overbid skims.
package fund

import (
	"errors"
	"fmt"
	"sync"

	"tycoon/internal/ledger"
)

var (
	ErrInsufficientBalance = errors.New("community fund balance too low")
	ErrDisabled            = errors.New("community fund payouts are disabled")
	ErrUnknownMode         = errors.New("unknown community fund mode")
)

// Mode selects how landing on the designated board space pays out.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeFullPot  Mode = "full"
	ModeHalfPot  Mode = "half"
	ModeFixed    Mode = "fixed"
)

// Config controls payouts. HolidayThreshold, when > 0, triggers an
// equal-split payout to all active players once the balance reaches it.
type Config struct {
	Mode             Mode  `json:"mode"`
	FixedAmount      int64 `json:"fixed_amount"`
	HolidayThreshold int64 `json:"holiday_threshold"`
}

func DefaultConfig() Config {
	return Config{Mode: ModeHalfPot, FixedAmount: 100, HolidayThreshold: 0}
}

// State is the durable form of the fund.
type State struct {
	Balance int64  `json:"balance"`
	Config  Config `json:"config"`
}

// Movement is one audited balance change.
type Movement struct {
	Delta   int64  `json:"delta"`
	Reason  string `json:"reason"`
	Balance int64  `json:"balance"`
}

type Fund struct {
	mu      sync.Mutex
	balance int64
	cfg     Config
	store   *ledger.Store
	journal []Movement
}

func New(store *ledger.Store, cfg Config) *Fund {
	if cfg.Mode == "" {
		cfg = DefaultConfig()
	}
	return &Fund{store: store, cfg: cfg}
}

func (f *Fund) Balance() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance
}

// Movements returns the audit journal of balance changes since the last
// restore.
func (f *Fund) Movements() []Movement {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Movement, len(f.journal))
	copy(out, f.journal)
	return out
}

// recordLocked appends to the journal; f.mu must be held.
func (f *Fund) recordLocked(delta int64, reason string) {
	f.journal = append(f.journal, Movement{Delta: delta, Reason: reason, Balance: f.balance})
}

func (f *Fund) Config() Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *Fund) SetConfig(cfg Config) error {
	switch cfg.Mode {
	case ModeDisabled, ModeFullPot, ModeHalfPot, ModeFixed:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
	return nil
}

// Deposit adds to the pool. Deposits are commutative, so the fund's own
// mutex is enough; the depositing cash movement happens in the caller's
// lock set.
func (f *Fund) Deposit(amount int64, reason string) (balance int64, err error) {
	if amount < 0 {
		return 0, fmt.Errorf("negative deposit amount %d", amount)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance += amount
	f.recordLocked(amount, reason)
	return f.balance, nil
}

// Withdraw removes from the pool without paying anyone; used by admin
// corrections. The caller is responsible for where the cash goes.
func (f *Fund) Withdraw(amount int64, reason string) (balance int64, err error) {
	if amount < 0 {
		return 0, fmt.Errorf("negative withdraw amount %d", amount)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balance < amount {
		return f.balance, fmt.Errorf("%w: have %d, want %d", ErrInsufficientBalance, f.balance, amount)
	}
	f.balance -= amount
	f.recordLocked(-amount, reason)
	return f.balance, nil
}

// Payout pays the configured amount to the player who landed on the
// designated space and returns what was paid.
func (f *Fund) Payout(playerID string) (int64, error) {
	f.mu.Lock()
	mode := f.cfg.Mode
	var amount int64
	switch mode {
	case ModeDisabled:
		f.mu.Unlock()
		return 0, ErrDisabled
	case ModeFullPot:
		amount = f.balance
	case ModeHalfPot:
		amount = f.balance / 2
	case ModeFixed:
		amount = f.cfg.FixedAmount
		if amount > f.balance {
			amount = f.balance
		}
	}
	f.balance -= amount
	if amount > 0 {
		f.recordLocked(-amount, "payout:"+playerID)
	}
	f.mu.Unlock()

	if amount == 0 {
		return 0, nil
	}
	if err := f.creditPlayer(playerID, amount); err != nil {
		f.mu.Lock()
		f.balance += amount
		f.recordLocked(amount, "payout:refund:"+playerID)
		f.mu.Unlock()
		return 0, err
	}
	return amount, nil
}

// Holiday splits the pool equally among active players when the balance has
// reached the configured threshold. Returns the per-player share paid.
func (f *Fund) Holiday() (int64, error) {
	f.mu.Lock()
	threshold := f.cfg.HolidayThreshold
	balance := f.balance
	f.mu.Unlock()
	if threshold <= 0 || balance < threshold {
		return 0, nil
	}

	active := f.store.ActivePlayerIDs()
	if len(active) == 0 {
		return 0, nil
	}
	share := balance / int64(len(active))
	if share == 0 {
		return 0, nil
	}
	total := share * int64(len(active))

	f.mu.Lock()
	if f.balance < total {
		f.mu.Unlock()
		return 0, nil
	}
	f.balance -= total
	f.recordLocked(-total, "holiday")
	f.mu.Unlock()

	return f.payShares(active, share), nil
}

// payShares credits share to each listed player and returns the share
// paid, zero when nobody could be paid. Shares for players that went
// missing or inactive since the split was computed return to the pool,
// so the withdrawal never outruns what was actually delivered.
func (f *Fund) payShares(ids []string, share int64) int64 {
	var paid, unpaid int64
	for _, id := range ids {
		if err := f.creditPlayer(id, share); err != nil {
			unpaid += share
			continue
		}
		paid = share
	}
	if unpaid > 0 {
		f.mu.Lock()
		f.balance += unpaid
		f.recordLocked(unpaid, "holiday:undeliverable")
		f.mu.Unlock()
	}
	return paid
}

func (f *Fund) creditPlayer(playerID string, amount int64) error {
	p, err := f.store.Player(playerID)
	if err != nil {
		return err
	}
	release := f.store.Acquire(ledger.PlayerKey(playerID))
	defer release()
	if !p.Active {
		return fmt.Errorf("%w: %s", ledger.ErrPlayerInactive, playerID)
	}
	p.Cash += amount
	return nil
}

func (f *Fund) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{Balance: f.balance, Config: f.cfg}
}

func (f *Fund) Restore(st State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance = st.Balance
	if st.Config.Mode != "" {
		f.cfg = st.Config
	}
	f.journal = nil
}
