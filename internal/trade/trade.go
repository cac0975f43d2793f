// Package trade validates and atomically executes peer-to-peer offers.
// Suspicious offers are flagged for third-party approval; acceptance
// re-validates the full pipeline because state may have drifted since the
// proposal.
package trade

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tycoon/internal/ledger"
)

var (
	ErrTradeNotFound    = errors.New("trade not found")
	ErrTradeTerminal    = errors.New("trade already reached a terminal state")
	ErrTradeExpired     = errors.New("trade proposal expired")
	ErrTradeFlagged     = errors.New("trade is flagged and awaits approval")
	ErrTradeNotFlagged  = errors.New("trade is not flagged")
	ErrNotCounterparty  = errors.New("player is not the trade counterparty")
	ErrSelfTrade        = errors.New("cannot trade with yourself")
	ErrNotEnoughEscapes = errors.New("player does not hold that many escape cards")
	ErrTradeInvalidated = errors.New("trade invalidated by state drift")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusFlagged   Status = "flagged"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusInvalid   Status = "invalid"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusExpired, StatusInvalid, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Offer is what each side puts on the table.
type Offer struct {
	FromCash        int64    `json:"from_cash"`
	ToCash          int64    `json:"to_cash"`
	FromProperties  []string `json:"from_properties,omitempty"`
	ToProperties    []string `json:"to_properties,omitempty"`
	FromEscapeCards int      `json:"from_escape_cards,omitempty"`
	ToEscapeCards   int      `json:"to_escape_cards,omitempty"`
}

// View is a copy of a trade safe to hand to callers.
type View struct {
	ID         string    `json:"id"`
	FromID     string    `json:"from_id"`
	ToID       string    `json:"to_id"`
	Offer      Offer     `json:"offer"`
	Status     Status    `json:"status"`
	FlagReason string    `json:"flag_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type record struct {
	View
}

const (
	// Heuristic value of one escape card when scoring an offer.
	escapeCardValue = 50
	// Flag when one side gives more than 3x the value it receives.
	suspicionRatio = 3.0

	DefaultTTL = 10 * time.Minute
)

type Engine struct {
	mu     sync.Mutex
	store  *ledger.Store
	trades map[string]*record
	ttl    time.Duration
}

func NewEngine(store *ledger.Store, ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Engine{store: store, trades: make(map[string]*record), ttl: ttl}
}

func (e *Engine) lockKeys(fromID, toID string, offer Offer) []string {
	keys := []string{ledger.PlayerKey(fromID), ledger.PlayerKey(toID)}
	for _, id := range offer.FromProperties {
		keys = append(keys, ledger.PropertyKey(id))
	}
	for _, id := range offer.ToProperties {
		keys = append(keys, ledger.PropertyKey(id))
	}
	return keys
}

// validateLocked runs the full pipeline. The caller holds the union lock
// set of both players and every referenced property.
func (e *Engine) validateLocked(fromID, toID string, offer Offer) error {
	from, err := e.store.Player(fromID)
	if err != nil {
		return err
	}
	to, err := e.store.Player(toID)
	if err != nil {
		return err
	}
	if !from.Active {
		return fmt.Errorf("%w: %s", ledger.ErrPlayerInactive, fromID)
	}
	if !to.Active {
		return fmt.Errorf("%w: %s", ledger.ErrPlayerInactive, toID)
	}
	if offer.FromCash < 0 || offer.ToCash < 0 {
		return fmt.Errorf("offered cash must not be negative")
	}
	if from.Cash < offer.FromCash {
		return fmt.Errorf("%w: %s offers %d, has %d", ledger.ErrInsufficientFunds, fromID, offer.FromCash, from.Cash)
	}
	if to.Cash < offer.ToCash {
		return fmt.Errorf("%w: %s offers %d, has %d", ledger.ErrInsufficientFunds, toID, offer.ToCash, to.Cash)
	}
	if offer.FromEscapeCards < 0 || offer.FromEscapeCards > from.EscapeCards {
		return fmt.Errorf("%w: %s", ErrNotEnoughEscapes, fromID)
	}
	if offer.ToEscapeCards < 0 || offer.ToEscapeCards > to.EscapeCards {
		return fmt.Errorf("%w: %s", ErrNotEnoughEscapes, toID)
	}
	check := func(ownerID string, props []string) error {
		for _, id := range props {
			prop, err := e.store.Property(id)
			if err != nil {
				return err
			}
			if prop.OwnerID != ownerID {
				return fmt.Errorf("%w: %s does not own %s", ledger.ErrNotOwner, ownerID, id)
			}
			if prop.Lien {
				return fmt.Errorf("%w: %s", ledger.ErrPropertyLiened, id)
			}
		}
		return nil
	}
	if err := check(fromID, offer.FromProperties); err != nil {
		return err
	}
	return check(toID, offer.ToProperties)
}

// sideValueLocked scores what one side gives.
func (e *Engine) sideValueLocked(cash int64, props []string, escapes int) int64 {
	v := cash + int64(escapes)*escapeCardValue
	for _, id := range props {
		if prop, err := e.store.Property(id); err == nil {
			v += prop.Price
		}
	}
	return v
}

// suspicionLocked flags collusion-shaped offers: lopsided value, something
// for nothing, or two bot-controlled parties.
func (e *Engine) suspicionLocked(fromID, toID string, offer Offer) (string, bool) {
	from, _ := e.store.Player(fromID)
	to, _ := e.store.Player(toID)
	fromGives := e.sideValueLocked(offer.FromCash, offer.FromProperties, offer.FromEscapeCards)
	toGives := e.sideValueLocked(offer.ToCash, offer.ToProperties, offer.ToEscapeCards)

	if (fromGives > 0 && toGives == 0) || (toGives > 0 && fromGives == 0) {
		return "one side gives value for nothing", true
	}
	if fromGives > 0 && toGives > 0 {
		ratio := float64(fromGives) / float64(toGives)
		if ratio < 1 {
			ratio = 1 / ratio
		}
		if ratio > suspicionRatio {
			return fmt.Sprintf("value ratio %.1f:1 exceeds %.0f:1", ratio, suspicionRatio), true
		}
	}
	if from != nil && to != nil && !from.Human && !to.Human {
		return "both parties are bot-controlled", true
	}
	return "", false
}

// Propose validates the offer and registers it as pending, or flagged when
// the suspicion heuristics fire.
func (e *Engine) Propose(fromID, toID string, offer Offer, now time.Time) (View, error) {
	if fromID == toID {
		return View{}, ErrSelfTrade
	}
	release := e.store.Acquire(e.lockKeys(fromID, toID, offer)...)
	err := e.validateLocked(fromID, toID, offer)
	var reason string
	var flagged bool
	if err == nil {
		reason, flagged = e.suspicionLocked(fromID, toID, offer)
	}
	release()
	if err != nil {
		return View{}, err
	}

	rec := &record{View: View{
		ID:        uuid.NewString(),
		FromID:    fromID,
		ToID:      toID,
		Offer:     offer,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(e.ttl),
	}}
	if flagged {
		rec.Status = StatusFlagged
		rec.FlagReason = reason
	}
	e.mu.Lock()
	e.trades[rec.ID] = rec
	e.mu.Unlock()
	return rec.View, nil
}

func (e *Engine) find(tradeID string) (*record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.trades[tradeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, tradeID)
	}
	return rec, nil
}

// Approve releases a flagged trade for acceptance.
func (e *Engine) Approve(tradeID string, now time.Time) (View, error) {
	rec, err := e.find(tradeID)
	if err != nil {
		return View{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if rec.Status.Terminal() {
		return rec.View, fmt.Errorf("%w: %s is %s", ErrTradeTerminal, tradeID, rec.Status)
	}
	if now.After(rec.ExpiresAt) {
		rec.Status = StatusExpired
		return rec.View, fmt.Errorf("%w: %s", ErrTradeExpired, tradeID)
	}
	if rec.Status != StatusFlagged {
		return rec.View, fmt.Errorf("%w: %s", ErrTradeNotFlagged, tradeID)
	}
	rec.Status = StatusPending
	return rec.View, nil
}

// Respond accepts or rejects a proposal. Acceptance re-validates the whole
// pipeline under the union lock set and executes all-or-nothing.
func (e *Engine) Respond(tradeID, playerID string, accept bool, now time.Time) (View, error) {
	rec, err := e.find(tradeID)
	if err != nil {
		return View{}, err
	}

	e.mu.Lock()
	if rec.Status.Terminal() {
		v := rec.View
		e.mu.Unlock()
		return v, fmt.Errorf("%w: %s is %s", ErrTradeTerminal, tradeID, rec.Status)
	}
	if now.After(rec.ExpiresAt) {
		// Failed-closed: an in-flight response past expiry is refused.
		rec.Status = StatusExpired
		v := rec.View
		e.mu.Unlock()
		return v, fmt.Errorf("%w: %s", ErrTradeExpired, tradeID)
	}
	if rec.ToID != playerID {
		v := rec.View
		e.mu.Unlock()
		return v, fmt.Errorf("%w: %s", ErrNotCounterparty, playerID)
	}
	if rec.Status == StatusFlagged {
		v := rec.View
		e.mu.Unlock()
		return v, fmt.Errorf("%w: %s", ErrTradeFlagged, tradeID)
	}
	if !accept {
		rec.Status = StatusRejected
		v := rec.View
		e.mu.Unlock()
		return v, nil
	}
	rec.Status = StatusAccepted
	fromID, toID, offer := rec.FromID, rec.ToID, rec.Offer
	e.mu.Unlock()

	release := e.store.Acquire(e.lockKeys(fromID, toID, offer)...)
	validationErr := e.validateLocked(fromID, toID, offer)
	var execErr error
	if validationErr == nil {
		execErr = e.executeLocked(fromID, toID, offer)
	}
	release()

	e.mu.Lock()
	defer e.mu.Unlock()
	if validationErr != nil {
		rec.Status = StatusInvalid
		return rec.View, fmt.Errorf("%w: %v", ErrTradeInvalidated, validationErr)
	}
	if execErr != nil {
		rec.Status = StatusFailed
		return rec.View, fmt.Errorf("trade execution failed: %w", execErr)
	}
	rec.Status = StatusCompleted
	return rec.View, nil
}

// executeLocked applies cash, property and escape-card transfers as a
// single unit. On any mid-step failure every prior step is undone before
// returning, so no partial transfer survives.
func (e *Engine) executeLocked(fromID, toID string, offer Offer) (err error) {
	from, err := e.store.Player(fromID)
	if err != nil {
		return err
	}
	to, err := e.store.Player(toID)
	if err != nil {
		return err
	}

	var undo []func()
	defer func() {
		if err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				undo[i]()
			}
		}
	}()

	if from.Cash < offer.FromCash || to.Cash < offer.ToCash {
		return ledger.ErrInsufficientFunds
	}
	from.Cash -= offer.FromCash
	to.Cash += offer.FromCash
	undo = append(undo, func() { from.Cash += offer.FromCash; to.Cash -= offer.FromCash })

	to.Cash -= offer.ToCash
	from.Cash += offer.ToCash
	undo = append(undo, func() { to.Cash += offer.ToCash; from.Cash -= offer.ToCash })

	moveProps := func(props []string, newOwner string) error {
		for _, id := range props {
			prop, perr := e.store.Property(id)
			if perr != nil {
				return perr
			}
			prev := prop.OwnerID
			prop.OwnerID = newOwner
			p := prop
			undo = append(undo, func() { p.OwnerID = prev })
		}
		return nil
	}
	if err = moveProps(offer.FromProperties, toID); err != nil {
		return err
	}
	if err = moveProps(offer.ToProperties, fromID); err != nil {
		return err
	}

	from.EscapeCards -= offer.FromEscapeCards
	to.EscapeCards += offer.FromEscapeCards
	undo = append(undo, func() { from.EscapeCards += offer.FromEscapeCards; to.EscapeCards -= offer.FromEscapeCards })

	to.EscapeCards -= offer.ToEscapeCards
	from.EscapeCards += offer.ToEscapeCards
	undo = append(undo, func() { to.EscapeCards += offer.ToEscapeCards; from.EscapeCards -= offer.ToEscapeCards })

	return nil
}

// ExpireDue sweeps proposals past their window into the expired state.
// Accepted trades are mid-transfer and are left for Respond to settle;
// their expiry check already happened, failed closed, when the response
// came in.
func (e *Engine) ExpireDue(now time.Time) []View {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []View
	ids := make([]string, 0, len(e.trades))
	for id := range e.trades {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rec := e.trades[id]
		if rec.Status.Terminal() || rec.Status == StatusAccepted {
			continue
		}
		if now.After(rec.ExpiresAt) {
			rec.Status = StatusExpired
			out = append(out, rec.View)
		}
	}
	return out
}

func (e *Engine) View(tradeID string) (View, error) {
	rec, err := e.find(tradeID)
	if err != nil {
		return View{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return rec.View, nil
}

// OpenViews lists trades not yet terminal, sorted by creation time.
func (e *Engine) OpenViews() []View {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]View, 0)
	for _, rec := range e.trades {
		if !rec.Status.Terminal() {
			out = append(out, rec.View)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
