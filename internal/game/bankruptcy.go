package game

import (
	"fmt"
	"math"

	"tycoon/internal/bank"
	"tycoon/internal/events"
	"tycoon/internal/ledger"
)

const (
	// Liquidation recovers half of an unimproved property's current value
	// and three quarters when the improvement tier is built.
	liquidationShare         = 0.50
	liquidationShareImproved = 0.75
)

// LiquidationValue is what a forced sale of the property recovers.
func LiquidationValue(price int64, improvement int) int64 {
	share := liquidationShare
	if improvement > 0 {
		share = liquidationShareImproved
	}
	return int64(math.Round(share * float64(price)))
}

// BankruptcyResult reports how an insolvency settled.
type BankruptcyResult struct {
	PlayerID     string   `json:"player_id"`
	CreditorID   string   `json:"creditor_id,omitempty"`
	Recovered    int64    `json:"recovered"`
	Properties   []string `json:"properties"`
	GameOver     bool     `json:"game_over"`
	WinnerID     string   `json:"winner_id,omitempty"`
	InstrumentsX int      `json:"instruments_closed"`
}

// DeclareBankruptcy liquidates an insolvent player's estate to a creditor,
// or to the bank when creditorID is empty. The whole settlement applies
// under one lock set; on any failure the involved records roll back to
// their pre-liquidation state.
func (s *Session) DeclareBankruptcy(playerID, creditorID string) (BankruptcyResult, []events.Event, error) {
	player, err := s.Ledger.Player(playerID)
	if err != nil {
		return BankruptcyResult{}, nil, err
	}
	var creditor *ledger.Player
	if creditorID != "" {
		creditor, err = s.Ledger.Player(creditorID)
		if err != nil {
			return BankruptcyResult{}, nil, err
		}
	}

	owned := s.Ledger.OwnedPropertyIDs(playerID)
	keys := make([]string, 0, len(owned)+2)
	keys = append(keys, ledger.PlayerKey(playerID))
	if creditor != nil {
		keys = append(keys, ledger.PlayerKey(creditorID))
	}
	for _, id := range owned {
		keys = append(keys, ledger.PropertyKey(id))
	}
	release := s.Ledger.Acquire(keys...)
	released := false
	defer func() {
		if !released {
			release()
		}
	}()

	if !player.Active {
		return BankruptcyResult{}, nil, fmt.Errorf("%w: %s", ledger.ErrPlayerInactive, playerID)
	}

	// Pre-liquidation images for rollback.
	playerBefore := *player
	var creditorBefore ledger.Player
	if creditor != nil {
		creditorBefore = *creditor
	}
	propsBefore := make(map[string]ledger.Property, len(owned))
	for _, id := range owned {
		if prop, perr := s.Ledger.Property(id); perr == nil {
			propsBefore[id] = *prop
		}
	}
	rollback := func() {
		*player = playerBefore
		if creditor != nil {
			*creditor = creditorBefore
		}
		for id, before := range propsBefore {
			if prop, perr := s.Ledger.Property(id); perr == nil {
				*prop = before
			}
		}
	}

	// Close every credit position first; CDs raise emergency cash into the
	// estate, HELOC liens clear so the collateral liquidates below.
	instruments := s.Credit.InstrumentsFor(playerID)
	closed := 0
	for _, inst := range instruments {
		if inst.Active {
			closed++
		}
	}
	if _, err := s.Credit.EmergencyLiquidate(player); err != nil {
		rollback()
		return BankruptcyResult{}, nil, fmt.Errorf("bankruptcy liquidation failed: %w", err)
	}

	// Liquidate the estate's properties: unliened holdings recover 50% of
	// value, 75% when improved, paid from the treasury into the estate;
	// ownership passes to the creditor, or back to the bank.
	result := BankruptcyResult{PlayerID: playerID, CreditorID: creditorID, InstrumentsX: closed}
	for _, id := range owned {
		prop, perr := s.Ledger.Property(id)
		if perr != nil {
			continue
		}
		if !prop.Lien {
			value := LiquidationValue(prop.Price, prop.Improvement)
			if err := s.Ledger.MintLocked(player, value, "liquidation:"+id); err != nil {
				rollback()
				return BankruptcyResult{}, nil, fmt.Errorf("bankruptcy liquidation failed: %w", err)
			}
		}
		prop.Lien = false
		prop.LienKind = ledger.LienNone
		prop.LienAmount = 0
		prop.OwnerID = creditorID // empty string means bank
		prop.Improvement = 0
		result.Properties = append(result.Properties, id)
	}

	// Hand the estate's cash to the creditor, or return it to the bank.
	estate := player.Cash
	player.Cash = 0
	if creditor != nil {
		creditor.Cash += estate
	} else {
		if err := s.estateToTreasury(estate); err != nil {
			rollback()
			return BankruptcyResult{}, nil, err
		}
	}
	result.Recovered = estate
	player.Active = false

	evs := []events.Event{events.PlayerBankrupt{PlayerID: playerID, CreditorID: creditorID, Recovered: estate}}
	s.log.Warn("player bankrupt", "player", playerID, "creditor", creditorID, "recovered", estate)

	// The settlement is committed; drop the lock set before the game-over
	// scan, which walks every player behind the same entity locks.
	released = true
	release()

	if winner, over := s.gameOver(playerID); over {
		result.GameOver = true
		result.WinnerID = winner
		evs = append(evs, events.GameEnded{WinnerID: winner})
		s.log.Info("game ended", "winner", winner)
	}
	return result, evs, nil
}

// estateToTreasury pushes an estate's cash back to the bank. The player's
// cash has already been zeroed under their lock.
func (s *Session) estateToTreasury(amount int64) error {
	if amount == 0 {
		return nil
	}
	// Treasury adjustments are covered by the store mutex; see BurnLocked.
	tmp := ledger.Player{ID: "estate", Cash: amount}
	return s.Ledger.BurnLocked(&tmp, amount, "bankruptcy-estate")
}

// gameOver reports the winner when at most one active player remains.
// bankruptID is excluded defensively in case its record is mid-update.
func (s *Session) gameOver(bankruptID string) (string, bool) {
	active := make([]string, 0, 2)
	for _, id := range s.Ledger.ActivePlayerIDs() {
		if id != bankruptID {
			active = append(active, id)
		}
	}
	if len(active) == 1 {
		return active[0], true
	}
	return "", false
}

// foreclose settles one overdue instrument from lap accrual. HELOC
// collateral is seized by the bank; an unsecured loan first tries the
// debtor's cash and falls back to full bankruptcy.
func (s *Session) foreclose(f bank.Foreclosure) []events.Event {
	switch f.Kind {
	case bank.KindHELOC:
		prop, err := s.Ledger.Property(f.Collateral)
		if err != nil {
			s.log.Error("foreclosure references missing property", "instrument", f.InstrumentID, "property", f.Collateral)
			return nil
		}
		release := s.Ledger.Acquire(ledger.PropertyKey(f.Collateral))
		prop.OwnerID = ""
		prop.Lien = false
		prop.LienKind = ledger.LienNone
		prop.LienAmount = 0
		prop.Improvement = 0
		release()
		_ = s.Credit.Close(f.InstrumentID)
		s.log.Warn("heloc foreclosed", "instrument", f.InstrumentID, "player", f.PlayerID, "property", f.Collateral)
		return []events.Event{
			events.LoanUpdated{InstrumentID: f.InstrumentID, PlayerID: f.PlayerID, Principal: f.Owed, Closed: true, Foreclosed: true},
			events.PropertyUpdated{PropertyID: f.Collateral, OwnerID: ""},
		}
	case bank.KindLoan:
		if err := s.Ledger.Burn(f.PlayerID, f.Owed, "loan-foreclosure:"+f.InstrumentID); err == nil {
			_ = s.Credit.Close(f.InstrumentID)
			s.log.Warn("loan force-collected", "instrument", f.InstrumentID, "player", f.PlayerID, "owed", f.Owed)
			return []events.Event{events.LoanUpdated{InstrumentID: f.InstrumentID, PlayerID: f.PlayerID, Principal: 0, Closed: true, Foreclosed: true}}
		}
		_ = s.Credit.Close(f.InstrumentID)
		_, evs, err := s.DeclareBankruptcy(f.PlayerID, "")
		if err != nil {
			s.log.Error("loan foreclosure bankruptcy failed", "instrument", f.InstrumentID, "player", f.PlayerID, "err", err)
			return nil
		}
		return append([]events.Event{events.LoanUpdated{InstrumentID: f.InstrumentID, PlayerID: f.PlayerID, Principal: f.Owed, Closed: true, Foreclosed: true}}, evs...)
	}
	return nil
}
