package game

import (
	"fmt"
	"time"

	"tycoon/internal/auction"
	"tycoon/internal/bank"
	"tycoon/internal/economy"
	"tycoon/internal/events"
	"tycoon/internal/ledger"
	"tycoon/internal/trade"
)

// AddPlayer registers a player into the session.
func (s *Session) AddPlayer(id, name string, cash int64, human bool) error {
	return s.Ledger.AddPlayer(ledger.Player{ID: id, Name: name, Cash: cash, Active: true, Human: human})
}

// BuyProperty sells a bank-owned property to the player at list price.
func (s *Session) BuyProperty(playerID, propertyID string) ([]events.Event, error) {
	player, err := s.Ledger.Player(playerID)
	if err != nil {
		return nil, err
	}
	prop, err := s.Ledger.Property(propertyID)
	if err != nil {
		return nil, err
	}
	release := s.Ledger.Acquire(ledger.PlayerKey(playerID), ledger.PropertyKey(propertyID))
	defer release()

	if !player.Active {
		return nil, fmt.Errorf("%w: %s", ledger.ErrPlayerInactive, playerID)
	}
	if prop.OwnerID != "" {
		return nil, fmt.Errorf("property %s already owned by %s", propertyID, prop.OwnerID)
	}
	if err := s.Ledger.BurnLocked(player, prop.Price, "purchase:"+propertyID); err != nil {
		return nil, err
	}
	prop.OwnerID = playerID
	return []events.Event{events.PropertyUpdated{PropertyID: propertyID, Price: prop.Price, Rent: prop.Rent, OwnerID: playerID}}, nil
}

// StartAuction opens bidding on a property after a purchase refusal.
func (s *Session) StartAuction(propertyID string, now time.Time) (auction.View, []events.Event, error) {
	view, ev, err := s.Auctions.Start(propertyID, now)
	if err != nil {
		return auction.View{}, nil, err
	}
	s.log.Info("auction started", "auction", view.ID, "property", propertyID, "min_bid", view.MinimumBid)
	return view, []events.Event{ev}, nil
}

func (s *Session) PlaceBid(auctionID, playerID string, amount int64, now time.Time) (auction.View, []events.Event, error) {
	view, ev, err := s.Auctions.PlaceBid(auctionID, playerID, amount, now)
	if err != nil {
		return view, nil, err
	}
	return view, []events.Event{ev}, nil
}

func (s *Session) PassAuction(auctionID, playerID string, now time.Time) (auction.View, []events.Event, error) {
	view, ended, err := s.Auctions.Pass(auctionID, playerID, now)
	if err != nil {
		return view, nil, err
	}
	var evs []events.Event
	if ended != nil {
		evs = append(evs, *ended)
	}
	return view, evs, nil
}

func (s *Session) ProposeTrade(fromID, toID string, offer trade.Offer, now time.Time) (trade.View, []events.Event, error) {
	view, err := s.Trades.Propose(fromID, toID, offer, now)
	if err != nil {
		return view, nil, err
	}
	if view.Status == trade.StatusFlagged {
		s.log.Warn("trade flagged", "trade", view.ID, "reason", view.FlagReason)
	}
	return view, []events.Event{events.TradeProposed{
		TradeID: view.ID, FromID: fromID, ToID: toID,
		Flagged: view.Status == trade.StatusFlagged, Reason: view.FlagReason,
	}}, nil
}

func (s *Session) RespondTrade(tradeID, playerID string, accept bool, now time.Time) (trade.View, []events.Event, error) {
	view, err := s.Trades.Respond(tradeID, playerID, accept, now)
	if err != nil {
		return view, nil, err
	}
	if view.Status == trade.StatusCompleted {
		return view, []events.Event{events.TradeCompleted{TradeID: view.ID, FromID: view.FromID, ToID: view.ToID}}, nil
	}
	return view, []events.Event{events.TradeRejected{TradeID: view.ID, Status: string(view.Status)}}, nil
}

func (s *Session) ApproveTrade(tradeID string, now time.Time) (trade.View, error) {
	view, err := s.Trades.Approve(tradeID, now)
	if err == nil {
		s.log.Info("flagged trade released", "trade", tradeID)
	}
	return view, err
}

func (s *Session) TakeLoan(playerID string, amount int64) (bank.Instrument, []events.Event, error) {
	inst, err := s.Credit.TakeLoan(playerID, amount, s.Lap())
	if err != nil {
		return inst, nil, err
	}
	return inst, []events.Event{events.LoanCreated{
		InstrumentID: inst.ID, PlayerID: playerID, InstrumentTy: string(inst.Kind),
		Principal: inst.Principal, Rate: inst.Rate,
	}}, nil
}

func (s *Session) RepayLoan(instrumentID string, amount int64) (bank.Instrument, []events.Event, error) {
	inst, err := s.Credit.RepayLoan(instrumentID, amount)
	if err != nil {
		return inst, nil, err
	}
	return inst, []events.Event{events.LoanUpdated{
		InstrumentID: inst.ID, PlayerID: inst.PlayerID,
		Principal: inst.Principal, Closed: !inst.Active,
	}}, nil
}

func (s *Session) CreateCD(playerID string, amount int64, termLaps int) (bank.Instrument, []events.Event, error) {
	inst, err := s.Credit.CreateCD(playerID, amount, termLaps, s.Lap())
	if err != nil {
		return inst, nil, err
	}
	return inst, []events.Event{events.LoanCreated{
		InstrumentID: inst.ID, PlayerID: playerID, InstrumentTy: string(inst.Kind),
		Principal: inst.Principal, Rate: inst.Rate,
	}}, nil
}

func (s *Session) WithdrawCD(instrumentID string) (int64, []events.Event, error) {
	payout, inst, err := s.Credit.WithdrawCD(instrumentID, s.Lap())
	if err != nil {
		return 0, nil, err
	}
	return payout, []events.Event{events.LoanUpdated{
		InstrumentID: inst.ID, PlayerID: inst.PlayerID, Principal: 0, Closed: true,
	}}, nil
}

func (s *Session) TakeHELOC(playerID, propertyID string, amount int64) (bank.Instrument, []events.Event, error) {
	inst, err := s.Credit.TakeHELOC(playerID, propertyID, amount, s.Lap())
	if err != nil {
		return inst, nil, err
	}
	return inst, []events.Event{events.LoanCreated{
		InstrumentID: inst.ID, PlayerID: playerID, InstrumentTy: string(inst.Kind),
		Principal: inst.Principal, Rate: inst.Rate,
	}}, nil
}

func (s *Session) ImproveProperty(playerID, propertyID string) (economy.Updated, []events.Event, error) {
	u, err := s.Valuation.Improve(playerID, propertyID)
	if err != nil {
		return u, nil, err
	}
	return u, []events.Event{events.PropertyUpdated{PropertyID: u.PropertyID, Price: u.Price, Rent: u.Rent, OwnerID: u.OwnerID}}, nil
}

func (s *Session) MortgageProperty(playerID, propertyID string) (int64, []events.Event, error) {
	value, err := s.Credit.Mortgage(playerID, propertyID, s.Lap())
	if err != nil {
		return 0, nil, err
	}
	prop, _ := s.Ledger.PropertyView(propertyID)
	return value, []events.Event{events.PropertyUpdated{PropertyID: propertyID, Price: prop.Price, Rent: prop.Rent, OwnerID: prop.OwnerID}}, nil
}

func (s *Session) UnmortgageProperty(playerID, propertyID string) (int64, []events.Event, error) {
	cost, err := s.Credit.Unmortgage(playerID, propertyID)
	if err != nil {
		return 0, nil, err
	}
	prop, _ := s.Ledger.PropertyView(propertyID)
	return cost, []events.Event{events.PropertyUpdated{PropertyID: propertyID, Price: prop.Price, Rent: prop.Rent, OwnerID: prop.OwnerID}}, nil
}

// PayRent transfers the current rent from a visiting player to the owner.
func (s *Session) PayRent(playerID, propertyID string) (int64, error) {
	prop, err := s.Ledger.Property(propertyID)
	if err != nil {
		return 0, err
	}
	release := s.Ledger.Acquire(ledger.PropertyKey(propertyID))
	ownerID := prop.OwnerID
	rent := prop.Rent
	liened := prop.Lien
	release()

	if ownerID == "" || ownerID == playerID || liened {
		return 0, nil
	}
	if err := s.Ledger.Transfer(playerID, ownerID, rent); err != nil {
		return 0, err
	}
	return rent, nil
}

// PayTax moves player cash into the community fund; taxes are a declared
// redistribution event, not a burn.
func (s *Session) PayTax(playerID string, amount int64, reason string) ([]events.Event, error) {
	player, err := s.Ledger.Player(playerID)
	if err != nil {
		return nil, err
	}
	release := s.Ledger.Acquire(ledger.PlayerKey(playerID))
	defer release()
	if player.Cash < amount {
		return nil, fmt.Errorf("%w: player %s has %d, tax %d", ledger.ErrInsufficientFunds, playerID, player.Cash, amount)
	}
	player.Cash -= amount
	balance, _ := s.Fund.Deposit(amount, reason)
	return []events.Event{events.CommunityFundUpdate{Balance: balance, Delta: amount, Reason: reason}}, nil
}

// FundLanding pays out the configured community fund mode to the player on
// the designated board space.
func (s *Session) FundLanding(playerID string) (int64, []events.Event, error) {
	paid, err := s.Fund.Payout(playerID)
	if err != nil {
		return 0, nil, err
	}
	if paid == 0 {
		return 0, nil, nil
	}
	return paid, []events.Event{events.CommunityFundUpdate{Balance: s.Fund.Balance(), Delta: -paid, Reason: "fund payout:" + playerID}}, nil
}

// ModifyCommunityFund is the admin escape hatch: deposit, withdraw, or
// reconfigure the payout mode.
func (s *Session) ModifyCommunityFund(action string, amount int64, reason string) (int64, []events.Event, error) {
	switch action {
	case "deposit":
		balance, err := s.Fund.Deposit(amount, reason)
		if err != nil {
			return 0, nil, err
		}
		return balance, []events.Event{events.CommunityFundUpdate{Balance: balance, Delta: amount, Reason: reason}}, nil
	case "withdraw":
		balance, err := s.Fund.Withdraw(amount, reason)
		if err != nil {
			return 0, nil, err
		}
		return balance, []events.Event{events.CommunityFundUpdate{Balance: balance, Delta: -amount, Reason: reason}}, nil
	default:
		return 0, nil, fmt.Errorf("unknown community fund action %q", action)
	}
}
