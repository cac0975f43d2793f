// Package events defines the outbound notifications the engine emits.
// Commands return events instead of publishing from inside business logic,
// so the core stays testable without a live transport.
package events

import "time"

// Event is the closed set of notifications. Only types in this package
// implement it.
type Event interface {
	Kind() string
}

// Publisher delivers events to the presentation layer.
type Publisher interface {
	Publish(ev Event)
}

// Fanout publishes to every registered publisher in order.
type Fanout struct {
	sinks []Publisher
}

func NewFanout(sinks ...Publisher) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Add(p Publisher) {
	f.sinks = append(f.sinks, p)
}

func (f *Fanout) Publish(ev Event) {
	for _, s := range f.sinks {
		s.Publish(ev)
	}
}

type AuctionStarted struct {
	AuctionID  string `json:"auction_id"`
	PropertyID string `json:"property_id"`
	MinimumBid int64  `json:"minimum_bid"`
	Deadline   time.Time
}

func (AuctionStarted) Kind() string { return "auction_started" }

type AuctionBid struct {
	AuctionID string `json:"auction_id"`
	PlayerID  string `json:"player_id"`
	Amount    int64  `json:"amount"`
	Deadline  time.Time
}

func (AuctionBid) Kind() string { return "auction_bid" }

type AuctionEnded struct {
	AuctionID  string `json:"auction_id"`
	PropertyID string `json:"property_id"`
	Sold       bool   `json:"sold"`
	WinnerID   string `json:"winner_id,omitempty"`
	Amount     int64  `json:"amount,omitempty"`
}

func (AuctionEnded) Kind() string { return "auction_ended" }

type TradeProposed struct {
	TradeID string `json:"trade_id"`
	FromID  string `json:"from_id"`
	ToID    string `json:"to_id"`
	Flagged bool   `json:"flagged"`
	Reason  string `json:"reason,omitempty"`
}

func (TradeProposed) Kind() string { return "trade_proposed" }

type TradeCompleted struct {
	TradeID string `json:"trade_id"`
	FromID  string `json:"from_id"`
	ToID    string `json:"to_id"`
}

func (TradeCompleted) Kind() string { return "trade_completed" }

type TradeRejected struct {
	TradeID string `json:"trade_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

func (TradeRejected) Kind() string { return "trade_rejected" }

type EconomicUpdate struct {
	OldRegime string  `json:"old_regime"`
	NewRegime string  `json:"new_regime"`
	Factor    float64 `json:"factor"`
	Rationale string  `json:"rationale"`
}

func (EconomicUpdate) Kind() string { return "economic_update" }

type PropertyUpdated struct {
	PropertyID string `json:"property_id"`
	Price      int64  `json:"price"`
	Rent       int64  `json:"rent"`
	OwnerID    string `json:"owner_id,omitempty"`
}

func (PropertyUpdated) Kind() string { return "property_updated" }

type LoanCreated struct {
	InstrumentID string  `json:"instrument_id"`
	PlayerID     string  `json:"player_id"`
	InstrumentTy string  `json:"instrument_type"`
	Principal    int64   `json:"principal"`
	Rate         float64 `json:"rate"`
}

func (LoanCreated) Kind() string { return "loan_created" }

type LoanUpdated struct {
	InstrumentID string `json:"instrument_id"`
	PlayerID     string `json:"player_id"`
	Principal    int64  `json:"principal"`
	Closed       bool   `json:"closed"`
	Foreclosed   bool   `json:"foreclosed,omitempty"`
}

func (LoanUpdated) Kind() string { return "loan_updated" }

type CommunityFundUpdate struct {
	Balance int64  `json:"balance"`
	Delta   int64  `json:"delta"`
	Reason  string `json:"reason"`
}

func (CommunityFundUpdate) Kind() string { return "community_fund_update" }

type PlayerBankrupt struct {
	PlayerID   string `json:"player_id"`
	CreditorID string `json:"creditor_id,omitempty"`
	Recovered  int64  `json:"recovered"`
}

func (PlayerBankrupt) Kind() string { return "player_bankrupt" }

type GameEnded struct {
	WinnerID string `json:"winner_id"`
}

func (GameEnded) Kind() string { return "game_ended" }
