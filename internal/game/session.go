// Package game composes the economic engine into one session facade. Every
// inbound command is a method returning a result plus the events to
// publish, so the core runs and tests without a live transport.
package game

import (
	"log/slog"
	"sync"
	"time"

	"tycoon/internal/auction"
	"tycoon/internal/bank"
	"tycoon/internal/economy"
	"tycoon/internal/events"
	"tycoon/internal/fund"
	"tycoon/internal/ledger"
	"tycoon/internal/trade"
)

type Config struct {
	GOSalary      int64
	AuctionWindow time.Duration
	TradeTTL      time.Duration
	Thresholds    economy.Thresholds
	Fund          fund.Config
	Credit        bank.Config
}

func DefaultConfig() Config {
	return Config{
		GOSalary:      200,
		AuctionWindow: auction.DefaultWindow,
		TradeTTL:      trade.DefaultTTL,
		Thresholds:    economy.DefaultThresholds,
		Fund:          fund.DefaultConfig(),
		Credit:        bank.DefaultConfig(),
	}
}

type Session struct {
	log *slog.Logger
	cfg Config

	Ledger    *ledger.Store
	Monitor   *economy.Monitor
	Valuation *economy.Valuation
	Credit    *bank.System
	Auctions  *auction.Coordinator
	Trades    *trade.Engine
	Fund      *fund.Fund

	mu  sync.Mutex
	lap int
}

func NewSession(cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GOSalary == 0 {
		cfg = DefaultConfig()
	}
	store := ledger.NewStore()
	monitor := economy.NewMonitor(cfg.Thresholds)
	pool := fund.New(store, cfg.Fund)
	s := &Session{
		log:       logger,
		cfg:       cfg,
		Ledger:    store,
		Monitor:   monitor,
		Valuation: economy.NewValuation(store, monitor),
		Credit:    bank.NewSystem(store, monitor, cfg.Credit),
		Auctions:  auction.NewCoordinator(store, pool, cfg.AuctionWindow),
		Trades:    trade.NewEngine(store, cfg.TradeTTL),
		Fund:      pool,
	}
	return s
}

func (s *Session) Lap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lap
}

// PassGo mints the GO salary to a player who completed a circuit. This is a
// declared boundary input, not an internal transfer.
func (s *Session) PassGo(playerID string) error {
	return s.Ledger.Mint(playerID, s.cfg.GOSalary, "go-salary")
}

// LapTick advances the shared lap counter: credit accrual runs, matured
// certificates pay out, foreclosures fire, the economy is sampled and
// valuations take one smoothing step.
func (s *Session) LapTick() []events.Event {
	s.mu.Lock()
	s.lap++
	lap := s.lap
	s.mu.Unlock()

	var evs []events.Event

	foreclosures, matured := s.Credit.AccrueLaps(lap)
	for _, m := range matured {
		evs = append(evs, events.LoanUpdated{InstrumentID: m.InstrumentID, PlayerID: m.PlayerID, Principal: 0, Closed: true})
		s.log.Info("cd matured", "instrument", m.InstrumentID, "player", m.PlayerID, "payout", m.Payout)
	}
	for _, f := range foreclosures {
		evs = append(evs, s.foreclose(f)...)
	}

	if transition, changed := s.Monitor.Sample(s.Ledger.TotalPlayerCash()); changed {
		s.Credit.RequoteRates()
		evs = append(evs, events.EconomicUpdate{
			OldRegime: transition.Old.String(),
			NewRegime: transition.New.String(),
			Factor:    transition.Factor,
			Rationale: transition.Rationale,
		})
		s.log.Info("regime change", "old", transition.Old.String(), "new", transition.New.String(), "factor", transition.Factor)
	}

	for _, u := range s.Valuation.RecomputeAll() {
		evs = append(evs, events.PropertyUpdated{PropertyID: u.PropertyID, Price: u.Price, Rent: u.Rent, OwnerID: u.OwnerID})
	}

	if share, err := s.Fund.Holiday(); err == nil && share > 0 {
		evs = append(evs, events.CommunityFundUpdate{Balance: s.Fund.Balance(), Delta: -share, Reason: "fund holiday"})
	}
	return evs
}

// TickTimers drives the auction countdowns and the trade expiry sweep. The
// worker calls this on a short cadence; callbacks that lost the race to an
// earlier resolution are no-ops.
func (s *Session) TickTimers(now time.Time) []events.Event {
	var evs []events.Event
	for _, ended := range s.Auctions.Tick(now) {
		ev := ended
		evs = append(evs, ev)
	}
	for _, expired := range s.Trades.ExpireDue(now) {
		evs = append(evs, events.TradeRejected{TradeID: expired.ID, Status: string(expired.Status)})
	}
	return evs
}

// ConservationTotal sums every account the engine controls: player cash,
// the community fund and the bank treasury. Internal operations keep this
// constant; only true external inputs may change it.
func (s *Session) ConservationTotal() int64 {
	return s.Ledger.TotalPlayerCash() + s.Fund.Balance() + s.Ledger.Treasury()
}

// Snapshot is the durable form of the whole session.
type Snapshot struct {
	Lap     int             `json:"lap"`
	Ledger  ledger.Snapshot `json:"ledger"`
	Economy economy.State   `json:"economy"`
	Credit  bank.State      `json:"credit"`
	Fund    fund.State      `json:"fund"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	lap := s.lap
	s.mu.Unlock()
	return Snapshot{
		Lap:     lap,
		Ledger:  s.Ledger.Snapshot(),
		Economy: s.Monitor.Snapshot(),
		Credit:  s.Credit.Snapshot(),
		Fund:    s.Fund.Snapshot(),
	}
}

// Restore replaces session state wholesale from a snapshot, then recomputes
// derived fields (prices, rents, quoted rates) from the restored inputs
// rather than trusting persisted derived values.
func (s *Session) Restore(snap Snapshot) {
	s.mu.Lock()
	s.lap = snap.Lap
	s.mu.Unlock()
	s.Ledger.Restore(snap.Ledger)
	s.Monitor.Restore(snap.Economy)
	s.Credit.Restore(snap.Credit)
	s.Fund.Restore(snap.Fund)
	s.Credit.RequoteRates()
	s.Valuation.RecomputeAll()
}
