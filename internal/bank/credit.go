// Package bank implements the credit system: loans, certificates of
// deposit and home-equity lines, with per-lap interest accrual, a debt cap
// and foreclosure triggers.
package bank

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"tycoon/internal/economy"
	"tycoon/internal/ledger"
)

var (
	ErrInstrumentNotFound = errors.New("credit instrument not found")
	ErrInstrumentClosed   = errors.New("credit instrument is closed")
	ErrBelowMinimum       = errors.New("amount below configured minimum")
	ErrBadTerm            = errors.New("unsupported certificate term")
	ErrDebtCapExceeded    = errors.New("debt cap exceeded")
	ErrNotHolder          = errors.New("player does not hold this instrument")
	ErrOverEquityLimit    = errors.New("requested amount exceeds the equity limit")
)

// DebtCapError reports the computed cap alongside the rejected request so
// the caller sees why, not just that, the loan was refused.
type DebtCapError struct {
	Cap         int64
	Requested   int64
	Outstanding int64
}

func (e *DebtCapError) Error() string {
	return fmt.Sprintf("debt cap exceeded: cap %d, outstanding %d, requested %d", e.Cap, e.Outstanding, e.Requested)
}

func (e *DebtCapError) Is(target error) bool { return target == ErrDebtCapExceeded }

type Kind string

const (
	KindLoan  Kind = "loan"
	KindCD    Kind = "certificate-of-deposit"
	KindHELOC Kind = "home-equity-line"
)

type Instrument struct {
	ID         string  `json:"id"`
	PlayerID   string  `json:"player_id"`
	Kind       Kind    `json:"kind"`
	Principal  int64   `json:"principal"`
	Rate       float64 `json:"rate"`
	StartLap   int     `json:"start_lap"`
	TermLaps   int     `json:"term_laps,omitempty"`
	Collateral string  `json:"collateral,omitempty"` // home-equity only
	Active     bool    `json:"active"`
	UnpaidLaps int     `json:"unpaid_laps,omitempty"`
}

// Foreclosure is raised by lap accrual when an instrument has gone unpaid
// past its threshold. Asset seizure itself belongs to the resolver.
type Foreclosure struct {
	InstrumentID string
	PlayerID     string
	Kind         Kind
	Owed         int64
	Collateral   string
}

// Matured is a certificate paid out at the end of its term.
type Matured struct {
	InstrumentID string
	PlayerID     string
	Payout       int64
}

type Config struct {
	MinLoan              int64
	LoanBaseRate         float64
	RateFloor            float64
	LoanForeclosureLaps  int
	HELOCForeclosureLaps int
	HELOCEquityShare     float64
	DebtCapRatio         float64
}

func DefaultConfig() Config {
	return Config{
		MinLoan:              100,
		LoanBaseRate:         0.08,
		RateFloor:            0.05,
		LoanForeclosureLaps:  6,
		HELOCForeclosureLaps: 4,
		HELOCEquityShare:     0.70,
		DebtCapRatio:         2.0,
	}
}

// cdReturns maps term length to total return at maturity.
var cdReturns = map[int]float64{3: 0.08, 5: 0.12, 7: 0.18}

// regimeRateModifier shifts the quoted loan rate with the economy.
func regimeRateModifier(r economy.Regime) float64 {
	switch r {
	case economy.Recession:
		return -0.03
	case economy.Inflation:
		return 0.02
	case economy.HighInflation:
		return 0.04
	case economy.Overheated:
		return 0.06
	default:
		return 0
	}
}

// State is the durable form of the credit system.
type State struct {
	Instruments []Instrument `json:"instruments"`
	QuotedRate  float64      `json:"quoted_rate"`
}

type System struct {
	mu          sync.Mutex
	cfg         Config
	store       *ledger.Store
	monitor     *economy.Monitor
	instruments map[string]*Instrument
	quotedRate  float64
}

func NewSystem(store *ledger.Store, monitor *economy.Monitor, cfg Config) *System {
	if cfg.MinLoan == 0 {
		cfg = DefaultConfig()
	}
	s := &System{
		cfg:         cfg,
		store:       store,
		monitor:     monitor,
		instruments: make(map[string]*Instrument),
	}
	s.RequoteRates()
	return s
}

// RequoteRates recomputes the quoted loan rate from the current regime.
// Called by the session on every regime change.
func (s *System) RequoteRates() float64 {
	rate := s.cfg.LoanBaseRate + regimeRateModifier(s.monitor.Regime())
	if rate < s.cfg.RateFloor {
		rate = s.cfg.RateFloor
	}
	s.mu.Lock()
	s.quotedRate = rate
	s.mu.Unlock()
	return rate
}

func (s *System) QuotedRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quotedRate
}

func (s *System) Instrument(id string) (Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instruments[id]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, id)
	}
	return *inst, nil
}

// InstrumentsFor returns the player's instruments, active first, sorted by id.
func (s *System) InstrumentsFor(playerID string) []Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Instrument, 0)
	for _, inst := range s.instruments {
		if inst.PlayerID == playerID {
			out = append(out, *inst)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Active != out[j].Active {
			return out[i].Active
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// OutstandingPrincipal sums active loan and HELOC principal across all
// players; certificates are bank liabilities, not player debt.
func (s *System) OutstandingPrincipal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, inst := range s.instruments {
		if inst.Active && inst.Kind != KindCD {
			total += inst.Principal
		}
	}
	return total
}

func (s *System) outstandingNonCDFor(playerID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, inst := range s.instruments {
		if inst.Active && inst.Kind != KindCD && inst.PlayerID == playerID {
			total += inst.Principal
		}
	}
	return total
}

// netWorthLocked computes cash plus unliened property value. The caller
// must hold the player's lock and the locks of every owned property.
func (s *System) netWorthLocked(p *ledger.Player, owned []string) int64 {
	worth := p.Cash
	for _, id := range owned {
		prop, err := s.store.Property(id)
		if err != nil || prop.Lien {
			continue
		}
		worth += prop.Price
	}
	return worth
}

// checkDebtCap enforces total active non-CD debt ≤ ratio × net worth.
func (s *System) checkDebtCap(p *ledger.Player, owned []string, requested int64) error {
	outstanding := s.outstandingNonCDFor(p.ID)
	cap := int64(math.Round(s.cfg.DebtCapRatio * float64(s.netWorthLocked(p, owned))))
	if outstanding+requested > cap {
		return &DebtCapError{Cap: cap, Requested: requested, Outstanding: outstanding}
	}
	return nil
}

// TakeLoan issues an unsecured loan at the quoted rate and disburses the
// principal from the treasury.
func (s *System) TakeLoan(playerID string, amount int64, lap int) (Instrument, error) {
	if amount < s.cfg.MinLoan {
		return Instrument{}, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, amount, s.cfg.MinLoan)
	}
	p, err := s.store.Player(playerID)
	if err != nil {
		return Instrument{}, err
	}
	owned := s.store.OwnedPropertyIDs(playerID)
	keys := make([]string, 0, len(owned)+1)
	keys = append(keys, ledger.PlayerKey(playerID))
	for _, id := range owned {
		keys = append(keys, ledger.PropertyKey(id))
	}
	release := s.store.Acquire(keys...)
	defer release()

	if !p.Active {
		return Instrument{}, fmt.Errorf("%w: %s", ledger.ErrPlayerInactive, playerID)
	}
	if err := s.checkDebtCap(p, owned, amount); err != nil {
		return Instrument{}, err
	}

	inst := &Instrument{
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		Kind:      KindLoan,
		Principal: amount,
		Rate:      s.QuotedRate(),
		StartLap:  lap,
		Active:    true,
	}
	if err := s.store.MintLocked(p, amount, "loan:"+inst.ID); err != nil {
		return Instrument{}, err
	}
	s.mu.Lock()
	s.instruments[inst.ID] = inst
	s.mu.Unlock()
	return *inst, nil
}

// RepayLoan applies a partial or full repayment. Paying anything resets the
// unpaid-lap counter. Returns the updated instrument.
func (s *System) RepayLoan(instrumentID string, amount int64) (Instrument, error) {
	s.mu.Lock()
	inst, ok := s.instruments[instrumentID]
	s.mu.Unlock()
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, instrumentID)
	}
	if !inst.Active {
		return Instrument{}, fmt.Errorf("%w: %s", ErrInstrumentClosed, instrumentID)
	}
	if amount <= 0 {
		return Instrument{}, fmt.Errorf("repayment must be positive, got %d", amount)
	}

	p, err := s.store.Player(inst.PlayerID)
	if err != nil {
		return Instrument{}, err
	}
	release := s.store.Acquire(ledger.PlayerKey(inst.PlayerID))
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !inst.Active {
		return Instrument{}, fmt.Errorf("%w: %s", ErrInstrumentClosed, instrumentID)
	}
	if amount > inst.Principal {
		amount = inst.Principal
	}
	if err := s.store.BurnLocked(p, amount, "repay:"+inst.ID); err != nil {
		return Instrument{}, err
	}
	inst.Principal -= amount
	inst.UnpaidLaps = 0
	if inst.Principal == 0 {
		inst.Active = false
		if inst.Kind == KindHELOC {
			s.clearLien(inst.Collateral)
		}
	}
	return *inst, nil
}

// TakeHELOC borrows against a property's current price. The property
// becomes liened, blocking trade and improvement.
func (s *System) TakeHELOC(playerID, propertyID string, amount int64, lap int) (Instrument, error) {
	if amount < s.cfg.MinLoan {
		return Instrument{}, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, amount, s.cfg.MinLoan)
	}
	p, err := s.store.Player(playerID)
	if err != nil {
		return Instrument{}, err
	}
	if _, err := s.store.Property(propertyID); err != nil {
		return Instrument{}, err
	}
	owned := s.store.OwnedPropertyIDs(playerID)
	keys := make([]string, 0, len(owned)+2)
	keys = append(keys, ledger.PlayerKey(playerID), ledger.PropertyKey(propertyID))
	for _, id := range owned {
		keys = append(keys, ledger.PropertyKey(id))
	}
	release := s.store.Acquire(keys...)
	defer release()

	prop, err := s.store.Property(propertyID)
	if err != nil {
		return Instrument{}, err
	}
	if !p.Active {
		return Instrument{}, fmt.Errorf("%w: %s", ledger.ErrPlayerInactive, playerID)
	}
	if prop.OwnerID != playerID {
		return Instrument{}, fmt.Errorf("%w: %s does not own %s", ledger.ErrNotOwner, playerID, propertyID)
	}
	if prop.Lien {
		return Instrument{}, fmt.Errorf("%w: %s", ledger.ErrPropertyLiened, propertyID)
	}
	limit := int64(math.Round(s.cfg.HELOCEquityShare * float64(prop.Price)))
	if amount > limit {
		return Instrument{}, fmt.Errorf("%w: %d > %d (70%% of %d)", ErrOverEquityLimit, amount, limit, prop.Price)
	}
	if err := s.checkDebtCap(p, owned, amount); err != nil {
		return Instrument{}, err
	}

	inst := &Instrument{
		ID:         uuid.NewString(),
		PlayerID:   playerID,
		Kind:       KindHELOC,
		Principal:  amount,
		Rate:       s.QuotedRate(),
		StartLap:   lap,
		Collateral: propertyID,
		Active:     true,
	}
	if err := s.store.MintLocked(p, amount, "heloc:"+inst.ID); err != nil {
		return Instrument{}, err
	}
	prop.Lien = true
	prop.LienKind = ledger.LienHELOC
	prop.LienAmount = amount
	prop.LienStartLap = lap

	s.mu.Lock()
	s.instruments[inst.ID] = inst
	s.mu.Unlock()
	return *inst, nil
}

// Mortgage liens a property for half its current price, paid out from the
// treasury. A mortgaged property cannot be traded or improved.
func (s *System) Mortgage(playerID, propertyID string, lap int) (value int64, err error) {
	p, err := s.store.Player(playerID)
	if err != nil {
		return 0, err
	}
	prop, err := s.store.Property(propertyID)
	if err != nil {
		return 0, err
	}
	release := s.store.Acquire(ledger.PlayerKey(playerID), ledger.PropertyKey(propertyID))
	defer release()

	if !p.Active {
		return 0, fmt.Errorf("%w: %s", ledger.ErrPlayerInactive, playerID)
	}
	if prop.OwnerID != playerID {
		return 0, fmt.Errorf("%w: %s does not own %s", ledger.ErrNotOwner, playerID, propertyID)
	}
	if prop.Lien {
		return 0, fmt.Errorf("%w: %s", ledger.ErrPropertyLiened, propertyID)
	}
	value = int64(math.Round(float64(prop.Price) * 0.5))
	if err := s.store.MintLocked(p, value, "mortgage:"+propertyID); err != nil {
		return 0, err
	}
	prop.Lien = true
	prop.LienKind = ledger.LienMortgage
	prop.LienAmount = value
	prop.LienStartLap = lap
	return value, nil
}

// Unmortgage lifts a mortgage lien at 110% of the mortgage value.
func (s *System) Unmortgage(playerID, propertyID string) (cost int64, err error) {
	p, err := s.store.Player(playerID)
	if err != nil {
		return 0, err
	}
	prop, err := s.store.Property(propertyID)
	if err != nil {
		return 0, err
	}
	release := s.store.Acquire(ledger.PlayerKey(playerID), ledger.PropertyKey(propertyID))
	defer release()

	if prop.OwnerID != playerID {
		return 0, fmt.Errorf("%w: %s does not own %s", ledger.ErrNotOwner, playerID, propertyID)
	}
	if !prop.Lien || prop.LienKind != ledger.LienMortgage {
		return 0, fmt.Errorf("%w: %s", ledger.ErrNoLien, propertyID)
	}
	cost = int64(math.Round(float64(prop.LienAmount) * 1.1))
	if err := s.store.BurnLocked(p, cost, "unmortgage:"+propertyID); err != nil {
		return 0, err
	}
	prop.Lien = false
	prop.LienKind = ledger.LienNone
	prop.LienAmount = 0
	prop.LienStartLap = 0
	return cost, nil
}

// CreateCD locks cash into a fixed-term certificate. Terms are 3, 5 or 7
// laps returning 8, 12 or 18 percent at maturity.
func (s *System) CreateCD(playerID string, amount int64, termLaps, lap int) (Instrument, error) {
	rate, ok := cdReturns[termLaps]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %d laps", ErrBadTerm, termLaps)
	}
	if amount < s.cfg.MinLoan {
		return Instrument{}, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, amount, s.cfg.MinLoan)
	}
	p, err := s.store.Player(playerID)
	if err != nil {
		return Instrument{}, err
	}
	release := s.store.Acquire(ledger.PlayerKey(playerID))
	defer release()
	if !p.Active {
		return Instrument{}, fmt.Errorf("%w: %s", ledger.ErrPlayerInactive, playerID)
	}
	if err := s.store.BurnLocked(p, amount, "cd:create"); err != nil {
		return Instrument{}, err
	}

	inst := &Instrument{
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		Kind:      KindCD,
		Principal: amount,
		Rate:      rate,
		StartLap:  lap,
		TermLaps:  termLaps,
		Active:    true,
	}
	s.mu.Lock()
	s.instruments[inst.ID] = inst
	s.mu.Unlock()
	return *inst, nil
}

// WithdrawCD closes a certificate before or at maturity. Before half the
// term the holder forfeits all interest and pays a 10% principal penalty;
// from half term on, half interest and a 5% penalty. At or past maturity
// the full return is paid.
func (s *System) WithdrawCD(instrumentID string, lap int) (payout int64, inst Instrument, err error) {
	s.mu.Lock()
	live, ok := s.instruments[instrumentID]
	s.mu.Unlock()
	if !ok {
		return 0, Instrument{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, instrumentID)
	}
	if !live.Active || live.Kind != KindCD {
		return 0, Instrument{}, fmt.Errorf("%w: %s", ErrInstrumentClosed, instrumentID)
	}

	p, err := s.store.Player(live.PlayerID)
	if err != nil {
		return 0, Instrument{}, err
	}
	release := s.store.Acquire(ledger.PlayerKey(live.PlayerID))
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !live.Active {
		return 0, Instrument{}, fmt.Errorf("%w: %s", ErrInstrumentClosed, instrumentID)
	}
	payout = cdPayout(live, lap)
	if err := s.store.MintLocked(p, payout, "cd:withdraw:"+live.ID); err != nil {
		return 0, Instrument{}, err
	}
	live.Active = false
	return payout, *live, nil
}

func cdPayout(inst *Instrument, lap int) int64 {
	elapsed := lap - inst.StartLap
	interest := int64(math.Round(float64(inst.Principal) * inst.Rate))
	switch {
	case elapsed >= inst.TermLaps:
		return inst.Principal + interest
	case elapsed*2 < inst.TermLaps:
		return inst.Principal - int64(math.Round(float64(inst.Principal)*0.10))
	default:
		return inst.Principal + interest/2 - int64(math.Round(float64(inst.Principal)*0.05))
	}
}

// EmergencyLiquidate closes every instrument a bankrupt player holds. CDs
// pay out 50% of principal; loans and HELOCs are written off (the estate is
// being liquidated). Returns the cash recovered into the player's estate.
// The caller must hold the player's lock.
func (s *System) EmergencyLiquidate(p *ledger.Player) (recovered int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.instruments {
		if !inst.Active || inst.PlayerID != p.ID {
			continue
		}
		if inst.Kind == KindCD {
			half := inst.Principal / 2
			if mintErr := s.store.MintLocked(p, half, "cd:emergency:"+inst.ID); mintErr != nil {
				return recovered, mintErr
			}
			recovered += half
		}
		if inst.Kind == KindHELOC {
			s.clearLien(inst.Collateral)
		}
		inst.Active = false
	}
	return recovered, nil
}

// AccrueLaps runs once per completed lap: loans and HELOCs compound at
// their rate and age their unpaid-lap counters, certificates past term pay
// out. Foreclosure triggers are returned for the resolver, matured CDs for
// notification.
func (s *System) AccrueLaps(lap int) (foreclosures []Foreclosure, matured []Matured) {
	type cdPay struct {
		inst   *Instrument
		payout int64
	}
	var due []cdPay

	s.mu.Lock()
	ids := make([]string, 0, len(s.instruments))
	for id := range s.instruments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		inst := s.instruments[id]
		if !inst.Active {
			continue
		}
		switch inst.Kind {
		case KindCD:
			if lap-inst.StartLap >= inst.TermLaps {
				due = append(due, cdPay{inst: inst, payout: inst.Principal + int64(math.Round(float64(inst.Principal)*inst.Rate))})
			}
		case KindLoan:
			inst.Principal += int64(math.Round(float64(inst.Principal) * inst.Rate))
			inst.UnpaidLaps++
			if inst.UnpaidLaps >= s.cfg.LoanForeclosureLaps {
				foreclosures = append(foreclosures, Foreclosure{
					InstrumentID: inst.ID, PlayerID: inst.PlayerID, Kind: KindLoan, Owed: inst.Principal,
				})
			}
		case KindHELOC:
			inst.Principal += int64(math.Round(float64(inst.Principal) * inst.Rate))
			inst.UnpaidLaps++
			if inst.UnpaidLaps >= s.cfg.HELOCForeclosureLaps {
				foreclosures = append(foreclosures, Foreclosure{
					InstrumentID: inst.ID, PlayerID: inst.PlayerID, Kind: KindHELOC, Owed: inst.Principal, Collateral: inst.Collateral,
				})
			}
		}
	}
	s.mu.Unlock()

	for _, d := range due {
		p, err := s.store.Player(d.inst.PlayerID)
		if err != nil {
			continue
		}
		release := s.store.Acquire(ledger.PlayerKey(d.inst.PlayerID))
		if err := s.store.MintLocked(p, d.payout, "cd:mature:"+d.inst.ID); err == nil {
			s.mu.Lock()
			d.inst.Active = false
			s.mu.Unlock()
			matured = append(matured, Matured{InstrumentID: d.inst.ID, PlayerID: d.inst.PlayerID, Payout: d.payout})
		}
		release()
	}
	return foreclosures, matured
}

// Close marks an instrument inactive without any cash movement; used by the
// resolver once a foreclosure or liquidation has settled.
func (s *System) Close(instrumentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instruments[instrumentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstrumentNotFound, instrumentID)
	}
	inst.Active = false
	return nil
}

// clearLien removes the lien from a HELOC collateral property. Callers may
// hold the property lock already; lien flags are only ever mutated by
// credit operations that hold the instrument owner's locks, so this direct
// write stays consistent.
func (s *System) clearLien(propertyID string) {
	prop, err := s.store.Property(propertyID)
	if err != nil {
		return
	}
	prop.Lien = false
	prop.LienKind = ledger.LienNone
	prop.LienAmount = 0
	prop.LienStartLap = 0
}

func (s *System) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{QuotedRate: s.quotedRate}
	for _, inst := range s.instruments {
		st.Instruments = append(st.Instruments, *inst)
	}
	sort.Slice(st.Instruments, func(i, j int) bool { return st.Instruments[i].ID < st.Instruments[j].ID })
	return st
}

func (s *System) Restore(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruments = make(map[string]*Instrument, len(st.Instruments))
	for _, inst := range st.Instruments {
		cp := inst
		s.instruments[inst.ID] = &cp
	}
	if st.QuotedRate > 0 {
		s.quotedRate = st.QuotedRate
	}
}
