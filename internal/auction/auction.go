// Package auction runs the timed bidding protocol for bank-owned
// properties. One auction per property at a time; every bid and every
// timer expiry re-validates under the auction lock, so two racing bids can
// never both win the anti-snipe reset.
package auction

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tycoon/internal/events"
	"tycoon/internal/fund"
	"tycoon/internal/ledger"
)

var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrAuctionResolved = errors.New("auction already resolved")
	ErrAlreadyActive   = errors.New("property already has an active auction")
	ErrNotBankOwned    = errors.New("property is not bank-owned")
	ErrNotEligible     = errors.New("player is not eligible for this auction")
	ErrAlreadyPassed   = errors.New("player has already passed")
	ErrBidTooLow       = errors.New("bid does not exceed the current bid")
	ErrBelowMinimum    = errors.New("bid is below the minimum bid")
)

type Status string

const (
	StatusActive Status = "active"
	StatusSold   Status = "sold"
	StatusUnsold Status = "unsold"
)

const (
	// Minimum bid is 70% of the property's current price at start.
	minBidShare = 0.70
	// A winning overbid above list price is skimmed at 10% into the
	// community fund.
	overbidSkimShare = 0.10

	DefaultWindow = 30 * time.Second
)

type auction struct {
	mu         sync.Mutex
	id         string
	propertyID string
	listPrice  int64
	minimumBid int64
	currentBid int64
	leaderID   string
	eligible   map[string]bool
	passed     map[string]bool
	status     Status
	deadline   time.Time
	winnerID   string
	winAmount  int64
}

// View is a copy of an auction safe to hand to callers.
type View struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	ListPrice  int64     `json:"list_price"`
	MinimumBid int64     `json:"minimum_bid"`
	CurrentBid int64     `json:"current_bid"`
	LeaderID   string    `json:"leader_id,omitempty"`
	Status     Status    `json:"status"`
	Deadline   time.Time `json:"deadline"`
	Eligible   []string  `json:"eligible"`
	Passed     []string  `json:"passed"`
	WinnerID   string    `json:"winner_id,omitempty"`
	WinAmount  int64     `json:"win_amount,omitempty"`
}

func (a *auction) viewLocked() View {
	v := View{
		ID:         a.id,
		PropertyID: a.propertyID,
		ListPrice:  a.listPrice,
		MinimumBid: a.minimumBid,
		CurrentBid: a.currentBid,
		LeaderID:   a.leaderID,
		Status:     a.status,
		Deadline:   a.deadline,
		WinnerID:   a.winnerID,
		WinAmount:  a.winAmount,
	}
	for id := range a.eligible {
		v.Eligible = append(v.Eligible, id)
	}
	for id := range a.passed {
		v.Passed = append(v.Passed, id)
	}
	sort.Strings(v.Eligible)
	sort.Strings(v.Passed)
	return v
}

type Coordinator struct {
	mu         sync.Mutex
	store      *ledger.Store
	pool       *fund.Fund
	window     time.Duration
	auctions   map[string]*auction
	byProperty map[string]string // property id -> active auction id
}

func NewCoordinator(store *ledger.Store, pool *fund.Fund, window time.Duration) *Coordinator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Coordinator{
		store:      store,
		pool:       pool,
		window:     window,
		auctions:   make(map[string]*auction),
		byProperty: make(map[string]string),
	}
}

// Start opens an auction on a bank-owned property. Minimum bid is 70% of
// the current price; every active player is eligible.
func (c *Coordinator) Start(propertyID string, now time.Time) (View, events.AuctionStarted, error) {
	prop, err := c.store.Property(propertyID)
	if err != nil {
		return View{}, events.AuctionStarted{}, err
	}

	release := c.store.Acquire(ledger.PropertyKey(propertyID))
	listPrice := prop.Price
	bankOwned := prop.OwnerID == ""
	release()
	if !bankOwned {
		return View{}, events.AuctionStarted{}, fmt.Errorf("%w: %s", ErrNotBankOwned, propertyID)
	}

	eligible := make(map[string]bool)
	for _, id := range c.store.ActivePlayerIDs() {
		eligible[id] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.byProperty[propertyID]; busy {
		return View{}, events.AuctionStarted{}, fmt.Errorf("%w: %s", ErrAlreadyActive, propertyID)
	}
	a := &auction{
		id:         uuid.NewString(),
		propertyID: propertyID,
		listPrice:  listPrice,
		minimumBid: int64(math.Round(minBidShare * float64(listPrice))),
		eligible:   eligible,
		passed:     make(map[string]bool),
		status:     StatusActive,
		deadline:   now.Add(c.window),
	}
	c.auctions[a.id] = a
	c.byProperty[propertyID] = a.id

	ev := events.AuctionStarted{AuctionID: a.id, PropertyID: propertyID, MinimumBid: a.minimumBid, Deadline: a.deadline}
	return a.viewLocked(), ev, nil
}

func (c *Coordinator) find(auctionID string) (*auction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAuctionNotFound, auctionID)
	}
	return a, nil
}

// PlaceBid validates at commit time under the auction lock: a bid that lost
// the race to a now-higher current bid is rejected, never reordered.
// An accepted bid resets the countdown to the full window.
func (c *Coordinator) PlaceBid(auctionID, playerID string, amount int64, now time.Time) (View, events.AuctionBid, error) {
	a, err := c.find(auctionID)
	if err != nil {
		return View{}, events.AuctionBid{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusActive {
		return View{}, events.AuctionBid{}, fmt.Errorf("%w: %s is %s", ErrAuctionResolved, auctionID, a.status)
	}
	if !a.eligible[playerID] {
		return View{}, events.AuctionBid{}, fmt.Errorf("%w: %s", ErrNotEligible, playerID)
	}
	if a.passed[playerID] {
		return View{}, events.AuctionBid{}, fmt.Errorf("%w: %s", ErrAlreadyPassed, playerID)
	}
	if a.leaderID == "" {
		if amount < a.minimumBid {
			return View{}, events.AuctionBid{}, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, amount, a.minimumBid)
		}
	} else if amount <= a.currentBid {
		return View{}, events.AuctionBid{}, fmt.Errorf("%w: %d <= %d", ErrBidTooLow, amount, a.currentBid)
	}

	bidder, err := c.store.Player(playerID)
	if err != nil {
		return View{}, events.AuctionBid{}, err
	}
	releaseBidder := c.store.Acquire(ledger.PlayerKey(playerID))
	cash := bidder.Cash
	releaseBidder()
	if cash < amount {
		return View{}, events.AuctionBid{}, fmt.Errorf("%w: player %s has %d, bid %d", ledger.ErrInsufficientFunds, playerID, cash, amount)
	}

	a.currentBid = amount
	a.leaderID = playerID
	a.deadline = now.Add(c.window)

	ev := events.AuctionBid{AuctionID: a.id, PlayerID: playerID, Amount: amount, Deadline: a.deadline}
	return a.viewLocked(), ev, nil
}

// Pass withdraws a player. When everyone has passed, or only the current
// leader remains, the auction resolves immediately.
func (c *Coordinator) Pass(auctionID, playerID string, now time.Time) (View, *events.AuctionEnded, error) {
	a, err := c.find(auctionID)
	if err != nil {
		return View{}, nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusActive {
		return View{}, nil, fmt.Errorf("%w: %s is %s", ErrAuctionResolved, auctionID, a.status)
	}
	if !a.eligible[playerID] {
		return View{}, nil, fmt.Errorf("%w: %s", ErrNotEligible, playerID)
	}
	if a.passed[playerID] {
		return View{}, nil, fmt.Errorf("%w: %s", ErrAlreadyPassed, playerID)
	}
	a.passed[playerID] = true

	remaining := 0
	onlyLeaderLeft := true
	for id := range a.eligible {
		if a.passed[id] {
			continue
		}
		remaining++
		if id != a.leaderID {
			onlyLeaderLeft = false
		}
	}
	if remaining == 0 || (a.leaderID != "" && onlyLeaderLeft) {
		ev := c.resolveLocked(a)
		return a.viewLocked(), &ev, nil
	}
	return a.viewLocked(), nil, nil
}

// Tick resolves auctions whose countdown has expired. Safe to call from any
// timer cadence: an auction resolved between scheduling and firing is a
// no-op because the status check happens under the auction lock.
func (c *Coordinator) Tick(now time.Time) []events.AuctionEnded {
	c.mu.Lock()
	due := make([]*auction, 0)
	for _, a := range c.auctions {
		due = append(due, a)
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })

	var out []events.AuctionEnded
	for _, a := range due {
		a.mu.Lock()
		if a.status == StatusActive && !now.Before(a.deadline) {
			out = append(out, c.resolveLocked(a))
		}
		a.mu.Unlock()
	}
	return out
}

// resolveLocked settles the auction. Caller holds a.mu. The leading bid is
// re-validated against the bidder's live cash under the ledger lock set; if
// the leader can no longer afford it, the auction resolves unsold.
func (c *Coordinator) resolveLocked(a *auction) events.AuctionEnded {
	defer func() {
		c.mu.Lock()
		delete(c.byProperty, a.propertyID)
		c.mu.Unlock()
	}()

	if a.leaderID == "" {
		a.status = StatusUnsold
		return events.AuctionEnded{AuctionID: a.id, PropertyID: a.propertyID, Sold: false}
	}

	winner, werr := c.store.Player(a.leaderID)
	prop, perr := c.store.Property(a.propertyID)
	if werr != nil || perr != nil {
		a.status = StatusUnsold
		return events.AuctionEnded{AuctionID: a.id, PropertyID: a.propertyID, Sold: false}
	}

	release := c.store.Acquire(ledger.PlayerKey(a.leaderID), ledger.PropertyKey(a.propertyID))
	defer release()

	amount := a.currentBid
	var skim int64
	if amount > a.listPrice {
		skim = int64(math.Round(overbidSkimShare * float64(amount-a.listPrice)))
	}
	if winner.Cash < amount || prop.OwnerID != "" {
		a.status = StatusUnsold
		return events.AuctionEnded{AuctionID: a.id, PropertyID: a.propertyID, Sold: false}
	}

	if err := c.store.BurnLocked(winner, amount-skim, "auction:"+a.id); err != nil {
		a.status = StatusUnsold
		return events.AuctionEnded{AuctionID: a.id, PropertyID: a.propertyID, Sold: false}
	}
	if skim > 0 {
		winner.Cash -= skim
		_, _ = c.pool.Deposit(skim, "auction overbid skim:"+a.id)
	}
	prop.OwnerID = a.leaderID

	a.status = StatusSold
	a.winnerID = a.leaderID
	a.winAmount = amount
	return events.AuctionEnded{AuctionID: a.id, PropertyID: a.propertyID, Sold: true, WinnerID: a.winnerID, Amount: amount}
}

func (c *Coordinator) View(auctionID string) (View, error) {
	a, err := c.find(auctionID)
	if err != nil {
		return View{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viewLocked(), nil
}

// ActiveViews lists auctions still running, sorted by id.
func (c *Coordinator) ActiveViews() []View {
	c.mu.Lock()
	all := make([]*auction, 0, len(c.auctions))
	for _, a := range c.auctions {
		all = append(all, a)
	}
	c.mu.Unlock()

	out := make([]View, 0)
	for _, a := range all {
		a.mu.Lock()
		if a.status == StatusActive {
			out = append(out, a.viewLocked())
		}
		a.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
