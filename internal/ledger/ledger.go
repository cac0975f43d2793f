// Package ledger is the authoritative store for player cash, property
// ownership and liens. Every mutation that touches cash or ownership runs
// under the lock set covering exactly the entities it reads and writes.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrPlayerNotFound    = errors.New("player not found")
	ErrPropertyNotFound  = errors.New("property not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPlayerInactive    = errors.New("player is not active")
	ErrNotOwner          = errors.New("player does not own property")
	ErrPropertyLiened    = errors.New("property carries a lien")
	ErrNoLien            = errors.New("property carries no lien")
	ErrDuplicateID       = errors.New("duplicate id")
)

type LienKind string

const (
	LienNone     LienKind = ""
	LienMortgage LienKind = "mortgage"
	LienHELOC    LienKind = "heloc"
)

type Player struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Cash        int64  `json:"cash"`
	Position    int    `json:"position"`
	Active      bool   `json:"active"`
	Human       bool   `json:"human"`
	EscapeCards int    `json:"escape_cards"`
}

type Property struct {
	ID           string   `json:"id"`
	Group        string   `json:"group"`
	BasePrice    int64    `json:"base_price"`
	BaseRent     int64    `json:"base_rent"`
	Price        int64    `json:"price"`
	Rent         int64    `json:"rent"`
	Improvement  int      `json:"improvement"` // 0 or 1
	OwnerID      string   `json:"owner_id"`    // empty = bank-owned
	Lien         bool     `json:"lien"`
	LienKind     LienKind `json:"lien_kind,omitempty"`
	LienAmount   int64    `json:"lien_amount,omitempty"`
	LienStartLap int      `json:"lien_start_lap,omitempty"`
}

// Snapshot is the durable form of the ledger.
type Snapshot struct {
	Players    []Player   `json:"players"`
	Properties []Property `json:"properties"`
	Treasury   int64      `json:"treasury"`
}

// DefaultTreasury seeds the bank with enough cash that it never runs dry in
// a normal game; it is part of the conserved total, not an infinite well.
const DefaultTreasury = int64(1_000_000)

// CashEvent is one audited treasury movement. Mint pays a player from the
// treasury, burn returns player cash to it; the journal is what makes the
// conserved total checkable after the fact.
type CashEvent struct {
	Kind     string `json:"kind"` // "mint" or "burn"
	PlayerID string `json:"player_id"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
}

type Store struct {
	mu         sync.RWMutex // guards maps, lock registry, treasury, journal
	players    map[string]*Player
	properties map[string]*Property
	locks      map[string]*sync.Mutex
	treasury   int64
	journal    []CashEvent
}

func NewStore() *Store {
	return &Store{
		players:    make(map[string]*Player),
		properties: make(map[string]*Property),
		locks:      make(map[string]*sync.Mutex),
		treasury:   DefaultTreasury,
	}
}

// treasuryKey participates in lock sets like any entity so that mint/burn
// style movements serialize against each other.
const treasuryKey = "bank/treasury"

func PlayerKey(id string) string   { return "player/" + id }
func PropertyKey(id string) string { return "property/" + id }

func (s *Store) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Acquire takes every lock in keys in a deterministic order and returns the
// release function. Duplicate keys are collapsed. Callers must hold the
// returned locks across validate and commit, never validate-then-reacquire.
func (s *Store) Acquire(keys ...string) (release func()) {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Strings(uniq)
	locks := make([]*sync.Mutex, len(uniq))
	for i, k := range uniq {
		locks[i] = s.lockFor(k)
		locks[i].Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

func (s *Store) AddPlayer(p Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[p.ID]; ok {
		return fmt.Errorf("%w: player %s", ErrDuplicateID, p.ID)
	}
	cp := p
	s.players[p.ID] = &cp
	return nil
}

func (s *Store) AddProperty(p Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[p.ID]; ok {
		return fmt.Errorf("%w: property %s", ErrDuplicateID, p.ID)
	}
	if p.Price == 0 {
		p.Price = p.BasePrice
	}
	if p.Rent == 0 {
		p.Rent = p.BaseRent
	}
	cp := p
	s.properties[p.ID] = &cp
	return nil
}

// Player returns the live record. Mutating it, or reading cash/ownership for
// a validate-then-commit flow, requires holding its lock via Acquire.
func (s *Store) Player(id string) (*Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return p, nil
}

func (s *Store) Property(id string) (*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPropertyNotFound, id)
	}
	return p, nil
}

// PlayerView copies the record under its lock.
func (s *Store) PlayerView(id string) (Player, error) {
	p, err := s.Player(id)
	if err != nil {
		return Player{}, err
	}
	release := s.Acquire(PlayerKey(id))
	defer release()
	return *p, nil
}

func (s *Store) PropertyView(id string) (Property, error) {
	p, err := s.Property(id)
	if err != nil {
		return Property{}, err
	}
	release := s.Acquire(PropertyKey(id))
	defer release()
	return *p, nil
}

func (s *Store) PlayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) PropertyIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.properties))
	for id := range s.properties {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActivePlayerIDs returns the ids of players still in the game.
func (s *Store) ActivePlayerIDs() []string {
	out := make([]string, 0)
	for _, id := range s.PlayerIDs() {
		release := s.Acquire(PlayerKey(id))
		p, _ := s.Player(id)
		if p != nil && p.Active {
			out = append(out, id)
		}
		release()
	}
	return out
}

// GroupPropertyIDs returns every property id in the group, sorted. Group
// membership is immutable, so no lock is needed.
func (s *Store) GroupPropertyIDs(group string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, 4)
	for id, p := range s.properties {
		if p.Group == group {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// OwnsGroup reports whether ownerID holds every property in the group.
// The caller must hold the locks of every property in the group.
func (s *Store) OwnsGroup(ownerID, group string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := false
	for _, p := range s.properties {
		if p.Group != group {
			continue
		}
		found = true
		if p.OwnerID != ownerID {
			return false
		}
	}
	return found
}

// OwnedPropertyIDs returns ids of properties owned by the player, sorted.
func (s *Store) OwnedPropertyIDs(ownerID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0)
	for id, p := range s.properties {
		if p.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Transfer moves cash between two players under both locks.
func (s *Store) Transfer(fromID, toID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("negative transfer amount %d", amount)
	}
	from, err := s.Player(fromID)
	if err != nil {
		return err
	}
	to, err := s.Player(toID)
	if err != nil {
		return err
	}
	release := s.Acquire(PlayerKey(fromID), PlayerKey(toID))
	defer release()
	if from.Cash < amount {
		return fmt.Errorf("%w: player %s has %d, needs %d", ErrInsufficientFunds, fromID, from.Cash, amount)
	}
	from.Cash -= amount
	to.Cash += amount
	return nil
}

// Mint pays a player from the bank treasury (GO salary, card effects,
// loan disbursement). The conserved total is unchanged because the
// treasury is part of it.
func (s *Store) Mint(toID string, amount int64, reason string) error {
	if amount < 0 {
		return fmt.Errorf("negative mint amount %d", amount)
	}
	to, err := s.Player(toID)
	if err != nil {
		return err
	}
	release := s.Acquire(PlayerKey(toID), treasuryKey)
	defer release()
	s.mu.Lock()
	s.treasury -= amount
	s.journal = append(s.journal, CashEvent{Kind: "mint", PlayerID: toID, Amount: amount, Reason: reason})
	s.mu.Unlock()
	to.Cash += amount
	return nil
}

// Burn moves player cash into the bank treasury (taxes, purchase prices,
// penalties).
func (s *Store) Burn(fromID string, amount int64, reason string) error {
	if amount < 0 {
		return fmt.Errorf("negative burn amount %d", amount)
	}
	from, err := s.Player(fromID)
	if err != nil {
		return err
	}
	release := s.Acquire(PlayerKey(fromID), treasuryKey)
	defer release()
	if from.Cash < amount {
		return fmt.Errorf("%w: player %s has %d, needs %d", ErrInsufficientFunds, fromID, from.Cash, amount)
	}
	from.Cash -= amount
	s.mu.Lock()
	s.treasury += amount
	s.journal = append(s.journal, CashEvent{Kind: "burn", PlayerID: fromID, Amount: amount, Reason: reason})
	s.mu.Unlock()
	return nil
}

// BurnLocked is Burn for callers that already hold the player's lock as part
// of a wider lock set. Treasury consistency is covered by the store mutex.
func (s *Store) BurnLocked(p *Player, amount int64, reason string) error {
	if amount < 0 {
		return fmt.Errorf("negative burn amount %d", amount)
	}
	if p.Cash < amount {
		return fmt.Errorf("%w: player %s has %d, needs %d", ErrInsufficientFunds, p.ID, p.Cash, amount)
	}
	p.Cash -= amount
	s.mu.Lock()
	s.treasury += amount
	s.journal = append(s.journal, CashEvent{Kind: "burn", PlayerID: p.ID, Amount: amount, Reason: reason})
	s.mu.Unlock()
	return nil
}

// MintLocked is Mint for callers that already hold the player's lock.
func (s *Store) MintLocked(p *Player, amount int64, reason string) error {
	if amount < 0 {
		return fmt.Errorf("negative mint amount %d", amount)
	}
	s.mu.Lock()
	s.treasury -= amount
	s.journal = append(s.journal, CashEvent{Kind: "mint", PlayerID: p.ID, Amount: amount, Reason: reason})
	s.mu.Unlock()
	p.Cash += amount
	return nil
}

func (s *Store) Treasury() int64 {
	release := s.Acquire(treasuryKey)
	defer release()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.treasury
}

// TotalPlayerCash sums active players' cash. Locks are taken one entity at a
// time; the monitor smooths over any skew with its moving average.
func (s *Store) TotalPlayerCash() int64 {
	var total int64
	for _, id := range s.PlayerIDs() {
		release := s.Acquire(PlayerKey(id))
		p, _ := s.Player(id)
		if p != nil && p.Active {
			total += p.Cash
		}
		release()
	}
	return total
}

// Snapshot copies the full ledger state for persistence. It quiesces the
// store by taking every entity lock.
func (s *Store) Snapshot() Snapshot {
	keys := make([]string, 0)
	for _, id := range s.PlayerIDs() {
		keys = append(keys, PlayerKey(id))
	}
	for _, id := range s.PropertyIDs() {
		keys = append(keys, PropertyKey(id))
	}
	keys = append(keys, treasuryKey)
	release := s.Acquire(keys...)
	defer release()

	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Treasury: s.treasury}
	for _, p := range s.players {
		snap.Players = append(snap.Players, *p)
	}
	for _, p := range s.properties {
		snap.Properties = append(snap.Properties, *p)
	}
	sort.Slice(snap.Players, func(i, j int) bool { return snap.Players[i].ID < snap.Players[j].ID })
	sort.Slice(snap.Properties, func(i, j int) bool { return snap.Properties[i].ID < snap.Properties[j].ID })
	return snap
}

// Restore replaces the ledger wholesale with the snapshot contents. Derived
// fields (price, rent) are carried as-is here; the session recomputes them
// from the restored economic state afterwards.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = make(map[string]*Player, len(snap.Players))
	s.properties = make(map[string]*Property, len(snap.Properties))
	for _, p := range snap.Players {
		cp := p
		s.players[p.ID] = &cp
	}
	for _, p := range snap.Properties {
		cp := p
		s.properties[p.ID] = &cp
	}
	s.treasury = snap.Treasury
	s.journal = nil
}

// CashJournal returns the audited mint/burn history since the last restore.
func (s *Store) CashJournal() []CashEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CashEvent, len(s.journal))
	copy(out, s.journal)
	return out
}
