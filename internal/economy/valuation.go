package economy

import (
	"errors"
	"fmt"
	"math"

	"tycoon/internal/ledger"
)

var (
	ErrNotFullGroup    = errors.New("player does not own the full property group")
	ErrAlreadyImproved = errors.New("property is already at the improvement cap")
)

const (
	improvedRentMultiplier = 2.0
	groupRentBonus         = 1.5
	priceSmoothingStep     = 0.25
	improveCostShare       = 0.5
)

// scaleRound applies factor to amount in basis points with half-up
// rounding. Products like 50 x 1.15 sit exactly on .5 and must not
// drift down on float representation.
func scaleRound(amount int64, factor float64) int64 {
	bp := int64(math.Round(factor * 10_000))
	return (amount*bp + 5_000) / 10_000
}

// TargetPrice is the unsmoothed price a property drifts toward.
func TargetPrice(basePrice int64, factor float64) int64 {
	return scaleRound(basePrice, factor)
}

// RentFor computes the current rent from base rent, factor, improvement and
// the monopoly bonus. Rent is not smoothed; only price is.
func RentFor(baseRent int64, factor float64, improvement int, ownsGroup bool) int64 {
	f := factor
	if improvement > 0 {
		f *= improvedRentMultiplier
	}
	if ownsGroup {
		f *= groupRentBonus
	}
	return scaleRound(baseRent, f)
}

// ImprovementCost is half of the property's current price.
func ImprovementCost(currentPrice int64) int64 {
	return scaleRound(currentPrice, improveCostShare)
}

// Valuation reprices properties against the monitor's inflation factor.
// Prices step a quarter of the gap toward target per recompute so a regime
// flip cannot invalidate an in-flight auction with a value jump.
type Valuation struct {
	store   *ledger.Store
	monitor *Monitor
}

func NewValuation(store *ledger.Store, monitor *Monitor) *Valuation {
	return &Valuation{store: store, monitor: monitor}
}

// Updated describes one repriced property.
type Updated struct {
	PropertyID string
	Price      int64
	Rent       int64
	OwnerID    string
}

// RecomputeAll reprices every property under its group's lock set and
// returns the properties whose price or rent changed.
func (v *Valuation) RecomputeAll() []Updated {
	factor := v.monitor.Factor()
	var out []Updated
	seen := make(map[string]bool)
	for _, id := range v.store.PropertyIDs() {
		if seen[id] {
			continue
		}
		p, err := v.store.Property(id)
		if err != nil {
			continue
		}
		group := v.store.GroupPropertyIDs(p.Group)
		keys := make([]string, 0, len(group))
		for _, gid := range group {
			keys = append(keys, ledger.PropertyKey(gid))
		}
		release := v.store.Acquire(keys...)
		for _, gid := range group {
			seen[gid] = true
			gp, err := v.store.Property(gid)
			if err != nil {
				continue
			}
			if u, changed := v.repriceLocked(gp, factor); changed {
				out = append(out, u)
			}
		}
		release()
	}
	return out
}

// repriceLocked assumes the property's group locks are held.
func (v *Valuation) repriceLocked(p *ledger.Property, factor float64) (Updated, bool) {
	target := TargetPrice(p.BasePrice, factor)
	price := p.Price + int64(math.Round(priceSmoothingStep*float64(target-p.Price)))
	ownsGroup := p.OwnerID != "" && v.store.OwnsGroup(p.OwnerID, p.Group)
	rent := RentFor(p.BaseRent, factor, p.Improvement, ownsGroup)
	if price == p.Price && rent == p.Rent {
		return Updated{}, false
	}
	p.Price = price
	p.Rent = rent
	return Updated{PropertyID: p.ID, Price: price, Rent: rent, OwnerID: p.OwnerID}, true
}

// Improve raises the property to its single improvement tier. The player
// must own the entire group, the property must be lien-free and below the
// cap, and the cost is half the current price, paid to the bank.
func (v *Valuation) Improve(playerID, propertyID string) (Updated, error) {
	player, err := v.store.Player(playerID)
	if err != nil {
		return Updated{}, err
	}
	prop, err := v.store.Property(propertyID)
	if err != nil {
		return Updated{}, err
	}

	group := v.store.GroupPropertyIDs(prop.Group)
	keys := make([]string, 0, len(group)+1)
	keys = append(keys, ledger.PlayerKey(playerID))
	for _, gid := range group {
		keys = append(keys, ledger.PropertyKey(gid))
	}
	release := v.store.Acquire(keys...)
	defer release()

	if !player.Active {
		return Updated{}, fmt.Errorf("%w: %s", ledger.ErrPlayerInactive, playerID)
	}
	if prop.OwnerID != playerID {
		return Updated{}, fmt.Errorf("%w: %s does not own %s", ledger.ErrNotOwner, playerID, propertyID)
	}
	if prop.Lien {
		return Updated{}, fmt.Errorf("%w: %s", ledger.ErrPropertyLiened, propertyID)
	}
	if prop.Improvement >= 1 {
		return Updated{}, fmt.Errorf("%w: %s", ErrAlreadyImproved, propertyID)
	}
	if !v.store.OwnsGroup(playerID, prop.Group) {
		return Updated{}, fmt.Errorf("%w: group %s", ErrNotFullGroup, prop.Group)
	}

	cost := ImprovementCost(prop.Price)
	if err := v.store.BurnLocked(player, cost, "improvement:"+propertyID); err != nil {
		return Updated{}, err
	}
	prop.Improvement = 1
	prop.Rent = RentFor(prop.BaseRent, v.monitor.Factor(), prop.Improvement, true)
	return Updated{PropertyID: prop.ID, Price: prop.Price, Rent: prop.Rent, OwnerID: prop.OwnerID}, nil
}
