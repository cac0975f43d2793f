// Package economy derives the session's inflation regime from aggregate
// player cash and reprices properties against it.
package economy

import (
	"fmt"
	"sync"
)

type Regime int

const (
	Recession Regime = iota
	Stable
	Inflation
	HighInflation
	Overheated
)

var regimeNames = [...]string{"recession", "stable", "inflation", "high-inflation", "overheated"}

func (r Regime) String() string {
	if r < Recession || r > Overheated {
		return "unknown"
	}
	return regimeNames[r]
}

func RegimeFromName(name string) (Regime, bool) {
	for i, n := range regimeNames {
		if n == name {
			return Regime(i), true
		}
	}
	return Stable, false
}

// TargetFactor is the inflation factor each regime pulls toward. The factor
// itself moves a quarter of the gap per transition, never directly.
func (r Regime) TargetFactor() float64 {
	switch r {
	case Recession:
		return 0.85
	case Inflation:
		return 1.15
	case HighInflation:
		return 1.30
	case Overheated:
		return 1.50
	default:
		return 1.0
	}
}

// Thresholds are ascending cash totals separating the five regimes.
type Thresholds [4]int64

var DefaultThresholds = Thresholds{5_000, 10_000, 15_000, 20_000}

func (t Thresholds) RegimeFor(avgCash int64) Regime {
	switch {
	case avgCash < t[0]:
		return Recession
	case avgCash < t[1]:
		return Stable
	case avgCash < t[2]:
		return Inflation
	case avgCash < t[3]:
		return HighInflation
	default:
		return Overheated
	}
}

const (
	smoothingStep = 0.25
	windowSize    = 3
)

// Transition describes one regime change.
type Transition struct {
	Old       Regime
	New       Regime
	Factor    float64
	Rationale string
}

// State is the durable form of the monitor.
type State struct {
	Regime string  `json:"regime"`
	Factor float64 `json:"factor"`
	Window []int64 `json:"window"`
}

// Monitor samples total circulating cash once per lap boundary and keeps a
// 3-sample moving average so a single rich payout does not whipsaw the
// regime. It never fails; skipped samples just stall the factor.
type Monitor struct {
	mu         sync.Mutex
	thresholds Thresholds
	window     []int64
	regime     Regime
	factor     float64
}

func NewMonitor(thresholds Thresholds) *Monitor {
	return &Monitor{
		thresholds: thresholds,
		regime:     Stable,
		factor:     1.0,
	}
}

// Sample records a new cash total. When the smoothed total crosses into a
// different regime the factor moves a quarter of the way toward the new
// regime's target and the transition is returned.
func (m *Monitor) Sample(totalCash int64) (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.window = append(m.window, totalCash)
	if len(m.window) > windowSize {
		m.window = m.window[len(m.window)-windowSize:]
	}
	var sum int64
	for _, v := range m.window {
		sum += v
	}
	avg := sum / int64(len(m.window))

	next := m.thresholds.RegimeFor(avg)
	if next == m.regime {
		return Transition{}, false
	}

	old := m.regime
	m.regime = next
	m.factor += smoothingStep * (next.TargetFactor() - m.factor)

	return Transition{
		Old:       old,
		New:       next,
		Factor:    m.factor,
		Rationale: rationale(old, next, avg),
	}, true
}

func rationale(old, next Regime, avg int64) string {
	direction := "cooled"
	if next > old {
		direction = "heated up"
	}
	return fmt.Sprintf("average circulating cash %d moved the economy from %s to %s: the market has %s", avg, old, next, direction)
}

func (m *Monitor) Regime() Regime {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regime
}

func (m *Monitor) Factor() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.factor
}

func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	window := make([]int64, len(m.window))
	copy(window, m.window)
	return State{Regime: m.regime.String(), Factor: m.factor, Window: window}
}

// Restore replaces the monitor state wholesale from a snapshot.
func (m *Monitor) Restore(st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := RegimeFromName(st.Regime); ok {
		m.regime = r
	}
	if st.Factor > 0 {
		m.factor = st.Factor
	}
	m.window = append(m.window[:0], st.Window...)
}
