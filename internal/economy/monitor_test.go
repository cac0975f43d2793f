package economy

import (
	"math"
	"testing"
)

func TestRegimeForThresholds(t *testing.T) {
	tests := []struct {
		avg  int64
		want Regime
	}{
		{0, Recession},
		{4_999, Recession},
		{5_000, Stable},
		{9_999, Stable},
		{10_000, Inflation},
		{14_999, Inflation},
		{15_000, HighInflation},
		{19_999, HighInflation},
		{20_000, Overheated},
		{1_000_000, Overheated},
	}
	for _, tt := range tests {
		if got := DefaultThresholds.RegimeFor(tt.avg); got != tt.want {
			t.Errorf("RegimeFor(%d) = %s, want %s", tt.avg, got, tt.want)
		}
	}
}

func TestTargetFactors(t *testing.T) {
	tests := []struct {
		regime Regime
		want   float64
	}{
		{Recession, 0.85},
		{Stable, 1.0},
		{Inflation, 1.15},
		{HighInflation, 1.30},
		{Overheated, 1.50},
	}
	for _, tt := range tests {
		if got := tt.regime.TargetFactor(); got != tt.want {
			t.Errorf("%s target factor = %v, want %v", tt.regime, got, tt.want)
		}
	}
}

func TestSampleCrossingIntoInflation(t *testing.T) {
	m := NewMonitor(DefaultThresholds)
	if _, changed := m.Sample(9_800); changed {
		t.Fatal("9800 within stable should not transition")
	}
	if _, changed := m.Sample(9_900); changed {
		t.Fatal("9850 average still within stable should not transition")
	}
	// The third rich sample lifts the 3-sample average over 10k.
	tr, changed := m.Sample(10_800)
	if !changed {
		t.Fatal("average over 10k should transition to inflation")
	}
	if tr.Old != Stable || tr.New != Inflation {
		t.Fatalf("transition = %s -> %s, want stable -> inflation", tr.Old, tr.New)
	}
	// Factor moves a quarter of the gap toward 1.15, not all the way.
	want := 1.0 + 0.25*(1.15-1.0)
	if math.Abs(tr.Factor-want) > 1e-9 {
		t.Fatalf("factor = %v, want %v", tr.Factor, want)
	}
	if m.Regime() != Inflation {
		t.Fatalf("regime = %s, want inflation", m.Regime())
	}
}

func TestSampleWindowDampensSpikes(t *testing.T) {
	m := NewMonitor(DefaultThresholds)
	m.Sample(9_000)
	m.Sample(9_000)
	// One spike cannot move the 3-sample average past a threshold.
	if _, changed := m.Sample(11_000); changed {
		t.Fatal("single spike should be absorbed by the moving average")
	}
}

func TestSampleExactThresholdCrosses(t *testing.T) {
	m := NewMonitor(DefaultThresholds)
	// A threshold value belongs to the regime above it, for averages as
	// for raw totals.
	tr, changed := m.Sample(10_000)
	if !changed {
		t.Fatal("average of exactly 10k should transition to inflation")
	}
	if tr.New != Inflation {
		t.Fatalf("regime = %s, want inflation", tr.New)
	}
}

func TestSampleIntoRecession(t *testing.T) {
	m := NewMonitor(DefaultThresholds)
	tr, changed := m.Sample(1_000)
	if !changed {
		t.Fatal("1000 average should transition to recession")
	}
	want := 1.0 + 0.25*(0.85-1.0)
	if math.Abs(tr.Factor-want) > 1e-9 {
		t.Fatalf("factor = %v, want %v", tr.Factor, want)
	}
	if tr.Rationale == "" {
		t.Fatal("transition carries no rationale")
	}
}

func TestMonitorSnapshotRestore(t *testing.T) {
	m := NewMonitor(DefaultThresholds)
	m.Sample(12_000)
	st := m.Snapshot()

	restored := NewMonitor(DefaultThresholds)
	restored.Restore(st)
	if restored.Regime() != m.Regime() {
		t.Fatalf("regime = %s, want %s", restored.Regime(), m.Regime())
	}
	if restored.Factor() != m.Factor() {
		t.Fatalf("factor = %v, want %v", restored.Factor(), m.Factor())
	}
}

func TestRegimeFromName(t *testing.T) {
	for _, r := range []Regime{Recession, Stable, Inflation, HighInflation, Overheated} {
		got, ok := RegimeFromName(r.String())
		if !ok || got != r {
			t.Errorf("RegimeFromName(%q) = %v, %v", r.String(), got, ok)
		}
	}
	if _, ok := RegimeFromName("nonsense"); ok {
		t.Fatal("RegimeFromName accepted an unknown name")
	}
}
