package analysis

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	domain "github.com/tmarceau/bidscope/internal/domain/analysis"
)

func newTestPlanner() *Planner {
	return &Planner{
		Threshold:  150_000,
		ExcerptCap: 80_000,
		Detector:   NewKeywordDetector(),
	}
}

// pad produces neutral filler that triggers no trade keyword.
func pad(n int) string {
	return strings.Repeat("z", n)
}

func TestPlanner_SingleBelowThreshold(t *testing.T) {
	p := newTestPlanner()

	plan, err := p.Plan(pad(2_000))
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.Strategy != domain.StrategySingle {
		t.Errorf("expected single strategy, got %s", plan.Strategy)
	}
	if len(plan.Units) != 0 {
		t.Errorf("expected no sub-units, got %d", len(plan.Units))
	}
}

func TestPlanner_EmptyInput(t *testing.T) {
	p := newTestPlanner()

	for _, input := range []string{"", "   \n\t  "} {
		if _, err := p.Plan(input); !errors.Is(err, domain.ErrEmptyInput) {
			t.Errorf("Plan(%q): expected ErrEmptyInput, got %v", input, err)
		}
	}
}

func TestPlanner_MultiWithThreeLots(t *testing.T) {
	p := newTestPlanner()

	var b strings.Builder
	for _, marker := range []string{"Lot 01", "Lot 02", "Lot 03"} {
		b.WriteString(marker)
		b.WriteString(" - section\n")
		b.WriteString(pad(134_000))
		b.WriteString("\n")
	}
	text := b.String()
	if len(text) < 400_000 {
		t.Fatalf("test input too small: %d", len(text))
	}

	plan, err := p.Plan(text)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.Strategy != domain.StrategyMulti {
		t.Fatalf("expected multi strategy, got %s", plan.Strategy)
	}
	if len(plan.Units) != 3 {
		t.Fatalf("expected 3 sub-units, got %d", len(plan.Units))
	}
	for i, want := range []string{"01", "02", "03"} {
		if plan.Units[i].Key != want {
			t.Errorf("unit %d: expected key %s, got %s", i, want, plan.Units[i].Key)
		}
	}
}

func TestPlanner_CatchAllWhenNothingDetected(t *testing.T) {
	p := newTestPlanner()

	plan, err := p.Plan(pad(200_000))
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.Strategy != domain.StrategyMulti {
		t.Fatalf("expected multi strategy, got %s", plan.Strategy)
	}
	if len(plan.Units) != 1 {
		t.Fatalf("expected 1 catch-all unit, got %d", len(plan.Units))
	}
	if plan.Units[0].Key != "00" {
		t.Errorf("expected catch-all key 00, got %s", plan.Units[0].Key)
	}
	if plan.Units[0].Name != "Prestations générales" {
		t.Errorf("unexpected catch-all name: %s", plan.Units[0].Name)
	}
}

func TestPlanner_Deterministic(t *testing.T) {
	p := newTestPlanner()
	text := "Lot 01 maçonnerie\n" + pad(100_000) + "\nLot 02 charpente\n" + pad(100_000)

	first, err := p.Plan(text)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	second, err := p.Plan(text)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("plans differ across runs on identical input")
	}
}

func TestPlanner_UniqueKeys(t *testing.T) {
	p := newTestPlanner()
	// The same lot referenced by marker and by keyword must appear once.
	text := "Lot 06 plomberie sanitaire\nLot 6 chauffage\n" + pad(160_000)

	plan, err := p.Plan(text)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	seen := map[string]bool{}
	for _, u := range plan.Units {
		if seen[u.Key] {
			t.Errorf("duplicate unit key %s", u.Key)
		}
		seen[u.Key] = true
	}
	if !seen["06"] {
		t.Error("expected lot 06 to be detected")
	}
}

func TestPlanner_ExcerptBounded(t *testing.T) {
	p := newTestPlanner()
	p.ExcerptCap = 1_000

	text := "Lot 01 fondations\n" + pad(200_000)
	plan, err := p.Plan(text)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	for _, u := range plan.Units {
		if len(u.Excerpt) > 1_000 {
			t.Errorf("unit %s excerpt exceeds cap: %d", u.Key, len(u.Excerpt))
		}
		if u.Excerpt == "" {
			t.Errorf("unit %s excerpt is empty", u.Key)
		}
	}
}
