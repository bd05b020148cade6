package analysis

import (
	"testing"

	domain "github.com/tmarceau/bidscope/internal/domain/analysis"
)

func fptr(v float64) *float64 { return &v }

func okUnit(key, name string, amount *float64) domain.UnitResult {
	return domain.UnitResult{
		Key:  key,
		Name: name,
		OK:   true,
		Lot:  domain.Lot{Number: key, Name: name, Description: "travaux", EstimatedAmount: amount},
	}
}

func TestAssembler_PlaceholderKeepsPositionAndCount(t *testing.T) {
	var a Assembler
	units := []domain.UnitResult{
		okUnit("01", "Gros Œuvre", fptr(500_000)),
		{Key: "02", Name: "Charpente", OK: false, Err: "provider timeout"},
		okUnit("03", "Cloisons", fptr(100_000)),
	}

	doc := a.Assemble(domain.GeneralResult{OK: true}, units)
	if len(doc.Lots) != 3 {
		t.Fatalf("expected 3 lots, got %d", len(doc.Lots))
	}
	ph := doc.Lots[1]
	if !ph.Placeholder {
		t.Error("failed unit should become a placeholder")
	}
	if ph.Number != "02" || ph.Name != "Charpente" {
		t.Errorf("placeholder lost its identity: %+v", ph)
	}
	if ph.Description != "Analysis unavailable for LOT 02 - Charpente" {
		t.Errorf("unexpected placeholder description: %s", ph.Description)
	}
	if doc.Lots[0].Placeholder || doc.Lots[2].Placeholder {
		t.Error("successful units must not be placeholders")
	}
}

func TestAssembler_PercentageOnlyWithPositiveTotal(t *testing.T) {
	var a Assembler
	units := []domain.UnitResult{okUnit("01", "Gros Œuvre", fptr(300_000))}

	t.Run("known total", func(t *testing.T) {
		general := domain.GeneralResult{OK: true, Info: domain.GeneralInfo{
			ProjectInfo: domain.ProjectInfo{BudgetHT: fptr(1_200_000)},
		}}
		doc := a.Assemble(general, units)
		if len(doc.BudgetBreakdown.ByLot) != 1 {
			t.Fatalf("expected 1 budget line, got %d", len(doc.BudgetBreakdown.ByLot))
		}
		line := doc.BudgetBreakdown.ByLot[0]
		if line.Percentage == nil || *line.Percentage != 25.0 {
			t.Errorf("expected 25%%, got %v", line.Percentage)
		}
	})

	t.Run("missing total", func(t *testing.T) {
		doc := a.Assemble(domain.GeneralResult{OK: true}, units)
		line := doc.BudgetBreakdown.ByLot[0]
		if line.Percentage != nil {
			t.Errorf("percentage must be omitted without a total, got %v", *line.Percentage)
		}
	})

	t.Run("zero total", func(t *testing.T) {
		general := domain.GeneralResult{OK: true, Info: domain.GeneralInfo{
			ProjectInfo: domain.ProjectInfo{BudgetHT: fptr(0)},
		}}
		doc := a.Assemble(general, units)
		if doc.BudgetBreakdown.ByLot[0].Percentage != nil {
			t.Error("percentage must be omitted for a zero total")
		}
	})
}

func TestAssembler_PercentageRounding(t *testing.T) {
	var a Assembler
	general := domain.GeneralResult{OK: true, Info: domain.GeneralInfo{
		ProjectInfo: domain.ProjectInfo{BudgetHT: fptr(3)},
	}}
	doc := a.Assemble(general, []domain.UnitResult{okUnit("01", "A", fptr(1))})

	got := doc.BudgetBreakdown.ByLot[0].Percentage
	if got == nil || *got != 33.3 {
		t.Errorf("expected 33.3, got %v", got)
	}
}

func TestAssembler_LotsWithoutAmountSkipBudgetLine(t *testing.T) {
	var a Assembler
	units := []domain.UnitResult{
		okUnit("01", "A", fptr(100)),
		okUnit("02", "B", nil),
		{Key: "03", Name: "C", OK: false, Err: "failed"},
	}

	doc := a.Assemble(domain.GeneralResult{OK: true}, units)
	if len(doc.BudgetBreakdown.ByLot) != 1 {
		t.Errorf("expected only lots with amounts in the breakdown, got %d lines", len(doc.BudgetBreakdown.ByLot))
	}
	if doc.BudgetBreakdown.Currency != "EUR" {
		t.Errorf("unexpected currency: %s", doc.BudgetBreakdown.Currency)
	}
}

func TestAssembler_BackfillsRequiredFields(t *testing.T) {
	var a Assembler
	general := domain.GeneralResult{OK: true, Info: domain.GeneralInfo{
		ProjectInfo: domain.ProjectInfo{Name: "Projet X"},
	}}

	doc := a.Assemble(general, nil)
	pi := doc.GeneralInfo.ProjectInfo
	if pi.Name != "Projet X" {
		t.Errorf("populated field must be kept, got %s", pi.Name)
	}
	for field, got := range map[string]string{
		"client":         pi.Client,
		"client_type":    pi.ClientType,
		"location":       pi.Location,
		"project_type":   pi.ProjectType,
		"usage":          pi.Usage,
		"moe":            pi.MOE,
		"structure_type": pi.StructureType,
		"market_type":    pi.MarketType,
	} {
		if got != NotSpecified {
			t.Errorf("%s: expected sentinel backfill, got %q", field, got)
		}
	}
	if doc.GeneralInfo.Requirements == nil || doc.GeneralInfo.KeyDates == nil {
		t.Error("required containers must be empty, not null")
	}
}
