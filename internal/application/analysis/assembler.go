package analysis

import (
	"fmt"
	"math"

	domain "github.com/tmarceau/bidscope/internal/domain/analysis"
)

// NotSpecified is the sentinel written into structurally required string
// fields the model left empty, so downstream consumers always see a
// stable schema.
const NotSpecified = "Not specified"

// Assembler merges the general-information result with the ordered
// sub-unit results into one normalized document.
type Assembler struct{}

// Assemble preserves the sub-unit count and order of the executed plan;
// failed units become labeled placeholder sections. Derived aggregates
// are computed only when their inputs exist, never fabricated.
func (Assembler) Assemble(general domain.GeneralResult, units []domain.UnitResult) *domain.Document {
	doc := &domain.Document{GeneralInfo: general.Info}
	fillGeneralDefaults(&doc.GeneralInfo)

	for _, u := range units {
		if u.OK {
			doc.Lots = append(doc.Lots, u.Lot)
			continue
		}
		doc.Lots = append(doc.Lots, placeholderLot(u))
	}

	doc.BudgetBreakdown = buildBudgetBreakdown(doc.GeneralInfo.ProjectInfo, doc.Lots)
	return doc
}

func placeholderLot(u domain.UnitResult) domain.Lot {
	return domain.Lot{
		Number:      u.Key,
		Name:        u.Name,
		Description: fmt.Sprintf("Analysis unavailable for LOT %s - %s", u.Key, u.Name),
		Materials:   []string{},
		Placeholder: true,
	}
}

// buildBudgetBreakdown derives each lot's share of the project total. The
// percentage is present only when the lot amount and a positive total are
// both known.
func buildBudgetBreakdown(info domain.ProjectInfo, lots []domain.Lot) domain.BudgetBreakdown {
	bb := domain.BudgetBreakdown{
		TotalHT:     info.BudgetHT,
		Currency:    "EUR",
		PricePerSqm: info.PricePerSqm,
		ByLot:       []domain.LotBudget{},
	}
	for _, lot := range lots {
		if lot.EstimatedAmount == nil {
			continue
		}
		line := domain.LotBudget{
			LotNumber: lot.Number,
			LotName:   lot.Name,
			AmountHT:  *lot.EstimatedAmount,
		}
		if info.BudgetHT != nil && *info.BudgetHT > 0 {
			pct := math.Round(*lot.EstimatedAmount / *info.BudgetHT * 1000) / 10
			line.Percentage = &pct
		}
		bb.ByLot = append(bb.ByLot, line)
	}
	return bb
}

// fillGeneralDefaults backfills the fixed default-value table: required
// string fields get the NotSpecified sentinel, required containers become
// empty instead of null.
func fillGeneralDefaults(g *domain.GeneralInfo) {
	for _, f := range []*string{
		&g.ProjectInfo.Name,
		&g.ProjectInfo.Client,
		&g.ProjectInfo.ClientType,
		&g.ProjectInfo.Location,
		&g.ProjectInfo.ProjectType,
		&g.ProjectInfo.Usage,
		&g.ProjectInfo.MOE,
		&g.ProjectInfo.StructureType,
		&g.ProjectInfo.MarketType,
	} {
		if *f == "" {
			*f = NotSpecified
		}
	}
	if g.TechnicalConstraints == nil {
		g.TechnicalConstraints = map[string]any{}
	}
	if g.Requirements == nil {
		g.Requirements = []any{}
	}
	if g.EvaluationCriteria == nil {
		g.EvaluationCriteria = map[string]any{}
	}
	if g.SuspendedOpinions == nil {
		g.SuspendedOpinions = []any{}
	}
	if g.Risks == nil {
		g.Risks = []any{}
	}
	if g.KeyDates == nil {
		g.KeyDates = map[string]any{}
	}
	if g.DocumentsProvided == nil {
		g.DocumentsProvided = []any{}
	}
	if g.StrategicAnalysis == nil {
		g.StrategicAnalysis = map[string]any{}
	}
}
