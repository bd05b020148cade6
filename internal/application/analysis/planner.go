package analysis

import (
	"strings"

	domain "github.com/tmarceau/bidscope/internal/domain/analysis"
)

// Planner decides whether an analysis fits one completion call or must be
// split into per-lot calls, and computes each lot's text window.
type Planner struct {
	// Threshold is the input size below which a single call is safe.
	Threshold int
	// ExcerptCap bounds each sub-unit excerpt.
	ExcerptCap int
	Detector   Detector
}

// Plan is deterministic for identical input and configuration.
func (p *Planner) Plan(text string) (*domain.Plan, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyInput
	}

	plan := &domain.Plan{InputSize: len(text)}

	if len(text) < p.Threshold {
		plan.Strategy = domain.StrategySingle
		return plan, nil
	}

	plan.Strategy = domain.StrategyMulti
	units := p.Detector.Detect(text)
	if len(units) == 0 {
		// Never return an empty multi plan for non-empty input: analyze
		// the whole document as one catch-all unit.
		units = []Unit{{Key: "00", Name: LotName("00")}}
	}

	for _, u := range units {
		plan.Units = append(plan.Units, domain.SubUnit{
			Key:     u.Key,
			Name:    u.Name,
			Excerpt: p.Detector.Excerpt(text, u.Key, p.ExcerptCap),
		})
	}
	return plan, nil
}
