package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/tmarceau/bidscope/internal/domain/analysis"
)

type completion struct {
	text string
	err  error
}

type fakeCompleter struct {
	script []completion
	calls  int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	if f.calls >= len(f.script) {
		return "", fmt.Errorf("unexpected call %d", f.calls+1)
	}
	c := f.script[f.calls]
	f.calls++
	return c.text, c.err
}

func newTestSequencer(c *fakeCompleter) (*Sequencer, *[]time.Duration) {
	pauses := new([]time.Duration)
	s := &Sequencer{
		Completer:      c,
		MaxTokens:      100,
		GeneralWindow:  200_000,
		Retries:        2,
		FailurePause:   10 * time.Second,
		RateLimitPause: 60 * time.Second,
		ProgressStart:  10,
		ProgressEnd:    90,
		sleep: func(ctx context.Context, d time.Duration) error {
			*pauses = append(*pauses, d)
			return nil
		},
		now: func() time.Time { return time.Unix(1_700_000_000, 0) },
	}
	return s, pauses
}

func multiPlan(keys ...string) *domain.Plan {
	p := &domain.Plan{Strategy: domain.StrategyMulti}
	for _, k := range keys {
		p.Units = append(p.Units, domain.SubUnit{Key: k, Name: LotName(k), Excerpt: "extrait lot " + k})
	}
	return p
}

const generalJSON = `{"project_info":{"name":"Groupe Scolaire Jean Moulin","client":"Ville de Lyon","budget_ht":1200000}}`

func lotJSON(num, name string) string {
	return fmt.Sprintf(`{"number":%q,"name":%q,"description":"travaux","estimated_amount":500000}`, num, name)
}

func TestSequencer_SinglePlanIssuesOneCall(t *testing.T) {
	doc := `{"project_info":{"name":"Projet"},"lots":[` + lotJSON("01", "Gros Œuvre") + `,` + lotJSON("02", "Charpente") + `]}`
	c := &fakeCompleter{script: []completion{{text: doc}}}
	s, _ := newTestSequencer(c)

	res, err := s.Execute(context.Background(), "job-1", &domain.Plan{Strategy: domain.StrategySingle}, "texte", nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if c.calls != 1 {
		t.Errorf("expected exactly one call, got %d", c.calls)
	}
	if !res.General.OK {
		t.Error("expected general result to be OK")
	}
	if res.General.Info.ProjectInfo.Name != "Projet" {
		t.Errorf("unexpected project name: %s", res.General.Info.ProjectInfo.Name)
	}
	if len(res.Units) != 2 || !res.Units[0].OK || !res.Units[1].OK {
		t.Fatalf("expected two OK units, got %+v", res.Units)
	}
}

func TestSequencer_UnitFailureDoesNotAbort(t *testing.T) {
	c := &fakeCompleter{script: []completion{
		{text: generalJSON},
		{text: lotJSON("01", "Gros Œuvre")},
		{err: errors.New("provider timeout")},
		{text: lotJSON("03", "Cloisons")},
	}}
	s, pauses := newTestSequencer(c)

	res, err := s.Execute(context.Background(), "job-1", multiPlan("01", "02", "03"), "texte", nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(res.Units) != 3 {
		t.Fatalf("expected 3 unit results, got %d", len(res.Units))
	}
	if !res.Units[0].OK || res.Units[1].OK || !res.Units[2].OK {
		t.Errorf("expected [ok, failed, ok], got %+v", res.Units)
	}
	if res.Units[1].Err == "" {
		t.Error("failed unit should carry its error")
	}
	if len(*pauses) != 1 || (*pauses)[0] != s.FailurePause {
		t.Errorf("expected one failure pause of %s, got %v", s.FailurePause, *pauses)
	}
}

func TestSequencer_RateLimitedUnitPausesLonger(t *testing.T) {
	c := &fakeCompleter{script: []completion{
		{text: generalJSON},
		{err: fmt.Errorf("call: %w", domain.ErrRateLimited)},
		{text: lotJSON("02", "Charpente")},
	}}
	s, pauses := newTestSequencer(c)

	res, err := s.Execute(context.Background(), "job-1", multiPlan("01", "02"), "texte", nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Units[0].RateLimited {
		t.Error("expected unit to be marked rate limited")
	}
	if len(*pauses) != 1 || (*pauses)[0] != s.RateLimitPause {
		t.Errorf("expected one rate-limit pause of %s, got %v", s.RateLimitPause, *pauses)
	}
}

func TestSequencer_GeneralFailureIsFatal(t *testing.T) {
	c := &fakeCompleter{script: []completion{
		{err: errors.New("boom")},
		{err: errors.New("boom again")},
	}}
	s, _ := newTestSequencer(c)

	_, err := s.Execute(context.Background(), "job-1", multiPlan("01"), "texte", nil)
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if c.calls != int(s.Retries) {
		t.Errorf("expected %d attempts, got %d", s.Retries, c.calls)
	}
}

func TestSequencer_ProgressMonotone(t *testing.T) {
	c := &fakeCompleter{script: []completion{
		{text: generalJSON},
		{text: lotJSON("01", "Gros Œuvre")},
		{err: errors.New("flaky")},
		{text: lotJSON("03", "Cloisons")},
	}}
	s, _ := newTestSequencer(c)

	var reported []int
	progress := func(pct int, step string) { reported = append(reported, pct) }

	if _, err := s.Execute(context.Background(), "job-1", multiPlan("01", "02", "03"), "texte", progress); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(reported) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(reported); i++ {
		if reported[i] < reported[i-1] {
			t.Fatalf("progress decreased: %v", reported)
		}
	}
	if last := reported[len(reported)-1]; last != s.ProgressEnd {
		t.Errorf("expected final progress %d, got %d", s.ProgressEnd, last)
	}
}

func TestSequencer_BackfillsLotIdentity(t *testing.T) {
	c := &fakeCompleter{script: []completion{
		{text: generalJSON},
		{text: `{"description":"sans identite"}`},
	}}
	s, _ := newTestSequencer(c)

	res, err := s.Execute(context.Background(), "job-1", multiPlan("05"), "texte", nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	lot := res.Units[0].Lot
	if lot.Number != "05" || lot.Name != LotName("05") {
		t.Errorf("expected identity backfill from the plan, got %+v", lot)
	}
}
