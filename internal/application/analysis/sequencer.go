package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	domain "github.com/tmarceau/bidscope/internal/domain/analysis"
	"github.com/tmarceau/bidscope/internal/domain/joberrors"
)

// ProgressFunc reports a progress percentage and a human-readable step.
type ProgressFunc func(pct int, step string)

// SequenceResult carries the partial results of one executed plan.
type SequenceResult struct {
	General domain.GeneralResult
	Units   []domain.UnitResult
}

// Sequencer issues the LLM calls for a plan in order, pacing them against
// the provider's shared per-minute budget and degrading per-unit failures
// to placeholders. Calls are strictly sequential within one job.
type Sequencer struct {
	Completer domain.Completer
	Pacer     Pacer
	Failures  joberrors.Repository // optional call-failure audit
	Logger    *slog.Logger

	MaxTokens     int
	Temperature   float32
	GeneralWindow int
	// Retries bounds attempts for the general-information call. A plan
	// cannot be assembled without it, so its failure is fatal.
	Retries uint
	// Cooldown is the fixed suspension inserted before the next call when
	// the previous one consumed a large fraction of BudgetPerMinute.
	Cooldown        time.Duration
	BudgetPerMinute int
	// FailurePause and RateLimitPause are the recovery suspensions after
	// a failed unit call.
	FailurePause   time.Duration
	RateLimitPause time.Duration

	// ProgressStart/ProgressEnd bound the slice of overall progress the
	// call sequence is apportioned over.
	ProgressStart int
	ProgressEnd   int

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func (s *Sequencer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Sequencer) pause(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (s *Sequencer) timeNow() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// estimateTokens approximates the provider's token accounting from the
// prompt length. Four characters per token is close enough for pacing.
func estimateTokens(prompt string, maxTokens int) int {
	return len(prompt)/4 + maxTokens
}

// Execute runs the plan's call sequence. For a single plan exactly one
// call is issued; for a multi plan, the general-information call first and
// then one call per sub-unit in plan order.
func (s *Sequencer) Execute(ctx context.Context, jobID string, plan *domain.Plan, text string, progress ProgressFunc) (*SequenceResult, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	if plan.Strategy == domain.StrategySingle {
		return s.executeSingle(ctx, jobID, text, progress)
	}
	return s.executeMulti(ctx, jobID, plan, text, progress)
}

func (s *Sequencer) executeSingle(ctx context.Context, jobID, text string, progress ProgressFunc) (*SequenceResult, error) {
	progress(s.ProgressStart, "Analyzing document")

	prompt := FullAnalysisPrompt(truncate(text, s.GeneralWindow))
	raw, err := s.completeWithRetry(ctx, jobID, "general", prompt)
	if err != nil {
		return nil, fmt.Errorf("single-call analysis: %w", err)
	}
	doc, err := parseFullDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("single-call analysis: %w", err)
	}

	res := &SequenceResult{General: domain.GeneralResult{OK: true, Info: doc.GeneralInfo}}
	for _, lot := range doc.Lots {
		res.Units = append(res.Units, domain.UnitResult{
			Key:  lot.Number,
			Name: lot.Name,
			OK:   true,
			Lot:  lot,
		})
	}
	progress(s.ProgressEnd, "Document analyzed")
	return res, nil
}

func (s *Sequencer) executeMulti(ctx context.Context, jobID string, plan *domain.Plan, text string, progress ProgressFunc) (*SequenceResult, error) {
	span := s.ProgressEnd - s.ProgressStart
	// The general-information call takes the first slice; the remainder is
	// split evenly across the sub-units.
	generalSlice := span / 5
	unitsStart := s.ProgressStart + generalSlice

	progress(s.ProgressStart, "Extracting general information")
	generalPrompt := GeneralInfoPrompt(truncate(text, s.GeneralWindow))
	raw, err := s.completeWithRetry(ctx, jobID, "general", generalPrompt)
	if err != nil {
		return nil, fmt.Errorf("general information call: %w", err)
	}
	info, err := parseGeneralInfo(raw)
	if err != nil {
		return nil, fmt.Errorf("general information call: %w", err)
	}

	res := &SequenceResult{General: domain.GeneralResult{OK: true, Info: info}}

	prevCost := estimateTokens(generalPrompt, s.MaxTokens)
	total := len(plan.Units)
	for idx, unit := range plan.Units {
		pct := unitsStart + (span-generalSlice)*idx/total
		unitPrompt := LotPrompt(unit.Key, unit.Name, unit.Excerpt)
		if err := s.cooldown(ctx, prevCost, unitPrompt, pct, progress); err != nil {
			return nil, err
		}
		prevCost = estimateTokens(unitPrompt, s.MaxTokens)

		progress(pct, fmt.Sprintf("Analyzing LOT %s - %s", unit.Key, unit.Name))
		ur := s.callUnit(ctx, jobID, unit)
		res.Units = append(res.Units, ur)

		if !ur.OK {
			// Recovery pause so a struggling provider is not hammered.
			pause := s.FailurePause
			if ur.RateLimited {
				pause = s.RateLimitPause
			}
			progress(pct, "Pausing before next lot")
			if err := s.pause(ctx, pause); err != nil {
				return nil, err
			}
		}
	}

	progress(s.ProgressEnd, "All lots analyzed")
	return res, nil
}

// cooldown suspends before the next call: a fixed interval when the
// previous call ate a large share of the per-minute budget, then whatever
// the pacer still requires. The suspension is surfaced as a progress step.
func (s *Sequencer) cooldown(ctx context.Context, prevTokens int, nextPrompt string, pct int, progress ProgressFunc) error {
	progress(pct, "Cooling down to respect the provider rate budget")
	if s.Cooldown > 0 && s.BudgetPerMinute > 0 && prevTokens*2 >= s.BudgetPerMinute {
		if err := s.pause(ctx, s.Cooldown); err != nil {
			return err
		}
	}
	if s.Pacer == nil {
		return nil
	}
	est := estimateTokens(nextPrompt, s.MaxTokens)
	start := s.timeNow()
	waited, err := s.Pacer.Wait(ctx, est)
	if err != nil {
		return err
	}
	if waited > 0 {
		s.logger().Debug("rate budget cooldown", "waited", waited, "since", s.timeNow().Sub(start))
	}
	return nil
}

func (s *Sequencer) callUnit(ctx context.Context, jobID string, unit domain.SubUnit) domain.UnitResult {
	prompt := LotPrompt(unit.Key, unit.Name, unit.Excerpt)
	raw, err := s.Completer.Complete(ctx, prompt, s.MaxTokens, s.Temperature)
	if err == nil {
		lot, perr := parseLot(raw)
		if perr == nil {
			if lot.Number == "" {
				lot.Number = unit.Key
			}
			if lot.Name == "" {
				lot.Name = unit.Name
			}
			return domain.UnitResult{Key: unit.Key, Name: unit.Name, OK: true, Lot: lot}
		}
		err = perr
	}

	s.logger().Warn("lot call failed", "job_id", jobID, "lot", unit.Key, "error", err)
	s.recordFailure(ctx, jobID, unit.Key, 1, err)
	return domain.UnitResult{
		Key:         unit.Key,
		Name:        unit.Name,
		OK:          false,
		Err:         err.Error(),
		RateLimited: errors.Is(err, domain.ErrRateLimited),
	}
}

// completeWithRetry issues a call under the bounded retry budget, pacing
// each attempt. Used for the general-information call only.
func (s *Sequencer) completeWithRetry(ctx context.Context, jobID, key, prompt string) (string, error) {
	attempt := 0
	return retry.DoWithData(
		func() (string, error) {
			attempt++
			if s.Pacer != nil {
				if _, err := s.Pacer.Wait(ctx, estimateTokens(prompt, s.MaxTokens)); err != nil {
					return "", retry.Unrecoverable(err)
				}
			}
			raw, err := s.Completer.Complete(ctx, prompt, s.MaxTokens, s.Temperature)
			if err != nil {
				s.recordFailure(ctx, jobID, key, attempt, err)
				return "", err
			}
			return raw, nil
		},
		retry.Context(ctx),
		retry.Attempts(s.Retries),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger().Warn("general call retry", "job_id", jobID, "attempt", n+1, "error", err)
		}),
	)
}

func (s *Sequencer) recordFailure(ctx context.Context, jobID, unitKey string, attempt int, err error) {
	if s.Failures == nil {
		return
	}
	f := &joberrors.CallFailure{
		JobID:       jobID,
		UnitKey:     unitKey,
		Attempt:     attempt,
		Reason:      err.Error(),
		RateLimited: errors.Is(err, domain.ErrRateLimited),
		OccurredAt:  s.timeNow(),
	}
	if rerr := s.Failures.Record(ctx, f); rerr != nil {
		s.logger().Warn("failure audit write failed", "job_id", jobID, "error", rerr)
	}
}
