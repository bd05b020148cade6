package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmarceau/bidscope/internal/application"
	domain "github.com/tmarceau/bidscope/internal/domain/jobs"
)

// Service implements the job record store use-cases. The durable
// repository is the source of truth; the cache only serves the polling
// read path and is always refreshed after a write.
//
// A job record is single-writer: only the worker currently processing the
// job calls Transition.
type Service struct {
	Repo   domain.Repository
	Cache  domain.Cache // optional
	Clock  application.Clock
	Logger *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Create registers a new pending job before it is enqueued.
func (s *Service) Create(ctx context.Context, id domain.JobID, owner, filename string) (*domain.Job, error) {
	j := &domain.Job{
		ID:          id,
		OwnerID:     owner,
		Filename:    filename,
		Status:      domain.StatusPending,
		Progress:    0,
		CurrentStep: "Queued for analysis",
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.Repo.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create job %s: %w", id, err)
	}
	s.cacheSet(ctx, j)
	return j, nil
}

// Get returns the job record, trying the cache first.
func (s *Service) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	if s.Cache != nil {
		if j, err := s.Cache.Get(ctx, id); err == nil && j != nil {
			return j, nil
		}
	}
	j, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, j)
	return j, nil
}

// GetForOwner is the polling contract: ErrNotFound for unknown ids,
// ErrForbidden when the requester is not the owning principal.
func (s *Service) GetForOwner(ctx context.Context, id domain.JobID, requester string) (*domain.Job, error) {
	j, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.OwnerID != requester {
		return nil, domain.ErrForbidden
	}
	return j, nil
}

// Latest lists an owner's most recent jobs.
func (s *Service) Latest(ctx context.Context, owner string, limit int) ([]*domain.Job, error) {
	return s.Repo.Latest(ctx, owner, limit)
}

// Transition applies a partial update and persists it durably. Terminal
// records are immutable; progress never decreases (enforced by Apply).
func (s *Service) Transition(ctx context.Context, id domain.JobID, u domain.Update) error {
	j, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return fmt.Errorf("job %s already %s", id, j.Status)
	}

	if u.Status != nil {
		now := s.Clock.Now()
		switch *u.Status {
		case domain.StatusRunning:
			if j.StartedAt == nil {
				u.StartedAt = &now
			}
		case domain.StatusCompleted, domain.StatusFailed:
			u.CompletedAt = &now
		}
		if *u.Status == domain.StatusCompleted {
			full := 100
			u.Progress = &full
		}
	}

	j.Apply(u)
	if err := s.Repo.Save(ctx, j); err != nil {
		return fmt.Errorf("save job %s: %w", id, err)
	}
	s.cacheSet(ctx, j)
	return nil
}

// Helpers for the common transitions, mirroring the worker's milestones.

func (s *Service) SetRunning(ctx context.Context, id domain.JobID, step string) error {
	st := domain.StatusRunning
	return s.Transition(ctx, id, domain.Update{Status: &st, CurrentStep: &step})
}

func (s *Service) SetProgress(ctx context.Context, id domain.JobID, progress int, step string) error {
	return s.Transition(ctx, id, domain.Update{Progress: &progress, CurrentStep: &step})
}

func (s *Service) SetCompleted(ctx context.Context, id domain.JobID, result []byte) error {
	st := domain.StatusCompleted
	step := "Analysis complete"
	return s.Transition(ctx, id, domain.Update{Status: &st, CurrentStep: &step, Result: result})
}

func (s *Service) SetFailed(ctx context.Context, id domain.JobID, msg string) error {
	st := domain.StatusFailed
	step := "Error"
	return s.Transition(ctx, id, domain.Update{Status: &st, CurrentStep: &step, Error: &msg})
}

func (s *Service) cacheSet(ctx context.Context, j *domain.Job) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, j); err != nil {
		s.logger().Warn("job cache write failed", "job_id", j.ID, "error", err)
	}
}
