package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	appanalysis "github.com/tmarceau/bidscope/internal/application/analysis"
	domain "github.com/tmarceau/bidscope/internal/domain/analysis"
	domjobs "github.com/tmarceau/bidscope/internal/domain/jobs"
	"github.com/tmarceau/bidscope/internal/middleware"
)

// Worker consumes queued analysis tasks one at a time. A task is claimed,
// processed, then acknowledged whatever the outcome; the staged upload is
// removed once processing ended so failed jobs do not leak disk.
type Worker struct {
	Queue     domain.Queue
	Processor *appanalysis.Service
	Jobs      jobTransitioner
	Logger    *slog.Logger

	// DequeueBackoff spaces retries after a broker error so a dead
	// broker does not spin the loop.
	DequeueBackoff time.Duration

	sleep func(ctx context.Context, d time.Duration)
}

// jobTransitioner is the slice of the job service the loop needs.
type jobTransitioner interface {
	SetFailed(ctx context.Context, id domjobs.JobID, msg string) error
}

func New(queue domain.Queue, processor *appanalysis.Service, jobs jobTransitioner, logger *slog.Logger) *Worker {
	return &Worker{
		Queue:          queue,
		Processor:      processor,
		Jobs:           jobs,
		Logger:         logger,
		DequeueBackoff: 2 * time.Second,
	}
}

// Run blocks until ctx is cancelled. A failing task never stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.Logger.Info("worker started")
	for {
		task, err := w.Queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.Logger.Info("worker stopping")
				return nil
			}
			w.Logger.Error("dequeue failed", "error", err)
			w.pause(ctx, w.DequeueBackoff)
			continue
		}
		w.handle(ctx, task)
	}
}

func (w *Worker) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	if w.sleep != nil {
		w.sleep(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *Worker) handle(ctx context.Context, task *domain.Task) {
	log := w.Logger.With("job_id", task.JobID, "owner", task.OwnerID)
	log.Info("task claimed", "filename", task.Filename)

	middleware.IncrementAnalysesRunning()
	err := w.process(ctx, task)
	middleware.DecrementAnalysesRunning()

	if err != nil {
		middleware.IncrementAnalysesFailed()
		log.Error("task failed", "error", err)
		if ferr := w.Jobs.SetFailed(ctx, domjobs.JobID(task.JobID), failureMessage(err)); ferr != nil {
			log.Error("could not mark job failed", "error", ferr)
		}
	} else {
		log.Info("task done")
	}

	if task.StagedPath != "" {
		if rerr := os.Remove(task.StagedPath); rerr != nil && !os.IsNotExist(rerr) {
			log.Warn("staged file cleanup failed", "path", task.StagedPath, "error", rerr)
		}
	}
	if aerr := w.Queue.Ack(ctx, task); aerr != nil {
		log.Warn("ack failed", "error", aerr)
	}
}

// process isolates a panicking task so the loop survives it.
func (w *Worker) process(ctx context.Context, task *domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during processing: %v", r)
		}
	}()
	return w.Processor.Process(ctx, *task)
}

// failureMessage keeps the persisted error human readable; the full chain
// stays in the logs.
func failureMessage(err error) string {
	msg := err.Error()
	if errors.Is(err, domain.ErrRateLimited) {
		return "analysis aborted: provider rate limit persisted across retries"
	}
	if errors.Is(err, domain.ErrEmptyInput) {
		return "the uploaded dossier contains no analyzable text"
	}
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}
