package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/tmarceau/bidscope/internal/application"
	appjobs "github.com/tmarceau/bidscope/internal/application/jobs"
	domain "github.com/tmarceau/bidscope/internal/domain/analysis"
	jobsdomain "github.com/tmarceau/bidscope/internal/domain/jobs"
)

// Service runs one analysis job end to end: extract the staged input,
// plan the call sequence, execute it under rate pacing, assemble the
// document and persist the outcome. One call per dequeued task.
type Service struct {
	Jobs      *appjobs.Service
	Extractor domain.Extractor
	Planner   *Planner
	Sequencer *Sequencer
	Assembler Assembler
	Repo      domain.Repository
	Reports   domain.ReportStore // optional
	Clock     application.Clock
	Logger    *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Process drives the pipeline for one task. Any returned error means the
// caller must mark the job failed; Process itself never leaves the job
// record running on the success path.
func (s *Service) Process(ctx context.Context, t domain.Task) error {
	jobID := jobsdomain.JobID(t.JobID)
	log := s.logger().With("job_id", t.JobID, "filename", t.Filename)

	// A vanished job record is fatal: progress can no longer be reported.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var recordLost error
	progress := func(pct int, step string) {
		if err := s.Jobs.SetProgress(ctx, jobID, pct, step); err != nil {
			if errors.Is(err, jobsdomain.ErrNotFound) {
				recordLost = err
				cancel()
				return
			}
			log.Warn("progress update failed", "error", err)
		}
	}

	if err := s.Jobs.SetRunning(ctx, jobID, "Extracting files"); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	progress(1, "Extracting files")
	ext, err := s.Extractor.Extract(ctx, t.StagedPath, t.Filename)
	if err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if !ext.Success {
		return fmt.Errorf("extraction failed: %s", strings.Join(ext.Errors, ", "))
	}
	progress(5, "Extraction complete")
	log.Info("input extracted", "chars", len(ext.Text), "units", ext.UnitsProcessed)

	plan, err := s.Planner.Plan(ext.Text)
	if err != nil {
		return fmt.Errorf("planning: %w", err)
	}
	switch plan.Strategy {
	case domain.StrategySingle:
		progress(8, "Document fits a single analysis pass")
	default:
		progress(8, fmt.Sprintf("Document split into %d lots", len(plan.Units)))
	}
	log.Info("plan computed", "strategy", plan.Strategy, "units", len(plan.Units), "input_size", plan.InputSize)

	seq, err := s.Sequencer.Execute(ctx, t.JobID, plan, ext.Text, progress)
	if err != nil {
		if recordLost != nil {
			return fmt.Errorf("job record lost: %w", recordLost)
		}
		return fmt.Errorf("call sequence: %w", err)
	}

	progress(92, "Assembling results")
	doc := s.Assembler.Assemble(seq.General, seq.Units)
	resultJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	progress(95, "Generating report")
	reportURL := s.uploadReport(ctx, t, resultJSON, log)

	progress(98, "Saving results")
	rec := s.buildRecord(t, doc, string(resultJSON), reportURL)
	if err := s.Repo.Save(ctx, rec); err != nil {
		return fmt.Errorf("persist analysis: %w", err)
	}

	if err := s.Jobs.SetCompleted(ctx, jobID, resultJSON); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	log.Info("analysis completed", "lots", len(doc.Lots), "report_url", reportURL)
	return nil
}

// uploadReport stores the assembled document as a generated-document
// artifact. The analysis row is the durable result; a missing artifact is
// degraded service, not a failed job.
func (s *Service) uploadReport(ctx context.Context, t domain.Task, body []byte, log *slog.Logger) string {
	if s.Reports == nil {
		return ""
	}
	key := fmt.Sprintf("%s/%s.json", t.OwnerID, t.JobID)
	url, err := s.Reports.UploadReport(ctx, key, body)
	if err != nil {
		log.Warn("report upload failed", "error", err)
		return ""
	}
	return url
}

func (s *Service) buildRecord(t domain.Task, doc *domain.Document, resultJSON, reportURL string) *domain.Record {
	rec := &domain.Record{
		ID:        domain.AnalysisID(uuid.New().String()),
		JobID:     t.JobID,
		OwnerID:   t.OwnerID,
		Filename:  t.Filename,
		Result:    resultJSON,
		ReportURL: reportURL,
		CreatedAt: s.Clock.Now(),
	}
	if fi, err := os.Stat(t.StagedPath); err == nil {
		rec.FileSize = fi.Size()
	}
	if doc.ProjectInfo.Name != NotSpecified {
		rec.ProjectName = doc.ProjectInfo.Name
	}
	if doc.ProjectInfo.Client != NotSpecified {
		rec.ClientName = doc.ProjectInfo.Client
	}
	rec.BudgetHT = doc.ProjectInfo.BudgetHT
	return rec
}
