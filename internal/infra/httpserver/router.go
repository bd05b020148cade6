package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appjobs "github.com/tmarceau/bidscope/internal/application/jobs"
	domanalysis "github.com/tmarceau/bidscope/internal/domain/analysis"
	domjobs "github.com/tmarceau/bidscope/internal/domain/jobs"
	"github.com/tmarceau/bidscope/internal/middleware"
)

// maxUploadBytes bounds a single dossier upload.
const maxUploadBytes = 256 << 20

type Router struct {
	jobsSvc   *appjobs.Service
	analyses  domanalysis.Repository
	queue     domanalysis.Queue
	stagedDir string
	logger    *slog.Logger
}

func NewRouter(jobsSvc *appjobs.Service, analyses domanalysis.Repository, queue domanalysis.Queue, stagedDir string, checkers map[string]middleware.HealthChecker, logger *slog.Logger) http.Handler {
	r := &Router{
		jobsSvc:   jobsSvc,
		analyses:  analyses,
		queue:     queue,
		stagedDir: stagedDir,
		logger:    logger,
	}
	mux := chi.NewRouter()

	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(r.tenantGuard)
		rt.Post("/analyses", r.wrap(r.handleSubmit))
		rt.Get("/analyses", r.wrap(r.handleHistory))
		rt.Get("/analyses/jobs", r.wrap(r.handleLatestJobs))
		rt.Get("/analyses/jobs/{id}", r.wrap(r.handleJobStatus))
		rt.Get("/analyses/jobs/{id}/result", r.wrap(r.handleResult))
	})

	return mux
}

// tenantGuard pins the URL tenant to the authenticated principal. The
// path segment is routing sugar only; authorization always comes from
// the credential the auth middleware resolved.
func (r *Router) tenantGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		caller := middleware.GetTenantFromContext(req.Context())
		if caller == "" || caller != chi.URLParam(req, "tenant") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, req)
	})
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequestError marks client-side input failures.
type badRequestError struct{ msg string }

func (e badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return badRequestError{msg: fmt.Sprintf(format, args...)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, domjobs.ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domjobs.ErrForbidden):
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				var br badRequestError
				if errors.As(err, &br) {
					http.Error(w, br.Error(), http.StatusBadRequest)
					return
				}
				r.logger.Error("request failed", "path", req.URL.Path, "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}
	}
}

type jobResponse struct {
	JobID       string          `json:"job_id"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"current_step"`
	Filename    string          `json:"filename"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func toJobResponse(j *domjobs.Job) jobResponse {
	return jobResponse{
		JobID:       string(j.ID),
		Status:      string(j.Status),
		Progress:    j.Progress,
		CurrentStep: j.CurrentStep,
		Filename:    j.Filename,
		Result:      j.Result,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// POST /v1/{tenant}/analyses
// Multipart upload field "file". Responds as soon as the job is durably
// recorded and queued; processing happens in the worker.
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	if err := middleware.ValidateTenantID(tenant); err != nil {
		return badRequest("%v", err)
	}

	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)
	file, header, err := req.FormFile("file")
	if err != nil {
		return badRequest("missing multipart field \"file\": %v", err)
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if err := middleware.ValidateUploadFilename(filename); err != nil {
		return badRequest("%v", err)
	}

	jobID := uuid.NewString()
	stagedPath, err := r.stage(file, jobID, filename)
	if err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}

	job, err := r.jobsSvc.Create(req.Context(), domjobs.JobID(jobID), tenant, filename)
	if err != nil {
		os.Remove(stagedPath)
		return err
	}

	task := domanalysis.Task{
		JobID:      jobID,
		OwnerID:    tenant,
		StagedPath: stagedPath,
		Filename:   filename,
	}
	if err := r.queue.Enqueue(req.Context(), task); err != nil {
		os.Remove(stagedPath)
		_ = r.jobsSvc.SetFailed(req.Context(), job.ID, "could not queue analysis, please retry")
		return fmt.Errorf("enqueue job %s: %w", jobID, err)
	}

	middleware.IncrementAnalyses()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(map[string]any{
		"job_id":    jobID,
		"status":    string(job.Status),
		"queued_at": job.CreatedAt,
	})
}

func (r *Router) stage(src io.Reader, jobID, filename string) (string, error) {
	if err := os.MkdirAll(r.stagedDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(r.stagedDir, jobID+filepath.Ext(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// GET /v1/{tenant}/analyses/jobs/{id}
// The polling endpoint: unknown ids are 404, another tenant's job is 403.
func (r *Router) handleJobStatus(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateJobID(id); err != nil {
		return badRequest("%v", err)
	}

	job, err := r.jobsSvc.GetForOwner(req.Context(), domjobs.JobID(id), tenant)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(toJobResponse(job))
}

// GET /v1/{tenant}/analyses/jobs/{id}/result
func (r *Router) handleResult(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateJobID(id); err != nil {
		return badRequest("%v", err)
	}

	// Ownership check goes through the job record first.
	if _, err := r.jobsSvc.GetForOwner(req.Context(), domjobs.JobID(id), tenant); err != nil {
		return err
	}

	rec, err := r.analyses.GetByJob(req.Context(), tenant, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return domjobs.ErrNotFound
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(rec)
}

// GET /v1/{tenant}/analyses?page=&page_size=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.analyses.Paginate(req.Context(), tenant, middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/analyses/jobs?limit=20
func (r *Router) handleLatestJobs(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.jobsSvc.Latest(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}

	out := make([]jobResponse, 0, len(list))
	for _, j := range list {
		out = append(out, toJobResponse(j))
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(out)
}
