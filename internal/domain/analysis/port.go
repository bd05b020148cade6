package analysis

import "context"

// Completer port (interface to the LLM completion service)
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// Extraction is the file-extraction collaborator's result.
type Extraction struct {
	Success        bool
	Text           string
	UnitsProcessed int
	Errors         []string
}

// Extractor port (interface to the multi-format text extraction routine)
type Extractor interface {
	Extract(ctx context.Context, path, filename string) (Extraction, error)
}

// Repository port for persisting and querying assembled analyses
type Repository interface {
	Save(ctx context.Context, r *Record) error
	GetByJob(ctx context.Context, owner, jobID string) (*Record, error)
	Paginate(ctx context.Context, owner string, page, pageSize int) ([]*Record, error)
}

// ReportStore port (object storage for the generated report document)
type ReportStore interface {
	UploadReport(ctx context.Context, key string, body []byte) (string, error)
}

// Task is one queued work item: a job reference plus the staged input.
type Task struct {
	JobID      string `json:"job_id"`
	OwnerID    string `json:"owner_id"`
	StagedPath string `json:"staged_path"`
	Filename   string `json:"filename"`

	// Raw is the exact queued payload, kept so an Ack removes the same
	// bytes that were claimed.
	Raw string `json:"-"`
}

// Queue port (durable work queue between intake and workers)
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
	// Dequeue blocks until a task is available or ctx is done. The claim
	// is exclusive until Ack.
	Dequeue(ctx context.Context) (*Task, error)
	Ack(ctx context.Context, t *Task) error
}
