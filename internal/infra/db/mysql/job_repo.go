package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	domain "github.com/tmarceau/bidscope/internal/domain/jobs"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts the initial pending row.
func (r *JobRepository) Create(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO analysis_jobs
(id, owner_id, filename, status, progress, current_step, result_json, error_text,
 created_at, started_at, completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?);
`
	_, err := r.db.ExecContext(ctx, q,
		j.ID, j.OwnerID, j.Filename, j.Status, j.Progress, j.CurrentStep,
		nullString(string(j.Result)), nullString(j.Error),
		j.CreatedAt, nullTime(j.StartedAt), nullTime(j.CompletedAt),
	)
	return err
}

// Save upserts the full record so transitions survive process restarts.
func (r *JobRepository) Save(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO analysis_jobs
(id, owner_id, filename, status, progress, current_step, result_json, error_text,
 created_at, started_at, completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status), progress=VALUES(progress), current_step=VALUES(current_step),
 result_json=VALUES(result_json), error_text=VALUES(error_text),
 started_at=VALUES(started_at), completed_at=VALUES(completed_at);
`
	_, err := r.db.ExecContext(ctx, q,
		j.ID, j.OwnerID, j.Filename, j.Status, j.Progress, j.CurrentStep,
		nullString(string(j.Result)), nullString(j.Error),
		j.CreatedAt, nullTime(j.StartedAt), nullTime(j.CompletedAt),
	)
	return err
}

// Get by ID; unknown ids map to the domain's ErrNotFound.
func (r *JobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	const q = `
SELECT id, owner_id, filename, status, progress, current_step, result_json, error_text,
       created_at, started_at, completed_at
FROM analysis_jobs
WHERE id=? LIMIT 1;
`
	j, err := scanJob(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return j, err
}

// Latest jobs per owner.
func (r *JobRepository) Latest(ctx context.Context, owner string, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, owner_id, filename, status, progress, current_step, result_json, error_text,
       created_at, started_at, completed_at
FROM analysis_jobs
WHERE owner_id=? ORDER BY created_at DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	var result, errText sql.NullString
	var started, completed sql.NullTime
	if err := row.Scan(
		&j.ID, &j.OwnerID, &j.Filename, &j.Status, &j.Progress, &j.CurrentStep,
		&result, &errText, &j.CreatedAt, &started, &completed,
	); err != nil {
		return nil, err
	}
	if result.Valid {
		j.Result = json.RawMessage(result.String)
	}
	j.Error = errText.String
	j.StartedAt = timePtr(started)
	j.CompletedAt = timePtr(completed)
	return &j, nil
}
