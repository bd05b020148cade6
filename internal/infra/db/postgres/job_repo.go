package postgres

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

func (r *JobRepository) Create(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO analysis_jobs
(id, owner_id, filename, status, progress, current_step, result_json, error_text,
 created_at, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);
`
	_, err := r.db.ExecContext(ctx, q,
		j.ID, j.OwnerID, j.Filename, j.Status, j.Progress, j.CurrentStep,
		nullString(string(j.Result)), nullString(j.Error),
		j.CreatedAt, nullTime(j.StartedAt), nullTime(j.CompletedAt),
	)
	return err
}

func (r *JobRepository) Save(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO analysis_jobs
(id, owner_id, filename, status, progress, current_step, result_json, error_text,
 created_at, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
 status=EXCLUDED.status, progress=EXCLUDED.progress, current_step=EXCLUDED.current_step,
 result_json=EXCLUDED.result_json, error_text=EXCLUDED.error_text,
 started_at=EXCLUDED.started_at, completed_at=EXCLUDED.completed_at;
`
	_, err := r.db.ExecContext(ctx, q,
		j.ID, j.OwnerID, j.Filename, j.Status, j.Progress, j.CurrentStep,
		nullString(string(j.Result)), nullString(j.Error),
		j.CreatedAt, nullTime(j.StartedAt), nullTime(j.CompletedAt),
	)
	return err
}

func (r *JobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	const q = `
SELECT id, owner_id, filename, status, progress, current_step, result_json, error_text,
       created_at, started_at, completed_at
FROM analysis_jobs
WHERE id=$1 LIMIT 1;
`
	j, err := scanJob(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return j, err
}

func (r *JobRepository) Latest(ctx context.Context, owner string, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, owner_id, filename, status, progress, current_step, result_json, error_text,
       created_at, started_at, completed_at
FROM analysis_jobs
WHERE owner_id=$1 ORDER BY created_at DESC LIMIT $2;
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
