package mysql

import (
	"context"
	"database/sql"

	"github.com/tmarceau/bidscope/internal/domain/joberrors"
)

type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository {
	return &FailureRepository{db: db}
}

// Record appends one call-failure audit row.
func (r *FailureRepository) Record(ctx context.Context, f *joberrors.CallFailure) error {
	const q = `
INSERT INTO job_call_failures
(job_id, unit_key, attempt, reason, rate_limited, occurred_at)
VALUES (?,?,?,?,?,?);
`
	_, err := r.db.ExecContext(ctx, q,
		f.JobID, f.UnitKey, f.Attempt, f.Reason, f.RateLimited, f.OccurredAt,
	)
	return err
}

// ByJob lists a job's call failures in occurrence order.
func (r *FailureRepository) ByJob(ctx context.Context, jobID string) ([]*joberrors.CallFailure, error) {
	const q = `
SELECT job_id, unit_key, attempt, reason, rate_limited, occurred_at
FROM job_call_failures
WHERE job_id=? ORDER BY occurred_at ASC;
`
	rows, err := r.db.QueryContext(ctx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*joberrors.CallFailure
	for rows.Next() {
		var f joberrors.CallFailure
		if err := rows.Scan(&f.JobID, &f.UnitKey, &f.Attempt, &f.Reason, &f.RateLimited, &f.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
