package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	domain "github.com/tmarceau/bidscope/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO tender_analyses
(id, job_id, owner_id, filename, file_size, result_json, project_name, client_name,
 budget_ht, report_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
 result_json=EXCLUDED.result_json, project_name=EXCLUDED.project_name,
 client_name=EXCLUDED.client_name, budget_ht=EXCLUDED.budget_ht,
 report_url=EXCLUDED.report_url;
`
	result := a.Result
	if strings.TrimSpace(result) == "" {
		result = "{}"
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.JobID, a.OwnerID, a.Filename, a.FileSize, result,
		nullString(a.ProjectName), nullString(a.ClientName),
		nullFloat(a.BudgetHT), nullString(a.ReportURL), a.CreatedAt,
	)
	return err
}

func (r *AnalysisRepository) GetByJob(ctx context.Context, owner, jobID string) (*domain.Record, error) {
	const q = `
SELECT id, job_id, owner_id, filename, file_size, result_json, project_name, client_name,
       budget_ht, report_url, created_at
FROM tender_analyses
WHERE owner_id=$1 AND job_id=$2 LIMIT 1;
`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, owner, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *AnalysisRepository) Paginate(ctx context.Context, owner string, page, pageSize int) ([]*domain.Record, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, job_id, owner_id, filename, file_size, result_json, project_name, client_name,
       budget_ht, report_url, created_at
FROM tender_analyses
WHERE owner_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.db.QueryContext(ctx, q, owner, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var a domain.Record
	var project, client, report sql.NullString
	var budget sql.NullFloat64
	if err := row.Scan(
		&a.ID, &a.JobID, &a.OwnerID, &a.Filename, &a.FileSize, &a.Result,
		&project, &client, &budget, &report, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.ProjectName = project.String
	a.ClientName = client.String
	a.BudgetHT = floatPtr(budget)
	a.ReportURL = report.String
	return &a, nil
}
