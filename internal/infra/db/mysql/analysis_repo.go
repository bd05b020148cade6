package mysql

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

// Save inserts or updates an assembled analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO tender_analyses
(id, job_id, owner_id, filename, file_size, result_json, project_name, client_name,
 budget_ht, report_url, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 result_json=VALUES(result_json), project_name=VALUES(project_name),
 client_name=VALUES(client_name), budget_ht=VALUES(budget_ht),
 report_url=VALUES(report_url);
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

// GetByJob returns the analysis produced by one job.
func (r *AnalysisRepository) GetByJob(ctx context.Context, owner, jobID string) (*domain.Record, error) {
	const q = `
SELECT id, job_id, owner_id, filename, file_size, result_json, project_name, client_name,
       budget_ht, report_url, created_at
FROM tender_analyses
WHERE owner_id=? AND job_id=? LIMIT 1;
`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, owner, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// Paginate returns a page of analyses ordered by created_at desc
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
WHERE owner_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
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
