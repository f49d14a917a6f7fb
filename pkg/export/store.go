package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jordanlanch/campuspark/pkg/export/validate"
	"github.com/lib/pq"
)

// JobStore persists export jobs. Terminal transitions set completed_at
// exactly once: a store must refuse to overwrite a terminal job.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	GetForUser(ctx context.Context, userID, id string) (*Job, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Job, int, error)
	CountActive(ctx context.Context, userID string) (int, error)
	MarkRunning(ctx context.Context, id string, at time.Time) error
	MarkDone(ctx context.Context, id string, res DoneResult, at time.Time) error
	MarkError(ctx context.Context, id string, message string, at time.Time) error
}

// PostgresStore is the production JobStore over the export_jobs table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const jobColumns = `id, user_id, report_type, format, filters, columns, mode,
	COALESCE(sort_by, ''), COALESCE(sort_dir, ''), anonymize, status,
	COALESCE(row_count, 0), COALESCE(file_path, ''), COALESCE(file_hash, ''),
	validation_report, COALESCE(error_message, ''), created_at, started_at, completed_at`

// Create inserts a freshly admitted job in state queued.
func (s *PostgresStore) Create(ctx context.Context, job *Job) error {
	filters, err := json.Marshal(job.Filters)
	if err != nil {
		return fmt.Errorf("failed to marshal filters: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO export_jobs
			(id, user_id, report_type, format, filters, columns, mode,
			 sort_by, sort_dir, anonymize, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.UserID, job.ReportType, job.Format, filters,
		pq.Array(job.Columns), job.Mode, job.SortBy, job.SortDir,
		job.Anonymize, job.Status, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create export job: %w", err)
	}
	return nil
}

// Get fetches a job by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM export_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// GetForUser fetches a job by id scoped to its owner.
func (s *PostgresStore) GetForUser(ctx context.Context, userID, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM export_jobs WHERE id = $1 AND user_id = $2`, id, userID)
	return scanJob(row)
}

// ListByUser returns a page of the user's jobs, newest first, plus the
// total count.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Job, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM export_jobs WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count export jobs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM export_jobs
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list export jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// CountActive counts the user's jobs currently in queued or running.
func (s *PostgresStore) CountActive(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM export_jobs
		 WHERE user_id = $1 AND status IN ('queued', 'running')`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return n, nil
}

// MarkRunning transitions queued → running and stamps started_at.
func (s *PostgresStore) MarkRunning(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE export_jobs SET status = 'running', started_at = $2
		 WHERE id = $1 AND status = 'queued'`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	return requireUpdated(res)
}

// MarkDone transitions running → done with the result attributes.
func (s *PostgresStore) MarkDone(ctx context.Context, id string, dr DoneResult, at time.Time) error {
	report, err := json.Marshal(dr.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal validation report: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE export_jobs
		 SET status = 'done', row_count = $2, file_path = $3, file_hash = $4,
		     validation_report = $5, completed_at = $6
		 WHERE id = $1 AND status = 'running'`,
		id, dr.RowCount, dr.FilePath, dr.FileHash, report, at)
	if err != nil {
		return fmt.Errorf("failed to mark job done: %w", err)
	}
	return requireUpdated(res)
}

// MarkError transitions running → error with the failure message.
func (s *PostgresStore) MarkError(ctx context.Context, id string, message string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE export_jobs SET status = 'error', error_message = $2, completed_at = $3
		 WHERE id = $1 AND status IN ('queued', 'running')`, id, message, at)
	if err != nil {
		return fmt.Errorf("failed to mark job errored: %w", err)
	}
	return requireUpdated(res)
}

func requireUpdated(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job       Job
		filters   []byte
		columns   pq.StringArray
		report    []byte
		started   sql.NullTime
		completed sql.NullTime
	)
	err := row.Scan(&job.ID, &job.UserID, &job.ReportType, &job.Format,
		&filters, &columns, &job.Mode, &job.SortBy, &job.SortDir,
		&job.Anonymize, &job.Status, &job.RowCount, &job.FilePath,
		&job.FileHash, &report, &job.ErrorMessage, &job.CreatedAt,
		&started, &completed)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan export job: %w", err)
	}

	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &job.Filters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal filters: %w", err)
		}
	}
	if len(report) > 0 {
		var rep validate.Report
		if err := json.Unmarshal(report, &rep); err != nil {
			return nil, fmt.Errorf("failed to unmarshal validation report: %w", err)
		}
		job.ValidationReport = &rep
	}
	job.Columns = columns
	if started.Valid {
		job.StartedAt = &started.Time
	}
	if completed.Valid {
		job.CompletedAt = &completed.Time
	}
	return &job, nil
}
