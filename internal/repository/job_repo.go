package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nineylabs/placefeed/internal/models"
)

// SQLiteJobRepository implements JobRepository for SQLite.
type SQLiteJobRepository struct {
	db *sql.DB
}

// NewSQLiteJobRepository creates a new SQLite job repository.
func NewSQLiteJobRepository(db *sql.DB) *SQLiteJobRepository {
	return &SQLiteJobRepository{db: db}
}

const jobColumns = `id, place_id, kind, status, progress_current, progress_total,
	event_name, metadata_json, result_json, error_message,
	started_at, completed_at, created_at, updated_at`

func (r *SQLiteJobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.PlaceID,
		job.Kind,
		job.Status,
		job.Progress.Current,
		job.Progress.Total,
		nullString(job.EventName),
		nullJSON(job.Metadata),
		nullJSON(job.Result),
		nullString(job.ErrorMessage),
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.CreatedAt.Format(time.RFC3339),
		job.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`
	return scanJob(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteJobRepository) Update(ctx context.Context, job *models.Job) error {
	query := `
		UPDATE jobs SET status = ?, progress_current = ?, progress_total = ?,
			event_name = ?, metadata_json = ?, result_json = ?, error_message = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		job.Status,
		job.Progress.Current,
		job.Progress.Total,
		nullString(job.EventName),
		nullJSON(job.Metadata),
		nullJSON(job.Result),
		nullString(job.ErrorMessage),
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		time.Now().Format(time.RFC3339),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) UpdateProgress(ctx context.Context, id string, progress models.Progress, eventName string) error {
	query := `
		UPDATE jobs SET progress_current = ?, progress_total = ?, event_name = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		progress.Current,
		progress.Total,
		nullString(eventName),
		time.Now().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) GetNonTerminalByPlace(ctx context.Context, placeID string) ([]*models.Job, error) {
	query := `
		SELECT ` + jobColumns + ` FROM jobs
		WHERE place_id = ? AND status IN ('pending', 'active')
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, placeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query non-terminal jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *SQLiteJobRepository) GetNonTerminal(ctx context.Context, placeID string, kind models.JobKind) (*models.Job, error) {
	query := `
		SELECT ` + jobColumns + ` FROM jobs
		WHERE place_id = ? AND kind = ? AND status IN ('pending', 'active')
		ORDER BY created_at DESC LIMIT 1
	`
	return scanJob(r.db.QueryRowContext(ctx, query, placeID, kind))
}

func (r *SQLiteJobRepository) MarkStaleActiveFailed(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Format(time.RFC3339)
	now := time.Now().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', error_message = 'stale job from previous run',
			completed_at = ?, updated_at = ?
		WHERE status = 'active' AND started_at < ?
	`, now, now, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale jobs: %w", err)
	}
	return result.RowsAffected()
}

func (r *SQLiteJobRepository) ListByPlace(ctx context.Context, placeID string, limit, offset int) ([]*models.Job, error) {
	query := `
		SELECT ` + jobColumns + ` FROM jobs
		WHERE place_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, placeID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row *sql.Row) (*models.Job, error) {
	job, err := scanJobFields(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

func scanJobFromRows(rows *sql.Rows) (*models.Job, error) {
	return scanJobFields(rows)
}

func scanJobFields(s scanner) (*models.Job, error) {
	var job models.Job
	var eventName, metadataJSON, resultJSON, errorMessage sql.NullString
	var startedAt, completedAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(
		&job.ID,
		&job.PlaceID,
		&job.Kind,
		&job.Status,
		&job.Progress.Current,
		&job.Progress.Total,
		&eventName,
		&metadataJSON,
		&resultJSON,
		&errorMessage,
		&startedAt,
		&completedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.Progress = models.NewProgress(job.Progress.Current, job.Progress.Total)
	job.EventName = eventName.String
	job.ErrorMessage = errorMessage.String
	if metadataJSON.Valid {
		_ = json.Unmarshal([]byte(metadataJSON.String), &job.Metadata)
	}
	if resultJSON.Valid {
		_ = json.Unmarshal([]byte(resultJSON.String), &job.Result)
	}
	job.StartedAt = parseTimePtr(startedAt)
	job.CompletedAt = parseTimePtr(completedAt)
	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &job, nil
}
