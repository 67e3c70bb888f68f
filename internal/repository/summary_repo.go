package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nineylabs/placefeed/internal/models"
)

// SQLiteSummaryRepository implements SummaryRepository for SQLite.
type SQLiteSummaryRepository struct {
	db *sql.DB
}

// NewSQLiteSummaryRepository creates a new SQLite summary repository.
func NewSQLiteSummaryRepository(db *sql.DB) *SQLiteSummaryRepository {
	return &SQLiteSummaryRepository{db: db}
}

const summaryColumns = `id, review_id, place_id, status, payload_json,
	error_message, retry_count, created_at, updated_at`

func (r *SQLiteSummaryRepository) CreatePending(ctx context.Context, id, reviewID, placeID string) error {
	now := time.Now().Format(time.RFC3339)
	query := `
		INSERT INTO review_summaries (id, review_id, place_id, status, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', ?, ?)
		ON CONFLICT(review_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, id, reviewID, placeID, now, now)
	if err != nil {
		return fmt.Errorf("failed to create pending summary: %w", err)
	}
	return nil
}

func (r *SQLiteSummaryRepository) GetByReviewID(ctx context.Context, reviewID string) (*models.ReviewSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM review_summaries WHERE review_id = ?`
	summary, err := scanSummary(r.db.QueryRowContext(ctx, query, reviewID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return summary, err
}

// ClaimBatch transitions up to limit eligible rows to processing inside one
// transaction and returns them. Eligible rows are pending, or failed with
// retry_count below maxRetry.
func (r *SQLiteSummaryRepository) ClaimBatch(ctx context.Context, placeID string, maxRetry, limit int) ([]*models.ReviewSummary, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT ` + summaryColumns + ` FROM review_summaries
		WHERE place_id = ?
			AND (status = 'pending' OR (status = 'failed' AND retry_count < ?))
		ORDER BY created_at ASC LIMIT ?
	`
	rows, err := tx.QueryContext(ctx, query, placeID, maxRetry, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary batch: %w", err)
	}

	var batch []*models.ReviewSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		batch = append(batch, summary)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, tx.Commit()
	}

	ids := make([]string, len(batch))
	args := make([]any, 0, len(batch)+1)
	args = append(args, time.Now().Format(time.RFC3339))
	for i, s := range batch {
		ids[i] = "?"
		args = append(args, s.ID)
		s.Status = models.SummaryStatusProcessing
	}
	update := `
		UPDATE review_summaries SET status = 'processing', updated_at = ?
		WHERE id IN (` + strings.Join(ids, ", ") + `)
	`
	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		return nil, fmt.Errorf("failed to claim summary batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return batch, nil
}

func (r *SQLiteSummaryRepository) Complete(ctx context.Context, id string, payload *models.SummaryPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal summary payload: %w", err)
	}
	query := `
		UPDATE review_summaries SET status = 'completed', payload_json = ?,
			error_message = NULL, updated_at = ?
		WHERE id = ?
	`
	_, err = r.db.ExecContext(ctx, query, string(data), time.Now().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to complete summary: %w", err)
	}
	return nil
}

func (r *SQLiteSummaryRepository) Fail(ctx context.Context, id string, errMsg string) error {
	query := `
		UPDATE review_summaries SET status = 'failed', error_message = ?,
			retry_count = retry_count + 1, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, errMsg, time.Now().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to fail summary: %w", err)
	}
	return nil
}

// ResetProcessing is a boot-time recovery step: a crash mid-chunk leaves
// claimed rows in processing, which ClaimBatch never re-selects.
func (r *SQLiteSummaryRepository) ResetProcessing(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE review_summaries SET status = 'pending', updated_at = ?
		WHERE status = 'processing'
	`, time.Now().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to reset processing summaries: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteSummaryRepository) CountRemaining(ctx context.Context, placeID string, maxRetry int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM review_summaries
		WHERE place_id = ?
			AND (status = 'pending' OR (status = 'failed' AND retry_count < ?))
	`, placeID, maxRetry).Scan(&count)
	return count, err
}

func scanSummary(s scanner) (*models.ReviewSummary, error) {
	var summary models.ReviewSummary
	var payloadJSON, errorMessage sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(
		&summary.ID,
		&summary.ReviewID,
		&summary.PlaceID,
		&summary.Status,
		&payloadJSON,
		&errorMessage,
		&summary.RetryCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan summary: %w", err)
	}

	summary.ErrorMessage = errorMessage.String
	if payloadJSON.Valid {
		var payload models.SummaryPayload
		if json.Unmarshal([]byte(payloadJSON.String), &payload) == nil {
			summary.Payload = &payload
		}
	}
	summary.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	summary.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &summary, nil
}
