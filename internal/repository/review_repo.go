package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nineylabs/placefeed/internal/models"
)

// SQLiteReviewRepository implements ReviewRepository for SQLite.
type SQLiteReviewRepository struct {
	db *sql.DB
}

// NewSQLiteReviewRepository creates a new SQLite review repository.
func NewSQLiteReviewRepository(db *sql.DB) *SQLiteReviewRepository {
	return &SQLiteReviewRepository{db: db}
}

const reviewColumns = `id, place_id, fingerprint, author, body, tags_json,
	visit_date, visit_ordinal, verified, attachment_urls_json, attachments_json,
	created_at, updated_at`

// UpsertByFingerprint inserts the review, or updates the mutable fields of
// the existing row on fingerprint conflict. The row id and created_at of the
// first extraction are preserved; the returned id is always the stored one.
func (r *SQLiteReviewRepository) UpsertByFingerprint(ctx context.Context, review *models.Review) (string, error) {
	now := time.Now().Format(time.RFC3339)
	query := `
		INSERT INTO reviews (` + reviewColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			body = excluded.body,
			tags_json = excluded.tags_json,
			attachment_urls_json = excluded.attachment_urls_json,
			attachments_json = excluded.attachments_json,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		review.ID,
		review.PlaceID,
		review.Fingerprint,
		nullString(review.Author),
		nullString(review.Text),
		nullJSON(review.Tags),
		nullString(review.VisitDate),
		nullString(review.VisitOrdinal),
		boolToInt(review.Verified),
		nullJSON(review.AttachmentURLs),
		nullJSON(review.Attachments),
		now,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to upsert review: %w", err)
	}

	// The stored id differs from review.ID when the fingerprint already existed.
	var id string
	err = r.db.QueryRowContext(ctx,
		"SELECT id FROM reviews WHERE fingerprint = ?", review.Fingerprint,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to resolve upserted review id: %w", err)
	}
	return id, nil
}

func (r *SQLiteReviewRepository) GetByID(ctx context.Context, id string) (*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = ?`
	review, err := scanReview(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return review, err
}

func (r *SQLiteReviewRepository) GetByPlaceID(ctx context.Context, placeID, afterID string, limit int) ([]*models.Review, error) {
	query := `
		SELECT ` + reviewColumns + ` FROM reviews
		WHERE place_id = ? AND id > ? ORDER BY id ASC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, placeID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (r *SQLiteReviewRepository) CountByPlace(ctx context.Context, placeID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reviews WHERE place_id = ?", placeID,
	).Scan(&count)
	return count, err
}

func scanReview(s scanner) (*models.Review, error) {
	var review models.Review
	var author, body, tagsJSON, visitDate, visitOrdinal sql.NullString
	var attachmentURLsJSON, attachmentsJSON sql.NullString
	var verified int
	var createdAt, updatedAt string

	err := s.Scan(
		&review.ID,
		&review.PlaceID,
		&review.Fingerprint,
		&author,
		&body,
		&tagsJSON,
		&visitDate,
		&visitOrdinal,
		&verified,
		&attachmentURLsJSON,
		&attachmentsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan review: %w", err)
	}

	review.Author = author.String
	review.Text = body.String
	review.VisitDate = visitDate.String
	review.VisitOrdinal = visitOrdinal.String
	review.Verified = verified != 0
	if tagsJSON.Valid {
		_ = json.Unmarshal([]byte(tagsJSON.String), &review.Tags)
	}
	if attachmentURLsJSON.Valid {
		_ = json.Unmarshal([]byte(attachmentURLsJSON.String), &review.AttachmentURLs)
	}
	if attachmentsJSON.Valid {
		_ = json.Unmarshal([]byte(attachmentsJSON.String), &review.Attachments)
	}
	review.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	review.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &review, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
