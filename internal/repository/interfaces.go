// Package repository defines repository interfaces for data access.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/nineylabs/placefeed/internal/models"
)

// PlaceRepository defines methods for place data access.
type PlaceRepository interface {
	Create(ctx context.Context, place *models.Place) error
	GetByID(ctx context.Context, id string) (*models.Place, error)
	Update(ctx context.Context, place *models.Place) error
	List(ctx context.Context, limit, offset int) ([]*models.Place, error)
}

// JobRepository defines methods for durable job rows.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	Update(ctx context.Context, job *models.Job) error
	// UpdateProgress persists only the progress columns; used for coarse
	// milestone writes so full-row updates stay with lifecycle transitions.
	UpdateProgress(ctx context.Context, id string, progress models.Progress, eventName string) error
	// GetNonTerminalByPlace returns pending/active jobs for a place.
	GetNonTerminalByPlace(ctx context.Context, placeID string) ([]*models.Job, error)
	// GetNonTerminal returns the pending/active job for a (place, kind) pair, or nil.
	GetNonTerminal(ctx context.Context, placeID string, kind models.JobKind) (*models.Job, error)
	// MarkStaleActiveFailed fails active jobs older than maxAge.
	// Returns the number of jobs marked as failed.
	MarkStaleActiveFailed(ctx context.Context, maxAge time.Duration) (int64, error)
	ListByPlace(ctx context.Context, placeID string, limit, offset int) ([]*models.Job, error)
}

// ReviewRepository defines methods for review data access.
type ReviewRepository interface {
	// UpsertByFingerprint inserts the review or, on fingerprint conflict,
	// updates the mutable fields of the existing row. Returns the row id.
	UpsertByFingerprint(ctx context.Context, review *models.Review) (string, error)
	GetByID(ctx context.Context, id string) (*models.Review, error)
	// GetByPlaceID returns reviews with ID greater than afterID
	// (ULIDs are time-ordered so this works as a cursor). Pass "" for all.
	GetByPlaceID(ctx context.Context, placeID, afterID string, limit int) ([]*models.Review, error)
	CountByPlace(ctx context.Context, placeID string) (int, error)
}

// MenuItemRepository defines methods for place menu snapshots.
type MenuItemRepository interface {
	Upsert(ctx context.Context, item *models.MenuItem) error
	ListByPlace(ctx context.Context, placeID string) ([]*models.MenuItem, error)
}

// SummaryRepository defines methods for review summary rows.
type SummaryRepository interface {
	// CreatePending inserts a pending summary row for the review unless one
	// already exists.
	CreatePending(ctx context.Context, id, reviewID, placeID string) error
	GetByReviewID(ctx context.Context, reviewID string) (*models.ReviewSummary, error)
	// ClaimBatch moves up to limit pending/failed rows (retry_count below
	// maxRetry) for the place into processing and returns them.
	ClaimBatch(ctx context.Context, placeID string, maxRetry, limit int) ([]*models.ReviewSummary, error)
	// Complete stores the payload and marks the row completed.
	Complete(ctx context.Context, id string, payload *models.SummaryPayload) error
	// Fail records the error, increments retry_count and marks the row failed.
	Fail(ctx context.Context, id string, errMsg string) error
	// ResetProcessing returns rows stranded in processing by a crashed
	// process to pending so the next sweep can claim them again.
	ResetProcessing(ctx context.Context) (int64, error)
	CountRemaining(ctx context.Context, placeID string, maxRetry int) (int, error)
}

// Repositories holds all repository implementations.
type Repositories struct {
	Place    PlaceRepository
	Job      JobRepository
	Review   ReviewRepository
	MenuItem MenuItemRepository
	Summary  SummaryRepository
}

// NewRepositories creates all SQLite repositories.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Place:    NewSQLitePlaceRepository(db),
		Job:      NewSQLiteJobRepository(db),
		Review:   NewSQLiteReviewRepository(db),
		MenuItem: NewSQLiteMenuItemRepository(db),
		Summary:  NewSQLiteSummaryRepository(db),
	}
}
