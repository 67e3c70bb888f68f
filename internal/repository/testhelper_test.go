package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/nineylabs/placefeed/internal/database/migrations"
	"github.com/nineylabs/placefeed/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	return NewRepositories(setupTestDB(t))
}

// insertTestReview inserts a review row and its pending summary, returning
// the stored review id.
func insertTestReview(t *testing.T, repos *Repositories, placeID, fp string) string {
	t.Helper()
	ctx := context.Background()

	id, err := repos.Review.UpsertByFingerprint(ctx, &models.Review{
		ID:          ulid.Make().String(),
		PlaceID:     placeID,
		Fingerprint: fp,
		Author:      "tester",
		Text:        "great noodles",
	})
	if err != nil {
		t.Fatalf("failed to insert test review: %v", err)
	}
	if err := repos.Summary.CreatePending(ctx, ulid.Make().String(), id, placeID); err != nil {
		t.Fatalf("failed to insert pending summary: %v", err)
	}
	return id
}

func newTestJob(placeID string, kind models.JobKind, status models.JobStatus) *models.Job {
	now := time.Now()
	return &models.Job{
		ID:        ulid.Make().String(),
		PlaceID:   placeID,
		Kind:      kind,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
