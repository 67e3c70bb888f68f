package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/oklog/ulid/v2"

	"github.com/nineylabs/placefeed/internal/database"
	"github.com/nineylabs/placefeed/internal/models"
	"github.com/nineylabs/placefeed/internal/repository"
)

type fakeOrchestrator struct {
	mu        sync.Mutex
	placeID   string
	url       string
	summarize bool
	err       error
}

func (f *fakeOrchestrator) StartCrawl(ctx context.Context, placeID, url string, summarize bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.placeID = placeID
	f.url = url
	f.summarize = summarize
	return ulid.Make().String(), nil
}

func (f *fakeOrchestrator) StartSummarize(ctx context.Context, placeID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.placeID = placeID
	return ulid.Make().String(), nil
}

func setupTestDB(t *testing.T) (*sql.DB, *repository.Repositories) {
	t.Helper()
	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db, repository.NewRepositories(db)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected huma status error, got %v", err)
	}
	return se.GetStatus()
}

func TestPlaceHandler_StartCrawl(t *testing.T) {
	orch := &fakeOrchestrator{}
	_, repos := setupTestDB(t)
	h := NewPlaceHandler(orch, repos.Review, repos.Summary)

	input := &StartCrawlInput{PlaceID: "place-1"}
	input.Body.URL = "https://example.com/place/1"
	input.Body.Summarize = true

	output, err := h.StartCrawl(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Status != http.StatusCreated {
		t.Errorf("Status = %d, want %d", output.Status, http.StatusCreated)
	}
	if output.Body.JobID == "" {
		t.Error("JobID is empty")
	}
	if output.Body.Status != "pending" {
		t.Errorf("job status = %q, want %q", output.Body.Status, "pending")
	}
	if orch.placeID != "place-1" || orch.url != "https://example.com/place/1" || !orch.summarize {
		t.Errorf("orchestrator called with (%q, %q, %v)", orch.placeID, orch.url, orch.summarize)
	}
}

func TestPlaceHandler_StartCrawl_ServiceError(t *testing.T) {
	orch := &fakeOrchestrator{err: errors.New("boom")}
	_, repos := setupTestDB(t)
	h := NewPlaceHandler(orch, repos.Review, repos.Summary)

	input := &StartCrawlInput{PlaceID: "place-1"}
	input.Body.URL = "https://example.com/place/1"

	_, err := h.StartCrawl(context.Background(), input)
	if got := statusOf(t, err); got != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", got, http.StatusInternalServerError)
	}
}

func TestPlaceHandler_StartSummarize(t *testing.T) {
	orch := &fakeOrchestrator{}
	_, repos := setupTestDB(t)
	h := NewPlaceHandler(orch, repos.Review, repos.Summary)

	output, err := h.StartSummarize(context.Background(), &StartSummarizeInput{PlaceID: "place-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Status != http.StatusCreated {
		t.Errorf("Status = %d, want %d", output.Status, http.StatusCreated)
	}
	if orch.placeID != "place-2" {
		t.Errorf("placeID = %q, want %q", orch.placeID, "place-2")
	}
}

func insertReviews(t *testing.T, repos *repository.Repositories, placeID string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := repos.Review.UpsertByFingerprint(context.Background(), &models.Review{
			PlaceID:     placeID,
			Fingerprint: fmt.Sprintf("fp-%s-%d", placeID, i),
			Author:      fmt.Sprintf("author-%d", i),
			Text:        fmt.Sprintf("review text %d", i),
			VisitDate:   "2026-08-01",
		})
		if err != nil {
			t.Fatalf("failed to insert review: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestPlaceHandler_ListReviews_Paged(t *testing.T) {
	_, repos := setupTestDB(t)
	h := NewPlaceHandler(&fakeOrchestrator{}, repos.Review, repos.Summary)
	insertReviews(t, repos, "place-1", 5)

	first, err := h.ListReviews(context.Background(), &ListReviewsInput{PlaceID: "place-1", Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Body.Reviews) != 3 {
		t.Fatalf("first page has %d reviews, want 3", len(first.Body.Reviews))
	}
	if first.Body.NextCursor == "" {
		t.Fatal("expected next cursor on first page")
	}

	second, err := h.ListReviews(context.Background(), &ListReviewsInput{
		PlaceID: "place-1",
		After:   first.Body.NextCursor,
		Limit:   3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Body.Reviews) != 2 {
		t.Fatalf("second page has %d reviews, want 2", len(second.Body.Reviews))
	}
	if second.Body.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty on last page", second.Body.NextCursor)
	}
	for _, r := range second.Body.Reviews {
		if r.ID <= first.Body.NextCursor {
			t.Errorf("review %s is not after cursor %s", r.ID, first.Body.NextCursor)
		}
	}
}

func TestPlaceHandler_ListReviews_EmptyPlace(t *testing.T) {
	_, repos := setupTestDB(t)
	h := NewPlaceHandler(&fakeOrchestrator{}, repos.Review, repos.Summary)

	output, err := h.ListReviews(context.Background(), &ListReviewsInput{PlaceID: "nowhere", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Body.Reviews) != 0 {
		t.Errorf("got %d reviews, want 0", len(output.Body.Reviews))
	}
	if output.Body.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty", output.Body.NextCursor)
	}
}

func TestPlaceHandler_GetReviewSummary(t *testing.T) {
	_, repos := setupTestDB(t)
	h := NewPlaceHandler(&fakeOrchestrator{}, repos.Review, repos.Summary)
	reviewIDs := insertReviews(t, repos, "place-1", 1)

	summaryID := ulid.Make().String()
	if err := repos.Summary.CreatePending(context.Background(), summaryID, reviewIDs[0], "place-1"); err != nil {
		t.Fatalf("failed to create pending summary: %v", err)
	}
	payload := &models.SummaryPayload{Summary: "nice food", Sentiment: "positive"}
	if err := repos.Summary.Complete(context.Background(), summaryID, payload); err != nil {
		t.Fatalf("failed to complete summary: %v", err)
	}

	output, err := h.GetReviewSummary(context.Background(), &GetReviewSummaryInput{
		PlaceID:  "place-1",
		ReviewID: reviewIDs[0],
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != models.SummaryStatusCompleted {
		t.Errorf("status = %q, want completed", output.Body.Status)
	}
	if output.Body.Payload == nil || output.Body.Payload.Summary != "nice food" {
		t.Errorf("payload = %+v, want summary %q", output.Body.Payload, "nice food")
	}
}

func TestPlaceHandler_GetReviewSummary_NotFound(t *testing.T) {
	_, repos := setupTestDB(t)
	h := NewPlaceHandler(&fakeOrchestrator{}, repos.Review, repos.Summary)
	reviewIDs := insertReviews(t, repos, "place-1", 1)

	summaryID := ulid.Make().String()
	if err := repos.Summary.CreatePending(context.Background(), summaryID, reviewIDs[0], "place-1"); err != nil {
		t.Fatalf("failed to create pending summary: %v", err)
	}

	_, err := h.GetReviewSummary(context.Background(), &GetReviewSummaryInput{
		PlaceID:  "place-1",
		ReviewID: "missing",
	})
	if got := statusOf(t, err); got != http.StatusNotFound {
		t.Errorf("status = %d, want %d", got, http.StatusNotFound)
	}

	// A summary for another place must not leak through this path.
	_, err = h.GetReviewSummary(context.Background(), &GetReviewSummaryInput{
		PlaceID:  "other-place",
		ReviewID: reviewIDs[0],
	})
	if got := statusOf(t, err); got != http.StatusNotFound {
		t.Errorf("status = %d, want %d", got, http.StatusNotFound)
	}
}
