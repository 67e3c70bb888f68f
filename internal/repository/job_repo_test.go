package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nineylabs/placefeed/internal/models"
)

func TestJobRepository_CreateAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	job := newTestJob("place-1", models.JobKindCrawl, models.JobStatusPending)
	job.Metadata = map[string]string{"trigger": "api"}

	if err := repos.Job.Create(ctx, job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repos.Job.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() returned nil")
	}
	if got.PlaceID != "place-1" {
		t.Errorf("PlaceID = %s, want place-1", got.PlaceID)
	}
	if got.Kind != models.JobKindCrawl {
		t.Errorf("Kind = %s, want crawl", got.Kind)
	}
	if got.Metadata["trigger"] != "api" {
		t.Errorf("Metadata = %v, want trigger=api", got.Metadata)
	}
}

func TestJobRepository_GetByID_NotFound(t *testing.T) {
	repos := setupTestRepos(t)

	got, err := repos.Job.GetByID(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent job")
	}
}

func TestJobRepository_Update(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	job := newTestJob("place-1", models.JobKindCrawl, models.JobStatusActive)
	if err := repos.Job.Create(ctx, job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.Progress = models.NewProgress(40, 40)
	job.Result = map[string]any{"reviews": float64(40)}
	job.CompletedAt = &now

	if err := repos.Job.Update(ctx, job); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repos.Job.GetByID(ctx, job.ID)
	if got.Status != models.JobStatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if got.Progress.Current != 40 || got.Progress.Total != 40 {
		t.Errorf("Progress = %+v, want 40/40", got.Progress)
	}
	if got.Progress.Percentage != 100 {
		t.Errorf("Percentage = %f, want 100", got.Progress.Percentage)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
	if got.Result["reviews"] != float64(40) {
		t.Errorf("Result = %v", got.Result)
	}
}

func TestJobRepository_UpdateProgress(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	job := newTestJob("place-1", models.JobKindCrawl, models.JobStatusActive)
	if err := repos.Job.Create(ctx, job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repos.Job.UpdateProgress(ctx, job.ID, models.NewProgress(5, 40), models.EventCrawlProgress); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}

	got, _ := repos.Job.GetByID(ctx, job.ID)
	if got.Progress.Current != 5 || got.Progress.Total != 40 {
		t.Errorf("Progress = %+v, want 5/40", got.Progress)
	}
	if got.EventName != models.EventCrawlProgress {
		t.Errorf("EventName = %s, want %s", got.EventName, models.EventCrawlProgress)
	}
	// Status must be untouched by progress writes
	if got.Status != models.JobStatusActive {
		t.Errorf("Status = %s, want active", got.Status)
	}
}

func TestJobRepository_GetNonTerminal(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	active := newTestJob("place-1", models.JobKindCrawl, models.JobStatusActive)
	done := newTestJob("place-1", models.JobKindCrawl, models.JobStatusCompleted)
	otherKind := newTestJob("place-1", models.JobKindSummarize, models.JobStatusPending)
	otherPlace := newTestJob("place-2", models.JobKindCrawl, models.JobStatusActive)
	for _, j := range []*models.Job{active, done, otherKind, otherPlace} {
		if err := repos.Job.Create(ctx, j); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repos.Job.GetNonTerminal(ctx, "place-1", models.JobKindCrawl)
	if err != nil {
		t.Fatalf("GetNonTerminal() error = %v", err)
	}
	if got == nil || got.ID != active.ID {
		t.Fatalf("GetNonTerminal() = %v, want %s", got, active.ID)
	}

	all, err := repos.Job.GetNonTerminalByPlace(ctx, "place-1")
	if err != nil {
		t.Fatalf("GetNonTerminalByPlace() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("GetNonTerminalByPlace() returned %d jobs, want 2", len(all))
	}
}

func TestJobRepository_GetNonTerminal_NoneActive(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	done := newTestJob("place-1", models.JobKindCrawl, models.JobStatusCompleted)
	if err := repos.Job.Create(ctx, done); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repos.Job.GetNonTerminal(ctx, "place-1", models.JobKindCrawl)
	if err != nil {
		t.Fatalf("GetNonTerminal() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetNonTerminal() = %v, want nil", got)
	}
}

func TestJobRepository_MarkStaleActiveFailed(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	stale := newTestJob("place-1", models.JobKindCrawl, models.JobStatusActive)
	old := time.Now().Add(-2 * time.Hour)
	stale.StartedAt = &old
	fresh := newTestJob("place-2", models.JobKindCrawl, models.JobStatusActive)
	now := time.Now()
	fresh.StartedAt = &now
	for _, j := range []*models.Job{stale, fresh} {
		if err := repos.Job.Create(ctx, j); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	count, err := repos.Job.MarkStaleActiveFailed(ctx, time.Hour)
	if err != nil {
		t.Fatalf("MarkStaleActiveFailed() error = %v", err)
	}
	if count != 1 {
		t.Errorf("marked %d jobs, want 1", count)
	}

	gotStale, _ := repos.Job.GetByID(ctx, stale.ID)
	if gotStale.Status != models.JobStatusFailed {
		t.Errorf("stale job status = %s, want failed", gotStale.Status)
	}
	gotFresh, _ := repos.Job.GetByID(ctx, fresh.ID)
	if gotFresh.Status != models.JobStatusActive {
		t.Errorf("fresh job status = %s, want active", gotFresh.Status)
	}
}
