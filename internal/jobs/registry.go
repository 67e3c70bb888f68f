// Package jobs implements the in-memory job registry. The registry is the
// single writer for job lifecycle state: it enforces at most one non-terminal
// job per (place, kind) pair, carries the cooperative cancellation flags that
// agents poll, and decides which progress updates reach the database versus
// the event hub.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nineylabs/placefeed/internal/events"
	"github.com/nineylabs/placefeed/internal/models"
	"github.com/nineylabs/placefeed/internal/repository"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobTerminal = errors.New("job already terminal")
)

// persistEvery is the durable write cadence for progress updates. Every
// update is broadcast; only every Nth unit (and total milestones) hits the
// database.
const persistEvery = 5

type pairKey struct {
	placeID string
	kind    models.JobKind
}

// Registry tracks running jobs and owns their durable rows.
type Registry struct {
	repo          repository.JobRepository
	hub           *events.Hub
	logger        *slog.Logger
	retireTimeout time.Duration

	mu      sync.Mutex
	running map[string]*Handle
	byPair  map[pairKey]*Handle
}

func NewRegistry(repo repository.JobRepository, hub *events.Hub, logger *slog.Logger, retireTimeout time.Duration) *Registry {
	return &Registry{
		repo:          repo,
		hub:           hub,
		logger:        logger.With("component", "registry"),
		retireTimeout: retireTimeout,
		running:       make(map[string]*Handle),
		byPair:        make(map[pairKey]*Handle),
	}
}

// Handle is the registry's interface handed to the agent running a job.
// All lifecycle transitions go through it so the registry sees every write.
type Handle struct {
	registry  *Registry
	job       *models.Job
	cancelled atomic.Bool
	done      chan struct{}

	mu            sync.Mutex
	lastPersisted int
}

// Start retires any prior non-terminal job for the (place, kind) pair, then
// creates and returns a new pending job. Retirement is synchronous: the prior
// agent's cancellation flag is set and Start waits (bounded) for it to finish
// before the new row is created, so overlapping writers cannot race.
func (r *Registry) Start(ctx context.Context, placeID string, kind models.JobKind, metadata map[string]string) (*Handle, error) {
	key := pairKey{placeID: placeID, kind: kind}

	now := time.Now().UTC()
	job := &models.Job{
		ID:        ulid.Make().String(),
		PlaceID:   placeID,
		Kind:      kind,
		Status:    models.JobStatusPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	h := &Handle{
		registry: r,
		job:      job,
		done:     make(chan struct{}),
	}

	// Claim the pair before any unlocked work. Concurrent Start calls for the
	// same pair serialize on each other's handles instead of racing the check.
	for {
		r.mu.Lock()
		prior := r.byPair[key]
		if prior == nil {
			r.byPair[key] = h
			r.mu.Unlock()
			break
		}
		r.mu.Unlock()

		prior.cancelled.Store(true)
		r.logger.Info("retiring prior job", "job_id", prior.job.ID, "place_id", placeID, "kind", kind)
		select {
		case <-prior.done:
		case <-time.After(r.retireTimeout):
			r.logger.Warn("prior job did not stop within retire timeout",
				"job_id", prior.job.ID, "timeout", r.retireTimeout)
			r.remove(prior)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// A durable non-terminal row with no in-memory handle is an orphan, left
	// by a previous process or by a job that overran its retire timeout;
	// retire it so the pair invariant holds. Rows with a live handle belong
	// to a job another goroutine is still winding down and are left alone.
	if orphan, err := r.repo.GetNonTerminal(ctx, placeID, kind); err != nil {
		r.release(h)
		return nil, fmt.Errorf("checking for prior job: %w", err)
	} else if orphan != nil && !r.owns(orphan.ID) {
		if err := r.retireOrphan(ctx, orphan); err != nil {
			r.release(h)
			return nil, err
		}
	}

	if err := r.repo.Create(ctx, job); err != nil {
		r.release(h)
		return nil, fmt.Errorf("creating job: %w", err)
	}

	r.mu.Lock()
	r.running[job.ID] = h
	r.mu.Unlock()

	r.publish(job, models.EventStarted)
	r.logger.Info("job started", "job_id", job.ID, "place_id", placeID, "kind", kind)
	return h, nil
}

// release abandons a handle that never handed work to an agent.
func (r *Registry) release(h *Handle) {
	r.remove(h)
	close(h.done)
}

func (r *Registry) owns(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[jobID]
	return ok
}

func (r *Registry) retireOrphan(ctx context.Context, job *models.Job) error {
	job.Status = models.JobStatusFailed
	job.ErrorMessage = "superseded after restart"
	job.EventName = models.EventInterrupted
	now := time.Now().UTC()
	job.CompletedAt = &now
	job.UpdatedAt = now
	if err := r.repo.Update(ctx, job); err != nil {
		return fmt.Errorf("retiring orphaned job %s: %w", job.ID, err)
	}
	r.publish(job, models.EventInterrupted)
	r.logger.Warn("retired orphaned job", "job_id", job.ID, "place_id", job.PlaceID)
	return nil
}

// Cancel requests cooperative cancellation. Running jobs get their flag set
// and reach a terminal status at the agent's next check; orphaned durable
// rows are cancelled directly.
func (r *Registry) Cancel(ctx context.Context, jobID string) error {
	r.mu.Lock()
	h := r.running[jobID]
	r.mu.Unlock()

	if h != nil {
		h.cancelled.Store(true)
		r.logger.Info("cancellation requested", "job_id", jobID)
		return nil
	}

	job, err := r.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return ErrJobTerminal
	}

	job.Status = models.JobStatusCancelled
	job.EventName = models.EventCancelled
	now := time.Now().UTC()
	job.CompletedAt = &now
	job.UpdatedAt = now
	if err := r.repo.Update(ctx, job); err != nil {
		return fmt.Errorf("cancelling job: %w", err)
	}
	r.publish(job, models.EventCancelled)
	return nil
}

// CurrentState returns the snapshot events a new subscriber receives: one
// current_state per running job for the place, and one interrupted notice
// per durable non-terminal row no process is working on.
func (r *Registry) CurrentState(ctx context.Context, placeID string) ([]models.Event, error) {
	rows, err := r.repo.GetNonTerminalByPlace(ctx, placeID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Event
	for _, job := range rows {
		name := models.EventCurrentState
		if _, live := r.running[job.ID]; !live {
			name = models.EventInterrupted
		}
		out = append(out, models.Event{
			PlaceID: placeID,
			Name:    name,
			Payload: payloadFor(job),
		})
	}
	return out, nil
}

// ActiveCount reports the number of in-memory running jobs. The idle monitor
// uses this to keep the process alive while work is in flight.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// Get returns the durable row for a job.
func (r *Registry) Get(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := r.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (r *Registry) remove(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(h)
}

// disown removes the handle if the registry still owns it. A false return
// means the job was retired out from under its agent.
func (r *Registry) disown(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[h.job.ID] != h {
		return false
	}
	r.removeLocked(h)
	return true
}

func (r *Registry) removeLocked(h *Handle) {
	if r.running[h.job.ID] == h {
		delete(r.running, h.job.ID)
	}
	key := pairKey{placeID: h.job.PlaceID, kind: h.job.Kind}
	if r.byPair[key] == h {
		delete(r.byPair, key)
	}
}

func (r *Registry) publish(job *models.Job, name string) {
	r.hub.Publish(models.Event{
		PlaceID: job.PlaceID,
		Name:    name,
		Payload: payloadFor(job),
	})
}

func payloadFor(job *models.Job) models.JobEventPayload {
	return models.JobEventPayload{
		JobID:        job.ID,
		Kind:         job.Kind,
		Status:       job.Status,
		Progress:     job.Progress,
		Metadata:     job.Metadata,
		Result:       job.Result,
		ErrorMessage: job.ErrorMessage,
	}
}

// Job returns a snapshot of the handle's job row.
func (h *Handle) Job() models.Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.job
}

func (h *Handle) ID() string { return h.job.ID }

// Cancelled reports whether cancellation has been requested. Agents poll
// this at iteration boundaries.
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// Activate transitions the job from pending to active.
func (h *Handle) Activate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now().UTC()
	h.job.Status = models.JobStatusActive
	h.job.StartedAt = &now
	h.job.UpdatedAt = now
	if err := h.registry.repo.Update(ctx, h.job); err != nil {
		return fmt.Errorf("activating job: %w", err)
	}
	return nil
}

// ReportProgress broadcasts the update and persists it at the coarse cadence:
// every persistEvery units and always when current reaches total.
func (h *Handle) ReportProgress(ctx context.Context, current, total int, eventName string) {
	h.mu.Lock()
	h.job.Progress = models.NewProgress(current, total)
	h.job.EventName = eventName
	progress := h.job.Progress

	persist := current-h.lastPersisted >= persistEvery || (total > 0 && current == total)
	if persist {
		h.lastPersisted = current
	}
	h.mu.Unlock()

	if persist {
		if err := h.registry.repo.UpdateProgress(ctx, h.job.ID, progress, eventName); err != nil {
			h.registry.logger.Error("persisting progress", "job_id", h.job.ID, "error", err)
		}
	}

	h.mu.Lock()
	job := *h.job
	h.mu.Unlock()
	h.registry.publish(&job, eventName)
}

// Complete marks the job completed with its result and releases the handle.
func (h *Handle) Complete(ctx context.Context, result map[string]any) error {
	return h.finish(ctx, models.JobStatusCompleted, models.EventCompleted, result, "")
}

// Fail marks the job failed and releases the handle.
func (h *Handle) Fail(ctx context.Context, errMsg string) error {
	return h.finish(ctx, models.JobStatusFailed, models.EventFailed, nil, errMsg)
}

// FinishCancelled is the agent's acknowledgement of a cancellation request.
func (h *Handle) FinishCancelled(ctx context.Context) error {
	return h.finish(ctx, models.JobStatusCancelled, models.EventCancelled, nil, "")
}

func (h *Handle) finish(ctx context.Context, status models.JobStatus, eventName string, result map[string]any, errMsg string) error {
	h.mu.Lock()
	if h.job.Status.Terminal() {
		h.mu.Unlock()
		return ErrJobTerminal
	}
	now := time.Now().UTC()
	h.job.Status = status
	h.job.EventName = eventName
	h.job.Result = result
	h.job.ErrorMessage = errMsg
	h.job.CompletedAt = &now
	h.job.UpdatedAt = now
	job := *h.job
	h.mu.Unlock()

	// Only the registry's current owner may write the terminal row. A job
	// that overran its retire timeout was already retired and its row is
	// terminal; a late write here would resurrect it and double-publish.
	if !h.registry.disown(h) {
		close(h.done)
		h.registry.logger.Warn("dropping late finish for retired job",
			"job_id", job.ID, "status", status)
		return ErrJobTerminal
	}

	err := h.registry.repo.Update(ctx, &job)

	close(h.done)
	h.registry.publish(&job, eventName)

	if err != nil {
		return fmt.Errorf("finishing job: %w", err)
	}
	h.registry.logger.Info("job finished", "job_id", job.ID, "status", status)
	return nil
}
