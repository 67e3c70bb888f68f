package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nineylabs/placefeed/internal/jobs"
	"github.com/nineylabs/placefeed/internal/models"
)

// JobRegistry reads and cancels tracked jobs. Satisfied by *jobs.Registry.
type JobRegistry interface {
	Get(ctx context.Context, jobID string) (*models.Job, error)
	Cancel(ctx context.Context, jobID string) error
	CurrentState(ctx context.Context, placeID string) ([]models.Event, error)
}

// JobHandler handles job endpoints.
type JobHandler struct {
	registry JobRegistry
}

// NewJobHandler creates a new job handler.
func NewJobHandler(registry JobRegistry) *JobHandler {
	return &JobHandler{registry: registry}
}

// GetJobInput represents a job lookup request.
type GetJobInput struct {
	ID string `path:"id" doc:"Job identifier (ULID)"`
}

// GetJobOutput represents a job lookup response.
type GetJobOutput struct {
	Body models.Job
}

// GetJob returns the durable job row, including progress and result.
func (h *JobHandler) GetJob(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	job, err := h.registry.Get(ctx, input.ID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			return nil, huma.Error404NotFound("job not found")
		}
		return nil, huma.Error500InternalServerError("failed to get job: " + err.Error())
	}
	return &GetJobOutput{Body: *job}, nil
}

// CancelJobInput represents a job cancellation request.
type CancelJobInput struct {
	ID string `path:"id" doc:"Job identifier (ULID)"`
}

// CancelJobOutput represents a job cancellation response.
//
// Cancellation is cooperative: the job observes the flag at its next loop
// boundary, so the terminal status arrives asynchronously via events.
type CancelJobOutput struct {
	Status int
	Body   struct {
		JobID  string `json:"job_id"`
		Status string `json:"status" example:"cancelling"`
	}
}

// CancelJob requests cooperative cancellation of a job.
func (h *JobHandler) CancelJob(ctx context.Context, input *CancelJobInput) (*CancelJobOutput, error) {
	if err := h.registry.Cancel(ctx, input.ID); err != nil {
		switch {
		case errors.Is(err, jobs.ErrJobNotFound):
			return nil, huma.Error404NotFound("job not found")
		case errors.Is(err, jobs.ErrJobTerminal):
			return nil, huma.Error409Conflict("job already finished")
		default:
			return nil, huma.Error500InternalServerError("failed to cancel job: " + err.Error())
		}
	}

	out := &CancelJobOutput{Status: http.StatusAccepted}
	out.Body.JobID = input.ID
	out.Body.Status = "cancelling"
	return out, nil
}
