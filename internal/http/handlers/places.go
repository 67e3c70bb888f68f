package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nineylabs/placefeed/internal/models"
	"github.com/nineylabs/placefeed/internal/repository"
)

// Orchestrator starts background jobs for a place.
// Satisfied by *service.Orchestrator.
type Orchestrator interface {
	StartCrawl(ctx context.Context, placeID, url string, summarize bool) (string, error)
	StartSummarize(ctx context.Context, placeID string) (string, error)
}

// PlaceHandler handles place-scoped endpoints.
type PlaceHandler struct {
	orch    Orchestrator
	reviews repository.ReviewRepository
	summary repository.SummaryRepository
}

// NewPlaceHandler creates a new place handler.
func NewPlaceHandler(orch Orchestrator, reviews repository.ReviewRepository, summary repository.SummaryRepository) *PlaceHandler {
	return &PlaceHandler{
		orch:    orch,
		reviews: reviews,
		summary: summary,
	}
}

// StartCrawlInput represents a crawl job creation request.
//
// Starting a crawl retires any prior non-terminal crawl job for the same
// place before the new job is created.
type StartCrawlInput struct {
	PlaceID string `path:"placeID" doc:"Place identifier"`
	Body    struct {
		URL       string `json:"url" minLength:"1" example:"https://example.com/place/12345" doc:"Feed or short-link URL to extract from"`
		Summarize bool   `json:"summarize,omitempty" doc:"Chain a summarization sweep after extraction completes"`
	}
}

// JobResponseBody is the response body for job creation endpoints.
type JobResponseBody struct {
	JobID  string `json:"job_id" example:"01HXYZ123ABC456DEF789" doc:"Unique job identifier (ULID)"`
	Status string `json:"status" example:"pending" doc:"Job status at creation time"`
}

// StartCrawlOutput represents a crawl job creation response.
type StartCrawlOutput struct {
	Status int
	Body   JobResponseBody
}

// StartCrawl starts an extraction job for the place.
func (h *PlaceHandler) StartCrawl(ctx context.Context, input *StartCrawlInput) (*StartCrawlOutput, error) {
	jobID, err := h.orch.StartCrawl(ctx, input.PlaceID, input.Body.URL, input.Body.Summarize)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to start crawl job: " + err.Error())
	}
	return &StartCrawlOutput{
		Status: http.StatusCreated,
		Body: JobResponseBody{
			JobID:  jobID,
			Status: string(models.JobStatusPending),
		},
	}, nil
}

// StartSummarizeInput represents a summarization sweep request.
type StartSummarizeInput struct {
	PlaceID string `path:"placeID" doc:"Place identifier"`
}

// StartSummarizeOutput represents a summarization sweep response.
type StartSummarizeOutput struct {
	Status int
	Body   JobResponseBody
}

// StartSummarize starts a summarization sweep over pending and retryable
// failed summaries for the place.
func (h *PlaceHandler) StartSummarize(ctx context.Context, input *StartSummarizeInput) (*StartSummarizeOutput, error) {
	jobID, err := h.orch.StartSummarize(ctx, input.PlaceID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to start summarize job: " + err.Error())
	}
	return &StartSummarizeOutput{
		Status: http.StatusCreated,
		Body: JobResponseBody{
			JobID:  jobID,
			Status: string(models.JobStatusPending),
		},
	}, nil
}

// ListReviewsInput represents a paged review listing request.
type ListReviewsInput struct {
	PlaceID string `path:"placeID" doc:"Place identifier"`
	After   string `query:"after" doc:"Return reviews with ID after this cursor (ULIDs are time-ordered)"`
	Limit   int    `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Maximum reviews to return"`
}

// ListReviewsOutput represents a paged review listing response.
type ListReviewsOutput struct {
	Body struct {
		Reviews    []*models.Review `json:"reviews"`
		NextCursor string           `json:"next_cursor,omitempty" doc:"Pass as 'after' to fetch the next page; empty on the last page"`
	}
}

// ListReviews returns persisted reviews for the place, paged by ULID cursor.
func (h *PlaceHandler) ListReviews(ctx context.Context, input *ListReviewsInput) (*ListReviewsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	reviews, err := h.reviews.GetByPlaceID(ctx, input.PlaceID, input.After, limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list reviews: " + err.Error())
	}

	out := &ListReviewsOutput{}
	out.Body.Reviews = reviews
	if len(reviews) == limit {
		out.Body.NextCursor = reviews[len(reviews)-1].ID
	}
	return out, nil
}

// GetReviewSummaryInput represents a summary lookup request.
type GetReviewSummaryInput struct {
	PlaceID  string `path:"placeID" doc:"Place identifier"`
	ReviewID string `path:"reviewID" doc:"Review identifier"`
}

// GetReviewSummaryOutput represents a summary lookup response.
type GetReviewSummaryOutput struct {
	Body models.ReviewSummary
}

// GetReviewSummary returns the summary row for a review.
func (h *PlaceHandler) GetReviewSummary(ctx context.Context, input *GetReviewSummaryInput) (*GetReviewSummaryOutput, error) {
	summary, err := h.summary.GetByReviewID(ctx, input.ReviewID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get summary: " + err.Error())
	}
	if summary == nil || summary.PlaceID != input.PlaceID {
		return nil, huma.Error404NotFound("summary not found")
	}
	return &GetReviewSummaryOutput{Body: *summary}, nil
}
