// Package models defines the domain models for the application.
// A Place is the subject being tracked; Reviews are the content records
// extracted for it and ReviewSummaries hold the generative enrichment.
package models

import (
	"time"
)

// JobStatus represents the lifecycle status of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs are immutable.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobKind represents the type of background job.
type JobKind string

const (
	JobKindCrawl     JobKind = "crawl"
	JobKindSummarize JobKind = "summarize"
)

// Progress tracks how far a job has advanced.
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// NewProgress builds a Progress with the percentage derived from current/total.
func NewProgress(current, total int) Progress {
	p := Progress{Current: current, Total: total}
	if total > 0 {
		p.Percentage = float64(current) / float64(total) * 100
	}
	return p
}

// Job represents a tracked unit of background work for a place.
// At most one non-terminal Job exists per (PlaceID, Kind) pair.
type Job struct {
	ID           string            `json:"id"`
	PlaceID      string            `json:"place_id"`
	Kind         JobKind           `json:"kind"`
	Status       JobStatus         `json:"status"`
	Progress     Progress          `json:"progress"`
	EventName    string            `json:"event_name,omitempty"` // Last event broadcast for this job
	Metadata     map[string]string `json:"metadata,omitempty"`
	Result       map[string]any    `json:"result,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Place is the subject that owns jobs, reviews and menu items.
type Place struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`      // Short-link or canonical feed URL
	Category  string    `json:"category"` // e.g. "Korean restaurant"
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Review is a single extracted feedback entry for a place.
// Identity is the content fingerprint, never a source-supplied id; the same
// logical review extracted twice must upsert onto one row.
type Review struct {
	ID             string    `json:"id"`
	PlaceID        string    `json:"place_id"`
	Fingerprint    string    `json:"fingerprint"`
	Author         string    `json:"author"`
	Text           string    `json:"text"`
	Tags           []string  `json:"tags,omitempty"`            // Visit keywords ("waited right away", "on a date", ...)
	VisitDate      string    `json:"visit_date"`                // As displayed by the source, normalized
	VisitOrdinal   string    `json:"visit_ordinal"`             // e.g. "3rd visit"
	Verified       bool      `json:"verified"`                  // Receipt/payment verified visit
	AttachmentURLs []string  `json:"attachment_urls,omitempty"` // Raw media URLs from the source
	Attachments    []string  `json:"attachments,omitempty"`     // Local paths after download
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MenuItem is a sub-item of a place captured during extraction.
type MenuItem struct {
	ID          string    `json:"id"`
	PlaceID     string    `json:"place_id"`
	Name        string    `json:"name"`
	Price       string    `json:"price"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SummaryStatus represents the state of a review's generative summary.
type SummaryStatus string

const (
	SummaryStatusPending    SummaryStatus = "pending"
	SummaryStatusProcessing SummaryStatus = "processing"
	SummaryStatusCompleted  SummaryStatus = "completed"
	SummaryStatusFailed     SummaryStatus = "failed"
)

// SummaryPayload is the structured output of the generative backend for one review.
type SummaryPayload struct {
	Summary   string   `json:"summary"`
	Sentiment string   `json:"sentiment"` // "positive", "negative", "neutral", "unknown"
	Keywords  []string `json:"keywords,omitempty"`
	Fallback  bool     `json:"fallback,omitempty"` // True when derived without a backend
}

// ReviewSummary is the one-per-review enrichment row.
type ReviewSummary struct {
	ID           string          `json:"id"`
	ReviewID     string          `json:"review_id"`
	PlaceID      string          `json:"place_id"`
	Status       SummaryStatus   `json:"status"`
	Payload      *SummaryPayload `json:"payload,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RetryCount   int             `json:"retry_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
