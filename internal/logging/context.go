package logging

import (
	"context"
	"log/slog"
)

// ContextKey is a typed key for context values used in logging.
type ContextKey string

const (
	// JobIDKey carries the job id of the background job a log line belongs to.
	JobIDKey ContextKey = "log_job_id"
	// PlaceIDKey carries the place id the current operation is acting on.
	PlaceIDKey ContextKey = "log_place_id"
)

// WithJobID returns a context carrying the given job id for logging.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

// WithPlaceID returns a context carrying the given place id for logging.
func WithPlaceID(ctx context.Context, placeID string) context.Context {
	return context.WithValue(ctx, PlaceIDKey, placeID)
}

// GetJobID returns the job id stored in the context, or "" if absent.
func GetJobID(ctx context.Context) string {
	if v, ok := ctx.Value(JobIDKey).(string); ok {
		return v
	}
	return ""
}

// GetPlaceID returns the place id stored in the context, or "" if absent.
func GetPlaceID(ctx context.Context) string {
	if v, ok := ctx.Value(PlaceIDKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns a logger enriched with job/place ids from the context.
// Returns the logger unchanged when the context carries neither.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}
	if jobID := GetJobID(ctx); jobID != "" {
		logger = logger.With("job_id", jobID)
	}
	if placeID := GetPlaceID(ctx); placeID != "" {
		logger = logger.With("place_id", placeID)
	}
	return logger
}
