package models

// Event names broadcast on the per-place event channel. Subscribers receive
// these as SSE event types; a reconnecting subscriber first receives one
// EventCurrentState per non-terminal job, then live events in publish order.
const (
	EventStarted         = "started"
	EventCrawlProgress   = "crawl_progress"
	EventSummaryProgress = "summary_progress"
	EventCompleted       = "completed"
	EventFailed          = "failed"
	EventCancelled       = "cancelled"
	EventInterrupted     = "interrupted"
	EventCurrentState    = "current_state"
)

// Event is a single message published for a place.
type Event struct {
	PlaceID string `json:"place_id"`
	Name    string `json:"name"`
	Payload any    `json:"payload"`
}

// JobEventPayload is the payload carried by lifecycle and progress events.
type JobEventPayload struct {
	JobID        string            `json:"job_id"`
	Kind         JobKind           `json:"kind"`
	Status       JobStatus         `json:"status"`
	Progress     Progress          `json:"progress"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Result       map[string]any    `json:"result,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}
