package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nineylabs/placefeed/internal/events"
)

const heartbeatInterval = 15 * time.Second

// EventSource delivers per-place events to subscribers. Satisfied by
// *events.Hub.
type EventSource interface {
	Subscribe(placeID string) (*events.Subscription, func())
}

// EventsHandler streams per-place job events over SSE.
type EventsHandler struct {
	registry JobRegistry
	hub      EventSource
	logger   *slog.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(registry JobRegistry, hub EventSource, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		registry: registry,
		hub:      hub,
		logger:   logger,
	}
}

// Stream handles SSE streaming of place events.
// This is a raw HTTP handler (not Huma) to support SSE.
//
// On connect the client receives one current_state event per non-terminal
// job (interrupted for orphaned rows), then live events in publish order.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")
	if placeID == "" {
		http.Error(w, `{"error":"place ID required"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	// Disable the write deadline for long-running SSE connections.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	// Subscribe before the snapshot so no event published during replay is
	// lost. The buffered channel holds anything that arrives meanwhile.
	sub, cancel := h.hub.Subscribe(placeID)
	defer cancel()

	snapshot, err := h.registry.CurrentState(r.Context(), placeID)
	if err != nil {
		h.logger.Error("failed to load current state", "place_id", placeID, "error", err)
		sendSSEEvent(w, flusher, "error", map[string]any{"message": "failed to load current state"})
		return
	}
	for _, ev := range snapshot {
		sendSSEEvent(w, flusher, ev.Name, ev.Payload)
	}

	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeatTicker.C:
			sendSSEHeartbeat(w, flusher)

		case ev, open := <-sub.C:
			if !open {
				return
			}
			sendSSEEvent(w, flusher, ev.Name, ev.Payload)
		}
	}
}

// sendSSEEvent sends a Server-Sent Event.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

// sendSSEHeartbeat sends an SSE comment as a keepalive/heartbeat.
// SSE comments start with a colon and are ignored by the client EventSource API.
func sendSSEHeartbeat(w http.ResponseWriter, flusher http.Flusher) {
	_, _ = fmt.Fprintf(w, ": heartbeat\n\n")
	flusher.Flush()
}
