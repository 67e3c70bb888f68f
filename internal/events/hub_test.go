package events

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nineylabs/placefeed/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_PublishReachesPlaceSubscribers(t *testing.T) {
	hub := NewHub(testLogger())

	sub, cancel := hub.Subscribe("place-1")
	defer cancel()
	other, otherCancel := hub.Subscribe("place-2")
	defer otherCancel()

	hub.Publish(models.Event{PlaceID: "place-1", Name: models.EventStarted})

	select {
	case ev := <-sub.C:
		if ev.Name != models.EventStarted {
			t.Errorf("event name = %s, want started", ev.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	select {
	case ev := <-other.C:
		t.Errorf("place-2 subscriber received %s for place-1", ev.Name)
	default:
	}
}

func TestHub_PublishOrderPreserved(t *testing.T) {
	hub := NewHub(testLogger())
	sub, cancel := hub.Subscribe("place-1")
	defer cancel()

	names := []string{models.EventStarted, models.EventCrawlProgress, models.EventCompleted}
	for _, n := range names {
		hub.Publish(models.Event{PlaceID: "place-1", Name: n})
	}

	for i, want := range names {
		select {
		case ev := <-sub.C:
			if ev.Name != want {
				t.Errorf("event %d = %s, want %s", i, ev.Name, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub(testLogger())
	sub, cancel := hub.Subscribe("place-1")

	cancel()
	cancel() // safe to call twice

	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed after cancel")
	}
	if n := hub.SubscriberCount("place-1"); n != 0 {
		t.Errorf("SubscriberCount = %d, want 0", n)
	}

	// Publishing to a place with no subscribers must not panic.
	hub.Publish(models.Event{PlaceID: "place-1", Name: models.EventCompleted})
}

func TestHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub(testLogger())
	_, cancel := hub.Subscribe("place-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish(models.Event{PlaceID: "place-1", Name: models.EventCrawlProgress})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
