package crawler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nineylabs/placefeed/internal/config"
)

// fakeSession serves a fixed sequence of page snapshots; each ClickLoadMore
// advances to the next one.
type fakeSession struct {
	stages     []string
	stage      int
	clicks     int
	navErr     error
	clickErr   error
	affordance bool
}

func (f *fakeSession) Navigate(ctx context.Context, url string) (string, error) {
	if f.navErr != nil {
		return "", f.navErr
	}
	return "https://canonical.test/place/123", nil
}

func (f *fakeSession) WaitForContent(ctx context.Context) error { return nil }

func (f *fakeSession) ClickLoadMore(ctx context.Context) (bool, error) {
	if f.clickErr != nil {
		return false, f.clickErr
	}
	if !f.affordance {
		return false, nil
	}
	f.clicks++
	if f.stage < len(f.stages)-1 {
		f.stage++
	}
	return true, nil
}

func (f *fakeSession) HTML(ctx context.Context) (string, error) {
	return f.stages[f.stage], nil
}

func (f *fakeSession) Close() {}

func testAgent() *Agent {
	return &Agent{
		cfg: config.CrawlerConfig{
			NavigationTimeout: time.Second,
			StepTimeout:       time.Millisecond,
			SessionTimeout:    5 * time.Second,
			MaxLoadMore:       10,
			StableWindow:      time.Millisecond,
			MaxStepErrors:     3,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func never() bool { return false }

func TestAgent_FullExtraction(t *testing.T) {
	// 23 entries visible, one reveal press surfaces 17 more, then the
	// trailing key stabilizes.
	sess := &fakeSession{
		stages:     []string{feedHTML(23, 40), feedHTML(40, 40)},
		affordance: true,
	}
	agent := testAgent()

	var lastCurrent, lastTotal int
	result, err := agent.run(context.Background(), sess, "https://short.test/abc", never, func(current, total int) {
		lastCurrent, lastTotal = current, total
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if result.CanonicalURL != "https://canonical.test/place/123" {
		t.Errorf("CanonicalURL = %q", result.CanonicalURL)
	}
	if len(result.Records) != 40 {
		t.Errorf("extracted %d records, want 40", len(result.Records))
	}
	if result.Partial {
		t.Error("Partial should be false for a completed session")
	}
	if lastCurrent != 40 || lastTotal != 40 {
		t.Errorf("final progress = (%d,%d), want (40,40)", lastCurrent, lastTotal)
	}

	// Records carry distinct identities for fingerprinting.
	seen := map[string]bool{}
	for _, r := range result.Records {
		key := r.Author + "\x1f" + r.VisitDate + "\x1f" + r.VisitOrdinal
		if seen[key] {
			t.Fatalf("duplicate identity %q in extracted records", key)
		}
		seen[key] = true
	}
}

func TestAgent_StopsWhenAffordanceAbsent(t *testing.T) {
	sess := &fakeSession{stages: []string{feedHTML(5, 0)}, affordance: false}
	agent := testAgent()

	result, err := agent.run(context.Background(), sess, "u", never, func(int, int) {})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(result.Records) != 5 {
		t.Errorf("extracted %d records, want 5", len(result.Records))
	}
	if sess.clicks != 0 {
		t.Errorf("clicks = %d, want 0", sess.clicks)
	}
}

func TestAgent_NavigationFailureIsFatal(t *testing.T) {
	sess := &fakeSession{navErr: errors.New("dns failure")}
	agent := testAgent()

	_, err := agent.run(context.Background(), sess, "u", never, func(int, int) {})
	if !errors.Is(err, ErrSourceUnreachable) {
		t.Errorf("error = %v, want ErrSourceUnreachable", err)
	}
}

func TestAgent_TransientErrorBound(t *testing.T) {
	sess := &fakeSession{
		stages:     []string{feedHTML(3, 0)},
		clickErr:   errors.New("element detached"),
		affordance: true,
	}
	agent := testAgent()

	_, err := agent.run(context.Background(), sess, "u", never, func(int, int) {})
	if !errors.Is(err, ErrSourceUnreachable) {
		t.Errorf("error = %v, want ErrSourceUnreachable after repeated step failures", err)
	}
}

func TestAgent_CancellationReturnsPartial(t *testing.T) {
	sess := &fakeSession{
		stages:     []string{feedHTML(10, 50), feedHTML(20, 50), feedHTML(30, 50)},
		affordance: true,
	}
	agent := testAgent()

	calls := 0
	cancelled := func() bool {
		calls++
		return calls > 2 // request cancellation mid-loop
	}

	result, err := agent.run(context.Background(), sess, "u", cancelled, func(int, int) {})
	if err != nil {
		t.Fatalf("run() error = %v, cancellation must not be an error", err)
	}
	if !result.Partial {
		t.Error("Partial should be true after cancellation")
	}
	if len(result.Records) == 0 {
		t.Error("records collected before cancellation should be preserved")
	}
}
