// Package crawler drives the stateful extraction session against the
// script-rendered review feed. One session walks
// Navigate -> WaitForContent -> IncrementalLoad -> Extract -> Finalize,
// polling the job's cancellation flag at every iteration boundary.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nineylabs/placefeed/internal/browser"
	"github.com/nineylabs/placefeed/internal/config"
)

// ErrSourceUnreachable classifies navigation failures. They are fatal to the
// job; nothing retries them within the session.
var ErrSourceUnreachable = errors.New("source unreachable")

// ProgressFunc receives (loadedCount, totalIfKnown) after each load step.
type ProgressFunc func(current, total int)

// Result is everything one session collected. Partial is set when the
// session stopped on a cancellation request rather than running to the end.
type Result struct {
	CanonicalURL string
	Records      []RawRecord
	MenuItems    []RawMenuItem
	Partial      bool
}

// session abstracts the page operations the state machine needs, so the
// loop logic is testable without Chromium.
type session interface {
	// Navigate loads the url, following short-link redirects, and returns
	// the canonical resource URL.
	Navigate(ctx context.Context, url string) (string, error)
	// WaitForContent blocks until the feed markup is rendered.
	WaitForContent(ctx context.Context) error
	// ClickLoadMore triggers the reveal-more affordance. It returns false
	// when the affordance is absent.
	ClickLoadMore(ctx context.Context) (bool, error)
	HTML(ctx context.Context) (string, error)
	Close()
}

// Agent runs extraction sessions using browsers from the pool.
type Agent struct {
	pool   *browser.Pool
	cfg    config.CrawlerConfig
	logger *slog.Logger
}

func NewAgent(pool *browser.Pool, cfg config.CrawlerConfig, logger *slog.Logger) *Agent {
	return &Agent{pool: pool, cfg: cfg, logger: logger.With("component", "crawler")}
}

// Run executes one full extraction session for the url. cancelled is polled
// at loop boundaries; when it reports true the agent returns what it has
// collected so far with Partial set, never an error.
func (a *Agent) Run(ctx context.Context, url string, cancelled func() bool, onProgress ProgressFunc) (*Result, error) {
	inst, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring browser: %w", err)
	}
	defer a.pool.Release(inst)

	sess, err := newRodSession(inst, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.SessionTimeout)
	defer cancel()

	return a.run(ctx, sess, url, cancelled, onProgress)
}

func (a *Agent) run(ctx context.Context, sess session, url string, cancelled func() bool, onProgress ProgressFunc) (*Result, error) {
	canonical, err := sess.Navigate(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	a.logger.Debug("navigated", "url", url, "canonical", canonical)

	if err := sess.WaitForContent(ctx); err != nil {
		return nil, fmt.Errorf("%w: content never rendered: %v", ErrSourceUnreachable, err)
	}

	result := &Result{CanonicalURL: canonical}

	doc, total, err := a.snapshot(ctx, sess)
	if err != nil {
		return nil, err
	}
	loaded := countRecords(doc)
	onProgress(loaded, total)

	// Load loop. The trailing-item key tells us whether a click actually
	// surfaced new entries; a fixed delay would race the renderer.
	lastKey := trailingKey(doc)
	stepErrors := 0
	stableUntil := time.Now().Add(a.cfg.StableWindow)

	for i := 0; i < a.cfg.MaxLoadMore; i++ {
		if cancelled() {
			result.Partial = true
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: session timed out: %v", ErrSourceUnreachable, err)
		}

		clicked, err := sess.ClickLoadMore(ctx)
		if err != nil {
			stepErrors++
			a.logger.Warn("load step failed", "attempt", stepErrors, "error", err)
			if stepErrors >= a.cfg.MaxStepErrors {
				return nil, fmt.Errorf("%w: %d consecutive load failures: %v", ErrSourceUnreachable, stepErrors, err)
			}
			continue
		}
		stepErrors = 0
		if !clicked {
			break
		}

		key, newDoc, waitErr := a.waitForGrowth(ctx, sess, lastKey)
		if waitErr != nil {
			stepErrors++
			a.logger.Warn("load step failed", "attempt", stepErrors, "error", waitErr)
			if stepErrors >= a.cfg.MaxStepErrors {
				return nil, fmt.Errorf("%w: %d consecutive load failures: %v", ErrSourceUnreachable, stepErrors, waitErr)
			}
			continue
		}

		if key == lastKey {
			if time.Now().After(stableUntil) {
				break
			}
		} else {
			lastKey = key
			stableUntil = time.Now().Add(a.cfg.StableWindow)
		}

		doc = newDoc
		if t := parseTotalCount(doc); t > 0 {
			total = t
		}
		loaded = countRecords(doc)
		onProgress(loaded, total)
	}

	// Final snapshot so records surfaced by the last click are included.
	if finalDoc, t, err := a.snapshot(ctx, sess); err == nil {
		doc = finalDoc
		if t > 0 {
			total = t
		}
	}

	result.Records = parseReviews(doc)
	result.MenuItems = parseMenuItems(doc)
	if cancelled() {
		result.Partial = true
	}

	if total == 0 {
		total = len(result.Records)
	}
	onProgress(len(result.Records), total)

	a.logger.Info("extraction finished",
		"records", len(result.Records), "menu_items", len(result.MenuItems), "partial", result.Partial)
	return result, nil
}

// waitForGrowth polls the page until the trailing-item key moves past
// prevKey or the per-step timeout elapses. Returning the unchanged key is
// not an error; the caller decides when stability means done.
func (a *Agent) waitForGrowth(ctx context.Context, sess session, prevKey string) (string, *goquery.Document, error) {
	deadline := time.Now().Add(a.cfg.StepTimeout)
	for {
		html, err := sess.HTML(ctx)
		if err != nil {
			return "", nil, err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return "", nil, err
		}
		key := trailingKey(doc)
		if key != prevKey || time.Now().After(deadline) {
			return key, doc, nil
		}
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (a *Agent) snapshot(ctx context.Context, sess session) (*goquery.Document, int, error) {
	html, err := sess.HTML(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading page: %v", ErrSourceUnreachable, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: parsing page: %v", ErrSourceUnreachable, err)
	}
	return doc, parseTotalCount(doc), nil
}

func countRecords(doc *goquery.Document) int {
	return selectAny(doc, reviewItemSelectors).Length()
}

// trailingKey identifies the last visible record so the load loop can tell
// whether a click surfaced anything new.
func trailingKey(doc *goquery.Document) string {
	items := selectAny(doc, reviewItemSelectors)
	n := items.Length()
	if n == 0 {
		return ""
	}
	last := items.Eq(n - 1)
	parts := []string{
		firstText(last, authorSelectors),
		firstText(last, visitDateSelectors),
		firstText(last, visitOrdinalSelectors),
	}
	return fmt.Sprintf("%d\x1f%s", n, strings.Join(parts, "\x1f"))
}
