// Package service contains the business logic layer: the orchestrator that
// runs crawl and summarization jobs end to end.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nineylabs/placefeed/internal/config"
	"github.com/nineylabs/placefeed/internal/crawler"
	"github.com/nineylabs/placefeed/internal/fingerprint"
	"github.com/nineylabs/placefeed/internal/jobs"
	"github.com/nineylabs/placefeed/internal/logging"
	"github.com/nineylabs/placefeed/internal/models"
	"github.com/nineylabs/placefeed/internal/repository"
	"github.com/nineylabs/placefeed/internal/storage"
	"github.com/nineylabs/placefeed/internal/summarizer"
)

const maxSummaryRetries = 3

// extractor runs one extraction session. Satisfied by *crawler.Agent.
type extractor interface {
	Run(ctx context.Context, url string, cancelled func() bool, onProgress crawler.ProgressFunc) (*crawler.Result, error)
}

// attachmentFetcher downloads record media. Satisfied by *crawler.Fetcher.
type attachmentFetcher interface {
	DownloadAll(ctx context.Context, urls []string, bucketKey string) []string
}

// batchSummarizer is the slice of summarizer.Client the sweep needs.
type batchSummarizer interface {
	SummarizeBatch(ctx context.Context, texts []string, onProgress func(done, total int)) ([]*models.SummaryPayload, error)
}

// Orchestrator composes the registry, agent, fetcher and summarizer into
// complete background jobs.
type Orchestrator struct {
	registry   *jobs.Registry
	agent      extractor
	fetcher    attachmentFetcher
	archive    *storage.Archive
	repos      *repository.Repositories
	summarizer batchSummarizer
	cfg        *config.Config
	logger     *slog.Logger
}

func NewOrchestrator(
	registry *jobs.Registry,
	agent *crawler.Agent,
	fetcher *crawler.Fetcher,
	archive *storage.Archive,
	repos *repository.Repositories,
	client *summarizer.Client,
	cfg *config.Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		agent:      agent,
		fetcher:    fetcher,
		archive:    archive,
		repos:      repos,
		summarizer: client,
		cfg:        cfg,
		logger:     logger.With("component", "orchestrator"),
	}
}

// StartCrawl creates a crawl job for the place and runs it in the
// background. When summarize is set, a summarization sweep is chained after
// a successful crawl.
func (o *Orchestrator) StartCrawl(ctx context.Context, placeID, url string, summarize bool) (string, error) {
	if err := o.ensurePlace(ctx, placeID, url); err != nil {
		return "", err
	}

	metadata := map[string]string{"url": url}
	if summarize {
		metadata["summarize"] = "true"
	}

	handle, err := o.registry.Start(ctx, placeID, models.JobKindCrawl, metadata)
	if err != nil {
		return "", err
	}

	go o.runCrawl(handle, placeID, url, summarize)
	return handle.ID(), nil
}

// StartSummarize creates a summarization sweep job for the place's pending
// and retryable failed summaries.
func (o *Orchestrator) StartSummarize(ctx context.Context, placeID string) (string, error) {
	handle, err := o.registry.Start(ctx, placeID, models.JobKindSummarize, nil)
	if err != nil {
		return "", err
	}

	go o.runSweep(handle, placeID)
	return handle.ID(), nil
}

func (o *Orchestrator) runCrawl(handle *jobs.Handle, placeID, url string, summarize bool) {
	// The job outlives the request that started it.
	ctx := logging.WithPlaceID(logging.WithJobID(context.Background(), handle.ID()), placeID)
	log := logging.FromContext(ctx, o.logger)

	if err := handle.Activate(ctx); err != nil {
		log.Error("activating crawl job", "error", err)
		return
	}

	result, err := o.agent.Run(ctx, url, handle.Cancelled, func(current, total int) {
		handle.ReportProgress(ctx, current, total, models.EventCrawlProgress)
	})
	if err != nil {
		log.Error("extraction failed", "error", err)
		if ferr := handle.Fail(ctx, err.Error()); ferr != nil {
			log.Error("recording job failure", "error", ferr)
		}
		return
	}

	stored := o.persistResult(ctx, log, placeID, result)

	if result.Partial {
		if err := handle.FinishCancelled(ctx); err != nil {
			log.Error("recording cancellation", "error", err)
		}
		return
	}

	if err := handle.Complete(ctx, map[string]any{
		"reviews":       stored,
		"menu_items":    len(result.MenuItems),
		"canonical_url": result.CanonicalURL,
	}); err != nil {
		log.Error("completing crawl job", "error", err)
		return
	}

	if summarize {
		if _, err := o.StartSummarize(ctx, placeID); err != nil {
			log.Error("chaining summarization sweep", "error", err)
		}
	}
}

// persistResult upserts every extracted record with its downloaded
// attachments. Records collected before a cancellation are persisted the
// same way; returns the number of stored rows.
func (o *Orchestrator) persistResult(ctx context.Context, log *slog.Logger, placeID string, result *crawler.Result) int {
	if result.CanonicalURL != "" {
		o.updatePlaceURL(ctx, log, placeID, result.CanonicalURL)
	}

	stored := 0
	for _, rec := range result.Records {
		fp := fingerprint.Review(placeID, rec.Author, rec.VisitDate, rec.VisitOrdinal, rec.Verified)
		bucketKey := fingerprint.BucketKey(fp)

		locals := o.fetcher.DownloadAll(ctx, rec.AttachmentURLs, bucketKey)
		if o.archive != nil {
			o.archive.ArchiveFiles(ctx, bucketKey, locals)
		}

		reviewID, err := o.repos.Review.UpsertByFingerprint(ctx, &models.Review{
			ID:             ulid.Make().String(),
			PlaceID:        placeID,
			Fingerprint:    fp,
			Author:         rec.Author,
			Text:           rec.Text,
			Tags:           rec.Tags,
			VisitDate:      rec.VisitDate,
			VisitOrdinal:   rec.VisitOrdinal,
			Verified:       rec.Verified,
			AttachmentURLs: rec.AttachmentURLs,
			Attachments:    locals,
		})
		if err != nil {
			log.Error("upserting review", "fingerprint", fp, "error", err)
			continue
		}
		stored++

		if err := o.repos.Summary.CreatePending(ctx, ulid.Make().String(), reviewID, placeID); err != nil {
			log.Error("creating pending summary", "review_id", reviewID, "error", err)
		}
	}

	for _, item := range result.MenuItems {
		err := o.repos.MenuItem.Upsert(ctx, &models.MenuItem{
			ID:          ulid.Make().String(),
			PlaceID:     placeID,
			Name:        item.Name,
			Price:       item.Price,
			Description: item.Description,
		})
		if err != nil {
			log.Error("upserting menu item", "name", item.Name, "error", err)
		}
	}

	log.Info("crawl persisted", "reviews", stored, "menu_items", len(result.MenuItems))
	return stored
}

func (o *Orchestrator) runSweep(handle *jobs.Handle, placeID string) {
	ctx := logging.WithPlaceID(logging.WithJobID(context.Background(), handle.ID()), placeID)
	log := logging.FromContext(ctx, o.logger)

	if err := handle.Activate(ctx); err != nil {
		log.Error("activating sweep job", "error", err)
		return
	}

	total, err := o.repos.Summary.CountRemaining(ctx, placeID, maxSummaryRetries)
	if err != nil {
		handle.Fail(ctx, fmt.Sprintf("counting remaining summaries: %v", err))
		return
	}
	if total == 0 {
		handle.Complete(ctx, map[string]any{"summaries": 0})
		return
	}

	// One pass over the rows eligible at sweep start. Failed chunks stay
	// eligible for the next sweep, not for re-claiming within this one.
	done := 0
	for done < total {
		if handle.Cancelled() {
			if err := handle.FinishCancelled(ctx); err != nil {
				log.Error("recording cancellation", "error", err)
			}
			return
		}

		batch, err := o.repos.Summary.ClaimBatch(ctx, placeID, maxSummaryRetries, o.cfg.Summarizer.ChunkSize)
		if err != nil {
			handle.Fail(ctx, fmt.Sprintf("claiming summary batch: %v", err))
			return
		}
		if len(batch) == 0 {
			break
		}

		// A summary row whose review is gone cannot be completed; fail it
		// rather than summarizing empty input.
		items := make([]*models.ReviewSummary, 0, len(batch))
		texts := make([]string, 0, len(batch))
		for _, item := range batch {
			review, err := o.repos.Review.GetByID(ctx, item.ReviewID)
			if err != nil || review == nil {
				log.Warn("review missing for summary", "review_id", item.ReviewID)
				if err := o.repos.Summary.Fail(ctx, item.ID, "review row missing"); err != nil {
					log.Error("marking summary failed", "id", item.ID, "error", err)
				}
				done++
				handle.ReportProgress(ctx, done, total, models.EventSummaryProgress)
				continue
			}
			items = append(items, item)
			texts = append(texts, review.Text)
		}
		if len(items) == 0 {
			continue
		}

		payloads, batchErr := o.dispatchChunk(ctx, texts)
		if batchErr != nil {
			// A chunk-level failure must not leave rows stuck in processing.
			log.Error("summary chunk failed", "error", batchErr)
			for _, item := range items {
				if err := o.repos.Summary.Fail(ctx, item.ID, batchErr.Error()); err != nil {
					log.Error("marking summary failed", "id", item.ID, "error", err)
				}
			}
			done += len(items)
			handle.ReportProgress(ctx, done, total, models.EventSummaryProgress)
			continue
		}

		for i, item := range items {
			if err := o.repos.Summary.Complete(ctx, item.ID, payloads[i]); err != nil {
				log.Error("storing summary", "id", item.ID, "error", err)
				o.repos.Summary.Fail(ctx, item.ID, err.Error())
			}
			done++
			handle.ReportProgress(ctx, done, total, models.EventSummaryProgress)
		}
	}

	if err := handle.Complete(ctx, map[string]any{"summaries": done}); err != nil {
		log.Error("completing sweep job", "error", err)
	}
}

// dispatchChunk shields the sweep from a panicking backend client; a panic
// becomes a chunk-level error.
func (o *Orchestrator) dispatchChunk(ctx context.Context, texts []string) (payloads []*models.SummaryPayload, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("summarizer panic: %v", r)
		}
	}()
	payloads, err = o.summarizer.SummarizeBatch(ctx, texts, nil)
	if err == nil && len(payloads) != len(texts) {
		err = fmt.Errorf("summarizer returned %d payloads for %d texts", len(payloads), len(texts))
	}
	return payloads, err
}

// ensurePlace creates the place row on first contact.
func (o *Orchestrator) ensurePlace(ctx context.Context, placeID, url string) error {
	place, err := o.repos.Place.GetByID(ctx, placeID)
	if err != nil {
		return fmt.Errorf("looking up place: %w", err)
	}
	if place != nil {
		return nil
	}
	now := time.Now().UTC()
	return o.repos.Place.Create(ctx, &models.Place{
		ID:        placeID,
		URL:       url,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (o *Orchestrator) updatePlaceURL(ctx context.Context, log *slog.Logger, placeID, canonical string) {
	place, err := o.repos.Place.GetByID(ctx, placeID)
	if err != nil || place == nil {
		return
	}
	if place.URL == canonical {
		return
	}
	place.URL = canonical
	place.UpdatedAt = time.Now().UTC()
	if err := o.repos.Place.Update(ctx, place); err != nil {
		log.Warn("updating canonical place url", "error", err)
	}
}
