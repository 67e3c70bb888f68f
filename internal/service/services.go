package service

import (
	"context"
	"log/slog"

	"github.com/nineylabs/placefeed/internal/browser"
	"github.com/nineylabs/placefeed/internal/config"
	"github.com/nineylabs/placefeed/internal/crawler"
	"github.com/nineylabs/placefeed/internal/events"
	"github.com/nineylabs/placefeed/internal/jobs"
	"github.com/nineylabs/placefeed/internal/repository"
	"github.com/nineylabs/placefeed/internal/storage"
	"github.com/nineylabs/placefeed/internal/summarizer"
)

// Services wires the full pipeline together for the HTTP layer.
type Services struct {
	Registry     *jobs.Registry
	Hub          *events.Hub
	Orchestrator *Orchestrator
	Pool         *browser.Pool
	Repos        *repository.Repositories
}

// New builds every service from configuration and repositories.
func New(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	hub := events.NewHub(logger)
	registry := jobs.NewRegistry(repos.Job, hub, logger, cfg.JobRetireTimeout)

	pool := browser.NewPool(cfg, logger)
	agent := crawler.NewAgent(pool, cfg.Crawler, logger)
	fetcher := crawler.NewFetcher(cfg.AttachmentDir, cfg.AttachmentConcurrency, cfg.AttachmentMaxBytes, cfg.AttachmentTimeout, logger)

	archive, err := storage.NewArchive(cfg, logger)
	if err != nil {
		return nil, err
	}

	var cloud summarizer.Backend
	if cfg.Summarizer.Cloud.URL != "" {
		cloud = summarizer.NewCloudBackend(cfg.Summarizer.Cloud, cfg.Summarizer.ContextSize, cfg.Summarizer.Parallelism, logger)
	}
	var local summarizer.Backend
	if cfg.Summarizer.Local.URL != "" {
		local = summarizer.NewLocalBackend(cfg.Summarizer.Local, cfg.Summarizer.ContextSize, logger)
	}
	client := summarizer.NewClient(cloud, local, logger)

	orchestrator := NewOrchestrator(registry, agent, fetcher, archive, repos, client, cfg, logger)

	return &Services{
		Registry:     registry,
		Hub:          hub,
		Orchestrator: orchestrator,
		Pool:         pool,
		Repos:        repos,
	}, nil
}

// RecoverStaleJobs fails active durable jobs older than the configured
// cutoff and frees summary rows a crashed sweep left claimed. Runs once at
// boot before the server accepts work.
func (s *Services) RecoverStaleJobs(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	n, err := s.Repos.Job.MarkStaleActiveFailed(ctx, cfg.StaleJobCutoff)
	if err != nil {
		logger.Error("recovering stale jobs", "error", err)
	} else if n > 0 {
		logger.Warn("failed stale jobs from previous run", "count", n)
	}

	reset, err := s.Repos.Summary.ResetProcessing(ctx)
	if err != nil {
		logger.Error("resetting stranded summaries", "error", err)
	} else if reset > 0 {
		logger.Warn("returned stranded summaries to pending", "count", reset)
	}
}
