package summarizer

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nineylabs/placefeed/internal/config"
)

// LocalBackend talks to an on-prem model server. It can only serve one
// request at a time, so batches run as a strict sequential loop; callers
// must not assume parallelism.
type LocalBackend struct {
	cfg         config.BackendConfig
	contextSize int
	client      *http.Client
	logger      *slog.Logger
}

func NewLocalBackend(cfg config.BackendConfig, contextSize int, logger *slog.Logger) *LocalBackend {
	return &LocalBackend{
		cfg:         cfg,
		contextSize: contextSize,
		client:      &http.Client{},
		logger:      logger.With("backend", "local"),
	}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Ping(ctx context.Context) error {
	return doPing(ctx, b.client, b.cfg)
}

func (b *LocalBackend) Generate(ctx context.Context, prompt string) (string, error) {
	return doGenerate(ctx, b.client, b.cfg, b.contextSize, prompt)
}

func (b *LocalBackend) GenerateBatch(ctx context.Context, prompts []string, onProgress func(done, total int)) []string {
	results := make([]string, len(prompts))
	for i, prompt := range prompts {
		if ctx.Err() != nil {
			break
		}
		text, err := b.Generate(ctx, prompt)
		if err != nil {
			b.logger.Warn("generate failed", "slot", i, "error", err)
		} else {
			results[i] = text
		}
		if onProgress != nil {
			onProgress(i+1, len(prompts))
		}
	}
	return results
}
