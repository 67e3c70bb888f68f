package summarizer

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/nineylabs/placefeed/internal/config"
)

// CloudBackend talks to the hosted service. Batches are dispatched in
// fixed-size concurrent groups so a large sweep cannot flood the endpoint.
type CloudBackend struct {
	cfg         config.BackendConfig
	contextSize int
	parallelism int
	client      *http.Client
	logger      *slog.Logger
}

func NewCloudBackend(cfg config.BackendConfig, contextSize, parallelism int, logger *slog.Logger) *CloudBackend {
	if parallelism < 1 {
		parallelism = 1
	}
	return &CloudBackend{
		cfg:         cfg,
		contextSize: contextSize,
		parallelism: parallelism,
		client:      &http.Client{},
		logger:      logger.With("backend", "cloud"),
	}
}

func (b *CloudBackend) Name() string { return "cloud" }

func (b *CloudBackend) Ping(ctx context.Context) error {
	return doPing(ctx, b.client, b.cfg)
}

func (b *CloudBackend) Generate(ctx context.Context, prompt string) (string, error) {
	return doGenerate(ctx, b.client, b.cfg, b.contextSize, prompt)
}

// GenerateBatch fans each group of b.parallelism prompts out concurrently
// and waits for the whole group before starting the next. A failed request
// leaves an empty string in its slot.
func (b *CloudBackend) GenerateBatch(ctx context.Context, prompts []string, onProgress func(done, total int)) []string {
	results := make([]string, len(prompts))
	total := len(prompts)
	done := 0

	for start := 0; start < total; start += b.parallelism {
		end := start + b.parallelism
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				text, err := b.Generate(ctx, prompts[i])
				if err != nil {
					b.logger.Warn("generate failed", "slot", i, "error", err)
					return
				}
				results[i] = text
			}(i)
		}
		wg.Wait()

		done = end
		if onProgress != nil {
			onProgress(done, total)
		}
	}
	return results
}
