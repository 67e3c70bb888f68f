package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nineylabs/placefeed/internal/models"
)

const fallbackSummaryRunes = 120

// Client selects between the cloud and local backends and owns the
// parse/retry/fallback policy. A cloud failure during actual use marks cloud
// unavailable for the rest of the session; the probe is not retried.
type Client struct {
	cloud  Backend
	local  Backend
	logger *slog.Logger

	mu               sync.Mutex
	active           Backend
	cloudUnavailable bool
}

func NewClient(cloud, local Backend, logger *slog.Logger) *Client {
	return &Client{
		cloud:  cloud,
		local:  local,
		logger: logger.With("component", "summarizer"),
	}
}

// EnsureReady probes the backends and picks the active one: cloud when
// configured and alive, local otherwise.
func (c *Client) EnsureReady(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil
	}

	if c.cloud != nil && !c.cloudUnavailable {
		if err := c.cloud.Ping(ctx); err == nil {
			c.active = c.cloud
			c.logger.Info("using cloud backend")
			return nil
		} else {
			c.logger.Warn("cloud backend probe failed", "error", err)
			c.cloudUnavailable = true
		}
	}

	if c.local == nil {
		return fmt.Errorf("no generative backend available")
	}
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("local backend probe failed: %w", err)
	}
	c.active = c.local
	c.logger.Info("using local backend")
	return nil
}

func (c *Client) activeBackend() Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// markCloudUnavailable demotes to local after a runtime cloud failure.
func (c *Client) markCloudUnavailable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cloudUnavailable {
		return
	}
	c.cloudUnavailable = true
	if c.active == c.cloud {
		c.active = c.local
		c.logger.Warn("cloud backend failed mid-session, falling back to local")
	}
}

// GenerateSingle runs one prompt on the active backend.
func (c *Client) GenerateSingle(ctx context.Context, prompt string) (string, error) {
	backend := c.activeBackend()
	if backend == nil {
		return "", fmt.Errorf("backend not ready, call EnsureReady first")
	}
	text, err := backend.Generate(ctx, prompt)
	if err != nil && backend == c.cloud && c.local != nil {
		c.markCloudUnavailable()
		return c.local.Generate(ctx, prompt)
	}
	return text, err
}

// SummarizeBatch produces one payload per review text, in input order. Every
// slot gets a payload: parse failures walk the retry ladder and bottom out
// at a deterministic fallback derived from the text itself.
func (c *Client) SummarizeBatch(ctx context.Context, texts []string, onProgress func(done, total int)) ([]*models.SummaryPayload, error) {
	if err := c.EnsureReady(ctx); err != nil {
		// No backend at all still yields payloads, via the fallback.
		c.logger.Warn("no backend ready, using fallback summaries", "error", err)
		out := make([]*models.SummaryPayload, len(texts))
		for i, text := range texts {
			out[i] = fallbackPayload(text)
		}
		return out, nil
	}

	prompts := make([]string, len(texts))
	for i, text := range texts {
		prompts[i] = buildPrompt(text)
	}

	backend := c.activeBackend()
	raw := backend.GenerateBatch(ctx, prompts, onProgress)

	// A batch of all-empty results on cloud means the backend died mid-run;
	// re-issue against local before parsing.
	if backend == c.cloud && allEmpty(raw) && len(raw) > 0 && c.local != nil {
		c.markCloudUnavailable()
		backend = c.local
		raw = backend.GenerateBatch(ctx, prompts, onProgress)
	}

	out := make([]*models.SummaryPayload, len(texts))
	for i := range texts {
		out[i] = c.resolve(ctx, backend, prompts[i], texts[i], raw[i])
	}
	return out, nil
}

// resolve applies the per-item retry ladder: parse the batch result, retry
// once on the active backend, retry once on local if cloud was active, and
// finally substitute the deterministic fallback.
func (c *Client) resolve(ctx context.Context, backend Backend, prompt, text, raw string) *models.SummaryPayload {
	if raw != "" {
		if payload, err := parsePayload(raw); err == nil {
			return payload
		}
	}

	if retried, err := backend.Generate(ctx, prompt); err == nil {
		if payload, perr := parsePayload(retried); perr == nil {
			return payload
		}
	}

	if backend == c.cloud && c.local != nil {
		if retried, err := c.local.Generate(ctx, prompt); err == nil {
			if payload, perr := parsePayload(retried); perr == nil {
				return payload
			}
		}
	}

	c.logger.Warn("retry ladder exhausted, using fallback summary")
	return fallbackPayload(text)
}

// fallbackPayload derives a summary from the raw text so no review is ever
// left without a payload.
func fallbackPayload(text string) *models.SummaryPayload {
	summary := strings.TrimSpace(text)
	if runes := []rune(summary); len(runes) > fallbackSummaryRunes {
		summary = string(runes[:fallbackSummaryRunes])
	}
	return &models.SummaryPayload{
		Summary:   summary,
		Sentiment: "unknown",
		Fallback:  true,
	}
}

func buildPrompt(text string) string {
	return `Summarize the following restaurant review. Respond with a single JSON object, no prose:
{"summary": "<one or two sentences>", "sentiment": "<positive|negative|neutral|mixed>", "keywords": ["<up to 5 keywords>"]}

Review:
` + text
}

func allEmpty(results []string) bool {
	for _, r := range results {
		if r != "" {
			return false
		}
	}
	return true
}
