// Package summarizer wraps the generative backends that enrich reviews with
// structured summaries. Two backend variants exist: Cloud (hosted, handles
// concurrent requests) and Local (on-prem, strictly sequential). The Client
// selects between them and owns the parse/retry/fallback policy.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nineylabs/placefeed/internal/config"
)

// Backend is the capability surface shared by both variants. GenerateBatch
// has all-settled semantics: a failed prompt yields an empty string in its
// slot, never an error for the whole batch, and results preserve input order.
type Backend interface {
	Name() string
	// Ping is the liveness probe used for initial backend selection.
	Ping(ctx context.Context) error
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateBatch(ctx context.Context, prompts []string, onProgress func(done, total int)) []string
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format,omitempty"`
	Options generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	NumCtx int `json:"num_ctx,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// doGenerate issues one /api/generate call against a backend endpoint.
func doGenerate(ctx context.Context, client *http.Client, cfg config.BackendConfig, contextSize int, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Format:  "json",
		Options: generateOptions{NumCtx: contextSize},
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(cfg.URL, "/")+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Credential)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("backend returned %d: %s", resp.StatusCode, snippet)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding backend response: %w", err)
	}
	return out.Response, nil
}

// doPing checks the backend root answers at all.
func doPing(ctx context.Context, client *http.Client, cfg config.BackendConfig) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return err
	}
	if cfg.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Credential)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	return nil
}
