// Package ollama is a thin adapter over the Ollama HTTP API: model lifecycle,
// embeddings, generation, and chat. Generation and chat come in two shapes —
// a fully buffered JSON object, or a live NDJSON byte stream the caller owns
// and must close. Buffered responses are kept as open maps; the gateway only
// reads the fields it needs and forwards the rest untouched.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/raggate/internal/domain"
)

// Config holds the Ollama connection settings.
type Config struct {
	BaseURL string
	// Timeout of 0 means no client timeout; blocking model pulls can run
	// for however long a download takes.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client talks to an Ollama server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates an Ollama client.
func NewClient(cfg *Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// ModelSummary is one entry from the local model list.
type ModelSummary struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Options are sampling parameters forwarded to the model runner.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

// GenerateRequest is a text completion call.
type GenerateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	System  string   `json:"system,omitempty"`
	Stream  bool     `json:"stream"`
	Options *Options `json:"options,omitempty"`
}

// ChatRequest is a chat completion call.
type ChatRequest struct {
	Model    string               `json:"model"`
	Messages []domain.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
	Options  *Options             `json:"options,omitempty"`
}

// HealthCheck probes the version endpoint to confirm Ollama is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/api/version", nil, nil)
}

// ListModels returns the models available locally.
func (c *Client) ListModels(ctx context.Context) ([]ModelSummary, error) {
	var out struct {
		Models []ModelSummary `json:"models"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/tags", nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// ShowModel fetches model details. A failure here is how callers detect that
// a model is absent locally.
func (c *Client) ShowModel(ctx context.Context, name string) (map[string]any, error) {
	var out map[string]any
	body := map[string]any{"name": name}
	if err := c.call(ctx, http.MethodPost, "/api/show", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PullModel downloads a model, blocking until the pull completes.
func (c *Client) PullModel(ctx context.Context, name string) error {
	body := map[string]any{"name": name, "stream": false}
	var out struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/pull", body, &out); err != nil {
		return err
	}
	if out.Status != "success" {
		return fmt.Errorf("pull %q finished with status %q", name, out.Status)
	}
	return nil
}

// PullModelStream starts a pull and returns the NDJSON progress stream.
// The caller must close it.
func (c *Client) PullModelStream(ctx context.Context, name string) (io.ReadCloser, error) {
	body := map[string]any{"name": name, "stream": true}
	return c.stream(ctx, "/api/pull", body)
}

// CopyModel duplicates a model under a new name.
func (c *Client) CopyModel(ctx context.Context, source, destination string) error {
	body := map[string]any{"source": source, "destination": destination}
	return c.call(ctx, http.MethodPost, "/api/copy", body, nil)
}

// DeleteModel removes a local model.
func (c *Client) DeleteModel(ctx context.Context, name string) error {
	body := map[string]any{"name": name}
	return c.call(ctx, http.MethodDelete, "/api/delete", body, nil)
}

// Embed generates one embedding per input, order-preserving.
func (c *Client) Embed(ctx context.Context, model string, input []string) ([][]float32, error) {
	body := map[string]any{"model": model, "input": input}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/embed", body, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(input) {
		return nil, fmt.Errorf("embed returned %d vectors for %d inputs", len(out.Embeddings), len(input))
	}
	return out.Embeddings, nil
}

// Generate runs a buffered completion. req.Stream is forced off.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (map[string]any, error) {
	req.Stream = false
	var out map[string]any
	if err := c.call(ctx, http.MethodPost, "/api/generate", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateStream runs a streaming completion and returns the NDJSON stream.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest) (io.ReadCloser, error) {
	req.Stream = true
	return c.stream(ctx, "/api/generate", req)
}

// Chat runs a buffered chat completion. req.Stream is forced off.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (map[string]any, error) {
	req.Stream = false
	var out map[string]any
	if err := c.call(ctx, http.MethodPost, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ChatStream runs a streaming chat completion and returns the NDJSON stream.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	req.Stream = true
	return c.stream(ctx, "/api/chat", req)
}

// call issues one buffered request and decodes the response into out.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode ollama response: %w", err)
		}
	}
	return nil
}

// stream issues one request and hands the body back as a live stream.
func (c *Client) stream(ctx context.Context, path string, body any) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// do sends the request and converts non-2xx responses into *APIError.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		return nil, newAPIError(resp)
	}
	return resp, nil
}
