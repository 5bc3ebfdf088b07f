// Package qdrant is a thin adapter over the Qdrant HTTP API. Only the fields
// the gateway reads are modeled; everything else in the backend's responses
// is ignored or passed through untouched.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Config holds the Qdrant connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client talks to a Qdrant instance.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a Qdrant client.
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

// Point is one stored vector with its payload.
type Point struct {
	ID      any            `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint is one similarity search hit.
type ScoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// CollectionInfo carries the subset of collection details the gateway reads.
type CollectionInfo struct {
	PointsCount int `json:"points_count"`
}

// HealthCheck probes the readiness endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/readyz", nil, nil)
}

// CreateCollection creates a collection with cosine distance vectors of the
// given dimension.
func (c *Client) CreateCollection(ctx context.Context, name string, dimension int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return c.call(ctx, http.MethodPut, "/collections/"+url.PathEscape(name), body, nil)
}

// DeleteCollection drops a collection.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	return c.call(ctx, http.MethodDelete, "/collections/"+url.PathEscape(name), nil, nil)
}

// CollectionExists probes the collection details endpoint and treats a 404 as
// absence rather than an error.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	err := c.call(ctx, http.MethodGet, "/collections/"+url.PathEscape(name), nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetCollection returns collection details (point count).
func (c *Client) GetCollection(ctx context.Context, name string) (CollectionInfo, error) {
	var out struct {
		Result CollectionInfo `json:"result"`
	}
	if err := c.call(ctx, http.MethodGet, "/collections/"+url.PathEscape(name), nil, &out); err != nil {
		return CollectionInfo{}, err
	}
	return out.Result, nil
}

// UpsertPoints writes points into a collection, waiting for the operation to
// be applied.
func (c *Client) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	body := map[string]any{"points": points}
	path := "/collections/" + url.PathEscape(collection) + "/points?wait=true"
	return c.call(ctx, http.MethodPut, path, body, nil)
}

// Search runs a similarity search. scoreThreshold <= 0 disables the cutoff.
func (c *Client) Search(
	ctx context.Context, collection string,
	vector []float32, limit int, scoreThreshold float64,
) ([]ScoredPoint, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if scoreThreshold > 0 {
		body["score_threshold"] = scoreThreshold
	}

	var out struct {
		Result []ScoredPoint `json:"result"`
	}
	path := "/collections/" + url.PathEscape(collection) + "/points/search"
	if err := c.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Scroll pages through stored points. offset is the opaque next-page token
// returned by the previous call (nil for the first page).
func (c *Client) Scroll(
	ctx context.Context, collection string, limit int, offset any,
) ([]Point, any, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	if offset != nil {
		body["offset"] = offset
	}

	var out struct {
		Result struct {
			Points         []Point `json:"points"`
			NextPageOffset any     `json:"next_page_offset"`
		} `json:"result"`
	}
	path := "/collections/" + url.PathEscape(collection) + "/points/scroll"
	if err := c.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, nil, err
	}
	return out.Result.Points, out.Result.NextPageOffset, nil
}

// DeletePoints removes points by id, waiting for the operation to be applied.
func (c *Client) DeletePoints(ctx context.Context, collection string, ids []any) error {
	body := map[string]any{"points": ids}
	path := "/collections/" + url.PathEscape(collection) + "/points/delete?wait=true"
	return c.call(ctx, http.MethodPost, path, body, nil)
}

// call issues one request and decodes the response into out (if non-nil).
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return nil
}
