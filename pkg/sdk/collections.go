package raggate

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Collection is a registered collection's config.
type Collection struct {
	Name           string    `json:"name"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	CreatedAt      time.Time `json:"created_at"`
	// DocumentCount is populated by GetCollection only.
	DocumentCount int `json:"document_count"`
}

// Document is an insert input. ID may be a string or a number; when nil the
// gateway generates one.
type Document struct {
	ID       any            `json:"id,omitempty"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResult is one ranked similarity hit.
type SearchResult struct {
	ID       any            `json:"id"`
	Score    float64        `json:"score"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchRequest tunes a similarity search. TopK wins over Limit when both
// are set.
type SearchRequest struct {
	Query          string  `json:"query"`
	TopK           int     `json:"top_k,omitempty"`
	Limit          int     `json:"limit,omitempty"`
	ScoreThreshold float64 `json:"score_threshold,omitempty"`
}

// CreateCollection registers a collection bound to an embedding model.
// Dimension 0 lets the gateway probe it from the model.
func (c *Client) CreateCollection(
	ctx context.Context, name, embeddingModel string, dimension int,
) (Collection, error) {
	body := map[string]any{
		"name":            name,
		"embedding_model": embeddingModel,
	}
	if dimension > 0 {
		body["dimension"] = dimension
	}

	var out Collection
	if err := c.call(ctx, http.MethodPost, "/collections", body, &out); err != nil {
		return Collection{}, err
	}
	return out, nil
}

// GetCollection returns a collection's config with its live document count.
func (c *Client) GetCollection(ctx context.Context, name string) (Collection, error) {
	var out Collection
	if err := c.call(ctx, http.MethodGet, "/collections/"+url.PathEscape(name), nil, &out); err != nil {
		return Collection{}, err
	}
	return out, nil
}

// ListCollections returns every registered collection.
func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	var out struct {
		Collections []Collection `json:"collections"`
	}
	if err := c.call(ctx, http.MethodGet, "/collections", nil, &out); err != nil {
		return nil, err
	}
	return out.Collections, nil
}

// DeleteCollection drops a collection and its registration.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	return c.call(ctx, http.MethodDelete, "/collections/"+url.PathEscape(name), nil, nil)
}

// InsertDocuments embeds and stores documents, returning the stored ids in
// input order.
func (c *Client) InsertDocuments(ctx context.Context, collection string, docs []Document) ([]any, error) {
	var out struct {
		IDs []any `json:"ids"`
	}
	path := "/collections/" + url.PathEscape(collection) + "/documents"
	if err := c.call(ctx, http.MethodPost, path, map[string]any{"documents": docs}, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

// DeleteDocuments removes documents by id.
func (c *Client) DeleteDocuments(ctx context.Context, collection string, ids []any) error {
	path := "/collections/" + url.PathEscape(collection) + "/documents"
	return c.call(ctx, http.MethodDelete, path, map[string]any{"ids": ids}, nil)
}

// Search runs a similarity search over a collection.
func (c *Client) Search(ctx context.Context, collection string, req SearchRequest) ([]SearchResult, error) {
	var out struct {
		Results []SearchResult `json:"results"`
	}
	path := "/collections/" + url.PathEscape(collection) + "/search"
	if err := c.call(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}
