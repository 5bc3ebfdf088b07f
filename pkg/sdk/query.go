package raggate

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
)

// ChatMessage is one turn in a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest drives the unified query endpoint. Collection switches on
// retrieval; without it the request is a plain chat completion.
type QueryRequest struct {
	Model          string        `json:"model"`
	Query          string        `json:"query,omitempty"`
	Prompt         string        `json:"prompt,omitempty"`
	Messages       []ChatMessage `json:"messages,omitempty"`
	Collection     string        `json:"collection,omitempty"`
	TopK           int           `json:"top_k,omitempty"`
	Limit          int           `json:"limit,omitempty"`
	ScoreThreshold float64       `json:"score_threshold,omitempty"`
	SystemPrompt   string        `json:"system_prompt,omitempty"`
	Temperature    *float64      `json:"temperature,omitempty"`
	TopP           *float64      `json:"top_p,omitempty"`
	MaxTokens      *int          `json:"max_tokens,omitempty"`

	// Stream is managed by the Query / QueryStream methods.
	Stream *bool `json:"stream,omitempty"`
}

// Query runs a buffered query. With a Collection set the response carries a
// merged "sources" array.
func (c *Client) Query(ctx context.Context, req QueryRequest) (map[string]any, error) {
	buffered := false
	req.Stream = &buffered

	var out map[string]any
	if err := c.call(ctx, http.MethodPost, "/query", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// QueryStream runs a streaming query, invoking fn once per NDJSON line as it
// arrives. The terminal sources line of a RAG query is decoded and returned
// instead of being passed to fn. A non-nil error from fn stops consumption.
func (c *Client) QueryStream(
	ctx context.Context, req QueryRequest, fn func(line []byte) error,
) ([]SearchResult, error) {
	streaming := true
	req.Stream = &streaming

	body, err := c.stream(ctx, http.MethodPost, "/query", req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	var sources []SearchResult
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var trailer struct {
			Sources []SearchResult `json:"sources"`
		}
		if json.Unmarshal(line, &trailer) == nil && trailer.Sources != nil {
			sources = trailer.Sources
			continue
		}

		if err := fn(append([]byte(nil), line...)); err != nil {
			return sources, err
		}
	}
	if err := scanner.Err(); err != nil {
		return sources, err
	}
	return sources, nil
}
