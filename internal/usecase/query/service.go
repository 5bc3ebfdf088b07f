// Package query implements the unified query workflow: resolve the query
// text, ensure the model is present, optionally retrieve context from a
// collection, assemble the final message sequence, and run chat completion —
// streamed or buffered.
package query

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/metrics"
	"github.com/kailas-cloud/raggate/internal/transport/ollama"
)

const (
	defaultRAGSystemPrompt = "You are a helpful assistant. Use the provided context to answer the question accurately. If the context does not contain relevant information, say so."
	defaultSystemPrompt    = "You are a helpful assistant."
	defaultRetrievalLimit  = 5
)

// Request is the transient input of one unified query. Exactly one of Query,
// Prompt, or a user message must resolve to query text when a message list is
// absent.
type Request struct {
	Model          string
	Query          string
	Prompt         string
	Messages       []domain.ChatMessage
	Collection     string
	TopK           int
	Limit          int
	ScoreThreshold float64
	SystemPrompt   string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	Stream         *bool // nil defaults to streaming
}

// Streaming reports whether the caller wants a live token stream.
func (r *Request) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// Result is the outcome of one query. Exactly one of Stream and Response is
// set: Stream is the backend's live NDJSON output (caller closes it),
// Response is the buffered chat result with sources already merged in.
type Result struct {
	Stream   io.ReadCloser
	Response map[string]any
	Sources  []domain.SearchResult
}

// Service orchestrates retrieval-augmented generation.
type Service struct {
	collections    CollectionReader
	vectors        VectorSearcher
	inference      Inference
	provisioner    Provisioner
	logger         *zap.Logger
	retrievalLimit int
	systemPrompt   string
}

// New creates a query service.
func New(
	collections CollectionReader,
	vectors VectorSearcher,
	inference Inference,
	provisioner Provisioner,
	logger *zap.Logger,
) *Service {
	return &Service{
		collections:    collections,
		vectors:        vectors,
		inference:      inference,
		provisioner:    provisioner,
		logger:         logger,
		retrievalLimit: defaultRetrievalLimit,
		systemPrompt:   defaultRAGSystemPrompt,
	}
}

// WithDefaults overrides the retrieval limit and RAG system prompt defaults.
func (s *Service) WithDefaults(limit int, systemPrompt string) *Service {
	if limit > 0 {
		s.retrievalLimit = limit
	}
	if systemPrompt != "" {
		s.systemPrompt = systemPrompt
	}
	return s
}

// Run executes the unified query workflow. A named but unregistered
// collection fails the whole request; there is no silent fallback to the
// non-RAG path.
func (s *Service) Run(ctx context.Context, req *Request) (Result, error) {
	res, err := s.run(ctx, req)

	mode := "direct"
	if req.Collection != "" {
		mode = "rag"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.QueriesTotal.WithLabelValues(mode, status).Inc()

	return res, err
}

func (s *Service) run(ctx context.Context, req *Request) (Result, error) {
	if req.Model == "" {
		return Result{}, domain.Invalidf("model is required")
	}

	text := resolveQueryText(req)
	if text == "" && len(req.Messages) == 0 {
		return Result{}, domain.Invalidf("prompt, query, or messages is required")
	}

	if err := s.provisioner.Ensure(ctx, req.Model); err != nil {
		return Result{}, err
	}

	var sources []domain.SearchResult
	var contextBlock string
	if req.Collection != "" {
		var err error
		sources, contextBlock, err = s.retrieve(ctx, req, text)
		if err != nil {
			return Result{}, err
		}
		metrics.RetrievedSources.Observe(float64(len(sources)))
	}

	messages := s.buildMessages(req, text, contextBlock)

	chatReq := ollama.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Options:  samplingOptions(req),
	}

	if req.Streaming() {
		stream, err := s.inference.ChatStream(ctx, chatReq)
		if err != nil {
			return Result{}, fmt.Errorf("chat stream: %w", err)
		}
		return Result{Stream: stream, Sources: sources}, nil
	}

	resp, err := s.inference.Chat(ctx, chatReq)
	if err != nil {
		return Result{}, fmt.Errorf("chat: %w", err)
	}
	if req.Collection != "" {
		resp["sources"] = sources
	}
	return Result{Response: resp, Sources: sources}, nil
}

// retrieve embeds the query text with the collection's bound model, runs the
// similarity search, and builds the numbered context block in ranked order.
func (s *Service) retrieve(
	ctx context.Context, req *Request, text string,
) ([]domain.SearchResult, string, error) {
	cfg, err := s.collections.Get(ctx, req.Collection)
	if err != nil {
		return nil, "", err
	}
	if text == "" {
		return nil, "", domain.Invalidf("query text is required for retrieval")
	}

	vecs, err := s.inference.Embed(ctx, cfg.EmbeddingModel, []string{text})
	if err != nil {
		return nil, "", fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, "", fmt.Errorf("embed query: empty embedding for model %s", cfg.EmbeddingModel)
	}

	limit := req.TopK
	if limit <= 0 {
		limit = req.Limit
	}
	if limit <= 0 {
		limit = s.retrievalLimit
	}

	points, err := s.vectors.Search(ctx, req.Collection, vecs[0], limit, req.ScoreThreshold)
	if err != nil {
		return nil, "", fmt.Errorf("search collection: %w", err)
	}

	sources := make([]domain.SearchResult, len(points))
	var b strings.Builder
	for i, p := range points {
		content, metadata := splitPayload(p.Payload)
		sources[i] = domain.SearchResult{
			ID:       p.ID,
			Score:    p.Score,
			Content:  content,
			Metadata: metadata,
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, content)
	}

	s.logger.Debug("retrieved context",
		zap.String("collection", req.Collection),
		zap.Int("sources", len(sources)),
	)
	return sources, b.String(), nil
}

// buildMessages assembles the final chat sequence. With explicit messages the
// context lands in the system message (existing one extended, or a new one
// prepended); with a bare prompt a two-message exchange is synthesized.
func (s *Service) buildMessages(req *Request, text, contextBlock string) []domain.ChatMessage {
	if len(req.Messages) > 0 {
		if contextBlock == "" {
			return req.Messages
		}

		messages := make([]domain.ChatMessage, len(req.Messages))
		copy(messages, req.Messages)

		for i, m := range messages {
			if m.Role == domain.RoleSystem {
				messages[i].Content = m.Content + "\n\nContext:\n" + contextBlock
				return messages
			}
		}

		system := req.SystemPrompt
		if system == "" {
			system = s.systemPrompt
		}
		prepended := make([]domain.ChatMessage, 0, len(messages)+1)
		prepended = append(prepended, domain.ChatMessage{
			Role:    domain.RoleSystem,
			Content: system + "\n\nContext:\n" + contextBlock,
		})
		return append(prepended, messages...)
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = text
	}

	system := req.SystemPrompt
	if system == "" {
		if contextBlock != "" {
			system = s.systemPrompt
		} else {
			system = defaultSystemPrompt
		}
	}

	user := prompt
	if contextBlock != "" {
		user = fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, prompt)
	}

	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: user},
	}
}

// resolveQueryText picks the retrieval text: explicit query, then prompt,
// then the content of the last user message.
func resolveQueryText(req *Request) string {
	if req.Query != "" {
		return req.Query
	}
	if req.Prompt != "" {
		return req.Prompt
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == domain.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

func samplingOptions(req *Request) *ollama.Options {
	if req.Temperature == nil && req.TopP == nil && req.MaxTokens == nil {
		return nil
	}
	return &ollama.Options{
		Temperature: req.Temperature,
		TopP:        req.TopP,
		NumPredict:  req.MaxTokens,
	}
}

// splitPayload separates the reserved content field from the open metadata.
func splitPayload(payload map[string]any) (string, map[string]any) {
	content, _ := payload[domain.ContentKey].(string)
	metadata := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == domain.ContentKey {
			continue
		}
		metadata[k] = v
	}
	if len(metadata) == 0 {
		metadata = nil
	}
	return content, metadata
}
