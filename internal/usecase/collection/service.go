// Package collection implements the collection lifecycle and its document
// workflows: create (with embedding dimension probing), delete, insert,
// list, delete-by-id, and similarity search.
package collection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/transport/qdrant"
)

const defaultSearchLimit = 5

// Service coordinates the registry, vector store, and embedder.
type Service struct {
	registry    Registry
	vectors     VectorStore
	embedder    Embedder
	provisioner Provisioner
	logger      *zap.Logger
	searchLimit int
}

// New creates a collection service.
func New(
	registry Registry,
	vectors VectorStore,
	embedder Embedder,
	provisioner Provisioner,
	logger *zap.Logger,
) *Service {
	return &Service{
		registry:    registry,
		vectors:     vectors,
		embedder:    embedder,
		provisioner: provisioner,
		logger:      logger,
		searchLimit: defaultSearchLimit,
	}
}

// WithSearchLimit overrides the default result limit used when a search or
// query request supplies neither limit nor top_k.
func (s *Service) WithSearchLimit(limit int) *Service {
	if limit > 0 {
		s.searchLimit = limit
	}
	return s
}

// Create registers a collection bound to an embedding model. When dimension
// is omitted the model is auto-provisioned and one throwaway embedding call
// measures the output length. The config is persisted only after the backend
// collection exists; a backend failure leaves no registry entry behind.
func (s *Service) Create(
	ctx context.Context, name, embeddingModel string, dimension int,
) (domain.CollectionConfig, error) {
	if name == "" {
		return domain.CollectionConfig{}, domain.Invalidf("collection name is required")
	}
	if embeddingModel == "" {
		return domain.CollectionConfig{}, domain.Invalidf("embedding_model is required")
	}

	if _, err := s.registry.Get(ctx, name); err == nil {
		return domain.CollectionConfig{}, fmt.Errorf("collection %q: %w", name, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.CollectionConfig{}, err
	}

	if dimension <= 0 {
		var err error
		dimension, err = s.probeDimension(ctx, embeddingModel)
		if err != nil {
			return domain.CollectionConfig{}, err
		}
	}

	if err := s.vectors.CreateCollection(ctx, name, dimension); err != nil {
		return domain.CollectionConfig{}, fmt.Errorf("create backend collection: %w", err)
	}

	cfg := domain.CollectionConfig{
		Name:           name,
		EmbeddingModel: embeddingModel,
		Dimension:      dimension,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.registry.Set(ctx, cfg); err != nil {
		return domain.CollectionConfig{}, fmt.Errorf("persist collection config: %w", err)
	}

	s.logger.Info("collection created",
		zap.String("name", name),
		zap.String("embedding_model", embeddingModel),
		zap.Int("dimension", dimension),
	)
	return cfg, nil
}

// probeDimension pulls the model if needed and issues one embedding call
// solely to measure its output length.
func (s *Service) probeDimension(ctx context.Context, model string) (int, error) {
	if err := s.provisioner.Ensure(ctx, model); err != nil {
		return 0, err
	}

	vecs, err := s.embedder.Embed(ctx, model, []string{"dimension probe"})
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimension: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("model %q returned an empty probe embedding", model)
	}
	return len(vecs[0]), nil
}

// Get returns a registered config and its live point count. Count errors are
// ignored; the config is the authoritative part of the answer.
func (s *Service) Get(ctx context.Context, name string) (domain.CollectionConfig, int, error) {
	cfg, err := s.registry.Get(ctx, name)
	if err != nil {
		return domain.CollectionConfig{}, 0, err
	}

	count := 0
	if info, err := s.vectors.GetCollection(ctx, name); err == nil {
		count = info.PointsCount
	}
	return cfg, count, nil
}

// List returns all registered collection configs.
func (s *Service) List(ctx context.Context) ([]domain.CollectionConfig, error) {
	return s.registry.List(ctx)
}

// Delete drops the backend collection, then removes the registry entry.
// Either failure propagates; there is no compensating rollback.
func (s *Service) Delete(ctx context.Context, name string) error {
	if _, err := s.registry.Get(ctx, name); err != nil {
		return err
	}

	if err := s.vectors.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("delete backend collection: %w", err)
	}
	if err := s.registry.Remove(ctx, name); err != nil {
		return err
	}

	s.logger.Info("collection deleted", zap.String("name", name))
	return nil
}

// InsertDocuments embeds all contents as one order-preserving batch and
// upserts the points. Documents without a caller-supplied id get a generated
// one. Caller metadata carrying the reserved content key is dropped so the
// stored content always wins.
func (s *Service) InsertDocuments(
	ctx context.Context, name string, docs []domain.Document,
) ([]any, error) {
	cfg, err := s.registry.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.Invalidf("documents are required")
	}

	contents := make([]string, len(docs))
	for i, doc := range docs {
		if doc.Content == "" {
			return nil, domain.Invalidf("document %d has no content", i)
		}
		contents[i] = doc.Content
	}

	vecs, err := s.embedder.Embed(ctx, cfg.EmbeddingModel, contents)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}

	ids := make([]any, len(docs))
	points := make([]qdrant.Point, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if id == nil || id == "" {
			id = uuid.NewString()
		}
		ids[i] = id

		payload := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			if k == domain.ContentKey {
				continue
			}
			payload[k] = v
		}
		payload[domain.ContentKey] = doc.Content

		points[i] = qdrant.Point{ID: id, Vector: vecs[i], Payload: payload}
	}

	if err := s.vectors.UpsertPoints(ctx, name, points); err != nil {
		return nil, fmt.Errorf("upsert points: %w", err)
	}

	s.logger.Info("documents inserted", zap.String("collection", name), zap.Int("count", len(docs)))
	return ids, nil
}

// ListDocuments pages through stored documents via scroll.
func (s *Service) ListDocuments(
	ctx context.Context, name string, limit int, offset any,
) ([]domain.Document, any, error) {
	if _, err := s.registry.Get(ctx, name); err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	points, next, err := s.vectors.Scroll(ctx, name, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("scroll points: %w", err)
	}

	docs := make([]domain.Document, len(points))
	for i, p := range points {
		content, metadata := splitPayload(p.Payload)
		docs[i] = domain.Document{ID: p.ID, Content: content, Metadata: metadata}
	}
	return docs, next, nil
}

// DeleteDocuments removes documents by id.
func (s *Service) DeleteDocuments(ctx context.Context, name string, ids []any) error {
	if _, err := s.registry.Get(ctx, name); err != nil {
		return err
	}
	if len(ids) == 0 {
		return domain.Invalidf("ids are required")
	}

	if err := s.vectors.DeletePoints(ctx, name, ids); err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

// Search embeds the query with the collection's bound model and runs a
// similarity search. top_k takes precedence over limit when both are given;
// results keep the backend's ranking order.
func (s *Service) Search(
	ctx context.Context, name, query string,
	topK, limit int, scoreThreshold float64,
) ([]domain.SearchResult, error) {
	cfg, err := s.registry.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return nil, domain.Invalidf("query is required")
	}

	resolved := s.resolveLimit(topK, limit)

	vecs, err := s.embedder.Embed(ctx, cfg.EmbeddingModel, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	points, err := s.vectors.Search(ctx, name, vecs[0], resolved, scoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	results := make([]domain.SearchResult, len(points))
	for i, p := range points {
		content, metadata := splitPayload(p.Payload)
		results[i] = domain.SearchResult{
			ID:       p.ID,
			Score:    p.Score,
			Content:  content,
			Metadata: metadata,
		}
	}
	return results, nil
}

func (s *Service) resolveLimit(topK, limit int) int {
	if topK > 0 {
		return topK
	}
	if limit > 0 {
		return limit
	}
	return s.searchLimit
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
