package query

import (
	"context"
	"io"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/transport/ollama"
	"github.com/kailas-cloud/raggate/internal/transport/qdrant"
)

// CollectionReader resolves a collection's config for retrieval.
type CollectionReader interface {
	Get(ctx context.Context, name string) (domain.CollectionConfig, error)
}

// VectorSearcher runs similarity searches.
type VectorSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float64) ([]qdrant.ScoredPoint, error)
}

// Inference covers the embedding and chat calls the orchestrator composes.
type Inference interface {
	Embed(ctx context.Context, model string, input []string) ([][]float32, error)
	Chat(ctx context.Context, req ollama.ChatRequest) (map[string]any, error)
	ChatStream(ctx context.Context, req ollama.ChatRequest) (io.ReadCloser, error)
}

// Provisioner guarantees a model is available locally.
type Provisioner interface {
	Ensure(ctx context.Context, model string) error
}
