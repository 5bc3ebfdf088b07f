package collection

import (
	"context"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/transport/qdrant"
)

// Registry is the durable collection config contract.
type Registry interface {
	Get(ctx context.Context, name string) (domain.CollectionConfig, error)
	Set(ctx context.Context, cfg domain.CollectionConfig) error
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]domain.CollectionConfig, error)
}

// VectorStore is the slice of the vector backend this service uses.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dimension int) error
	DeleteCollection(ctx context.Context, name string) error
	GetCollection(ctx context.Context, name string) (qdrant.CollectionInfo, error)
	UpsertPoints(ctx context.Context, collection string, points []qdrant.Point) error
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float64) ([]qdrant.ScoredPoint, error)
	Scroll(ctx context.Context, collection string, limit int, offset any) ([]qdrant.Point, any, error)
	DeletePoints(ctx context.Context, collection string, ids []any) error
}

// Embedder generates embeddings with a named model.
type Embedder interface {
	Embed(ctx context.Context, model string, input []string) ([][]float32, error)
}

// Provisioner guarantees a model is available locally.
type Provisioner interface {
	Ensure(ctx context.Context, model string) error
}
