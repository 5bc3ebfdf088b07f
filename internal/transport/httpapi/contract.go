package httpapi

import (
	"context"
	"io"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/transport/ollama"
	healthuc "github.com/kailas-cloud/raggate/internal/usecase/health"
	queryuc "github.com/kailas-cloud/raggate/internal/usecase/query"
)

// CollectionService covers collection lifecycle, documents, and search.
type CollectionService interface {
	Create(ctx context.Context, name, embeddingModel string, dimension int) (domain.CollectionConfig, error)
	Get(ctx context.Context, name string) (domain.CollectionConfig, int, error)
	List(ctx context.Context) ([]domain.CollectionConfig, error)
	Delete(ctx context.Context, name string) error
	InsertDocuments(ctx context.Context, name string, docs []domain.Document) ([]any, error)
	ListDocuments(ctx context.Context, name string, limit int, offset any) ([]domain.Document, any, error)
	DeleteDocuments(ctx context.Context, name string, ids []any) error
	Search(ctx context.Context, name, query string, topK, limit int, scoreThreshold float64) ([]domain.SearchResult, error)
}

// QueryService runs the unified query workflow.
type QueryService interface {
	Run(ctx context.Context, req *queryuc.Request) (queryuc.Result, error)
}

// ModelService covers model lifecycle operations.
type ModelService interface {
	List(ctx context.Context) ([]ollama.ModelSummary, error)
	Show(ctx context.Context, name string) (map[string]any, error)
	Pull(ctx context.Context, name string) error
	PullStream(ctx context.Context, name string) (io.ReadCloser, error)
	Copy(ctx context.Context, source, destination string) error
	Delete(ctx context.Context, name string) error
}

// TokenService manages API tokens.
type TokenService interface {
	Create(ctx context.Context, name string) (string, domain.APITokenInfo, error)
	Get(ctx context.Context, id string) (domain.APITokenInfo, error)
	List(ctx context.Context) ([]domain.APITokenInfo, error)
	Delete(ctx context.Context, id string) error
}

// Inference covers the direct passthrough calls.
type Inference interface {
	Embed(ctx context.Context, model string, input []string) ([][]float32, error)
	Generate(ctx context.Context, req ollama.GenerateRequest) (map[string]any, error)
	GenerateStream(ctx context.Context, req ollama.GenerateRequest) (io.ReadCloser, error)
	Chat(ctx context.Context, req ollama.ChatRequest) (map[string]any, error)
	ChatStream(ctx context.Context, req ollama.ChatRequest) (io.ReadCloser, error)
}

// Provisioner guarantees a model is available before a passthrough call.
type Provisioner interface {
	Ensure(ctx context.Context, model string) error
}

// HealthService reports backend reachability.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}
