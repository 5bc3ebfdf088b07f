package collection

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/transport/qdrant"
)

// --- Mocks ---

type mockRegistry struct {
	configs map[string]domain.CollectionConfig
	setErr  error
}

func newMockRegistry(cfgs ...domain.CollectionConfig) *mockRegistry {
	m := &mockRegistry{configs: make(map[string]domain.CollectionConfig)}
	for _, c := range cfgs {
		m.configs[c.Name] = c
	}
	return m
}

func (m *mockRegistry) Get(_ context.Context, name string) (domain.CollectionConfig, error) {
	cfg, ok := m.configs[name]
	if !ok {
		return domain.CollectionConfig{}, domain.ErrNotFound
	}
	return cfg, nil
}

func (m *mockRegistry) Set(_ context.Context, cfg domain.CollectionConfig) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.configs[cfg.Name] = cfg
	return nil
}

func (m *mockRegistry) Remove(_ context.Context, name string) error {
	if _, ok := m.configs[name]; !ok {
		return domain.ErrNotFound
	}
	delete(m.configs, name)
	return nil
}

func (m *mockRegistry) List(_ context.Context) ([]domain.CollectionConfig, error) {
	out := make([]domain.CollectionConfig, 0, len(m.configs))
	for _, c := range m.configs {
		out = append(out, c)
	}
	return out, nil
}

type mockVectors struct {
	createErr     error
	createCalled  bool
	createdDim    int
	upserted      []qdrant.Point
	searchResults []qdrant.ScoredPoint
	searchLimit   int
	deletedIDs    []any
}

func (m *mockVectors) CreateCollection(_ context.Context, _ string, dim int) error {
	m.createCalled = true
	m.createdDim = dim
	return m.createErr
}

func (m *mockVectors) DeleteCollection(_ context.Context, _ string) error { return nil }

func (m *mockVectors) GetCollection(_ context.Context, _ string) (qdrant.CollectionInfo, error) {
	return qdrant.CollectionInfo{PointsCount: len(m.upserted)}, nil
}

func (m *mockVectors) UpsertPoints(_ context.Context, _ string, points []qdrant.Point) error {
	m.upserted = append(m.upserted, points...)
	return nil
}

func (m *mockVectors) Search(
	_ context.Context, _ string, _ []float32, limit int, _ float64,
) ([]qdrant.ScoredPoint, error) {
	m.searchLimit = limit
	return m.searchResults, nil
}

func (m *mockVectors) Scroll(
	_ context.Context, _ string, _ int, _ any,
) ([]qdrant.Point, any, error) {
	return m.upserted, nil, nil
}

func (m *mockVectors) DeletePoints(_ context.Context, _ string, ids []any) error {
	m.deletedIDs = ids
	return nil
}

type mockEmbedder struct {
	dim    int
	err    error
	calls  int
	inputs []string
	model  string
}

func (m *mockEmbedder) Embed(_ context.Context, model string, input []string) ([][]float32, error) {
	m.calls++
	m.model = model
	m.inputs = input
	if m.err != nil {
		return nil, m.err
	}
	vecs := make([][]float32, len(input))
	for i := range vecs {
		vecs[i] = make([]float32, m.dim)
	}
	return vecs, nil
}

type mockProvisioner struct {
	err   error
	calls int
}

func (m *mockProvisioner) Ensure(_ context.Context, _ string) error {
	m.calls++
	return m.err
}

func newTestService(reg *mockRegistry, vec *mockVectors, emb *mockEmbedder, prov *mockProvisioner) *Service {
	return New(reg, vec, emb, prov, zap.NewNop())
}

func docsConfig() domain.CollectionConfig {
	return domain.CollectionConfig{Name: "docs", EmbeddingModel: "nomic-embed-text", Dimension: 4}
}

// --- Tests ---

func TestCreate_ProbesDimensionWhenOmitted(t *testing.T) {
	reg := newMockRegistry()
	vec := &mockVectors{}
	emb := &mockEmbedder{dim: 768}
	prov := &mockProvisioner{}
	svc := newTestService(reg, vec, emb, prov)

	cfg, err := svc.Create(context.Background(), "docs", "nomic-embed-text", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cfg.Dimension != 768 {
		t.Errorf("dimension: got %d, want 768", cfg.Dimension)
	}
	if prov.calls != 1 {
		t.Errorf("provision calls: got %d, want 1", prov.calls)
	}
	if emb.calls != 1 {
		t.Errorf("embed calls: got %d, want 1", emb.calls)
	}
	if vec.createdDim != 768 {
		t.Errorf("backend dimension: got %d", vec.createdDim)
	}
}

func TestCreate_ExplicitDimensionSkipsProbe(t *testing.T) {
	reg := newMockRegistry()
	vec := &mockVectors{}
	emb := &mockEmbedder{dim: 768}
	prov := &mockProvisioner{}
	svc := newTestService(reg, vec, emb, prov)

	if _, err := svc.Create(context.Background(), "docs", "nomic-embed-text", 512); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if prov.calls != 0 || emb.calls != 0 {
		t.Errorf("explicit dimension should not provision or probe (provision=%d embed=%d)", prov.calls, emb.calls)
	}
}

func TestCreate_Duplicate409(t *testing.T) {
	reg := newMockRegistry(docsConfig())
	svc := newTestService(reg, &mockVectors{}, &mockEmbedder{dim: 4}, &mockProvisioner{})

	_, err := svc.Create(context.Background(), "docs", "nomic-embed-text", 4)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreate_BackendFailureLeavesNoConfig(t *testing.T) {
	reg := newMockRegistry()
	vec := &mockVectors{createErr: errors.New("qdrant down")}
	svc := newTestService(reg, vec, &mockEmbedder{dim: 4}, &mockProvisioner{})

	if _, err := svc.Create(context.Background(), "docs", "m", 4); err == nil {
		t.Fatal("expected error")
	}
	if len(reg.configs) != 0 {
		t.Error("config must not be persisted when the backend create fails")
	}
}

func TestCreate_PullFailureAborts(t *testing.T) {
	reg := newMockRegistry()
	emb := &mockEmbedder{dim: 4}
	prov := &mockProvisioner{err: domain.NewModelPullError("m", errors.New("boom"))}
	svc := newTestService(reg, &mockVectors{}, emb, prov)

	_, err := svc.Create(context.Background(), "docs", "m", 0)
	if !errors.Is(err, domain.ErrModelPull) {
		t.Fatalf("expected ErrModelPull, got %v", err)
	}
	if emb.calls != 0 {
		t.Error("probe embedding must not run after a failed pull")
	}
}

func TestInsertDocuments_GeneratesIDsAndReservesContent(t *testing.T) {
	reg := newMockRegistry(docsConfig())
	vec := &mockVectors{}
	emb := &mockEmbedder{dim: 4}
	svc := newTestService(reg, vec, emb, &mockProvisioner{})

	docs := []domain.Document{
		{Content: "first", Metadata: map[string]any{"lang": "en", "content": "spoofed"}},
		{ID: "x", Content: "second"},
	}
	ids, err := svc.InsertDocuments(context.Background(), "docs", docs)
	if err != nil {
		t.Fatalf("InsertDocuments: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids: got %d, want 2", len(ids))
	}
	if ids[0] == nil || ids[0] == "" {
		t.Error("missing generated id for first document")
	}
	if ids[1] != "x" {
		t.Errorf("explicit id must be preserved, got %v", ids[1])
	}

	if got := vec.upserted[0].Payload["content"]; got != "first" {
		t.Errorf("reserved content overwritten: got %v", got)
	}
	if got := vec.upserted[0].Payload["lang"]; got != "en" {
		t.Errorf("metadata lost: got %v", got)
	}
	if emb.model != "nomic-embed-text" {
		t.Errorf("embedding model: got %q", emb.model)
	}
	if len(emb.inputs) != 2 || emb.inputs[0] != "first" || emb.inputs[1] != "second" {
		t.Errorf("batch embed inputs out of order: %v", emb.inputs)
	}
}

func TestInsertDocuments_UnregisteredCollection404(t *testing.T) {
	svc := newTestService(newMockRegistry(), &mockVectors{}, &mockEmbedder{dim: 4}, &mockProvisioner{})

	_, err := svc.InsertDocuments(context.Background(), "ghost", []domain.Document{{Content: "c"}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSearch_TopKTakesPrecedence(t *testing.T) {
	reg := newMockRegistry(docsConfig())
	vec := &mockVectors{}
	svc := newTestService(reg, vec, &mockEmbedder{dim: 4}, &mockProvisioner{})

	if _, err := svc.Search(context.Background(), "docs", "q", 3, 10, 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if vec.searchLimit != 3 {
		t.Errorf("search limit: got %d, want 3 (top_k wins)", vec.searchLimit)
	}
}

func TestSearch_DefaultLimit(t *testing.T) {
	reg := newMockRegistry(docsConfig())
	vec := &mockVectors{}
	svc := newTestService(reg, vec, &mockEmbedder{dim: 4}, &mockProvisioner{})

	if _, err := svc.Search(context.Background(), "docs", "q", 0, 0, 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if vec.searchLimit != defaultSearchLimit {
		t.Errorf("search limit: got %d, want %d", vec.searchLimit, defaultSearchLimit)
	}
}

func TestSearch_StripsContentFromMetadata(t *testing.T) {
	reg := newMockRegistry(docsConfig())
	vec := &mockVectors{
		searchResults: []qdrant.ScoredPoint{
			{ID: "a", Score: 0.9, Payload: map[string]any{"content": "alpha", "lang": "en"}},
		},
	}
	svc := newTestService(reg, vec, &mockEmbedder{dim: 4}, &mockProvisioner{})

	results, err := svc.Search(context.Background(), "docs", "q", 0, 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Content != "alpha" {
		t.Errorf("content: got %q", results[0].Content)
	}
	if _, ok := results[0].Metadata["content"]; ok {
		t.Error("metadata must not duplicate the content key")
	}
	if results[0].Metadata["lang"] != "en" {
		t.Errorf("metadata: got %v", results[0].Metadata)
	}
}

func TestDeleteDocuments_PassesIDs(t *testing.T) {
	reg := newMockRegistry(docsConfig())
	vec := &mockVectors{}
	svc := newTestService(reg, vec, &mockEmbedder{dim: 4}, &mockProvisioner{})

	if err := svc.DeleteDocuments(context.Background(), "docs", []any{"x"}); err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}
	if len(vec.deletedIDs) != 1 || vec.deletedIDs[0] != "x" {
		t.Errorf("deleted ids: got %v", vec.deletedIDs)
	}
}
