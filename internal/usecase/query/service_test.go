package query

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/transport/ollama"
	"github.com/kailas-cloud/raggate/internal/transport/qdrant"
)

type mockCollections struct {
	configs map[string]domain.CollectionConfig
}

func (m *mockCollections) Get(_ context.Context, name string) (domain.CollectionConfig, error) {
	cfg, ok := m.configs[name]
	if !ok {
		return domain.CollectionConfig{}, domain.ErrNotFound
	}
	return cfg, nil
}

type mockVectors struct {
	points      []qdrant.ScoredPoint
	searchCalls int
	lastLimit   int
	lastVector  []float32
	err         error
}

func (m *mockVectors) Search(
	_ context.Context, _ string, vector []float32, limit int, _ float64,
) ([]qdrant.ScoredPoint, error) {
	m.searchCalls++
	m.lastLimit = limit
	m.lastVector = vector
	return m.points, m.err
}

type mockInference struct {
	embedModel  string
	embedInput  []string
	chatReq     ollama.ChatRequest
	chatCalls   int
	streamCalls int
	response    map[string]any
	stream      string
	embedErr    error
	chatErr     error
}

func (m *mockInference) Embed(_ context.Context, model string, input []string) ([][]float32, error) {
	m.embedModel = model
	m.embedInput = input
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return [][]float32{{0.1, 0.2}}, nil
}

func (m *mockInference) Chat(_ context.Context, req ollama.ChatRequest) (map[string]any, error) {
	m.chatCalls++
	m.chatReq = req
	if m.chatErr != nil {
		return nil, m.chatErr
	}
	if m.response != nil {
		return m.response, nil
	}
	return map[string]any{"message": map[string]any{"role": "assistant", "content": "ok"}}, nil
}

func (m *mockInference) ChatStream(_ context.Context, req ollama.ChatRequest) (io.ReadCloser, error) {
	m.streamCalls++
	m.chatReq = req
	if m.chatErr != nil {
		return nil, m.chatErr
	}
	return io.NopCloser(strings.NewReader(m.stream)), nil
}

type mockProvisioner struct {
	ensured []string
	err     error
}

func (m *mockProvisioner) Ensure(_ context.Context, model string) error {
	m.ensured = append(m.ensured, model)
	if m.err != nil {
		return m.err
	}
	return nil
}

func newTestService(
	collections *mockCollections,
	vectors *mockVectors,
	inference *mockInference,
	provisioner *mockProvisioner,
) *Service {
	return New(collections, vectors, inference, provisioner, zap.NewNop())
}

func ragFixtures() (*mockCollections, *mockVectors, *mockInference, *mockProvisioner) {
	collections := &mockCollections{configs: map[string]domain.CollectionConfig{
		"docs": {Name: "docs", EmbeddingModel: "nomic-embed-text", Dimension: 2},
	}}
	vectors := &mockVectors{points: []qdrant.ScoredPoint{
		{ID: "a", Score: 0.92, Payload: map[string]any{"content": "first chunk", "source": "a.md"}},
		{ID: "b", Score: 0.81, Payload: map[string]any{"content": "second chunk"}},
	}}
	inference := &mockInference{}
	provisioner := &mockProvisioner{}
	return collections, vectors, inference, provisioner
}

func boolPtr(b bool) *bool { return &b }

func TestService_Run_RAGBuffered(t *testing.T) {
	collections, vectors, inference, provisioner := ragFixtures()
	svc := newTestService(collections, vectors, inference, provisioner)

	res, err := svc.Run(context.Background(), &Request{
		Model:      "llama3",
		Query:      "what is raggate",
		Collection: "docs",
		TopK:       2,
		Stream:     boolPtr(false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(res.Sources))
	}
	if res.Sources[0].ID != "a" || res.Sources[1].ID != "b" {
		t.Errorf("sources out of ranked order: %v", res.Sources)
	}
	if res.Sources[0].Content != "first chunk" {
		t.Errorf("unexpected source content %q", res.Sources[0].Content)
	}
	if _, ok := res.Sources[0].Metadata["content"]; ok {
		t.Error("reserved content key leaked into source metadata")
	}
	if res.Sources[0].Metadata["source"] != "a.md" {
		t.Errorf("metadata lost: %v", res.Sources[0].Metadata)
	}

	if inference.embedModel != "nomic-embed-text" {
		t.Errorf("query embedded with %q, want collection's bound model", inference.embedModel)
	}

	system := inference.chatReq.Messages[0]
	if system.Role != domain.RoleSystem {
		t.Fatalf("first message role = %q, want system", system.Role)
	}
	user := inference.chatReq.Messages[1].Content
	if !strings.Contains(user, "[1] first chunk") || !strings.Contains(user, "[2] second chunk") {
		t.Errorf("context block missing numbered chunks:\n%s", user)
	}
	if !strings.Contains(user, "Question: what is raggate") {
		t.Errorf("question missing from user message:\n%s", user)
	}

	if res.Response["sources"] == nil {
		t.Error("buffered response missing merged sources")
	}
}

func TestService_Run_StreamDefault(t *testing.T) {
	collections, vectors, inference, provisioner := ragFixtures()
	inference.stream = `{"message":{"content":"hi"},"done":true}` + "\n"
	svc := newTestService(collections, vectors, inference, provisioner)

	res, err := svc.Run(context.Background(), &Request{
		Model:      "llama3",
		Query:      "q",
		Collection: "docs",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stream == nil {
		t.Fatal("stream field nil: omitted stream flag must default to streaming")
	}
	defer res.Stream.Close()

	if inference.streamCalls != 1 || inference.chatCalls != 0 {
		t.Errorf("stream calls = %d, chat calls = %d", inference.streamCalls, inference.chatCalls)
	}
	if len(res.Sources) != 2 {
		t.Errorf("expected sources alongside stream, got %d", len(res.Sources))
	}

	body, err := io.ReadAll(res.Stream)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if !strings.Contains(string(body), `"done":true`) {
		t.Errorf("unexpected stream body: %s", body)
	}
}

func TestService_Run_DirectSkipsRetrieval(t *testing.T) {
	_, vectors, inference, provisioner := ragFixtures()
	svc := newTestService(&mockCollections{}, vectors, inference, provisioner)

	res, err := svc.Run(context.Background(), &Request{
		Model:  "llama3",
		Prompt: "hello",
		Stream: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if vectors.searchCalls != 0 {
		t.Error("vector store consulted without a collection")
	}
	if len(res.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(res.Sources))
	}
	if _, ok := res.Response["sources"]; ok {
		t.Error("direct response must not carry a sources field")
	}

	user := inference.chatReq.Messages[1].Content
	if user != "hello" {
		t.Errorf("user message = %q, want bare prompt", user)
	}
	if inference.chatReq.Messages[0].Content != defaultSystemPrompt {
		t.Errorf("system prompt = %q", inference.chatReq.Messages[0].Content)
	}
}

func TestService_Run_TopKPrecedence(t *testing.T) {
	collections, vectors, inference, provisioner := ragFixtures()
	svc := newTestService(collections, vectors, inference, provisioner)

	_, err := svc.Run(context.Background(), &Request{
		Model:      "llama3",
		Query:      "q",
		Collection: "docs",
		TopK:       3,
		Limit:      10,
		Stream:     boolPtr(false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors.lastLimit != 3 {
		t.Errorf("search limit = %d, want top_k to win over limit", vectors.lastLimit)
	}
}

func TestService_Run_DefaultLimit(t *testing.T) {
	collections, vectors, inference, provisioner := ragFixtures()
	svc := newTestService(collections, vectors, inference, provisioner).WithDefaults(7, "")

	_, err := svc.Run(context.Background(), &Request{
		Model:      "llama3",
		Query:      "q",
		Collection: "docs",
		Stream:     boolPtr(false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors.lastLimit != 7 {
		t.Errorf("search limit = %d, want configured default", vectors.lastLimit)
	}
}

func TestService_Run_UnknownCollectionFails(t *testing.T) {
	_, vectors, inference, provisioner := ragFixtures()
	svc := newTestService(&mockCollections{}, vectors, inference, provisioner)

	_, err := svc.Run(context.Background(), &Request{
		Model:      "llama3",
		Query:      "q",
		Collection: "missing",
		Stream:     boolPtr(false),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if inference.chatCalls != 0 || inference.streamCalls != 0 {
		t.Error("chat ran despite unknown collection; no silent fallback allowed")
	}
}

func TestService_Run_NoTextValidation(t *testing.T) {
	collections, vectors, inference, provisioner := ragFixtures()
	svc := newTestService(collections, vectors, inference, provisioner)

	_, err := svc.Run(context.Background(), &Request{Model: "llama3"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if len(provisioner.ensured) != 0 {
		t.Error("model ensured before validation passed")
	}
}

func TestService_Run_MissingModelValidation(t *testing.T) {
	collections, vectors, inference, provisioner := ragFixtures()
	svc := newTestService(collections, vectors, inference, provisioner)

	_, err := svc.Run(context.Background(), &Request{Prompt: "hi"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestService_Run_PullFailureAborts(t *testing.T) {
	collections, vectors, inference, provisioner := ragFixtures()
	provisioner.err = domain.NewModelPullError("llama3", errors.New("registry unreachable"))
	svc := newTestService(collections, vectors, inference, provisioner)

	_, err := svc.Run(context.Background(), &Request{
		Model:      "llama3",
		Query:      "q",
		Collection: "docs",
	})
	if !errors.Is(err, domain.ErrModelPull) {
		t.Fatalf("expected model pull error, got %v", err)
	}
	if vectors.searchCalls != 0 || inference.streamCalls != 0 {
		t.Error("pipeline continued after failed model pull")
	}
}

func TestService_Run_MessagesLastUserDrivesRetrieval(t *testing.T) {
	collections, vectors, inference, provisioner := ragFixtures()
	svc := newTestService(collections, vectors, inference, provisioner)

	_, err := svc.Run(context.Background(), &Request{
		Model:      "llama3",
		Collection: "docs",
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: "first question"},
			{Role: domain.RoleAssistant, Content: "an answer"},
			{Role: domain.RoleUser, Content: "follow-up question"},
		},
		Stream: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inference.embedInput[0] != "follow-up question" {
		t.Errorf("retrieval text = %q, want last user message", inference.embedInput[0])
	}
}

func TestService_Run_ContextInjectedIntoExistingSystem(t *testing.T) {
	collections, vectors, inference, provisioner := ragFixtures()
	svc := newTestService(collections, vectors, inference, provisioner)

	original := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "be terse"},
		{Role: domain.RoleUser, Content: "q"},
	}
	_, err := svc.Run(context.Background(), &Request{
		Model:      "llama3",
		Collection: "docs",
		Messages:   original,
		Stream:     boolPtr(false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := inference.chatReq.Messages
	if len(got) != 2 {
		t.Fatalf("message count = %d, want unchanged 2", len(got))
	}
	if !strings.HasPrefix(got[0].Content, "be terse") || !strings.Contains(got[0].Content, "[1] first chunk") {
		t.Errorf("system message not extended with context: %q", got[0].Content)
	}
	if original[0].Content != "be terse" {
		t.Error("caller's message slice mutated")
	}
}

func TestService_Run_ContextPrependedWhenNoSystem(t *testing.T) {
	collections, vectors, inference, provisioner := ragFixtures()
	svc := newTestService(collections, vectors, inference, provisioner)

	_, err := svc.Run(context.Background(), &Request{
		Model:      "llama3",
		Collection: "docs",
		Messages:   []domain.ChatMessage{{Role: domain.RoleUser, Content: "q"}},
		Stream:     boolPtr(false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := inference.chatReq.Messages
	if len(got) != 2 {
		t.Fatalf("message count = %d, want system prepended", len(got))
	}
	if got[0].Role != domain.RoleSystem || !strings.Contains(got[0].Content, "[2] second chunk") {
		t.Errorf("prepended system message missing context: %+v", got[0])
	}
}

func TestService_Run_SamplingOptionsForwarded(t *testing.T) {
	collections, vectors, inference, provisioner := ragFixtures()
	svc := newTestService(collections, vectors, inference, provisioner)

	temp := 0.2
	maxTokens := 128
	_, err := svc.Run(context.Background(), &Request{
		Model:       "llama3",
		Prompt:      "hi",
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Stream:      boolPtr(false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opts := inference.chatReq.Options
	if opts == nil || opts.Temperature == nil || *opts.Temperature != 0.2 {
		t.Errorf("temperature not forwarded: %+v", opts)
	}
	if opts.NumPredict == nil || *opts.NumPredict != 128 {
		t.Errorf("max tokens not forwarded: %+v", opts)
	}
}
