package model

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/transport/ollama"
)

type mockBackend struct {
	models    []ollama.ModelSummary
	details   map[string]any
	showErr   error
	pullErr   error
	copyErr   error
	deleteErr error
	pulled    []string
	deleted   []string
}

func (m *mockBackend) ListModels(context.Context) ([]ollama.ModelSummary, error) {
	return m.models, nil
}

func (m *mockBackend) ShowModel(context.Context, string) (map[string]any, error) {
	if m.showErr != nil {
		return nil, m.showErr
	}
	return m.details, nil
}

func (m *mockBackend) PullModel(_ context.Context, name string) error {
	if m.pullErr != nil {
		return m.pullErr
	}
	m.pulled = append(m.pulled, name)
	return nil
}

func (m *mockBackend) PullModelStream(context.Context, string) (io.ReadCloser, error) {
	if m.pullErr != nil {
		return nil, m.pullErr
	}
	return io.NopCloser(strings.NewReader(`{"status":"success"}` + "\n")), nil
}

func (m *mockBackend) CopyModel(context.Context, string, string) error {
	return m.copyErr
}

func (m *mockBackend) DeleteModel(_ context.Context, name string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, name)
	return nil
}

func TestService_Show_UnknownModelIsNotFound(t *testing.T) {
	backend := &mockBackend{showErr: &ollama.APIError{Status: 404, Message: "model not found"}}
	svc := New(backend, zap.NewNop())

	_, err := svc.Show(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_Show_ReturnsDetails(t *testing.T) {
	backend := &mockBackend{details: map[string]any{"parameters": "num_ctx 4096"}}
	svc := New(backend, zap.NewNop())

	details, err := svc.Show(context.Background(), "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details["parameters"] != "num_ctx 4096" {
		t.Errorf("details lost: %v", details)
	}
}

func TestService_Pull_WrapsFailure(t *testing.T) {
	backend := &mockBackend{pullErr: errors.New("registry unreachable")}
	svc := New(backend, zap.NewNop())

	err := svc.Pull(context.Background(), "llama3")
	if !errors.Is(err, domain.ErrModelPull) {
		t.Fatalf("expected model pull error, got %v", err)
	}
	if !strings.Contains(err.Error(), "llama3") {
		t.Errorf("error does not name the model: %v", err)
	}
}

func TestService_Pull_Blocking(t *testing.T) {
	backend := &mockBackend{}
	svc := New(backend, zap.NewNop())

	if err := svc.Pull(context.Background(), "llama3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.pulled) != 1 || backend.pulled[0] != "llama3" {
		t.Errorf("pulled = %v", backend.pulled)
	}
}

func TestService_Delete_MapsBackend404(t *testing.T) {
	backend := &mockBackend{deleteErr: &ollama.APIError{Status: 404, Message: "model not found"}}
	svc := New(backend, zap.NewNop())

	err := svc.Delete(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_EmptyNameValidation(t *testing.T) {
	svc := New(&mockBackend{}, zap.NewNop())

	if _, err := svc.Show(context.Background(), ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("show: expected invalid request, got %v", err)
	}
	if err := svc.Pull(context.Background(), ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("pull: expected invalid request, got %v", err)
	}
	if err := svc.Copy(context.Background(), "a", ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("copy: expected invalid request, got %v", err)
	}
}
