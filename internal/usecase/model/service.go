// Package model wraps the inference backend's model management calls and
// maps their failures onto the domain error taxonomy.
package model

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/transport/ollama"
)

// Backend is the slice of the inference client the service needs.
type Backend interface {
	ListModels(ctx context.Context) ([]ollama.ModelSummary, error)
	ShowModel(ctx context.Context, name string) (map[string]any, error)
	PullModel(ctx context.Context, name string) error
	PullModelStream(ctx context.Context, name string) (io.ReadCloser, error)
	CopyModel(ctx context.Context, source, destination string) error
	DeleteModel(ctx context.Context, name string) error
}

// Service exposes model lifecycle operations.
type Service struct {
	backend Backend
	logger  *zap.Logger
}

func New(backend Backend, logger *zap.Logger) *Service {
	return &Service{backend: backend, logger: logger}
}

// List returns the locally available models.
func (s *Service) List(ctx context.Context) ([]ollama.ModelSummary, error) {
	models, err := s.backend.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// Show returns the backend's model details. An unknown model surfaces as not
// found regardless of the backend's status code.
func (s *Service) Show(ctx context.Context, name string) (map[string]any, error) {
	if name == "" {
		return nil, domain.Invalidf("model name is required")
	}
	details, err := s.backend.ShowModel(ctx, name)
	if err != nil {
		var apiErr *ollama.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("model %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("show model: %w", err)
	}
	return details, nil
}

// Pull downloads a model, blocking until the backend reports completion.
func (s *Service) Pull(ctx context.Context, name string) error {
	if name == "" {
		return domain.Invalidf("model name is required")
	}
	s.logger.Info("pulling model", zap.String("model", name))
	if err := s.backend.PullModel(ctx, name); err != nil {
		return domain.NewModelPullError(name, err)
	}
	return nil
}

// PullStream starts a pull and returns the backend's progress stream.
func (s *Service) PullStream(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == "" {
		return nil, domain.Invalidf("model name is required")
	}
	stream, err := s.backend.PullModelStream(ctx, name)
	if err != nil {
		return nil, domain.NewModelPullError(name, err)
	}
	return stream, nil
}

// Copy duplicates a model under a new name.
func (s *Service) Copy(ctx context.Context, source, destination string) error {
	if source == "" || destination == "" {
		return domain.Invalidf("source and destination are required")
	}
	if err := s.backend.CopyModel(ctx, source, destination); err != nil {
		var apiErr *ollama.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			return fmt.Errorf("model %s: %w", source, domain.ErrNotFound)
		}
		return fmt.Errorf("copy model: %w", err)
	}
	return nil
}

// Delete removes a model from the backend.
func (s *Service) Delete(ctx context.Context, name string) error {
	if name == "" {
		return domain.Invalidf("model name is required")
	}
	if err := s.backend.DeleteModel(ctx, name); err != nil {
		var apiErr *ollama.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			return fmt.Errorf("model %s: %w", name, domain.ErrNotFound)
		}
		return fmt.Errorf("delete model: %w", err)
	}
	s.logger.Info("model deleted", zap.String("model", name))
	return nil
}
