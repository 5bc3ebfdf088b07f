// Package provision ensures a model is present locally before any call that
// needs it, pulling it synchronously when absent.
package provision

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/metrics"
)

// Inference is the slice of the inference client the provisioner needs.
type Inference interface {
	ShowModel(ctx context.Context, name string) (map[string]any, error)
	PullModel(ctx context.Context, name string) error
}

// Service probes model presence and pulls missing models.
type Service struct {
	inference Inference
	logger    *zap.Logger
}

// New creates a provisioner.
func New(inference Inference, logger *zap.Logger) *Service {
	return &Service{inference: inference, logger: logger}
}

// Ensure returns once the model is available locally. Presence is detected by
// attempting a details fetch; any failure is treated as absence. An absent
// model is pulled with the blocking (non-progress) variant, and a failed pull
// surfaces as a domain.ModelPullError so the calling workflow aborts instead
// of generating against a missing model.
func (s *Service) Ensure(ctx context.Context, model string) error {
	if _, err := s.inference.ShowModel(ctx, model); err == nil {
		return nil
	}

	s.logger.Info("model not found locally, pulling", zap.String("model", model))

	if err := s.inference.PullModel(ctx, model); err != nil {
		metrics.ModelPullsTotal.WithLabelValues("error").Inc()
		return domain.NewModelPullError(model, err)
	}

	metrics.ModelPullsTotal.WithLabelValues("success").Inc()
	s.logger.Info("model pulled", zap.String("model", model))
	return nil
}
