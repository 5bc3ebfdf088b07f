package health

import "context"

// VectorChecker checks vector store availability.
type VectorChecker interface {
	HealthCheck(ctx context.Context) error
}

// InferenceChecker checks inference backend availability.
type InferenceChecker interface {
	HealthCheck(ctx context.Context) error
}
