package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	vectors   VectorChecker
	inference InferenceChecker
}

// New creates a Service.
func New(vectors VectorChecker, inference InferenceChecker) *Service {
	return &Service{vectors: vectors, inference: inference}
}

// Check probes both backends. Either failing degrades the gateway; the
// endpoint itself still answers.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.vectors.HealthCheck(ctx); err != nil {
		checks["qdrant"] = CheckError
	} else {
		checks["qdrant"] = CheckOK
	}

	if err := s.inference.HealthCheck(ctx); err != nil {
		checks["ollama"] = CheckError
	} else {
		checks["ollama"] = CheckOK
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
