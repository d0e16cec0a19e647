// Package health reports the availability of the router's backing services.
package health

import (
	"context"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure. Routing still answers, possibly from fallback only.
	Degraded Status = "degraded"
	// Unhealthy indicates every check failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as check keys.
const (
	ComponentCache     = "cache"
	ComponentKnowledge = "knowledge"
	ComponentEmbedding = "embedding"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	// KnowledgePassages is the indexed passage count, -1 when unknown.
	KnowledgePassages int64
}

// Service coordinates health checks.
type Service struct {
	cache     Pinger
	knowledge KnowledgeCounter
	embedding EmbeddingChecker
	logger    *zap.Logger
}

// New creates a Service. knowledge and embedding can be nil.
func New(cache Pinger, knowledge KnowledgeCounter, embedding EmbeddingChecker, logger *zap.Logger) *Service {
	return &Service{cache: cache, knowledge: knowledge, embedding: embedding, logger: logger}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, 3)
	passages := int64(-1)

	checks[ComponentCache] = s.result(ComponentCache, s.cache.Ping(ctx))

	if s.knowledge != nil {
		n, err := s.knowledge.Count(ctx)
		checks[ComponentKnowledge] = s.result(ComponentKnowledge, err)
		if err == nil {
			passages = n
		}
	}

	if s.embedding != nil {
		checks[ComponentEmbedding] = s.result(ComponentEmbedding, s.embedding.HealthCheck(ctx))
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}
	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks, KnowledgePassages: passages}
}

func (s *Service) result(component string, err error) CheckResult {
	if err != nil {
		s.logger.Warn("Health check failed", zap.String("component", component), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
