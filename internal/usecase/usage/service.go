// Package usage aggregates per-stage routing latencies and decision counts.
package usage

import (
	"context"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/domain/route"
	domusage "github.com/kailas-cloud/semroute/internal/domain/usage"
	"github.com/kailas-cloud/semroute/internal/metrics"
)

// Service records routing usage in memory and mirrors it to Prometheus.
// One Service is owned by the router; it is safe for concurrent use.
type Service struct {
	mu        sync.Mutex
	since     time.Time
	stages    map[domusage.Stage]domusage.StageStats
	decisions map[route.Source]int64

	counter EntryCounter
	logger  *zap.Logger
}

// New creates a Service. counter can be nil (cache size unknown).
func New(counter EntryCounter, logger *zap.Logger) *Service {
	return &Service{
		since:     time.Now().UTC(),
		stages:    make(map[domusage.Stage]domusage.StageStats, len(domusage.Stages)),
		decisions: make(map[route.Source]int64, 3),
		counter:   counter,
		logger:    logger,
	}
}

// ObserveStage records one latency sample for stage.
func (s *Service) ObserveStage(stage domusage.Stage, d time.Duration) {
	s.mu.Lock()
	s.stages[stage] = s.stages[stage].Observe(d)
	s.mu.Unlock()

	metrics.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// ObserveDecision counts one answer served from source.
func (s *Service) ObserveDecision(source route.Source) {
	s.mu.Lock()
	s.decisions[source]++
	s.mu.Unlock()

	metrics.RouteDecisionsTotal.WithLabelValues(string(source)).Inc()
}

// Track starts timing stage; call the returned func when the stage ends.
func (s *Service) Track(stage domusage.Stage) func() {
	start := time.Now()
	return func() { s.ObserveStage(stage, time.Since(start)) }
}

// GetUsageStats returns a snapshot. Cache size is -1 when the store cannot be counted.
func (s *Service) GetUsageStats(ctx context.Context) domusage.Report {
	entries := int64(-1)
	if s.counter != nil {
		n, err := s.counter.Count(ctx)
		if err != nil {
			s.logger.Warn("Failed to count cache entries", zap.Error(err))
		} else {
			entries = n
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return domusage.NewReport(s.since, maps.Clone(s.stages), maps.Clone(s.decisions), entries)
}
