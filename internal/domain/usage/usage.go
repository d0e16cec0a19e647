// Package usage models routing usage statistics.
package usage

import (
	"time"

	"github.com/kailas-cloud/semroute/internal/domain/route"
)

// Stage names a timed step of request handling.
type Stage string

// Timed stages.
const (
	StageRoute           Stage = "route"
	StageCacheLookup     Stage = "cache_lookup"
	StageKnowledgeSearch Stage = "knowledge_search"
	StageGenerate        Stage = "generate"
	StageWriteBack       Stage = "write_back"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageRoute, StageCacheLookup, StageKnowledgeSearch, StageGenerate, StageWriteBack}

// StageStats aggregates latencies of one stage.
type StageStats struct {
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

// NewStageStats creates a StageStats snapshot.
func NewStageStats(count int64, total, minD, maxD time.Duration) StageStats {
	return StageStats{count: count, total: total, min: minD, max: maxD}
}

// Observe returns s with one more sample.
func (s StageStats) Observe(d time.Duration) StageStats {
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.count++
	s.total += d
	return s
}

// Count returns the number of samples.
func (s StageStats) Count() int64 { return s.count }

// Total returns the summed latency.
func (s StageStats) Total() time.Duration { return s.total }

// Min returns the smallest sample.
func (s StageStats) Min() time.Duration { return s.min }

// Max returns the largest sample.
func (s StageStats) Max() time.Duration { return s.max }

// Avg returns the mean latency, 0 when empty.
func (s StageStats) Avg() time.Duration {
	if s.count == 0 {
		return 0
	}
	return s.total / time.Duration(s.count)
}

// Report is a point-in-time usage snapshot.
type Report struct {
	since        time.Time
	stages       map[Stage]StageStats
	decisions    map[route.Source]int64
	cacheEntries int64
}

// NewReport creates a Report. cacheEntries is -1 when the store could not be counted.
func NewReport(
	since time.Time, stages map[Stage]StageStats, decisions map[route.Source]int64, cacheEntries int64,
) Report {
	return Report{since: since, stages: stages, decisions: decisions, cacheEntries: cacheEntries}
}

// Since returns when collection started.
func (r Report) Since() time.Time { return r.since }

// Stage returns the stats of one stage (zero value when never observed).
func (r Report) Stage(s Stage) StageStats { return r.stages[s] }

// Decisions returns the number of answers served from source.
func (r Report) Decisions(source route.Source) int64 { return r.decisions[source] }

// TotalDecisions returns the number of routed queries.
func (r Report) TotalDecisions() int64 {
	var n int64
	for _, v := range r.decisions {
		n += v
	}
	return n
}

// CacheHitRate returns the share of decisions answered from cache.
func (r Report) CacheHitRate() float64 {
	total := r.TotalDecisions()
	if total == 0 {
		return 0
	}
	return float64(r.decisions[route.SourceCache]) / float64(total)
}

// CacheEntries returns the number of cached entries, or -1 if unknown.
func (r Report) CacheEntries() int64 { return r.cacheEntries }
