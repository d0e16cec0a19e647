// Package route answers a query from the cache, the knowledge source, or a canned fallback.
package route

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/domain"
	domcache "github.com/kailas-cloud/semroute/internal/domain/cache"
	domknowledge "github.com/kailas-cloud/semroute/internal/domain/knowledge"
	"github.com/kailas-cloud/semroute/internal/domain/relevance"
	domroute "github.com/kailas-cloud/semroute/internal/domain/route"
	domusage "github.com/kailas-cloud/semroute/internal/domain/usage"
	"github.com/kailas-cloud/semroute/internal/logger"
	"github.com/kailas-cloud/semroute/internal/metrics"
	"github.com/kailas-cloud/semroute/internal/usecase/lookup"
)

const (
	// DefaultWriteBackTimeout bounds the cache write after the request deadline is gone.
	DefaultWriteBackTimeout = 2 * time.Second

	snippetLength = 160
)

// Deps are the collaborators of a Service. Scope and Recorder are optional.
type Deps struct {
	Lookup    CacheLookup
	Writer    CacheWriter
	Scope     ScopePolicy
	Knowledge KnowledgeSearcher
	Generator Generator
	Fallback  Fallback
	Recorder  Recorder
}

// Config tunes the pipeline. Zero values select defaults.
type Config struct {
	RequestTimeout     time.Duration
	WriteBackTimeout   time.Duration
	RelevanceThreshold float64
}

// Service routes queries. It holds no per-request state and is safe for concurrent use.
type Service struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a routing Service.
func New(deps Deps, cfg Config, logger *zap.Logger) *Service {
	if cfg.WriteBackTimeout <= 0 {
		cfg.WriteBackTimeout = DefaultWriteBackTimeout
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = relevance.DefaultThreshold
	}
	return &Service{deps: deps, cfg: cfg, logger: logger, now: time.Now}
}

// pending carries what a miss needs for write-back.
type pending struct {
	query     string
	tags      []string
	embedding []float32
	storeDown bool
}

// Route answers query. It never fails: every error resolves to a fallback decision.
func (s *Service) Route(ctx context.Context, query string) domroute.Decision {
	defer s.track(domusage.StageRoute)()
	log := logger.FromContext(ctx, s.logger)

	reqCtx := ctx
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	doneLookup := s.track(domusage.StageCacheLookup)
	res, err := s.deps.Lookup.Lookup(reqCtx, query)
	doneLookup()

	p := pending{query: query, tags: res.Tags, embedding: res.Embedding}
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return s.decide(s.fallback(query, res.Tags))
	case err != nil:
		p.storeDown = errors.Is(err, domain.ErrStoreUnavailable)
		log.Warn("Cache lookup failed, continuing without cache", zap.Error(err))
	case res.Hit:
		return s.decide(domroute.NewDecision(res.Response, domroute.SourceCache, res.Score, res.Tags))
	}

	if s.deps.Scope != nil {
		if v := s.deps.Scope.Check(query); !v.Allowed {
			log.Debug("Query out of scope", zap.String("rule", string(v.Rule)), zap.String("matched", v.Matched))
			// Not cached: a later scope change must take effect for repeated queries.
			metrics.CacheWriteBackTotal.WithLabelValues("skipped").Inc()
			return s.decide(s.fallback(query, res.Tags))
		}
	}

	d := s.answer(reqCtx, log, query, res)
	s.writeBack(ctx, log, p, d.Text())
	return s.decide(d)
}

// answer runs knowledge search, the relevance gate and generation.
func (s *Service) answer(ctx context.Context, log *zap.Logger, query string, res lookup.Result) domroute.Decision {
	doneSearch := s.track(domusage.StageKnowledgeSearch)
	candidates, err := s.deps.Knowledge.Search(ctx, query, res.Embedding)
	doneSearch()
	if err != nil {
		log.Warn("Knowledge search failed", zap.Error(err))
		return s.fallback(query, res.Tags)
	}

	verdict := relevance.Decide(candidates, s.cfg.RelevanceThreshold)
	if !verdict.Relevant {
		log.Debug("No relevant passages", zap.Int("candidates", len(candidates)), zap.Float64("best", verdict.Confidence()))
		return s.fallback(query, res.Tags)
	}

	passages, snippets := s.relevant(candidates)
	doneGen := s.track(domusage.StageGenerate)
	text, _, err := s.deps.Generator.Generate(ctx, query, passages)
	doneGen()
	if err != nil {
		log.Warn("Answer generation failed", zap.Error(err))
		return s.fallback(query, res.Tags)
	}

	text, usedFallback := s.deps.Fallback.Finish(query, text)
	if usedFallback {
		log.Debug("Generated answer rejected by post-processing")
		return domroute.NewDecision(text, domroute.SourceFallback, 0, res.Tags).
			WithSuggestions(s.deps.Fallback.Suggestions(query))
	}
	return domroute.NewDecision(text, domroute.SourceKnowledge, verdict.Confidence(), res.Tags).
		WithSources(snippets)
}

// relevant returns the passages above the threshold and short snippets of them, in candidate order.
func (s *Service) relevant(candidates []domknowledge.Candidate) (passages, snippets []string) {
	for i := range candidates {
		c := &candidates[i]
		if c.Score() <= s.cfg.RelevanceThreshold {
			continue
		}
		passages = append(passages, c.Content())
		snippets = append(snippets, snippet(c.Content()))
	}
	return passages, snippets
}

func (s *Service) fallback(query string, tags []string) domroute.Decision {
	return domroute.NewDecision(s.deps.Fallback.FallbackFor(query), domroute.SourceFallback, 0, tags).
		WithSuggestions(s.deps.Fallback.Suggestions(query))
}

// writeBack caches the served text. It runs after the request deadline may have expired,
// on a detached context with its own timeout.
func (s *Service) writeBack(ctx context.Context, log *zap.Logger, p pending, text string) {
	if s.deps.Writer == nil || p.storeDown || len(p.embedding) == 0 {
		metrics.CacheWriteBackTotal.WithLabelValues("skipped").Inc()
		return
	}
	defer s.track(domusage.StageWriteBack)()

	entry, err := domcache.New(p.query, text, p.embedding, p.tags, s.now())
	if err != nil {
		log.Warn("Invalid cache entry, skipping write-back", zap.Error(err))
		metrics.CacheWriteBackTotal.WithLabelValues("skipped").Inc()
		return
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteBackTimeout)
	defer cancel()

	err = s.deps.Writer.Insert(wctx, &entry)
	switch {
	case err == nil:
		metrics.CacheWriteBackTotal.WithLabelValues("inserted").Inc()
		return
	case errors.Is(err, domain.ErrDuplicateKey):
		if err = s.deps.Writer.BumpUsage(wctx, entry.QueryHash()); err == nil {
			metrics.CacheWriteBackTotal.WithLabelValues("bumped").Inc()
			return
		}
	}
	log.Warn("Cache write-back failed", zap.String("hash", entry.QueryHash()), zap.Error(err))
	metrics.CacheWriteBackTotal.WithLabelValues("error").Inc()
}

func (s *Service) decide(d domroute.Decision) domroute.Decision {
	if s.deps.Recorder != nil {
		s.deps.Recorder.ObserveDecision(d.Source())
	}
	return d
}

func (s *Service) track(stage domusage.Stage) func() {
	if s.deps.Recorder == nil {
		return func() {}
	}
	return s.deps.Recorder.Track(stage)
}

func snippet(content string) string {
	r := []rune(content)
	if len(r) <= snippetLength {
		return content
	}
	return string(r[:snippetLength]) + "..."
}
