// Package lookup answers queries from the response cache by exact hash or by embedding similarity.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/domain"
	domcache "github.com/kailas-cloud/semroute/internal/domain/cache"
	"github.com/kailas-cloud/semroute/internal/domain/vector"
	"github.com/kailas-cloud/semroute/internal/logger"
)

const (
	// DefaultThreshold is the similarity a cached query must exceed to be reused.
	DefaultThreshold = 0.85
	// DefaultCandidateWindow is how many nearest neighbours are re-ranked.
	DefaultCandidateWindow = 20
)

// Result is the outcome of one lookup.
// Embedding and Tags are filled whenever the semantic path ran, so callers can reuse them on write-back.
type Result struct {
	Hit       bool
	Exact     bool
	Response  string
	Score     float64
	QueryHash string
	Tags      []string
	Embedding []float32
}

// Config tunes the semantic path.
type Config struct {
	Threshold       float64
	CandidateWindow int
}

// Service implements the two-tier cache lookup.
type Service struct {
	store     Store
	embedder  domain.Embedder
	tagger    Tagger
	threshold float64
	window    int
	logger    *zap.Logger
}

// New creates a lookup Service. Zero config values fall back to the defaults.
func New(s Store, e domain.Embedder, t Tagger, cfg Config, l *zap.Logger) *Service {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.CandidateWindow <= 0 {
		cfg.CandidateWindow = DefaultCandidateWindow
	}
	return &Service{
		store:     s,
		embedder:  e,
		tagger:    t,
		threshold: cfg.Threshold,
		window:    cfg.CandidateWindow,
		logger:    l,
	}
}

// Lookup tries the exact path, then the semantic path.
// A miss is a Result with Hit false and a nil error. Embedding failures degrade to a miss.
// Store failures return an error wrapping domain.ErrStoreUnavailable.
func (s *Service) Lookup(ctx context.Context, query string) (Result, error) {
	if domcache.Normalize(query) == "" {
		return Result{}, domain.ErrInvalidQuery
	}
	log := logger.FromContext(ctx, s.logger)
	res := Result{QueryHash: domcache.Hash(query)}

	entry, err := s.store.FindExact(ctx, res.QueryHash)
	switch {
	case err == nil:
		s.bump(ctx, log, res.QueryHash)
		res.Hit, res.Exact = true, true
		res.Response, res.Score = entry.ResponseText(), 1.0
		res.Tags = entry.Tags()
		res.Embedding = entry.Embedding()
		return res, nil
	case !errors.Is(err, domain.ErrNotFound):
		return res, fmt.Errorf("exact lookup: %w", err)
	}

	res.Tags = s.tagger.Tag(query)
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Warn("Embedding failed, treating as cache miss", zap.Error(err))
		return res, nil
	}
	res.Embedding = emb.Embedding

	candidates, err := s.store.FindNearest(ctx, res.Embedding, s.window)
	if err != nil {
		return res, fmt.Errorf("semantic lookup: %w", err)
	}

	best, score, ok := s.pick(res.Embedding, res.Tags, candidates)
	if !ok {
		return res, nil
	}

	s.bump(ctx, log, best.QueryHash())
	res.Hit = true
	res.Response, res.Score = best.ResponseText(), score
	log.Debug("Semantic cache hit",
		zap.String("matched_hash", best.QueryHash()),
		zap.Float64("similarity", score),
	)
	return res, nil
}

type scored struct {
	entry domcache.Entry
	sim   float64
}

// pick re-ranks candidates by exact cosine similarity and returns the best one strictly above the threshold.
// Candidates must share a tag with the query unless the query has no tags.
// Ties go to higher frequency, then to the most recently accessed entry.
func (s *Service) pick(emb []float32, tags []string, candidates []domcache.Entry) (domcache.Entry, float64, bool) {
	eligible := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if len(tags) > 0 && !c.SharesTag(tags) {
			continue
		}
		sim := vector.Cosine(emb, c.Embedding())
		if sim > s.threshold {
			eligible = append(eligible, scored{entry: c, sim: sim})
		}
	}
	if len(eligible) == 0 {
		return domcache.Entry{}, 0, false
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.sim != b.sim {
			return a.sim > b.sim
		}
		if a.entry.Frequency() != b.entry.Frequency() {
			return a.entry.Frequency() > b.entry.Frequency()
		}
		return a.entry.LastAccessedAt().After(b.entry.LastAccessedAt())
	})
	return eligible[0].entry, eligible[0].sim, true
}

func (s *Service) bump(ctx context.Context, log *zap.Logger, hash string) {
	if err := s.store.BumpUsage(ctx, hash); err != nil {
		log.Warn("Failed to bump cache usage", zap.String("hash", hash), zap.Error(err))
	}
}
