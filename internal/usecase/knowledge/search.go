// Package knowledge searches and loads the knowledge source that grounds generated answers.
package knowledge

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/semroute/internal/domain"
	domknowledge "github.com/kailas-cloud/semroute/internal/domain/knowledge"
)

// DefaultTopK is the number of passages retrieved per query.
const DefaultTopK = 5

// SearchService retrieves candidate passages for a query.
type SearchService struct {
	embedder domain.Embedder
	searcher Searcher
	topK     int
}

// NewSearchService creates a SearchService. topK <= 0 selects DefaultTopK.
func NewSearchService(e domain.Embedder, s Searcher, topK int) *SearchService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &SearchService{embedder: e, searcher: s, topK: topK}
}

// Search returns passages ordered by descending score. A non-nil embedding skips the provider call.
func (s *SearchService) Search(ctx context.Context, query string, embedding []float32) ([]domknowledge.Candidate, error) {
	if embedding == nil {
		res, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: embed query: %w", domain.ErrKnowledgeSource, err)
		}
		embedding = res.Embedding
	}

	candidates, err := s.searcher.Search(ctx, embedding, s.topK)
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}
	return candidates, nil
}
