package route

import (
	"context"

	domcache "github.com/kailas-cloud/semroute/internal/domain/cache"
	domknowledge "github.com/kailas-cloud/semroute/internal/domain/knowledge"
	domroute "github.com/kailas-cloud/semroute/internal/domain/route"
	domusage "github.com/kailas-cloud/semroute/internal/domain/usage"
	"github.com/kailas-cloud/semroute/internal/usecase/lookup"
	"github.com/kailas-cloud/semroute/internal/usecase/scope"
)

// CacheLookup answers from the response cache.
type CacheLookup interface {
	Lookup(ctx context.Context, query string) (lookup.Result, error)
}

// CacheWriter persists routed answers.
type CacheWriter interface {
	Insert(ctx context.Context, e *domcache.Entry) error
	BumpUsage(ctx context.Context, hash string) error
}

// ScopePolicy decides whether a query is in the assistant's subject area.
type ScopePolicy interface {
	Check(query string) scope.Verdict
}

// KnowledgeSearcher retrieves passages. A nil embedding makes the searcher embed the query itself.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, embedding []float32) ([]domknowledge.Candidate, error)
}

// Generator writes an answer from passages.
type Generator interface {
	Generate(ctx context.Context, query string, passages []string) (string, int, error)
}

// Fallback renders canned responses and post-processes generated answers. It never fails.
type Fallback interface {
	FallbackFor(query string) string
	Suggestions(query string) []string
	Finish(query, answer string) (string, bool)
}

// Recorder collects usage statistics. Track starts timing a stage and returns the func that ends it.
type Recorder interface {
	Track(stage domusage.Stage) func()
	ObserveDecision(source domroute.Source)
}
