// Package knowledge stores knowledge passages and their embeddings in a Redis vector index.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/semroute/internal/db"
	"github.com/kailas-cloud/semroute/internal/domain"
	domknowledge "github.com/kailas-cloud/semroute/internal/domain/knowledge"
	"github.com/kailas-cloud/semroute/internal/domain/vector"
)

const (
	fieldContent = "content"
	fieldSource  = "source"
	fieldVector  = "vector"
)

// store is the consumer interface for the knowledge index.
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	Del(ctx context.Context, keys ...string) error
}

// Chunk is one passage ready to be indexed.
type Chunk struct {
	ID        string
	Content   string
	Source    string
	Embedding []float32
}

// Config configures the repository.
type Config struct {
	KeyPrefix string // e.g. "semroute:"
	Index     string // e.g. "knowledge"
	VectorDim int
	HNSWM     int
	HNSWEF    int
}

// Repo implements knowledge search and ingest over Redis.
type Repo struct {
	store  store
	index  string
	prefix string
	cfg    Config
}

// New creates a knowledge repository.
func New(s store, cfg Config) *Repo {
	return &Repo{
		store:  s,
		index:  cfg.KeyPrefix + cfg.Index + ":idx",
		prefix: cfg.KeyPrefix + cfg.Index + ":",
		cfg:    cfg,
	}
}

// EnsureSchema creates the vector index if it does not exist yet.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	def, err := db.NewIndex(r.index).
		Prefix(r.prefix).
		Text(fieldContent).
		Tag(fieldSource, ",").
		VectorHNSW(fieldVector, r.cfg.VectorDim, db.DistanceCosine, r.cfg.HNSWM, r.cfg.HNSWEF).
		Build()
	if err != nil {
		return fmt.Errorf("build knowledge index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("%w: create knowledge index: %w", domain.ErrKnowledgeSource, err)
	}
	return nil
}

// Search returns up to k passages ordered by descending cosine similarity.
func (r *Repo) Search(ctx context.Context, embedding []float32, k int) ([]domknowledge.Candidate, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.index,
		VectorField:  fieldVector,
		Vector:       embedding,
		K:            k,
		ReturnFields: []string{fieldContent, fieldSource},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: search: %w", domain.ErrKnowledgeSource, err)
	}

	out := make([]domknowledge.Candidate, 0, len(res.Entries))
	for _, hit := range res.Entries {
		id := strings.TrimPrefix(hit.Key, r.prefix)
		c := domknowledge.NewCandidate(id, hit.Fields[fieldContent], hit.Score).
			WithSource(hit.Fields[fieldSource])
		out = append(out, c)
	}
	return out, nil
}

// Upsert writes chunks in one pipeline. Chunks with the same ID are overwritten.
func (r *Repo) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(chunks))
	for i, c := range chunks {
		if r.cfg.VectorDim > 0 && len(c.Embedding) != r.cfg.VectorDim {
			return fmt.Errorf("chunk %s: %w: got %d, want %d",
				c.ID, domain.ErrVectorDimMismatch, len(c.Embedding), r.cfg.VectorDim)
		}
		items[i] = db.HashSetItem{
			Key: r.prefix + c.ID,
			Fields: map[string]string{
				fieldContent: c.Content,
				fieldSource:  c.Source,
				fieldVector:  rueidis.BinaryString(vector.ToBytes(c.Embedding)),
			},
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: upsert %d chunks: %w", domain.ErrKnowledgeSource, len(chunks), err)
	}
	return nil
}

// Count returns the number of indexed passages.
func (r *Repo) Count(ctx context.Context) (int64, error) {
	n, err := r.store.SearchCount(ctx, r.index, "*")
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: count: %w", domain.ErrKnowledgeSource, err)
	}
	return int64(n), nil
}

// Reset deletes every passage and drops the index. EnsureSchema must run before the next Upsert is searchable.
func (r *Repo) Reset(ctx context.Context) error {
	for {
		res, err := r.store.SearchList(ctx, &db.ListQuery{IndexName: r.index, Query: "*", Limit: 500})
		if err != nil {
			if errors.Is(err, db.ErrIndexNotFound) {
				return nil
			}
			return fmt.Errorf("%w: list passages: %w", domain.ErrKnowledgeSource, err)
		}
		if len(res.Entries) == 0 {
			break
		}
		keys := make([]string, len(res.Entries))
		for i, e := range res.Entries {
			keys[i] = e.Key
		}
		if err := r.store.Del(ctx, keys...); err != nil {
			return fmt.Errorf("%w: delete passages: %w", domain.ErrKnowledgeSource, err)
		}
	}
	if err := r.store.DropIndex(ctx, r.index); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("%w: drop index: %w", domain.ErrKnowledgeSource, err)
	}
	return nil
}
