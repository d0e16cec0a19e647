// Package cache defines the cached question/answer aggregate.
package cache

import (
	"errors"
	"slices"
	"time"
)

// Entry is a cached answer keyed by the normalized query hash.
// Entries are never deleted by request handling; only usage bumps mutate them.
type Entry struct {
	queryHash      string
	queryText      string
	responseText   string
	embedding      []float32
	tags           []string
	frequency      int64
	createdAt      time.Time
	lastAccessedAt time.Time
}

// New validates and creates an Entry with frequency 1.
func New(queryText, responseText string, embedding []float32, tags []string, now time.Time) (Entry, error) {
	if Normalize(queryText) == "" {
		return Entry{}, errors.New("query text is required")
	}
	if responseText == "" {
		return Entry{}, errors.New("response text is required")
	}
	if len(embedding) == 0 {
		return Entry{}, errors.New("embedding is required")
	}

	now = now.UTC()
	return Entry{
		queryHash:      Hash(queryText),
		queryText:      queryText,
		responseText:   responseText,
		embedding:      slices.Clone(embedding),
		tags:           normalizeTags(tags),
		frequency:      1,
		createdAt:      now,
		lastAccessedAt: now,
	}, nil
}

// Reconstruct creates an Entry without validation (storage hydration).
func Reconstruct(
	queryHash, queryText, responseText string, embedding []float32, tags []string,
	frequency int64, createdAt, lastAccessedAt time.Time,
) Entry {
	return Entry{
		queryHash:      queryHash,
		queryText:      queryText,
		responseText:   responseText,
		embedding:      embedding,
		tags:           tags,
		frequency:      frequency,
		createdAt:      createdAt,
		lastAccessedAt: lastAccessedAt,
	}
}

// QueryHash returns the exact-match key.
func (e *Entry) QueryHash() string { return e.queryHash }

// QueryText returns the original query as it was first asked.
func (e *Entry) QueryText() string { return e.queryText }

// ResponseText returns the cached answer.
func (e *Entry) ResponseText() string { return e.responseText }

// Embedding returns the query embedding.
func (e *Entry) Embedding() []float32 { return e.embedding }

// Tags returns the context tags extracted from the query.
func (e *Entry) Tags() []string { return e.tags }

// Frequency returns how many times the entry was served or written.
func (e *Entry) Frequency() int64 { return e.frequency }

// CreatedAt returns the insertion time.
func (e *Entry) CreatedAt() time.Time { return e.createdAt }

// LastAccessedAt returns the time of the latest usage bump.
func (e *Entry) LastAccessedAt() time.Time { return e.lastAccessedAt }

// SharesTag reports whether the entry carries at least one of tags.
func (e *Entry) SharesTag(tags []string) bool {
	for _, t := range tags {
		if slices.Contains(e.tags, t) {
			return true
		}
	}
	return false
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	out := slices.Clone(tags)
	slices.Sort(out)
	return slices.Compact(out)
}
