package rediscache

import "github.com/kailas-cloud/semroute/internal/db"

// HNSWConfig tunes the approximate vector index.
type HNSWConfig struct {
	M              int
	EFConstruction int
}

func buildIndex(prefix string, dim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(indexName(prefix)).
		Prefix(entryPrefix(prefix)).
		Tag(fieldTags, tagSeparator).
		Numeric(fieldFrequency).
		SortableNumeric(fieldLastAccessed).
		VectorHNSW(fieldVector, dim, db.DistanceCosine, hnsw.M, hnsw.EFConstruction).
		Build()
}

func entryPrefix(prefix string) string { return prefix + "cache:" }

func indexName(prefix string) string { return prefix + "cache:idx" }
