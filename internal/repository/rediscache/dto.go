package rediscache

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	domcache "github.com/kailas-cloud/semroute/internal/domain/cache"
	"github.com/kailas-cloud/semroute/internal/domain/vector"
)

const (
	fieldQuery        = "query"
	fieldResponse     = "response"
	fieldVector       = "vector"
	fieldTags         = "tags"
	fieldFrequency    = "frequency"
	fieldCreatedAt    = "created_at"
	fieldLastAccessed = "last_accessed_at"

	tagSeparator = "|"
)

var entryFields = []string{
	fieldQuery, fieldResponse, fieldVector, fieldTags, fieldFrequency, fieldCreatedAt, fieldLastAccessed,
}

// toArgs flattens e into HSET field/value pairs in a fixed order.
func toArgs(e *domcache.Entry) []string {
	return []string{
		fieldQuery, e.QueryText(),
		fieldResponse, e.ResponseText(),
		fieldVector, rueidis.BinaryString(vector.ToBytes(e.Embedding())),
		fieldTags, strings.Join(e.Tags(), tagSeparator),
		fieldFrequency, strconv.FormatInt(e.Frequency(), 10),
		fieldCreatedAt, strconv.FormatInt(e.CreatedAt().UnixMilli(), 10),
		fieldLastAccessed, strconv.FormatInt(e.LastAccessedAt().UnixMilli(), 10),
	}
}

// fromHash hydrates an entry from its hash fields.
func fromHash(hash string, m map[string]string) (domcache.Entry, error) {
	emb, err := vector.FromBytes([]byte(m[fieldVector]))
	if err != nil {
		return domcache.Entry{}, fmt.Errorf("decode vector: %w", err)
	}
	freq, err := strconv.ParseInt(m[fieldFrequency], 10, 64)
	if err != nil {
		return domcache.Entry{}, fmt.Errorf("parse frequency: %w", err)
	}
	created, err := parseMillis(m[fieldCreatedAt])
	if err != nil {
		return domcache.Entry{}, fmt.Errorf("parse created_at: %w", err)
	}
	accessed, err := parseMillis(m[fieldLastAccessed])
	if err != nil {
		return domcache.Entry{}, fmt.Errorf("parse last_accessed_at: %w", err)
	}

	tags := []string{}
	if raw := m[fieldTags]; raw != "" {
		tags = strings.Split(raw, tagSeparator)
	}

	return domcache.Reconstruct(hash, m[fieldQuery], m[fieldResponse], emb, tags, freq, created, accessed), nil
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
