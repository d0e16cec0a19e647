// Package tag extracts context tags from free text by keyword matching.
package tag

import (
	"regexp"
	"slices"
	"strings"
)

// DefaultKeywords is the vocabulary used when none is configured.
var DefaultKeywords = []string{
	"india", "online", "data science", "python", "beginner", "advanced",
	"machine learning", "ai", "artificial intelligence", "web development",
	"java", "cloud", "full stack", "part time", "full time", "weekend",
	"certification", "short course", "diploma", "degree",
}

// Tagger matches a fixed vocabulary on word boundaries, case-insensitively.
// It is safe for concurrent use.
type Tagger struct {
	keywords []string
	patterns []*regexp.Regexp
}

// New compiles a Tagger for keywords. Blank and duplicate keywords are dropped;
// an empty list selects DefaultKeywords.
func New(keywords []string) *Tagger {
	seen := make(map[string]bool, len(keywords))
	var kws []string
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		kws = append(kws, k)
	}
	if len(kws) == 0 {
		kws = slices.Clone(DefaultKeywords)
	}

	t := &Tagger{keywords: kws, patterns: make([]*regexp.Regexp, len(kws))}
	for i, k := range kws {
		t.patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k) + `\b`)
	}
	return t
}

// Tag returns the sorted set of vocabulary keywords present in text.
func (t *Tagger) Tag(text string) []string {
	tags := []string{}
	for i, p := range t.patterns {
		if p.MatchString(text) {
			tags = append(tags, t.keywords[i])
		}
	}
	slices.Sort(tags)
	return tags
}

// Keywords returns the active vocabulary.
func (t *Tagger) Keywords() []string {
	return slices.Clone(t.keywords)
}
