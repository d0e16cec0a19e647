// Package route defines the outcome of routing a query.
package route

import "slices"

// Source identifies which path produced an answer.
type Source string

// Answer sources.
const (
	SourceCache     Source = "cache"
	SourceKnowledge Source = "knowledge"
	SourceFallback  Source = "fallback"
)

// Decision is the routed answer. Transient; it feeds cache write-back.
type Decision struct {
	text        string
	source      Source
	confidence  float64
	matchedTags []string
	suggestions []string
	sources     []string
}

// NewDecision creates a Decision.
func NewDecision(text string, source Source, confidence float64, matchedTags []string) Decision {
	if matchedTags == nil {
		matchedTags = []string{}
	}
	return Decision{text: text, source: source, confidence: confidence, matchedTags: matchedTags}
}

// WithSuggestions returns a copy carrying follow-up topic suggestions.
func (d Decision) WithSuggestions(s []string) Decision {
	d.suggestions = slices.Clone(s)
	return d
}

// WithSources returns a copy carrying snippets of the passages used.
func (d Decision) WithSources(s []string) Decision {
	d.sources = slices.Clone(s)
	return d
}

// Text returns the answer text.
func (d *Decision) Text() string { return d.text }

// Source returns which path answered.
func (d *Decision) Source() Source { return d.source }

// Confidence returns the similarity (cache) or best relevance score (knowledge); 0 for fallback.
func (d *Decision) Confidence() float64 { return d.confidence }

// MatchedTags returns the context tags extracted from the query.
func (d *Decision) MatchedTags() []string { return d.matchedTags }

// Suggestions returns follow-up topic suggestions, if any.
func (d *Decision) Suggestions() []string { return d.suggestions }

// Sources returns snippets of the knowledge passages used, if any.
func (d *Decision) Sources() []string { return d.sources }
