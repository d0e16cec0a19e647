// Package knowledge defines passages retrieved from the knowledge source.
package knowledge

// Candidate is a retrieved passage with a similarity score in [0,1]. Transient.
type Candidate struct {
	id      string
	content string
	source  string
	score   float64
}

// NewCandidate creates a Candidate.
func NewCandidate(id, content string, score float64) Candidate {
	return Candidate{id: id, content: content, score: score}
}

// WithSource returns a copy labelled with the document the passage came from.
func (c Candidate) WithSource(source string) Candidate {
	c.source = source
	return c
}

// ID returns the source chunk identifier, if known.
func (c *Candidate) ID() string { return c.id }

// Content returns the passage text.
func (c *Candidate) Content() string { return c.content }

// Score returns the relevance score.
func (c *Candidate) Score() float64 { return c.score }

// Source returns the originating document label, empty when unknown.
func (c *Candidate) Source() string { return c.source }
