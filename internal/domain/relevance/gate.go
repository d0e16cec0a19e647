// Package relevance decides whether retrieved passages can ground an answer.
package relevance

import "github.com/kailas-cloud/semroute/internal/domain/knowledge"

// DefaultThreshold is the minimum score a passage must exceed.
const DefaultThreshold = 0.7

// Verdict is the outcome of Decide.
type Verdict struct {
	// Relevant is true iff some candidate scored strictly above the threshold.
	Relevant bool
	// Best is the highest-scoring candidate, set whenever candidates is non-empty.
	Best *knowledge.Candidate
}

// Confidence returns the best score, or 0 when there were no candidates.
func (v Verdict) Confidence() float64 {
	if v.Best == nil {
		return 0
	}
	return v.Best.Score()
}

// Decide applies the threshold to candidates. Pure.
// A score exactly equal to the threshold is not relevant.
func Decide(candidates []knowledge.Candidate, threshold float64) Verdict {
	if len(candidates) == 0 {
		return Verdict{}
	}

	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score() > candidates[best].Score() {
			best = i
		}
	}

	b := candidates[best]
	return Verdict{
		Relevant: b.Score() > threshold,
		Best:     &b,
	}
}
