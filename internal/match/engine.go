// Package match scores query descriptors against stored case descriptors.
package match

import (
	"fmt"
	"math"
	"sort"
)

// DefaultThreshold is the minimum cosine similarity for a candidate to count
// as a match. One configurable default for every caller.
const DefaultThreshold = 0.70

// Candidate pairs a case id with its stored descriptor.
type Candidate struct {
	ID         string
	Descriptor []float32
}

// Match is a single scored candidate. It is derived and never persisted.
type Match struct {
	CaseID     string  `json:"case_id"`
	Similarity float64 `json:"similarity"`
	Confidence float64 `json:"confidence"`
}

// Result holds ranked matches plus audit fields.
type Result struct {
	Matches    []Match `json:"matches"`
	Considered int     `json:"considered"`
	Threshold  float64 `json:"threshold"`
	// Closest is the best similarity seen across all candidates, including
	// ones below the threshold. Diagnostic only.
	Closest float64 `json:"closest"`
}

// Best returns the top-ranked match, or nil when nothing cleared the
// threshold.
func (r *Result) Best() *Match {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// DimensionMismatchError reports a candidate whose descriptor length differs
// from the query's. Candidates are never truncated or padded.
type DimensionMismatchError struct {
	CaseID string
	Got    int
	Want   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("descriptor dimension mismatch for case %s: got %d, want %d", e.CaseID, e.Got, e.Want)
}

// CosineSimilarity computes the cosine similarity between two equal-length
// descriptors. Returns 0 when either vector has zero norm. The result is
// clamped to [-1, 1] to absorb floating point error.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}

// Confidence rescales a similarity relative to the threshold into [0, 1].
// At or below the threshold it is 0; just above maps to ~0.5 and a perfect
// match to 1. Monotonically non-decreasing in similarity.
func Confidence(similarity, threshold float64) float64 {
	if similarity <= threshold || threshold >= 1 {
		return 0
	}
	return math.Min(1, 0.5+0.5*(similarity-threshold)/(1-threshold))
}

// Compare scores the query against every candidate with a full linear scan,
// keeps those at or above the threshold and ranks them by similarity
// descending, ties broken by case id ascending. Candidate sets here are in
// the low thousands, so no index structure is involved.
func Compare(query []float32, candidates []Candidate, threshold float64) (*Result, error) {
	result := &Result{
		Considered: len(candidates),
		Threshold:  threshold,
		Closest:    -1,
	}

	for _, c := range candidates {
		if len(c.Descriptor) != len(query) {
			return nil, &DimensionMismatchError{CaseID: c.ID, Got: len(c.Descriptor), Want: len(query)}
		}

		sim := CosineSimilarity(query, c.Descriptor)
		if sim > result.Closest {
			result.Closest = sim
		}
		if sim < threshold {
			continue
		}

		result.Matches = append(result.Matches, Match{
			CaseID:     c.ID,
			Similarity: sim,
			Confidence: Confidence(sim, threshold),
		})
	}

	sort.Slice(result.Matches, func(i, j int) bool {
		if result.Matches[i].Similarity != result.Matches[j].Similarity {
			return result.Matches[i].Similarity > result.Matches[j].Similarity
		}
		return result.Matches[i].CaseID < result.Matches[j].CaseID
	})

	return result, nil
}
