package match

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 1.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{-1, 0, 0},
			expected: -1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0},
			b:        []float32{0, 1},
			expected: 0.0,
		},
		{
			name:     "zero vector",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "both zero",
			a:        []float32{0, 0},
			b:        []float32{0, 0},
			expected: 0.0,
		},
		{
			name:     "length mismatch",
			a:        []float32{1, 2},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if !almostEqual(got, tt.expected, 1e-9) {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	pairs := [][2][]float32{
		{{0.3, -0.7, 0.2}, {0.1, 0.9, -0.4}},
		{{1, 1, 1, 1}, {2, 0, -1, 3}},
		{{0.5}, {-0.5}},
	}
	for _, p := range pairs {
		ab := CosineSimilarity(p[0], p[1])
		ba := CosineSimilarity(p[1], p[0])
		if ab != ba {
			t.Errorf("similarity not symmetric: sim(a,b)=%v sim(b,a)=%v", ab, ba)
		}
		if ab < -1 || ab > 1 {
			t.Errorf("similarity %v outside [-1, 1]", ab)
		}
	}
}

func TestConfidence(t *testing.T) {
	const threshold = 0.70

	tests := []struct {
		name       string
		similarity float64
		expected   float64
	}{
		{"below threshold", 0.69, 0},
		{"exactly at threshold", 0.70, 0},
		{"just above threshold", 0.701, 0.5 + 0.5*(0.001/0.3)},
		{"midway", 0.85, 0.75},
		{"perfect match", 1.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.similarity, threshold)
			if !almostEqual(got, tt.expected, 1e-9) {
				t.Errorf("Confidence(%v, %v) = %v, want %v", tt.similarity, threshold, got, tt.expected)
			}
		})
	}
}

func TestConfidenceMonotonic(t *testing.T) {
	const threshold = 0.70
	prev := -1.0
	for sim := threshold; sim <= 1.0; sim += 0.001 {
		c := Confidence(sim, threshold)
		if c < prev {
			t.Fatalf("confidence decreased at similarity %v: %v < %v", sim, c, prev)
		}
		if c < 0 || c > 1 {
			t.Fatalf("confidence %v outside [0, 1] at similarity %v", c, sim)
		}
		prev = c
	}
}

func TestCompareRankingAndThreshold(t *testing.T) {
	query := []float32{1, 0, 0}
	candidates := []Candidate{
		{ID: "case-c", Descriptor: []float32{1, 0, 0}},      // sim 1.0
		{ID: "case-a", Descriptor: []float32{1, 0.2, 0}},    // high
		{ID: "case-b", Descriptor: []float32{0, 1, 0}},      // sim 0, dropped
		{ID: "case-d", Descriptor: []float32{-1, 0, 0}},     // sim -1, dropped
		{ID: "case-e", Descriptor: []float32{1, 0.0001, 0}}, // ~1.0
	}

	result, err := Compare(query, candidates, 0.70)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if result.Considered != 5 {
		t.Errorf("considered = %d, want 5", result.Considered)
	}
	if result.Threshold != 0.70 {
		t.Errorf("threshold = %v, want 0.70", result.Threshold)
	}
	if len(result.Matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(result.Matches))
	}

	// Descending by similarity.
	for i := 1; i < len(result.Matches); i++ {
		if result.Matches[i].Similarity > result.Matches[i-1].Similarity {
			t.Errorf("matches not sorted descending at index %d", i)
		}
	}
	if result.Best().CaseID != "case-c" {
		t.Errorf("best match = %s, want case-c", result.Best().CaseID)
	}
	if !almostEqual(result.Best().Confidence, 1.0, 1e-9) {
		t.Errorf("perfect match confidence = %v, want 1.0", result.Best().Confidence)
	}
	if !almostEqual(result.Closest, 1.0, 1e-9) {
		t.Errorf("closest = %v, want 1.0", result.Closest)
	}
}

func TestCompareTieBreakByID(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{ID: "zulu", Descriptor: []float32{1, 0}},
		{ID: "alpha", Descriptor: []float32{1, 0}},
		{ID: "mike", Descriptor: []float32{1, 0}},
	}

	result, err := Compare(query, candidates, 0.5)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	want := []string{"alpha", "mike", "zulu"}
	if len(result.Matches) != len(want) {
		t.Fatalf("expected %d matches, got %d", len(want), len(result.Matches))
	}
	for i, id := range want {
		if result.Matches[i].CaseID != id {
			t.Errorf("match[%d] = %s, want %s", i, result.Matches[i].CaseID, id)
		}
	}
}

func TestCompareDimensionMismatch(t *testing.T) {
	query := []float32{1, 0, 0}
	candidates := []Candidate{
		{ID: "good", Descriptor: []float32{1, 0, 0}},
		{ID: "short", Descriptor: []float32{1, 0}},
	}

	_, err := Compare(query, candidates, 0.70)
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	var dimErr *DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionMismatchError, got %T", err)
	}
	if dimErr.CaseID != "short" || dimErr.Got != 2 || dimErr.Want != 3 {
		t.Errorf("unexpected error detail: %+v", dimErr)
	}
}

func TestCompareNoCandidates(t *testing.T) {
	result, err := Compare([]float32{1, 0}, nil, 0.70)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(result.Matches) != 0 || result.Considered != 0 {
		t.Errorf("unexpected result for empty candidate set: %+v", result)
	}
	if result.Best() != nil {
		t.Error("Best() must be nil for empty result")
	}
}

func TestCompareExactlyAtThreshold(t *testing.T) {
	// Construct vectors with cosine similarity exactly 0 against the query,
	// then use a 0 threshold so "at threshold" is representable exactly.
	query := []float32{1, 0}
	candidates := []Candidate{{ID: "edge", Descriptor: []float32{0, 1}}}

	result, err := Compare(query, candidates, 0)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("candidate exactly at threshold must be retained, got %d matches", len(result.Matches))
	}
	if result.Matches[0].Confidence != 0 {
		t.Errorf("confidence exactly at threshold = %v, want 0", result.Matches[0].Confidence)
	}
}
