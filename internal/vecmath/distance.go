package vecmath

import (
	"fmt"
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b.
// A zero-magnitude vector has similarity 0 with everything.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vecmath: dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Scored is a candidate with its similarity to a query.
type Scored struct {
	ID    string
	Score float64
}

// TopK sorts candidates best first and returns at most k of them.
// Equal scores are ordered by ID so results are deterministic.
func TopK(candidates []Scored, k int) []Scored {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k]
}
