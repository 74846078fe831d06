package insight

import (
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK ranks candidates against query and keeps the best k. Ties keep the
// newer record first.
func topK(query []float32, candidates []Record, k int) []Match {
	if k <= 0 || len(query) == 0 {
		return nil
	}
	out := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(query) {
			continue
		}
		out = append(out, Match{Record: c, Score: Cosine(query, c.Vector)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
