package model

// ConfidenceField pairs an extracted value with the extractor's confidence
// in it. Confidence is in [0,1]. A nil Value with high confidence is legal
// (producers should keep confidence low for missing values, but consumers
// must not rely on it).
type ConfidenceField[T any] struct {
	Value      *T      `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Ptr returns a pointer to v. Convenience for building ConfidenceField values.
func Ptr[T any](v T) *T {
	return &v
}

// MinConfidence returns the minimum of the given confidences, or 0 when the
// slice is empty. A record is only as trustworthy as its weakest field, so
// aggregation uses min rather than average: one bad field is enough to pull
// the record to the front of the review queue.
func MinConfidence(confidences []float64) float64 {
	if len(confidences) == 0 {
		return 0
	}
	min := confidences[0]
	for _, c := range confidences[1:] {
		if c < min {
			min = c
		}
	}
	return min
}

// MinScore returns the minimum value of a confidence-score map, or 1 when the
// map is empty. The empty-map default differs deliberately from
// MinConfidence: a persisted row with no recorded scores is treated as fully
// trusted so it never blocks the validation queue.
func MinScore(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 1
	}
	min := 1.0
	first := true
	for _, s := range scores {
		if first || s < min {
			min = s
			first = false
		}
	}
	return min
}
