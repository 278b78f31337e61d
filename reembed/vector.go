package reembed

import (
	"math"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
)

// NormalizeVector scales v to unit length. A zero vector stays zero.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// conform checks v against the declared dimension of space and normalizes it.
func conform(v []float32, space ai.EmbeddingSpace) ([]float32, error) {
	if len(v) != space.Dimension {
		return nil, &core.DimensionMismatchError{
			Kind:       space.Kind,
			Generation: space.Generation,
			Expected:   space.Dimension,
			Got:        len(v),
		}
	}
	return NormalizeVector(v), nil
}
