package badger

import (
	"cmp"
	"math"
	"slices"

	"github.com/poiesic/quarry/core"
)

// cosineSimilarity calculates the cosine similarity of two vectors of equal length.
// Returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// sortScored orders by score descending, then newest first, then by ID.
func sortScored(results []*core.ScoredRecord) {
	slices.SortFunc(results, func(a, b *core.ScoredRecord) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := b.Record.InsertedAt.Compare(a.Record.InsertedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.Id, b.Record.Id)
	})
}

func limitScored(results []*core.ScoredRecord, limit int) []*core.ScoredRecord {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
