// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package retrieval

import (
	"cmp"
	"slices"
)

// Ranked is an aggregated candidate with its per-algorithm ranks.
type Ranked struct {
	*Candidate
	// Ranks maps algorithm name to the 1-based rank of the candidate in its list.
	Ranks map[string]int
	// RankSum sums the ranks over every list. A list that missed the candidate
	// contributes its length plus one.
	RankSum int
	bestRank int
}

// Aggregate deduplicates candidates across algorithm lists by document identity and
// orders them by rank sum, lowest first. Ties go to the better single rank, then to
// the candidate found by more lists, then newest first, then by key. Truncation to
// limit happens after merging; limit <= 0 keeps everything.
func Aggregate(outputs []*Output, limit int) []*Ranked {
	var merged []*Ranked
	byKey := make(map[string]*Ranked)

	for _, out := range outputs {
		seen := make(map[string]bool, len(out.Candidates))
		rank := 0
		for _, c := range out.Candidates {
			key := c.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			rank++

			r, ok := byKey[key]
			if !ok {
				r = &Ranked{Candidate: c, Ranks: make(map[string]int), bestRank: rank}
				byKey[key] = r
				merged = append(merged, r)
			} else {
				absorb(r, c, rank)
			}
			r.Ranks[out.Algorithm] = rank
		}
	}

	for _, r := range merged {
		for _, out := range outputs {
			if rank, ok := r.Ranks[out.Algorithm]; ok {
				r.RankSum += rank
			} else {
				r.RankSum += distinct(out.Candidates) + 1
			}
		}
	}

	slices.SortStableFunc(merged, func(a, b *Ranked) int {
		if c := cmp.Compare(a.RankSum, b.RankSum); c != 0 {
			return c
		}
		if c := cmp.Compare(a.bestRank, b.bestRank); c != 0 {
			return c
		}
		if c := cmp.Compare(len(b.Ranks), len(a.Ranks)); c != 0 {
			return c
		}
		if c := b.insertedAt().Compare(a.insertedAt()); c != 0 {
			return c
		}
		return cmp.Compare(a.Key(), b.Key())
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// absorb merges a duplicate candidate found by another list at rank. The entry of
// the list ranking the candidate best represents it; provenance and sections are
// combined.
func absorb(r *Ranked, c *Candidate, rank int) {
	base := r.Candidate
	if rank < r.bestRank {
		r.bestRank = rank
		c.addProvenance(base.Provenance...)
		if len(c.Sections) == 0 {
			c.Sections = base.Sections
		}
		if c.Document == nil {
			c.Document = base.Document
		}
		if c.Record == nil {
			c.Record = base.Record
		}
		r.Candidate = c
		return
	}
	base.addProvenance(c.Provenance...)
	if len(base.Sections) == 0 {
		base.Sections = c.Sections
	}
	if base.Document == nil {
		base.Document = c.Document
	}
	if base.Record == nil {
		base.Record = c.Record
	}
}

func distinct(candidates []*Candidate) int {
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[c.Key()] = true
	}
	return len(seen)
}
