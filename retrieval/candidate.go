package retrieval

import (
	"cmp"
	"slices"
	"strconv"
	"time"

	"github.com/poiesic/quarry/core"
)

// Candidate is one document-level hit of a retrieval algorithm.
//
// Tier encodes ordering rules that score adjustments must never override: the
// sub-query frequency of multi-query expansion, exact formula matches above
// semantic ones, complete methods records above incomplete ones and citation
// proximity. Candidates order by Tier, then Score, then Similarity.
type Candidate struct {
	DocumentID core.ID
	Document   *core.Document // nil until resolved
	Stub       *core.Citation // set for cited works outside the corpus
	Record     *core.Record   // best matching record
	Sections   []*core.ScoredRecord

	Tier       int
	Score      float32
	Similarity float32 // best cosine similarity, zero for lexical-only matches
	Lexical    bool
	Exact      bool
	Hits       int // sub-queries that surfaced the document
	Hops       int // citation distance from the seed
	Demoted    bool

	Provenance []string
}

// Key returns the identity candidates are deduplicated by: the document ID, or the
// bibliographic identity of a stub.
func (c *Candidate) Key() string {
	if c.Stub != nil && c.DocumentID == 0 {
		return "cite:" + c.Stub.CitedKey()
	}
	return "doc:" + strconv.FormatUint(uint64(c.DocumentID), 10)
}

// Text returns the text relevance is judged on.
func (c *Candidate) Text() string {
	switch {
	case c.Record != nil:
		return c.Record.Text
	case c.Document != nil:
		return c.Document.Title
	case c.Stub != nil:
		return c.Stub.CitedTitle
	}
	return ""
}

func (c *Candidate) insertedAt() time.Time {
	switch {
	case c.Record != nil:
		return c.Record.InsertedAt
	case c.Document != nil:
		return c.Document.InsertedAt
	case c.Stub != nil:
		return c.Stub.InsertedAt
	}
	return time.Time{}
}

func (c *Candidate) addProvenance(entries ...string) {
	for _, e := range entries {
		if !slices.Contains(c.Provenance, e) {
			c.Provenance = append(c.Provenance, e)
		}
	}
}

// compareCandidates orders by tier, score and similarity descending, then newest
// first, then by key.
func compareCandidates(a, b *Candidate) int {
	if c := cmp.Compare(b.Tier, a.Tier); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
		return c
	}
	if c := b.insertedAt().Compare(a.insertedAt()); c != 0 {
		return c
	}
	return cmp.Compare(a.Key(), b.Key())
}

// SortCandidates sorts candidates into their deterministic ranking order.
func SortCandidates(candidates []*Candidate) {
	slices.SortStableFunc(candidates, compareCandidates)
}

// collapse sorts candidates and keeps the best candidate per key. Provenance of
// dropped duplicates is merged into the kept one.
func collapse(candidates []*Candidate) []*Candidate {
	SortCandidates(candidates)
	kept := make(map[string]*Candidate, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if best, ok := kept[c.Key()]; ok {
			best.addProvenance(c.Provenance...)
			best.Lexical = best.Lexical || c.Lexical
			continue
		}
		kept[c.Key()] = c
		out = append(out, c)
	}
	return out
}

// fromRecord builds a candidate for a scored record.
func fromRecord(sr *core.ScoredRecord, provenance string) *Candidate {
	return &Candidate{
		DocumentID: sr.Record.DocumentId,
		Record:     sr.Record,
		Score:      sr.Score,
		Similarity: sr.Score,
		Provenance: []string{provenance},
	}
}
