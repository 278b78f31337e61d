package retrieval

import (
	"fmt"
	"time"

	"github.com/poiesic/quarry/core"
)

// Options tunes the retrieval executors and enhancements.
type Options struct {
	// CandidateLimit caps the records returned by one storage primitive call.
	CandidateLimit int `yaml:"candidate_limit"`
	// MinSimilarity discards hybrid semantic matches scoring below it.
	MinSimilarity float32 `yaml:"min_similarity"`
	// LexicalBoost is added to the score of records matching the query terms.
	LexicalBoost float32 `yaml:"lexical_boost"`
	// FormulaFloor discards semantic-only formula matches scoring below it.
	FormulaFloor float32 `yaml:"formula_floor"`
	// Paraphrases is the number of sub-queries multi-query expansion asks for (2-4).
	Paraphrases int `yaml:"paraphrases"`
	// StageOneWidth is the number of documents hierarchical retrieval keeps in stage one.
	StageOneWidth int `yaml:"stage_one_width"`
	// SectionsPerDocument is the number of sections attached per document.
	SectionsPerDocument int `yaml:"sections_per_document"`
	// CitationDepth is the default traversal depth.
	CitationDepth int `yaml:"citation_depth"`
	// CitationDirection is the default traversal direction.
	CitationDirection core.Direction `yaml:"citation_direction"`
	// RerankWeight scales the term overlap bonus applied by reranking.
	RerankWeight float32 `yaml:"rerank_weight"`
	// ExpansionTerms is the number of feedback terms query expansion appends.
	ExpansionTerms int `yaml:"expansion_terms"`
	// FeedbackCandidates is the number of top candidates feedback terms are read from.
	FeedbackCandidates int `yaml:"feedback_candidates"`
	// ExpansionBonus is added to candidates the expanded query surfaces again.
	ExpansionBonus float32 `yaml:"expansion_bonus"`
	// EnhanceWindow is the number of top candidates per-candidate enhancements visit.
	EnhanceWindow int `yaml:"enhance_window"`
	// RejectBelow removes validated sections scoring below it.
	RejectBelow float64 `yaml:"reject_below"`
	// DemoteBelow demotes validated candidates scoring below it.
	DemoteBelow float64 `yaml:"demote_below"`
	// CallTimeout bounds one sub-query of a fan-out.
	CallTimeout time.Duration `yaml:"call_timeout"`
	// PoolSize is the number of fan-out workers.
	PoolSize int `yaml:"pool_size"`
}

// DefaultOptions returns the default tuning.
func DefaultOptions() Options {
	return Options{
		CandidateLimit:      50,
		MinSimilarity:       0.3,
		LexicalBoost:        0.15,
		FormulaFloor:        0.7,
		Paraphrases:         3,
		StageOneWidth:       20,
		SectionsPerDocument: 3,
		CitationDepth:       2,
		CitationDirection:   core.DirectionCites,
		RerankWeight:        0.1,
		ExpansionTerms:      3,
		FeedbackCandidates:  5,
		ExpansionBonus:      0.05,
		EnhanceWindow:       10,
		RejectBelow:         0.3,
		DemoteBelow:         0.6,
		CallTimeout:         10 * time.Second,
		PoolSize:            16,
	}
}

// Validate checks the options for values the executors cannot work with.
func (o Options) Validate() error {
	switch {
	case o.CandidateLimit <= 0:
		return fmt.Errorf("%w: candidate limit must be positive", ErrInvalidOptions)
	case o.Paraphrases < 2 || o.Paraphrases > 4:
		return fmt.Errorf("%w: paraphrases must be between 2 and 4", ErrInvalidOptions)
	case o.StageOneWidth <= 0 || o.SectionsPerDocument <= 0:
		return fmt.Errorf("%w: hierarchical widths must be positive", ErrInvalidOptions)
	case o.CitationDepth <= 0:
		return fmt.Errorf("%w: citation depth must be positive", ErrInvalidOptions)
	case !o.CitationDirection.Valid():
		return fmt.Errorf("%w: unknown citation direction %q", ErrInvalidOptions, o.CitationDirection)
	case o.FormulaFloor < 0 || o.FormulaFloor > 1:
		return fmt.Errorf("%w: formula floor must be within [0, 1]", ErrInvalidOptions)
	case o.RejectBelow > o.DemoteBelow:
		return fmt.Errorf("%w: reject threshold above demote threshold", ErrInvalidOptions)
	case o.EnhanceWindow <= 0:
		return fmt.Errorf("%w: enhance window must be positive", ErrInvalidOptions)
	case o.CallTimeout <= 0:
		return fmt.Errorf("%w: call timeout must be positive", ErrInvalidOptions)
	case o.PoolSize <= 0:
		return fmt.Errorf("%w: pool size must be positive", ErrInvalidOptions)
	}
	return nil
}
