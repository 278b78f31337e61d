package retrieval

import "errors"

var (
	// ErrInvalidOptions indicates retrieval options failed validation.
	ErrInvalidOptions = errors.New("invalid retrieval options")

	// ErrSeedNotFound indicates the citation seed document is not visible to the tenant.
	ErrSeedNotFound = errors.New("citation seed not found")

	// ErrTooFewParaphrases indicates multi-query expansion could not produce two
	// distinct sub-queries.
	ErrTooFewParaphrases = errors.New("too few paraphrases")
)
