package ai

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/poiesic/quarry/core"
)

// SpacesFor returns the spaces of kind, current generation first, then by generation name.
func SpacesFor(spaces []EmbeddingSpace, kind core.ContentType) []EmbeddingSpace {
	var out []EmbeddingSpace
	for _, s := range spaces {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b EmbeddingSpace) int {
		if a.Current != b.Current {
			if a.Current {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Generation, b.Generation)
	})
	return out
}

// CurrentSpace returns the current space of kind.
func CurrentSpace(spaces []EmbeddingSpace, kind core.ContentType) (EmbeddingSpace, error) {
	for _, s := range spaces {
		if s.Kind == kind && s.Current {
			return s, nil
		}
	}
	return EmbeddingSpace{}, fmt.Errorf("%w: %s", ErrNoCurrentSpace, kind)
}

// FindSpace returns the space of kind at generation.
func FindSpace(spaces []EmbeddingSpace, kind core.ContentType, generation string) (EmbeddingSpace, error) {
	for _, s := range spaces {
		if s.Kind == kind && s.Generation == generation {
			return s, nil
		}
	}
	return EmbeddingSpace{}, fmt.Errorf("%w: %s/%s", ErrUnknownSpace, kind, generation)
}

// validateSpaces checks every space and requires exactly one current generation per kind.
func validateSpaces(spaces []EmbeddingSpace) error {
	if len(spaces) == 0 {
		return fmt.Errorf("%w: no embedding spaces configured", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(spaces))
	current := make(map[core.ContentType]int)
	for _, s := range spaces {
		if !s.Kind.Valid() {
			return fmt.Errorf("%w: unknown content kind %q", ErrInvalidConfig, s.Kind)
		}
		if s.Generation == "" {
			return fmt.Errorf("%w: %s space has no generation", ErrInvalidConfig, s.Kind)
		}
		if s.Model == "" {
			return fmt.Errorf("%w: %s/%s space has no model", ErrInvalidConfig, s.Kind, s.Generation)
		}
		if s.Dimension <= 0 {
			return fmt.Errorf("%w: %s/%s space dimension must be positive", ErrInvalidConfig, s.Kind, s.Generation)
		}
		key := string(s.Kind) + "/" + s.Generation
		if seen[key] {
			return fmt.Errorf("%w: duplicate space %s", ErrInvalidConfig, key)
		}
		seen[key] = true
		if s.Current {
			current[s.Kind]++
		} else if _, ok := current[s.Kind]; !ok {
			current[s.Kind] = 0
		}
	}
	for kind, n := range current {
		if n != 1 {
			return fmt.Errorf("%w: %s needs exactly one current generation, has %d", ErrInvalidConfig, kind, n)
		}
	}
	return nil
}
