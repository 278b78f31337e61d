package core

import (
	"strings"
	"unicode"
)

// Stop words to filter out when matching query terms against stored text
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "using": true, "use": true, "which": true, "what": true,
	"papers": true, "paper": true, "find": true, "about": true, "how": true,
}

// Terms splits text into words, lowercases, trims punctuation, and removes stop words.
func Terms(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// ContainsAllTerms reports whether every query term appears in text.
// A query with no terms matches nothing.
func ContainsAllTerms(text, query string) bool {
	queryWords := Terms(query)
	if len(queryWords) == 0 {
		return false
	}

	set := termSet(text)
	for _, word := range queryWords {
		if !set[word] {
			return false
		}
	}

	return true
}

// TermOverlap returns the fraction of distinct query terms present in text.
func TermOverlap(text, query string) float32 {
	queryWords := Terms(query)
	if len(queryWords) == 0 {
		return 0
	}

	set := termSet(text)
	seen := make(map[string]bool, len(queryWords))
	hits := 0
	for _, word := range queryWords {
		if seen[word] {
			continue
		}
		seen[word] = true
		if set[word] {
			hits++
		}
	}
	return float32(hits) / float32(len(seen))
}

func termSet(text string) map[string]bool {
	words := Terms(text)
	set := make(map[string]bool, len(words))
	for _, word := range words {
		set[word] = true
	}
	return set
}

// NormalizeExpression canonicalizes a symbolic expression for exact matching:
// whitespace is removed, letters are lowercased and common operator spellings
// are unified.
func NormalizeExpression(expr string) string {
	replacer := strings.NewReplacer(
		"\\cdot", "*",
		"\\times", "*",
		"×", "*",
		"·", "*",
		"−", "-",
		"\\left", "",
		"\\right", "",
		"$", "",
	)
	expr = replacer.Replace(expr)

	var b strings.Builder
	b.Grow(len(expr))
	for _, r := range expr {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
