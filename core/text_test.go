package core

import (
	"reflect"
	"testing"
)

func TestTerms(t *testing.T) {
	got := Terms("Papers using Cross-Entropy loss, for segmentation!")
	want := []string{"cross-entropy", "loss", "segmentation"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms() = %v, want %v", got, want)
	}
}

func TestContainsAllTerms(t *testing.T) {
	text := "We train with cross-entropy loss on a segmentation benchmark."
	if !ContainsAllTerms(text, "cross-entropy segmentation") {
		t.Error("expected all terms to match")
	}
	if ContainsAllTerms(text, "cross-entropy detection") {
		t.Error("expected missing term to fail the match")
	}
	if ContainsAllTerms(text, "the of and") {
		t.Error("stop-word-only query must not match")
	}
}

func TestTermOverlap(t *testing.T) {
	if got := TermOverlap("dice loss segmentation", "dice loss detection detection"); got < 0.66 || got > 0.67 {
		t.Errorf("TermOverlap() = %v, want 2/3", got)
	}
	if got := TermOverlap("anything", "the"); got != 0 {
		t.Errorf("TermOverlap() = %v, want 0", got)
	}
}

func TestNormalizeExpression(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"E = m c^2", "e=mc^2"},
		{"$a \\cdot b$", "a*b"},
		{"a × b − c", "a*b-c"},
		{"\\left( x \\right)", "(x)"},
	}
	for _, tt := range tests {
		if got := NormalizeExpression(tt.in); got != tt.want {
			t.Errorf("NormalizeExpression(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
