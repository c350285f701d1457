package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/topherhaynie/mtg-card-app-sub000/internal/suggest"
)

func testExplanationContext() *suggest.ExplanationContext {
	target := 7
	return &suggest.ExplanationContext{
		CardNames:   []string{"Doubling Season", "Anointed Procession"},
		Theme:       "tokens",
		PowerTarget: &target,
		Format:      "commander",
	}
}

func TestExplainViaModel(t *testing.T) {
	srv := newTestServer(t, "These two enchantments quadruple every token you make.")
	e := NewExplainer(testClient(t, srv.URL))

	got, err := e.Explain(context.Background(), "Token Multiplier", "Doubles tokens twice.", testExplanationContext())
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if got != "These two enchantments quadruple every token you make." {
		t.Errorf("Explain = %q", got)
	}
}

func TestExplainFallsBackWhenUnavailable(t *testing.T) {
	e := NewExplainer(testClient(t, "http://127.0.0.1:1"))

	got, err := e.Explain(context.Background(), "Token Multiplier", "Doubles tokens twice.", testExplanationContext())
	if err != nil {
		t.Fatalf("Explain should fall back, not fail: %v", err)
	}
	if !strings.Contains(got, "Token Multiplier") {
		t.Errorf("fallback explanation missing combo name: %q", got)
	}
	if !strings.Contains(got, "Doubling Season and Anointed Procession") {
		t.Errorf("fallback explanation missing card names: %q", got)
	}
	if !strings.Contains(got, "tokens theme") {
		t.Errorf("fallback explanation missing theme: %q", got)
	}
}

func TestExplainNilClientUsesTemplate(t *testing.T) {
	e := NewExplainer(nil)

	got, err := e.Explain(context.Background(), "Pair", "", &suggest.ExplanationContext{})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if got == "" {
		t.Error("template explanation should never be empty")
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("Token Multiplier", "Doubles tokens twice.", testExplanationContext())

	for _, want := range []string{
		"Combo: Token Multiplier",
		"Cards: Doubling Season, Anointed Procession",
		"How it works: Doubles tokens twice.",
		"Format: commander",
		"Deck theme: tokens",
		"Target power level: 7 of 10",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestJoinNames(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"A"}, "A"},
		{[]string{"A", "B"}, "A and B"},
		{[]string{"A", "B", "C"}, "A, B, and C"},
	}

	for _, tt := range tests {
		if got := joinNames(tt.in); got != tt.want {
			t.Errorf("joinNames(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
