package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/topherhaynie/mtg-card-app-sub000/internal/suggest"
)

const explainSystemPrompt = "You are a deck-building assistant. " +
	"Explain in two or three sentences how the combo works and why it fits the deck. " +
	"Be concrete about the card interactions. Do not use markdown."

// Explainer generates combo explanations through the Ollama client. When
// the instance is unreachable it falls back to a template built from the
// combo's stored description, so requesting explanations never depends on
// a running model.
type Explainer struct {
	client *Client
}

// NewExplainer creates an explainer over the given client.
func NewExplainer(client *Client) *Explainer {
	return &Explainer{client: client}
}

// Explain implements suggest.ExplanationGenerator.
func (e *Explainer) Explain(ctx context.Context, name, description string, ectx *suggest.ExplanationContext) (string, error) {
	if e.client == nil || !e.client.IsAvailable(ctx) {
		return templateExplanation(name, description, ectx), nil
	}

	text, err := e.client.Generate(ctx, explainSystemPrompt, buildPrompt(name, description, ectx))
	if err != nil {
		return "", fmt.Errorf("generating explanation for %s: %w", name, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return templateExplanation(name, description, ectx), nil
	}
	return text, nil
}

// buildPrompt assembles the generation prompt from the combo and deck
// context.
func buildPrompt(name, description string, ectx *suggest.ExplanationContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Combo: %s\n", name)
	if len(ectx.CardNames) > 0 {
		fmt.Fprintf(&b, "Cards: %s\n", strings.Join(ectx.CardNames, ", "))
	}
	if description != "" {
		fmt.Fprintf(&b, "How it works: %s\n", description)
	}
	if ectx.Format != "" {
		fmt.Fprintf(&b, "Format: %s\n", ectx.Format)
	}
	if ectx.Theme != "" {
		fmt.Fprintf(&b, "Deck theme: %s\n", ectx.Theme)
	}
	if ectx.PowerTarget != nil {
		fmt.Fprintf(&b, "Target power level: %d of 10\n", *ectx.PowerTarget)
	}
	b.WriteString("Explain this combo for the deck described above.")

	return b.String()
}

// templateExplanation is the offline fallback: a readable sentence built
// from the knowledge base's own description.
func templateExplanation(name, description string, ectx *suggest.ExplanationContext) string {
	var b strings.Builder

	if len(ectx.CardNames) > 0 {
		fmt.Fprintf(&b, "%s uses %s.", name, joinNames(ectx.CardNames))
	} else {
		fmt.Fprintf(&b, "%s.", name)
	}

	if description != "" {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(description))
		if !strings.HasSuffix(description, ".") {
			b.WriteString(".")
		}
	}

	if ectx.Theme != "" {
		fmt.Fprintf(&b, " It supports the deck's %s theme.", ectx.Theme)
	}

	return b.String()
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}
