package suggest

import (
	"context"
	"testing"

	"github.com/topherhaynie/mtg-card-app-sub000/internal/cards"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/combo"
)

func explainSuggestions() []*Suggestion {
	return []*Suggestion{
		{
			Card: &cards.Card{ID: "cand-1", Name: "Candidate One"},
			Combos: []*RankedCombo{
				{Combo: &combo.Combo{ID: "combo-1", Name: "First", CardIDs: []string{"cand-1", "c1"}}},
				{Combo: &combo.Combo{ID: "combo-2", Name: "Second", CardIDs: []string{"cand-1", "c2"}}},
			},
		},
	}
}

func TestIntegrateExplanationsFillsCombos(t *testing.T) {
	gen := &fakeExplainer{}
	suggestions := explainSuggestions()

	warnings, partial := integrateExplanations(context.Background(), gen, suggestions, nil, "tokens", "commander", nil, 2)

	if len(warnings) != 0 || partial {
		t.Fatalf("warnings = %v, partial = %v; want none", warnings, partial)
	}
	for _, rc := range suggestions[0].Combos {
		if rc.Explanation == "" {
			t.Errorf("combo %s not explained", rc.Combo.ID)
		}
	}
}

func TestIntegrateExplanationsNilGenerator(t *testing.T) {
	suggestions := explainSuggestions()
	warnings, partial := integrateExplanations(context.Background(), nil, suggestions, nil, "", "", nil, 2)
	if warnings != nil || partial {
		t.Errorf("nil generator should be a no-op, got %v, %v", warnings, partial)
	}
}

func TestIntegrateExplanationsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeExplainer{}
	suggestions := explainSuggestions()

	_, partial := integrateExplanations(ctx, gen, suggestions, nil, "", "", nil, 2)

	if !partial {
		t.Error("canceled context should mark the integration partial")
	}
	if gen.calls.Load() != 0 {
		t.Errorf("generator called %d times after cancellation", gen.calls.Load())
	}
}

func TestMemberNames(t *testing.T) {
	rc := &RankedCombo{Combo: &combo.Combo{CardIDs: []string{"a", "b"}}}
	names := map[string]string{"a": "Card A"}

	got := memberNames(rc, names)
	if len(got) != 2 || got[0] != "Card A" || got[1] != "b" {
		t.Errorf("memberNames = %v, want resolved name then raw id", got)
	}
}
