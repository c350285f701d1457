package suggest

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// ExplanationContext carries the deck-side inputs an explanation needs:
// resolved card names for the combo members, the active theme, and the
// caller's power target.
type ExplanationContext struct {
	CardNames   []string
	Theme       string
	PowerTarget *int
	Format      string
}

// ExplanationGenerator produces a short natural-language explanation of
// how a combo works and why it fits the deck. Implementations are expected
// to respect the context deadline.
type ExplanationGenerator interface {
	Explain(ctx context.Context, name, description string, ectx *ExplanationContext) (string, error)
}

// explainJob addresses one combo inside one suggestion.
type explainJob struct {
	suggestion int
	combo      int
}

// integrateExplanations fills in the Explanation field of every ranked
// combo across the suggestions. Generation runs on a small pool so a slow
// generator cannot monopolize the request; a failed generation leaves the
// explanation empty and adds a warning. Returns the warnings and whether
// the deadline expired before every combo was handled.
func integrateExplanations(ctx context.Context, gen ExplanationGenerator, suggestions []*Suggestion, names map[string]string, theme, format string, powerTarget *int, workers int) ([]string, bool) {
	if gen == nil {
		return nil, false
	}
	if workers <= 0 {
		workers = 1
	}

	var jobs []explainJob
	for si, s := range suggestions {
		for ci := range s.Combos {
			jobs = append(jobs, explainJob{suggestion: si, combo: ci})
		}
	}
	if len(jobs) == 0 {
		return nil, false
	}

	var (
		mu       sync.Mutex
		warnings []string
		partial  bool
	)

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		go func(j explainJob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				mu.Lock()
				partial = true
				mu.Unlock()
				return
			}

			rc := suggestions[j.suggestion].Combos[j.combo]
			ectx := &ExplanationContext{
				CardNames:   memberNames(rc, names),
				Theme:       theme,
				PowerTarget: powerTarget,
				Format:      format,
			}

			text, err := gen.Explain(ctx, rc.Combo.Name, rc.Combo.Description, ectx)
			if err != nil {
				log.Printf("explanation failed for combo %s: %v", rc.Combo.ID, err)
				mu.Lock()
				warnings = append(warnings,
					fmt.Sprintf("explanation unavailable for combo %s", rc.Combo.ID))
				mu.Unlock()
				return
			}

			mu.Lock()
			rc.Explanation = text
			mu.Unlock()
		}(job)
	}

	wg.Wait()
	return warnings, partial
}

// memberNames resolves combo member ids through the name map, falling back
// to the raw id for members the engine has not loaded.
func memberNames(rc *RankedCombo, names map[string]string) []string {
	out := make([]string, 0, len(rc.Combo.CardIDs))
	for _, id := range rc.Combo.CardIDs {
		if name, ok := names[id]; ok {
			out = append(out, name)
			continue
		}
		out = append(out, id)
	}
	return out
}
