package suggest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/topherhaynie/mtg-card-app-sub000/internal/combo"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/deck"
)

// Detector orchestrates combo discovery: one batched knowledge-base query
// per candidate against the union of deck cards, the leader, and the other
// candidates, followed by hard filtering and dedup.
type Detector struct {
	kb                 combo.KnowledgeBase
	workers            int
	budgetCeilingRatio float64
}

// NewDetector creates a detector running lookups on a pool of the given
// size. budgetCeilingRatio bounds the budget hard filter: combos priced
// above budget * (1 + ratio) are dropped outright.
func NewDetector(kb combo.KnowledgeBase, workers int, budgetCeilingRatio float64) *Detector {
	if workers <= 0 {
		workers = 1
	}
	return &Detector{
		kb:                 kb,
		workers:            workers,
		budgetCeilingRatio: budgetCeilingRatio,
	}
}

// Detection holds the detector's output for one request.
type Detection struct {
	// ByCandidate maps each candidate id to its surviving combos. Combo
	// instances are shared across candidates; each candidate's list holds
	// a combo at most once.
	ByCandidate map[string][]*combo.Combo

	// Warnings accumulates per-candidate lookup failures.
	Warnings []string

	// Partial is set when the deadline expired before every candidate was
	// processed.
	Partial bool
}

// Detect runs combo discovery for all candidates. Lookup failures skip the
// affected candidate and are reported as warnings; a deadline expiry stops
// the run and marks the result partial.
func (d *Detector) Detect(ctx context.Context, candidates []string, sum *deck.Summary, c *Constraint) *Detection {
	detection := &Detection{
		ByCandidate: make(map[string][]*combo.Combo, len(candidates)),
	}
	if len(candidates) == 0 {
		return detection
	}

	// Partner pool: every deck card, the leader, and every candidate.
	pool := make(map[string]struct{}, len(sum.CardIDs)+len(candidates)+1)
	for _, id := range sum.CardIDs {
		pool[id] = struct{}{}
	}
	if sum.LeaderID != "" {
		pool[sum.LeaderID] = struct{}{}
	}
	for _, id := range candidates {
		pool[id] = struct{}{}
	}

	excluded := c.comboExclusions()

	type result struct {
		candidate string
		combos    []*combo.Combo
		err       error
	}

	results := make(chan result, len(candidates))
	sem := make(chan struct{}, d.workers)

	var wg sync.WaitGroup
	for _, id := range candidates {
		wg.Add(1)
		go func(candidateID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results <- result{candidate: candidateID, err: ctx.Err()}
				return
			}

			partners := make([]string, 0, len(pool)-1)
			for partner := range pool {
				if partner != candidateID {
					partners = append(partners, partner)
				}
			}

			combos, err := d.kb.Find(ctx, candidateID, partners)
			results <- result{candidate: candidateID, combos: combos, err: err}
		}(id)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Global dedup by combo id: the same combo reached via two candidates
	// shares one instance, and appears at most once per candidate list.
	seen := make(map[string]*combo.Combo)

	for res := range results {
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled) {
				detection.Partial = true
				continue
			}
			log.Printf("combo lookup failed for candidate %s: %v", res.candidate, res.err)
			detection.Warnings = append(detection.Warnings,
				fmt.Sprintf("combo lookup failed for candidate %s", res.candidate))
			continue
		}

		attached := make(map[string]struct{})
		for _, cb := range res.combos {
			if !d.passesHardFilters(cb, sum, c, excluded) {
				continue
			}
			if canonical, ok := seen[cb.ID]; ok {
				cb = canonical
			} else {
				seen[cb.ID] = cb
			}
			if _, dup := attached[cb.ID]; dup {
				continue
			}
			attached[cb.ID] = struct{}{}
			detection.ByCandidate[res.candidate] = append(detection.ByCandidate[res.candidate], cb)
		}
	}

	return detection
}

// passesHardFilters applies the cheap filters that hold in every mode:
// format legality (including banned formats), color identity in leader
// formats, excluded cards, and the absolute budget ceiling. Soft budget
// overage is handled by scoring.
func (d *Detector) passesHardFilters(cb *combo.Combo, sum *deck.Summary, c *Constraint, excluded map[string]struct{}) bool {
	if len(cb.CardIDs) < 2 {
		return false // Malformed knowledge-base row
	}

	if !cb.LegalIn(sum.Format) {
		return false
	}

	// Leader formats bind the deck to the leader's color identity; a combo
	// needing a color outside it cannot be played.
	if sum.LeaderID != "" && len(sum.ColorIdentity) > 0 {
		for _, color := range cb.ColorIdentity {
			if !sum.HasColor(color) {
				return false
			}
		}
	}

	for _, id := range cb.CardIDs {
		if _, banned := excluded[id]; banned {
			return false
		}
	}

	if c.Budget != nil {
		ceiling := *c.Budget * (1 + d.budgetCeilingRatio)
		if cb.TotalPrice > ceiling {
			return false
		}
	}

	return true
}
