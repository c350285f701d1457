package suggest

import (
	"sort"
	"strings"

	"github.com/topherhaynie/mtg-card-app-sub000/internal/combo"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/deck"
)

// RankedCombo pairs a combo with its computed ranking score and, when
// requested, a natural-language explanation.
type RankedCombo struct {
	Combo       *combo.Combo `json:"combo"`
	Score       float64      `json:"score"`
	Explanation string       `json:"explanation,omitempty"`
}

// FilterController applies mode semantics, type filtering, sorting, and
// per-suggestion limiting on top of the ranking model.
type FilterController struct {
	ranker *RankingModel
}

// NewFilterController creates a filter controller over the given ranking
// model.
func NewFilterController(ranker *RankingModel) *FilterController {
	return &FilterController{ranker: ranker}
}

// RankAndFilter scores the combos, drops those the active mode rejects,
// applies the type allow-list, sorts by the constraint's criterion, and
// truncates to the combo limit. The returned ordering is deterministic for
// a fixed input set and constraint.
func (fc *FilterController) RankAndFilter(combos []*combo.Combo, sum *deck.Summary, c *Constraint) []*RankedCombo {
	ranked := make([]*RankedCombo, 0, len(combos))

	for _, cb := range combos {
		if !fc.passesTypeFilter(cb, c.ComboTypes) {
			continue
		}
		if c.Mode == ModeFocused && !fc.passesSoftConstraints(cb, c) {
			continue
		}
		ranked = append(ranked, &RankedCombo{
			Combo: cb,
			Score: fc.ranker.Score(cb, sum, c),
		})
	}

	sortRanked(ranked, c.SortBy)

	if c.ComboLimit > 0 && len(ranked) > c.ComboLimit {
		ranked = ranked[:c.ComboLimit]
	}

	return ranked
}

// passesSoftConstraints enforces focused-mode semantics: a combo must
// satisfy every soft constraint the caller actually set.
func (fc *FilterController) passesSoftConstraints(cb *combo.Combo, c *Constraint) bool {
	if c.Theme != "" && !matchesTheme(cb, c.Theme) {
		return false
	}
	if c.Budget != nil && cb.TotalPrice > *c.Budget {
		return false
	}
	if c.PowerTarget != nil {
		diff := cb.ImpliedPowerTier() - *c.PowerTarget
		if diff < 0 {
			diff = -diff
		}
		if diff > fc.ranker.PowerTierTolerance {
			return false
		}
	}
	return true
}

// passesTypeFilter applies the combo-type allow-list. An empty list means
// no type filtering.
func (fc *FilterController) passesTypeFilter(cb *combo.Combo, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, want := range allowed {
		for _, tag := range cb.TypeTags {
			if strings.EqualFold(tag, want) {
				return true
			}
		}
	}
	return false
}

// sortRanked orders combos by the chosen criterion. Every criterion uses
// ranking score descending as secondary key and combo id ascending as
// tertiary key, so the ordering is total.
func sortRanked(ranked []*RankedCombo, by SortCriterion) {
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]

		switch by {
		case SortPrice:
			if a.Combo.TotalPrice != b.Combo.TotalPrice {
				return a.Combo.TotalPrice < b.Combo.TotalPrice
			}
		case SortPopularity:
			if a.Combo.Popularity != b.Combo.Popularity {
				return a.Combo.Popularity > b.Combo.Popularity
			}
		case SortComplexity:
			if a.Combo.Complexity != b.Combo.Complexity {
				return a.Combo.Complexity < b.Combo.Complexity
			}
		default: // SortPower
			if a.Score != b.Score {
				return a.Score > b.Score
			}
		}

		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Combo.ID < b.Combo.ID
	})
}
