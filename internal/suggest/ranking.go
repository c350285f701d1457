package suggest

import (
	"strings"

	"github.com/topherhaynie/mtg-card-app-sub000/internal/combo"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/deck"
)

// Factor point values for the ten-factor ranking model. These reproduce
// the observed scoring behavior; no normalization is applied across combos.
const (
	archetypeFitPoints   = 10.0
	leaderSynergyPoints  = 15.0
	colorOverlapPoints   = 5.0 // Per shared color
	budgetFitPoints      = 10.0
	powerFitPoints       = 8.0
	complexityLowPoints  = 5.0
	complexityHighPoints = -3.0
	twoCardPoints        = 8.0
	threeCardPoints      = 4.0
	largeComboPoints     = -4.0
	weaknessPoints       = -2.0 // Per documented weakness
	infiniteBoostPoints  = 12.0
	popularityScale      = 5.0
)

// FactorBreakdown holds the contribution of each ranking factor for a
// single combo. Keeping the factors explicit makes the scorer testable
// without any external dependency.
type FactorBreakdown struct {
	ArchetypeFit   float64 `json:"archetype_fit"`
	LeaderSynergy  float64 `json:"leader_synergy"`
	ColorOverlap   float64 `json:"color_overlap"`
	BudgetFit      float64 `json:"budget_fit"`
	PowerFit       float64 `json:"power_fit"`
	Complexity     float64 `json:"complexity"`
	AssemblyEase   float64 `json:"assembly_ease"`
	Disruptibility float64 `json:"disruptibility"`
	InfiniteBoost  float64 `json:"infinite_boost"`
	Popularity     float64 `json:"popularity"`
}

// Total sums the factor contributions into the combo's ranking score.
// The result is unbounded; higher is better.
func (f FactorBreakdown) Total() float64 {
	return f.ArchetypeFit +
		f.LeaderSynergy +
		f.ColorOverlap +
		f.BudgetFit +
		f.PowerFit +
		f.Complexity +
		f.AssemblyEase +
		f.Disruptibility +
		f.InfiniteBoost +
		f.Popularity
}

// RankingModel scores combos against deck and constraint context. Scoring
// is a pure function of its inputs: repeated calls over the same combo,
// summary, and constraint return the same value.
type RankingModel struct {
	// BudgetPenaltyFloor is the lowest contribution the budget factor may
	// reach when a combo overshoots the budget.
	BudgetPenaltyFloor float64

	// PowerTierTolerance is the maximum distance between a combo's implied
	// power tier and the constraint target that still counts as a match.
	PowerTierTolerance int
}

// NewRankingModel creates a ranking model with the given tuning values.
func NewRankingModel(budgetPenaltyFloor float64, powerTierTolerance int) *RankingModel {
	return &RankingModel{
		BudgetPenaltyFloor: budgetPenaltyFloor,
		PowerTierTolerance: powerTierTolerance,
	}
}

// Score computes the combo's ranking score.
func (m *RankingModel) Score(cb *combo.Combo, sum *deck.Summary, c *Constraint) float64 {
	return m.Breakdown(cb, sum, c).Total()
}

// Breakdown computes each factor's contribution.
func (m *RankingModel) Breakdown(cb *combo.Combo, sum *deck.Summary, c *Constraint) FactorBreakdown {
	var f FactorBreakdown

	// Factor 1: Archetype fit (+10 when combo tags intersect the theme)
	if matchesTheme(cb, c.Theme) {
		f.ArchetypeFit = archetypeFitPoints
	}

	// Factor 2: Leader synergy (+15 when the combo uses the leader)
	if sum.LeaderID != "" && cb.ContainsCard(sum.LeaderID) {
		f.LeaderSynergy = leaderSynergyPoints
	}

	// Factor 3: Color overlap (+5 per color shared with the deck identity)
	f.ColorOverlap = colorOverlapPoints * float64(sharedColors(cb.ColorIdentity, sum.ColorIdentity))

	// Factor 4: Budget fit (+10 within budget, proportional penalty above)
	if c.Budget != nil {
		f.BudgetFit = m.budgetFit(cb.TotalPrice, *c.Budget)
	}

	// Factor 5: Power-level fit (+8 when the implied tier matches the target)
	if c.PowerTarget != nil {
		diff := cb.ImpliedPowerTier() - *c.PowerTarget
		if diff < 0 {
			diff = -diff
		}
		if diff <= m.PowerTierTolerance {
			f.PowerFit = powerFitPoints
		}
	}

	// Factor 6: Complexity (low +5, high -3, medium 0)
	switch cb.Complexity {
	case combo.ComplexityLow:
		f.Complexity = complexityLowPoints
	case combo.ComplexityHigh:
		f.Complexity = complexityHighPoints
	}

	// Factor 7: Assembly ease (2-card +8, 3-card +4, 4+ -4)
	switch {
	case cb.Size() == 2:
		f.AssemblyEase = twoCardPoints
	case cb.Size() == 3:
		f.AssemblyEase = threeCardPoints
	case cb.Size() >= 4:
		f.AssemblyEase = largeComboPoints
	}

	// Factor 8: Disruptibility (-2 per documented weakness)
	f.Disruptibility = weaknessPoints * float64(len(cb.Weaknesses))

	// Factor 9: Infinite-resource boost (+12)
	if cb.ProducesUnboundedResource() {
		f.InfiniteBoost = infiniteBoostPoints
	}

	// Factor 10: Popularity (+5 x popularity score)
	f.Popularity = popularityScale * cb.Popularity

	return f
}

// budgetFit returns +10 for combos within budget, otherwise a penalty
// proportional to the overage, floored at BudgetPenaltyFloor. A zero
// budget treats any priced combo as fully over.
func (m *RankingModel) budgetFit(price, budget float64) float64 {
	if price <= budget {
		return budgetFitPoints
	}

	var penalty float64
	if budget > 0 {
		penalty = -((price - budget) / budget) * budgetFitPoints
	} else {
		penalty = m.BudgetPenaltyFloor
	}

	if penalty < m.BudgetPenaltyFloor {
		penalty = m.BudgetPenaltyFloor
	}
	return penalty
}

// matchesTheme reports whether any combo tag equals the constraint theme,
// case-insensitively. An empty theme never matches.
func matchesTheme(cb *combo.Combo, theme string) bool {
	if theme == "" {
		return false
	}
	for _, tag := range cb.TypeTags {
		if strings.EqualFold(tag, theme) {
			return true
		}
	}
	return false
}

// sharedColors counts colors present in both identities.
func sharedColors(comboColors, deckColors []string) int {
	deckSet := make(map[string]struct{}, len(deckColors))
	for _, c := range deckColors {
		deckSet[strings.ToUpper(c)] = struct{}{}
	}

	shared := 0
	seen := make(map[string]struct{}, len(comboColors))
	for _, c := range comboColors {
		upper := strings.ToUpper(c)
		if _, dup := seen[upper]; dup {
			continue
		}
		seen[upper] = struct{}{}
		if _, ok := deckSet[upper]; ok {
			shared++
		}
	}
	return shared
}
