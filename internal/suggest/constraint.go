// Package suggest implements the deck suggestion and combo ranking engine:
// candidate intake, exhaustive combo detection, multi-factor ranking,
// mode and type filtering, sorting, explanation integration, and result
// caching.
package suggest

import (
	"errors"
	"fmt"
)

// ErrInvalidConstraint marks constraint validation failures. Callers can
// test for it with errors.Is.
var ErrInvalidConstraint = errors.New("invalid constraint")

// Mode controls how strictly soft constraints are enforced.
type Mode string

// Combo search modes.
const (
	// ModeFocused drops combos that miss any soft constraint
	// (theme, budget, power target).
	ModeFocused Mode = "focused"

	// ModeBroad keeps every combo that survives the hard filters,
	// regardless of soft-constraint mismatch.
	ModeBroad Mode = "broad"
)

// SortCriterion selects the ordering of a suggestion's combo list.
type SortCriterion string

// Sort criteria.
const (
	SortPower      SortCriterion = "power"      // Ranking score, descending
	SortPrice      SortCriterion = "price"      // Total price, ascending
	SortPopularity SortCriterion = "popularity" // Popularity score, descending
	SortComplexity SortCriterion = "complexity" // Complexity rank, low to high
)

// Constraint carries the caller's preferences for a suggestion request.
// All fields are optional; zero values select the documented defaults.
type Constraint struct {
	Theme           string        `json:"theme,omitempty"`
	Budget          *float64      `json:"budget,omitempty"`       // Non-negative
	PowerTarget     *int          `json:"power_target,omitempty"` // 1-10
	BannedCardIDs   []string      `json:"banned_card_ids,omitempty"`
	MaxSuggestions  int           `json:"max_suggestions,omitempty"` // 0 selects the engine default
	Mode            Mode          `json:"mode,omitempty"`
	ComboLimit      int           `json:"combo_limit,omitempty"` // Per suggestion; 0 = unlimited
	ComboTypes      []string      `json:"combo_types,omitempty"` // Allow-list; empty = no type filtering
	ExcludedCardIDs []string      `json:"excluded_card_ids,omitempty"` // Combo-scope exclusions only
	SortBy          SortCriterion `json:"sort_by,omitempty"`
	Explain         bool          `json:"explain,omitempty"`
	BypassCache     bool          `json:"bypass_cache,omitempty"` // Force fresh computation, refresh the entry
}

// Validate checks the constraint's enumerated and bounded fields. It does
// not mutate the constraint; defaults are applied separately so validation
// errors surface before any work happens.
func (c *Constraint) Validate() error {
	if c.Budget != nil && *c.Budget < 0 {
		return fmt.Errorf("%w: budget cannot be negative: %v", ErrInvalidConstraint, *c.Budget)
	}
	if c.PowerTarget != nil && (*c.PowerTarget < 1 || *c.PowerTarget > 10) {
		return fmt.Errorf("%w: power target must be 1-10: %d", ErrInvalidConstraint, *c.PowerTarget)
	}
	if c.MaxSuggestions < 0 {
		return fmt.Errorf("%w: max suggestions cannot be negative: %d", ErrInvalidConstraint, c.MaxSuggestions)
	}
	if c.ComboLimit < 0 {
		return fmt.Errorf("%w: combo limit cannot be negative: %d", ErrInvalidConstraint, c.ComboLimit)
	}

	switch c.Mode {
	case "", ModeFocused, ModeBroad:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConstraint, c.Mode)
	}

	switch c.SortBy {
	case "", SortPower, SortPrice, SortPopularity, SortComplexity:
	default:
		return fmt.Errorf("%w: unknown sort criterion %q", ErrInvalidConstraint, c.SortBy)
	}

	return nil
}

// normalized returns a copy with defaults filled in: focused mode, power
// sort, and the engine's suggestion cap.
func (c *Constraint) normalized(defaultMax int) Constraint {
	out := *c
	if out.Mode == "" {
		out.Mode = ModeFocused
	}
	if out.SortBy == "" {
		out.SortBy = SortPower
	}
	if out.MaxSuggestions == 0 {
		out.MaxSuggestions = defaultMax
	}
	return out
}

// comboExclusions returns the union of banned and combo-scope excluded card
// ids as a set.
func (c *Constraint) comboExclusions() map[string]struct{} {
	set := make(map[string]struct{}, len(c.BannedCardIDs)+len(c.ExcludedCardIDs))
	for _, id := range c.BannedCardIDs {
		set[id] = struct{}{}
	}
	for _, id := range c.ExcludedCardIDs {
		set[id] = struct{}{}
	}
	return set
}
