// Package combo defines documented multi-card synergy combinations and the
// knowledge base that discovers them.
package combo

import (
	"context"
	"strings"
)

// Complexity ranks how hard a combo is to pilot.
type Complexity int

// Complexity levels, ordered low to high.
const (
	ComplexityLow Complexity = iota
	ComplexityMedium
	ComplexityHigh
)

// String returns the storage/display form of the complexity rank.
func (c Complexity) String() string {
	switch c {
	case ComplexityLow:
		return "low"
	case ComplexityHigh:
		return "high"
	default:
		return "medium"
	}
}

// ParseComplexity parses a stored complexity value. Unknown values map to
// medium rather than failing, since combo data is curated externally.
func ParseComplexity(s string) Complexity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ComplexityLow
	case "high":
		return ComplexityHigh
	default:
		return ComplexityMedium
	}
}

// Combo is a documented set of two or more cards that produce a specific
// synergistic effect when played together. Combos are read-only: they are
// sourced from the knowledge base and never mutated by the engine.
type Combo struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	CardIDs       []string   `json:"card_ids"` // Always >= 2 members
	TypeTags      []string   `json:"type_tags"`
	Complexity    Complexity `json:"complexity"`
	Popularity    float64    `json:"popularity"` // 0..1
	TotalPrice    float64    `json:"total_price"`
	LegalFormats  []string   `json:"legal_formats"`
	BannedFormats []string   `json:"banned_formats"`
	ColorIdentity []string   `json:"color_identity"` // Union of the members' identities
	Weaknesses    []string   `json:"weaknesses"`
	Description   string     `json:"description"`
}

// Size returns the number of cards in the combo.
func (c *Combo) Size() int {
	return len(c.CardIDs)
}

// ContainsCard reports whether the combo includes the given card id.
func (c *Combo) ContainsCard(id string) bool {
	for _, cardID := range c.CardIDs {
		if cardID == id {
			return true
		}
	}
	return false
}

// HasTag reports whether the combo carries the given type tag,
// case-insensitively.
func (c *Combo) HasTag(tag string) bool {
	for _, t := range c.TypeTags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ProducesUnboundedResource reports whether any tag marks the combo as
// generating an unbounded resource (tags of the form "infinite-*").
func (c *Combo) ProducesUnboundedResource() bool {
	for _, t := range c.TypeTags {
		if strings.HasPrefix(strings.ToLower(t), "infinite") {
			return true
		}
	}
	return false
}

// LegalIn reports whether the combo's legal-format set includes the format
// and its banned-format set does not.
func (c *Combo) LegalIn(format string) bool {
	for _, f := range c.BannedFormats {
		if strings.EqualFold(f, format) {
			return false
		}
	}
	for _, f := range c.LegalFormats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// ImpliedPowerTier derives a 1-10 power tier from the combo's metadata.
// The derivation is deterministic: unbounded-resource combos and locks
// push the tier up, easy low-piece combos sit lower, large assemblies
// lose a point for fragility.
func (c *Combo) ImpliedPowerTier() int {
	tier := 5

	if c.ProducesUnboundedResource() {
		tier += 3
	}
	if c.HasTag("lock") || c.HasTag("engine") {
		tier++
	}

	switch c.Complexity {
	case ComplexityHigh:
		tier++
	case ComplexityLow:
		tier--
	}

	if len(c.CardIDs) >= 4 {
		tier--
	}

	if tier < 1 {
		tier = 1
	}
	if tier > 10 {
		tier = 10
	}
	return tier
}

// KnowledgeBase finds known combos for a card within a partner pool.
type KnowledgeBase interface {
	// Find returns all combos that contain cardID and whose remaining
	// members all appear in partnerIDs. One batched call per candidate
	// keeps lookup volume linear in the candidate count.
	Find(ctx context.Context, cardID string, partnerIDs []string) ([]*Combo, error)
}
