// Package cards defines card metadata and the repository used to resolve
// card identifiers to card records.
package cards

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a card identifier cannot be resolved.
var ErrNotFound = errors.New("card not found")

// Card represents metadata about a single card.
// Cards are owned by the repository; the suggestion engine only holds
// identifiers plus ephemeral copies for display and scoring.
type Card struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Colors        []string `json:"colors"`
	ColorIdentity []string `json:"color_identity"`
	CostValue     float64  `json:"cost_value"` // Generic casting/resource cost
	Price         float64  `json:"price"`      // Market price in the configured currency
	TypeTags      []string `json:"type_tags"`  // e.g., "creature", "ramp", "removal"
	LegalFormats  []string `json:"legal_formats"`
}

// HasTypeTag reports whether the card carries the given type tag.
// Comparison is case-insensitive.
func (c *Card) HasTypeTag(tag string) bool {
	for _, t := range c.TypeTags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// LegalIn reports whether the card is legal in the given format.
func (c *Card) LegalIn(format string) bool {
	for _, f := range c.LegalFormats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// Repository resolves card identifiers to card records.
type Repository interface {
	// Get returns the card for the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Card, error)

	// GetMany resolves multiple ids at once. Ids that cannot be resolved
	// are omitted from the result rather than failing the batch.
	GetMany(ctx context.Context, ids []string) (map[string]*Card, error)
}
