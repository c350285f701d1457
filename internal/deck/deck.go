// Package deck defines the deck model supplied by callers and the summary
// derived from it for scoring.
package deck

import (
	"sort"
	"strings"

	"github.com/topherhaynie/mtg-card-app-sub000/internal/cards"
)

// Deck is a partially built deck supplied by the caller. It is read-only
// during a suggestion request.
type Deck struct {
	ID       string            `json:"id"`
	Format   string            `json:"format"`
	CardIDs  []string          `json:"card_ids"`
	LeaderID string            `json:"leader_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"` // Theme tags and other free-form hints
}

// Theme returns the deck's declared theme, if any.
func (d *Deck) Theme() string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata["theme"]
}

// Summary captures the deck facts the ranking model needs: format, color
// identity, leader, and membership. It is derived once per request so the
// scorer stays a pure function over plain data.
type Summary struct {
	DeckID        string
	Format        string
	Theme         string
	LeaderID      string
	ColorIdentity []string
	CardIDs       []string
}

// Summarize derives a scoring summary from a deck and its resolved cards.
// Cards missing from the lookup map contribute nothing to the color
// identity but stay in the membership list.
func Summarize(d *Deck, byID map[string]*cards.Card) *Summary {
	colorSet := make(map[string]struct{})

	addColors := func(id string) {
		card, ok := byID[id]
		if !ok {
			return
		}
		for _, color := range card.ColorIdentity {
			colorSet[strings.ToUpper(color)] = struct{}{}
		}
	}

	for _, id := range d.CardIDs {
		addColors(id)
	}
	if d.LeaderID != "" {
		addColors(d.LeaderID)
	}

	colors := make([]string, 0, len(colorSet))
	for color := range colorSet {
		colors = append(colors, color)
	}
	sort.Strings(colors)

	return &Summary{
		DeckID:        d.ID,
		Format:        d.Format,
		Theme:         d.Theme(),
		LeaderID:      d.LeaderID,
		ColorIdentity: colors,
		CardIDs:       d.CardIDs,
	}
}

// HasColor reports whether the summary's color identity includes the color.
func (s *Summary) HasColor(color string) bool {
	for _, c := range s.ColorIdentity {
		if strings.EqualFold(c, color) {
			return true
		}
	}
	return false
}

// Contains reports whether the deck list includes the given card id.
func (s *Summary) Contains(id string) bool {
	for _, c := range s.CardIDs {
		if c == id {
			return true
		}
	}
	return false
}
