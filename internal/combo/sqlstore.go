package combo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLStore is a SQLite-backed combo knowledge base.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a knowledge base over the given database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Find returns all combos containing cardID whose remaining members all
// appear in partnerIDs. Candidate combos are narrowed in SQL by membership
// of cardID; full containment is checked in memory since partner sets vary
// per request.
func (s *SQLStore) Find(ctx context.Context, cardID string, partnerIDs []string) ([]*Combo, error) {
	query := `
		SELECT c.id, c.name, c.type_tags, c.complexity, c.popularity, c.total_price,
		       c.legal_formats, c.banned_formats, c.color_identity, c.weaknesses, c.description
		FROM combos c
		JOIN combo_cards cc ON cc.combo_id = c.id
		WHERE cc.card_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, cardID)
	if err != nil {
		return nil, fmt.Errorf("query combos for %s: %w", cardID, err)
	}
	defer func() { _ = rows.Close() }()

	var combos []*Combo
	for rows.Next() {
		cb, err := scanCombo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan combo: %w", err)
		}
		combos = append(combos, cb)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pool := make(map[string]struct{}, len(partnerIDs)+1)
	pool[cardID] = struct{}{}
	for _, id := range partnerIDs {
		pool[id] = struct{}{}
	}

	var found []*Combo
	for _, cb := range combos {
		members, err := s.loadMembers(ctx, cb.ID)
		if err != nil {
			return nil, err
		}
		cb.CardIDs = members

		if containedIn(members, pool) {
			found = append(found, cb)
		}
	}

	return found, nil
}

// loadMembers returns the ordered member card ids of a combo.
func (s *SQLStore) loadMembers(ctx context.Context, comboID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT card_id FROM combo_cards WHERE combo_id = ? ORDER BY position`, comboID)
	if err != nil {
		return nil, fmt.Errorf("query combo members for %s: %w", comboID, err)
	}
	defer func() { _ = rows.Close() }()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func containedIn(members []string, pool map[string]struct{}) bool {
	for _, m := range members {
		if _, ok := pool[m]; !ok {
			return false
		}
	}
	return true
}

func scanCombo(rows *sql.Rows) (*Combo, error) {
	var (
		cb            Combo
		complexity    string
		typeTags      string
		legalFormats  string
		bannedFormats string
		colorIdentity string
		weaknesses    string
	)

	err := rows.Scan(
		&cb.ID,
		&cb.Name,
		&typeTags,
		&complexity,
		&cb.Popularity,
		&cb.TotalPrice,
		&legalFormats,
		&bannedFormats,
		&colorIdentity,
		&weaknesses,
		&cb.Description,
	)
	if err != nil {
		return nil, err
	}

	cb.Complexity = ParseComplexity(complexity)
	cb.TypeTags = splitList(typeTags)
	cb.LegalFormats = splitList(legalFormats)
	cb.BannedFormats = splitList(bannedFormats)
	cb.ColorIdentity = splitList(colorIdentity)
	cb.Weaknesses = splitList(weaknesses)

	return &cb, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
