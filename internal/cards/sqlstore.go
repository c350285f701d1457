package cards

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
)

// SQLStore is a SQLite-backed card repository.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a card repository over the given database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Get returns the card for the given id, or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, id string) (*Card, error) {
	query := `
		SELECT id, name, colors, color_identity, cost_value, price, type_tags, legal_formats
		FROM cards
		WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

// GetMany resolves multiple ids concurrently. Lookups that fail are
// dropped from the result; the batch itself never fails.
func (s *SQLStore) GetMany(ctx context.Context, ids []string) (map[string]*Card, error) {
	found := make(map[string]*Card, len(ids))
	var mu sync.Mutex

	type result struct {
		id   string
		card *Card
		err  error
	}

	results := make(chan result, len(ids))
	sem := make(chan struct{}, 10) // Limit concurrent lookups

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(cardID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			card, err := s.Get(ctx, cardID)
			results <- result{id: cardID, card: card, err: err}
		}(id)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.err == nil && res.card != nil {
			mu.Lock()
			found[res.id] = res.card
			mu.Unlock()
		}
	}

	return found, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*Card, error) {
	var (
		card          Card
		colors        string
		colorIdentity string
		typeTags      string
		legalFormats  string
	)

	err := row.Scan(
		&card.ID,
		&card.Name,
		&colors,
		&colorIdentity,
		&card.CostValue,
		&card.Price,
		&typeTags,
		&legalFormats,
	)
	if err != nil {
		return nil, err
	}

	card.Colors = splitList(colors)
	card.ColorIdentity = splitList(colorIdentity)
	card.TypeTags = splitList(typeTags)
	card.LegalFormats = splitList(legalFormats)

	return &card, nil
}

// splitList parses a comma-joined column into a slice.
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

// JoinList is the inverse of the column parsing used by scanCard; importers
// use it when writing card rows.
func JoinList(items []string) string {
	return strings.Join(items, ",")
}
