// Package retrieval finds candidate cards for the suggestion engine.
// The keyword retriever matches query tokens against card names and type
// tags in SQLite; it trades recall for zero extra infrastructure.
package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/topherhaynie/mtg-card-app-sub000/internal/suggest"
)

// KeywordRetriever implements suggest.CandidateRetriever with token
// overlap scoring over the cards table.
type KeywordRetriever struct {
	db *sql.DB
}

// NewKeywordRetriever creates a retriever over the given database handle.
func NewKeywordRetriever(db *sql.DB) *KeywordRetriever {
	return &KeywordRetriever{db: db}
}

// Retrieve returns up to limit cards whose name or type tags overlap the
// query tokens, most relevant first. Excluded ids never come back.
func (r *KeywordRetriever) Retrieve(ctx context.Context, query string, exclude []string, limit int) ([]suggest.RetrievedCandidate, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 || limit <= 0 {
		return nil, nil
	}

	// One LIKE clause per token; scoring happens in Go so the SQL stays a
	// coarse prefilter.
	clauses := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)*2)
	for _, tok := range tokens {
		clauses = append(clauses, "(lower(name) LIKE ? OR lower(type_tags) LIKE ?)")
		pattern := "%" + tok + "%"
		args = append(args, pattern, pattern)
	}

	q := fmt.Sprintf(`
		SELECT id, name, type_tags
		FROM cards
		WHERE %s
	`, strings.Join(clauses, " OR "))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidate cards: %w", err)
	}
	defer rows.Close()

	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	var hits []suggest.RetrievedCandidate
	for rows.Next() {
		var id, name, typeTags string
		if err := rows.Scan(&id, &name, &typeTags); err != nil {
			return nil, fmt.Errorf("scanning candidate row: %w", err)
		}
		if _, skip := excluded[id]; skip {
			continue
		}
		score := overlapScore(tokens, name, typeTags)
		if score <= 0 {
			continue
		}
		hits = append(hits, suggest.RetrievedCandidate{CardID: id, Relevance: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidate rows: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Relevance != hits[j].Relevance {
			return hits[i].Relevance > hits[j].Relevance
		}
		return hits[i].CardID < hits[j].CardID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// overlapScore is the fraction of query tokens found in the card's name or
// type tags, with exact tag matches counting double.
func overlapScore(tokens []string, name, typeTags string) float64 {
	lowerName := strings.ToLower(name)
	tags := tokenize(typeTags)

	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}

	var matched float64
	for _, tok := range tokens {
		if _, exact := tagSet[tok]; exact {
			matched += 2
			continue
		}
		if strings.Contains(lowerName, tok) || strings.Contains(strings.ToLower(typeTags), tok) {
			matched++
		}
	}
	return matched / float64(len(tokens))
}

// tokenize lowercases and splits on whitespace, commas, and hyphens.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == '-'
	})

	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
