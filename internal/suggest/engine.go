package suggest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/topherhaynie/mtg-card-app-sub000/internal/cards"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/deck"
)

// retrievalMultiplier oversizes the candidate pool relative to the
// suggestion cap so filtering still leaves enough material.
const retrievalMultiplier = 3

// RetrievedCandidate is one hit from the candidate retriever.
type RetrievedCandidate struct {
	CardID    string
	Relevance float64
}

// CandidateRetriever finds cards that plausibly fit the deck. The query is
// free text (typically the theme); exclude lists ids that must not come
// back. Results arrive most relevant first.
type CandidateRetriever interface {
	Retrieve(ctx context.Context, query string, exclude []string, limit int) ([]RetrievedCandidate, error)
}

// Suggestion is one recommended card with its supporting combos.
type Suggestion struct {
	Card       *cards.Card    `json:"card"`
	Relevance  float64        `json:"relevance"`
	Synergy    float64        `json:"synergy"` // Best combo score, 0 when no combos survived
	Weaknesses []string       `json:"weaknesses,omitempty"`
	Reason     string         `json:"reason"`
	Combos     []*RankedCombo `json:"combos,omitempty"`
}

// Response is the full result of one suggestion request.
type Response struct {
	Suggestions []*Suggestion `json:"suggestions"`
	Partial     bool          `json:"partial,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`

	deckID string
}

// Engine wires candidate retrieval, combo detection, ranking, filtering,
// explanation, and caching into the suggestion pipeline.
type Engine struct {
	retriever      CandidateRetriever
	cards          cards.Repository
	detector       *Detector
	filter         *FilterController
	explainer      ExplanationGenerator
	cache          ResultCache
	defaultMax     int
	explainWorkers int
}

// Options collects the engine's collaborators and tuning values.
type Options struct {
	Retriever CandidateRetriever
	Cards     cards.Repository
	Detector  *Detector
	Filter    *FilterController

	// Explainer may be nil; explanations are then skipped even when
	// requested.
	Explainer ExplanationGenerator

	// Cache may be nil to disable result caching entirely.
	Cache ResultCache

	// DefaultMaxSuggestions applies when the constraint leaves
	// MaxSuggestions unset.
	DefaultMaxSuggestions int

	// ExplainWorkers bounds concurrent explanation generation.
	ExplainWorkers int
}

// NewEngine creates a suggestion engine from the given options.
func NewEngine(opts Options) *Engine {
	if opts.DefaultMaxSuggestions <= 0 {
		opts.DefaultMaxSuggestions = 10
	}
	if opts.ExplainWorkers <= 0 {
		opts.ExplainWorkers = 1
	}
	return &Engine{
		retriever:      opts.Retriever,
		cards:          opts.Cards,
		detector:       opts.Detector,
		filter:         opts.Filter,
		explainer:      opts.Explainer,
		cache:          opts.Cache,
		defaultMax:     opts.DefaultMaxSuggestions,
		explainWorkers: opts.ExplainWorkers,
	}
}

// Suggest runs the full pipeline for one deck and constraint. Collaborator
// failures degrade the response (warnings, partial results) rather than
// failing it; only invalid input returns an error.
func (e *Engine) Suggest(ctx context.Context, d *deck.Deck, c *Constraint) (*Response, error) {
	if c == nil {
		c = &Constraint{}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	norm := c.normalized(e.defaultMax)
	key := Fingerprint(d, &norm)

	resp := &Response{deckID: d.ID}

	if e.cache != nil && !norm.BypassCache {
		cached, ok, err := e.cache.Get(key)
		if err != nil {
			log.Printf("result cache read failed: %v", err)
			resp.Warnings = append(resp.Warnings, "result cache unavailable")
		} else if ok {
			return cached, nil
		}
	}

	// Candidate intake. Deck members, the leader, and banned cards never
	// come back as candidates.
	exclude := make([]string, 0, len(d.CardIDs)+len(norm.BannedCardIDs)+1)
	exclude = append(exclude, d.CardIDs...)
	if d.LeaderID != "" {
		exclude = append(exclude, d.LeaderID)
	}
	exclude = append(exclude, norm.BannedCardIDs...)

	retrieved, err := e.retriever.Retrieve(ctx, e.retrievalQuery(d, &norm), exclude, norm.MaxSuggestions*retrievalMultiplier)
	if err != nil {
		log.Printf("candidate retrieval failed for deck %s: %v", d.ID, err)
		resp.Warnings = append(resp.Warnings, "candidate retrieval failed")
		return resp, nil
	}

	candidates, relevance := dedupeCandidates(retrieved, exclude)
	if len(candidates) == 0 {
		e.store(key, resp)
		return resp, nil
	}

	// One batch resolves candidates plus deck members so the summary's
	// color identity is grounded in real card data.
	lookupIDs := make([]string, 0, len(candidates)+len(d.CardIDs)+1)
	lookupIDs = append(lookupIDs, candidates...)
	lookupIDs = append(lookupIDs, d.CardIDs...)
	if d.LeaderID != "" {
		lookupIDs = append(lookupIDs, d.LeaderID)
	}

	byID, err := e.cards.GetMany(ctx, lookupIDs)
	if err != nil {
		return nil, fmt.Errorf("resolving cards for deck %s: %w", d.ID, err)
	}

	sum := deck.Summarize(d, byID)

	// Drop candidates that did not resolve or are illegal in the format.
	usable := candidates[:0]
	for _, id := range candidates {
		card, ok := byID[id]
		if !ok {
			continue
		}
		if d.Format != "" && !card.LegalIn(d.Format) {
			continue
		}
		usable = append(usable, id)
	}

	detection := e.detector.Detect(ctx, usable, sum, &norm)
	resp.Partial = detection.Partial
	resp.Warnings = append(resp.Warnings, detection.Warnings...)

	for _, id := range usable {
		ranked := e.filter.RankAndFilter(detection.ByCandidate[id], sum, &norm)
		if len(ranked) == 0 && norm.Mode == ModeFocused {
			continue
		}
		resp.Suggestions = append(resp.Suggestions, buildSuggestion(byID[id], relevance[id], ranked))
	}

	sortSuggestions(resp.Suggestions)
	if len(resp.Suggestions) > norm.MaxSuggestions {
		resp.Suggestions = resp.Suggestions[:norm.MaxSuggestions]
	}

	if norm.Explain && e.explainer != nil {
		names := make(map[string]string, len(byID))
		for id, card := range byID {
			names[id] = card.Name
		}
		warnings, partial := integrateExplanations(ctx, e.explainer, resp.Suggestions, names,
			norm.Theme, d.Format, norm.PowerTarget, e.explainWorkers)
		resp.Warnings = append(resp.Warnings, warnings...)
		if partial {
			resp.Partial = true
		}
	}

	// Partial results are never cached; the next request should retry the
	// full computation.
	if !resp.Partial {
		e.store(key, resp)
	}

	return resp, nil
}

// InvalidateDeck drops cached responses for the deck. Call it whenever the
// deck's contents change.
func (e *Engine) InvalidateDeck(deckID string) {
	if e.cache != nil {
		e.cache.InvalidateDeck(deckID)
	}
}

// PurgeCache drops all cached responses, e.g. after the combo knowledge
// base is replaced.
func (e *Engine) PurgeCache() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

func (e *Engine) store(key string, resp *Response) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(key, resp); err != nil {
		log.Printf("result cache write failed: %v", err)
	}
}

// retrievalQuery prefers the constraint theme, then the deck's declared
// theme, then the format as a last resort.
func (e *Engine) retrievalQuery(d *deck.Deck, c *Constraint) string {
	if c.Theme != "" {
		return c.Theme
	}
	if theme := d.Theme(); theme != "" {
		return theme
	}
	return d.Format
}

// dedupeCandidates keeps the first (most relevant) occurrence of each id
// and re-applies the exclusion list in case the retriever ignored it.
func dedupeCandidates(retrieved []RetrievedCandidate, exclude []string) ([]string, map[string]float64) {
	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	ids := make([]string, 0, len(retrieved))
	relevance := make(map[string]float64, len(retrieved))
	for _, rc := range retrieved {
		if _, skip := excluded[rc.CardID]; skip {
			continue
		}
		if _, dup := relevance[rc.CardID]; dup {
			continue
		}
		relevance[rc.CardID] = rc.Relevance
		ids = append(ids, rc.CardID)
	}
	return ids, relevance
}

// buildSuggestion assembles one suggestion from its ranked combos. Synergy
// is the best combo score; weaknesses are the sorted union across combos.
func buildSuggestion(card *cards.Card, relevance float64, ranked []*RankedCombo) *Suggestion {
	s := &Suggestion{
		Card:      card,
		Relevance: relevance,
		Combos:    ranked,
	}

	bestName := ""
	weaknessSet := make(map[string]struct{})
	for i, rc := range ranked {
		if i == 0 || rc.Score > s.Synergy {
			s.Synergy = rc.Score
			bestName = rc.Combo.Name
		}
		for _, w := range rc.Combo.Weaknesses {
			weaknessSet[strings.ToLower(w)] = struct{}{}
		}
	}
	for w := range weaknessSet {
		s.Weaknesses = append(s.Weaknesses, w)
	}
	sort.Strings(s.Weaknesses)

	switch {
	case len(ranked) == 0:
		s.Reason = fmt.Sprintf("%s matched the search but no combo lines survived filtering", card.Name)
	case len(ranked) == 1:
		s.Reason = fmt.Sprintf("%s enables %s (score %.1f)", card.Name, bestName, s.Synergy)
	default:
		s.Reason = fmt.Sprintf("%s enables %d combo lines, strongest %s (score %.1f)",
			card.Name, len(ranked), bestName, s.Synergy)
	}

	return s
}

// sortSuggestions orders suggestions by synergy, then retrieval relevance,
// then card id so the final ordering is total.
func sortSuggestions(suggestions []*Suggestion) {
	sort.Slice(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Synergy != b.Synergy {
			return a.Synergy > b.Synergy
		}
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		return a.Card.ID < b.Card.ID
	})
}
