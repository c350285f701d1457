package suggest

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/topherhaynie/mtg-card-app-sub000/internal/cards"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/combo"
)

type fakeRetriever struct {
	hits []RetrievedCandidate
	err  error
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, exclude []string, limit int) ([]RetrievedCandidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}
	var out []RetrievedCandidate
	for _, h := range f.hits {
		if _, skip := excluded[h.CardID]; skip {
			continue
		}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeRepo struct {
	cards map[string]*cards.Card
}

func (f *fakeRepo) Get(_ context.Context, id string) (*cards.Card, error) {
	if c, ok := f.cards[id]; ok {
		return c, nil
	}
	return nil, cards.ErrNotFound
}

func (f *fakeRepo) GetMany(_ context.Context, ids []string) (map[string]*cards.Card, error) {
	found := make(map[string]*cards.Card)
	for _, id := range ids {
		if c, ok := f.cards[id]; ok {
			found[id] = c
		}
	}
	return found, nil
}

type fakeExplainer struct {
	calls atomic.Int64
	err   error
}

func (f *fakeExplainer) Explain(_ context.Context, name, _ string, _ *ExplanationContext) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "explained: " + name, nil
}

type engineFixture struct {
	retriever *fakeRetriever
	repo      *fakeRepo
	kb        *fakeKB
	explainer *fakeExplainer
	cache     *TTLCache
	engine    *Engine
}

func newEngineFixture() *engineFixture {
	repo := &fakeRepo{cards: map[string]*cards.Card{
		"leader-1": {ID: "leader-1", Name: "Leader", ColorIdentity: []string{"G", "W"}, LegalFormats: []string{"commander"}},
		"c1":       {ID: "c1", Name: "Deck Card One", ColorIdentity: []string{"G"}, LegalFormats: []string{"commander"}},
		"c2":       {ID: "c2", Name: "Deck Card Two", ColorIdentity: []string{"W"}, LegalFormats: []string{"commander"}},
		"c3":       {ID: "c3", Name: "Deck Card Three", ColorIdentity: []string{"G"}, LegalFormats: []string{"commander"}},
		"cand-1":   {ID: "cand-1", Name: "Candidate One", TypeTags: []string{"tokens"}, LegalFormats: []string{"commander"}},
		"cand-2":   {ID: "cand-2", Name: "Candidate Two", TypeTags: []string{"tokens"}, LegalFormats: []string{"commander"}},
		"cand-3":   {ID: "cand-3", Name: "Candidate Three", TypeTags: []string{"tokens"}, LegalFormats: []string{"commander"}},
	}}

	fx := &engineFixture{
		retriever: &fakeRetriever{hits: []RetrievedCandidate{
			{CardID: "cand-1", Relevance: 0.9},
			{CardID: "cand-2", Relevance: 0.8},
			{CardID: "cand-3", Relevance: 0.7},
		}},
		repo:      repo,
		kb:        newFakeKB(),
		explainer: &fakeExplainer{},
		cache:     NewTTLCache(time.Minute, 0),
	}

	fx.kb.combos["cand-1"] = []*combo.Combo{legalCombo("combo-1", "cand-1", "c1")}
	fx.kb.combos["cand-2"] = []*combo.Combo{legalCombo("combo-2", "cand-2", "c2")}

	ranker := NewRankingModel(-20, 1)
	fx.engine = NewEngine(Options{
		Retriever:             fx.retriever,
		Cards:                 fx.repo,
		Detector:              NewDetector(fx.kb, 4, 0.5),
		Filter:                NewFilterController(ranker),
		Explainer:             fx.explainer,
		Cache:                 fx.cache,
		DefaultMaxSuggestions: 10,
		ExplainWorkers:        2,
	})

	return fx
}

func TestSuggestReturnsRankedSuggestions(t *testing.T) {
	fx := newEngineFixture()

	resp, err := fx.engine.Suggest(context.Background(), testDeck(), &Constraint{})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	if len(resp.Suggestions) != 2 {
		t.Fatalf("got %d suggestions, want 2 (cand-3 has no combos)", len(resp.Suggestions))
	}
	for _, s := range resp.Suggestions {
		if len(s.Combos) == 0 {
			t.Errorf("suggestion %s has no combos in focused mode", s.Card.ID)
		}
		if s.Reason == "" {
			t.Errorf("suggestion %s has no reason", s.Card.ID)
		}
		if s.Synergy != s.Combos[0].Score {
			t.Errorf("suggestion %s synergy %v != best combo score %v", s.Card.ID, s.Synergy, s.Combos[0].Score)
		}
	}
	if resp.Partial {
		t.Error("response marked partial")
	}
}

func TestSuggestBroadModeKeepsCombolessCandidates(t *testing.T) {
	fx := newEngineFixture()

	resp, err := fx.engine.Suggest(context.Background(), testDeck(), &Constraint{Mode: ModeBroad})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	if len(resp.Suggestions) != 3 {
		t.Fatalf("broad mode got %d suggestions, want 3", len(resp.Suggestions))
	}
	last := resp.Suggestions[len(resp.Suggestions)-1]
	if last.Card.ID != "cand-3" || len(last.Combos) != 0 {
		t.Errorf("comboless candidate should sort last, got %s", last.Card.ID)
	}
}

func TestSuggestInvalidConstraint(t *testing.T) {
	fx := newEngineFixture()

	_, err := fx.engine.Suggest(context.Background(), testDeck(), &Constraint{Mode: "strict"})
	if !errors.Is(err, ErrInvalidConstraint) {
		t.Errorf("Suggest error = %v, want ErrInvalidConstraint", err)
	}
}

func TestSuggestMaxSuggestionsCap(t *testing.T) {
	fx := newEngineFixture()

	resp, err := fx.engine.Suggest(context.Background(), testDeck(), &Constraint{MaxSuggestions: 1})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(resp.Suggestions) != 1 {
		t.Errorf("got %d suggestions, want the cap of 1", len(resp.Suggestions))
	}
}

func TestSuggestEmptyRetrieval(t *testing.T) {
	fx := newEngineFixture()
	fx.retriever.hits = nil

	resp, err := fx.engine.Suggest(context.Background(), testDeck(), &Constraint{})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(resp.Suggestions) != 0 {
		t.Errorf("got %d suggestions from an empty retrieval, want 0", len(resp.Suggestions))
	}
}

func TestSuggestRetrievalFailureDegrades(t *testing.T) {
	fx := newEngineFixture()
	fx.retriever.err = errors.New("index offline")

	resp, err := fx.engine.Suggest(context.Background(), testDeck(), &Constraint{})
	if err != nil {
		t.Fatalf("Suggest should degrade, not fail: %v", err)
	}
	if len(resp.Warnings) == 0 {
		t.Error("retrieval failure produced no warning")
	}
}

func TestSuggestExplanationsOffByDefault(t *testing.T) {
	fx := newEngineFixture()

	if _, err := fx.engine.Suggest(context.Background(), testDeck(), &Constraint{}); err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if got := fx.explainer.calls.Load(); got != 0 {
		t.Errorf("explainer called %d times without the explain flag", got)
	}
}

func TestSuggestExplanationsOnDemand(t *testing.T) {
	fx := newEngineFixture()

	resp, err := fx.engine.Suggest(context.Background(), testDeck(), &Constraint{Explain: true})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if got := fx.explainer.calls.Load(); got != 2 {
		t.Errorf("explainer called %d times, want 2", got)
	}
	for _, s := range resp.Suggestions {
		for _, rc := range s.Combos {
			if !strings.HasPrefix(rc.Explanation, "explained: ") {
				t.Errorf("combo %s explanation = %q", rc.Combo.ID, rc.Explanation)
			}
		}
	}
}

func TestSuggestExplanationFailureDegrades(t *testing.T) {
	fx := newEngineFixture()
	fx.explainer.err = errors.New("model offline")

	resp, err := fx.engine.Suggest(context.Background(), testDeck(), &Constraint{Explain: true})
	if err != nil {
		t.Fatalf("Suggest should degrade, not fail: %v", err)
	}
	if len(resp.Warnings) != 2 {
		t.Errorf("got %d warnings, want one per failed explanation", len(resp.Warnings))
	}
	for _, s := range resp.Suggestions {
		for _, rc := range s.Combos {
			if rc.Explanation != "" {
				t.Errorf("failed explanation should stay empty, got %q", rc.Explanation)
			}
		}
	}
}

func TestSuggestCachesResults(t *testing.T) {
	fx := newEngineFixture()
	d := testDeck()

	first, err := fx.engine.Suggest(context.Background(), d, &Constraint{})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	// Second identical request is served from cache: same response value,
	// no new knowledge-base queries.
	queriesAfterFirst := len(fx.kb.queries)
	second, err := fx.engine.Suggest(context.Background(), d, &Constraint{})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if second != first {
		t.Error("second request did not hit the cache")
	}
	if len(fx.kb.queries) != queriesAfterFirst {
		t.Error("cache hit still queried the knowledge base")
	}
}

func TestSuggestBypassCache(t *testing.T) {
	fx := newEngineFixture()
	d := testDeck()

	first, err := fx.engine.Suggest(context.Background(), d, &Constraint{})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	second, err := fx.engine.Suggest(context.Background(), d, &Constraint{BypassCache: true})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if second == first {
		t.Error("bypass request returned the cached response")
	}

	// The bypass result refreshes the entry for subsequent requests.
	third, err := fx.engine.Suggest(context.Background(), d, &Constraint{})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if third != second {
		t.Error("bypass result should have replaced the cached entry")
	}
}

func TestSuggestInvalidateDeck(t *testing.T) {
	fx := newEngineFixture()
	d := testDeck()

	first, _ := fx.engine.Suggest(context.Background(), d, &Constraint{})
	fx.engine.InvalidateDeck(d.ID)

	second, err := fx.engine.Suggest(context.Background(), d, &Constraint{})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if second == first {
		t.Error("invalidated deck still served the cached response")
	}
}

func TestSuggestPartialNotCached(t *testing.T) {
	fx := newEngineFixture()
	fx.kb.errs["cand-1"] = context.DeadlineExceeded
	fx.kb.errs["cand-2"] = context.DeadlineExceeded

	d := testDeck()
	resp, err := fx.engine.Suggest(context.Background(), d, &Constraint{})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if !resp.Partial {
		t.Fatal("response should be partial after deadline expiries")
	}
	if fx.cache.Len() != 0 {
		t.Error("partial response was cached")
	}
}

func TestSuggestExcludesDeckAndBannedCards(t *testing.T) {
	fx := newEngineFixture()
	// Retriever would offer a deck card and a banned card if not excluded.
	fx.retriever.hits = append([]RetrievedCandidate{
		{CardID: "c1", Relevance: 1.0},
		{CardID: "cand-1", Relevance: 0.9},
	}, fx.retriever.hits[1:]...)

	resp, err := fx.engine.Suggest(context.Background(), testDeck(), &Constraint{
		Mode:          ModeBroad,
		BannedCardIDs: []string{"cand-2"},
	})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	for _, s := range resp.Suggestions {
		if s.Card.ID == "c1" {
			t.Error("deck card came back as a suggestion")
		}
		if s.Card.ID == "cand-2" {
			t.Error("banned card came back as a suggestion")
		}
	}
}
