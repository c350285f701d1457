// Package assistant assembles the deck suggestion engine from its parts:
// configuration, SQLite storage, candidate retrieval, the combo knowledge
// base, the explanation generator, and the result cache.
package assistant

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/topherhaynie/mtg-card-app-sub000/internal/cards"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/combo"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/config"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/deck"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/llm"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/retrieval"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/storage"
	"github.com/topherhaynie/mtg-card-app-sub000/internal/suggest"
)

// Assistant owns the suggestion engine and its backing resources.
type Assistant struct {
	cfg     *config.Config
	db      *storage.DB
	engine  *suggest.Engine
	cache   suggest.ResultCache
	watcher *combo.Watcher
}

// New builds an assistant from the given configuration. A nil cfg loads
// the configuration from disk, falling back to defaults.
func New(cfg *config.Config) (*Assistant, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("loading configuration: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = defaultDBPath()
	}

	dbCfg := storage.DefaultConfig(dbPath)
	dbCfg.AutoMigrate = cfg.Database.AutoMigrate

	db, err := storage.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", dbPath, err)
	}

	a := &Assistant{cfg: cfg, db: db}

	if cfg.Cache.Enabled {
		ttl, err := cfg.GetCacheTTL()
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("invalid cache TTL: %w", err)
		}
		a.cache = suggest.NewTTLCache(ttl, cfg.Cache.MaxSize)
	}

	genTimeout, err := cfg.GetGeneratorTimeout()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("invalid generator timeout: %w", err)
	}

	client := llm.NewClient(&llm.ClientConfig{
		BaseURL:        cfg.Generator.BaseURL,
		Model:          cfg.Generator.Model,
		RequestTimeout: genTimeout,
		RatePerSecond:  cfg.Generator.RatePerSecond,
		RateBurst:      cfg.Generator.RateBurst,
	})

	ranker := suggest.NewRankingModel(cfg.Engine.BudgetPenaltyFloor, cfg.Engine.PowerTierTolerance)
	detector := suggest.NewDetector(combo.NewSQLStore(db.Conn()), cfg.Engine.DetectorWorkers, cfg.Engine.BudgetCeilingRatio)

	a.engine = suggest.NewEngine(suggest.Options{
		Retriever:             retrieval.NewKeywordRetriever(db.Conn()),
		Cards:                 cards.NewSQLStore(db.Conn()),
		Detector:              detector,
		Filter:                suggest.NewFilterController(ranker),
		Explainer:             llm.NewExplainer(client),
		Cache:                 a.cache,
		DefaultMaxSuggestions: cfg.Engine.MaxSuggestions,
		ExplainWorkers:        cfg.Engine.ExplainWorkers,
	})

	// A replaced or rewritten database invalidates every cached result.
	if cfg.Database.WatchFile && a.cache != nil && dbPath != ":memory:" {
		watcher, err := combo.NewWatcher(dbPath, a.engine.PurgeCache)
		if err != nil {
			log.Printf("database watcher unavailable: %v", err)
		} else {
			a.watcher = watcher
		}
	}

	return a, nil
}

// Suggest runs one suggestion request against the engine.
func (a *Assistant) Suggest(ctx context.Context, d *deck.Deck, c *suggest.Constraint) (*suggest.Response, error) {
	return a.engine.Suggest(ctx, d, c)
}

// DeckChanged drops cached results for the deck. Call it after any deck
// mutation.
func (a *Assistant) DeckChanged(deckID string) {
	a.engine.InvalidateDeck(deckID)
}

// Engine exposes the underlying engine for callers that need direct
// access.
func (a *Assistant) Engine() *suggest.Engine {
	return a.engine
}

// Close releases the watcher and the database.
func (a *Assistant) Close() error {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			log.Printf("closing database watcher: %v", err)
		}
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// defaultDBPath returns the database location used when the configuration
// leaves it unset.
func defaultDBPath() string {
	if path := os.Getenv("DECK_ASSISTANT_DB_PATH"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("error getting home directory: %v", err)
		return "data.db"
	}
	return filepath.Join(home, ".deck-assistant", "data.db")
}
