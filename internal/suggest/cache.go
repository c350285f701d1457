package suggest

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/topherhaynie/mtg-card-app-sub000/internal/deck"
)

// ResultCache memoizes full suggestion responses. Implementations must be
// safe for concurrent use; reads are the common path and must not block on
// writes. Errors degrade to a fresh computation, never a failed request.
type ResultCache interface {
	Get(key string) (*Response, bool, error)
	Set(key string, resp *Response) error

	// InvalidateDeck removes every entry computed for the given deck.
	// Callers signal it on deck mutation.
	InvalidateDeck(deckID string)

	// Purge drops all entries, e.g. after a knowledge-base change.
	Purge()
}

// TTLCache is an in-memory ResultCache with per-entry expiry. It is
// explicitly constructed and injected into the engine; there is no
// process-wide cache state.
type TTLCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	entries map[string]cacheEntry
	byDeck  map[string]map[string]struct{}
}

type cacheEntry struct {
	resp      *Response
	deckID    string
	createdAt time.Time
}

// NewTTLCache creates a cache whose entries expire after ttl. maxSize
// bounds the entry count (0 = unlimited); when full, the oldest entry is
// evicted on write.
func NewTTLCache(ttl time.Duration, maxSize int) *TTLCache {
	return &TTLCache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]cacheEntry),
		byDeck:  make(map[string]map[string]struct{}),
	}
}

// Get returns the cached response for the key, if present and fresh.
func (c *TTLCache) Get(key string) (*Response, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Since(entry.createdAt) > c.ttl {
		return nil, false, nil
	}
	return entry.resp, true, nil
}

// Set stores the response under the key, evicting the oldest entry when
// the cache is full.
func (c *TTLCache) Set(key string, resp *Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		if _, exists := c.entries[key]; !exists {
			c.evictOldestLocked()
		}
	}

	deckID := ""
	if resp != nil {
		deckID = resp.deckID
	}

	c.entries[key] = cacheEntry{resp: resp, deckID: deckID, createdAt: time.Now()}
	if deckID != "" {
		if c.byDeck[deckID] == nil {
			c.byDeck[deckID] = make(map[string]struct{})
		}
		c.byDeck[deckID][key] = struct{}{}
	}
	return nil
}

// InvalidateDeck removes every entry computed for the given deck.
func (c *TTLCache) InvalidateDeck(deckID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.byDeck[deckID] {
		delete(c.entries, key)
	}
	delete(c.byDeck, deckID)
}

// Purge drops all entries.
func (c *TTLCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
	c.byDeck = make(map[string]map[string]struct{})
}

// Len returns the current entry count, counting expired entries that have
// not been evicted yet.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TTLCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.createdAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.createdAt
		}
	}
	if oldestKey == "" {
		return
	}
	entry := c.entries[oldestKey]
	delete(c.entries, oldestKey)
	if entry.deckID != "" {
		delete(c.byDeck[entry.deckID], oldestKey)
	}
}

// Fingerprint derives a stable cache key from the deck contents, the
// leader, and every constraint value that affects the response. Card ids
// are sorted so list order does not change the key.
func Fingerprint(d *deck.Deck, c *Constraint) string {
	var b strings.Builder

	b.WriteString("deck:")
	b.WriteString(d.ID)
	b.WriteString("|format:")
	b.WriteString(d.Format)
	b.WriteString("|leader:")
	b.WriteString(d.LeaderID)
	b.WriteString("|theme:")
	b.WriteString(d.Theme())

	b.WriteString("|cards:")
	writeSorted(&b, d.CardIDs)

	b.WriteString("|ctheme:")
	b.WriteString(c.Theme)
	if c.Budget != nil {
		fmt.Fprintf(&b, "|budget:%.4f", *c.Budget)
	}
	if c.PowerTarget != nil {
		fmt.Fprintf(&b, "|power:%d", *c.PowerTarget)
	}
	b.WriteString("|banned:")
	writeSorted(&b, c.BannedCardIDs)
	b.WriteString("|excluded:")
	writeSorted(&b, c.ExcludedCardIDs)
	b.WriteString("|types:")
	writeSorted(&b, c.ComboTypes)
	fmt.Fprintf(&b, "|max:%d|mode:%s|limit:%d|sort:%s|explain:%t",
		c.MaxSuggestions, c.Mode, c.ComboLimit, c.SortBy, c.Explain)

	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func writeSorted(b *strings.Builder, items []string) {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	b.WriteString(strings.Join(sorted, ","))
}
