package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iconidentify/grabbot/internal/domain"
)

type linkEntry struct {
	url      string
	storedAt time.Time
}

// LedgerOptions bounds an InMemoryLinkRepository. The zero value is unbounded:
// entries live for the whole process.
type LedgerOptions struct {
	MaxEntries int
	TTL        time.Duration
}

// InMemoryLinkRepository implements LinkRepository using in-memory storage.
type InMemoryLinkRepository struct {
	mu      sync.RWMutex
	links   map[domain.LinkKey]linkEntry
	order   []domain.LinkKey // insertion order, oldest first; only kept when bounded
	opts    LedgerOptions
	evicted int
	now     func() time.Time
}

// NewInMemoryLinkRepository creates a new in-memory link repository.
func NewInMemoryLinkRepository(opts LedgerOptions) *InMemoryLinkRepository {
	return &InMemoryLinkRepository{
		links: make(map[domain.LinkKey]linkEntry),
		order: make([]domain.LinkKey, 0),
		opts:  opts,
		now:   time.Now,
	}
}

// Put records the URL for key, replacing any previous value.
func (r *InMemoryLinkRepository) Put(ctx context.Context, key domain.LinkKey, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.links[key]
	r.links[key] = linkEntry{url: url, storedAt: r.now()}

	if r.opts.MaxEntries <= 0 {
		return nil
	}

	if exists {
		r.removeFromOrder(key)
	}
	r.order = append(r.order, key)

	for len(r.links) > r.opts.MaxEntries && len(r.order) > 0 {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.links, oldest)
		r.evicted++
	}

	return nil
}

// Get returns the URL for key without removing it.
func (r *InMemoryLinkRepository) Get(ctx context.Context, key domain.LinkKey) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.links[key]
	if !ok {
		return "", domain.ErrLinkNotFound
	}

	// Expired entries are left for the next Put to overwrite; reads stay read-only.
	if r.opts.TTL > 0 && r.now().Sub(entry.storedAt) > r.opts.TTL {
		return "", domain.ErrLinkNotFound
	}

	return entry.url, nil
}

// Stats returns ledger statistics.
func (r *InMemoryLinkRepository) Stats(ctx context.Context) (*LedgerStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return &LedgerStats{
		Entries:    len(r.links),
		Evicted:    r.evicted,
		MaxEntries: r.opts.MaxEntries,
	}, nil
}

// Clear removes all entries (useful for testing).
func (r *InMemoryLinkRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.links = make(map[domain.LinkKey]linkEntry)
	r.order = make([]domain.LinkKey, 0)
	r.evicted = 0
}

func (r *InMemoryLinkRepository) removeFromOrder(key domain.LinkKey) {
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
