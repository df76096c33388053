package repository

import (
	"context"

	"github.com/iconidentify/grabbot/internal/domain"
)

// LinkRepository remembers which source URL produced a delivered video so the
// audio-only action can fetch it again later.
type LinkRepository interface {
	// Put records the URL for key, replacing any previous value.
	Put(ctx context.Context, key domain.LinkKey, url string) error

	// Get returns the URL for key without removing it.
	// Returns domain.ErrLinkNotFound when nothing is recorded.
	Get(ctx context.Context, key domain.LinkKey) (string, error)

	// Stats returns ledger statistics.
	Stats(ctx context.Context) (*LedgerStats, error)
}

// LedgerStats contains request ledger statistics.
type LedgerStats struct {
	Entries    int
	Evicted    int
	MaxEntries int
}
