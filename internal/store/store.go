// Package store persists listings keyed by (link, source).
package store

import (
	"context"
	"time"

	"sjsage522/listingworker/internal/listing"
)

// Mode controls what an upsert does when the (link, source) pair already exists
type Mode int

const (
	// ModeUpsert overwrites the content fields and refreshes last_updated
	ModeUpsert Mode = iota
	// ModeSkip leaves an existing document untouched
	ModeSkip
)

// Store is the listings collection.
// Implementations must enforce uniqueness of (link, source) and be safe for
// concurrent use.
type Store interface {
	// EnsureIndexes creates the unique (link, source) index. Safe to call repeatedly.
	EnsureIndexes(ctx context.Context) error

	// Upsert writes l keyed on (l.Link, l.Source) and reports whether a new
	// document was inserted. now becomes scraped_at on insert and last_updated
	// on every write.
	Upsert(ctx context.Context, l *listing.Listing, mode Mode, now time.Time) (bool, error)

	// Count returns the number of stored listings
	Count(ctx context.Context) (int64, error)

	// CountScrapedBefore counts listings first scraped before cutoff
	CountScrapedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteScrapedBefore deletes listings first scraped before cutoff
	DeleteScrapedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the underlying connection
	Close(ctx context.Context) error
}
