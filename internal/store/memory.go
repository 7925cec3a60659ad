package store

import (
	"context"
	"sync"
	"time"

	"sjsage522/listingworker/internal/listing"
)

type key struct {
	link   string
	source string
}

// MemoryStore is an in-process Store used for dry runs and tests
type MemoryStore struct {
	mu   sync.Mutex
	docs map[key]listing.Listing
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[key]listing.Listing)}
}

// EnsureIndexes is a no-op; uniqueness is enforced by the map key
func (s *MemoryStore) EnsureIndexes(ctx context.Context) error {
	return nil
}

// Upsert stores a copy of l keyed on (link, source)
func (s *MemoryStore) Upsert(ctx context.Context, l *listing.Listing, mode Mode, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{link: l.Link, source: l.Source}
	existing, found := s.docs[k]
	if found && mode == ModeSkip {
		return false, nil
	}

	doc := copyListing(l)
	doc.Category = l.CategoryOrDefault()
	doc.LastUpdated = now
	if found {
		doc.ScrapedAt = existing.ScrapedAt
	} else {
		doc.ScrapedAt = now
	}
	s.docs[k] = doc
	return !found, nil
}

// Count returns the number of stored listings
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.docs)), nil
}

// CountScrapedBefore counts listings first scraped before cutoff
func (s *MemoryStore) CountScrapedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, doc := range s.docs {
		if doc.ScrapedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

// DeleteScrapedBefore deletes listings first scraped before cutoff
func (s *MemoryStore) DeleteScrapedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, doc := range s.docs {
		if doc.ScrapedAt.Before(cutoff) {
			delete(s.docs, k)
			n++
		}
	}
	return n, nil
}

// Get returns the stored listing for (link, source)
func (s *MemoryStore) Get(link, source string) (listing.Listing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key{link: link, source: source}]
	return doc, ok
}

// Put stores a document as-is, bypassing upsert timestamps
func (s *MemoryStore) Put(doc listing.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key{link: doc.Link, source: doc.Source}] = copyListing(&doc)
}

// Close is a no-op
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func copyListing(l *listing.Listing) listing.Listing {
	doc := *l
	if l.Title.English != nil {
		english := *l.Title.English
		doc.Title.English = &english
	}
	return doc
}
