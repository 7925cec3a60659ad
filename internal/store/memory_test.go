package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/listingworker/internal/listing"
)

func TestMemoryStoreUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	l := &listing.Listing{Link: "x", Source: "blocket", Title: listing.Title{Original: "Gitarr"}}

	inserted, err := s.Upsert(ctx, l, ModeUpsert, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	l.Title.Original = "Gitarr (sold)"
	inserted, err = s.Upsert(ctx, l, ModeUpsert, second)
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	doc, ok := s.Get("x", "blocket")
	require.True(t, ok)
	assert.Equal(t, "Gitarr (sold)", doc.Title.Original)
	assert.Equal(t, first, doc.ScrapedAt)
	assert.Equal(t, second, doc.LastUpdated)
	assert.Equal(t, listing.DefaultCategory, doc.Category)
}

func TestMemoryStoreSkipModeKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	l := &listing.Listing{Link: "x", Source: "tori", Title: listing.Title{Original: "old"}}
	_, err := s.Upsert(ctx, l, ModeSkip, now)
	require.NoError(t, err)

	l.Title.Original = "new"
	inserted, err := s.Upsert(ctx, l, ModeSkip, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, inserted)

	doc, _ := s.Get("x", "tori")
	assert.Equal(t, "old", doc.Title.Original)
	assert.Equal(t, now, doc.LastUpdated)
}

func TestMemoryStoreSameLinkDifferentSource(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Upsert(ctx, &listing.Listing{Link: "x", Source: "a"}, ModeUpsert, time.Now())
	require.NoError(t, err)
	inserted, err := s.Upsert(ctx, &listing.Listing{Link: "x", Source: "b"}, ModeUpsert, time.Now())
	require.NoError(t, err)
	assert.True(t, inserted)

	count, _ := s.Count(ctx)
	assert.Equal(t, int64(2), count)
}

func TestMemoryStoreDeleteScrapedBefore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	s.Put(listing.Listing{Link: "old", Source: "dba", ScrapedAt: now.AddDate(0, 0, -91)})
	s.Put(listing.Listing{Link: "new", Source: "dba", ScrapedAt: now.AddDate(0, 0, -10)})

	cutoff := now.AddDate(0, 0, -60)
	found, err := s.CountScrapedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), found)

	deleted, err := s.DeleteScrapedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, ok := s.Get("old", "dba")
	assert.False(t, ok)
	_, ok = s.Get("new", "dba")
	assert.True(t, ok)
}
