package translate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/listingworker/internal/listing"
	"sjsage522/listingworker/internal/persist"
	"sjsage522/listingworker/services/cache"
)

// prefixTranslator marks every tagged title with "EN:" and counts calls
type prefixTranslator struct {
	mu    sync.Mutex
	calls int
	fail  string
}

// Ensure prefixTranslator implements Translator
var _ Translator = (*prefixTranslator)(nil)

func (p *prefixTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.fail != "" && strings.Contains(text, p.fail) {
		return "", errors.New("quota exceeded")
	}
	return tagPattern.ReplaceAllString(text, "${0}EN:"), nil
}

// recordingPersister records batches in arrival order
type recordingPersister struct {
	mu      sync.Mutex
	sites   []string
	batches []listing.PagedListings
	block   chan struct{}
}

// Ensure recordingPersister implements Persister
var _ Persister = (*recordingPersister)(nil)

func (r *recordingPersister) Persist(ctx context.Context, site string, batch listing.PagedListings) persist.SiteStats {
	if r.block != nil {
		<-r.block
	}
	if site == "panics" {
		panic("store exploded")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites = append(r.sites, site)
	r.batches = append(r.batches, batch)

	stats := persist.NewSiteStats(site)
	stats.Total = batch.Len()
	return stats
}

// mapCache is an in-memory cache.CacheService
type mapCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

// Ensure mapCache implements cache.CacheService
var _ cache.CacheService = (*mapCache)(nil)

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string][]byte)}
}

func (m *mapCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.items[key]; ok {
		return v, nil
	}
	return nil, cache.ErrMiss
}

func (m *mapCache) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *mapCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func titled(titles ...string) []*listing.Listing {
	var out []*listing.Listing
	for _, title := range titles {
		out = append(out, &listing.Listing{Link: "https://example.com/" + title, Title: listing.Title{Original: title}})
	}
	return out
}

func TestStageMutatesOriginalBatch(t *testing.T) {
	tr := &prefixTranslator{}
	rec := &recordingPersister{}
	stage := NewStage(tr, rec, Options{})

	batch := listing.PagedListings{
		1: titled("Hej", "Gitarr"),
		2: append(titled("Förstärkare"), &listing.Listing{Link: "https://example.com/untitled"}),
	}

	stage.Start(context.Background())
	require.NoError(t, stage.Enqueue("blocket", batch))
	results := stage.Stop()

	require.Len(t, results, 1)
	assert.Equal(t, "blocket", results[0].Site)
	assert.Equal(t, 4, results[0].Total)

	for _, l := range batch.Flatten() {
		require.NotNil(t, l.Title.English, "listing %s has no english title", l.Link)
	}
	assert.Equal(t, "EN:Hej", *batch[1][0].Title.English)
	assert.Equal(t, "EN:Gitarr", *batch[1][1].Title.English)
	assert.Equal(t, "EN:Förstärkare", *batch[2][0].Title.English)
	assert.Equal(t, "", *batch[2][1].Title.English)

	// the persister saw the very same batch, not a copy
	require.Len(t, rec.batches, 1)
	assert.Same(t, batch[1][0], rec.batches[0][1][0])
}

func TestStageProcessesInFIFOOrder(t *testing.T) {
	rec := &recordingPersister{}
	stage := NewStage(&prefixTranslator{}, rec, Options{})

	stage.Start(context.Background())
	for _, site := range []string{"kleinanzeigen", "tori", "olx", "tori"} {
		require.NoError(t, stage.Enqueue(site, listing.PagedListings{1: titled("x")}))
	}
	results := stage.Stop()

	assert.Equal(t, []string{"kleinanzeigen", "tori", "olx", "tori"}, rec.sites)
	assert.Len(t, results, 4)
}

func TestStageStopWaitsForQueuedWork(t *testing.T) {
	rec := &recordingPersister{block: make(chan struct{})}
	stage := NewStage(&prefixTranslator{}, rec, Options{})
	stage.Start(context.Background())
	require.NoError(t, stage.Enqueue("dba", listing.PagedListings{1: titled("Bord")}))

	stopped := make(chan []persist.SiteStats)
	go func() { stopped <- stage.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the queued batch was persisted")
	case <-time.After(50 * time.Millisecond):
	}

	close(rec.block)
	select {
	case results := <-stopped:
		assert.Len(t, results, 1)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the batch was persisted")
	}

	assert.ErrorIs(t, stage.Enqueue("dba", listing.PagedListings{}), ErrStopped)
}

func TestStageChunkFailureFallsBackToOriginal(t *testing.T) {
	tr := &prefixTranslator{fail: "kaputt"}
	stage := NewStage(tr, &recordingPersister{}, Options{ChunkBudget: 100})

	// each title fills its own chunk
	good := strings.Repeat("g", 80)
	bad := "kaputt " + strings.Repeat("b", 70)
	batch := listing.PagedListings{1: titled(good, bad)}

	stage.TranslateBatch(context.Background(), "tori", batch)

	assert.Equal(t, 2, tr.calls)
	assert.Equal(t, "EN:"+good, *batch[1][0].Title.English)
	assert.Equal(t, bad, *batch[1][1].Title.English)
}

func TestStageRecoversFromPanicAndContinues(t *testing.T) {
	rec := &recordingPersister{}
	stage := NewStage(&prefixTranslator{}, rec, Options{})

	stage.Start(context.Background())
	require.NoError(t, stage.Enqueue("panics", listing.PagedListings{1: titled("a")}))
	require.NoError(t, stage.Enqueue("ricardo", listing.PagedListings{1: titled("b")}))
	results := stage.Stop()

	assert.Equal(t, []string{"ricardo"}, rec.sites)
	require.Len(t, results, 1)
	assert.Equal(t, "ricardo", results[0].Site)
}

func TestStageCacheSkipsTranslator(t *testing.T) {
	tr := &prefixTranslator{}
	c := newMapCache()
	stage := NewStage(tr, &recordingPersister{}, Options{Cache: c, CacheTTL: time.Hour})

	first := listing.PagedListings{1: titled("Hej", "Gitarr")}
	stage.TranslateBatch(context.Background(), "blocket", first)
	assert.Equal(t, 1, tr.calls)

	second := listing.PagedListings{1: titled("Gitarr", "Hej")}
	stage.TranslateBatch(context.Background(), "blocket", second)
	assert.Equal(t, 1, tr.calls, "cached titles must not reach the translator")
	assert.Equal(t, "EN:Gitarr", *second[1][0].Title.English)
	assert.Equal(t, "EN:Hej", *second[1][1].Title.English)
}

func TestStageStopWithoutStart(t *testing.T) {
	stage := NewStage(&prefixTranslator{}, &recordingPersister{}, Options{})
	assert.Nil(t, stage.Stop())
	assert.ErrorIs(t, stage.Enqueue("olx", listing.PagedListings{}), ErrStopped)
}

func TestStagePacesChunks(t *testing.T) {
	tr := &prefixTranslator{}
	stage := NewStage(tr, &recordingPersister{}, Options{ChunkBudget: 100, Pause: 40 * time.Millisecond})

	batch := listing.PagedListings{1: titled(strings.Repeat("a", 80), strings.Repeat("b", 80), strings.Repeat("c", 80))}

	start := time.Now()
	stage.TranslateBatch(context.Background(), "dba", batch)

	assert.Equal(t, 3, tr.calls)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
