// Package persist upserts listing batches and accounts for completeness and
// novelty per site and category.
package persist

import (
	"context"
	"time"

	"sjsage522/listingworker/internal/listing"
	"sjsage522/listingworker/internal/metrics"
	"sjsage522/listingworker/internal/store"
	"sjsage522/listingworker/logger"
	pkgerrors "sjsage522/listingworker/pkg/errors"
)

// CategoryStats holds the counters of one category within a site
type CategoryStats struct {
	Total    int `json:"total"`
	New      int `json:"new"`
	Complete int `json:"complete"`
}

// SiteStats holds the counters of one persisted batch
type SiteStats struct {
	Site       string                    `json:"site"`
	Total      int                       `json:"total"`
	New        int                       `json:"new"`
	Complete   int                       `json:"complete"`
	Failed     int                       `json:"failed"`
	Categories map[string]*CategoryStats `json:"categories"`
}

// NewSiteStats creates empty stats for a site
func NewSiteStats(site string) SiteStats {
	return SiteStats{Site: site, Categories: make(map[string]*CategoryStats)}
}

// Merge adds the counters of other into s
func (s *SiteStats) Merge(other SiteStats) {
	s.Total += other.Total
	s.New += other.New
	s.Complete += other.Complete
	s.Failed += other.Failed
	for name, cat := range other.Categories {
		c := s.category(name)
		c.Total += cat.Total
		c.New += cat.New
		c.Complete += cat.Complete
	}
}

func (s *SiteStats) category(name string) *CategoryStats {
	if s.Categories == nil {
		s.Categories = make(map[string]*CategoryStats)
	}
	c, ok := s.Categories[name]
	if !ok {
		c = &CategoryStats{}
		s.Categories[name] = c
	}
	return c
}

// Persister writes batches to a Store
type Persister struct {
	store store.Store
	mode  store.Mode
	log   *logger.Logger
	now   func() time.Time
}

// NewPersister creates a persister writing with the given mode
func NewPersister(s store.Store, mode store.Mode) *Persister {
	return &Persister{
		store: s,
		mode:  mode,
		log:   logger.ForPersist(),
		now:   time.Now,
	}
}

// Persist upserts every listing of batch under site and returns the batch
// counters. A failed write is logged and counted; it never aborts the batch.
func (p *Persister) Persist(ctx context.Context, site string, batch listing.PagedListings) SiteStats {
	stats := NewSiteStats(site)

	if err := p.store.EnsureIndexes(ctx); err != nil {
		p.log.Error().Err(err).Str("site", site).Msg("Failed to ensure listing indexes")
	}

	for _, l := range batch.Flatten() {
		stats.Total++
		cat := stats.category(l.CategoryOrDefault())
		cat.Total++
		if l.IsComplete() {
			stats.Complete++
			cat.Complete++
		}

		if l.Link == "" {
			p.log.Debug().Str("site", site).Str("title", l.Title.Original).Msg("Skipping listing without link")
			continue
		}

		l.Source = site
		now := p.now()
		inserted, err := p.store.Upsert(ctx, l, p.mode, now)
		if err != nil {
			stats.Failed++
			metrics.PersistFailures.WithLabelValues(site).Inc()
			p.log.Error().
				Err(pkgerrors.NewPersistence(site, "upsert failed", err)).
				Str("link", l.Link).
				Msg("Failed to persist listing")
			continue
		}

		l.LastUpdated = now
		if inserted {
			l.ScrapedAt = now
			stats.New++
			cat.New++
		}
	}

	metrics.ListingsNew.WithLabelValues(site).Add(float64(stats.New))
	p.log.Info().
		Str("site", site).
		Int("total", stats.Total).
		Int("new", stats.New).
		Int("complete", stats.Complete).
		Int("failed", stats.Failed).
		Msg("Persisted batch")

	return stats
}
