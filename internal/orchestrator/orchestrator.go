// Package orchestrator runs one ingestion cycle across every configured site
// and repeats cycles on an interval.
package orchestrator

import (
	"context"
	"math/rand"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"sjsage522/listingworker/internal/adapter"
	"sjsage522/listingworker/internal/listing"
	"sjsage522/listingworker/internal/metrics"
	"sjsage522/listingworker/internal/persist"
	"sjsage522/listingworker/internal/report"
	"sjsage522/listingworker/internal/sweeper"
	"sjsage522/listingworker/internal/translate"
	"sjsage522/listingworker/logger"
	pkgerrors "sjsage522/listingworker/pkg/errors"
)

// DefaultColdStartMultiplier scales page counts while the store is empty
const DefaultColdStartMultiplier = 20

// Counter reports how many listings are stored
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Sweeper removes expired listings
type Sweeper interface {
	Sweep(ctx context.Context, maxAgeDays int) (sweeper.Result, error)
}

// Options configures a run
type Options struct {
	SitePages           map[string]int
	PrioritySite        string
	EnglishSites        []string
	ColdStartMultiplier int
	RetentionDays       int
	Stage               translate.Options
}

// Report is the outcome of one cycle
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Order     []string
	Pages     map[string]int
	Sweep     *sweeper.Result
	Sites     []persist.SiteStats
	Failed    []string
}

// Site returns the stats of one site
func (r Report) Site(name string) (persist.SiteStats, bool) {
	for _, s := range r.Sites {
		if s.Site == name {
			return s, true
		}
	}
	return persist.SiteStats{}, false
}

// Summary converts the report to a stats log entry
func (r Report) Summary() report.Summary {
	return report.Summarize(r.RunID, r.StartedAt, r.Sites)
}

// Orchestrator sequences site adapters through translation and persistence
type Orchestrator struct {
	registry   *adapter.Registry
	store      Counter
	persister  translate.Persister
	translator translate.Translator
	sweeper    Sweeper
	opts       Options
	shuffle    func([]string)
	log        *logger.Logger
	now        func() time.Time
}

// New creates an orchestrator. sw may be nil to skip the per-run sweep.
func New(
	registry *adapter.Registry,
	store Counter,
	persister translate.Persister,
	translator translate.Translator,
	sw Sweeper,
	opts Options,
) *Orchestrator {
	if opts.ColdStartMultiplier < 1 {
		opts.ColdStartMultiplier = DefaultColdStartMultiplier
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = sweeper.DefaultMaxAgeDays
	}
	return &Orchestrator{
		registry:   registry,
		store:      store,
		persister:  persister,
		translator: translator,
		sweeper:    sw,
		opts:       opts,
		shuffle: func(s []string) {
			rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		},
		log: logger.ForOrchestrator(),
		now: time.Now,
	}
}

// RunAll runs one full cycle: sweep, scrape every site, translate and
// persist, then aggregate stats. Failures of single sites never abort the run.
func (o *Orchestrator) RunAll(ctx context.Context) Report {
	r := Report{RunID: uuid.NewString(), StartedAt: o.now()}
	log := o.log.WithField("run_id", r.RunID)
	log.Info().Msg("Starting ingestion run")

	if o.sweeper != nil {
		result, err := o.sweeper.Sweep(ctx, o.opts.RetentionDays)
		if err != nil {
			log.Error().Err(err).Msg("Retention sweep failed, continuing run")
		} else {
			r.Sweep = &result
		}
	}

	r.Pages = o.effectivePages(ctx)
	r.Order = o.siteOrder()

	direct := make(map[string]persist.SiteStats)
	queued := o.scrapeAll(ctx, &r, direct)

	merged := make(map[string]*persist.SiteStats, len(r.Order))
	for _, site := range r.Order {
		s := persist.NewSiteStats(site)
		merged[site] = &s
	}
	for site, s := range direct {
		merged[site].Merge(s)
	}
	for _, s := range queued {
		if m, ok := merged[s.Site]; ok {
			m.Merge(s)
		}
	}
	for _, site := range r.Order {
		r.Sites = append(r.Sites, *merged[site])
	}

	r.Duration = o.now().Sub(r.StartedAt)
	metrics.RunDuration.Observe(r.Duration.Seconds())
	log.Info().
		Dur("elapsed", r.Duration).
		Int("sites", len(r.Order)).
		Strs("failed", r.Failed).
		Msg("Ingestion run finished")
	return r
}

// scrapeAll owns the translation stage of a run. The stage is stopped on
// every exit path, so queued batches are always persisted. Cancelling ctx
// stops scraping but not the translation and persistence of scraped batches.
func (o *Orchestrator) scrapeAll(ctx context.Context, r *Report, direct map[string]persist.SiteStats) (queued []persist.SiteStats) {
	stage := translate.NewStage(o.translator, o.persister, o.opts.Stage)
	stage.Start(context.WithoutCancel(ctx))
	defer func() {
		queued = stage.Stop()
	}()

	for _, site := range r.Order {
		if ctx.Err() != nil {
			o.log.Warn().Str("site", site).Msg("Run cancelled, skipping remaining sites")
			break
		}
		stats, ok := o.scrapeSite(ctx, stage, site, r.Pages[site])
		if !ok {
			r.Failed = append(r.Failed, site)
		}
		if stats != nil {
			direct[site] = *stats
		}
	}
	return nil
}

// scrapeSite runs one adapter. It returns the stats of a directly persisted
// batch and false when the adapter failed.
func (o *Orchestrator) scrapeSite(ctx context.Context, stage *translate.Stage, site string, maxPages int) (stats *persist.SiteStats, ok bool) {
	log := logger.ForAdapter(site)
	ok = true

	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			metrics.AdapterFailures.WithLabelValues(site).Inc()
			log.Error().
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("Site adapter panicked")
		}
	}()

	a, found := o.registry.Get(site)
	if !found {
		log.Warn().Msg("No adapter registered for site, skipping")
		return nil, true
	}

	start := o.now()
	batch, err := a.Scrape(ctx, maxPages)
	if err != nil {
		ok = false
		metrics.AdapterFailures.WithLabelValues(site).Inc()
		log.Error().
			Err(pkgerrors.NewAdapter(site, "scrape failed", err)).
			Int("partial_listings", batch.Len()).
			Msg("Site adapter failed")
	}

	n := batch.Len()
	if n == 0 {
		log.Info().Msg("Site returned no listings")
		return nil, ok
	}
	metrics.ListingsScraped.WithLabelValues(site).Add(float64(n))
	log.Info().
		Int("pages", len(batch)).
		Int("listings", n).
		Dur("elapsed", o.now().Sub(start)).
		Msg("Scraped site")

	if o.isEnglish(site) {
		markEnglish(batch)
		s := o.persister.Persist(context.WithoutCancel(ctx), site, batch)
		return &s, ok
	}

	if err := stage.Enqueue(site, batch); err != nil {
		log.Error().Err(pkgerrors.NewTranslation(site, "enqueue failed", err)).Msg("Batch dropped")
		return nil, false
	}
	return nil, ok
}

// effectivePages applies the cold-start multiplier when the store is empty
func (o *Orchestrator) effectivePages(ctx context.Context) map[string]int {
	multiplier := 1
	count, err := o.store.Count(ctx)
	switch {
	case err != nil:
		o.log.Warn().Err(err).Msg("Could not count stored listings, using normal page counts")
	case count == 0:
		multiplier = o.opts.ColdStartMultiplier
		o.log.Info().Int("multiplier", multiplier).Msg("Store is empty, cold start")
	}

	pages := make(map[string]int, len(o.opts.SitePages))
	for site, n := range o.opts.SitePages {
		pages[site] = n * multiplier
	}
	return pages
}

// siteOrder puts the priority site first and shuffles the rest
func (o *Orchestrator) siteOrder() []string {
	var rest []string
	priority := false
	for site := range o.opts.SitePages {
		if site == o.opts.PrioritySite {
			priority = true
			continue
		}
		rest = append(rest, site)
	}
	sort.Strings(rest)
	o.shuffle(rest)

	if priority {
		return append([]string{o.opts.PrioritySite}, rest...)
	}
	return rest
}

func (o *Orchestrator) isEnglish(site string) bool {
	for _, s := range o.opts.EnglishSites {
		if strings.EqualFold(s, site) {
			return true
		}
	}
	return false
}

// markEnglish copies the original title into english where unset
func markEnglish(batch listing.PagedListings) {
	for _, l := range batch.Flatten() {
		if l.Title.English == nil {
			l.Title.SetEnglish(l.Title.Original)
		}
	}
}
