// Package translate runs the asynchronous title translation stage.
package translate

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sjsage522/listingworker/internal/listing"
	"sjsage522/listingworker/internal/metrics"
	"sjsage522/listingworker/internal/persist"
	"sjsage522/listingworker/logger"
	pkgerrors "sjsage522/listingworker/pkg/errors"
	"sjsage522/listingworker/services/cache"
)

// ErrStopped is returned by Enqueue once Stop has been called
var ErrStopped = errors.New("translation stage stopped")

// Persister receives a batch once its titles are translated
type Persister interface {
	Persist(ctx context.Context, site string, batch listing.PagedListings) persist.SiteStats
}

// Options configures a Stage
type Options struct {
	ChunkBudget int
	Pause       time.Duration
	Source      string
	Target      string

	// Cache and CacheTTL are optional; with a cache, titles translated in
	// earlier runs are not sent again.
	Cache    cache.CacheService
	CacheTTL time.Duration
}

type job struct {
	site  string
	batch listing.PagedListings
	stop  bool
}

// Stage is a single-worker FIFO that translates batches and hands them to a
// Persister. The worker owns a batch from the moment it is enqueued.
type Stage struct {
	translator Translator
	persister  Persister
	opts       Options
	limiter    *rate.Limiter
	log        *logger.Logger

	mu      sync.Mutex
	queue   []job
	started bool
	stopped bool
	wake    chan struct{}
	done    chan struct{}

	// written only by the worker; read after done is closed
	results []persist.SiteStats
}

// NewStage creates a stage. Start must be called before work is processed.
func NewStage(translator Translator, persister Persister, opts Options) *Stage {
	if opts.ChunkBudget <= 0 {
		opts.ChunkBudget = 4000
	}
	if opts.Source == "" {
		opts.Source = "auto"
	}
	if opts.Target == "" {
		opts.Target = "en"
	}

	limit := rate.Inf
	if opts.Pause > 0 {
		limit = rate.Every(opts.Pause)
	}

	return &Stage{
		translator: translator,
		persister:  persister,
		opts:       opts,
		limiter:    rate.NewLimiter(limit, 1),
		log:        logger.ForTranslator(),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start launches the worker goroutine. ctx is used for translation and
// persistence calls; cancelling it does not stop the worker.
func (s *Stage) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.run(ctx)
}

// Enqueue appends a batch without blocking. Each call is processed on its own,
// in call order.
func (s *Stage) Enqueue(site string, batch listing.PagedListings) error {
	return s.push(job{site: site, batch: batch})
}

// Stop enqueues a poison pill, waits until every earlier batch has been
// translated and persisted, and returns the stats of those batches.
// It drains; it does not cancel.
func (s *Stage) Stop() []persist.SiteStats {
	s.mu.Lock()
	if !s.started {
		s.stopped = true
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.push(job{stop: true}); err == nil {
		s.log.Debug().Msg("Waiting for translation queue to drain")
	}
	<-s.done
	return s.results
}

func (s *Stage) push(j job) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if j.stop {
		s.stopped = true
	}
	s.queue = append(s.queue, j)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Stage) next() job {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			j := s.queue[0]
			s.queue[0] = job{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return j
		}
		s.mu.Unlock()
		<-s.wake
	}
}

func (s *Stage) run(ctx context.Context) {
	defer close(s.done)
	for {
		j := s.next()
		if j.stop {
			return
		}
		s.process(ctx, j)
	}
}

func (s *Stage) process(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str("site", j.site).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Translation worker recovered from panic")
		}
	}()

	start := time.Now()
	s.TranslateBatch(ctx, j.site, j.batch)
	stats := s.persister.Persist(ctx, j.site, j.batch)
	s.results = append(s.results, stats)

	s.log.Info().
		Str("site", j.site).
		Int("listings", stats.Total).
		Dur("elapsed", time.Since(start)).
		Msg("Translated and persisted batch")
}

// TranslateBatch fills title.english of every listing in batch, in place.
// Titles whose translation fails keep their original text as English.
func (s *Stage) TranslateBatch(ctx context.Context, site string, batch listing.PagedListings) {
	listings := batch.Flatten()

	var (
		refs    []*listing.Title
		pending []string
	)
	for _, l := range listings {
		if l.Title.Original == "" {
			continue
		}
		if english, ok := s.cached(l.Title.Original); ok {
			l.Title.SetEnglish(english)
			metrics.TranslationCacheHits.Inc()
			continue
		}
		refs = append(refs, &l.Title)
		pending = append(pending, l.Title.Original)
	}

	offset := 0
	for _, chunk := range SplitChunks(pending, s.opts.ChunkBudget) {
		translated := s.translateChunk(ctx, site, chunk)
		for k, text := range translated {
			title := refs[offset+k]
			if text == "" {
				title.SetEnglish(title.Original)
				continue
			}
			title.SetEnglish(text)
			s.remember(title.Original, text)
		}
		offset += len(chunk)
	}

	for _, l := range listings {
		if l.Title.English == nil {
			l.Title.SetEnglish(l.Title.Original)
		}
	}
}

// translateChunk returns one entry per title; "" marks a title without a
// usable translation
func (s *Stage) translateChunk(ctx context.Context, site string, chunk []string) []string {
	if err := s.limiter.Wait(ctx); err != nil {
		metrics.TranslationChunks.WithLabelValues("fallback").Inc()
		return make([]string, len(chunk))
	}

	translated, err := s.translator.Translate(ctx, JoinChunk(chunk), s.opts.Source, s.opts.Target)
	if err != nil {
		metrics.TranslationChunks.WithLabelValues("fallback").Inc()
		s.log.Warn().
			Err(pkgerrors.NewTranslation(site, "chunk translation failed", err)).
			Int("titles", len(chunk)).
			Msg("Using original titles for chunk")
		return make([]string, len(chunk))
	}

	results, matched := ParseChunk(translated, len(chunk))
	if matched < len(chunk) {
		s.log.Warn().
			Str("site", site).
			Int("titles", len(chunk)).
			Int("matched", matched).
			Msg("Translated chunk lost ordinals; unmatched titles keep original text")
	}
	metrics.TranslationChunks.WithLabelValues("ok").Inc()
	return results
}

func (s *Stage) cacheKey(original string) string {
	sum := sha1.Sum([]byte(original))
	return fmt.Sprintf("tr:%s:%s", s.opts.Target, hex.EncodeToString(sum[:]))
}

func (s *Stage) cached(original string) (string, bool) {
	if s.opts.Cache == nil {
		return "", false
	}
	value, err := s.opts.Cache.Get(s.cacheKey(original))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Debug().Err(err).Msg("Translation cache lookup failed")
		}
		return "", false
	}
	return string(value), len(value) > 0
}

func (s *Stage) remember(original, english string) {
	if s.opts.Cache == nil {
		return
	}
	if err := s.opts.Cache.Set(s.cacheKey(original), []byte(english), s.opts.CacheTTL); err != nil {
		s.log.Debug().Err(pkgerrors.NewCache("", "translation cache write failed", err)).Msg("Translation cache write failed")
	}
}
