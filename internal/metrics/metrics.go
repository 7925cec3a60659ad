// Package metrics exposes Prometheus counters for the ingestion pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sjsage522/listingworker/logger"
)

var (
	// ListingsScraped counts listings returned by site adapters
	ListingsScraped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listingworker_listings_scraped_total",
		Help: "Listings returned by site adapters",
	}, []string{"site"})

	// ListingsNew counts listings inserted for the first time
	ListingsNew = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listingworker_listings_new_total",
		Help: "Listings inserted into the store for the first time",
	}, []string{"site"})

	// PersistFailures counts listing writes that failed
	PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listingworker_persist_failures_total",
		Help: "Listing writes that failed",
	}, []string{"site"})

	// AdapterFailures counts site adapter runs that errored or panicked
	AdapterFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listingworker_adapter_failures_total",
		Help: "Site adapter runs that failed",
	}, []string{"site"})

	// TranslationChunks counts translation chunks by result (ok, fallback)
	TranslationChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listingworker_translation_chunks_total",
		Help: "Translation chunks processed, by result",
	}, []string{"result"})

	// TranslationCacheHits counts titles served from the translation cache
	TranslationCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listingworker_translation_cache_hits_total",
		Help: "Titles whose translation came from the cache",
	})

	// SweptListings counts listings deleted by the retention sweeper
	SweptListings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listingworker_swept_listings_total",
		Help: "Listings deleted by the retention sweeper",
	})

	// RunDuration observes the duration of full ingestion cycles
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "listingworker_run_duration_seconds",
		Help:    "Duration of full ingestion cycles",
		Buckets: prometheus.ExponentialBuckets(10, 2, 10),
	})
)

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.ForComponent("metrics").Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
