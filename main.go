package main

import (
	"context"
	"os"
	"time"

	"sjsage522/listingworker/config"
	"sjsage522/listingworker/internal/adapter"
	"sjsage522/listingworker/internal/orchestrator"
	"sjsage522/listingworker/internal/persist"
	"sjsage522/listingworker/internal/report"
	"sjsage522/listingworker/internal/store"
	"sjsage522/listingworker/internal/sweeper"
	"sjsage522/listingworker/internal/translate"
	"sjsage522/listingworker/logger"
	"sjsage522/listingworker/services/cache"
	"sjsage522/listingworker/services/publisher"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

// Services holds all the initialized services
type Services struct {
	Store     store.Store
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	log := logger.ForComponent("main")
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close publisher")
		}
	}
	if s.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Store.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}
}

// initializeServices connects the store and the optional cache and publisher.
// Only a store failure is fatal.
func initializeServices(ctx context.Context, cfg *config.Config, withPublisher bool) (*Services, error) {
	log := logger.ForComponent("main")
	services := &Services{Publisher: publisher.NopPublisher{}}

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		services.Store = store.NewMemoryStore()
		log.Warn().Msg("Using in-memory store, listings are not persisted across restarts")
	default:
		mongoStore, err := store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, err
		}
		services.Store = mongoStore
		log.Info().
			Str("database", cfg.MongoDatabase).
			Str("collection", cfg.MongoCollection).
			Msg("Connected to MongoDB")
	}

	if err := services.Store.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to ensure listing indexes")
	}

	if cfg.MemcacheAddr != "" {
		memcache := cache.NewMemcacheService(cfg.MemcacheAddr, "listingworker:")
		if err := memcache.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, running without cache")
		} else {
			services.Cache = memcache
			log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
	}

	if withPublisher && cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		if err := redisPublisher.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, run summaries will not be streamed")
			redisPublisher.Close()
		} else {
			services.Publisher = redisPublisher
			log.Info().
				Str("addr", cfg.RedisAddr).
				Int("db", cfg.RedisDB).
				Str("stream", cfg.RedisStream).
				Msg("Connected to Redis")
		}
	}

	return services, nil
}

func persistMode(cfg *config.Config) store.Mode {
	if cfg.PersistMode == config.PersistModeSkip {
		return store.ModeSkip
	}
	return store.ModeUpsert
}

func retention(cfg *config.Config) time.Duration {
	return time.Duration(cfg.RetentionDays) * 24 * time.Hour
}

func newSweeper(cfg *config.Config, services *Services) *sweeper.Sweeper {
	return sweeper.New(services.Store, cfg.RetentionDays, cfg.SweepInterval, cfg.SweepRetry)
}

// newWorker wires the pipeline from configuration
func newWorker(cfg *config.Config, services *Services) *orchestrator.Worker {
	orch := orchestrator.New(
		adapter.NewDefaultRegistry(services.Cache),
		services.Store,
		persist.NewPersister(services.Store, persistMode(cfg)),
		translate.NewGoogleTranslator(cfg.TranslateURL),
		newSweeper(cfg, services),
		orchestrator.Options{
			SitePages:           cfg.SitePages,
			PrioritySite:        cfg.PrioritySite,
			EnglishSites:        cfg.EnglishSites,
			ColdStartMultiplier: cfg.ColdStartMultiplier,
			RetentionDays:       cfg.RetentionDays,
			Stage: translate.Options{
				ChunkBudget: cfg.TranslateChunkBudget,
				Pause:       cfg.TranslatePause,
				Cache:       services.Cache,
				CacheTTL:    retention(cfg),
			},
		},
	)

	statsLog := report.NewFileLog(cfg.StatsLogPath)
	logger.ForComponent("main").Info().Str("path", statsLog.Path()).Msg("Recording run stats")

	return orchestrator.NewWorker(
		orch,
		cfg.RunInterval,
		statsLog,
		report.NewStreamSink(services.Publisher),
	)
}
