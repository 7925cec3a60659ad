package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pkgerrors "sjsage522/listingworker/pkg/errors"
)

// Store drivers
const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

// Persist modes
const (
	PersistModeUpsert = "upsert"
	PersistModeSkip   = "skip"
)

// defaultSitePages mirrors the steady-state pages per run of each marketplace
const defaultSitePages = "kleinanzeigen:4,blocket:2,gumtree:2,tori:3,olx:2,ricardo:1,dba:1"

// Config represents the application configuration
type Config struct {
	// MongoDB configuration
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	StoreDriver     string

	// Pipeline configuration
	SitePages           map[string]int
	PrioritySite        string
	EnglishSites        []string
	ColdStartMultiplier int
	PersistMode         string
	RunInterval         time.Duration

	// Retention configuration
	RetentionDays int
	SweepInterval time.Duration
	SweepRetry    time.Duration

	// Translation configuration
	TranslateURL         string
	TranslateChunkBudget int
	TranslatePause       time.Duration

	// Memcache configuration
	MemcacheAddr string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Reporting
	StatsLogPath string
	MetricsAddr  string

	// Environment
	Environment string

	// variables that failed to parse as integers
	invalid []string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	var invalid []string
	envInt := func(key, defaultValue string) int {
		n, err := strconv.Atoi(strings.TrimSpace(getEnv(key, defaultValue)))
		if err != nil {
			invalid = append(invalid, key)
		}
		return n
	}

	redisDB := envInt("REDIS_DB", "0")
	streamMaxLength := envInt("REDIS_STREAM_MAX_LENGTH", "1000")
	runInterval := envInt("RUN_INTERVAL_SECONDS", "120")
	retentionDays := envInt("RETENTION_DAYS", "60")
	sweepHours := envInt("SWEEP_INTERVAL_HOURS", "24")
	sweepRetryMinutes := envInt("SWEEP_RETRY_MINUTES", "60")
	coldStart := envInt("COLD_START_MULTIPLIER", "20")
	chunkBudget := envInt("TRANSLATE_CHUNK_BUDGET", "4000")
	pauseMs := envInt("TRANSLATE_PAUSE_MS", "1000")

	return &Config{
		MongoURI:             os.Getenv("MONGODB_URI"),
		MongoDatabase:        getEnv("MONGODB_DATABASE", "fleatronics"),
		MongoCollection:      getEnv("MONGODB_COLLECTION", "listings"),
		StoreDriver:          getEnv("STORE_DRIVER", StoreDriverMongo),
		SitePages:            ParseSitePages(getEnv("SITE_PAGES", defaultSitePages)),
		PrioritySite:         getEnv("PRIORITY_SITE", "kleinanzeigen"),
		EnglishSites:         splitList(getEnv("ENGLISH_SITES", "gumtree")),
		ColdStartMultiplier:  coldStart,
		PersistMode:          getEnv("PERSIST_MODE", PersistModeUpsert),
		RunInterval:          time.Duration(runInterval) * time.Second,
		RetentionDays:        retentionDays,
		SweepInterval:        time.Duration(sweepHours) * time.Hour,
		SweepRetry:           time.Duration(sweepRetryMinutes) * time.Minute,
		TranslateURL:         getEnv("TRANSLATE_URL", "https://translate.google.com/m"),
		TranslateChunkBudget: chunkBudget,
		TranslatePause:       time.Duration(pauseMs) * time.Millisecond,
		MemcacheAddr:         os.Getenv("MEMCACHE_ADDR"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "listing_runs"),
		RedisStreamMaxLength: streamMaxLength,
		StatsLogPath:         getEnv("STATS_LOG_PATH", "logs/scraper_stats.json"),
		MetricsAddr:          os.Getenv("METRICS_ADDR"),
		Environment:          getEnv("INGEST_ENVIRONMENT", "development"),
		invalid:              invalid,
	}
}

// Validate checks the configuration for missing or inconsistent values
func (c *Config) Validate() error {
	if len(c.invalid) > 0 {
		return pkgerrors.NewConfiguration("not an integer: "+strings.Join(c.invalid, ", "), nil)
	}

	switch c.StoreDriver {
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return pkgerrors.NewConfiguration("MONGODB_URI environment variable not set", nil)
		}
	case StoreDriverMemory:
	default:
		return pkgerrors.NewConfiguration(fmt.Sprintf("unknown STORE_DRIVER %q", c.StoreDriver), nil)
	}

	if c.PersistMode != PersistModeUpsert && c.PersistMode != PersistModeSkip {
		return pkgerrors.NewConfiguration(fmt.Sprintf("unknown PERSIST_MODE %q", c.PersistMode), nil)
	}
	if len(c.SitePages) == 0 {
		return pkgerrors.NewConfiguration("SITE_PAGES must name at least one site", nil)
	}
	if c.RetentionDays <= 0 {
		return pkgerrors.NewConfiguration("RETENTION_DAYS must be positive", nil)
	}
	if c.ColdStartMultiplier < 1 {
		return pkgerrors.NewConfiguration("COLD_START_MULTIPLIER must be at least 1", nil)
	}
	if c.TranslateChunkBudget < 100 {
		return pkgerrors.NewConfiguration("TRANSLATE_CHUNK_BUDGET must be at least 100", nil)
	}
	if c.TranslatePause < 0 {
		return pkgerrors.NewConfiguration("TRANSLATE_PAUSE_MS must not be negative", nil)
	}
	if c.RunInterval <= 0 {
		return pkgerrors.NewConfiguration("RUN_INTERVAL_SECONDS must be positive", nil)
	}
	if c.SweepInterval <= 0 {
		return pkgerrors.NewConfiguration("SWEEP_INTERVAL_HOURS must be positive", nil)
	}
	if c.SweepRetry <= 0 {
		return pkgerrors.NewConfiguration("SWEEP_RETRY_MINUTES must be positive", nil)
	}
	return nil
}

// ParseSitePages parses "site:pages,site:pages" into a map.
// Entries with a missing or non-positive page count are ignored.
func ParseSitePages(raw string) map[string]int {
	pages := make(map[string]int)
	for _, entry := range splitList(raw) {
		name, count, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n <= 0 {
			continue
		}
		pages[strings.TrimSpace(name)] = n
	}
	return pages
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
