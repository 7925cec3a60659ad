package cache

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"sjsage522/listingworker/logger"
)

// memcache rejects relative expirations above 30 days
const maxRelativeExpiration = 30 * 24 * time.Hour

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client    *memcache.Client
	keyPrefix string
	log       *logger.Logger
}

// Ensure MemcacheService implements CacheService
var _ CacheService = (*MemcacheService)(nil)

// NewMemcacheService creates a new memcache service. Every key is namespaced
// with keyPrefix.
func NewMemcacheService(serverAddr, keyPrefix string) *MemcacheService {
	client := memcache.New(serverAddr)
	client.Timeout = 500 * time.Millisecond
	return &MemcacheService{
		client:    client,
		keyPrefix: keyPrefix,
		log:       logger.ForCache(),
	}
}

// Ping checks that memcached is reachable
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(m.keyPrefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		m.log.Debug().Err(err).Str("key", key).Msg("Memcache get failed")
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	err := m.client.Set(&memcache.Item{
		Key:        m.keyPrefix + key,
		Value:      value,
		Expiration: expirationSeconds(expiration),
	})
	if err != nil {
		m.log.Debug().Err(err).Str("key", key).Msg("Memcache set failed")
	}
	return err
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(m.keyPrefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// expirationSeconds converts a TTL to memcache's format: relative seconds up
// to 30 days, a unix timestamp beyond that
func expirationSeconds(expiration time.Duration) int32 {
	if expiration <= 0 {
		return 0
	}
	if expiration > maxRelativeExpiration {
		return int32(time.Now().Add(expiration).Unix())
	}
	return int32(expiration.Seconds())
}
