package cache

import (
	stderrors "errors"
	"strings"
	"time"

	"sjsage522/olxworker/pkg/errors"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
	prefix string
}

// NewMemcacheService creates a memcache service whose keys are namespaced by prefix
func NewMemcacheService(serverAddr, prefix string) *MemcacheService {
	client := memcache.New(serverAddr)
	client.Timeout = 500 * time.Millisecond

	return &MemcacheService{
		client: client,
		prefix: prefix,
	}
}

// key builds a memcache-safe key; memcache rejects spaces and control characters
func (m *MemcacheService) key(key string) string {
	return m.prefix + strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return '_'
		}
		return r
	}, key)
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, bool, error) {
	item, err := m.client.Get(m.key(key))
	if stderrors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewCache("memcache", "get "+key+" failed", err)
	}
	return item.Value, true, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	err := m.client.Set(&memcache.Item{
		Key:        m.key(key),
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
	if err != nil {
		return errors.NewCache("memcache", "set "+key+" failed", err)
	}
	return nil
}

// Ping checks that the memcache server is reachable
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}
