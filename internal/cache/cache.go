// Package cache holds previously computed extraction results behind a
// TTL-bounded LRU so repeat requests skip the backend.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"videoextract/internal/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vx_cache_hits_total",
		Help: "Extraction cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vx_cache_misses_total",
		Help: "Extraction cache misses.",
	})
)

// Store is an in-memory extraction result cache. Entries expire after the
// configured TTL; expired entries read as absent.
type Store struct {
	enabled bool
	lru     *expirable.LRU[string, *model.VideoInfo]
}

// New creates a Store bounded to maxSize entries with the given TTL.
func New(cfg *model.CacheConfig) *Store {
	return &Store{
		enabled: cfg.Enabled,
		lru:     expirable.NewLRU[string, *model.VideoInfo](cfg.MaxSize, nil, cfg.TTL),
	}
}

// Key derives the cache key for one extraction request.
func Key(url, quality string, audioOnly bool) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%s|%t", url, quality, audioOnly)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for key, if present and fresh.
func (s *Store) Get(key string) (*model.VideoInfo, bool) {
	if !s.enabled {
		return nil, false
	}
	info, ok := s.lru.Get(key)
	if ok {
		cacheHitsTotal.Inc()
		return info, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set stores an extraction result under key.
func (s *Store) Set(key string, info *model.VideoInfo) {
	if !s.enabled {
		return
	}
	s.lru.Add(key, info)
}

// Delete removes key from the cache.
func (s *Store) Delete(key string) {
	s.lru.Remove(key)
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	return s.lru.Len()
}
