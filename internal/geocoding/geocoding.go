// Package geocoding resolves free-text places to coordinates.
package geocoding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/geo"
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("geocoding query is empty")

// Place is a resolved location.
type Place struct {
	Coordinate geo.Coordinate `json:"coordinate"`
	Label      string         `json:"label"`
}

// Resolver turns a query into a place.
type Resolver interface {
	// Resolve returns nil with a nil error when nothing matches.
	Resolve(ctx context.Context, query string) (*Place, error)

	Name() string
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Resolver Resolver
	Logger   zerolog.Logger

	// CacheTTL applies to both hits and misses (default 24h).
	CacheTTL time.Duration

	// MaxEntries bounds the cache; the oldest entry is evicted (default 1000).
	MaxEntries int

	Now func() time.Time
}

// Service caches resolver results per normalized query.
type Service struct {
	resolver   Resolver
	logger     zerolog.Logger
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]cachedPlace
}

type cachedPlace struct {
	place     *Place
	expiresAt time.Time
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	maxEntries := cfg.MaxEntries
	if maxEntries == 0 {
		maxEntries = 1000
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		resolver:   cfg.Resolver,
		logger:     cfg.Logger,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        now,
		cache:      make(map[string]cachedPlace),
	}
}

// Name returns the underlying resolver name.
func (s *Service) Name() string {
	return s.resolver.Name()
}

// Resolve returns the cached place for query or asks the resolver.
// Errors are not cached.
func (s *Service) Resolve(ctx context.Context, query string) (*Place, error) {
	key := Normalize(query)
	if key == "" {
		return nil, ErrEmptyQuery
	}

	s.mu.Lock()
	if c, ok := s.cache[key]; ok && s.now().Before(c.expiresAt) {
		s.mu.Unlock()
		return c.place, nil
	}
	s.mu.Unlock()

	place, err := s.resolver.Resolve(ctx, strings.TrimSpace(query))
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", s.resolver.Name()).Msg("geocoding failed")
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cache) >= s.maxEntries {
		s.evictOldest()
	}
	s.cache[key] = cachedPlace{place: place, expiresAt: s.now().Add(s.ttl)}

	return place, nil
}

// evictOldest must be called with the lock held.
func (s *Service) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, c := range s.cache {
		if oldestKey == "" || c.expiresAt.Before(oldest) {
			oldestKey, oldest = k, c.expiresAt
		}
	}
	delete(s.cache, oldestKey)
}

// Normalize folds case and collapses whitespace.
func Normalize(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

var _ Resolver = (*Service)(nil)
