package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/morningready/morningready/internal/geo"
)

// Provider defines the interface for forecast providers.
type Provider interface {
	// GetForecast fetches the daily forecast for a location and date.
	// Failures are reported as *FetchError.
	GetForecast(ctx context.Context, coord geo.Coordinate, date time.Time) (*Snapshot, error)

	// Name returns the provider name for logging.
	Name() string
}

// Cache is a shared snapshot store consulted before the provider.
type Cache interface {
	// Get returns ErrCacheMiss when key is absent.
	Get(ctx context.Context, key string) (*Snapshot, error)
	Set(ctx context.Context, key string, snap *Snapshot, ttl time.Duration) error
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the forecast provider.
	Provider Provider

	// Cache is an optional shared cache (for example Redis) behind the local one.
	Cache Cache

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache forecasts (default: 30 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.1).
	// Points within the same grid cell share cached data.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 6 hours).
	StaleIfErrorTTL time.Duration

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Service provides forecasts with caching. It satisfies Provider.
type Service struct {
	provider        Provider
	shared          Cache
	logger          zerolog.Logger
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	now             func() time.Time

	inflight singleflight.Group

	mu              sync.RWMutex
	cache           map[string]*cachedSnapshot
	lastCleanup     time.Time
	cleanupInterval time.Duration
}

type cachedSnapshot struct {
	snapshot  *Snapshot
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.1 // ~11km at equator
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 6 * time.Hour
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		provider:        cfg.Provider,
		shared:          cfg.Cache,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
		now:             now,
		cache:           make(map[string]*cachedSnapshot),
		cleanupInterval: 10 * time.Minute,
	}
}

// Name returns the underlying provider name.
func (s *Service) Name() string {
	return s.provider.Name()
}

// GetForecast returns the forecast for a location and date.
// Uses cached data if available and not expired.
func (s *Service) GetForecast(ctx context.Context, coord geo.Coordinate, date time.Time) (*Snapshot, error) {
	if !coord.Valid() {
		return nil, ErrInvalidCoordinates
	}

	key := s.CacheKey(coord, date)

	s.mu.RLock()
	if cached, ok := s.cache[key]; ok && s.now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		return cached.snapshot, nil
	}
	s.mu.RUnlock()

	return s.fetch(ctx, coord, date, key)
}

// fetch loads key once per in-flight miss; concurrent callers for the same
// key share the result. Callers whose ctx ends first stop waiting.
func (s *Service) fetch(ctx context.Context, coord geo.Coordinate, date time.Time, key string) (*Snapshot, error) {
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		return s.load(ctx, coord, date, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, &FetchError{Provider: s.provider.Name(), Err: ctx.Err()}
	}
}

// load consults the shared cache, then the provider, and updates the local
// cache. The lock is never held across either call.
func (s *Service) load(ctx context.Context, coord geo.Coordinate, date time.Time, key string) (*Snapshot, error) {
	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Before(cached.expiresAt) {
		return cached.snapshot, nil
	}

	if s.shared != nil {
		snap, err := s.shared.Get(ctx, key)
		switch {
		case err == nil:
			s.mu.Lock()
			s.store(key, snap)
			s.mu.Unlock()
			return snap, nil
		case !errors.Is(err, ErrCacheMiss):
			s.logger.Warn().Err(err).Str("key", key).Msg("shared weather cache read failed")
		}
	}

	s.logger.Debug().
		Float64("lat", coord.Lat).
		Float64("lon", coord.Lon).
		Str("date", date.Format(DateLayout)).
		Str("provider", s.provider.Name()).
		Msg("fetching forecast from provider")

	snap, err := s.provider.GetForecast(ctx, coord, date)
	if err != nil {
		s.logger.Error().Err(err).
			Float64("lat", coord.Lat).
			Float64("lon", coord.Lon).
			Msg("failed to fetch forecast")

		// Check for stale data
		s.mu.RLock()
		cached, ok := s.cache[key]
		s.mu.RUnlock()
		if ok && s.now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", cached.fetchedAt).
				Msg("serving stale forecast due to provider error")
			return cached.snapshot, nil
		}

		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return nil, err
		}
		return nil, &FetchError{Provider: s.provider.Name(), Err: err}
	}

	s.mu.Lock()
	s.store(key, snap)
	s.cleanupIfNeeded()
	s.mu.Unlock()

	if s.shared != nil {
		if err := s.shared.Set(ctx, key, snap, s.cacheTTL); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("shared weather cache write failed")
		}
	}

	return snap, nil
}

// store must be called with the write lock held.
func (s *Service) store(key string, snap *Snapshot) {
	now := s.now()
	s.cache[key] = &cachedSnapshot{
		snapshot:  snap,
		fetchedAt: now,
		expiresAt: now.Add(s.cacheTTL),
	}
}

// CacheKey returns the cache key for a location and date.
// Nearby points share a grid cell to reduce provider calls.
func (s *Service) CacheKey(coord geo.Coordinate, date time.Time) string {
	gridLat := math.Floor(coord.Lat/s.cacheGridSize) * s.cacheGridSize
	gridLon := math.Floor(coord.Lon/s.cacheGridSize) * s.cacheGridSize
	return fmt.Sprintf("%.2f:%.2f:%s", gridLat, gridLon, date.Format(DateLayout))
}

// cleanupIfNeeded removes entries past their stale window. It must be
// called with the write lock held.
func (s *Service) cleanupIfNeeded() {
	now := s.now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0

	for key, cached := range s.cache {
		if now.After(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.cache, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired weather cache entries")
	}
}

// InvalidateCache clears the local cache.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedSnapshot)
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Entries      int
	FreshEntries int
	Provider     string
}

// CacheStats returns local cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	fresh := 0
	for _, c := range s.cache {
		if now.Before(c.expiresAt) {
			fresh++
		}
	}

	return CacheStats{
		Entries:      len(s.cache),
		FreshEntries: fresh,
		Provider:     s.provider.Name(),
	}
}

// Ensure Service implements Provider interface.
var _ Provider = (*Service)(nil)
