package geocoding_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/geocoding"
)

type fakeResolver struct {
	mu      sync.Mutex
	places  map[string]*geocoding.Place
	err     error
	queries []string
}

func (f *fakeResolver) Name() string { return "fake" }

func (f *fakeResolver) Resolve(_ context.Context, query string) (*geocoding.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.places[query], nil
}

func (f *fakeResolver) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestService_ResolveCaches(t *testing.T) {
	resolver := &fakeResolver{places: map[string]*geocoding.Place{
		"Tokyo Station": {Coordinate: geo.Coordinate{Lat: 35.68, Lon: 139.77}, Label: "Tokyo Station"},
	}}
	c := &clock{t: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)}
	svc := geocoding.NewService(geocoding.ServiceConfig{
		Resolver: resolver,
		Logger:   zerolog.Nop(),
		CacheTTL: time.Hour,
		Now:      c.now,
	})

	place, err := svc.Resolve(context.Background(), "  Tokyo Station ")
	require.NoError(t, err)
	require.NotNil(t, place)

	again, err := svc.Resolve(context.Background(), "tokyo   station")
	require.NoError(t, err)
	assert.Same(t, place, again)
	assert.Equal(t, 1, resolver.calls())

	c.t = c.t.Add(2 * time.Hour)
	_, err = svc.Resolve(context.Background(), "Tokyo Station")
	require.NoError(t, err)
	assert.Equal(t, 2, resolver.calls())
}

func TestService_CachesMisses(t *testing.T) {
	resolver := &fakeResolver{}
	svc := geocoding.NewService(geocoding.ServiceConfig{Resolver: resolver, Logger: zerolog.Nop()})

	for i := 0; i < 2; i++ {
		place, err := svc.Resolve(context.Background(), "atlantis")
		require.NoError(t, err)
		assert.Nil(t, place)
	}
	assert.Equal(t, 1, resolver.calls())
}

func TestService_DoesNotCacheErrors(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("boom")}
	svc := geocoding.NewService(geocoding.ServiceConfig{Resolver: resolver, Logger: zerolog.Nop()})

	_, err := svc.Resolve(context.Background(), "x")
	require.Error(t, err)
	_, err = svc.Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 2, resolver.calls())
}

func TestService_EmptyQuery(t *testing.T) {
	svc := geocoding.NewService(geocoding.ServiceConfig{Resolver: &fakeResolver{}, Logger: zerolog.Nop()})

	_, err := svc.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, geocoding.ErrEmptyQuery)
}

func TestService_EvictsWhenFull(t *testing.T) {
	resolver := &fakeResolver{}
	c := &clock{t: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)}
	svc := geocoding.NewService(geocoding.ServiceConfig{
		Resolver:   resolver,
		Logger:     zerolog.Nop(),
		MaxEntries: 2,
		Now:        c.now,
	})

	for _, q := range []string{"a", "b", "c"} {
		_, _ = svc.Resolve(context.Background(), q)
		c.t = c.t.Add(time.Minute)
	}

	_, _ = svc.Resolve(context.Background(), "a")
	assert.Equal(t, 4, resolver.calls())

	_, _ = svc.Resolve(context.Background(), "c")
	assert.Equal(t, 4, resolver.calls())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "shibuya station", geocoding.Normalize("  Shibuya\tStation "))
}
