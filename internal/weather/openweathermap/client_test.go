package openweathermap_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/provider/resilience"
	"github.com/morningready/morningready/internal/weather"
	"github.com/morningready/morningready/internal/weather/openweathermap"
)

var (
	shibuya = geo.Coordinate{Lat: 35.658034, Lon: 139.701636}
	day     = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	fetched = time.Date(2024, 12, 31, 22, 0, 0, 0, time.UTC)
)

// Noon JST on 2025-01-01 and 2025-01-02.
const twoDays = `{
	"lat": 35.658, "lon": 139.7017, "timezone": "Asia/Tokyo", "timezone_offset": 32400,
	"daily": [
		{"dt": 1735700400, "temp": {"min": 3.4, "max": 11.6}, "humidity": 48, "wind_speed": 4.8, "pop": 0.72,
		 "weather": [{"main": "Rain", "description": "light rain"}]},
		{"dt": 1735786800, "temp": {"min": -1.2, "max": 2.1}, "humidity": 80, "wind_speed": 2, "pop": 0.3,
		 "weather": [{"main": "Snow", "description": "light snow"}]}
	]
}`

func fastClient(name string) *resilience.Client {
	return resilience.NewClient(resilience.ClientConfig{
		Name:            name,
		Timeout:         2 * time.Second,
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
}

func newClient(t *testing.T, handler http.HandlerFunc) *openweathermap.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     "test-key",
		OneCallURL: server.URL,
		HTTPClient: fastClient(t.Name()),
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return fetched },
	})
}

func TestClient_GetForecast(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "35.658034", q.Get("lat"))
		assert.Equal(t, "139.701636", q.Get("lon"))
		assert.Equal(t, "metric", q.Get("units"))
		assert.Equal(t, "test-key", q.Get("appid"))
		assert.Contains(t, q.Get("exclude"), "hourly")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(twoDays))
	})

	snap, err := client.GetForecast(context.Background(), shibuya, day)
	require.NoError(t, err)

	assert.Equal(t, "2025-01-01", snap.Date)
	assert.Equal(t, 12.0, snap.TempMax)
	assert.Equal(t, 3.0, snap.TempMin)
	assert.Equal(t, 72.0, snap.PrecipitationChance)
	require.NotNil(t, snap.WindKmh)
	assert.Equal(t, 17.0, *snap.WindKmh)
	require.NotNil(t, snap.Humidity)
	assert.Equal(t, 48.0, *snap.Humidity)
	assert.Equal(t, weather.ConditionRain, snap.Condition)
	assert.Equal(t, fetched, snap.FetchedAt)
	assert.Equal(t, "openweathermap", client.Name())
}

func TestClient_GetForecast_Snow(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(twoDays))
	})

	snap, err := client.GetForecast(context.Background(), shibuya, day.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, "2025-01-02", snap.Date)
	assert.Equal(t, weather.ConditionSnow, snap.Condition)
	assert.Equal(t, -1.0, snap.TempMin)
	assert.Equal(t, 2.0, snap.TempMax)
}

func TestClient_GetForecast_MissingAPIKey(t *testing.T) {
	client := openweathermap.NewClient(openweathermap.ClientConfig{Logger: zerolog.Nop()})

	_, err := client.GetForecast(context.Background(), shibuya, day)
	assert.ErrorIs(t, err, openweathermap.ErrMissingAPIKey)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)
}

func TestClient_GetForecast_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"invalid json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"daily":`))
		}},
		{"date out of range", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"timezone": "UTC", "timezone_offset": 0, "daily": [{"dt": 1736942400}]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, tt.handler)

			_, err := client.GetForecast(context.Background(), shibuya, day)
			require.Error(t, err)
			assert.ErrorIs(t, err, weather.ErrProviderUnavailable)

			var fetchErr *weather.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, openweathermap.ProviderName, fetchErr.Provider)
		})
	}
}
