package openmeteo_test

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
	"github.com/morningready/morningready/internal/weather/openmeteo"
)

var (
	shibuya = geo.Coordinate{Lat: 35.658034, Lon: 139.701636}
	day     = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
)

func fastClient(name string) *resilience.Client {
	return resilience.NewClient(resilience.ClientConfig{
		Name:            name,
		Timeout:         2 * time.Second,
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
}

func newClient(t *testing.T, handler http.HandlerFunc) *openmeteo.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: fastClient(t.Name()),
		Logger:     zerolog.Nop(),
	})
}

func TestClient_GetForecast(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "35.658034", q.Get("latitude"))
		assert.Equal(t, "139.701636", q.Get("longitude"))
		assert.Equal(t, "2025-01-01", q.Get("start_date"))
		assert.Equal(t, "2025-01-01", q.Get("end_date"))
		assert.Equal(t, "auto", q.Get("timezone"))
		assert.Contains(t, q.Get("daily"), "precipitation_probability_max")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"latitude": 35.66, "longitude": 139.7, "timezone": "Asia/Tokyo",
			"daily": {
				"time": ["2025-01-01"],
				"temperature_2m_max": [11.6],
				"temperature_2m_min": [3.4],
				"precipitation_probability_max": [64.5],
				"wind_speed_10m_max": [17.2]
			}
		}`))
	})

	snap, err := client.GetForecast(context.Background(), shibuya, day)
	require.NoError(t, err)

	assert.Equal(t, "2025-01-01", snap.Date)
	assert.Equal(t, 12.0, snap.TempMax)
	assert.Equal(t, 3.0, snap.TempMin)
	assert.Equal(t, 65.0, snap.PrecipitationChance)
	require.NotNil(t, snap.WindKmh)
	assert.Equal(t, 17.0, *snap.WindKmh)
	assert.Equal(t, weather.ConditionRain, snap.Condition)
	assert.Nil(t, snap.Humidity)
	assert.Equal(t, "open-meteo", client.Name())
}

func TestClient_GetForecast_NullSeries(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"daily": {
			"time": ["2025-01-01"],
			"temperature_2m_max": [27.2],
			"temperature_2m_min": [20.1],
			"precipitation_probability_max": [null],
			"wind_speed_10m_max": []
		}}`))
	})

	snap, err := client.GetForecast(context.Background(), shibuya, day)
	require.NoError(t, err)

	assert.Equal(t, 0.0, snap.PrecipitationChance)
	assert.Equal(t, weather.ConditionSunny, snap.Condition)
}

func TestClient_GetForecast_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"bad request", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}},
		{"invalid json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"daily":`))
		}},
		{"empty daily", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"daily": {"time": []}}`))
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
			assert.Equal(t, openmeteo.ProviderName, fetchErr.Provider)
		})
	}
}
