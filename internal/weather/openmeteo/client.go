// Package openmeteo implements weather.Provider against the Open-Meteo daily forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/provider/resilience"
	"github.com/morningready/morningready/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "open-meteo"

	// DefaultBaseURL is the Open-Meteo API base URL.
	DefaultBaseURL = "https://api.open-meteo.com/v1"

	dailyFields = "temperature_2m_max,temperature_2m_min,precipitation_probability_max,wind_speed_10m_max"
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to Open-Meteo).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Client is an Open-Meteo API client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetForecast fetches the daily forecast for one location and date.
func (c *Client) GetForecast(ctx context.Context, coord geo.Coordinate, date time.Time) (*weather.Snapshot, error) {
	day := date.Format(weather.DateLayout)

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(coord.Lat, 'f', 6, 64))
	q.Set("longitude", strconv.FormatFloat(coord.Lon, 'f', 6, 64))
	q.Set("daily", dailyFields)
	q.Set("timezone", "auto")
	q.Set("start_date", day)
	q.Set("end_date", day)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/forecast?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, c.fail(fmt.Errorf("creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, c.fail(fmt.Errorf("decoding response: %w", err))
	}

	snap, err := c.toSnapshot(&body, day)
	if err != nil {
		return nil, c.fail(err)
	}

	c.logger.Debug().
		Str("date", snap.Date).
		Str("condition", string(snap.Condition)).
		Float64("temp_max", snap.TempMax).
		Msg("fetched forecast")

	return snap, nil
}

func (c *Client) fail(err error) error {
	return &weather.FetchError{Provider: ProviderName, Err: err}
}

// toSnapshot converts the first day of a response to a snapshot, rounding
// every value to whole units.
func (c *Client) toSnapshot(resp *forecastResponse, day string) (*weather.Snapshot, error) {
	d := resp.Daily
	if len(d.Time) == 0 || len(d.TemperatureMax) == 0 || len(d.TemperatureMin) == 0 ||
		d.TemperatureMax[0] == nil || d.TemperatureMin[0] == nil {
		return nil, fmt.Errorf("no daily data for %s", day)
	}

	tempMax := math.Round(*d.TemperatureMax[0])
	tempMin := math.Round(*d.TemperatureMin[0])
	if tempMin > tempMax {
		tempMin, tempMax = tempMax, tempMin
	}

	precip := math.Round(first(d.PrecipitationProbabilityMax))
	wind := math.Round(first(d.WindSpeedMax))

	return &weather.Snapshot{
		Date:                d.Time[0],
		Condition:           weather.DeriveCondition(tempMax, precip),
		TempMin:             tempMin,
		TempMax:             tempMax,
		WindKmh:             &wind,
		PrecipitationChance: math.Max(0, math.Min(100, precip)),
		FetchedAt:           c.now(),
	}, nil
}

// first returns the first value of a nullable series, or 0.
func first(series []*float64) float64 {
	if len(series) == 0 || series[0] == nil {
		return 0
	}
	return *series[0]
}

// Open-Meteo API response structures.

type forecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Daily     struct {
		Time                        []string   `json:"time"`
		TemperatureMax              []*float64 `json:"temperature_2m_max"`
		TemperatureMin              []*float64 `json:"temperature_2m_min"`
		PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
		WindSpeedMax                []*float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// Ensure Client implements weather.Provider interface.
var _ weather.Provider = (*Client)(nil)
