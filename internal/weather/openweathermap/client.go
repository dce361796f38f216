// Package openweathermap implements weather.Provider against the
// OpenWeatherMap One Call 3.0 daily forecast.
package openweathermap

import (
	"context"
	"encoding/json"
	"errors"
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
	ProviderName = "openweathermap"

	// DefaultOneCallURL is the OpenWeatherMap One Call 3.0 endpoint.
	DefaultOneCallURL = "https://api.openweathermap.org/data/3.0/onecall"

	// msToKmh converts the API's m/s wind speeds.
	msToKmh = 3.6
)

// ErrMissingAPIKey is returned by GetForecast when no API key is configured.
var ErrMissingAPIKey = errors.New("openweathermap api key is required")

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// OneCallURL is the One Call endpoint (optional, defaults to One Call 3.0).
	OneCallURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	oneCallURL string
	httpClient *resilience.Client
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	oneCallURL := cfg.OneCallURL
	if oneCallURL == "" {
		oneCallURL = DefaultOneCallURL
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
		apiKey:     cfg.APIKey,
		oneCallURL: oneCallURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetForecast fetches the daily forecasts for a location and returns the one
// for date, matched in the location's own time zone.
func (c *Client) GetForecast(ctx context.Context, coord geo.Coordinate, date time.Time) (*weather.Snapshot, error) {
	if c.apiKey == "" {
		return nil, c.fail(ErrMissingAPIKey)
	}
	day := date.Format(weather.DateLayout)

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coord.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(coord.Lon, 'f', 6, 64))
	q.Set("exclude", "current,minutely,hourly,alerts")
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.oneCallURL+"?"+q.Encode(), http.NoBody)
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

	var body oneCallResponse
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

// toSnapshot picks the daily entry for day and rounds it to whole units.
func (c *Client) toSnapshot(resp *oneCallResponse, day string) (*weather.Snapshot, error) {
	zone := time.FixedZone(resp.Timezone, resp.TimezoneOffset)

	for _, d := range resp.Daily {
		if time.Unix(d.Dt, 0).In(zone).Format(weather.DateLayout) != day {
			continue
		}

		tempMax := math.Round(d.Temp.Max)
		tempMin := math.Round(d.Temp.Min)
		if tempMin > tempMax {
			tempMin, tempMax = tempMax, tempMin
		}
		precip := math.Max(0, math.Min(100, math.Round(d.Pop*100)))
		wind := math.Round(d.WindSpeed * msToKmh)
		humidity := d.Humidity

		condition := weather.DeriveCondition(tempMax, precip)
		if len(d.Weather) > 0 && d.Weather[0].Main == "Snow" {
			condition = weather.ConditionSnow
		}

		return &weather.Snapshot{
			Date:                day,
			Condition:           condition,
			TempMin:             tempMin,
			TempMax:             tempMax,
			Humidity:            &humidity,
			WindKmh:             &wind,
			PrecipitationChance: precip,
			FetchedAt:           c.now(),
		}, nil
	}

	return nil, fmt.Errorf("no daily data for %s", day)
}

// OpenWeatherMap API response structures.

type oneCallResponse struct {
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Timezone       string  `json:"timezone"`
	TimezoneOffset int     `json:"timezone_offset"`
	Daily          []struct {
		Dt   int64 `json:"dt"`
		Temp struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
		Humidity  float64 `json:"humidity"`
		WindSpeed float64 `json:"wind_speed"`
		Pop       float64 `json:"pop"`
		Weather   []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"daily"`
}

// Ensure Client implements weather.Provider interface.
var _ weather.Provider = (*Client)(nil)
