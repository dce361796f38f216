// Package nominatim implements geocoding.Resolver against the OpenStreetMap
// Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/geocoding"
	"github.com/morningready/morningready/internal/provider/resilience"
)

const (
	// ProviderName identifies this resolver.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim endpoint.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent identifies the application as the usage policy requires.
	DefaultUserAgent = "morningready/1.0 (+https://github.com/morningready/morningready)"
)

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	BaseURL string

	// UserAgent is used when HTTPClient is nil.
	UserAgent string

	HTTPClient *resilience.Client
	Logger     zerolog.Logger
}

// Client is a Nominatim search client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.UserAgent = cfg.UserAgent
		if rc.UserAgent == "" {
			rc.UserAgent = DefaultUserAgent
		}
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Resolve returns the top match for query. A non-200 response, an empty
// result or unparsable coordinates resolve to nil.
func (c *Client) Resolve(ctx context.Context, query string) (*geocoding.Place, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	q.Set("limit", "1")
	q.Set("addressdetails", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().Int("status", resp.StatusCode).Str("query", query).Msg("nominatim returned non-200")
		return nil, nil
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	top := results[0]
	lat, errLat := strconv.ParseFloat(top.Lat, 64)
	lon, errLon := strconv.ParseFloat(top.Lon, 64)
	if errLat != nil || errLon != nil {
		return nil, nil
	}

	coord := geo.Coordinate{Lat: lat, Lon: lon}
	if !coord.Valid() {
		return nil, nil
	}

	label := top.DisplayName
	if label == "" {
		label = query
	}

	return &geocoding.Place{Coordinate: coord, Label: label}, nil
}

// searchResult is one entry of a Nominatim search response. Coordinates are
// returned as strings.
type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

var _ geocoding.Resolver = (*Client)(nil)
