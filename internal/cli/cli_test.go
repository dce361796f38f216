package cli_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningready/morningready/internal/auth"
	"github.com/morningready/morningready/internal/cli"
	"github.com/morningready/morningready/internal/config"
	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/plan"
	"github.com/morningready/morningready/internal/worker"
)

const meetingScenario = `
home: {lat: 35.0, lon: 139.0}
event:
  title: Team meeting
  start: 2025-01-11T09:00:00Z
  place: Office
  location: {lat: 35.1, lon: 139.0}
  bufferMinutes: 10
  mode: train
weather:
  date: "2025-01-11"
  condition: cloudy
  tempMin: 14
  tempMax: 20
  precipitationChance: 10
`

// execute runs morningctl with args, isolated from any .env file.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("APP_TIME_ZONE", "UTC")

	cmd := cli.NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// forecastServer fakes Open-Meteo, answering for whichever day is asked.
func forecastServer(t *testing.T, precip float64) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		day := r.URL.Query().Get("start_date")
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"daily": {
			"time": [%q],
			"temperature_2m_max": [12.0],
			"temperature_2m_min": [4.0],
			"precipitation_probability_max": [%g],
			"wind_speed_10m_max": [9.0]
		}}`, day, precip)
	}))
	t.Cleanup(server.Close)
	t.Setenv("WEATHER_BASE_URL", server.URL)
	t.Setenv("WEATHER_PROVIDER", "open-meteo")
	return server, &calls
}

func packNames(p *plan.Plan) []string {
	names := make([]string, 0, len(p.Packing))
	for _, item := range p.Packing {
		names = append(names, item.Name)
	}
	return names
}

func TestPlan_OfflineJSON(t *testing.T) {
	out, _, err := execute(t, meetingScenario, "plan", "--offline", "--json")
	require.NoError(t, err)

	var p plan.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &p))

	require.NotNil(t, p.Travel)
	assert.Equal(t, 43, p.Travel.Minutes)
	require.NotNil(t, p.LeaveAt)
	assert.Equal(t, time.Date(2025, 1, 11, 8, 7, 0, 0, time.UTC), p.LeaveAt.UTC())
	require.NotNil(t, p.Outfit)
	assert.Equal(t, []string{"IC card", "keys", "laptop", "notepad", "charger", "water bottle"}, packNames(&p))
	assert.Empty(t, p.Advisory)
}

func TestPlan_Text(t *testing.T) {
	out, _, err := execute(t, meetingScenario, "plan", "--offline")
	require.NoError(t, err)

	assert.Contains(t, out, "Morning plan")
	assert.Contains(t, out, "Team meeting @ Office")
	assert.Contains(t, out, "43 min by train")
	assert.Contains(t, out, "08:07")
	assert.Contains(t, out, "6 items")
	assert.Contains(t, out, "IC card")
}

func TestPlan_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meeting.yaml")
	require.NoError(t, os.WriteFile(path, []byte(meetingScenario), 0o600))

	out, _, err := execute(t, "", "plan", "--offline", "--json", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"leaveAt"`)
}

func TestPlan_OfflineWithoutWeather(t *testing.T) {
	scenario := `
home: {lat: 35.0, lon: 139.0}
event: {title: Gym, start: "2025-01-11T07:00:00Z", location: {lat: 35.01, lon: 139.0}, mode: walk}
items: {essentials: [wallet, wallet], personal: [towel]}
`
	out, _, err := execute(t, scenario, "plan", "--offline")
	require.NoError(t, err)

	assert.Contains(t, out, "not available")
	assert.Contains(t, out, "Packing list needs a forecast.")
	assert.NotContains(t, out, "Leave at")
	assert.Contains(t, out, "min by walk")
}

func TestPlan_FetchesWeather(t *testing.T) {
	_, calls := forecastServer(t, 80)
	scenario := strings.Split(meetingScenario, "weather:")[0]

	out, _, err := execute(t, scenario, "plan", "--json")
	require.NoError(t, err)

	var p plan.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	require.NotNil(t, p.Weather)
	assert.Equal(t, "2025-01-11", p.Weather.Date)
	assert.Equal(t, 80.0, p.Weather.PrecipitationChance)
	assert.Contains(t, packNames(&p), "folding umbrella")
	require.NotNil(t, p.EventWeather)
	assert.Equal(t, "2025-01-11", p.EventWeather.Date)
	assert.Equal(t, int32(2), calls.Load(), "home and event location")
}

func TestPlan_ScenarioWeatherFetchesEventWeather(t *testing.T) {
	_, calls := forecastServer(t, 80)

	out, _, err := execute(t, meetingScenario, "plan", "--json")
	require.NoError(t, err)

	var p plan.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	require.NotNil(t, p.Weather)
	assert.Equal(t, 10.0, p.Weather.PrecipitationChance, "the scenario forecast is kept")
	require.NotNil(t, p.EventWeather)
	assert.Equal(t, 80.0, p.EventWeather.PrecipitationChance)
	assert.NotContains(t, packNames(&p), "folding umbrella")
	assert.Equal(t, int32(1), calls.Load())
}

// geocodeServer fakes Nominatim with a single match for every query.
func geocodeServer(t *testing.T) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("q") == "Nowhere" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"lat":"35.3192","lon":"139.5467","display_name":"Kamakura, Kanagawa, Japan"}]`))
	}))
	t.Cleanup(server.Close)
	t.Setenv("GEOCODING_BASE_URL", server.URL)
}

func TestPlan_HomeQueryFetchesWeather(t *testing.T) {
	_, calls := forecastServer(t, 20)
	geocodeServer(t)
	scenario := "homeQuery: Kamakura\n" + strings.Split(strings.SplitN(meetingScenario, "\n", 3)[2], "weather:")[0]

	out, _, err := execute(t, scenario, "plan")
	require.NoError(t, err)
	assert.Contains(t, out, "Kamakura, Kanagawa, Japan")
	assert.Contains(t, out, "At event")
	assert.Equal(t, int32(2), calls.Load())
}

func TestPlan_HomeQueryNoMatch(t *testing.T) {
	forecastServer(t, 20)
	geocodeServer(t)

	_, _, err := execute(t, "homeQuery: Nowhere\n", "plan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no place matches "Nowhere"`)
}

func TestPlan_HomeQueryOffline(t *testing.T) {
	_, _, err := execute(t, "homeQuery: Kamakura\n", "plan", "--offline")
	assert.ErrorIs(t, err, cli.ErrOfflineHomeQuery)
}

func TestPlan_InvalidScenarios(t *testing.T) {
	tests := []struct {
		name     string
		scenario string
		want     string
	}{
		{"empty", "", "scenario is empty"},
		{"unknown key", "home: {lat: 35, lon: 139}\nhomee: x\n", "decode scenario"},
		{"no home", "style: formal\n", "home or homeQuery is required"},
		{"bad home", "home: {lat: 135, lon: 139}\n", "home:"},
		{"bad style", "home: {lat: 35, lon: 139}\nstyle: pyjamas\n", "style"},
		{"bad start", "home: {lat: 35, lon: 139}\nevent: {title: x, start: soon}\n", "event.start"},
		{"missing title", "home: {lat: 35, lon: 139}\nevent: {start: \"2025-01-11T09:00:00Z\"}\n", "event.title"},
		{"bad weather", "home: {lat: 35, lon: 139}\nweather: {condition: hail}\n", "weather:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.scenario, "plan", "--offline")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse(t *testing.T) {
	t.Setenv("APP_TIME_ZONE", "Asia/Tokyo")

	cmd := cli.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
		"parse", "--json", "--now", "2025-01-10T00:00:00Z",
		"meeting tomorrow 9:30am at Shiodome Station",
	})
	require.NoError(t, cmd.Execute())

	var draft event.Draft
	require.NoError(t, json.Unmarshal(out.Bytes(), &draft))
	assert.Equal(t, "meeting", draft.Title)
	assert.Equal(t, "Shiodome Station", draft.Place)

	jst, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	assert.True(t, draft.Start.Equal(time.Date(2025, 1, 11, 9, 30, 0, 0, jst)), draft.Start.String())
}

func TestParse_Text(t *testing.T) {
	out, _, err := execute(t, "", "parse", "--now", "2025-01-10T00:00:00Z", "lunch", "today", "12:30", "at", "Ginza")
	require.NoError(t, err)
	assert.Contains(t, out, "Event draft")
	assert.Contains(t, out, "Ginza")
	assert.Contains(t, out, "12:30")
}

func TestParse_NothingToParse(t *testing.T) {
	_, _, err := execute(t, "", "parse", "just some words")
	assert.ErrorIs(t, err, cli.ErrNothingToParse)

	_, _, err = execute(t, "", "parse", "--now", "yesterday", "today 9:00")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	out, stderr, err := execute(t, "", "token", "usr_cli")
	require.NoError(t, err)
	assert.Contains(t, stderr, "development key")

	cfg, err := config.Load(config.Options{EnvFiles: []string{}})
	require.NoError(t, err)
	userID, err := auth.NewJWTService(auth.FromConfig(cfg.JWT)).ValidateAccessToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "usr_cli", userID)
}

func TestToken_JSON(t *testing.T) {
	out, _, err := execute(t, "", "token", "--json", "usr_cli")
	require.NoError(t, err)

	var body struct {
		Token     string    `json:"token"`
		UserID    string    `json:"userId"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "usr_cli", body.UserID)
	assert.True(t, body.ExpiresAt.After(time.Now()))
}

func TestToken_RequiresUser(t *testing.T) {
	_, _, err := execute(t, "", "token")
	assert.Error(t, err)
}

func TestMigrate_List(t *testing.T) {
	out, _, err := execute(t, "", "migrate", "--list", "--json")
	require.NoError(t, err)

	var versions []string
	require.NoError(t, json.Unmarshal([]byte(out), &versions))
	assert.Contains(t, versions, "0001_events")
}

func TestRefresh(t *testing.T) {
	_, calls := forecastServer(t, 20)
	t.Setenv("APP_STORAGE", "memory")
	t.Setenv("REDIS_ADDR", "")

	out, _, err := execute(t, "", "refresh", "--json")
	require.NoError(t, err)

	var result worker.RefreshResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.TotalTargets, "default anchor today and tomorrow")
	assert.Equal(t, 2, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRefresh_Text(t *testing.T) {
	forecastServer(t, 20)
	t.Setenv("APP_STORAGE", "memory")
	t.Setenv("REDIS_ADDR", "")

	out, _, err := execute(t, "", "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "refreshed 2 of 2 targets")
}

func TestVersion(t *testing.T) {
	cli.SetVersion("1.4.0")
	t.Cleanup(func() { cli.SetVersion("dev") })

	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "1.4.0\n", out)
}
