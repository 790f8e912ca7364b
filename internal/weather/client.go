// Package weather provides the HTTP client for the Open-Meteo forecast API.
//
// Open-Meteo is keyless; requests are rate limited client-side and current
// conditions are cached in Redis by rounded coordinates so a cluster of
// nearby subscribers shares one upstream call per window.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Observation is one snapshot of current conditions at a location.
type Observation struct {
	TemperatureC float64   `json:"temperature_c"`
	Humidity     float64   `json:"humidity_pct"`
	Sunrise      time.Time `json:"sunrise"`
	Sunset       time.Time `json:"sunset"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// IsNight reports whether t falls outside the observation's daylight window.
func (o Observation) IsNight(t time.Time) bool {
	return t.Before(o.Sunrise) || t.After(o.Sunset)
}

// Client is the HTTP client for Open-Meteo endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	cache      *Cache
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client with rate limiting. cache may be nil.
func NewClient(baseURL string, requestsPerMinute int, cache *Cache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		cache:      cache,
		logger:     logger,
	}
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		UVIndex     float64 `json:"uv_index"`
	} `json:"current"`
	Daily struct {
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// Current fetches temperature, humidity and the daylight window for a
// coordinate pair.
func (c *Client) Current(ctx context.Context, lat, lon float64) (Observation, error) {
	key := coordKey("current", lat, lon)
	if obs, ok := c.cache.GetObservation(ctx, key); ok {
		return obs, nil
	}

	params := url.Values{}
	params.Set("current", "temperature_2m,relative_humidity_2m")
	params.Set("daily", "sunrise,sunset")
	params.Set("forecast_days", "1")

	resp, err := c.get(ctx, lat, lon, params)
	if err != nil {
		return Observation{}, err
	}

	if len(resp.Daily.Sunrise) == 0 || len(resp.Daily.Sunset) == 0 {
		return Observation{}, fmt.Errorf("weather: response missing sunrise/sunset")
	}
	sunrise, err := parseLocalTime(resp.Daily.Sunrise[0])
	if err != nil {
		return Observation{}, fmt.Errorf("weather: parse sunrise: %w", err)
	}
	sunset, err := parseLocalTime(resp.Daily.Sunset[0])
	if err != nil {
		return Observation{}, fmt.Errorf("weather: parse sunset: %w", err)
	}

	obs := Observation{
		TemperatureC: resp.Current.Temperature,
		Humidity:     resp.Current.Humidity,
		Sunrise:      sunrise,
		Sunset:       sunset,
		FetchedAt:    time.Now().UTC(),
	}
	c.cache.SetObservation(ctx, key, obs)
	return obs, nil
}

// UVIndex fetches the current UV index. Callers skip this entirely at night.
func (c *Client) UVIndex(ctx context.Context, lat, lon float64) (float64, error) {
	params := url.Values{}
	params.Set("current", "uv_index")

	resp, err := c.get(ctx, lat, lon, params)
	if err != nil {
		return 0, err
	}
	return resp.Current.UVIndex, nil
}

// get performs a rate-limited GET against the forecast endpoint.
func (c *Client) get(ctx context.Context, lat, lon float64, params url.Values) (*forecastResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("weather: rate limit wait: %w", err)
	}

	params.Set("latitude", fmt.Sprintf("%.4f", lat))
	params.Set("longitude", fmt.Sprintf("%.4f", lon))
	params.Set("timezone", "UTC")

	u := c.baseURL + "/forecast?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("weather: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("weather: read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: upstream returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var result forecastResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("weather: decode response: %w", err)
	}

	return &result, nil
}

// parseLocalTime handles Open-Meteo's zone-less ISO timestamps (timezone=UTC).
func parseLocalTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func coordKey(kind string, lat, lon float64) string {
	// Two decimal places ≈ 1km grid; close subscribers share a cache slot.
	return fmt.Sprintf("weather:%s:%.2f:%.2f", kind, lat, lon)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
