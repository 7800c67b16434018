package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// DefaultOpenWeatherURL is the versioned OpenWeatherMap data API.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherClient builds requests for the OpenWeatherMap endpoints and returns
// their JSON bodies untouched. A successful call never yields a nil message.
type OpenWeatherClient struct {
	name    string
	apiKey  string
	baseURL string
	session Getter
}

func NewOpenWeatherClient(session Getter, apiKey string, opts ...Option) *OpenWeatherClient {
	o := buildOptions(DefaultOpenWeatherURL, opts)
	return &OpenWeatherClient{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(o.baseURL, "/"),
		session: session,
	}
}

func (c *OpenWeatherClient) Name() string {
	return c.name
}

// Current fetches current conditions (/weather).
func (c *OpenWeatherClient) Current(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error) {
	return c.fetch(ctx, "/weather", lat, lon, units, lang)
}

// Hourly fetches the 3-hourly forecast (/forecast).
func (c *OpenWeatherClient) Hourly(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error) {
	return c.fetch(ctx, "/forecast", lat, lon, units, lang)
}

// Daily fetches the daily forecast (/forecast/daily).
func (c *OpenWeatherClient) Daily(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error) {
	return c.fetch(ctx, "/forecast/daily", lat, lon, units, lang)
}

// OneCall fetches the aggregate current+forecast document (/onecall).
func (c *OpenWeatherClient) OneCall(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error) {
	return c.fetch(ctx, "/onecall", lat, lon, units, lang)
}

func (c *OpenWeatherClient) fetch(ctx context.Context, path string, lat, lon float64, units, lang string) (json.RawMessage, error) {
	values := url.Values{}
	values.Set("lang", lang)
	values.Set("units", units)
	values.Set("lat", formatCoord(lat))
	values.Set("lon", formatCoord(lon))
	values.Set("appid", c.apiKey)

	resp, err := c.session.Get(ctx, c.baseURL+path, values)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.name, path, err)
	}

	payload, err := resp.RawJSON()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.name, path, err)
	}
	return payload, nil
}
