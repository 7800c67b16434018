package external

import (
	"context"
	"encoding/json"
	"log"

	"github.com/i474232898/assistant-api-facade/internal/providers"
)

// Settings is the slice of configuration the Manager reads once at construction.
type Settings struct {
	UnitSystem string
	WolframKey string
	OWMKey     string

	// Upstream base URL overrides; empty keeps the providers' defaults.
	WeatherURL   string
	KnowledgeURL string
}

// Coordinate is a latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geocoder resolves free-text addresses.
type Geocoder interface {
	GetLocation(ctx context.Context, address string) (map[string]any, error)
}

// Manager is the single entry point for geolocation, knowledge and weather
// requests. It hides provider selection and unit coercion from callers.
//
// Every query returns (result, error). A nil result with a nil error means no
// provider is configured for the request; an error means the upstream call failed.
type Manager struct {
	units     string
	geo       Geocoder
	knowledge knowledgeBackend
	weather   *providers.OpenWeatherClient
}

// NewManager resolves the knowledge backend and the weather client from
// settings. fallback may be nil when no federated service is available.
func NewManager(settings Settings, session providers.Getter, geo Geocoder, fallback FederatedKnowledge) *Manager {
	m := &Manager{
		units: settings.UnitSystem,
		geo:   geo,
	}

	switch {
	case settings.WolframKey != "":
		m.knowledge = localKnowledge{
			client: providers.NewWolframClient(session, settings.WolframKey, providers.WithBaseURL(settings.KnowledgeURL)),
		}
	case fallback != nil:
		m.knowledge = federatedKnowledge{client: fallback}
	default:
		m.knowledge = unavailableKnowledge{}
	}

	if settings.OWMKey != "" {
		m.weather = providers.NewOpenWeatherClient(session, settings.OWMKey, providers.WithBaseURL(settings.WeatherURL))
	}

	log.Printf("INFO: knowledge backend=%s weather available=%t", m.knowledge.mode(), m.weather != nil)
	return m
}

// KnowledgeMode reports which backend serves knowledge queries.
func (m *Manager) KnowledgeMode() KnowledgeMode {
	return m.knowledge.mode()
}

// WeatherAvailable reports whether a weather key is configured.
func (m *Manager) WeatherAvailable() bool {
	return m.weather != nil
}

// Geolocate resolves address and wraps the location under "data".
func (m *Manager) Geolocate(ctx context.Context, address string) (map[string]any, error) {
	loc, err := m.geo.GetLocation(ctx, address)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": loc}, nil
}

// KnowledgeSpoken answers query in spoken form, locally or through the
// federated service.
func (m *Manager) KnowledgeSpoken(ctx context.Context, query, units string, coords *Coordinate) (*Answer, error) {
	units = m.resolveUnits(units)
	logCoords("spoken", coords)
	return m.knowledge.spoken(ctx, query, units)
}

// KnowledgeSimple returns the simple answer. Local provider only.
func (m *Manager) KnowledgeSimple(ctx context.Context, query, units string, coords *Coordinate) (*Answer, error) {
	units = m.resolveUnits(units)
	logCoords("simple", coords)
	return m.knowledge.simple(ctx, query, units)
}

// KnowledgeFull returns the full structured answer as decoded JSON.
func (m *Manager) KnowledgeFull(ctx context.Context, query, units string, coords *Coordinate) (*Answer, error) {
	units = m.resolveUnits(units)
	logCoords("full", coords)
	return m.knowledge.full(ctx, query, units, providers.OutputJSON)
}

// KnowledgeXML returns the full answer as raw XML.
func (m *Manager) KnowledgeXML(ctx context.Context, query, units string, coords *Coordinate) (*Answer, error) {
	units = m.resolveUnits(units)
	logCoords("xml", coords)
	return m.knowledge.full(ctx, query, units, providers.OutputXML)
}

// Weather calls pass units through untouched; only the knowledge path coerces them.
// A nil message with a nil error means no weather key is configured.

// WeatherCurrent returns current conditions at lat/lon.
func (m *Manager) WeatherCurrent(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error) {
	if m.weather == nil {
		return nil, nil
	}
	return m.weather.Current(ctx, lat, lon, units, langOrDefault(lang))
}

// WeatherHourly returns the hourly forecast at lat/lon.
func (m *Manager) WeatherHourly(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error) {
	if m.weather == nil {
		return nil, nil
	}
	return m.weather.Hourly(ctx, lat, lon, units, langOrDefault(lang))
}

// WeatherDaily returns the daily forecast at lat/lon.
func (m *Manager) WeatherDaily(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error) {
	if m.weather == nil {
		return nil, nil
	}
	return m.weather.Daily(ctx, lat, lon, units, langOrDefault(lang))
}

// WeatherOneCall returns the aggregate one-call document at lat/lon.
func (m *Manager) WeatherOneCall(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error) {
	if m.weather == nil {
		return nil, nil
	}
	return m.weather.OneCall(ctx, lat, lon, units, langOrDefault(lang))
}

func langOrDefault(lang string) string {
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

// The knowledge APIs take no location, so coordinates are only logged.
func logCoords(kind string, coords *Coordinate) {
	if coords != nil {
		log.Printf("DEBUG: knowledge %s query at %f,%f", kind, coords.Lat, coords.Lon)
	}
}
