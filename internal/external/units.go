package external

// Unit systems understood by the upstream providers.
const (
	UnitsMetric   = "metric"
	UnitsImperial = "imperial"
)

// DefaultLanguage is used for weather requests that name no language.
const DefaultLanguage = "en-us"

// CoerceUnits maps anything other than the exact string "metric" to "imperial".
// The match is case sensitive.
func CoerceUnits(units string) string {
	if units != UnitsMetric {
		return UnitsImperial
	}
	return UnitsMetric
}

// resolveUnits picks the caller's units, falling back to the configured
// system, and coerces the result.
func (m *Manager) resolveUnits(units string) string {
	if units == "" {
		units = m.units
	}
	return CoerceUnits(units)
}
