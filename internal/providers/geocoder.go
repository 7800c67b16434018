package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/assistant-api-facade/internal/transport"
)

const geocoderEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

var errEmptyAddress = errors.New("address is empty")

// Geocoder resolves free-text addresses through the Google geocoding API.
type Geocoder struct {
	name    string
	forward func(geocoder.Address) (geocoder.Location, error)
	reverse func(geocoder.Location) ([]geocoder.Address, error)
}

// NewGeocoder configures the geocoding library with apiKey. The library keeps
// the key in a package variable, so a process should build a single Geocoder.
func NewGeocoder(apiKey string) *Geocoder {
	geocoder.ApiKey = apiKey
	return &Geocoder{
		name:    "geocoder",
		forward: geocoder.Geocoding,
		reverse: geocoder.GeocodingReverse,
	}
}

func (g *Geocoder) Name() string {
	return g.name
}

// GetLocation forward geocodes address and enriches the coordinate with the
// reverse geocoded city, state and country. Keys are snake_case.
func (g *Geocoder) GetLocation(ctx context.Context, address string) (map[string]any, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errEmptyAddress
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc, err := g.forward(geocoder.Address{Street: address})
	if err != nil {
		return nil, &transport.UpstreamError{URL: geocoderEndpoint, Err: err}
	}

	result := map[string]any{
		"coordinate": map[string]any{
			"latitude":  loc.Latitude,
			"longitude": loc.Longitude,
		},
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addrs, err := g.reverse(loc)
	if err != nil {
		return nil, &transport.UpstreamError{URL: geocoderEndpoint, Err: err}
	}
	if len(addrs) == 0 {
		return result, nil
	}

	best := addrs[0]
	result["formatted_address"] = best.FormattedAddress
	result["postal_code"] = best.PostalCode
	result["city"] = map[string]any{
		"name": best.City,
		"state": map[string]any{
			"name": best.State,
			"country": map[string]any{
				"name": best.Country,
			},
		},
	}
	return result, nil
}
