package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves addresses to coordinates and back.
type Geocoder interface {
	// ForwardGeocode converts an address within a city to coordinates.
	ForwardGeocode(ctx context.Context, address, city string) (GeocodingResult, error)

	// ReverseGeocode converts coordinates to place details.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}

// NeighborhoodResolver maps a coordinate to an analysis neighborhood name.
// It returns "" when the point lies outside every boundary.
type NeighborhoodResolver interface {
	Neighborhood(lat, lon float64) string
}
