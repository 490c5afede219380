package domain

import (
	"context"
	"log/slog"
)

// City is appended to street addresses for forward geocoding.
const City = "San Francisco, CA"

// EnrichLocation fills missing coordinates from the geocoder and a missing
// neighborhood from the resolver. Either may be nil. Failures are logged and
// recorded in GeoSource; the incident is always returned.
func EnrichLocation(ctx context.Context, inc Incident, geocoder Geocoder, resolver NeighborhoodResolver, logger *slog.Logger) Incident {
	if !inc.HasCoords() && inc.Address != "" && geocoder != nil {
		result, err := geocoder.ForwardGeocode(ctx, inc.Address, City)
		switch {
		case err != nil:
			logger.Warn("forward geocoding failed",
				"incident_id", inc.ID,
				"address", inc.Address,
				"error", err,
			)
			inc.GeoSource = "failed"
		case result.Lat != 0 || result.Lon != 0:
			inc.Latitude = result.Lat
			inc.Longitude = result.Lon
			inc.GeoSource = "forward"
		}
	}

	if inc.Neighborhood == "" && inc.HasCoords() && resolver != nil {
		if name := resolver.Neighborhood(inc.Latitude, inc.Longitude); name != "" {
			inc.Neighborhood = name
			if inc.GeoSource != "forward" {
				inc.GeoSource = "polygon"
			}
		}
	}

	return inc
}
