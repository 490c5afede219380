//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/sffd-incident-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "1 Dr Carlton B Goodlett Pl", "San Francisco, CA")
	require.NoError(t, err)

	assert.InDelta(t, 37.779, result.Lat, 0.01, "lat should be near City Hall")
	assert.InDelta(t, -122.419, result.Lon, 0.01, "lon should be near City Hall")
	assert.Contains(t, result.FormattedAddress, "San Francisco")
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ReverseGeocode(context.Background(), 37.77493, -122.41942)
	require.NoError(t, err)

	assert.NotEmpty(t, result.FormattedAddress)
	assert.NotEmpty(t, result.PlaceName)
}

func TestSmoke_ForwardGeocode_BlockAddress(t *testing.T) {
	c := smokeClient(t)

	// Exports mask house numbers as "Block of"; any response must be handled without error.
	_, err := c.ForwardGeocode(context.Background(), "800 Block of BRYANT ST", "San Francisco, CA")
	require.NoError(t, err)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedGeocoder(c, 10, observability.NewMetricsForTesting())

	r1, err := cached.ForwardGeocode(context.Background(), "1 Dr Carlton B Goodlett Pl", "San Francisco, CA")
	require.NoError(t, err)

	r2, err := cached.ForwardGeocode(context.Background(), "1 Dr Carlton B Goodlett Pl", "San Francisco, CA")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
