package geojson

import (
	"math"

	"github.com/couchcryptid/sffd-incident-etl/internal/cache"
	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
	"github.com/couchcryptid/sffd-incident-etl/internal/observability"
)

// coordKey rounds to roughly 0.1 m so repeated addresses share a cache slot.
type coordKey struct {
	lat, lon int64
}

func keyFor(lat, lon float64) coordKey {
	return coordKey{lat: int64(math.Round(lat * 1e6)), lon: int64(math.Round(lon * 1e6))}
}

// CachedResolver wraps a resolver with an LRU cache and lookup metrics.
type CachedResolver struct {
	inner   domain.NeighborhoodResolver
	cache   *cache.LRU[coordKey, string]
	metrics *observability.Metrics
}

// NewCachedResolver creates a cache decorator around a resolver.
func NewCachedResolver(inner domain.NeighborhoodResolver, maxEntries int, metrics *observability.Metrics) *CachedResolver {
	return &CachedResolver{
		inner:   inner,
		cache:   cache.NewLRU[coordKey, string](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedResolver) Neighborhood(lat, lon float64) string {
	key := keyFor(lat, lon)
	name, ok := c.cache.Get(key)
	if ok {
		c.metrics.GeocodeCache.WithLabelValues("polygon", "hit").Inc()
	} else {
		c.metrics.GeocodeCache.WithLabelValues("polygon", "miss").Inc()
		name = c.inner.Neighborhood(lat, lon)
		c.cache.Put(key, name)
	}

	if name == "" {
		c.metrics.NeighborhoodLookups.WithLabelValues("none").Inc()
	} else {
		c.metrics.NeighborhoodLookups.WithLabelValues("match").Inc()
	}
	return name
}
