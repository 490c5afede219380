// Package geojson loads neighborhood boundary files and resolves points to the
// neighborhood that contains them.
package geojson

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// DefaultNameProperty is the feature property holding the neighborhood name
// in the DataSF "Analysis Neighborhoods" export.
const DefaultNameProperty = "nhood"

// Region is one named boundary.
type Region struct {
	Name     string
	Geometry orb.Geometry // orb.Polygon or orb.MultiPolygon
	Bound    orb.Bound
}

// Boundaries holds the polygons of a boundary file. It is safe for
// concurrent reads.
type Boundaries struct {
	regions []Region
}

// Load reads a GeoJSON FeatureCollection from disk.
func Load(path, nameProperty string) (*Boundaries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}
	return Parse(data, nameProperty)
}

// Parse decodes a FeatureCollection. Features without a polygonal geometry or
// a name are skipped.
func Parse(data []byte, nameProperty string) (*Boundaries, error) {
	if nameProperty == "" {
		nameProperty = DefaultNameProperty
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse boundaries: %w", err)
	}

	b := &Boundaries{}
	for _, f := range fc.Features {
		name := strings.TrimSpace(f.Properties.MustString(nameProperty, ""))
		if name == "" || f.Geometry == nil {
			continue
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		b.regions = append(b.regions, Region{Name: name, Geometry: f.Geometry, Bound: f.Geometry.Bound()})
	}
	if len(b.regions) == 0 {
		return nil, fmt.Errorf("parse boundaries: no polygon features with property %q", nameProperty)
	}
	return b, nil
}

// Regions returns the boundaries sorted by name.
func (b *Boundaries) Regions() []Region {
	out := make([]Region, len(b.regions))
	copy(out, b.regions)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted region names.
func (b *Boundaries) Names() []string {
	regions := b.Regions()
	names := make([]string, len(regions))
	for i, r := range regions {
		names[i] = r.Name
	}
	return names
}

// Neighborhood returns the name of the first region containing the point, or
// "" when none does. It implements domain.NeighborhoodResolver.
func (b *Boundaries) Neighborhood(lat, lon float64) string {
	p := orb.Point{lon, lat}
	for _, r := range b.regions {
		if !r.Bound.Contains(p) {
			continue
		}
		if contains(r.Geometry, p) {
			return r.Name
		}
	}
	return ""
}

func contains(g orb.Geometry, p orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	}
	return false
}
