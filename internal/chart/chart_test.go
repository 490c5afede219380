package chart

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sffd-incident-etl/internal/analysis"
)

func TestViridis(t *testing.T) {
	tests := []struct {
		n    int
		want []string
	}{
		{0, nil},
		{1, []string{"#440154"}},
		{2, []string{"#440154", "#fde725"}},
	}
	for _, tt := range tests {
		got := HexColors(Viridis(tt.n))
		if tt.want == nil {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, tt.want, got)
	}
	assert.Len(t, Viridis(7), 7)
}

func TestScale(t *testing.T) {
	s := ViridisScale()
	assert.Equal(t, "#440154", s.At(-1).Hex(), "clamped low")
	assert.Equal(t, "#fde725", s.At(2).Hex(), "clamped high")
	assert.Equal(t, "#26828e", s.At(0.5).Hex())
	assert.Equal(t, s.At(0.5).Hex(), s.Normalized(3, 3, 3).Hex(), "degenerate range")
	assert.Equal(t, "#081d58", YlGnBuScale().Normalized(10, 0, 10).Hex())
}

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

func TestChoropleth(t *testing.T) {
	areas := []Area{
		{Name: "Mission", Geometry: square(-122.42, 37.75, 0.01)},
		{Name: "Marina", Geometry: orb.MultiPolygon{square(-122.44, 37.80, 0.01)}},
		{Name: "Presidio", Geometry: square(-122.47, 37.79, 0.01)},
	}
	c, err := Choropleth("On Scene Time", areas, map[string]float64{"Mission": 10, "Marina": 20}, ChoroplethOptions{Label: "minutes"})
	require.NoError(t, err)

	svg := string(c.SVG)
	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Contains(t, svg, "Mission: 10.00")
	assert.Contains(t, svg, "Presidio: no data")
	assert.Contains(t, svg, "fill:"+ViridisScale().Normalized(10, 0, 20).Hex(), "scale starts at zero")
	assert.NotContains(t, svg, "fill:#440154", "no area sits at zero")
	assert.Contains(t, svg, "fill:#fde725", "maximum is the high end")
	assert.Contains(t, svg, "fill:"+MissingColor)
	assert.Contains(t, svg, "minutes")

	_, err = Choropleth("empty", nil, nil, ChoroplethOptions{})
	assert.Error(t, err)
}

func TestValueRange(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]float64
		lo, hi float64
	}{
		{"anchored at zero", map[string]float64{"a": 10, "b": 20}, 0, 20},
		{"negative extends below zero", map[string]float64{"a": -5, "b": 3}, -5, 3},
		{"NaN ignored", map[string]float64{"a": math.NaN(), "b": 7}, 0, 7},
		{"empty", nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := valueRange(tt.values)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestCalendar(t *testing.T) {
	days := []analysis.DayMean{
		{Date: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), Mean: 5, Count: 3},
		{Date: time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC), Mean: 9, Count: 1},
	}
	c, err := Calendar("Response Time", "minutes", days)
	require.NoError(t, err)

	svg := string(c.SVG)
	assert.Contains(t, svg, "2019-01-01: 5.00")
	assert.Contains(t, svg, "2020-02-29: 9.00")
	assert.Contains(t, svg, ">2019<")
	assert.Contains(t, svg, ">2020<")
	assert.Contains(t, svg, "fill:#ffffd9")
	assert.Contains(t, svg, "fill:#081d58")

	_, err = Calendar("empty", "", nil)
	assert.Error(t, err)
}

func TestBoxPlot(t *testing.T) {
	a, _ := analysis.Summarize("Mission", []float64{1, 2, 3, 4, 5})
	b, _ := analysis.Summarize("Marina", []float64{2, 4, 6, 8})
	c, err := BoxPlot("Response Time", "Neighborhood", "Minutes", []analysis.Box{a, b})
	require.NoError(t, err)
	assert.Contains(t, string(c.SVG), "Mission: n=5 median=3.00")
	assert.Contains(t, string(c.SVG), ">Marina<")

	_, err = BoxPlot("empty", "", "", nil)
	assert.Error(t, err)
}

func TestLineByCategory(t *testing.T) {
	p := analysis.Pivot{
		RowKey:  "year",
		Rows:    []string{"2018", "2019", "2020"},
		Columns: []string{"Marina", "Mission", "Presidio"},
		Cells: [][]float64{
			{5, 6, math.NaN()},
			{5.5, 7, math.NaN()},
			{6, 8, math.NaN()},
		},
	}

	c, err := LineByCategory("Response Time", "Year", "Minutes", p, []string{"Mission", "Presidio"})
	require.NoError(t, err)
	assert.Contains(t, string(c.SVG), "<svg")
	require.Len(t, c.Legend, 1, "all-NaN column is skipped")
	assert.Equal(t, "Mission", c.Legend[0].Label)
	assert.Equal(t, HexColors(Viridis(3))[1], c.Legend[0].Color)

	c, err = LineByCategory("Response Time", "Year", "Minutes", p, nil)
	require.NoError(t, err)
	assert.Equal(t, "Marina", c.Legend[0].Label, "first column by default")

	p.Rows[0] = "first"
	_, err = LineByCategory("bad", "", "", p, nil)
	assert.Error(t, err)

	_, err = LineByCategory("empty", "", "", analysis.Pivot{}, nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestBarAndHistogram(t *testing.T) {
	c, err := Bar("Battalion", "Minutes", []string{"B01", "B02"}, []float64{4.5, math.NaN()})
	require.NoError(t, err)
	assert.Contains(t, string(c.SVG), "B01")

	c, err = Bar("Zeros", "Count", []string{"a"}, []float64{0})
	require.NoError(t, err, "all-zero bars still render")

	_, err = Bar("mismatch", "", []string{"a"}, nil)
	assert.ErrorIs(t, err, ErrNoData)

	h, err := analysis.NewHistogram([]float64{1, 2, 2, 3}, 2)
	require.NoError(t, err)
	c, err = Histogram("On Scene Time", "minutes", h)
	require.NoError(t, err)
	assert.Contains(t, string(c.SVG), "1.0-2.0")
	assert.Equal(t, "minutes", c.Note)
}

func TestStackedBar(t *testing.T) {
	c, err := StackedBar("Split time", []string{"2018", "2019"}, []string{"intake", "queue"}, [][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Contains(t, string(c.SVG), "2018")
	require.Len(t, c.Legend, 2)
	assert.Equal(t, "queue", c.Legend[1].Label)

	_, err = StackedBar("ragged", []string{"2018", "2019"}, []string{"intake"}, [][]float64{{1}})
	assert.Error(t, err)
}

func TestRenderPages(t *testing.T) {
	a := Chart{Title: "First <chart>", SVG: "<svg id=\"a\"></svg>", Legend: []LegendItem{{Label: "Mission", Color: "#440154"}}}
	b := Chart{Title: "Second", SVG: "<svg id=\"b\"></svg>", Note: "note"}

	var buf bytes.Buffer
	require.NoError(t, a.Render(&buf))
	page := buf.String()
	assert.Contains(t, page, "<svg id=\"a\"></svg>", "svg is inlined unescaped")
	assert.Contains(t, page, "First &lt;chart&gt;", "titles are escaped")
	assert.Contains(t, page, "background: #440154")
	assert.NotContains(t, page, `type="radio"`)

	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	require.NoError(t, WriteTabs(path, "Report", []Chart{a, b}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tabs := string(data)
	assert.Equal(t, 2, strings.Count(tabs, `type="radio"`))
	assert.Contains(t, tabs, `id="tab0" checked`)
	assert.Contains(t, tabs, `#tab1:checked ~ #panel1`)
	assert.Contains(t, tabs, "<svg id=\"b\"></svg>")

	single := filepath.Join(dir, "a.html")
	require.NoError(t, a.WriteFile(single))
	_, err = os.Stat(single)
	assert.NoError(t, err)
}
