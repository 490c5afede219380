package chart

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"sort"
	"strings"
	"time"

	svg "github.com/ajstarks/svgo"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/sffd-incident-etl/internal/analysis"
)

const font = "font-family:Helvetica,Arial,sans-serif;font-size:11px;fill:#333"

// Area is one named shape of a choropleth.
type Area struct {
	Name     string
	Geometry orb.Geometry // orb.Polygon or orb.MultiPolygon
}

// ChoroplethOptions sizes the map.
type ChoroplethOptions struct {
	Width int // default 800; height follows the aspect ratio
	Label string
}

// Choropleth colors each area by its value on a viridis scale running from 0
// to the largest value. Areas without a value are drawn grey.
func Choropleth(title string, areas []Area, values map[string]float64, opts ChoroplethOptions) (Chart, error) {
	if len(areas) == 0 {
		return Chart{}, fmt.Errorf("choropleth %q: no areas", title)
	}
	width := opts.Width
	if width <= 0 {
		width = 800
	}

	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, a := range areas {
		if a.Geometry != nil {
			bound = bound.Union(a.Geometry.Bound())
		}
	}
	lo, hi := valueRange(values)

	// Equirectangular projection scaled at the map's mid latitude.
	kx := math.Cos(bound.Center().Lat() * math.Pi / 180)
	spanX := (bound.Max.Lon() - bound.Min.Lon()) * kx
	spanY := bound.Max.Lat() - bound.Min.Lat()
	if !(spanX > 0 && spanY > 0) {
		return Chart{}, fmt.Errorf("choropleth %q: degenerate bounds", title)
	}
	const pad, legendH = 10, 50
	mapW := float64(width - 2*pad)
	mapH := mapW * spanY / spanX
	height := int(mapH) + 2*pad + legendH
	project := func(p orb.Point) (float64, float64) {
		x := pad + (p.Lon()-bound.Min.Lon())*kx/spanX*mapW
		y := pad + (bound.Max.Lat()-p.Lat())/spanY*mapH
		return x, y
	}

	scale := ViridisScale()
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(width, height)
	sorted := append([]Area(nil), areas...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, a := range sorted {
		d := pathData(a.Geometry, project)
		if d == "" {
			continue
		}
		fill := MissingColor
		tip := a.Name + ": no data"
		if v, ok := values[a.Name]; ok && !math.IsNaN(v) {
			fill = scale.Normalized(v, lo, hi).Hex()
			tip = fmt.Sprintf("%s: %.2f", a.Name, v)
		}
		canvas.Group()
		canvas.Title(tip)
		canvas.Path(d, "fill:"+fill+";fill-opacity:0.85;fill-rule:evenodd;stroke:#fff;stroke-width:0.8")
		canvas.Gend()
	}
	gradientLegend(canvas, scale, pad, height-legendH+10, width-2*pad, lo, hi, opts.Label)
	canvas.End()

	return Chart{Title: title, SVG: inline(buf.String())}, nil
}

// inline drops the XML declaration so the drawing can sit inside HTML.
func inline(doc string) template.HTML {
	if i := strings.Index(doc, "<svg"); i > 0 {
		doc = doc[i:]
	}
	return template.HTML(doc)
}

// valueRange anchors the color scale at 0. Negative values extend it below 0.
func valueRange(values map[string]float64) (lo, hi float64) {
	lo, hi = 0, math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if math.IsInf(hi, -1) {
		return 0, 0
	}
	return lo, math.Max(hi, 0)
}

func pathData(g orb.Geometry, project func(orb.Point) (float64, float64)) string {
	var polys []orb.Polygon
	switch geom := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{geom}
	case orb.MultiPolygon:
		polys = geom
	default:
		return ""
	}
	var sb strings.Builder
	for _, poly := range polys {
		for _, ring := range poly {
			for i, p := range ring {
				x, y := project(p)
				cmd := "L"
				if i == 0 {
					cmd = "M"
				}
				fmt.Fprintf(&sb, "%s%.1f %.1f ", cmd, x, y)
			}
			if len(ring) > 0 {
				sb.WriteString("Z ")
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

func gradientLegend(canvas *svg.SVG, scale Scale, x, y, w int, lo, hi float64, label string) {
	stops := make([]svg.Offcolor, 0, 11)
	for i := 0; i <= 10; i++ {
		stops = append(stops, svg.Offcolor{Offset: uint8(i * 10), Color: scale.At(float64(i) / 10).Hex(), Opacity: 1})
	}
	canvas.Def()
	canvas.LinearGradient("legend-scale", 0, 0, 100, 0, stops)
	canvas.DefEnd()
	barW := w / 2
	canvas.Rect(x, y, barW, 12, "fill:url(#legend-scale)")
	canvas.Text(x, y+26, fmt.Sprintf("%.2f", lo), font)
	canvas.Text(x+barW, y+26, fmt.Sprintf("%.2f", hi), font+";text-anchor:end")
	if label != "" {
		canvas.Text(x+barW+12, y+10, label, font)
	}
}

// Calendar draws one heatmap row per year: weeks across, Monday to Sunday
// down, each day colored by its mean on the YlGnBu scale.
func Calendar(title, label string, days []analysis.DayMean) (Chart, error) {
	if len(days) == 0 {
		return Chart{}, fmt.Errorf("calendar %q: no days", title)
	}
	byDate := make(map[string]float64, len(days))
	yearSet := make(map[int]bool)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, d := range days {
		if math.IsNaN(d.Mean) {
			continue
		}
		byDate[d.Date.Format(time.DateOnly)] = d.Mean
		yearSet[d.Date.Year()] = true
		lo, hi = math.Min(lo, d.Mean), math.Max(hi, d.Mean)
	}
	if len(yearSet) == 0 {
		return Chart{}, fmt.Errorf("calendar %q: no values", title)
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)

	const cell, gap, left, top, rowH = 12, 2, 40, 20, 7*(12+2) + 30
	width := left + 54*(cell+gap) + 20
	height := top + len(years)*rowH + 50

	scale := YlGnBuScale()
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(width, height)
	for r, year := range years {
		oy := top + r*rowH
		canvas.Text(0, oy+4*(cell+gap), fmt.Sprint(year), font+";font-weight:bold")
		jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		offset := (int(jan1.Weekday()) + 6) % 7 // Monday = 0
		for d := jan1; d.Year() == year; d = d.AddDate(0, 0, 1) {
			idx := d.YearDay() - 1 + offset
			week, dow := idx/7, idx%7
			x, y := left+week*(cell+gap), oy+dow*(cell+gap)
			key := d.Format(time.DateOnly)
			fill := "#f2f2f2"
			tip := key
			if v, ok := byDate[key]; ok {
				fill = scale.Normalized(v, lo, hi).Hex()
				tip = fmt.Sprintf("%s: %.2f", key, v)
			}
			canvas.Group()
			canvas.Title(tip)
			canvas.Rect(x, y, cell, cell, "fill:"+fill+";stroke:#fff;stroke-width:0.2")
			canvas.Gend()
			if d.Day() == 1 {
				canvas.Text(x, oy-4, d.Month().String()[:3], font)
			}
		}
	}
	gradientLegend(canvas, scale, left, height-40, width-left-20, lo, hi, label)
	canvas.End()

	return Chart{Title: title, SVG: inline(buf.String())}, nil
}

// BoxPlot draws one box per group with whiskers and no outliers.
func BoxPlot(title, xLabel, yLabel string, boxes []analysis.Box) (Chart, error) {
	if len(boxes) == 0 {
		return Chart{}, fmt.Errorf("box plot %q: no groups", title)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range boxes {
		lo, hi = math.Min(lo, b.LowerWhisker), math.Max(hi, b.UpperWhisker)
	}
	lo = math.Min(lo, 0)
	if hi <= lo {
		hi = lo + 1
	}

	const left, top, bottom, slot = 60, 30, 160, 24
	plotH := 400
	width := left + len(boxes)*slot + 20
	height := top + plotH + bottom
	y := func(v float64) int { return top + int(float64(plotH)*(hi-v)/(hi-lo)) }

	colors := Viridis(len(boxes))
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(width, height)
	canvas.Line(left, top, left, top+plotH, "stroke:#333")
	canvas.Line(left, top+plotH, width-10, top+plotH, "stroke:#333")
	for i := 0; i <= 5; i++ {
		v := lo + (hi-lo)*float64(i)/5
		canvas.Line(left-4, y(v), left, y(v), "stroke:#333")
		canvas.Text(left-6, y(v)+4, fmt.Sprintf("%.1f", v), font+";text-anchor:end")
	}
	canvas.Text(14, top+plotH/2, yLabel, font+";text-anchor:middle;writing-mode:vertical-rl")

	for i, b := range boxes {
		cx := left + i*slot + slot/2
		bw := slot - 8
		canvas.Group()
		canvas.Title(fmt.Sprintf("%s: n=%d median=%.2f IQR=[%.2f, %.2f]", b.Label, b.N, b.Median, b.Q1, b.Q3))
		canvas.Line(cx, y(b.UpperWhisker), cx, y(b.Q3), "stroke:#333")
		canvas.Line(cx, y(b.Q1), cx, y(b.LowerWhisker), "stroke:#333")
		canvas.Line(cx-bw/4, y(b.UpperWhisker), cx+bw/4, y(b.UpperWhisker), "stroke:#333")
		canvas.Line(cx-bw/4, y(b.LowerWhisker), cx+bw/4, y(b.LowerWhisker), "stroke:#333")
		canvas.Rect(cx-bw/2, y(b.Q3), bw, max(y(b.Q1)-y(b.Q3), 1), "fill:"+colors[i].Hex()+";fill-opacity:0.7;stroke:#333")
		canvas.Line(cx-bw/2, y(b.Median), cx+bw/2, y(b.Median), "stroke:#000;stroke-width:2")
		canvas.Gend()
		canvas.TranslateRotate(cx+4, top+plotH+8, 90)
		canvas.Text(0, 0, b.Label, font)
		canvas.Gend()
	}
	canvas.Text(left+(width-left)/2, height-8, xLabel, font+";text-anchor:middle")
	canvas.End()

	return Chart{Title: title, SVG: inline(buf.String())}, nil
}
