package chart

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"math"
	"strconv"

	gochart "github.com/wcharczuk/go-chart/v2"

	"github.com/couchcryptid/sffd-incident-etl/internal/analysis"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("chart: no data")

type renderable interface {
	Render(rp gochart.RendererProvider, w io.Writer) error
}

func renderSVG(title string, c renderable) (Chart, error) {
	var buf bytes.Buffer
	if err := c.Render(gochart.SVG, &buf); err != nil {
		return Chart{}, fmt.Errorf("chart %q: %w", title, err)
	}
	return Chart{Title: title, SVG: template.HTML(buf.String())}, nil
}

func formatFloat(prec int) gochart.ValueFormatter {
	return func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'f', prec, 64)
		}
		return fmt.Sprint(v)
	}
}

func upperBound(values ...float64) float64 {
	hi := 0.0
	for _, v := range values {
		if !math.IsNaN(v) {
			hi = math.Max(hi, v)
		}
	}
	if hi == 0 {
		return 1
	}
	return hi * 1.1
}

// LineByCategory draws one line per pivot column against the numeric row
// keys, e.g. mean response time per neighborhood over years. Only the
// visible columns are drawn; with none given, the first column is. Colors
// follow the column's position in the full set.
func LineByCategory(title, xLabel, yLabel string, p analysis.Pivot, visible []string) (Chart, error) {
	if len(p.Rows) == 0 || len(p.Columns) == 0 {
		return Chart{}, fmt.Errorf("line plot %q: %w", title, ErrNoData)
	}
	xs := make([]float64, len(p.Rows))
	for i, r := range p.Rows {
		x, err := strconv.ParseFloat(r, 64)
		if err != nil {
			return Chart{}, fmt.Errorf("line plot %q: row key %q is not numeric", title, r)
		}
		xs[i] = x
	}
	show := make(map[string]bool, len(visible))
	for _, v := range visible {
		show[v] = true
	}
	if len(show) == 0 {
		show[p.Columns[0]] = true
	}

	colors := Viridis(len(p.Columns))
	var series []gochart.Series
	var legend []LegendItem
	var ys []float64
	for j, col := range p.Columns {
		if !show[col] {
			continue
		}
		s := gochart.ContinuousSeries{
			Name:  col,
			Style: gochart.Style{StrokeColor: toDrawing(colors[j]), StrokeWidth: 1.5, DotColor: toDrawing(colors[j]), DotWidth: 2.5},
		}
		for i := range p.Rows {
			if v := p.Cells[i][j]; !math.IsNaN(v) {
				s.XValues = append(s.XValues, xs[i])
				s.YValues = append(s.YValues, v)
				ys = append(ys, v)
			}
		}
		if len(s.XValues) == 0 {
			continue
		}
		series = append(series, s)
		legend = append(legend, LegendItem{Label: col, Color: colors[j].Hex()})
	}
	if len(series) == 0 {
		return Chart{}, fmt.Errorf("line plot %q: %w", title, ErrNoData)
	}

	xMin, xMax := xs[0], xs[len(xs)-1]
	if xMax <= xMin {
		xMin, xMax = xMin-0.5, xMax+0.5
	}
	ticks := make([]gochart.Tick, 0, len(xs))
	for i, x := range xs {
		ticks = append(ticks, gochart.Tick{Value: x, Label: p.Rows[i]})
	}
	c := gochart.Chart{
		Title:      title,
		Width:      1000,
		Height:     600,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      gochart.XAxis{Name: xLabel, Range: &gochart.ContinuousRange{Min: xMin, Max: xMax}, Ticks: ticks},
		YAxis:      gochart.YAxis{Name: yLabel, Range: &gochart.ContinuousRange{Min: 0, Max: upperBound(ys...)}, ValueFormatter: formatFloat(1)},
		Series:     series,
	}
	out, err := renderSVG(title, c)
	out.Legend = legend
	return out, err
}

func barWidth(n int) (width, bar, spacing int) {
	bar, spacing = 24, 10
	return max(400, 120+n*(bar+spacing)), bar, spacing
}

// Bar draws one bar per label.
func Bar(title, yLabel string, labels []string, values []float64) (Chart, error) {
	if len(labels) == 0 || len(labels) != len(values) {
		return Chart{}, fmt.Errorf("bar chart %q: %w", title, ErrNoData)
	}
	colors := Viridis(len(labels))
	bars := make([]gochart.Value, len(labels))
	for i, l := range labels {
		v := values[i]
		if math.IsNaN(v) {
			v = 0
		}
		bars[i] = gochart.Value{Label: l, Value: v, Style: gochart.Style{FillColor: toDrawing(colors[i]), StrokeColor: toDrawing(colors[i])}}
	}
	width, bw, spacing := barWidth(len(bars))
	c := gochart.BarChart{
		Title:      title,
		Width:      width,
		Height:     520,
		BarWidth:   bw,
		BarSpacing: spacing,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Bottom: 140}},
		XAxis:      gochart.Style{TextRotationDegrees: 90},
		YAxis:      gochart.YAxis{Name: yLabel, Range: &gochart.ContinuousRange{Min: 0, Max: upperBound(values...)}, ValueFormatter: formatFloat(1)},
		Bars:       bars,
	}
	return renderSVG(title, c)
}

// Histogram draws equal-width bin counts.
func Histogram(title, xLabel string, h analysis.Histogram) (Chart, error) {
	if len(h.Counts) == 0 {
		return Chart{}, fmt.Errorf("histogram %q: %w", title, ErrNoData)
	}
	labels := make([]string, len(h.Counts))
	values := make([]float64, len(h.Counts))
	for i, n := range h.Counts {
		labels[i] = fmt.Sprintf("%.1f-%.1f", h.Edges[i], h.Edges[i+1])
		values[i] = float64(n)
	}
	c, err := Bar(title, "Count", labels, values)
	if err == nil {
		c.Note = xLabel
	}
	return c, err
}

// StackedBar draws one stacked bar per category with one segment per series.
// values is indexed [series][category].
func StackedBar(title string, categories, series []string, values [][]float64) (Chart, error) {
	if len(categories) == 0 || len(series) == 0 || len(values) != len(series) {
		return Chart{}, fmt.Errorf("stacked bar %q: %w", title, ErrNoData)
	}
	colors := Viridis(len(series))
	bars := make([]gochart.StackedBar, len(categories))
	for k, cat := range categories {
		bars[k] = gochart.StackedBar{Name: cat, Width: 30}
		for s := range series {
			if len(values[s]) != len(categories) {
				return Chart{}, fmt.Errorf("stacked bar %q: series %q has %d values for %d categories", title, series[s], len(values[s]), len(categories))
			}
			v := values[s][k]
			if math.IsNaN(v) {
				v = 0
			}
			bars[k].Values = append(bars[k].Values, gochart.Value{
				Label: series[s],
				Value: v,
				Style: gochart.Style{FillColor: toDrawing(colors[s]), StrokeColor: toDrawing(colors[s])},
			})
		}
	}
	width, _, _ := barWidth(len(bars))
	c := gochart.StackedBarChart{
		Title:      title,
		Width:      width + 20*len(bars),
		Height:     520,
		BarSpacing: 14,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Bottom: 140}},
		XAxis:      gochart.Style{TextRotationDegrees: 90},
		Bars:       bars,
	}
	out, err := renderSVG(title, c)
	for s, name := range series {
		out.Legend = append(out.Legend, LegendItem{Label: name, Color: colors[s].Hex()})
	}
	return out, err
}
