// Package report runs the scripted analysis passes over cleaned incidents and
// writes their charts, a tabbed index page and a summary workbook.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/geojson"
	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/sffd-incident-etl/internal/analysis"
	"github.com/couchcryptid/sffd-incident-etl/internal/chart"
	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

const (
	IndexFile    = "index.html"
	WorkbookFile = "summary.xlsx"
	ManifestFile = "manifest.json"
)

// Options tunes the passes.
type Options struct {
	OutDir string
	// Boundaries enables the neighborhood maps. Nil skips them.
	Boundaries *geojson.Boundaries
	// FromYear and ToYear bound the calendar and box plot to [FromYear, ToYear).
	FromYear, ToYear int
	Bins             int
	// LineCategories is how many of the busiest neighborhoods the line plot shows.
	LineCategories int
}

// DefaultOptions mirrors the published analysis: 2017–2022, 50 bins, five
// neighborhoods on the line plot.
func DefaultOptions(outDir string) Options {
	return Options{OutDir: outDir, FromYear: 2017, ToYear: 2023, Bins: 50, LineCategories: 5}
}

// Manifest records what a run produced.
type Manifest struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Incidents   int               `json:"incidents"`
	Charts      []string          `json:"charts"`
	Workbook    string            `json:"workbook"`
	Skipped     map[string]string `json:"skipped,omitempty"`
}

type pass struct {
	name string
	run  func(*analysis.Table) (chart.Chart, error)
}

// Generate runs every pass. A pass without data is logged and skipped; write
// failures abort the run.
func Generate(ctx context.Context, incidents []domain.Incident, opts Options, logger *slog.Logger) (Manifest, error) {
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create output dir: %w", err)
	}
	m := Manifest{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Incidents:   len(incidents),
		Skipped:     make(map[string]string),
	}
	logger = logger.With("run_id", m.RunID)

	tbl := analysis.NewTable(incidents)
	if err := tbl.Err(); err != nil {
		return m, fmt.Errorf("build table: %w", err)
	}

	var charts []chart.Chart
	for _, p := range passes(opts) {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		start := time.Now()
		c, err := p.run(tbl)
		if err != nil {
			logger.Warn("report pass skipped", "pass", p.name, "error", err)
			m.Skipped[p.name] = err.Error()
			continue
		}
		file := p.name + ".html"
		if err := c.WriteFile(filepath.Join(opts.OutDir, file)); err != nil {
			return m, err
		}
		charts = append(charts, c)
		m.Charts = append(m.Charts, file)
		logger.Info("report pass complete", "pass", p.name, "file", file, "duration", time.Since(start))
	}

	if len(charts) > 0 {
		if err := chart.WriteTabs(filepath.Join(opts.OutDir, IndexFile), "SF Fire Department calls", charts); err != nil {
			return m, err
		}
	}

	sheets, err := summarySheets(tbl, logger)
	if err != nil {
		return m, err
	}
	if err := xlsx.WriteWorkbook(filepath.Join(opts.OutDir, WorkbookFile), sheets); err != nil {
		return m, err
	}
	m.Workbook = WorkbookFile

	if err := writeManifest(filepath.Join(opts.OutDir, ManifestFile), m); err != nil {
		return m, err
	}
	return m, nil
}

func writeManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

var errNoBoundaries = errors.New("no neighborhood boundaries configured")

func passes(opts Options) []pass {
	medical := func(t *analysis.Table) *analysis.Table {
		return t.FilterCallTypes("Medical Incident").FilterYears(opts.FromYear, opts.ToYear)
	}
	label := domain.FormatLabel

	return []pass{
		{"on_scene_map", func(t *analysis.Table) (chart.Chart, error) {
			return neighborhoodMap(t, opts.Boundaries, analysis.ColOnSceneTime)
		}},
		{"response_map", func(t *analysis.Table) (chart.Chart, error) {
			return neighborhoodMap(t, opts.Boundaries, analysis.ColResponseTime)
		}},
		{"split_time", func(t *analysis.Table) (chart.Chart, error) {
			p, err := t.SplitTimeByYear()
			if err != nil {
				return chart.Chart{}, err
			}
			series := make([]string, len(p.Columns))
			values := make([][]float64, len(p.Columns))
			for j, c := range p.Columns {
				series[j] = label(c)
				values[j] = p.Column(c)
			}
			return chart.StackedBar("Average on-scene time per year", p.Rows, series, values)
		}},
		{"neighborhood_lines", func(t *analysis.Table) (chart.Chart, error) {
			fire := t.FilterCallTypes(analysis.FireCallTypes...)
			p, err := fire.PivotMean(analysis.ColYear, analysis.ColNeighborhood, analysis.ColResponseTime)
			if err != nil {
				return chart.Chart{}, err
			}
			busiest, err := busiest(fire, analysis.ColNeighborhood, opts.LineCategories)
			if err != nil {
				return chart.Chart{}, err
			}
			return chart.LineByCategory(label(analysis.ColResponseTime), "Year", label(analysis.ColResponseTime), p, busiest)
		}},
		{"calendar", func(t *analysis.Table) (chart.Chart, error) {
			days, err := medical(t).DailyMean(analysis.ColResponseTime)
			if err != nil {
				return chart.Chart{}, err
			}
			return chart.Calendar(label(analysis.ColResponseTime), "minutes", days)
		}},
		{"weekday_counts", func(t *analysis.Table) (chart.Chart, error) {
			return countBar(t.DropDuplicateIncidents(), analysis.ColWeekday, "Incidents per weekday")
		}},
		{"neighborhood_counts", func(t *analysis.Table) (chart.Chart, error) {
			return countBar(t.DropDuplicateIncidents(), analysis.ColNeighborhood, "Incidents per neighborhood")
		}},
		{"battalion_means", func(t *analysis.Table) (chart.Chart, error) {
			g, err := t.MeanBy(analysis.ColOnSceneTime, analysis.ColBattalion)
			if err != nil {
				return chart.Chart{}, err
			}
			return chart.Bar("Mean on-scene time per battalion", "Minutes", g.Labels, g.Values)
		}},
		{"on_scene_histogram", func(t *analysis.Table) (chart.Chart, error) {
			h, err := t.Histogram(analysis.ColOnSceneTime, opts.Bins)
			if err != nil {
				return chart.Chart{}, err
			}
			return chart.Histogram(label(analysis.ColOnSceneTime), "minutes", h)
		}},
		{"medical_boxplot", func(t *analysis.Table) (chart.Chart, error) {
			boxes, err := medical(t).BoxStats(analysis.ColResponseTime, analysis.ColNeighborhood)
			if err != nil {
				return chart.Chart{}, err
			}
			return chart.BoxPlot("Medical incident response time", label(analysis.ColNeighborhood), label(analysis.ColResponseTime), boxes)
		}},
	}
}

func neighborhoodMap(t *analysis.Table, b *geojson.Boundaries, column string) (chart.Chart, error) {
	if b == nil {
		return chart.Chart{}, errNoBoundaries
	}
	g, err := t.MeanBy(column, analysis.ColNeighborhood)
	if err != nil {
		return chart.Chart{}, err
	}
	if len(g.Labels) == 0 {
		return chart.Chart{}, chart.ErrNoData
	}
	regions := b.Regions()
	areas := make([]chart.Area, len(regions))
	for i, r := range regions {
		areas[i] = chart.Area{Name: r.Name, Geometry: r.Geometry}
	}
	return chart.Choropleth(domain.FormatLabel(column), areas, g.Map(), chart.ChoroplethOptions{Label: "minutes"})
}

func countBar(t *analysis.Table, key, title string) (chart.Chart, error) {
	g, err := t.CountBy(key)
	if err != nil {
		return chart.Chart{}, err
	}
	return chart.Bar(title, "Incidents", g.Labels, g.Values)
}

// busiest returns the n keys with the most rows, most first.
func busiest(t *analysis.Table, key string, n int) ([]string, error) {
	g, err := t.CountBy(key)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(g.Labels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return g.Counts[idx[a]] > g.Counts[idx[b]] })
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = g.Labels[idx[i]]
	}
	return out, nil
}
