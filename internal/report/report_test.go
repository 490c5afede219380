package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/geojson"
	"github.com/couchcryptid/sffd-incident-etl/internal/analysis"
	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

const boundariesJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"nhood":"Mission"},"geometry":{"type":"Polygon","coordinates":[[[-122.43,37.75],[-122.40,37.75],[-122.40,37.77],[-122.43,37.77],[-122.43,37.75]]]}},
{"type":"Feature","properties":{"nhood":"Marina"},"geometry":{"type":"Polygon","coordinates":[[[-122.45,37.79],[-122.42,37.79],[-122.42,37.81],[-122.45,37.81],[-122.45,37.79]]]}}
]}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(f float64) *float64 { return &f }

func testIncidents() []domain.Incident {
	var out []domain.Incident
	n := 0
	for _, year := range []int{2018, 2019} {
		for _, nhood := range []string{"Mission", "Marina"} {
			for _, callType := range []string{"Medical Incident", "Structure Fire"} {
				for k := 0; k < 3; k++ {
					n++
					received := time.Date(year, time.Month(1+k), 3+n%20, (n*5)%24, 0, 0, 0, time.UTC)
					base := float64(n%7) + 3
					out = append(out, domain.Incident{
						ID:             fmt.Sprintf("id-%d", n),
						IncidentNumber: fmt.Sprintf("inc-%d", n),
						CallType:       callType,
						Neighborhood:   nhood,
						Battalion:      fmt.Sprintf("B0%d", 1+n%3),
						ReceivedAt:     received,
						OnSceneTime:    base + 2,
						ResponseTime:   ptr(base),
						IntakeTime:     ptr(0.5),
						QueueTime:      ptr(1),
						TravelTime:     ptr(base - 1.5),
						Year:           year,
						Month:          int(received.Month()),
						Hour:           received.Hour(),
						Weekday:        domain.WeekdayLabel(received.Weekday()),
						PeriodOfDay:    domain.PeriodOfDay(received.Hour()),
					})
				}
			}
		}
	}
	return out
}

func TestGenerate(t *testing.T) {
	b, err := geojson.Parse([]byte(boundariesJSON), "")
	require.NoError(t, err)

	dir := t.TempDir()
	opts := DefaultOptions(dir)
	opts.Boundaries = b
	opts.Bins = 10

	m, err := Generate(context.Background(), testIncidents(), opts, discardLogger())
	require.NoError(t, err)

	_, err = uuid.Parse(m.RunID)
	assert.NoError(t, err)
	assert.Equal(t, 24, m.Incidents)
	assert.Empty(t, m.Skipped)
	assert.Len(t, m.Charts, 10)
	for _, f := range m.Charts {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, f)
	}

	index, err := os.ReadFile(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	assert.Equal(t, 10, strings.Count(string(index), `type="radio"`))
	assert.Contains(t, string(index), "Mission: ")

	wb, err := excelize.OpenFile(filepath.Join(dir, WorkbookFile))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{
		"neighborhood means", "battalion means", "split time", "weekday counts",
		"box stats", "pairwise t-tests", "anova",
	}, wb.GetSheetList())
	rows, err := wb.GetRows("neighborhood means")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"neighborhood", "on_scene_time", "count"}, rows[0])
	assert.Equal(t, "Marina", rows[1][0])

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	var got Manifest
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, m.RunID, got.RunID)
	assert.Equal(t, WorkbookFile, got.Workbook)
}

func TestGenerate_WithoutBoundaries(t *testing.T) {
	m, err := Generate(context.Background(), testIncidents(), DefaultOptions(t.TempDir()), discardLogger())
	require.NoError(t, err)
	assert.Contains(t, m.Skipped, "on_scene_map")
	assert.Contains(t, m.Skipped, "response_map")
	assert.Len(t, m.Charts, 8)
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, testIncidents(), DefaultOptions(t.TempDir()), discardLogger())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBusiest(t *testing.T) {
	incs := testIncidents()
	incs = append(incs, domain.Incident{ID: "x", Neighborhood: "Marina", ReceivedAt: time.Date(2019, 5, 5, 0, 0, 0, 0, time.UTC)})
	tbl := analysis.NewTable(incs)

	got, err := busiest(tbl, "neighborhood", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Marina"}, got)

	got, err = busiest(tbl, "neighborhood", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Marina", "Mission"}, got)
}
