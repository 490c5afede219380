// Package analysis aggregates cleaned incidents: group means, pivots, daily
// series, histograms, box statistics and group comparisons.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

// Column names of the analysis table.
const (
	ColID             = "id"
	ColIncidentNumber = "incident_number"
	ColCallType       = "call_type"
	ColNeighborhood   = "neighborhood"
	ColBattalion      = "battalion"
	ColStationArea    = "station_area"
	ColUnitType       = "unit_type"
	ColPeriodOfDay    = "period_of_day"
	ColWeekday        = "weekday"
	ColDate           = "date"
	ColYear           = "year"
	ColMonth          = "month"
	ColHour           = "hour"
	ColOnSceneTime    = "on_scene_time"
	ColResponseTime   = "response_time"
	ColTransportTime  = "transport_time"
	ColIntakeTime     = "intake_time"
	ColQueueTime      = "queue_time"
	ColTravelTime     = "travel_time"
	ColLatitude       = "latitude"
	ColLongitude      = "longitude"
)

const dateLayout = "2006-01-02"

// FireCallTypes are the call types used for the neighborhood line plots.
var FireCallTypes = []string{
	"Outside Fire",
	"Structure Fire",
	"Vehicle Fire",
	"Explosion",
	"Train / Rail Fire",
	"Structure Fire / Smoke in Building",
	"Electrical Hazard",
	"Confined Space / Structure Collapse",
	"Medical Incident",
	"Traffic Collision",
	"Elevator / Escalator Rescue",
}

// Table is an immutable view over cleaned incidents backed by a gota
// DataFrame. Filters return new tables.
type Table struct {
	df dataframe.DataFrame
}

// NewTable builds a table from cleaned incidents. Absent durations become NaN.
func NewTable(incidents []domain.Incident) *Table {
	n := len(incidents)
	str := func(f func(domain.Incident) string) []string {
		out := make([]string, n)
		for i, inc := range incidents {
			out[i] = f(inc)
		}
		return out
	}
	ints := func(f func(domain.Incident) int) []int {
		out := make([]int, n)
		for i, inc := range incidents {
			out[i] = f(inc)
		}
		return out
	}
	floats := func(f func(domain.Incident) float64) []float64 {
		out := make([]float64, n)
		for i, inc := range incidents {
			out[i] = f(inc)
		}
		return out
	}
	coord := func(f func(domain.Incident) float64) []float64 {
		return floats(func(inc domain.Incident) float64 {
			if !inc.HasCoords() {
				return math.NaN()
			}
			return f(inc)
		})
	}

	return &Table{df: dataframe.New(
		series.New(str(func(i domain.Incident) string { return i.ID }), series.String, ColID),
		series.New(str(func(i domain.Incident) string { return i.IncidentNumber }), series.String, ColIncidentNumber),
		series.New(str(func(i domain.Incident) string { return i.CallType }), series.String, ColCallType),
		series.New(str(func(i domain.Incident) string { return i.Neighborhood }), series.String, ColNeighborhood),
		series.New(str(func(i domain.Incident) string { return i.Battalion }), series.String, ColBattalion),
		series.New(str(func(i domain.Incident) string { return i.StationArea }), series.String, ColStationArea),
		series.New(str(func(i domain.Incident) string { return i.UnitType }), series.String, ColUnitType),
		series.New(str(func(i domain.Incident) string { return i.PeriodOfDay }), series.String, ColPeriodOfDay),
		series.New(str(func(i domain.Incident) string { return i.Weekday }), series.String, ColWeekday),
		series.New(str(func(i domain.Incident) string { return i.ReceivedAt.Format(dateLayout) }), series.String, ColDate),
		series.New(ints(func(i domain.Incident) int { return i.Year }), series.Int, ColYear),
		series.New(ints(func(i domain.Incident) int { return i.Month }), series.Int, ColMonth),
		series.New(ints(func(i domain.Incident) int { return i.Hour }), series.Int, ColHour),
		series.New(floats(func(i domain.Incident) float64 { return i.OnSceneTime }), series.Float, ColOnSceneTime),
		series.New(floats(func(i domain.Incident) float64 { return orNaN(i.ResponseTime) }), series.Float, ColResponseTime),
		series.New(floats(func(i domain.Incident) float64 { return orNaN(i.TransportTime) }), series.Float, ColTransportTime),
		series.New(floats(func(i domain.Incident) float64 { return orNaN(i.IntakeTime) }), series.Float, ColIntakeTime),
		series.New(floats(func(i domain.Incident) float64 { return orNaN(i.QueueTime) }), series.Float, ColQueueTime),
		series.New(floats(func(i domain.Incident) float64 { return orNaN(i.TravelTime) }), series.Float, ColTravelTime),
		series.New(coord(func(i domain.Incident) float64 { return i.Latitude }), series.Float, ColLatitude),
		series.New(coord(func(i domain.Incident) float64 { return i.Longitude }), series.Float, ColLongitude),
	)}
}

// Frame exposes the underlying DataFrame.
func (t *Table) Frame() dataframe.DataFrame { return t.df }

// Len returns the number of rows.
func (t *Table) Len() int { return t.df.Nrow() }

// Err reports a failure carried by the underlying DataFrame.
func (t *Table) Err() error { return t.df.Err }

// FilterCallTypes keeps rows whose call type is one of types.
func (t *Table) FilterCallTypes(types ...string) *Table {
	if t.Len() == 0 {
		return t
	}
	return &Table{df: t.df.Filter(dataframe.F{Colname: ColCallType, Comparator: series.In, Comparando: types})}
}

// FilterYears keeps rows received in [start, end).
func (t *Table) FilterYears(start, end int) *Table {
	if t.Len() == 0 {
		return t
	}
	df := t.df.
		Filter(dataframe.F{Colname: ColYear, Comparator: series.GreaterEq, Comparando: start}).
		Filter(dataframe.F{Colname: ColYear, Comparator: series.Less, Comparando: end})
	return &Table{df: df}
}

// DropDuplicateIncidents keeps the first row per incident number, so a call
// answered by several units is counted once.
func (t *Table) DropDuplicateIncidents() *Table {
	if t.Len() == 0 {
		return t
	}
	seen := make(map[string]bool, t.Len())
	keep := make([]int, 0, t.Len())
	for i, n := range t.df.Col(ColIncidentNumber).Records() {
		key := n
		if key == "" {
			key = "row:" + t.df.Col(ColID).Elem(i).String()
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		keep = append(keep, i)
	}
	return &Table{df: t.df.Subset(keep)}
}

// Values returns the non-missing values of a numeric column.
func (t *Table) Values(column string) ([]float64, error) {
	if err := t.requireColumn(column); err != nil {
		return nil, err
	}
	return finite(t.df.Col(column).Float()), nil
}

// Dates returns the distinct received dates in ascending order.
func (t *Table) Dates() []time.Time {
	if t.Len() == 0 {
		return nil
	}
	set := make(map[string]bool)
	for _, d := range t.df.Col(ColDate).Records() {
		set[d] = true
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]time.Time, 0, len(keys))
	for _, k := range keys {
		if d, err := time.Parse(dateLayout, k); err == nil {
			out = append(out, d)
		}
	}
	return out
}

func (t *Table) requireColumn(names ...string) error {
	have := make(map[string]bool, t.df.Ncol())
	for _, n := range t.df.Names() {
		have[n] = true
	}
	for _, n := range names {
		if !have[n] {
			return fmt.Errorf("analysis: unknown column %q", n)
		}
	}
	return nil
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}
