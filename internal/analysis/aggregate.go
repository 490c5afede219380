package analysis

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

// Grouped holds one statistic per group label.
type Grouped struct {
	Key    string // grouping column
	Value  string // aggregated column
	Labels []string
	Values []float64
	Counts []int
}

// Frame renders the groups as a DataFrame with key, value and count columns.
func (g Grouped) Frame() dataframe.DataFrame {
	return dataframe.New(
		series.New(g.Labels, series.String, g.Key),
		series.New(g.Values, series.Float, g.Value),
		series.New(g.Counts, series.Int, "count"),
	)
}

// Map indexes the values by label.
func (g Grouped) Map() map[string]float64 {
	m := make(map[string]float64, len(g.Labels))
	for i, l := range g.Labels {
		m[l] = g.Values[i]
	}
	return m
}

// Pivot is a rows × columns table of means. Missing cells are NaN.
type Pivot struct {
	RowKey  string
	Rows    []string
	Columns []string
	Cells   [][]float64 // [row][column]
}

// Column returns the values of one column across rows.
func (p Pivot) Column(name string) []float64 {
	for j, c := range p.Columns {
		if c == name {
			out := make([]float64, len(p.Rows))
			for i := range p.Rows {
				out[i] = p.Cells[i][j]
			}
			return out
		}
	}
	return nil
}

// Frame renders the pivot with the row key as the first column.
func (p Pivot) Frame() dataframe.DataFrame {
	cols := []series.Series{series.New(p.Rows, series.String, p.RowKey)}
	for _, c := range p.Columns {
		cols = append(cols, series.New(p.Column(c), series.Float, c))
	}
	return dataframe.New(cols...)
}

// DayMean is the mean of a column over the incidents received on one day.
type DayMean struct {
	Date  time.Time
	Mean  float64
	Count int
}

// MeanBy computes the mean of value per distinct key, skipping rows where
// either is missing. Groups are ordered by key, with weekdays and periods of
// day in calendar order.
func (t *Table) MeanBy(value, key string) (Grouped, error) {
	if err := t.requireColumn(value, key); err != nil {
		return Grouped{}, err
	}
	out := Grouped{Key: key, Value: value}
	for _, g := range t.groups(value, key) {
		out.Labels = append(out.Labels, g.label)
		out.Values = append(out.Values, stat.Mean(g.values, nil))
		out.Counts = append(out.Counts, len(g.values))
	}
	return out, nil
}

// CountBy counts rows per distinct non-empty key.
func (t *Table) CountBy(key string) (Grouped, error) {
	if err := t.requireColumn(key); err != nil {
		return Grouped{}, err
	}
	out := Grouped{Key: key, Value: "count"}
	if t.Len() == 0 {
		return out, nil
	}
	counts := make(map[string]int)
	for _, k := range t.df.Col(key).Records() {
		if k != "" && k != "NaN" {
			counts[k]++
		}
	}
	for _, label := range orderKeys(key, keysOf(counts)) {
		out.Labels = append(out.Labels, label)
		out.Values = append(out.Values, float64(counts[label]))
		out.Counts = append(out.Counts, counts[label])
	}
	return out, nil
}

// PivotMean groups by (row, col) and lays the means out as a table with one
// row per row key and one column per col key.
func (t *Table) PivotMean(row, col, value string) (Pivot, error) {
	if err := t.requireColumn(row, col, value); err != nil {
		return Pivot{}, err
	}
	p := Pivot{RowKey: row}
	if t.Len() == 0 {
		return p, nil
	}

	rows := t.df.Col(row).Records()
	cols := t.df.Col(col).Records()
	vals := t.df.Col(value).Float()

	type cell struct{ r, c string }
	sums := make(map[cell][]float64)
	rowSet := make(map[string]int)
	colSet := make(map[string]int)
	for i := range rows {
		if rows[i] == "" || cols[i] == "" || math.IsNaN(vals[i]) {
			continue
		}
		k := cell{rows[i], cols[i]}
		sums[k] = append(sums[k], vals[i])
		rowSet[rows[i]]++
		colSet[cols[i]]++
	}

	p.Rows = orderKeys(row, keysOf(rowSet))
	p.Columns = orderKeys(col, keysOf(colSet))
	p.Cells = make([][]float64, len(p.Rows))
	for i, r := range p.Rows {
		p.Cells[i] = make([]float64, len(p.Columns))
		for j, c := range p.Columns {
			if xs, ok := sums[cell{r, c}]; ok {
				p.Cells[i][j] = stat.Mean(xs, nil)
			} else {
				p.Cells[i][j] = math.NaN()
			}
		}
	}
	return p, nil
}

// SplitTimeByYear returns the mean intake, queue and travel time per year,
// the three segments of on-scene time.
func (t *Table) SplitTimeByYear() (Pivot, error) {
	segments := []string{ColIntakeTime, ColQueueTime, ColTravelTime}
	byYear := make(map[string][]float64)
	for j, seg := range segments {
		g, err := t.MeanBy(seg, ColYear)
		if err != nil {
			return Pivot{}, err
		}
		for i, year := range g.Labels {
			if _, ok := byYear[year]; !ok {
				byYear[year] = []float64{math.NaN(), math.NaN(), math.NaN()}
			}
			byYear[year][j] = g.Values[i]
		}
	}

	p := Pivot{RowKey: ColYear, Columns: segments}
	p.Rows = orderKeys(ColYear, keysOf(byYear))
	for _, y := range p.Rows {
		p.Cells = append(p.Cells, byYear[y])
	}
	return p, nil
}

// DailyMean averages value per received date, in date order.
func (t *Table) DailyMean(value string) ([]DayMean, error) {
	g, err := t.MeanBy(value, ColDate)
	if err != nil {
		return nil, err
	}
	out := make([]DayMean, 0, len(g.Labels))
	for i, label := range g.Labels {
		d, err := time.Parse(dateLayout, label)
		if err != nil {
			continue
		}
		out = append(out, DayMean{Date: d, Mean: g.Values[i], Count: g.Counts[i]})
	}
	return out, nil
}

type group struct {
	label  string
	values []float64
}

// groups partitions the finite values of value by key using the DataFrame's
// GroupBy. Empty keys and groups without values are skipped.
func (t *Table) groups(value, key string) []group {
	if t.Len() == 0 {
		return nil
	}
	df := t.df.Select([]string{key, value})
	if df.Err != nil {
		return nil
	}

	byLabel := make(map[string][]float64)
	for _, sub := range df.GroupBy(key).GetGroups() {
		if sub.Nrow() == 0 {
			continue
		}
		label := sub.Col(key).Elem(0).String()
		if label == "" || label == "NaN" {
			continue
		}
		if xs := finite(sub.Col(value).Float()); len(xs) > 0 {
			byLabel[label] = append(byLabel[label], xs...)
		}
	}

	labels := orderKeys(key, keysOf(byLabel))
	out := make([]group, len(labels))
	for i, l := range labels {
		out[i] = group{label: l, values: byLabel[l]}
	}
	return out
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// orderKeys sorts group labels: weekday and period columns in calendar
// order, integer-valued labels numerically, everything else lexically.
func orderKeys(column string, keys []string) []string {
	switch column {
	case ColWeekday:
		return byReference(keys, domain.Weekdays())
	case ColPeriodOfDay:
		return byReference(keys, domain.PeriodsOfDay())
	}

	numeric := true
	for _, k := range keys {
		if _, err := strconv.Atoi(k); err != nil {
			numeric = false
			break
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if numeric {
			a, _ := strconv.Atoi(keys[i])
			b, _ := strconv.Atoi(keys[j])
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

// byReference orders keys by their position in ref; unknown keys follow in
// lexical order.
func byReference(keys, ref []string) []string {
	pos := make(map[string]int, len(ref))
	for i, r := range ref {
		pos[r] = i
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, iok := pos[keys[i]]
		pj, jok := pos[keys[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		}
		return keys[i] < keys[j]
	})
	return keys
}
