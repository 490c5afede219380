// Package model fits simple regressors to cleaned incidents: a one-hot
// design matrix, ordinary least squares, recursive feature elimination,
// random forests and extra trees, grid search and PCA.
package model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

// Design is a feature matrix built from incidents. Rows maps each matrix row
// back to its incident index.
type Design struct {
	X        *mat.Dense
	Features []string
	Rows     []int
}

// DesignMatrix encodes numeric columns as-is followed by one dummy column per
// category of each categorical column, named "<column>_<value>". Rows missing
// a numeric value are left out; an empty category encodes as all zeros.
func DesignMatrix(incidents []domain.Incident, categorical, numeric []string) (*Design, error) {
	for _, c := range categorical {
		if _, err := categoryOf(domain.Incident{}, c); err != nil {
			return nil, err
		}
	}

	d := &Design{}
	numRows := make([][]float64, 0, len(incidents))
	for i, inc := range incidents {
		row := make([]float64, len(numeric))
		ok := true
		for j, c := range numeric {
			v, present, err := numberOf(inc, c)
			if err != nil {
				return nil, err
			}
			if !present {
				ok = false
				break
			}
			row[j] = v
		}
		if ok {
			d.Rows = append(d.Rows, i)
			numRows = append(numRows, row)
		}
	}
	if len(d.Rows) == 0 {
		return nil, fmt.Errorf("model: no complete rows among %d incidents", len(incidents))
	}

	d.Features = append(d.Features, numeric...)
	type dummy struct {
		column string
		levels map[string]int
	}
	dummies := make([]dummy, len(categorical))
	for k, c := range categorical {
		seen := make(map[string]bool)
		for _, i := range d.Rows {
			v, _ := categoryOf(incidents[i], c)
			if v != "" {
				seen[v] = true
			}
		}
		levels := make([]string, 0, len(seen))
		for v := range seen {
			levels = append(levels, v)
		}
		sort.Strings(levels)
		dummies[k] = dummy{column: c, levels: make(map[string]int, len(levels))}
		for _, v := range levels {
			dummies[k].levels[v] = len(d.Features)
			d.Features = append(d.Features, c+"_"+v)
		}
	}

	d.X = mat.NewDense(len(d.Rows), len(d.Features), nil)
	for r, i := range d.Rows {
		for j, v := range numRows[r] {
			d.X.Set(r, j, v)
		}
		for _, dm := range dummies {
			v, _ := categoryOf(incidents[i], dm.column)
			if col, ok := dm.levels[v]; ok {
				d.X.Set(r, col, 1)
			}
		}
	}
	return d, nil
}

// Target returns column for the design's rows.
func (d *Design) Target(incidents []domain.Incident, column string) ([]float64, error) {
	y := make([]float64, len(d.Rows))
	for r, i := range d.Rows {
		v, ok, err := numberOf(incidents[i], column)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("model: target %s missing for incident %s", column, incidents[i].ID)
		}
		y[r] = v
	}
	return y, nil
}

func categoryOf(inc domain.Incident, column string) (string, error) {
	switch column {
	case "neighborhood":
		return inc.Neighborhood, nil
	case "period_of_day":
		return inc.PeriodOfDay, nil
	case "weekday":
		return inc.Weekday, nil
	case "call_type":
		return inc.CallType, nil
	case "call_type_group":
		return inc.CallTypeGroup, nil
	case "battalion":
		return inc.Battalion, nil
	case "station_area":
		return inc.StationArea, nil
	case "unit_type":
		return inc.UnitType, nil
	}
	return "", fmt.Errorf("model: unsupported categorical column %q", column)
}

func numberOf(inc domain.Incident, column string) (float64, bool, error) {
	opt := func(p *float64) (float64, bool, error) {
		if p == nil {
			return 0, false, nil
		}
		return *p, true, nil
	}
	switch column {
	case "year":
		return float64(inc.Year), true, nil
	case "month":
		return float64(inc.Month), true, nil
	case "hour":
		return float64(inc.Hour), true, nil
	case "number_of_alarms":
		return float64(inc.Alarms), true, nil
	case "unit_sequence":
		return float64(inc.UnitSequence), true, nil
	case "on_scene_time":
		return inc.OnSceneTime, true, nil
	case "response_time":
		return opt(inc.ResponseTime)
	case "transport_time":
		return opt(inc.TransportTime)
	case "intake_time":
		return opt(inc.IntakeTime)
	case "queue_time":
		return opt(inc.QueueTime)
	case "travel_time":
		return opt(inc.TravelTime)
	}
	return 0, false, fmt.Errorf("model: unsupported numeric column %q", column)
}

// StandardScaler centers each column and scales it to unit population
// variance. Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler learns per-column means and standard deviations.
func FitScaler(x mat.Matrix) StandardScaler {
	r, c := x.Dims()
	s := StandardScaler{Mean: make([]float64, c), Scale: make([]float64, c)}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Mean[j], s.Scale[j] = mean, std
	}
	return s
}

// Transform returns a scaled copy of x.
func (s StandardScaler) Transform(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, (x.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return out
}
