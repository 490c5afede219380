package model

import (
	"fmt"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Method names used in importance tables.
const (
	MethodRandomForest = "Random Forest"
	MethodExtraTrees   = "Tree-based"
	MethodRFE          = "Recursive"
)

// ImportanceTable collects per-feature scores from several selection
// methods. Lower is better for ascending methods such as RFE rankings.
type ImportanceTable struct {
	Features  []string
	Methods   []string
	Scores    [][]float64 // [method][feature]
	ascending map[string]bool
}

// NewImportanceTable starts an empty table over features.
func NewImportanceTable(features []string) *ImportanceTable {
	return &ImportanceTable{Features: features, ascending: make(map[string]bool)}
}

// Add appends one method's scores.
func (t *ImportanceTable) Add(method string, scores []float64, ascending bool) error {
	if len(scores) != len(t.Features) {
		return fmt.Errorf("model: %s has %d scores for %d features", method, len(scores), len(t.Features))
	}
	t.Methods = append(t.Methods, method)
	t.Scores = append(t.Scores, scores)
	t.ascending[method] = ascending
	return nil
}

// TopN returns the indices of the n best features for method, best first.
func (t *ImportanceTable) TopN(method string, n int) ([]int, error) {
	m := -1
	for i, name := range t.Methods {
		if name == method {
			m = i
		}
	}
	if m < 0 {
		return nil, fmt.Errorf("model: unknown method %q", method)
	}
	scores := t.Scores[m]
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	asc := t.ascending[method]
	sort.SliceStable(idx, func(a, b int) bool {
		if asc {
			return scores[idx[a]] < scores[idx[b]]
		}
		return scores[idx[a]] > scores[idx[b]]
	})
	if n > len(idx) {
		n = len(idx)
	}
	return idx[:n], nil
}

// RankScores gives each method's top n features the scores n..1 and every
// other feature 0. The result lists, per feature that made any top n, its
// score under each method, in first-seen order.
func (t *ImportanceTable) RankScores(n int) (features []string, scores [][]float64, err error) {
	pos := make(map[int]int)
	var order []int
	byMethod := make([]map[int]float64, len(t.Methods))
	for m, method := range t.Methods {
		top, err := t.TopN(method, n)
		if err != nil {
			return nil, nil, err
		}
		byMethod[m] = make(map[int]float64, len(top))
		for rank, j := range top {
			byMethod[m][j] = float64(n - rank)
			if _, ok := pos[j]; !ok {
				pos[j] = len(order)
				order = append(order, j)
			}
		}
	}
	scores = make([][]float64, len(t.Methods))
	for m := range t.Methods {
		scores[m] = make([]float64, len(order))
		for k, j := range order {
			scores[m][k] = byMethod[m][j]
		}
	}
	for _, j := range order {
		features = append(features, t.Features[j])
	}
	return features, scores, nil
}

// Frame renders the table with one row per feature.
func (t *ImportanceTable) Frame() dataframe.DataFrame {
	cols := []series.Series{series.New(t.Features, series.String, "feature")}
	for m, method := range t.Methods {
		cols = append(cols, series.New(t.Scores[m], series.Float, method))
	}
	return dataframe.New(cols...)
}
