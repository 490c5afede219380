package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RFEResult reports which features survived elimination. Ranking is 1 for
// selected features and grows with how early a feature was removed.
type RFEResult struct {
	Support []bool
	Ranking []int
	Coef    []float64 // coefficients of the final fit, in selected-feature order
}

// Selected returns the indices of the surviving features.
func (r RFEResult) Selected() []int {
	var out []int
	for j, ok := range r.Support {
		if ok {
			out = append(out, j)
		}
	}
	return out
}

// RFE repeatedly fits a linear regression and drops the feature with the
// smallest absolute coefficient until n features remain. Asking for more
// features than x has keeps all of them.
func RFE(x mat.Matrix, y []float64, n int) (RFEResult, error) {
	_, c := x.Dims()
	if n < 1 {
		return RFEResult{}, fmt.Errorf("model: rfe wants at least 1 feature, got %d", n)
	}
	n = min(n, c)

	remaining := make([]int, c)
	for j := range remaining {
		remaining[j] = j
	}
	var eliminated []int
	var lr LinearRegression
	for {
		if err := lr.Fit(Columns(x, remaining), y); err != nil {
			return RFEResult{}, fmt.Errorf("model: rfe with %d features: %w", len(remaining), err)
		}
		if len(remaining) == n {
			break
		}
		worst := 0
		for k := range lr.Coef {
			if math.Abs(lr.Coef[k]) < math.Abs(lr.Coef[worst]) {
				worst = k
			}
		}
		eliminated = append(eliminated, remaining[worst])
		remaining = append(remaining[:worst], remaining[worst+1:]...)
	}

	res := RFEResult{Support: make([]bool, c), Ranking: make([]int, c), Coef: lr.Coef}
	for _, j := range remaining {
		res.Support[j] = true
		res.Ranking[j] = 1
	}
	for i, j := range eliminated {
		res.Ranking[j] = len(eliminated) - i + 1
	}
	return res, nil
}
