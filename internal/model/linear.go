package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Regressor is a model that maps feature rows to a continuous target.
type Regressor interface {
	Fit(x mat.Matrix, y []float64) error
	Predict(x mat.Matrix) []float64
}

// DefaultRidge is the relative ridge penalty added to the normal equations so
// that collinear dummy columns still have a unique solution.
const DefaultRidge = 1e-10

// LinearRegression is ordinary least squares with an intercept.
type LinearRegression struct {
	// Ridge is the penalty relative to the mean feature variance. Zero uses
	// DefaultRidge.
	Ridge float64

	Coef      []float64
	Intercept float64
}

// Fit solves the centered normal equations (XᵀX + λI)β = Xᵀy.
func (m *LinearRegression) Fit(x mat.Matrix, y []float64) error {
	r, c := x.Dims()
	if r != len(y) {
		return fmt.Errorf("model: %d rows but %d targets", r, len(y))
	}
	if r == 0 || c == 0 {
		return errors.New("model: empty design matrix")
	}

	xm := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		xm[j] = stat.Mean(col, nil)
	}
	ym := stat.Mean(y, nil)

	xc := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			xc.Set(i, j, x.At(i, j)-xm[j])
		}
	}
	yc := mat.NewVecDense(r, nil)
	for i, v := range y {
		yc.SetVec(i, v-ym)
	}

	var a mat.Dense
	a.Mul(xc.T(), xc)
	ridge := m.Ridge
	if ridge == 0 {
		ridge = DefaultRidge
	}
	lambda := ridge * max(mat.Trace(&a)/float64(c), 1)
	for j := 0; j < c; j++ {
		a.Set(j, j, a.At(j, j)+lambda)
	}
	var b mat.VecDense
	b.MulVec(xc.T(), yc)

	var beta mat.VecDense
	if err := beta.SolveVec(&a, &b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return fmt.Errorf("model: solve normal equations: %w", err)
		}
	}

	m.Coef = make([]float64, c)
	m.Intercept = ym
	for j := range m.Coef {
		m.Coef[j] = beta.AtVec(j)
		m.Intercept -= m.Coef[j] * xm[j]
	}
	return nil
}

// Predict returns Xβ + intercept.
func (m *LinearRegression) Predict(x mat.Matrix) []float64 {
	r, c := x.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		v := m.Intercept
		for j := 0; j < c && j < len(m.Coef); j++ {
			v += m.Coef[j] * x.At(i, j)
		}
		out[i] = v
	}
	return out
}

// MSE is the mean squared error of pred against y.
func MSE(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var s float64
	for i := range y {
		d := y[i] - pred[i]
		s += d * d
	}
	return s / float64(len(y))
}

// R2 is the coefficient of determination. A constant y scores 0 unless the
// predictions are exact.
func R2(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	mean := stat.Mean(y, nil)
	var res, tot float64
	for i := range y {
		res += (y[i] - pred[i]) * (y[i] - pred[i])
		tot += (y[i] - mean) * (y[i] - mean)
	}
	if tot == 0 {
		if res == 0 {
			return 1
		}
		return 0
	}
	return 1 - res/tot
}
