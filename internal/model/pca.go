package model

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCAResult holds the leading principal components of a matrix.
type PCAResult struct {
	// Variances are the explained variances of the kept components, largest
	// first.
	Variances []float64
	// Ratios are Variances as fractions of the total variance.
	Ratios []float64
	// Components has one column per kept component.
	Components *mat.Dense
	// Projection is the centered data expressed in the kept components.
	Projection *mat.Dense
}

// PCA keeps k components; k <= 0 keeps all of them.
func PCA(x mat.Matrix, k int) (PCAResult, error) {
	r, c := x.Dims()
	if r < 2 {
		return PCAResult{}, errors.New("model: pca needs at least two rows")
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return PCAResult{}, errors.New("model: pca decomposition failed")
	}
	vars := pc.VarsTo(nil)
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	_, n := vecs.Dims()
	if k <= 0 || k > n {
		k = n
	}
	total := floats.Sum(vars)

	res := PCAResult{
		Variances:  append([]float64(nil), vars[:k]...),
		Ratios:     make([]float64, k),
		Components: mat.DenseCopyOf(vecs.Slice(0, c, 0, k)),
	}
	for i, v := range res.Variances {
		if total > 0 {
			res.Ratios[i] = v / total
		}
	}

	centered := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		m := stat.Mean(col, nil)
		for i := 0; i < r; i++ {
			centered.Set(i, j, col[i]-m)
		}
	}
	res.Projection = mat.NewDense(r, k, nil)
	res.Projection.Mul(centered, res.Components)
	return res, nil
}
