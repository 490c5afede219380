package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Sample returns size distinct row indices out of n, drawn without
// replacement. When size >= n every index is returned in order.
func Sample(n, size int, seed uint64) []int {
	if size >= n {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	return newRand(seed).Perm(n)[:size]
}

// TrainTestSplit shuffles 0..n-1 and holds out ceil(n*testFrac) indices.
func TrainTestSplit(n int, testFrac float64, seed uint64) (train, test []int) {
	perm := newRand(seed).Perm(n)
	k := int(math.Ceil(float64(n) * testFrac))
	if k > n {
		k = n
	}
	return perm[k:], perm[:k]
}

// Rows copies the selected rows of x into a new matrix. It returns nil when
// idx is empty.
func Rows(x mat.Matrix, idx []int) *mat.Dense {
	if len(idx) == 0 {
		return nil
	}
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for r, i := range idx {
		for j := 0; j < c; j++ {
			out.Set(r, j, x.At(i, j))
		}
	}
	return out
}

// Pick returns y at idx.
func Pick(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for r, i := range idx {
		out[r] = y[i]
	}
	return out
}

// Columns copies the selected columns of x into a new matrix. It returns nil
// when cols is empty.
func Columns(x mat.Matrix, cols []int) *mat.Dense {
	if len(cols) == 0 {
		return nil
	}
	r, _ := x.Dims()
	out := mat.NewDense(r, len(cols), nil)
	for i := 0; i < r; i++ {
		for k, j := range cols {
			out.Set(i, k, x.At(i, j))
		}
	}
	return out
}

// KFold splits 0..n-1 into k contiguous folds and returns, per fold, the
// training and validation indices.
func KFold(n, k int) (train, valid [][]int) {
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		var tr, va []int
		for i := 0; i < n; i++ {
			if i >= start && i < start+size {
				va = append(va, i)
			} else {
				tr = append(tr, i)
			}
		}
		train = append(train, tr)
		valid = append(valid, va)
		start += size
	}
	return train, valid
}
