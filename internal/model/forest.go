package model

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// RandomForest is an ensemble of regression trees. With ExtraTrees set, trees
// are grown on the full sample with random thresholds instead of bootstrap
// samples with exhaustive splits.
type RandomForest struct {
	Trees           int // default 100
	MaxDepth        int // 0 grows until leaves are pure
	MinSamplesSplit int // default 2
	MinSamplesLeaf  int // default 1
	MaxFeatures     int // 0 considers every feature
	Seed            uint64
	ExtraTrees      bool
	// Workers bounds concurrent tree fitting. Zero uses GOMAXPROCS.
	Workers int

	trees      []*tree
	importance []float64
}

// Name identifies the ensemble in reports.
func (f *RandomForest) Name() string {
	if f.ExtraTrees {
		return "Extra Trees"
	}
	return "Random Forest"
}

// Fit grows the trees concurrently.
func (f *RandomForest) Fit(x mat.Matrix, y []float64) error {
	return f.FitContext(context.Background(), x, y)
}

// FitContext is Fit with cancellation between trees.
func (f *RandomForest) FitContext(ctx context.Context, x mat.Matrix, y []float64) error {
	r, c := x.Dims()
	if r != len(y) {
		return fmt.Errorf("model: %d rows but %d targets", r, len(y))
	}
	if r == 0 {
		return errors.New("model: empty design matrix")
	}

	cols := make([][]float64, c)
	for j := range cols {
		cols[j] = mat.Col(nil, j, x)
	}
	p := f.params()
	n := f.Trees
	if n <= 0 {
		n = 100
	}

	trees := make([]*tree, n)
	g, ctx := errgroup.WithContext(ctx)
	workers := f.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)
	for k := 0; k < n; k++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := newRand(f.Seed + uint64(k))
			idx := make([]int, r)
			for i := range idx {
				if f.ExtraTrees {
					idx[i] = i
				} else {
					idx[i] = rng.IntN(r)
				}
			}
			trees[k] = growTree(cols, y, idx, p, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("model: fit %s: %w", f.Name(), err)
	}

	f.trees = trees
	f.importance = averageImportance(trees, c)
	return nil
}

func (f *RandomForest) params() treeParams {
	p := treeParams{
		maxDepth:        f.MaxDepth,
		minSamplesSplit: f.MinSamplesSplit,
		minSamplesLeaf:  f.MinSamplesLeaf,
		maxFeatures:     f.MaxFeatures,
		randomSplits:    f.ExtraTrees,
	}
	if p.minSamplesSplit < 2 {
		p.minSamplesSplit = 2
	}
	if p.minSamplesLeaf < 1 {
		p.minSamplesLeaf = 1
	}
	return p
}

// averageImportance normalizes each tree's gains, averages them over the
// forest and renormalizes so the result sums to 1 when any split was made.
func averageImportance(trees []*tree, c int) []float64 {
	out := make([]float64, c)
	for _, t := range trees {
		var total float64
		for _, v := range t.importance {
			total += v
		}
		if total == 0 {
			continue
		}
		for j, v := range t.importance {
			out[j] += v / total
		}
	}
	var total float64
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// Predict averages the trees' predictions.
func (f *RandomForest) Predict(x mat.Matrix) []float64 {
	r, _ := x.Dims()
	out := make([]float64, r)
	if len(f.trees) == 0 {
		return out
	}
	for i := 0; i < r; i++ {
		row := func(j int) float64 { return x.At(i, j) }
		var s float64
		for _, t := range f.trees {
			s += t.predict(row)
		}
		out[i] = s / float64(len(f.trees))
	}
	return out
}

// Importances returns the impurity-based feature importances of the last fit.
func (f *RandomForest) Importances() []float64 {
	return append([]float64(nil), f.importance...)
}
