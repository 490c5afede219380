package model

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Grid lists candidate forest hyperparameters. Empty dimensions keep the
// base forest's value.
type Grid struct {
	MaxDepth        []int
	Trees           []int
	MinSamplesSplit []int
	MinSamplesLeaf  []int
}

// CVResult is the cross-validated score of one parameter combination.
type CVResult struct {
	Params RandomForest
	Score  float64 // mean negative MSE over folds
}

// SearchResult holds every evaluated combination and the best one.
type SearchResult struct {
	Best    RandomForest
	Score   float64
	Results []CVResult
}

// GridSearch evaluates every combination in grid with k-fold cross
// validation and picks the highest mean negative MSE. Ties keep the earlier
// combination.
func GridSearch(ctx context.Context, base RandomForest, grid Grid, x mat.Matrix, y []float64, folds int) (SearchResult, error) {
	r, _ := x.Dims()
	if folds < 2 || folds > r {
		return SearchResult{}, fmt.Errorf("model: grid search needs 2..%d folds, got %d", r, folds)
	}
	trainIdx, validIdx := KFold(r, folds)

	res := SearchResult{Score: math.Inf(-1)}
	for _, cand := range grid.expand(base) {
		var total float64
		for k := range trainIdx {
			if err := ctx.Err(); err != nil {
				return SearchResult{}, err
			}
			f := cand
			if err := f.FitContext(ctx, Rows(x, trainIdx[k]), Pick(y, trainIdx[k])); err != nil {
				return SearchResult{}, err
			}
			total -= MSE(Pick(y, validIdx[k]), f.Predict(Rows(x, validIdx[k])))
		}
		score := total / float64(len(trainIdx))
		res.Results = append(res.Results, CVResult{Params: cand, Score: score})
		if score > res.Score {
			res.Best, res.Score = cand, score
		}
	}
	return res, nil
}

func (g Grid) expand(base RandomForest) []RandomForest {
	or := func(vals []int, def int) []int {
		if len(vals) == 0 {
			return []int{def}
		}
		return vals
	}
	var out []RandomForest
	for _, depth := range or(g.MaxDepth, base.MaxDepth) {
		for _, trees := range or(g.Trees, base.Trees) {
			for _, split := range or(g.MinSamplesSplit, base.MinSamplesSplit) {
				for _, leaf := range or(g.MinSamplesLeaf, base.MinSamplesLeaf) {
					f := base
					f.trees, f.importance = nil, nil
					f.MaxDepth, f.Trees, f.MinSamplesSplit, f.MinSamplesLeaf = depth, trees, split, leaf
					out = append(out, f)
				}
			}
		}
	}
	return out
}
