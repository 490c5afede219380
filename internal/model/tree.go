package model

import (
	"math"
	"math/rand/v2"
	"sort"
)

type node struct {
	feature     int
	threshold   float64
	left, right int
	value       float64
	leaf        bool
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	randomSplits    bool
}

// tree is a CART regression tree grown on squared error.
type tree struct {
	nodes      []node
	importance []float64 // total squared-error reduction per feature
}

// cols is the training matrix in column-major order: cols[feature][row].
func growTree(cols [][]float64, y []float64, idx []int, p treeParams, rng *rand.Rand) *tree {
	t := &tree{importance: make([]float64, len(cols))}
	t.grow(cols, y, idx, 0, p, rng)
	return t
}

func (t *tree) grow(cols [][]float64, y []float64, idx []int, depth int, p treeParams, rng *rand.Rand) int {
	sum, sse := sumSSE(y, idx)
	id := len(t.nodes)
	t.nodes = append(t.nodes, node{leaf: true, value: sum / float64(len(idx))})

	if (p.maxDepth > 0 && depth >= p.maxDepth) || len(idx) < p.minSamplesSplit || len(idx) < 2*p.minSamplesLeaf || sse <= 0 {
		return id
	}

	s, ok := t.bestSplit(cols, y, idx, sse, p, rng)
	if !ok {
		return id
	}
	var left, right []int
	for _, i := range idx {
		if cols[s.feature][i] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	t.importance[s.feature] += s.gain

	l := t.grow(cols, y, left, depth+1, p, rng)
	r := t.grow(cols, y, right, depth+1, p, rng)
	t.nodes[id] = node{feature: s.feature, threshold: s.threshold, left: l, right: r, value: t.nodes[id].value}
	return id
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (t *tree) bestSplit(cols [][]float64, y []float64, idx []int, parentSSE float64, p treeParams, rng *rand.Rand) (split, bool) {
	features := rng.Perm(len(cols))
	if p.maxFeatures > 0 && p.maxFeatures < len(features) {
		features = features[:p.maxFeatures]
	}

	best := split{gain: 0}
	found := false
	for _, f := range features {
		var s split
		var ok bool
		if p.randomSplits {
			s, ok = randomSplit(cols[f], y, idx, parentSSE, p.minSamplesLeaf, rng)
		} else {
			s, ok = exhaustiveSplit(cols[f], y, idx, parentSSE, p.minSamplesLeaf)
		}
		if ok && s.gain > best.gain {
			s.feature = f
			best, found = s, true
		}
	}
	return best, found
}

// exhaustiveSplit scans every midpoint between distinct sorted values.
func exhaustiveSplit(x, y []float64, idx []int, parentSSE float64, minLeaf int) (split, bool) {
	order := append([]int(nil), idx...)
	sort.Slice(order, func(a, b int) bool { return x[order[a]] < x[order[b]] })

	var total, totalSq float64
	for _, i := range order {
		total += y[i]
		totalSq += y[i] * y[i]
	}
	n := float64(len(order))

	best := split{}
	found := false
	var ls, lsq float64
	for k := 0; k < len(order)-1; k++ {
		i := order[k]
		ls += y[i]
		lsq += y[i] * y[i]
		nl := float64(k + 1)
		if k+1 < minLeaf || len(order)-k-1 < minLeaf {
			continue
		}
		if x[order[k]] == x[order[k+1]] {
			continue
		}
		nr := n - nl
		rs, rsq := total-ls, totalSq-lsq
		sse := (lsq - ls*ls/nl) + (rsq - rs*rs/nr)
		if gain := parentSSE - sse; gain > best.gain {
			best = split{threshold: (x[order[k]] + x[order[k+1]]) / 2, gain: gain}
			found = true
		}
	}
	return best, found
}

// randomSplit draws one threshold uniformly between the node's extremes.
func randomSplit(x, y []float64, idx []int, parentSSE float64, minLeaf int, rng *rand.Rand) (split, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range idx {
		lo, hi = math.Min(lo, x[i]), math.Max(hi, x[i])
	}
	if lo == hi {
		return split{}, false
	}
	th := lo + rng.Float64()*(hi-lo)

	var ls, lsq, rs, rsq float64
	var nl, nr int
	for _, i := range idx {
		if x[i] <= th {
			ls, lsq, nl = ls+y[i], lsq+y[i]*y[i], nl+1
		} else {
			rs, rsq, nr = rs+y[i], rsq+y[i]*y[i], nr+1
		}
	}
	if nl < minLeaf || nr < minLeaf || nl == 0 || nr == 0 {
		return split{}, false
	}
	sse := (lsq - ls*ls/float64(nl)) + (rsq - rs*rs/float64(nr))
	return split{threshold: th, gain: parentSSE - sse}, parentSSE-sse > 0
}

func sumSSE(y []float64, idx []int) (sum, sse float64) {
	var sq float64
	for _, i := range idx {
		sum += y[i]
		sq += y[i] * y[i]
	}
	sse = sq - sum*sum/float64(len(idx))
	if sse < 1e-12 {
		sse = 0
	}
	return sum, sse
}

func (t *tree) predict(row func(j int) float64) float64 {
	n := t.nodes[0]
	for !n.leaf {
		if row(n.feature) <= n.threshold {
			n = t.nodes[n.left]
		} else {
			n = t.nodes[n.right]
		}
	}
	return n.value
}
