package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Alpha is the family-wise significance level for group comparisons.
const Alpha = 0.05

// ErrTooFewGroups is returned when a comparison needs more groups than the
// data provides.
var ErrTooFewGroups = errors.New("analysis: too few groups")

// Histogram holds equal-width bin counts. Edges has one more element than
// Counts; the last bin includes its right edge.
type Histogram struct {
	Edges  []float64
	Counts []int
}

// NewHistogram bins values into n equal-width bins over [min, max]. NaN values
// are ignored. A constant sample spans [v-0.5, v+0.5].
func NewHistogram(values []float64, n int) (Histogram, error) {
	if n < 1 {
		return Histogram{}, fmt.Errorf("analysis: histogram needs at least one bin, got %d", n)
	}
	xs := finite(values)
	lo, hi := 0.0, 1.0
	if len(xs) > 0 {
		lo, hi = floats.Min(xs), floats.Max(xs)
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	h := Histogram{Edges: make([]float64, n+1), Counts: make([]int, n)}
	width := (hi - lo) / float64(n)
	for i := range h.Edges {
		h.Edges[i] = lo + float64(i)*width
	}
	h.Edges[n] = hi
	for _, x := range xs {
		i := int((x - lo) / width)
		if i >= n {
			i = n - 1
		}
		h.Counts[i]++
	}
	return h, nil
}

// Histogram bins the non-missing values of column.
func (t *Table) Histogram(column string, bins int) (Histogram, error) {
	xs, err := t.Values(column)
	if err != nil {
		return Histogram{}, err
	}
	return NewHistogram(xs, bins)
}

// Box summarizes one group for a box plot. Whiskers reach the furthest
// observation within 1.5 IQR of the quartiles.
type Box struct {
	Label        string
	N            int
	Mean         float64
	Q1           float64
	Median       float64
	Q3           float64
	LowerWhisker float64
	UpperWhisker float64
}

// Summarize computes box statistics for values. It returns false when there
// are no finite values.
func Summarize(label string, values []float64) (Box, bool) {
	xs := finite(values)
	if len(xs) == 0 {
		return Box{}, false
	}
	sort.Float64s(xs)
	b := Box{
		Label:  label,
		N:      len(xs),
		Mean:   stat.Mean(xs, nil),
		Q1:     Quantile(xs, 0.25),
		Median: Quantile(xs, 0.5),
		Q3:     Quantile(xs, 0.75),
	}
	iqr := b.Q3 - b.Q1
	lowFence, highFence := b.Q1-1.5*iqr, b.Q3+1.5*iqr
	b.LowerWhisker, b.UpperWhisker = b.Q1, b.Q3
	for _, x := range xs {
		if x >= lowFence {
			b.LowerWhisker = math.Min(x, b.Q1)
			break
		}
	}
	for i := len(xs) - 1; i >= 0; i-- {
		if xs[i] <= highFence {
			b.UpperWhisker = math.Max(xs[i], b.Q3)
			break
		}
	}
	return b, true
}

// Quantile returns the q-quantile of sorted data with linear interpolation
// between closest ranks.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// BoxStats summarizes column per group of by.
func (t *Table) BoxStats(column, by string) ([]Box, error) {
	if err := t.requireColumn(column, by); err != nil {
		return nil, err
	}
	var out []Box
	for _, g := range t.groups(column, by) {
		if b, ok := Summarize(g.label, g.values); ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// TTest is one pairwise two-sample comparison.
type TTest struct {
	A, B      string
	Statistic float64
	PValue    float64
	PAdjusted float64 // Bonferroni
	Reject    bool
}

// TwoSampleT runs Student's t test for equal means assuming equal variances.
// It returns NaN when either sample has fewer than two values or the pooled
// variance is zero.
func TwoSampleT(a, b []float64) (statistic, p float64) {
	n1, n2 := float64(len(a)), float64(len(b))
	if len(a) < 2 || len(b) < 2 {
		return math.NaN(), math.NaN()
	}
	m1, v1 := stat.MeanVariance(a, nil)
	m2, v2 := stat.MeanVariance(b, nil)
	df := n1 + n2 - 2
	pooled := ((n1-1)*v1 + (n2-1)*v2) / df
	se := math.Sqrt(pooled * (1/n1 + 1/n2))
	if se == 0 {
		return math.NaN(), math.NaN()
	}
	statistic = (m1 - m2) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * (1 - dist.CDF(math.Abs(statistic)))
	return statistic, p
}

// Bonferroni scales p by the number of comparisons, capped at 1.
func Bonferroni(p float64, m int) float64 {
	return math.Min(1, p*float64(m))
}

// PairwiseTTests compares value between every pair of groups of by with
// Bonferroni-corrected p-values. Groups with fewer than two observations are
// left out.
func (t *Table) PairwiseTTests(value, by string) ([]TTest, error) {
	if err := t.requireColumn(value, by); err != nil {
		return nil, err
	}
	var gs []group
	for _, g := range t.groups(value, by) {
		if len(g.values) >= 2 {
			gs = append(gs, g)
		}
	}
	if len(gs) < 2 {
		return nil, fmt.Errorf("%w: %d with two or more %s values", ErrTooFewGroups, len(gs), value)
	}

	m := len(gs) * (len(gs) - 1) / 2
	out := make([]TTest, 0, m)
	for i := 0; i < len(gs); i++ {
		for j := i + 1; j < len(gs); j++ {
			s, p := TwoSampleT(gs[i].values, gs[j].values)
			adj := Bonferroni(p, m)
			out = append(out, TTest{
				A:         gs[i].label,
				B:         gs[j].label,
				Statistic: s,
				PValue:    p,
				PAdjusted: adj,
				Reject:    adj < Alpha,
			})
		}
	}
	return out, nil
}

// ANOVA is the result of a one-way analysis of variance.
type ANOVA struct {
	F         float64
	PValue    float64
	DFBetween int
	DFWithin  int
	Groups    int
}

// OneWay runs a one-way ANOVA over samples.
func OneWay(samples [][]float64) (ANOVA, error) {
	var all []float64
	k := 0
	for _, s := range samples {
		if len(s) == 0 {
			continue
		}
		k++
		all = append(all, s...)
	}
	n := len(all)
	if k < 2 {
		return ANOVA{}, fmt.Errorf("%w: %d non-empty samples", ErrTooFewGroups, k)
	}
	if n <= k {
		return ANOVA{}, fmt.Errorf("analysis: anova needs more observations than groups (%d <= %d)", n, k)
	}

	grand := stat.Mean(all, nil)
	var between, within float64
	for _, s := range samples {
		if len(s) == 0 {
			continue
		}
		m := stat.Mean(s, nil)
		between += float64(len(s)) * (m - grand) * (m - grand)
		for _, x := range s {
			within += (x - m) * (x - m)
		}
	}

	res := ANOVA{DFBetween: k - 1, DFWithin: n - k, Groups: k}
	msb := between / float64(res.DFBetween)
	msw := within / float64(res.DFWithin)
	if msw == 0 {
		res.F, res.PValue = math.Inf(1), 0
		if msb == 0 {
			res.F, res.PValue = math.NaN(), math.NaN()
		}
		return res, nil
	}
	res.F = msb / msw
	dist := distuv.F{D1: float64(res.DFBetween), D2: float64(res.DFWithin)}
	res.PValue = 1 - dist.CDF(res.F)
	return res, nil
}

// OneWayANOVA tests whether the mean of value differs across groups of by.
func (t *Table) OneWayANOVA(value, by string) (ANOVA, error) {
	if err := t.requireColumn(value, by); err != nil {
		return ANOVA{}, err
	}
	gs := t.groups(value, by)
	samples := make([][]float64, len(gs))
	for i, g := range gs {
		samples[i] = g.values
	}
	return OneWay(samples)
}
