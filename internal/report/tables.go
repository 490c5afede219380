package report

import (
	"errors"
	"log/slog"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/sffd-incident-etl/internal/analysis"
)

func summarySheets(t *analysis.Table, logger *slog.Logger) ([]xlsx.Sheet, error) {
	var sheets []xlsx.Sheet
	add := func(name string, df dataframe.DataFrame) {
		sheets = append(sheets, xlsx.Sheet{Name: name, Frame: df})
	}

	for _, key := range []string{analysis.ColNeighborhood, analysis.ColBattalion} {
		g, err := t.MeanBy(analysis.ColOnSceneTime, key)
		if err != nil {
			return nil, err
		}
		add(key+" means", g.Frame())
	}

	split, err := t.SplitTimeByYear()
	if err != nil {
		return nil, err
	}
	add("split time", split.Frame())

	weekdays, err := t.DropDuplicateIncidents().CountBy(analysis.ColWeekday)
	if err != nil {
		return nil, err
	}
	add("weekday counts", weekdays.Frame())

	boxes, err := t.BoxStats(analysis.ColOnSceneTime, analysis.ColNeighborhood)
	if err != nil {
		return nil, err
	}
	add("box stats", boxFrame(boxes))

	tests, err := t.PairwiseTTests(analysis.ColOnSceneTime, analysis.ColNeighborhood)
	switch {
	case errors.Is(err, analysis.ErrTooFewGroups):
		logger.Warn("pairwise t-tests skipped", "error", err)
	case err != nil:
		return nil, err
	default:
		add("pairwise t-tests", tTestFrame(tests))
	}

	anova, err := t.OneWayANOVA(analysis.ColOnSceneTime, analysis.ColNeighborhood)
	if err != nil {
		logger.Warn("anova skipped", "error", err)
	} else {
		add("anova", dataframe.New(
			series.New([]string{analysis.ColOnSceneTime + " ~ " + analysis.ColNeighborhood}, series.String, "model"),
			series.New([]float64{anova.F}, series.Float, "F"),
			series.New([]float64{anova.PValue}, series.Float, "p"),
			series.New([]int{anova.DFBetween}, series.Int, "df_between"),
			series.New([]int{anova.DFWithin}, series.Int, "df_within"),
		))
	}
	return sheets, nil
}

func boxFrame(boxes []analysis.Box) dataframe.DataFrame {
	n := len(boxes)
	labels := make([]string, n)
	counts := make([]int, n)
	cols := map[string][]float64{}
	names := []string{"mean", "q1", "median", "q3", "lower_whisker", "upper_whisker"}
	for _, name := range names {
		cols[name] = make([]float64, n)
	}
	for i, b := range boxes {
		labels[i], counts[i] = b.Label, b.N
		cols["mean"][i] = b.Mean
		cols["q1"][i] = b.Q1
		cols["median"][i] = b.Median
		cols["q3"][i] = b.Q3
		cols["lower_whisker"][i] = b.LowerWhisker
		cols["upper_whisker"][i] = b.UpperWhisker
	}
	s := []series.Series{
		series.New(labels, series.String, "group"),
		series.New(counts, series.Int, "n"),
	}
	for _, name := range names {
		s = append(s, series.New(cols[name], series.Float, name))
	}
	return dataframe.New(s...)
}

func tTestFrame(tests []analysis.TTest) dataframe.DataFrame {
	n := len(tests)
	a, b := make([]string, n), make([]string, n)
	stat, p, adj := make([]float64, n), make([]float64, n), make([]float64, n)
	reject := make([]bool, n)
	for i, tt := range tests {
		a[i], b[i] = tt.A, tt.B
		stat[i], p[i], adj[i] = tt.Statistic, tt.PValue, tt.PAdjusted
		reject[i] = tt.Reject
	}
	return dataframe.New(
		series.New(a, series.String, "group1"),
		series.New(b, series.String, "group2"),
		series.New(stat, series.Float, "stat"),
		series.New(p, series.Float, "pval"),
		series.New(adj, series.Float, "pval_corr"),
		series.New(reject, series.Bool, "reject"),
	)
}
