package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

func ptr(f float64) *float64 { return &f }

func incident(num, callType, nhood string, received time.Time, onScene float64) domain.Incident {
	return domain.Incident{
		ID:             "id-" + num,
		IncidentNumber: num,
		CallType:       callType,
		Neighborhood:   nhood,
		ReceivedAt:     received,
		OnSceneTime:    onScene,
		Year:           received.Year(),
		Month:          int(received.Month()),
		Hour:           received.Hour(),
		Weekday:        domain.WeekdayLabel(received.Weekday()),
		PeriodOfDay:    domain.PeriodOfDay(received.Hour()),
	}
}

func day(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func sampleTable() *Table {
	a := incident("1", "Medical Incident", "Mission", day(2018, 3, 5, 9), 6)
	a.IntakeTime, a.QueueTime, a.TravelTime = ptr(1), ptr(2), ptr(3)
	a.ResponseTime = ptr(4)
	b := incident("1", "Medical Incident", "Mission", day(2018, 3, 5, 9), 8)
	b.IntakeTime, b.QueueTime, b.TravelTime = ptr(2), ptr(2), ptr(4)
	c := incident("2", "Structure Fire", "Tenderloin", day(2019, 7, 6, 20), 4)
	c.IntakeTime, c.QueueTime, c.TravelTime = ptr(1), ptr(1), ptr(2)
	d := incident("3", "Alarms", "Tenderloin", day(2019, 7, 6, 2), 10)
	e := incident("4", "Medical Incident", "", day(2020, 1, 1, 14), 12)
	return NewTable([]domain.Incident{a, b, c, d, e})
}

func TestNewTable(t *testing.T) {
	tbl := sampleTable()
	require.NoError(t, tbl.Err())
	assert.Equal(t, 5, tbl.Len())

	rt, err := tbl.Values(ColResponseTime)
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, rt, "absent durations are skipped")

	lat := tbl.Frame().Col(ColLatitude).Float()
	assert.True(t, math.IsNaN(lat[0]), "missing coordinates are NaN")
}

func TestTable_Filters(t *testing.T) {
	tbl := sampleTable()

	fire := tbl.FilterCallTypes("Structure Fire", "Alarms")
	assert.Equal(t, 2, fire.Len())

	years := tbl.FilterYears(2018, 2020)
	assert.Equal(t, 4, years.Len())
	assert.ElementsMatch(t, []int{2018, 2018, 2019, 2019}, intCol(t, years, ColYear))

	assert.Equal(t, 0, tbl.FilterYears(2030, 2031).Len())

	unique := tbl.DropDuplicateIncidents()
	assert.Equal(t, 4, unique.Len())
	onScene, err := unique.Values(ColOnSceneTime)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 4, 10, 12}, onScene, "first row per incident is kept")
}

func TestTable_EmptyFilters(t *testing.T) {
	tbl := NewTable(nil)
	assert.Equal(t, 0, tbl.FilterCallTypes("Medical Incident").Len())
	assert.Equal(t, 0, tbl.FilterYears(2012, 2023).Len())
	assert.Equal(t, 0, tbl.DropDuplicateIncidents().Len())

	g, err := tbl.MeanBy(ColOnSceneTime, ColNeighborhood)
	require.NoError(t, err)
	assert.Empty(t, g.Labels)
}

func intCol(t *testing.T, tbl *Table, col string) []int {
	t.Helper()
	out, err := tbl.Frame().Col(col).Int()
	require.NoError(t, err)
	return out
}

func TestMeanBy(t *testing.T) {
	g, err := sampleTable().MeanBy(ColOnSceneTime, ColNeighborhood)
	require.NoError(t, err)

	assert.Equal(t, []string{"Mission", "Tenderloin"}, g.Labels, "empty keys are skipped")
	assert.Equal(t, []float64{7, 7}, g.Values)
	assert.Equal(t, []int{2, 2}, g.Counts)
	assert.Equal(t, map[string]float64{"Mission": 7, "Tenderloin": 7}, g.Map())

	df := g.Frame()
	assert.Equal(t, []string{ColNeighborhood, ColOnSceneTime, "count"}, df.Names())
}

func TestMeanBy_NumericKeysSortNumerically(t *testing.T) {
	g, err := sampleTable().MeanBy(ColOnSceneTime, ColHour)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "9", "14", "20"}, g.Labels)
}

func TestMeanBy_UnknownColumn(t *testing.T) {
	_, err := sampleTable().MeanBy("nope", ColNeighborhood)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestCountBy_WeekdayOrder(t *testing.T) {
	g, err := sampleTable().CountBy(ColWeekday)
	require.NoError(t, err)
	// 2018-03-05 Mon, 2019-07-06 Sat, 2020-01-01 Wed.
	assert.Equal(t, []string{"Mon", "Wed", "Sat"}, g.Labels)
	assert.Equal(t, []int{2, 1, 2}, g.Counts)
}

func TestCountBy_PeriodOrder(t *testing.T) {
	g, err := sampleTable().CountBy(ColPeriodOfDay)
	require.NoError(t, err)
	assert.Equal(t, []string{"Night", "Morning", "Afternoon", "Evening"}, g.Labels)
}

func TestPivotMean(t *testing.T) {
	p, err := sampleTable().PivotMean(ColYear, ColNeighborhood, ColOnSceneTime)
	require.NoError(t, err)

	assert.Equal(t, []string{"2018", "2019"}, p.Rows, "2020 has no neighborhood")
	assert.Equal(t, []string{"Mission", "Tenderloin"}, p.Columns)
	assert.InDelta(t, 7.0, p.Cells[0][0], 1e-9)
	assert.True(t, math.IsNaN(p.Cells[0][1]), "missing cell stays NaN")
	assert.True(t, math.IsNaN(p.Cells[1][0]))
	assert.InDelta(t, 7.0, p.Cells[1][1], 1e-9)
	assert.Nil(t, p.Column("Nob Hill"))

	df := p.Frame()
	assert.Equal(t, []string{ColYear, "Mission", "Tenderloin"}, df.Names())
	assert.Equal(t, 2, df.Nrow())
}

func TestSplitTimeByYear(t *testing.T) {
	p, err := sampleTable().SplitTimeByYear()
	require.NoError(t, err)

	assert.Equal(t, []string{"2018", "2019"}, p.Rows)
	assert.Equal(t, []string{ColIntakeTime, ColQueueTime, ColTravelTime}, p.Columns)
	assert.Empty(t, cmp.Diff([][]float64{{1.5, 2, 3.5}, {1, 1, 2}}, p.Cells))
}

func TestDailyMean(t *testing.T) {
	days, err := sampleTable().DailyMean(ColOnSceneTime)
	require.NoError(t, err)

	want := []DayMean{
		{Date: day(2018, 3, 5, 0), Mean: 7, Count: 2},
		{Date: day(2019, 7, 6, 0), Mean: 7, Count: 2},
		{Date: day(2020, 1, 1, 0), Mean: 12, Count: 1},
	}
	assert.Empty(t, cmp.Diff(want, days))
	assert.Len(t, sampleTable().Dates(), 3)
}

func TestNewHistogram(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		bins   int
		edges  []float64
		counts []int
	}{
		{"last bin inclusive", []float64{0, 1, 2, 3, 4}, 2, []float64{0, 2, 4}, []int{2, 3}},
		{"constant sample", []float64{5, 5}, 1, []float64{4.5, 5.5}, []int{2}},
		{"nan ignored", []float64{0, math.NaN(), 10}, 5, []float64{0, 2, 4, 6, 8, 10}, []int{1, 0, 0, 0, 1}},
		{"empty", nil, 2, []float64{0, 0.5, 1}, []int{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHistogram(tt.values, tt.bins)
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.edges, h.Edges, cmpopts.EquateApprox(0, 1e-12)))
			assert.Equal(t, tt.counts, h.Counts)
		})
	}

	_, err := NewHistogram([]float64{1}, 0)
	assert.Error(t, err)
}

func TestQuantile(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, Quantile(xs, 0.25), 1e-12)
	assert.InDelta(t, 2.5, Quantile(xs, 0.5), 1e-12)
	assert.InDelta(t, 3.25, Quantile(xs, 0.75), 1e-12)
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestSummarize(t *testing.T) {
	b, ok := Summarize("x", []float64{1, 2, 3, 4, 5, 6, 7, 8, 100})
	require.True(t, ok)

	assert.Equal(t, 9, b.N)
	assert.InDelta(t, 3.0, b.Q1, 1e-12)
	assert.InDelta(t, 5.0, b.Median, 1e-12)
	assert.InDelta(t, 7.0, b.Q3, 1e-12)
	assert.InDelta(t, 1.0, b.LowerWhisker, 1e-12)
	assert.InDelta(t, 8.0, b.UpperWhisker, 1e-12, "100 lies beyond 1.5 IQR")

	_, ok = Summarize("empty", []float64{math.NaN()})
	assert.False(t, ok)
}

func TestBoxStats(t *testing.T) {
	boxes, err := sampleTable().BoxStats(ColOnSceneTime, ColCallType)
	require.NoError(t, err)
	require.Len(t, boxes, 3)
	assert.Equal(t, "Alarms", boxes[0].Label)
	assert.Equal(t, "Medical Incident", boxes[1].Label)
	assert.Equal(t, 3, boxes[1].N)
	assert.InDelta(t, 8.0, boxes[1].Median, 1e-12)
}

func TestTwoSampleT(t *testing.T) {
	// Reference values from scipy.stats.ttest_ind.
	s, p := TwoSampleT([]float64{1, 2, 3, 4, 5}, []float64{3, 4, 5, 6, 7})
	assert.InDelta(t, -2.0, s, 1e-9)
	assert.InDelta(t, 0.0805, p, 1e-3)

	s, p = TwoSampleT([]float64{1}, []float64{1, 2})
	assert.True(t, math.IsNaN(s))
	assert.True(t, math.IsNaN(p))

	_, p = TwoSampleT([]float64{2, 2}, []float64{2, 2})
	assert.True(t, math.IsNaN(p), "zero pooled variance")
}

func TestBonferroni(t *testing.T) {
	assert.InDelta(t, 0.3, Bonferroni(0.1, 3), 1e-12)
	assert.Equal(t, 1.0, Bonferroni(0.5, 3))
}

func TestPairwiseTTests(t *testing.T) {
	var incs []domain.Incident
	add := func(nhood string, values ...float64) {
		for i, v := range values {
			incs = append(incs, incident(nhood+string(rune('a'+i)), "Medical Incident", nhood, day(2019, 1, 1, 10), v))
		}
	}
	add("Mission", 1, 2, 3, 4, 5)
	add("Marina", 3, 4, 5, 6, 7)
	add("Presidio", 21, 22, 23, 24, 25)
	add("Seacliff", 9) // too few observations

	tests, err := NewTable(incs).PairwiseTTests(ColOnSceneTime, ColNeighborhood)
	require.NoError(t, err)
	require.Len(t, tests, 3)

	for _, tt := range tests {
		assert.InDelta(t, Bonferroni(tt.PValue, 3), tt.PAdjusted, 1e-12)
		assert.Equal(t, tt.PAdjusted < Alpha, tt.Reject)
	}
	assert.Equal(t, "Marina", tests[0].A)
	assert.Equal(t, "Mission", tests[0].B)
	assert.False(t, tests[0].Reject)
	assert.True(t, tests[1].Reject, "Marina vs Presidio")

	_, err = NewTable(incs[:5]).PairwiseTTests(ColOnSceneTime, ColNeighborhood)
	assert.ErrorIs(t, err, ErrTooFewGroups)
}

func TestOneWay(t *testing.T) {
	// scipy.stats.f_oneway([1,2,3],[4,5,6],[7,8,9]) -> F=27, p=0.001
	res, err := OneWay([][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}})
	require.NoError(t, err)
	assert.InDelta(t, 27.0, res.F, 1e-9)
	assert.InDelta(t, 0.001, res.PValue, 1e-4)
	assert.Equal(t, 2, res.DFBetween)
	assert.Equal(t, 6, res.DFWithin)

	_, err = OneWay([][]float64{{1, 2}, nil})
	assert.ErrorIs(t, err, ErrTooFewGroups)

	res, err = OneWay([][]float64{{1, 1}, {2, 2}})
	require.NoError(t, err)
	assert.True(t, math.IsInf(res.F, 1))
}

func TestTable_OneWayANOVA(t *testing.T) {
	res, err := sampleTable().OneWayANOVA(ColOnSceneTime, ColCallType)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Groups)
	assert.Equal(t, 2, res.DFWithin)
}
