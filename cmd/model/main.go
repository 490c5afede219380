// Command model fits on-scene time regressors to cleaned medical incidents and
// compares which features each selection method ranks highest.
//
// Usage:
//
//	go run ./cmd/model -in data/clean/incidents.csv -out reports/model
//	go run ./cmd/model -in data/clean/incidents.csv -out reports/model -search -pca 5
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/sffd-incident-etl/internal/analysis"
	"github.com/couchcryptid/sffd-incident-etl/internal/chart"
	"github.com/couchcryptid/sffd-incident-etl/internal/config"
	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
	"github.com/couchcryptid/sffd-incident-etl/internal/model"
	"github.com/couchcryptid/sffd-incident-etl/internal/observability"
)

const (
	importanceFile = "feature_importance.html"
	workbookFile   = "model.xlsx"
)

var (
	categorical = []string{analysis.ColNeighborhood, analysis.ColPeriodOfDay}
	numeric     = []string{analysis.ColYear}
)

type options struct {
	callType   string
	fromYear   int
	toYear     int
	sample     int
	testFrac   float64
	seed       uint64
	top        int
	workers    int
	search     bool
	folds      int
	components int
}

func main() {
	if err := run(); err != nil {
		slog.Error("model failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	in := flag.String("in", "", "cleaned incident CSV")
	out := flag.String("out", "reports/model", "output directory")
	var opts options
	flag.StringVar(&opts.callType, "call-type", "Medical Incident", "call type to model")
	flag.IntVar(&opts.fromYear, "from", 2017, "first year included")
	flag.IntVar(&opts.toYear, "to", 2023, "year after the last one included")
	flag.IntVar(&opts.sample, "sample", 100000, "incidents sampled before fitting")
	flag.Float64Var(&opts.testFrac, "test", 0.2, "held-out fraction")
	flag.Uint64Var(&opts.seed, "seed", 1, "random seed")
	flag.IntVar(&opts.top, "top", 10, "features ranked per method")
	flag.IntVar(&opts.workers, "workers", 0, "concurrent tree fits (0 uses GOMAXPROCS)")
	flag.BoolVar(&opts.search, "search", false, "grid search the random forest")
	flag.IntVar(&opts.folds, "folds", 3, "cross-validation folds for -search")
	flag.IntVar(&opts.components, "pca", 0, "principal components to report (0 skips PCA)")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		return errors.New("missing required flag: -in")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)

	incidents, err := csvfile.LoadIncidents(*in)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return fit(ctx, incidents, opts, *out, logger)
}

func fit(ctx context.Context, incidents []domain.Incident, opts options, outDir string, logger *slog.Logger) error {
	selected := selectIncidents(incidents, opts.callType, opts.fromYear, opts.toYear)
	picked := make([]domain.Incident, 0, min(opts.sample, len(selected)))
	for _, i := range model.Sample(len(selected), opts.sample, opts.seed) {
		picked = append(picked, selected[i])
	}
	logger.Info("incidents selected", "loaded", len(incidents), "matched", len(selected), "sampled", len(picked))

	design, err := model.DesignMatrix(picked, categorical, numeric)
	if err != nil {
		return err
	}
	y, err := design.Target(picked, analysis.ColOnSceneTime)
	if err != nil {
		return err
	}
	x := model.FitScaler(design.X).Transform(design.X)

	trainIdx, testIdx := model.TrainTestSplit(len(y), opts.testFrac, opts.seed)
	if len(trainIdx) < 2 || len(testIdx) == 0 {
		return fmt.Errorf("too few incidents to split: %d", len(y))
	}
	xTrain, yTrain := model.Rows(x, trainIdx), model.Pick(y, trainIdx)
	xTest, yTest := model.Rows(x, testIdx), model.Pick(y, testIdx)

	table := model.NewImportanceTable(design.Features)

	rf := &model.RandomForest{Trees: 100, MaxDepth: 5, Seed: opts.seed, Workers: opts.workers}
	if opts.search {
		res, err := model.GridSearch(ctx, *rf, model.Grid{
			MaxDepth:       []int{3, 5, 8},
			Trees:          []int{50, 100},
			MinSamplesLeaf: []int{1, 5},
		}, xTrain, yTrain, opts.folds)
		if err != nil {
			return err
		}
		best := res.Best
		rf = &best
		logger.Info("grid search complete",
			"candidates", len(res.Results),
			"best_max_depth", best.MaxDepth,
			"best_trees", best.Trees,
			"best_min_samples_leaf", best.MinSamplesLeaf,
			"neg_mse", res.Score,
		)
	}
	et := &model.RandomForest{Trees: 100, Seed: opts.seed, ExtraTrees: true, Workers: opts.workers}

	for _, f := range []struct {
		method string
		forest *model.RandomForest
	}{
		{model.MethodRandomForest, rf},
		{model.MethodExtraTrees, et},
	} {
		if err := f.forest.FitContext(ctx, xTrain, yTrain); err != nil {
			return fmt.Errorf("fit %s: %w", f.forest.Name(), err)
		}
		score(logger, f.forest.Name(), yTest, f.forest.Predict(xTest))
		if err := table.Add(f.method, f.forest.Importances(), false); err != nil {
			return err
		}
	}

	rfe, err := model.RFE(xTrain, yTrain, min(opts.top, len(design.Features)))
	if err != nil {
		return err
	}
	ranking := make([]float64, len(rfe.Ranking))
	for i, r := range rfe.Ranking {
		ranking[i] = float64(r)
	}
	if err := table.Add(model.MethodRFE, ranking, true); err != nil {
		return err
	}
	var lr model.LinearRegression
	kept := rfe.Selected()
	if err := lr.Fit(model.Columns(xTrain, kept), yTrain); err != nil {
		return fmt.Errorf("fit linear regression: %w", err)
	}
	score(logger, "Linear Regression (RFE features)", yTest, lr.Predict(model.Columns(xTest, kept)))

	if opts.components > 0 {
		pca, err := model.PCA(xTrain, opts.components)
		if err != nil {
			return err
		}
		logger.Info("pca complete", "components", len(pca.Variances), "explained_ratio", pca.Ratios)
	}

	anova, err := analysis.NewTable(selected).OneWayANOVA(analysis.ColOnSceneTime, analysis.ColNeighborhood)
	if err != nil {
		logger.Warn("anova skipped", "error", err)
	} else {
		logger.Info("one-way anova by neighborhood",
			"f", anova.F, "p_value", anova.PValue, "df_between", anova.DFBetween, "df_within", anova.DFWithin)
	}

	features, scores, err := table.RankScores(opts.top)
	if err != nil {
		return err
	}
	c, err := chart.StackedBar("Feature Importance Comparison", features, table.Methods, scores)
	if err != nil {
		return err
	}
	if err := c.WriteFile(filepath.Join(outDir, importanceFile)); err != nil {
		return err
	}
	if err := xlsx.WriteWorkbook(filepath.Join(outDir, workbookFile), []xlsx.Sheet{
		{Name: "importances", Frame: table.Frame()},
	}); err != nil {
		return err
	}
	logger.Info("model complete", "out", outDir, "features", len(design.Features), "ranked", len(features))
	return nil
}

// selectIncidents keeps incidents of callType in [fromYear, toYear).
func selectIncidents(incidents []domain.Incident, callType string, fromYear, toYear int) []domain.Incident {
	var out []domain.Incident
	for _, inc := range incidents {
		if inc.CallType == callType && inc.Year >= fromYear && inc.Year < toYear {
			out = append(out, inc)
		}
	}
	return out
}

func score(logger *slog.Logger, name string, y, pred []float64) {
	logger.Info("model scored", "model", name, "r2", model.R2(y, pred), "mse", model.MSE(y, pred))
}
