// Package training fits the demand forecaster from historical records.
package training

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/demand-forecast/internal/artifact"
	"github.com/sells-group/demand-forecast/internal/features"
	"github.com/sells-group/demand-forecast/internal/forest"
)

// DefaultTargetColumn is the dataset column holding observed demand.
const DefaultTargetColumn = "historical_demand"

// Config controls a training run.
type Config struct {
	Forest       forest.Config `yaml:"forest"`
	TargetColumn string        `yaml:"target_column"`
	TestRatio    float64       `yaml:"test_ratio"`
}

// DefaultConfig mirrors the original training script: 100 trees, seed 42 and
// an 80/20 split.
func DefaultConfig() Config {
	return Config{
		Forest:       forest.DefaultConfig(),
		TargetColumn: DefaultTargetColumn,
		TestRatio:    0.2,
	}
}

// RowError reports the dataset row that aborted a run. Row is 1-based and
// counts data rows only.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return "row " + strconv.Itoa(e.Row) + ": " + e.Err.Error()
}

func (e *RowError) Unwrap() error { return e.Err }

// Pipeline validates and derives every record, fits the encoder and forest on
// a seeded training split and evaluates on the held-out rest.
type Pipeline struct {
	cfg Config
}

// New returns a pipeline. Zero fields of cfg take DefaultConfig values.
func New(cfg Config) *Pipeline {
	def := DefaultConfig()
	if cfg.TargetColumn == "" {
		cfg.TargetColumn = def.TargetColumn
	}
	if cfg.TestRatio == 0 {
		cfg.TestRatio = def.TestRatio
	}
	return &Pipeline{cfg: cfg}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Run trains from scratch on rows. Any malformed row aborts the run.
func (p *Pipeline) Run(ctx context.Context, rows []features.RawRecord) (*Report, *artifact.Artifact, error) {
	start := time.Now()
	if p.cfg.TestRatio <= 0 || p.cfg.TestRatio >= 1 {
		return nil, nil, eris.Errorf("training: test ratio %v must be in (0, 1)", p.cfg.TestRatio)
	}

	X, y, err := p.prepare(rows)
	if err != nil {
		return nil, nil, err
	}

	seed := p.cfg.Forest.Seed
	trainIdx, testIdx := forest.TrainTestSplit(len(X), p.cfg.TestRatio, seed)
	if len(trainIdx) < 2 || len(testIdx) == 0 {
		return nil, nil, eris.Errorf("training: %d rows is too few to split at %v", len(X), p.cfg.TestRatio)
	}
	trainX, trainY := subset(X, y, trainIdx)
	testX, testY := subset(X, y, testIdx)

	riskCol, _ := features.Schema().Index(features.FieldRiskClassification)
	enc := forest.NewOneHotEncoder(riskCol)
	if err := enc.Fit(trainX); err != nil {
		return nil, nil, eris.Wrap(err, "training: fit encoder")
	}
	encTrain, err := enc.TransformAll(trainX)
	if err != nil {
		return nil, nil, eris.Wrap(err, "training: encode train")
	}
	encTest, err := enc.TransformAll(testX)
	if err != nil {
		return nil, nil, eris.Wrap(err, "training: encode test")
	}

	model := forest.New(p.cfg.Forest)
	if err := model.Fit(ctx, encTrain, trainY); err != nil {
		return nil, nil, eris.Wrap(err, "training: fit forest")
	}
	pred, err := model.PredictAll(encTest)
	if err != nil {
		return nil, nil, eris.Wrap(err, "training: predict test")
	}
	metrics := forest.Evaluate(testY, pred)
	importances := enc.Fold(model.Importances)

	art := &artifact.Artifact{
		FeatureNames: features.Schema().Names(),
		Encoder:      enc,
		Forest:       model,
		Metrics:      metrics,
		Importances:  importances,
		TrainRows:    len(trainIdx),
		TestRows:     len(testIdx),
		TrainedAt:    time.Now().UTC(),
	}

	report := &Report{
		Rows:         len(X),
		TrainRows:    len(trainIdx),
		TestRows:     len(testIdx),
		Seed:         seed,
		NEstimators:  model.Config.NEstimators,
		TargetColumn: p.cfg.TargetColumn,
		Metrics:      metrics,
		Importances:  rankImportances(art.FeatureNames, importances),
		Duration:     time.Since(start),
	}

	zap.L().Info("training: run complete",
		zap.Int("rows", report.Rows),
		zap.Int("train_rows", report.TrainRows),
		zap.Int("test_rows", report.TestRows),
		zap.Float64("r2", metrics.R2),
		zap.Float64("mae", metrics.MAE),
		zap.Duration("duration", report.Duration),
	)
	return report, art, nil
}

// prepare turns rows into schema-ordered vectors and targets.
func (p *Pipeline) prepare(rows []features.RawRecord) ([][]float64, []float64, error) {
	if len(rows) == 0 {
		return nil, nil, eris.New("training: dataset has no rows")
	}
	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, raw := range rows {
		if err := features.Validate(raw); err != nil {
			return nil, nil, &RowError{Row: i + 1, Err: err}
		}
		vec, err := features.Derive(raw)
		if err != nil {
			return nil, nil, &RowError{Row: i + 1, Err: err}
		}
		target, err := targetValue(raw, p.cfg.TargetColumn)
		if err != nil {
			return nil, nil, &RowError{Row: i + 1, Err: err}
		}
		X[i] = vec
		y[i] = target
	}
	return X, y, nil
}

// ErrTarget is returned for a missing or non-numeric target value.
var ErrTarget = errors.New("invalid target")

func targetValue(raw features.RawRecord, column string) (float64, error) {
	v, ok := raw[column]
	if !ok {
		return 0, eris.Wrapf(ErrTarget, "missing target column %q", column)
	}
	var x float64
	switch t := v.(type) {
	case float64:
		x = t
	case int:
		x = float64(t)
	case int64:
		x = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, eris.Wrapf(ErrTarget, "target %q is not a number", t.String())
		}
		x = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, eris.Wrapf(ErrTarget, "target %q is not a number", t)
		}
		x = f
	default:
		return 0, eris.Wrapf(ErrTarget, "target has type %T", v)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, eris.Wrapf(ErrTarget, "target %v is not finite", x)
	}
	return x, nil
}

func subset(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	sx := make([][]float64, len(idx))
	sy := make([]float64, len(idx))
	for k, i := range idx {
		sx[k] = X[i]
		sy[k] = y[i]
	}
	return sx, sy
}

func rankImportances(names []string, values []float64) []Importance {
	out := make([]Importance, len(names))
	for i, n := range names {
		out[i] = Importance{Feature: n, Value: values[i]}
	}
	slices.SortStableFunc(out, func(a, b Importance) int {
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		}
		return 0
	})
	return out
}
