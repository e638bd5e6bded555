package main

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/demand-forecast/internal/artifact"
	"github.com/sells-group/demand-forecast/internal/config"
	"github.com/sells-group/demand-forecast/internal/dataset"
	"github.com/sells-group/demand-forecast/internal/forest"
	"github.com/sells-group/demand-forecast/internal/store"
	"github.com/sells-group/demand-forecast/internal/training"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the demand forecaster and write the model artifact",
	Long:  "Loads a CSV, TSV or XLSX dataset (local path, http(s):// or ftp:// URL), fits the random forest on a seeded 80/20 split, prints the evaluation report and saves the artifact.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		applyTrainFlags(cmd, cfg)
		if err := cfg.Validate("train"); err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format != "table" && format != "yaml" {
			return eris.Errorf("train: unknown format %q (want table or yaml)", format)
		}

		table, err := dataset.Load(ctx, cfg.Training.Dataset, fetchOptions(cfg))
		if err != nil {
			return err
		}

		report, art, err := training.New(trainingConfig(cfg.Training)).Run(ctx, table.Records())
		if err != nil {
			return eris.Wrap(err, "train")
		}

		if err := artifact.Save(cfg.Model.ArtifactPath, art); err != nil {
			return err
		}
		zap.L().Info("train: artifact saved", zap.String("path", cfg.Model.ArtifactPath))

		if noRecord, _ := cmd.Flags().GetBool("no-record"); !noRecord {
			if err := recordRun(cmd, report); err != nil {
				return err
			}
		}

		return writeReport(cmd.OutOrStdout(), report, format)
	},
}

// applyTrainFlags overrides configuration with flags the user set.
func applyTrainFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("data") {
		c.Training.Dataset, _ = flags.GetString("data")
	}
	if flags.Changed("sheet") {
		c.Training.Sheet, _ = flags.GetString("sheet")
	}
	if flags.Changed("target") {
		c.Training.TargetColumn, _ = flags.GetString("target")
	}
	if flags.Changed("seed") {
		c.Training.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("trees") {
		c.Training.NEstimators, _ = flags.GetInt("trees")
	}
	if flags.Changed("max-depth") {
		c.Training.MaxDepth, _ = flags.GetInt("max-depth")
	}
	if flags.Changed("workers") {
		c.Training.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("out") {
		c.Model.ArtifactPath, _ = flags.GetString("out")
	}
}

func trainingConfig(tc config.TrainingConfig) training.Config {
	fc := forest.DefaultConfig()
	fc.NEstimators = tc.NEstimators
	fc.MaxDepth = tc.MaxDepth
	fc.MinSamplesSplit = tc.MinSamplesSplit
	fc.MinSamplesLeaf = tc.MinSamplesLeaf
	fc.MaxFeatures = tc.MaxFeatures
	fc.Seed = tc.Seed
	fc.Workers = tc.Workers

	return training.Config{
		Forest:       fc,
		TargetColumn: tc.TargetColumn,
		TestRatio:    tc.TestRatio,
	}
}

func fetchOptions(c *config.Config) dataset.Options {
	return dataset.Options{
		Timeout:    time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: c.Fetch.MaxRetries,
		UserAgent:  c.Fetch.UserAgent,
		Sheet:      c.Training.Sheet,
	}
}

func recordRun(cmd *cobra.Command, report *training.Report) error {
	ctx := cmd.Context()
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	run := runFromReport(report, cfg.Training.Dataset, cfg.Model.ArtifactPath)
	if err := st.CreateTrainingRun(ctx, run); err != nil {
		return eris.Wrap(err, "train: record run")
	}
	zap.L().Info("train: run recorded", zap.String("run_id", run.ID))
	return nil
}

func runFromReport(r *training.Report, location, artifactPath string) *store.TrainingRun {
	imps := make([]store.Importance, len(r.Importances))
	for i, imp := range r.Importances {
		imps[i] = store.Importance{Feature: imp.Feature, Value: imp.Value}
	}
	return &store.TrainingRun{
		Dataset:      location,
		TargetColumn: r.TargetColumn,
		ArtifactPath: artifactPath,
		Rows:         r.Rows,
		TrainRows:    r.TrainRows,
		TestRows:     r.TestRows,
		Seed:         r.Seed,
		NEstimators:  r.NEstimators,
		R2:           r.Metrics.R2,
		MAE:          r.Metrics.MAE,
		RMSE:         r.Metrics.RMSE,
		Importances:  imps,
		Duration:     r.Duration,
	}
}

func writeReport(out io.Writer, r *training.Report, format string) error {
	if format == "yaml" {
		return r.WriteYAML(out)
	}
	return r.WriteTable(out)
}

func init() {
	f := trainCmd.Flags()
	f.String("data", "", "dataset path or URL (default from config)")
	f.String("sheet", "", "worksheet name for XLSX datasets (default: first sheet)")
	f.String("target", "", "target column (default from config)")
	f.Int64("seed", 42, "random seed for the split and the forest")
	f.Int("trees", 100, "number of trees")
	f.Int("max-depth", 0, "maximum tree depth (0 = unlimited)")
	f.Int("workers", 0, "parallel tree workers (0 = GOMAXPROCS)")
	f.String("out", "", "artifact output path (default from config)")
	f.String("format", "table", "report format: table or yaml")
	f.Bool("no-record", false, "do not record the run in the run store")
	rootCmd.AddCommand(trainCmd)
}
