package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/demand-forecast/internal/dataset"
	"github.com/sells-group/demand-forecast/internal/training"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic training dataset",
	Long:  "Writes synthetic logistics records with a historical_demand target. The output format follows the extension: .csv or .xlsx.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rows, _ := cmd.Flags().GetInt("rows")
		seed, _ := cmd.Flags().GetInt64("seed")
		out, _ := cmd.Flags().GetString("out")
		if rows < 1 {
			return eris.Errorf("generate: --rows must be >= 1, got %d", rows)
		}

		table := training.GenerateSynthetic(rows, seed)
		if err := writeTable(out, table); err != nil {
			return err
		}

		zap.L().Info("generate: dataset written",
			zap.String("path", out),
			zap.Int("rows", rows),
			zap.Int64("seed", seed),
		)
		return nil
	},
}

func writeTable(path string, t *dataset.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "generate: create dir for %s", path)
	}

	switch dataset.FormatOf(path) {
	case dataset.FormatXLSX:
		return dataset.WriteXLSX(path, t, "")
	case dataset.FormatTSV:
		return eris.New("generate: tsv output is not supported, use .csv or .xlsx")
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "generate: create %s", path)
	}
	if err := dataset.WriteCSV(f, t); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "generate: close %s", path)
}

func init() {
	generateCmd.Flags().Int("rows", 1000, "number of records")
	generateCmd.Flags().Int64("seed", 42, "random seed")
	generateCmd.Flags().String("out", "data/training_data.csv", "output path (.csv or .xlsx)")
	rootCmd.AddCommand(generateCmd)
}
