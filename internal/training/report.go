package training

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/demand-forecast/internal/forest"
)

// Importance is one feature's share of the forest's impurity reduction.
type Importance struct {
	Feature string  `json:"feature" yaml:"feature"`
	Value   float64 `json:"value" yaml:"value"`
}

// Report summarises a training run.
type Report struct {
	Rows         int            `json:"rows" yaml:"rows"`
	TrainRows    int            `json:"train_rows" yaml:"train_rows"`
	TestRows     int            `json:"test_rows" yaml:"test_rows"`
	Seed         int64          `json:"seed" yaml:"seed"`
	NEstimators  int            `json:"n_estimators" yaml:"n_estimators"`
	TargetColumn string         `json:"target_column" yaml:"target_column"`
	Metrics      forest.Metrics `json:"metrics" yaml:"metrics"`
	Importances  []Importance   `json:"importances" yaml:"importances"`
	Duration     time.Duration  `json:"duration" yaml:"duration"`
}

// WriteTable prints the report for a terminal.
func (r *Report) WriteTable(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Rows:\t%d (train %d, test %d)\n", r.Rows, r.TrainRows, r.TestRows)
	_, _ = fmt.Fprintf(w, "Trees:\t%d (seed %d)\n", r.NEstimators, r.Seed)
	_, _ = fmt.Fprintf(w, "Target:\t%s\n", r.TargetColumn)
	_, _ = fmt.Fprintf(w, "R²:\t%.4f\n", r.Metrics.R2)
	_, _ = fmt.Fprintf(w, "MAE:\t%.4f\n", r.Metrics.MAE)
	_, _ = fmt.Fprintf(w, "RMSE:\t%.4f\n", r.Metrics.RMSE)
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", r.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "FEATURE\tIMPORTANCE")
	for _, imp := range r.Importances {
		_, _ = fmt.Fprintf(w, "%s\t%.4f\n", imp.Feature, imp.Value)
	}
	return eris.Wrap(w.Flush(), "training: write report")
}

// WriteYAML prints the report as YAML.
func (r *Report) WriteYAML(out io.Writer) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "training: encode report")
	}
	return eris.Wrap(enc.Close(), "training: encode report")
}
