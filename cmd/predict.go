package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/demand-forecast/internal/api"
	"github.com/sells-group/demand-forecast/internal/features"
	"github.com/sells-group/demand-forecast/internal/predict"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict demand for one record",
	Long:  "Reads a JSON record from --input (or stdin) and prints the prediction response the API would return. Exits non-zero on any error.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		modelPath, _ := cmd.Flags().GetString("model")
		input, _ := cmd.Flags().GetString("input")
		insights, _ := cmd.Flags().GetBool("insights")
		if modelPath == "" {
			modelPath = cfg.Model.ArtifactPath
		}

		in := cmd.InOrStdin()
		if input != "" && input != "-" {
			f, err := os.Open(input)
			if err != nil {
				return eris.Wrapf(err, "predict: open %s", input)
			}
			defer f.Close() //nolint:errcheck
			in = f
		}

		return runPredict(in, cmd.OutOrStdout(), predict.Open(modelPath), insights)
	},
}

// runPredict decodes one record from in and writes the response to out. On
// failure the {"error": ...} body is written too and the error returned.
func runPredict(in io.Reader, out io.Writer, svc *predict.Service, insights bool) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	fail := func(err error) error {
		enc.Encode(map[string]string{"error": err.Error()}) //nolint:errcheck
		return err
	}

	if err := svc.Ready(); err != nil {
		return fail(err)
	}

	dec := json.NewDecoder(in)
	dec.UseNumber()
	var raw features.RawRecord
	if err := dec.Decode(&raw); err != nil {
		return fail(eris.Wrap(err, "predict: decode input"))
	}
	if raw == nil {
		return fail(eris.New("predict: input must be a JSON object"))
	}

	res, err := svc.Predict(raw)
	if err != nil {
		return fail(err)
	}

	if insights {
		return eris.Wrap(enc.Encode(api.NewInsightsResponse(res)), "predict: write response")
	}
	return eris.Wrap(enc.Encode(res), "predict: write response")
}

func init() {
	predictCmd.Flags().String("model", "", "model artifact path (default from config)")
	predictCmd.Flags().String("input", "-", "JSON record file, or - for stdin")
	predictCmd.Flags().Bool("insights", false, "include cost impact and optimisation suggestions")
	rootCmd.AddCommand(predictCmd)
}
