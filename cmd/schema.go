package main

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/demand-forecast/internal/features"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the model input schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeSchema(cmd.OutOrStdout())
	},
}

type schemaDoc struct {
	Features       []features.Feature `yaml:"features"`
	TimestampField string             `yaml:"timestamp_field"`
	RiskLabels     map[int]string     `yaml:"risk_labels"`
}

func writeSchema(out io.Writer) error {
	doc := schemaDoc{
		Features:       features.Schema().Features(),
		TimestampField: features.FieldTimestamp,
		RiskLabels:     map[int]string{},
	}
	for _, code := range []int{features.RiskLow, features.RiskModerate, features.RiskHigh, features.RiskCritical} {
		doc.RiskLabels[code] = features.RiskLabel(code)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "schema: encode")
	}
	return eris.Wrap(enc.Close(), "schema: encode")
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
