package features

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Risk classification codes. The integer code is the canonical representation;
// labels found in historical datasets are normalised to it.
const (
	RiskLow = iota
	RiskModerate
	RiskHigh
	RiskCritical
)

var riskLabels = []string{
	RiskLow:      "Low Risk",
	RiskModerate: "Moderate Risk",
	RiskHigh:     "High Risk",
	RiskCritical: "Critical Risk",
}

// riskAliases maps case-folded labels to codes.
var riskAliases = map[string]int{
	"low risk":      RiskLow,
	"low":           RiskLow,
	"moderate risk": RiskModerate,
	"moderate":      RiskModerate,
	"medium risk":   RiskModerate,
	"medium":        RiskModerate,
	"high risk":     RiskHigh,
	"high":          RiskHigh,
	"critical risk": RiskCritical,
	"critical":      RiskCritical,
}

// RiskLabel returns the display label for a risk code, or "" if unknown.
func RiskLabel(code int) string {
	if code < 0 || code >= len(riskLabels) {
		return ""
	}
	return riskLabels[code]
}

// NormalizeRiskLabel resolves a textual risk classification to its code.
// Numeric strings are treated as codes and checked against the domain.
func NormalizeRiskLabel(label string) (int, error) {
	trimmed := strings.TrimSpace(label)
	if n, err := strconv.Atoi(trimmed); err == nil {
		f := schema.At(schema.index[FieldRiskClassification])
		if !f.Domain.Contains(float64(n)) {
			return 0, &OutOfRangeError{Field: FieldRiskClassification, Value: label, Domain: f.Domain}
		}
		return n, nil
	}

	// cases.Caser is stateful; build one per call.
	folded := strings.Join(strings.Fields(cases.Fold().String(trimmed)), " ")
	if code, ok := riskAliases[folded]; ok {
		return code, nil
	}
	return 0, &UnknownCategoryError{Field: FieldRiskClassification, Value: label}
}
