// Package features defines the model input schema and the validation and
// derivation steps that turn a raw operational record into a feature vector.
//
// The schema in this package is the only place feature names, their order and
// their valid domains are declared. Training and serving both build vectors
// through it, so the regressor always sees columns in the order it was fit on.
package features

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Canonical feature names.
const (
	FieldHour                     = "hour"
	FieldDayOfWeek                = "day_of_week"
	FieldMonth                    = "month"
	FieldWarehouseInventoryLevel  = "warehouse_inventory_level"
	FieldShippingCosts            = "shipping_costs"
	FieldSupplierReliabilityScore = "supplier_reliability_score"
	FieldLeadTimeDays             = "lead_time_days"
	FieldTrafficCongestionLevel   = "traffic_congestion_level"
	FieldWeatherConditionSeverity = "weather_condition_severity"
	FieldRiskClassification       = "risk_classification"

	// FieldTimestamp may replace the three calendar fields in a raw record.
	FieldTimestamp = "timestamp"
)

// DomainKind classifies the value domain of a feature.
type DomainKind string

const (
	DomainInteger  DomainKind = "integer"
	DomainReal     DomainKind = "real"
	DomainCategory DomainKind = "category"
)

// Domain is the set of values a feature accepts.
type Domain struct {
	Kind DomainKind `json:"kind" yaml:"kind"`
	Min  float64    `json:"min" yaml:"min"`
	// Max is ignored when Unbounded is set.
	Max       float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Unbounded bool    `json:"unbounded,omitempty" yaml:"unbounded,omitempty"`
	// Codes lists the allowed category codes for DomainCategory.
	Codes []int `json:"codes,omitempty" yaml:"codes,omitempty"`
}

// Contains reports whether v lies inside the domain.
func (d Domain) Contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	switch d.Kind {
	case DomainCategory:
		for _, c := range d.Codes {
			if float64(c) == v {
				return true
			}
		}
		return false
	case DomainInteger:
		if v != math.Trunc(v) {
			return false
		}
	}
	if v < d.Min {
		return false
	}
	return d.Unbounded || v <= d.Max
}

func (d Domain) String() string {
	switch {
	case d.Kind == DomainCategory:
		codes := make([]string, len(d.Codes))
		for i, c := range d.Codes {
			codes[i] = strconv.Itoa(c)
		}
		return "{" + strings.Join(codes, ", ") + "}"
	case d.Unbounded:
		return fmt.Sprintf(">= %s", formatBound(d.Min))
	default:
		return fmt.Sprintf("[%s, %s]", formatBound(d.Min), formatBound(d.Max))
	}
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Feature is one named column of the model input.
type Feature struct {
	Name   string `json:"name" yaml:"name"`
	Domain Domain `json:"domain" yaml:"domain"`
}

// Categorical reports whether the feature is an enumerated category.
func (f Feature) Categorical() bool {
	return f.Domain.Kind == DomainCategory
}

// FeatureSchema is the ordered, immutable list of model input features.
type FeatureSchema struct {
	features []Feature
	index    map[string]int
}

func newSchema(features ...Feature) *FeatureSchema {
	s := &FeatureSchema{
		features: features,
		index:    make(map[string]int, len(features)),
	}
	for i, f := range features {
		if _, dup := s.index[f.Name]; dup {
			panic("features: duplicate feature " + f.Name)
		}
		s.index[f.Name] = i
	}
	return s
}

func intRange(lo, hi float64) Domain {
	return Domain{Kind: DomainInteger, Min: lo, Max: hi}
}

func realRange(lo, hi float64) Domain {
	return Domain{Kind: DomainReal, Min: lo, Max: hi}
}

func nonNegative() Domain {
	return Domain{Kind: DomainReal, Min: 0, Unbounded: true}
}

// schema is the order the regressor is fit against. Reordering it invalidates
// every persisted artifact (artifact.Load rejects them).
var schema = newSchema(
	Feature{Name: FieldHour, Domain: intRange(0, 23)},
	Feature{Name: FieldDayOfWeek, Domain: intRange(0, 6)},
	Feature{Name: FieldMonth, Domain: intRange(1, 12)},
	Feature{Name: FieldWarehouseInventoryLevel, Domain: nonNegative()},
	Feature{Name: FieldShippingCosts, Domain: nonNegative()},
	Feature{Name: FieldSupplierReliabilityScore, Domain: realRange(0, 1)},
	Feature{Name: FieldLeadTimeDays, Domain: nonNegative()},
	Feature{Name: FieldTrafficCongestionLevel, Domain: realRange(0, 1)},
	Feature{Name: FieldWeatherConditionSeverity, Domain: realRange(0, 1)},
	Feature{Name: FieldRiskClassification, Domain: Domain{
		Kind:  DomainCategory,
		Max:   float64(RiskCritical),
		Codes: []int{RiskLow, RiskModerate, RiskHigh, RiskCritical},
	}},
)

// Schema returns the canonical feature schema.
func Schema() *FeatureSchema {
	return schema
}

// Len returns the number of features.
func (s *FeatureSchema) Len() int {
	return len(s.features)
}

// Names returns the feature names in schema order.
func (s *FeatureSchema) Names() []string {
	names := make([]string, len(s.features))
	for i, f := range s.features {
		names[i] = f.Name
	}
	return names
}

// Features returns a copy of the ordered feature list.
func (s *FeatureSchema) Features() []Feature {
	out := make([]Feature, len(s.features))
	copy(out, s.features)
	return out
}

// At returns the feature at position i.
func (s *FeatureSchema) At(i int) Feature {
	return s.features[i]
}

// Index returns the position of the named feature.
func (s *FeatureSchema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// CategoricalIndices returns the positions of categorical features.
func (s *FeatureSchema) CategoricalIndices() []int {
	var out []int
	for i, f := range s.features {
		if f.Categorical() {
			out = append(out, i)
		}
	}
	return out
}

// SameNames reports whether names matches the schema order exactly.
func (s *FeatureSchema) SameNames(names []string) bool {
	if len(names) != len(s.features) {
		return false
	}
	for i, f := range s.features {
		if names[i] != f.Name {
			return false
		}
	}
	return true
}

func isCalendarField(name string) bool {
	return name == FieldHour || name == FieldDayOfWeek || name == FieldMonth
}
