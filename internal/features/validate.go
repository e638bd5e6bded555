package features

import (
	"encoding/json"
	"math"
	"strings"
)

// RawRecord is an untyped operational record as received at the system
// boundary: a decoded JSON body or a dataset row.
type RawRecord map[string]any

// Validate checks raw against the schema. All presence checks run before any
// domain check, and the first violation found in schema order is returned.
// Calendar fields count as present when the record carries a timestamp.
func Validate(raw RawRecord) error {
	hasTimestamp := raw.hasTimestamp()
	for _, f := range schema.features {
		if _, ok := raw[f.Name]; ok {
			continue
		}
		if hasTimestamp && isCalendarField(f.Name) {
			continue
		}
		return &MissingFieldError{Field: f.Name}
	}

	for _, f := range schema.features {
		v, ok := raw[f.Name]
		if !ok {
			continue
		}
		if _, err := f.value(v); err != nil {
			return err
		}
	}
	return nil
}

func (r RawRecord) hasTimestamp() bool {
	v, ok := r[FieldTimestamp]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// value coerces a raw value into the feature's numeric representation and
// checks it against the domain.
func (f Feature) value(v any) (float64, error) {
	if f.Categorical() {
		if s, ok := v.(string); ok {
			code, err := NormalizeRiskLabel(s)
			if err != nil {
				return 0, err
			}
			return float64(code), nil
		}
	}

	x, ok := toFloat(v)
	if !ok || !f.Domain.Contains(x) {
		return 0, &OutOfRangeError{Field: f.Name, Value: v, Domain: f.Domain}
	}
	return x, nil
}

// toFloat accepts the numeric types produced by encoding/json, dataset
// loaders and Go callers. Strings and booleans are not numbers here.
func toFloat(v any) (float64, bool) {
	var x float64
	switch n := v.(type) {
	case float64:
		x = n
	case float32:
		x = float64(n)
	case int:
		x = float64(n)
	case int8:
		x = float64(n)
	case int16:
		x = float64(n)
	case int32:
		x = float64(n)
	case int64:
		x = float64(n)
	case uint:
		x = float64(n)
	case uint8:
		x = float64(n)
	case uint16:
		x = float64(n)
	case uint32:
		x = float64(n)
	case uint64:
		x = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		x = f
	default:
		return 0, false
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}
