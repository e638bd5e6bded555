package features

import (
	"strings"
	"time"
)

// Vector is a feature vector aligned 1:1 with the schema. The categorical slot
// holds the integer risk code.
type Vector []float64

// timestampLayouts are tried in order when parsing a string timestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp converts a raw timestamp value into a time. Strings without a
// zone are read as UTC.
func ParseTimestamp(v any) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts, nil
	case string:
		s := strings.TrimSpace(ts)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, &InvalidTimestampError{Value: v}
}

// calendar holds the time features derived from a timestamp.
type calendar struct {
	hour, dayOfWeek, month int
}

func calendarOf(t time.Time) calendar {
	return calendar{
		hour: t.Hour(),
		// time.Weekday counts from Sunday; the schema counts from Monday.
		dayOfWeek: (int(t.Weekday()) + 6) % 7,
		month:     int(t.Month()),
	}
}

func (c calendar) field(name string) float64 {
	switch name {
	case FieldHour:
		return float64(c.hour)
	case FieldDayOfWeek:
		return float64(c.dayOfWeek)
	default:
		return float64(c.month)
	}
}

// Derive expands raw into the canonical vector in schema order. When any
// calendar field is missing, all three are derived from the timestamp.
func Derive(raw RawRecord) (Vector, error) {
	var cal *calendar
	if !raw.hasCalendar() {
		if !raw.hasTimestamp() {
			return nil, &MissingTimestampError{}
		}
		t, err := ParseTimestamp(raw[FieldTimestamp])
		if err != nil {
			return nil, err
		}
		c := calendarOf(t)
		cal = &c
	}

	vec := make(Vector, schema.Len())
	for i, f := range schema.features {
		if cal != nil && isCalendarField(f.Name) {
			vec[i] = cal.field(f.Name)
			continue
		}
		v, ok := raw[f.Name]
		if !ok {
			return nil, &MissingFieldError{Field: f.Name}
		}
		x, err := f.value(v)
		if err != nil {
			return nil, err
		}
		vec[i] = x
	}
	return vec, nil
}

func (r RawRecord) hasCalendar() bool {
	for _, f := range schema.features {
		if !isCalendarField(f.Name) {
			continue
		}
		if _, ok := r[f.Name]; !ok {
			return false
		}
	}
	return true
}
