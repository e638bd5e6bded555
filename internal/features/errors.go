package features

import "fmt"

// MissingFieldError reports a schema field absent from a record.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing required feature: '%s'. Check feature names.", e.Field)
}

// OutOfRangeError reports a present field whose value violates its domain.
// Values of the wrong type are reported the same way.
type OutOfRangeError struct {
	Field  string
	Value  any
	Domain Domain
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("Invalid value for '%s': %v is outside %s %s", e.Field, e.Value, e.Domain.Kind, e.Domain)
}

// MissingTimestampError is returned by Derive when a record carries neither the
// calendar fields nor a timestamp to derive them from.
type MissingTimestampError struct{}

func (e *MissingTimestampError) Error() string {
	return fmt.Sprintf("record needs either '%s', '%s' and '%s' or a '%s'",
		FieldHour, FieldDayOfWeek, FieldMonth, FieldTimestamp)
}

// InvalidTimestampError reports a timestamp that matches no accepted layout.
type InvalidTimestampError struct {
	Value any
}

func (e *InvalidTimestampError) Error() string {
	return fmt.Sprintf("cannot parse '%s' value %q", FieldTimestamp, fmt.Sprint(e.Value))
}

// UnknownCategoryError reports a categorical label with no known code.
type UnknownCategoryError struct {
	Field string
	Value any
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("Unknown category for '%s': %q", e.Field, fmt.Sprint(e.Value))
}
