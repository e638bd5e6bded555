package features

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() RawRecord {
	return RawRecord{
		"hour":                       9,
		"day_of_week":                2,
		"month":                      6,
		"warehouse_inventory_level":  600.0,
		"shipping_costs":             350.0,
		"supplier_reliability_score": 0.98,
		"lead_time_days":             4,
		"traffic_congestion_level":   0.5,
		"weather_condition_severity": 0.1,
		"risk_classification":        0,
	}
}

func TestSchemaOrder(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{
		"hour", "day_of_week", "month", "warehouse_inventory_level",
		"shipping_costs", "supplier_reliability_score", "lead_time_days",
		"traffic_congestion_level", "weather_condition_severity",
		"risk_classification",
	}, Schema().Names())
	assert.Equal(t, 10, Schema().Len())
	assert.Equal(t, []int{9}, Schema().CategoricalIndices())

	i, ok := Schema().Index(FieldLeadTimeDays)
	require.True(t, ok)
	assert.Equal(t, 6, i)
	_, ok = Schema().Index("timestamp")
	assert.False(t, ok)
}

func TestSchemaSameNames(t *testing.T) {
	t.Parallel()
	names := Schema().Names()
	assert.True(t, Schema().SameNames(names))

	swapped := append([]string(nil), names...)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	assert.False(t, Schema().SameNames(swapped))
	assert.False(t, Schema().SameNames(names[:9]))
}

func TestDomainString(t *testing.T) {
	t.Parallel()
	f := Schema().At(0)
	assert.Equal(t, "[0, 23]", f.Domain.String())
	assert.Equal(t, ">= 0", Schema().At(3).Domain.String())
	assert.Equal(t, "{0, 1, 2, 3}", Schema().At(9).Domain.String())
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()
	require.NoError(t, Validate(validRaw()))
}

func TestValidate_MissingEachField(t *testing.T) {
	t.Parallel()
	for _, name := range Schema().Names() {
		t.Run(name, func(t *testing.T) {
			raw := validRaw()
			delete(raw, name)

			err := Validate(raw)
			var missing *MissingFieldError
			require.True(t, errors.As(err, &missing), "got %v", err)
			assert.Equal(t, name, missing.Field)
		})
	}
}

func TestValidate_MissingReportedBeforeRange(t *testing.T) {
	t.Parallel()
	raw := validRaw()
	raw["hour"] = 99
	delete(raw, "lead_time_days")

	err := Validate(raw)
	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "lead_time_days", missing.Field)
	assert.Equal(t, "Missing required feature: 'lead_time_days'. Check feature names.", err.Error())
}

func TestValidate_Domains(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		field string
		value any
		ok    bool
	}{
		{"hour 23 ok", "hour", 23, true},
		{"hour 24", "hour", 24, false},
		{"hour negative", "hour", -1, false},
		{"hour fractional", "hour", 9.5, false},
		{"hour string", "hour", "9", false},
		{"day_of_week 6 ok", "day_of_week", 6, true},
		{"day_of_week 7", "day_of_week", 7, false},
		{"month 0", "month", 0, false},
		{"month 12 ok", "month", 12, true},
		{"month 13", "month", 13, false},
		{"inventory negative", "warehouse_inventory_level", -0.01, false},
		{"inventory large ok", "warehouse_inventory_level", 1e9, true},
		{"shipping negative", "shipping_costs", -5, false},
		{"reliability above one", "supplier_reliability_score", 1.01, false},
		{"reliability zero ok", "supplier_reliability_score", 0, true},
		{"lead time negative", "lead_time_days", -1, false},
		{"traffic above one", "traffic_congestion_level", 1.5, false},
		{"weather NaN", "weather_condition_severity", math.NaN(), false},
		{"risk 3 ok", "risk_classification", 3, true},
		{"risk 4", "risk_classification", 4, false},
		{"risk fractional", "risk_classification", 1.5, false},
		{"risk label ok", "risk_classification", "High Risk", true},
		{"null value", "shipping_costs", nil, false},
		{"bool value", "shipping_costs", true, false},
		{"json number ok", "shipping_costs", json.Number("350.5"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			raw[tt.field] = tt.value
			err := Validate(raw)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var oor *OutOfRangeError
			require.True(t, errors.As(err, &oor), "got %v", err)
			assert.Equal(t, tt.field, oor.Field)
		})
	}
}

func TestValidate_UnknownLabel(t *testing.T) {
	t.Parallel()
	raw := validRaw()
	raw["risk_classification"] = "Extreme Risk"

	err := Validate(raw)
	var unknown *UnknownCategoryError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Extreme Risk", unknown.Value)
}

func TestValidate_TimestampCoversCalendar(t *testing.T) {
	t.Parallel()
	raw := validRaw()
	delete(raw, "hour")
	delete(raw, "day_of_week")
	delete(raw, "month")
	raw["timestamp"] = "2024-06-05 09:30:00"
	require.NoError(t, Validate(raw))

	raw["timestamp"] = "   "
	var missing *MissingFieldError
	require.True(t, errors.As(Validate(raw), &missing))
	assert.Equal(t, "hour", missing.Field)
}

func TestDerive_Passthrough(t *testing.T) {
	t.Parallel()
	vec, err := Derive(validRaw())
	require.NoError(t, err)
	assert.Equal(t, Vector{9, 2, 6, 600, 350, 0.98, 4, 0.5, 0.1, 0}, vec)
}

func TestDerive_FromTimestamp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name             string
		ts               any
		hour, dow, month float64
	}{
		{"space layout wednesday", "2024-06-05 09:30:00", 9, 2, 6},
		{"rfc3339 sunday", "2024-06-09T23:10:00Z", 23, 6, 6},
		{"date only monday", "2024-01-01", 0, 0, 1},
		{"offset keeps wall clock", "2024-12-31T18:00:00-05:00", 18, 1, 12},
		{"time value", time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC), 14, 4, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			delete(raw, "hour")
			delete(raw, "day_of_week")
			delete(raw, "month")
			raw["timestamp"] = tt.ts

			vec, err := Derive(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.hour, vec[0])
			assert.Equal(t, tt.dow, vec[1])
			assert.Equal(t, tt.month, vec[2])
		})
	}
}

func TestDerive_PartialCalendarUsesTimestamp(t *testing.T) {
	t.Parallel()
	raw := validRaw()
	delete(raw, "month")
	raw["timestamp"] = "2024-02-10 05:00:00"

	vec, err := Derive(raw)
	require.NoError(t, err)
	assert.Equal(t, Vector{5, 5, 2}, vec[:3])
}

func TestDerive_MissingTimestamp(t *testing.T) {
	t.Parallel()
	raw := validRaw()
	delete(raw, "hour")

	_, err := Derive(raw)
	var mt *MissingTimestampError
	assert.True(t, errors.As(err, &mt))
}

func TestDerive_InvalidTimestamp(t *testing.T) {
	t.Parallel()
	raw := validRaw()
	delete(raw, "hour")
	raw["timestamp"] = "next tuesday"

	_, err := Derive(raw)
	var it *InvalidTimestampError
	assert.True(t, errors.As(err, &it))
}

func TestDerive_RiskLabels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		value any
		want  float64
	}{
		{"Low Risk", 0},
		{"  low   RISK ", 0},
		{"Moderate Risk", 1},
		{"HIGH", 2},
		{"Critical Risk", 3},
		{"2", 2},
		{2, 2},
		{json.Number("3"), 3},
	}
	for _, tt := range tests {
		raw := validRaw()
		raw["risk_classification"] = tt.value
		vec, err := Derive(raw)
		require.NoError(t, err, "value %v", tt.value)
		assert.Equal(t, tt.want, vec[9], "value %v", tt.value)
	}

	raw := validRaw()
	raw["risk_classification"] = "Unknown Risk"
	_, err := Derive(raw)
	var unknown *UnknownCategoryError
	assert.True(t, errors.As(err, &unknown))

	raw["risk_classification"] = "7"
	_, err = Derive(raw)
	var oor *OutOfRangeError
	assert.True(t, errors.As(err, &oor))
}

func TestDerive_IgnoresKeyOrderAndExtras(t *testing.T) {
	t.Parallel()
	names := Schema().Names()
	want, err := Derive(validRaw())
	require.NoError(t, err)

	// Build the same record by inserting keys in reverse order plus an extra key.
	base := validRaw()
	rev := RawRecord{"notes": "ignored"}
	for i := len(names) - 1; i >= 0; i-- {
		rev[names[i]] = base[names[i]]
	}
	got, err := Derive(rev)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()
	rec, err := Parse(validRaw())
	require.NoError(t, err)
	assert.Equal(t, Record{
		Hour: 9, DayOfWeek: 2, Month: 6,
		WarehouseInventoryLevel: 600, ShippingCosts: 350,
		SupplierReliabilityScore: 0.98, LeadTimeDays: 4,
		TrafficCongestionLevel: 0.5, WeatherConditionSeverity: 0.1,
		RiskClassification: 0,
	}, rec)

	vec, err := Derive(validRaw())
	require.NoError(t, err)
	assert.Equal(t, vec, rec.Vector())

	again, err := Parse(rec.Raw())
	require.NoError(t, err)
	assert.Equal(t, rec, again)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	raw := validRaw()
	raw["month"] = 13
	_, err := Parse(raw)
	var oor *OutOfRangeError
	require.True(t, errors.As(err, &oor))
	assert.Equal(t, "month", oor.Field)
	assert.Contains(t, err.Error(), "[1, 12]")
}

func TestRecordFromVector_WrongLength(t *testing.T) {
	t.Parallel()
	_, err := RecordFromVector(Vector{1, 2, 3})
	assert.Error(t, err)
}

func TestRiskLabel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Low Risk", RiskLabel(RiskLow))
	assert.Equal(t, "Critical Risk", RiskLabel(RiskCritical))
	assert.Equal(t, "", RiskLabel(9))
}
