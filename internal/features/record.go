package features

import "github.com/rotisserie/eris"

// Record is the typed form of a validated, derived operational snapshot.
type Record struct {
	Hour                     int     `json:"hour"`
	DayOfWeek                int     `json:"day_of_week"`
	Month                    int     `json:"month"`
	WarehouseInventoryLevel  float64 `json:"warehouse_inventory_level"`
	ShippingCosts            float64 `json:"shipping_costs"`
	SupplierReliabilityScore float64 `json:"supplier_reliability_score"`
	LeadTimeDays             float64 `json:"lead_time_days"`
	TrafficCongestionLevel   float64 `json:"traffic_congestion_level"`
	WeatherConditionSeverity float64 `json:"weather_condition_severity"`
	RiskClassification       int     `json:"risk_classification"`
}

// Parse validates raw and derives its typed record. It either returns a fully
// populated Record or the first validation/derivation error.
func Parse(raw RawRecord) (Record, error) {
	if err := Validate(raw); err != nil {
		return Record{}, err
	}
	vec, err := Derive(raw)
	if err != nil {
		return Record{}, err
	}
	return RecordFromVector(vec)
}

// RecordFromVector maps a schema-ordered vector onto a Record.
func RecordFromVector(vec Vector) (Record, error) {
	if len(vec) != schema.Len() {
		return Record{}, eris.Errorf("features: vector has %d values, schema has %d", len(vec), schema.Len())
	}
	var r Record
	for i, f := range schema.features {
		r.set(f.Name, vec[i])
	}
	return r, nil
}

// Vector returns the record's values in schema order.
func (r Record) Vector() Vector {
	vec := make(Vector, schema.Len())
	for i, f := range schema.features {
		vec[i] = r.get(f.Name)
	}
	return vec
}

// Raw returns the record as a boundary payload keyed by feature name.
func (r Record) Raw() RawRecord {
	raw := make(RawRecord, schema.Len())
	for _, f := range schema.features {
		raw[f.Name] = r.get(f.Name)
	}
	return raw
}

func (r Record) get(name string) float64 {
	switch name {
	case FieldHour:
		return float64(r.Hour)
	case FieldDayOfWeek:
		return float64(r.DayOfWeek)
	case FieldMonth:
		return float64(r.Month)
	case FieldWarehouseInventoryLevel:
		return r.WarehouseInventoryLevel
	case FieldShippingCosts:
		return r.ShippingCosts
	case FieldSupplierReliabilityScore:
		return r.SupplierReliabilityScore
	case FieldLeadTimeDays:
		return r.LeadTimeDays
	case FieldTrafficCongestionLevel:
		return r.TrafficCongestionLevel
	case FieldWeatherConditionSeverity:
		return r.WeatherConditionSeverity
	case FieldRiskClassification:
		return float64(r.RiskClassification)
	}
	panic("features: record has no field " + name)
}

func (r *Record) set(name string, v float64) {
	switch name {
	case FieldHour:
		r.Hour = int(v)
	case FieldDayOfWeek:
		r.DayOfWeek = int(v)
	case FieldMonth:
		r.Month = int(v)
	case FieldWarehouseInventoryLevel:
		r.WarehouseInventoryLevel = v
	case FieldShippingCosts:
		r.ShippingCosts = v
	case FieldSupplierReliabilityScore:
		r.SupplierReliabilityScore = v
	case FieldLeadTimeDays:
		r.LeadTimeDays = v
	case FieldTrafficCongestionLevel:
		r.TrafficCongestionLevel = v
	case FieldWeatherConditionSeverity:
		r.WeatherConditionSeverity = v
	case FieldRiskClassification:
		r.RiskClassification = int(v)
	default:
		panic("features: record has no field " + name)
	}
}
