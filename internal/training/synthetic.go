package training

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/sells-group/demand-forecast/internal/dataset"
	"github.com/sells-group/demand-forecast/internal/features"
)

// SyntheticColumns is the header of generated datasets. Calendar features
// are carried by the timestamp, as in historical exports.
var SyntheticColumns = []string{
	features.FieldTimestamp,
	features.FieldWarehouseInventoryLevel,
	features.FieldShippingCosts,
	features.FieldSupplierReliabilityScore,
	features.FieldLeadTimeDays,
	features.FieldTrafficCongestionLevel,
	features.FieldWeatherConditionSeverity,
	features.FieldRiskClassification,
	DefaultTargetColumn,
}

var syntheticEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// GenerateSynthetic returns n rows of plausible operational history. Demand
// is a fixed linear blend of the features plus N(0, 50) noise, so a fitted
// model has a known signal to recover. The same seed yields the same table.
func GenerateSynthetic(n int, seed int64) *dataset.Table {
	rnd := rand.New(rand.NewPCG(uint64(seed), 0x5eed))
	hoursIn2024 := 366 * 24

	t := &dataset.Table{Header: append([]string(nil), SyntheticColumns...)}
	for range n {
		ts := syntheticEpoch.Add(time.Duration(rnd.IntN(hoursIn2024))*time.Hour +
			time.Duration(rnd.IntN(60))*time.Minute)
		hour := ts.Hour()
		dow := (int(ts.Weekday()) + 6) % 7
		month := int(ts.Month())

		inventory := 100 + rnd.IntN(1900)
		cost := 50 + rnd.Float64()*950
		reliability := 0.5 + rnd.Float64()*0.5
		lead := 1 + rnd.IntN(14)
		traffic := rnd.Float64()
		weather := rnd.Float64()
		risk := rnd.IntN(4)

		demand := float64(hour)*10 +
			float64(dow)*15 +
			float64(month)*5 +
			float64(inventory)*0.5 +
			cost*0.3 +
			reliability*100 +
			float64(lead)*20 +
			traffic*50 +
			weather*30 +
			float64(risk)*25 +
			rnd.NormFloat64()*50

		t.Rows = append(t.Rows, []string{
			ts.Format("2006-01-02 15:04:05"),
			strconv.Itoa(inventory),
			formatFloat(cost),
			formatFloat(reliability),
			strconv.Itoa(lead),
			formatFloat(traffic),
			formatFloat(weather),
			features.RiskLabel(risk),
			formatFloat(demand),
		})
	}
	return t
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
