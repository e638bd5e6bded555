// Package advisor turns a demand forecast and its inputs into cost figures
// and ranked optimisation suggestions.
package advisor

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/sells-group/demand-forecast/internal/features"
)

// Cost weights for the impact breakdown.
var (
	inventoryCostPerUnit = decimal.RequireFromString("0.5")
	leadTimeCostPerDay   = decimal.NewFromInt(50)
	one                  = decimal.NewFromInt(1)
)

// CostImpact is the cost breakdown behind a forecast. All figures are
// rounded to cents.
type CostImpact struct {
	BaseCost      float64 `json:"base_cost"`
	InventoryCost float64 `json:"inventory_cost"`
	LeadTimeCost  float64 `json:"lead_time_cost"`
	TotalCost     float64 `json:"total_cost"`
	CostPerUnit   float64 `json:"cost_per_unit"`
}

// Impact computes the cost breakdown for a forecast. Cost per unit divides
// by the prediction, floored at one unit.
func Impact(prediction float64, rec features.Record) CostImpact {
	base := decimal.NewFromFloat(rec.ShippingCosts)
	inventory := decimal.NewFromFloat(rec.WarehouseInventoryLevel).Mul(inventoryCostPerUnit)
	leadTime := decimal.NewFromFloat(rec.LeadTimeDays).Mul(leadTimeCostPerDay)
	total := base.Add(inventory).Add(leadTime)

	units := decimal.Max(decimal.NewFromFloat(prediction), one)
	perUnit := total.DivRound(units, 16)

	return CostImpact{
		BaseCost:      cents(base),
		InventoryCost: cents(inventory),
		LeadTimeCost:  cents(leadTime),
		TotalCost:     cents(total),
		CostPerUnit:   cents(perUnit),
	}
}

// Priority ranks a suggestion.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Suggestion is one optimisation opportunity.
type Suggestion struct {
	ID               string   `json:"id"`
	Category         string   `json:"category"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Suggestion       string   `json:"suggestion"`
	PotentialSavings float64  `json:"potential_savings"`
	Priority         Priority `json:"priority"`
	Impact           string   `json:"impact"`
	Implementation   string   `json:"implementation"`
}

type rule struct {
	template Suggestion
	applies  func(rec features.Record) bool
	savings  func(prediction decimal.Decimal, rec features.Record) decimal.Decimal
}

var rules = []rule{
	{
		template: Suggestion{
			ID:             "inventory-reduction",
			Category:       "Inventory Management",
			Title:          "Reduce Warehouse Inventory",
			Description:    "Your warehouse inventory is high. Consider implementing just-in-time inventory management.",
			Suggestion:     "Reduce warehouse inventory levels to decrease storage costs",
			Priority:       PriorityHigh,
			Impact:         "Reduces storage costs and improves cash flow",
			Implementation: "Coordinate with suppliers for more frequent, smaller shipments",
		},
		applies: func(r features.Record) bool { return r.WarehouseInventoryLevel > 1000 },
		savings: func(_ decimal.Decimal, r features.Record) decimal.Decimal {
			return decimal.NewFromFloat(r.WarehouseInventoryLevel).Sub(decimal.NewFromInt(800)).Mul(inventoryCostPerUnit)
		},
	},
	{
		template: Suggestion{
			ID:             "shipping-negotiation",
			Category:       "Shipping Optimization",
			Title:          "Negotiate Better Shipping Rates",
			Description:    "Your shipping costs are high. Consolidate shipments or negotiate with carriers.",
			Suggestion:     "Consolidate shipments or negotiate better rates with carriers",
			Priority:       PriorityHigh,
			Impact:         "Direct reduction in transportation costs",
			Implementation: "Contact carriers for volume discounts or consolidate with other shippers",
		},
		applies: func(r features.Record) bool { return r.ShippingCosts > 500 },
		savings: func(_ decimal.Decimal, r features.Record) decimal.Decimal {
			return decimal.NewFromFloat(r.ShippingCosts).Mul(decimal.RequireFromString("0.15"))
		},
	},
	{
		template: Suggestion{
			ID:             "supplier-diversification",
			Category:       "Supplier Management",
			Title:          "Diversify Suppliers",
			Description:    "Low supplier reliability increases risk. Diversify your supplier base.",
			Suggestion:     "Diversify suppliers to improve reliability and reduce risk",
			Priority:       PriorityMedium,
			Impact:         "Reduces supply chain disruption risk",
			Implementation: "Identify and qualify alternative suppliers in your region",
		},
		applies: func(r features.Record) bool { return r.SupplierReliabilityScore < 0.7 },
		savings: func(p decimal.Decimal, _ features.Record) decimal.Decimal {
			return p.Mul(decimal.RequireFromString("0.1"))
		},
	},
	{
		template: Suggestion{
			ID:             "lead-time-reduction",
			Category:       "Lead Time Reduction",
			Title:          "Implement Just-in-Time Inventory",
			Description:    "Long lead times increase carrying costs. Reduce lead time through better planning.",
			Suggestion:     "Implement just-in-time inventory to reduce lead time",
			Priority:       PriorityMedium,
			Impact:         "Reduces inventory holding costs",
			Implementation: "Work with suppliers to establish faster delivery schedules",
		},
		applies: func(r features.Record) bool { return r.LeadTimeDays > 7 },
		savings: func(_ decimal.Decimal, r features.Record) decimal.Decimal {
			return decimal.NewFromFloat(r.LeadTimeDays).Mul(leadTimeCostPerDay)
		},
	},
	{
		template: Suggestion{
			ID:             "route-optimization",
			Category:       "Route Optimization",
			Title:          "Use AI-Powered Route Planning",
			Description:    "High traffic or weather impact. Use advanced route planning tools.",
			Suggestion:     "Use AI-powered route planning to avoid congestion and weather delays",
			Priority:       PriorityLow,
			Impact:         "Reduces delivery time and fuel costs",
			Implementation: "Implement real-time traffic and weather monitoring systems",
		},
		applies: func(r features.Record) bool {
			return r.TrafficCongestionLevel > 0.6 || r.WeatherConditionSeverity > 0.5
		},
		savings: func(p decimal.Decimal, _ features.Record) decimal.Decimal {
			return p.Mul(decimal.RequireFromString("0.08"))
		},
	},
}

// Suggestions returns the optimisations that apply to rec, highest priority
// first and, within a priority, largest savings first.
func Suggestions(prediction float64, rec features.Record) []Suggestion {
	p := decimal.NewFromFloat(prediction)
	out := make([]Suggestion, 0, len(rules))
	for _, r := range rules {
		if !r.applies(rec) {
			continue
		}
		s := r.template
		s.PotentialSavings = cents(r.savings(p, rec))
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b Suggestion) int {
		if d := a.Priority.rank() - b.Priority.rank(); d != 0 {
			return d
		}
		switch {
		case a.PotentialSavings > b.PotentialSavings:
			return -1
		case a.PotentialSavings < b.PotentialSavings:
			return 1
		}
		return 0
	})
	return out
}

// Insights bundles the decision support for one forecast.
type Insights struct {
	CostImpact            CostImpact   `json:"cost_impact"`
	Suggestions           []Suggestion `json:"suggestions"`
	TotalPotentialSavings float64      `json:"total_potential_savings"`
}

// Analyze computes the cost impact and suggestions for a forecast.
func Analyze(prediction float64, rec features.Record) Insights {
	suggestions := Suggestions(prediction, rec)
	return Insights{
		CostImpact:            Impact(prediction, rec),
		Suggestions:           suggestions,
		TotalPotentialSavings: TotalSavings(suggestions),
	}
}

// TotalSavings sums the potential savings of suggestions.
func TotalSavings(suggestions []Suggestion) float64 {
	total := decimal.Zero
	for _, s := range suggestions {
		total = total.Add(decimal.NewFromFloat(s.PotentialSavings))
	}
	return cents(total)
}

// ROI returns the percentage return of savings over an implementation cost,
// or 0 when the cost is zero.
func ROI(savings, implementationCost float64) float64 {
	c := decimal.NewFromFloat(implementationCost)
	if c.IsZero() {
		return 0
	}
	r := decimal.NewFromFloat(savings).Sub(c).Div(c).Mul(decimal.NewFromInt(100))
	return cents(r)
}

func cents(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
