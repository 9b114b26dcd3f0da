package fulfillment

import (
	"math"
	"time"

	"github.com/commercekit/fulfillment-engine/internal/models"
)

// PricingInput bundles the catalog/sales/account facts the calculator reads.
// All of it comes from the non-blocking read path and may be slightly stale.
type PricingInput struct {
	BasePrice         float64
	Stock             int
	LowStockThreshold int
	UnitsSoldLast7d   int
	Loyalty           *models.LoyaltyStats
	Month             time.Month
}

// PriceFactor is one applied multiplier, labeled for auditability.
type PriceFactor struct {
	Name       string  `json:"name"`
	Label      string  `json:"label"`
	Multiplier float64 `json:"multiplier"`
}

// PriceQuote is the result of a dynamic price computation.
type PriceQuote struct {
	ProductID          string        `json:"product_id"`
	BasePrice          float64       `json:"base_price"`
	DynamicPrice       float64       `json:"dynamic_price"`
	DiscountPercentage float64       `json:"discount_percentage"`
	Factors            []PriceFactor `json:"factors"`
}

// priceRule is one row of an ordered rule list: first matching row wins.
type priceRule struct {
	label      string
	multiplier float64
	applies    func(PricingInput) bool
}

var inventoryRules = []priceRule{
	{"low_stock", 1.10, func(in PricingInput) bool { return in.Stock <= in.LowStockThreshold }},
	{"overstock", 0.95, func(in PricingInput) bool { return in.Stock > 100 }},
	{"balanced_stock", 1.00, func(PricingInput) bool { return true }},
}

var demandRules = []priceRule{
	{"high_demand", 1.05, func(in PricingInput) bool { return in.UnitsSoldLast7d > 10 }},
	{"low_demand", 0.90, func(in PricingInput) bool { return in.UnitsSoldLast7d < 2 }},
	{"steady_demand", 1.00, func(PricingInput) bool { return true }},
}

var loyaltyRules = []priceRule{
	{"vip_customer", 0.90, func(in PricingInput) bool { return in.Loyalty != nil && in.Loyalty.TotalSpent > 1000 }},
	{"loyal_customer", 0.95, func(in PricingInput) bool { return in.Loyalty != nil && in.Loyalty.TotalSpent > 500 }},
	{"frequent_buyer", 0.97, func(in PricingInput) bool { return in.Loyalty != nil && in.Loyalty.OrdersCount > 5 }},
	{"standard_customer", 1.00, func(PricingInput) bool { return true }},
}

var seasonalRules = []priceRule{
	{"holiday_season", 1.05, func(in PricingInput) bool { return in.Month == time.November || in.Month == time.December }},
	{"regular_season", 1.00, func(PricingInput) bool { return true }},
}

func evalRules(name string, rules []priceRule, in PricingInput) PriceFactor {
	for _, r := range rules {
		if r.applies(in) {
			return PriceFactor{Name: name, Label: r.label, Multiplier: r.multiplier}
		}
	}
	return PriceFactor{Name: name, Label: "neutral", Multiplier: 1.00}
}

// ComputePrice folds the four factor rule lists into a dynamic price.
// Rounding to 2 decimal places happens at the final step only.
func ComputePrice(in PricingInput) PriceQuote {
	factors := []PriceFactor{
		evalRules("inventory", inventoryRules, in),
		evalRules("demand", demandRules, in),
		evalRules("loyalty", loyaltyRules, in),
		evalRules("seasonal", seasonalRules, in),
	}

	dynamic := in.BasePrice
	for _, f := range factors {
		dynamic *= f.Multiplier
	}

	quote := PriceQuote{
		BasePrice:    in.BasePrice,
		DynamicPrice: round2(dynamic),
		Factors:      factors,
	}
	if in.BasePrice > 0 {
		quote.DiscountPercentage = round2((in.BasePrice - dynamic) / in.BasePrice * 100)
	}
	return quote
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
