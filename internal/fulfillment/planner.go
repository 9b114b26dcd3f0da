package fulfillment

// Reorder planner constants: trailing sales window, supplier lead time and
// the floors applied to safety stock and suggested order size.
const (
	velocityWindowDays = 30
	leadTimeDays       = 7
	minSafetyStock     = 5.0
	minSuggestedOrder  = 10.0
)

// Urgency tiers, most pressing first.
const (
	UrgencyCritical = "CRITICAL"
	UrgencyHigh     = "HIGH"
	UrgencyMedium   = "MEDIUM"
	UrgencyLow      = "LOW"
)

// ProductSalesFact is the read-only input per trackable, active product:
// current stock plus total units sold over the trailing 30 days.
type ProductSalesFact struct {
	ProductID    string
	ProductName  string
	CurrentStock int
	UnitsSold30d int
}

// ReorderSuggestion is one row of the reorder report.
type ReorderSuggestion struct {
	ProductID              string  `json:"product_id"`
	ProductName            string  `json:"product_name"`
	CurrentStock           int     `json:"current_stock"`
	AvgDailySales          float64 `json:"avg_daily_sales"`
	SafetyStock            float64 `json:"safety_stock"`
	ReorderPoint           float64 `json:"reorder_point"`
	SuggestedOrderQuantity float64 `json:"suggested_order_quantity"`
	Urgency                string  `json:"urgency"`
}

// PlanReorder computes the reorder point for one product. Days without sales
// count as zero in the velocity average.
func PlanReorder(fact ProductSalesFact) ReorderSuggestion {
	avgDaily := float64(fact.UnitsSold30d) / velocityWindowDays

	safety := avgDaily * 3
	if safety < minSafetyStock {
		safety = minSafetyStock
	}

	reorderPoint := avgDaily*leadTimeDays + safety

	suggested := avgDaily * velocityWindowDays
	if suggested < minSuggestedOrder {
		suggested = minSuggestedOrder
	}

	return ReorderSuggestion{
		ProductID:              fact.ProductID,
		ProductName:            fact.ProductName,
		CurrentStock:           fact.CurrentStock,
		AvgDailySales:          round2(avgDaily),
		SafetyStock:            round2(safety),
		ReorderPoint:           round2(reorderPoint),
		SuggestedOrderQuantity: round2(suggested),
		Urgency:                classifyUrgency(fact.CurrentStock, reorderPoint),
	}
}

// classifyUrgency applies the tiers in priority order.
func classifyUrgency(stock int, reorderPoint float64) string {
	switch {
	case stock <= 0:
		return UrgencyCritical
	case float64(stock) <= 0.5*reorderPoint:
		return UrgencyHigh
	case float64(stock) <= reorderPoint:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}
