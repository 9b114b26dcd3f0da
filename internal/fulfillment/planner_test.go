package fulfillment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanReorder_HighUrgencyScenario(t *testing.T) {
	// 60 units over 30 days → 2/day; safety max(6, 5)=6; reorder point
	// 2×7+6=20; stock 5 ≤ 10 (half the reorder point) → HIGH.
	plan := PlanReorder(ProductSalesFact{
		ProductID:    "p1",
		CurrentStock: 5,
		UnitsSold30d: 60,
	})

	assert.Equal(t, 2.0, plan.AvgDailySales)
	assert.Equal(t, 6.0, plan.SafetyStock)
	assert.Equal(t, 20.0, plan.ReorderPoint)
	assert.Equal(t, 60.0, plan.SuggestedOrderQuantity)
	assert.Equal(t, UrgencyHigh, plan.Urgency)
}

func TestPlanReorder_Floors(t *testing.T) {
	// A product with no sales still gets the safety stock and order floors.
	plan := PlanReorder(ProductSalesFact{ProductID: "p1", CurrentStock: 50})

	assert.Equal(t, 0.0, plan.AvgDailySales)
	assert.Equal(t, 5.0, plan.SafetyStock)
	assert.Equal(t, 5.0, plan.ReorderPoint)
	assert.Equal(t, 10.0, plan.SuggestedOrderQuantity)
	assert.Equal(t, UrgencyLow, plan.Urgency)
}

func TestClassifyUrgency(t *testing.T) {
	tests := []struct {
		name         string
		stock        int
		reorderPoint float64
		want         string
	}{
		{"zero stock is critical", 0, 20, UrgencyCritical},
		{"negative stock is critical", -3, 20, UrgencyCritical},
		{"at half the reorder point", 10, 20, UrgencyHigh},
		{"between half and the reorder point", 15, 20, UrgencyMedium},
		{"exactly at the reorder point", 20, 20, UrgencyMedium},
		{"comfortably above", 21, 20, UrgencyLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyUrgency(tt.stock, tt.reorderPoint))
		})
	}
}

func TestSortByUrgency(t *testing.T) {
	report := []ReorderSuggestion{
		{ProductID: "low", CurrentStock: 100, ReorderPoint: 10, Urgency: UrgencyLow},
		{ProductID: "critical", CurrentStock: 0, ReorderPoint: 20, Urgency: UrgencyCritical},
		{ProductID: "high-b", CurrentStock: 5, ReorderPoint: 20, Urgency: UrgencyHigh},
		{ProductID: "high-a", CurrentStock: 2, ReorderPoint: 20, Urgency: UrgencyHigh},
	}

	sortByUrgency(report)

	assert.Equal(t, "critical", report[0].ProductID)
	assert.Equal(t, "high-a", report[1].ProductID, "bigger gap to the reorder point sorts first within a tier")
	assert.Equal(t, "high-b", report[2].ProductID)
	assert.Equal(t, "low", report[3].ProductID)
}
