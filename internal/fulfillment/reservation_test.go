package fulfillment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/commercekit/fulfillment-engine/internal/models"
)

func productLine(productID string, stock, qty int) ReservationLine {
	return ReservationLine{
		Request: LineRequest{ProductID: productID, Quantity: qty},
		Product: &models.Product{ID: productID, InventoryQuantity: stock, IsActive: true},
	}
}

func variantLine(productID, variantID string, stock, qty int) ReservationLine {
	return ReservationLine{
		Request: LineRequest{ProductID: productID, VariantID: &variantID, Quantity: qty},
		Product: &models.Product{ID: productID, InventoryQuantity: 999, IsActive: true},
		Variant: &models.ProductVariant{ID: variantID, ProductID: productID, InventoryQuantity: stock},
	}
}

func TestValidateBatch_AllSatisfiable(t *testing.T) {
	shortfalls := ValidateBatch([]ReservationLine{
		productLine("p1", 10, 3),
		variantLine("p2", "v1", 5, 5),
	})
	assert.Empty(t, shortfalls)
}

func TestValidateBatch_CollectsEveryShortfall(t *testing.T) {
	shortfalls := ValidateBatch([]ReservationLine{
		productLine("p1", 2, 5),
		productLine("p2", 10, 3),
		variantLine("p3", "v1", 0, 1),
	})

	assert.Len(t, shortfalls, 2, "both failing lines reported, passing line not")
	assert.Equal(t, StockShortfall{ProductID: "p1", Requested: 5, Available: 2}, shortfalls[0])
	assert.Equal(t, StockShortfall{ProductID: "p3", VariantID: "v1", Requested: 1, Available: 0}, shortfalls[1])
	assert.Equal(t, 3, shortfalls[0].Missing())
}

func TestValidateBatch_SplitCartLinesAreSummed(t *testing.T) {
	// Two lines for the same product must be validated against the row
	// once, with their quantities combined.
	product := &models.Product{ID: "p1", InventoryQuantity: 5, IsActive: true}
	lines := []ReservationLine{
		{Request: LineRequest{ProductID: "p1", Quantity: 3}, Product: product},
		{Request: LineRequest{ProductID: "p1", Quantity: 3}, Product: product},
	}

	shortfalls := ValidateBatch(lines)

	assert.Len(t, shortfalls, 1)
	assert.Equal(t, 6, shortfalls[0].Requested)
	assert.Equal(t, 5, shortfalls[0].Available)
}

func TestValidateBatch_ReservedStockIsUnavailable(t *testing.T) {
	line := ReservationLine{
		Request: LineRequest{ProductID: "p1", Quantity: 4},
		Product: &models.Product{ID: "p1", InventoryQuantity: 10, ReservedQuantity: 7, IsActive: true},
	}

	shortfalls := ValidateBatch([]ReservationLine{line})

	assert.Len(t, shortfalls, 1)
	assert.Equal(t, 3, shortfalls[0].Available)
}

func TestInsufficientStockError_EnumeratesAll(t *testing.T) {
	err := &InsufficientStockError{Shortfalls: []StockShortfall{
		{ProductID: "p1", Requested: 5, Available: 2},
		{ProductID: "p2", VariantID: "v9", Requested: 1, Available: 0},
	}}

	msg := err.Error()
	assert.Contains(t, msg, "p1: requested 5, available 2 (short 3)")
	assert.Contains(t, msg, "p2/v9: requested 1, available 0 (short 1)")
}
