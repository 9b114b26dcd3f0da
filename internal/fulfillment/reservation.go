package fulfillment

import (
	"github.com/commercekit/fulfillment-engine/internal/models"
)

// LineRequest is one requested line item of an order.
type LineRequest struct {
	ProductID string  `json:"product_id" binding:"required"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
}

// ReservationLine is a line resolved against the locked catalog rows.
// Variant is nil when inventory is tracked at product granularity.
type ReservationLine struct {
	Request LineRequest
	Product *models.Product
	Variant *models.ProductVariant
}

// UnitPrice returns the base price the line sells at before dynamic pricing.
func (l ReservationLine) UnitPrice() float64 {
	if l.Variant != nil {
		return l.Variant.Price
	}
	return l.Product.Price
}

func (l ReservationLine) stockKey() string {
	if l.Variant != nil {
		return l.Product.ID + "/" + l.Variant.ID
	}
	return l.Product.ID
}

func (l ReservationLine) available() int {
	if l.Variant != nil {
		return l.Variant.Available()
	}
	return l.Product.Available()
}

// ValidateBatch is the pure validation phase of the two-phase reservation:
// every line is checked and all shortfalls are collected before any mutation
// is allowed. Quantities for the same product/variant are summed so a split
// cart cannot be promised more than the row holds.
func ValidateBatch(lines []ReservationLine) []StockShortfall {
	requested := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	byKey := make(map[string]ReservationLine, len(lines))

	for _, line := range lines {
		key := line.stockKey()
		if _, seen := requested[key]; !seen {
			order = append(order, key)
			byKey[key] = line
		}
		requested[key] += line.Request.Quantity
	}

	var shortfalls []StockShortfall
	for _, key := range order {
		line := byKey[key]
		want := requested[key]
		have := line.available()
		if want > have {
			sf := StockShortfall{
				ProductID: line.Product.ID,
				Requested: want,
				Available: have,
			}
			if line.Variant != nil {
				sf.VariantID = line.Variant.ID
			}
			shortfalls = append(shortfalls, sf)
		}
	}
	return shortfalls
}
