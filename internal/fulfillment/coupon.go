package fulfillment

import (
	"time"

	"github.com/commercekit/fulfillment-engine/internal/models"
)

// CouponResult is the outcome of evaluating a coupon against a subtotal.
// Rejection is a value, never an error: the order proceeds without discount.
type CouponResult struct {
	Applied      bool    `json:"applied"`
	Discount     float64 `json:"discount"`
	FreeShipping bool    `json:"free_shipping"`
	Reason       string  `json:"reason,omitempty"`
}

func rejected(reason string) CouponResult {
	return CouponResult{Reason: reason}
}

// EvaluateCoupon checks a coupon against the subtotal at a point in time and
// computes the discount it would grant. It is pure and side-effect free;
// usage is recorded only at final commit.
func EvaluateCoupon(coupon *models.Coupon, subtotal float64, now time.Time) CouponResult {
	if coupon == nil {
		return rejected("coupon not found")
	}
	if !coupon.IsActive {
		return rejected("coupon is not active")
	}
	if !coupon.WithinWindow(now) {
		return rejected("coupon is outside its validity window")
	}
	if coupon.Exhausted() {
		return rejected("coupon usage limit reached")
	}
	if subtotal < coupon.MinimumAmount {
		return rejected("subtotal below coupon minimum")
	}

	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		return CouponResult{Applied: true, Discount: round2(subtotal * coupon.Value / 100)}
	case models.DiscountTypeFixedAmount:
		discount := coupon.Value
		if discount > subtotal {
			discount = subtotal
		}
		return CouponResult{Applied: true, Discount: round2(discount)}
	case models.DiscountTypeFreeShipping:
		return CouponResult{Applied: true, FreeShipping: true}
	default:
		return rejected("unknown discount type")
	}
}
