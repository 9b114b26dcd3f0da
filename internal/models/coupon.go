package models

import "time"

// Discount types a coupon can carry.
const (
	DiscountTypePercentage   = "percentage"
	DiscountTypeFixedAmount  = "fixed_amount"
	DiscountTypeFreeShipping = "free_shipping"
)

// Coupon is the promotional record evaluated against a cart subtotal.
type Coupon struct {
	ID            string     `json:"id" db:"id"`
	Code          string     `json:"code" db:"code"`
	DiscountType  string     `json:"discount_type" db:"discount_type"`
	Value         float64    `json:"value" db:"value"`
	MinimumAmount float64    `json:"minimum_amount" db:"minimum_amount"`
	UsageLimit    *int       `json:"usage_limit,omitempty" db:"usage_limit"`
	UsageCount    int        `json:"usage_count" db:"usage_count"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	StartsAt      *time.Time `json:"starts_at,omitempty" db:"starts_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// WithinWindow reports whether now falls inside the coupon's validity window.
func (c *Coupon) WithinWindow(now time.Time) bool {
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	return true
}

// Exhausted reports whether the usage limit, if any, has been reached.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit
}

// CouponUsage links a coupon to the order that consumed it. Created only on
// successful commit, one per (coupon, order) pair.
type CouponUsage struct {
	ID             string    `json:"id" db:"id"`
	CouponID       string    `json:"coupon_id" db:"coupon_id"`
	OrderID        string    `json:"order_id" db:"order_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	DiscountAmount float64   `json:"discount_amount" db:"discount_amount"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
