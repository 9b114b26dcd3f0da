package models

import "time"

// OrderStatus values an order can hold inside this engine.
const (
	OrderStatusPending   = "pending"
	OrderStatusCancelled = "cancelled"
)

// Address is snapshotted onto the order as an immutable payload.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order is the committed result of a place-order request.
type Order struct {
	ID              string    `json:"id" db:"id"`
	OrderNumber     string    `json:"order_number" db:"order_number"`
	UserID          string    `json:"user_id" db:"user_id"`
	Subtotal        float64   `json:"subtotal" db:"subtotal"`
	TaxAmount       float64   `json:"tax_amount" db:"tax_amount"`
	ShippingAmount  float64   `json:"shipping_amount" db:"shipping_amount"`
	DiscountAmount  float64   `json:"discount_amount" db:"discount_amount"`
	TotalAmount     float64   `json:"total_amount" db:"total_amount"`
	Status          string    `json:"status" db:"status"`
	ShippingAddress Address   `json:"shipping_address" db:"shipping_address"`
	BillingAddress  Address   `json:"billing_address" db:"billing_address"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// NewOrder creates a pending order with its monetary fields already settled.
func NewOrder(id, number, userID string, subtotal, tax, shipping, discount float64, shipTo Address, billTo Address) *Order {
	now := time.Now()
	return &Order{
		ID:              id,
		OrderNumber:     number,
		UserID:          userID,
		Subtotal:        subtotal,
		TaxAmount:       tax,
		ShippingAmount:  shipping,
		DiscountAmount:  discount,
		TotalAmount:     subtotal + tax + shipping - discount,
		Status:          OrderStatusPending,
		ShippingAddress: shipTo,
		BillingAddress:  billTo,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// OrderItem stores an immutable snapshot of what was sold, so historical
// orders survive future catalog edits.
type OrderItem struct {
	ID           string  `json:"id" db:"id"`
	OrderID      string  `json:"order_id" db:"order_id"`
	ProductID    string  `json:"product_id" db:"product_id"`
	VariantID    *string `json:"variant_id,omitempty" db:"variant_id"`
	ProductName  string  `json:"product_name" db:"product_name"`
	ProductSKU   string  `json:"product_sku" db:"product_sku"`
	VariantTitle string  `json:"variant_title" db:"variant_title"`
	UnitPrice    float64 `json:"unit_price" db:"unit_price"`
	Quantity     int     `json:"quantity" db:"quantity"`
	TotalPrice   float64 `json:"total_price" db:"total_price"`
}

// CartItem is a pending line in the user's cart, cleared after commit.
type CartItem struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	ProductID string    `json:"product_id" db:"product_id"`
	VariantID *string   `json:"variant_id,omitempty" db:"variant_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
