package models

import "time"

// Product is the catalog-owned record this engine reads and whose stock
// counters it mutates at reservation/restock time.
type Product struct {
	ID                string    `json:"id" db:"id"`
	SKU               string    `json:"sku" db:"sku"`
	Name              string    `json:"name" db:"name"`
	Price             float64   `json:"price" db:"price"`
	Category          string    `json:"category" db:"category"`
	Brand             string    `json:"brand" db:"brand"`
	InventoryQuantity int       `json:"inventory_quantity" db:"inventory_quantity"`
	ReservedQuantity  int       `json:"reserved_quantity" db:"reserved_quantity"`
	LowStockThreshold int       `json:"low_stock_threshold" db:"low_stock_threshold"`
	IsActive          bool      `json:"is_active" db:"is_active"`
	TrackInventory    bool      `json:"track_inventory" db:"track_inventory"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Available returns the stock that can still be promised to new orders.
func (p *Product) Available() int {
	return p.InventoryQuantity - p.ReservedQuantity
}

// ProductVariant is a purchasable configuration of a product with its own
// price and stock. When a line item names a variant, inventory is tracked
// here and never on the parent product.
type ProductVariant struct {
	ID                string    `json:"id" db:"id"`
	ProductID         string    `json:"product_id" db:"product_id"`
	SKU               string    `json:"sku" db:"sku"`
	Title             string    `json:"title" db:"title"`
	Price             float64   `json:"price" db:"price"`
	InventoryQuantity int       `json:"inventory_quantity" db:"inventory_quantity"`
	ReservedQuantity  int       `json:"reserved_quantity" db:"reserved_quantity"`
	Options           string    `json:"options" db:"options"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Available returns the variant stock that can still be promised.
func (v *ProductVariant) Available() int {
	return v.InventoryQuantity - v.ReservedQuantity
}

// LoyaltyStats is the account-store view of a customer used by the pricing
// calculator and the recommendation scorer.
type LoyaltyStats struct {
	UserID      string  `json:"user_id" db:"user_id"`
	TotalSpent  float64 `json:"total_spent" db:"total_spent"`
	OrdersCount int     `json:"orders_count" db:"orders_count"`
}
