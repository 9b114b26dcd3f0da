package models

import "time"

// Transaction types recorded in the inventory ledger.
const (
	TransactionTypeSale       = "sale"
	TransactionTypeRestock    = "restock"
	TransactionTypeAdjustment = "adjustment"
	TransactionTypeReturn     = "return"
)

// InventoryTransaction is one append-only ledger row. For a given
// product/variant the resulting balance always equals the running sum of all
// prior deltas.
type InventoryTransaction struct {
	ID               string    `json:"id" db:"id"`
	ProductID        string    `json:"product_id" db:"product_id"`
	VariantID        *string   `json:"variant_id,omitempty" db:"variant_id"`
	Delta            int       `json:"delta" db:"delta"`
	ResultingBalance int       `json:"resulting_balance" db:"resulting_balance"`
	Type             string    `json:"type" db:"type"`
	Reference        string    `json:"reference" db:"reference"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// NewInventoryTransaction creates a ledger row for one stock delta.
func NewInventoryTransaction(id, productID string, variantID *string, delta, balance int, txType, reference string) *InventoryTransaction {
	return &InventoryTransaction{
		ID:               id,
		ProductID:        productID,
		VariantID:        variantID,
		Delta:            delta,
		ResultingBalance: balance,
		Type:             txType,
		Reference:        reference,
		CreatedAt:        time.Now(),
	}
}
