package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commercekit/fulfillment-engine/internal/fulfillment"
	"github.com/commercekit/fulfillment-engine/internal/models"
)

// PostgresStore implements fulfillment.Store on PostgreSQL. All row locks
// are pessimistic (SELECT ... FOR UPDATE) and live inside the caller's
// transaction.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// BeginTx starts a new transaction.
func (s *PostgresStore) BeginTx(ctx context.Context) (fulfillment.Tx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, mapConflict(err)
	}
	return &PostgresTx{tx: tx}, nil
}

// GetProductForUpdate loads a product row holding its lock until commit.
func (s *PostgresStore) GetProductForUpdate(ctx context.Context, tx fulfillment.Tx, productID string) (*models.Product, error) {
	var p models.Product
	err := pgTx(tx).QueryRow(ctx, `
		SELECT id, sku, name, price, category, brand, inventory_quantity, reserved_quantity,
		       low_stock_threshold, is_active, track_inventory, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(
		&p.ID, &p.SKU, &p.Name, &p.Price, &p.Category, &p.Brand,
		&p.InventoryQuantity, &p.ReservedQuantity, &p.LowStockThreshold,
		&p.IsActive, &p.TrackInventory, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "product", productID)
	}
	return &p, nil
}

// GetVariantForUpdate loads a variant row holding its lock until commit.
func (s *PostgresStore) GetVariantForUpdate(ctx context.Context, tx fulfillment.Tx, variantID string) (*models.ProductVariant, error) {
	var v models.ProductVariant
	err := pgTx(tx).QueryRow(ctx, `
		SELECT id, product_id, sku, title, price, inventory_quantity, reserved_quantity,
		       options, created_at, updated_at
		FROM product_variants
		WHERE id = $1
		FOR UPDATE
	`, variantID).Scan(
		&v.ID, &v.ProductID, &v.SKU, &v.Title, &v.Price,
		&v.InventoryQuantity, &v.ReservedQuantity, &v.Options, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "variant", variantID)
	}
	return &v, nil
}

// GetCouponByCodeForUpdate locks the coupon row so the usage counter cannot
// race past its limit.
func (s *PostgresStore) GetCouponByCodeForUpdate(ctx context.Context, tx fulfillment.Tx, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := pgTx(tx).QueryRow(ctx, `
		SELECT id, code, discount_type, value, minimum_amount, usage_limit, usage_count,
		       is_active, starts_at, expires_at, created_at
		FROM coupons
		WHERE code = $1
		FOR UPDATE
	`, code).Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.Value, &c.MinimumAmount,
		&c.UsageLimit, &c.UsageCount, &c.IsActive, &c.StartsAt, &c.ExpiresAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "coupon", code)
	}
	return &c, nil
}

// AdjustProductStock applies a signed delta and returns the new balance.
func (s *PostgresStore) AdjustProductStock(ctx context.Context, tx fulfillment.Tx, productID string, delta int) (int, error) {
	var balance int
	err := pgTx(tx).QueryRow(ctx, `
		UPDATE products
		SET inventory_quantity = inventory_quantity + $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING inventory_quantity
	`, productID, delta).Scan(&balance)
	if err != nil {
		return 0, notFound(err, "product", productID)
	}
	return balance, nil
}

// AdjustVariantStock applies a signed delta and returns the new balance.
func (s *PostgresStore) AdjustVariantStock(ctx context.Context, tx fulfillment.Tx, variantID string, delta int) (int, error) {
	var balance int
	err := pgTx(tx).QueryRow(ctx, `
		UPDATE product_variants
		SET inventory_quantity = inventory_quantity + $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING inventory_quantity
	`, variantID, delta).Scan(&balance)
	if err != nil {
		return 0, notFound(err, "variant", variantID)
	}
	return balance, nil
}

// InsertOrder persists the order row and its item snapshots.
func (s *PostgresStore) InsertOrder(ctx context.Context, tx fulfillment.Tx, order *models.Order, items []models.OrderItem) error {
	shipTo, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	billTo, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}

	_, err = pgTx(tx).Exec(ctx, `
		INSERT INTO orders (id, order_number, user_id, subtotal, tax_amount, shipping_amount,
		                    discount_amount, total_amount, status, shipping_address, billing_address,
		                    created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, order.ID, order.OrderNumber, order.UserID, order.Subtotal, order.TaxAmount,
		order.ShippingAmount, order.DiscountAmount, order.TotalAmount, order.Status,
		shipTo, billTo, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return mapConflict(err)
	}

	for _, item := range items {
		_, err := pgTx(tx).Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, product_name,
			                         product_sku, variant_title, unit_price, quantity, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, item.ID, item.OrderID, item.ProductID, item.VariantID, item.ProductName,
			item.ProductSKU, item.VariantTitle, item.UnitPrice, item.Quantity, item.TotalPrice)
		if err != nil {
			return mapConflict(err)
		}
	}
	return nil
}

// InsertCouponUsage records one usage per (coupon, order) pair.
func (s *PostgresStore) InsertCouponUsage(ctx context.Context, tx fulfillment.Tx, usage *models.CouponUsage) error {
	_, err := pgTx(tx).Exec(ctx, `
		INSERT INTO coupon_usages (id, coupon_id, order_id, user_id, discount_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, usage.ID, usage.CouponID, usage.OrderID, usage.UserID, usage.DiscountAmount, usage.CreatedAt)
	return mapConflict(err)
}

// IncrementCouponUsage bumps the usage counter under the row lock taken by
// GetCouponByCodeForUpdate.
func (s *PostgresStore) IncrementCouponUsage(ctx context.Context, tx fulfillment.Tx, couponID string) error {
	_, err := pgTx(tx).Exec(ctx, `
		UPDATE coupons SET usage_count = usage_count + 1 WHERE id = $1
	`, couponID)
	return mapConflict(err)
}

// InsertLedgerEntry appends one inventory transaction row.
func (s *PostgresStore) InsertLedgerEntry(ctx context.Context, tx fulfillment.Tx, entry *models.InventoryTransaction) error {
	_, err := pgTx(tx).Exec(ctx, `
		INSERT INTO inventory_transactions (id, product_id, variant_id, delta, resulting_balance, type, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.ProductID, entry.VariantID, entry.Delta, entry.ResultingBalance,
		entry.Type, entry.Reference, entry.CreatedAt)
	return mapConflict(err)
}

// ClearCart removes the user's pending cart lines.
func (s *PostgresStore) ClearCart(ctx context.Context, tx fulfillment.Tx, userID string) error {
	_, err := pgTx(tx).Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return mapConflict(err)
}

// GetOrderForUpdate locks an order row for cancellation.
func (s *PostgresStore) GetOrderForUpdate(ctx context.Context, tx fulfillment.Tx, orderID string) (*models.Order, error) {
	var (
		o      models.Order
		shipTo []byte
		billTo []byte
	)
	err := pgTx(tx).QueryRow(ctx, `
		SELECT id, order_number, user_id, subtotal, tax_amount, shipping_amount,
		       discount_amount, total_amount, status, shipping_address, billing_address,
		       created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Subtotal, &o.TaxAmount, &o.ShippingAmount,
		&o.DiscountAmount, &o.TotalAmount, &o.Status, &shipTo, &billTo, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	if err := json.Unmarshal(shipTo, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(billTo, &o.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}
	return &o, nil
}

// GetOrderItems loads the item snapshots of one order.
func (s *PostgresStore) GetOrderItems(ctx context.Context, tx fulfillment.Tx, orderID string) ([]models.OrderItem, error) {
	rows, err := pgTx(tx).Query(ctx, `
		SELECT id, order_id, product_id, variant_id, product_name, product_sku,
		       variant_title, unit_price, quantity, total_price
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, mapConflict(err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariantID,
			&item.ProductName, &item.ProductSKU, &item.VariantTitle,
			&item.UnitPrice, &item.Quantity, &item.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateOrderStatus transitions an order's status.
func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, tx fulfillment.Tx, orderID, status string) error {
	_, err := pgTx(tx).Exec(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status != $1
	`, status, orderID)
	return mapConflict(err)
}
