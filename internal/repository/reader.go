package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commercekit/fulfillment-engine/internal/fulfillment"
	"github.com/commercekit/fulfillment-engine/internal/models"
)

// PostgresReader implements fulfillment.Reader. It never takes row locks:
// the planners and pricing factors tolerate slightly stale figures.
type PostgresReader struct {
	db *pgxpool.Pool
}

// NewPostgresReader creates a new PostgresReader.
func NewPostgresReader(db *pgxpool.Pool) *PostgresReader {
	return &PostgresReader{db: db}
}

// GetProduct loads one product; (nil, nil) when it does not exist.
func (r *PostgresReader) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var p models.Product
	err := r.db.QueryRow(ctx, `
		SELECT id, sku, name, price, category, brand, inventory_quantity, reserved_quantity,
		       low_stock_threshold, is_active, track_inventory, created_at, updated_at
		FROM products
		WHERE id = $1
	`, productID).Scan(
		&p.ID, &p.SKU, &p.Name, &p.Price, &p.Category, &p.Brand,
		&p.InventoryQuantity, &p.ReservedQuantity, &p.LowStockThreshold,
		&p.IsActive, &p.TrackInventory, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetLoyaltyStats reads the account store's view of a customer;
// (nil, nil) for an unknown customer, which prices as a standard one.
func (r *PostgresReader) GetLoyaltyStats(ctx context.Context, userID string) (*models.LoyaltyStats, error) {
	var stats models.LoyaltyStats
	err := r.db.QueryRow(ctx, `
		SELECT id, total_spent, orders_count FROM users WHERE id = $1
	`, userID).Scan(&stats.UserID, &stats.TotalSpent, &stats.OrdersCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// UnitsSoldSince sums units of a product sold since the given instant,
// excluding cancelled orders.
func (r *PostgresReader) UnitsSoldSince(ctx context.Context, productID string, since time.Time) (int, error) {
	var units int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(oi.quantity), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.product_id = $1
		  AND o.created_at >= $2
		  AND o.status != 'cancelled'
	`, productID, since).Scan(&units)
	return units, err
}

// SalesFacts returns current stock and trailing sales for every trackable,
// active product. Products with no sales in the window still appear, with
// zero units sold.
func (r *PostgresReader) SalesFacts(ctx context.Context, since time.Time) ([]fulfillment.ProductSalesFact, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name, p.inventory_quantity - p.reserved_quantity,
		       COALESCE(SUM(oi.quantity) FILTER (WHERE o.created_at >= $1 AND o.status != 'cancelled'), 0)
		FROM products p
		LEFT JOIN order_items oi ON oi.product_id = p.id
		LEFT JOIN orders o ON o.id = oi.order_id
		WHERE p.is_active AND p.track_inventory
		GROUP BY p.id, p.name, p.inventory_quantity, p.reserved_quantity
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []fulfillment.ProductSalesFact
	for rows.Next() {
		var f fulfillment.ProductSalesFact
		if err := rows.Scan(&f.ProductID, &f.ProductName, &f.CurrentStock, &f.UnitsSold30d); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// SameCategoryProducts lists active products sharing the anchor's category.
func (r *PostgresReader) SameCategoryProducts(ctx context.Context, productID string, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT other.id
		FROM products anchor
		JOIN products other ON other.category = anchor.category AND other.id != anchor.id
		WHERE anchor.id = $1 AND other.is_active
		ORDER BY other.id
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CoPurchases counts orders that contained both the anchor product and the
// candidate.
func (r *PostgresReader) CoPurchases(ctx context.Context, productID string, limit int) ([]fulfillment.CoPurchaseFact, error) {
	rows, err := r.db.Query(ctx, `
		SELECT other.product_id, COUNT(DISTINCT other.order_id)
		FROM order_items anchor
		JOIN order_items other ON other.order_id = anchor.order_id AND other.product_id != anchor.product_id
		WHERE anchor.product_id = $1
		GROUP BY other.product_id
		ORDER BY COUNT(DISTINCT other.order_id) DESC, other.product_id
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []fulfillment.CoPurchaseFact
	for rows.Next() {
		var f fulfillment.CoPurchaseFact
		if err := rows.Scan(&f.ProductID, &f.Count); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// CustomerAffinities proposes active products from categories the customer
// has bought from, weighted by how many past purchases hit that category.
// Products the customer already owns are excluded.
func (r *PostgresReader) CustomerAffinities(ctx context.Context, userID string, limit int) ([]fulfillment.AffinityFact, error) {
	rows, err := r.db.Query(ctx, `
		WITH bought AS (
			SELECT p.category, COUNT(*) AS purchases
			FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			JOIN products p ON p.id = oi.product_id
			WHERE o.user_id = $1 AND o.status != 'cancelled'
			GROUP BY p.category
		)
		SELECT p.id, b.purchases
		FROM products p
		JOIN bought b ON b.category = p.category
		WHERE p.is_active
		  AND p.id NOT IN (
			SELECT oi.product_id FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE o.user_id = $1
		  )
		ORDER BY b.purchases DESC, p.id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []fulfillment.AffinityFact
	for rows.Next() {
		var f fulfillment.AffinityFact
		if err := rows.Scan(&f.ProductID, &f.PastPurchases); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// TrendingProducts counts orders containing each product since the given
// instant.
func (r *PostgresReader) TrendingProducts(ctx context.Context, since time.Time, limit int) ([]fulfillment.TrendingFact, error) {
	rows, err := r.db.Query(ctx, `
		SELECT oi.product_id, COUNT(DISTINCT oi.order_id)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.created_at >= $1 AND o.status != 'cancelled'
		GROUP BY oi.product_id
		ORDER BY COUNT(DISTINCT oi.order_id) DESC, oi.product_id
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []fulfillment.TrendingFact
	for rows.Next() {
		var f fulfillment.TrendingFact
		if err := rows.Scan(&f.ProductID, &f.Count); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// AvgRatings returns the average rating per product for the given ids.
// Unrated products are simply absent from the map.
func (r *PostgresReader) AvgRatings(ctx context.Context, productIDs []string) (map[string]float64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT product_id, AVG(rating)
		FROM product_ratings
		WHERE product_id = ANY($1)
		GROUP BY product_id
	`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make(map[string]float64)
	for rows.Next() {
		var (
			id     string
			rating float64
		)
		if err := rows.Scan(&id, &rating); err != nil {
			return nil, err
		}
		ratings[id] = rating
	}
	return ratings, rows.Err()
}
