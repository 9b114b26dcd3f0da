package fulfillment

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/commercekit/fulfillment-engine/internal/models"
)

// fakeTx satisfies the Tx port; the fake store applies writes immediately,
// relying on the engine's validate-before-mutate contract.
type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error { t.committed = true; return nil }

func (t *fakeTx) Rollback() error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	products map[string]*models.Product
	variants map[string]*models.ProductVariant
	coupons  map[string]*models.Coupon
	orders   map[string]*models.Order
	items    map[string][]models.OrderItem
	usages   []models.CouponUsage
	ledger   []models.InventoryTransaction
	carts    map[string]int

	// beginConflicts makes the next n BeginTx calls fail with ErrConflict.
	beginConflicts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: make(map[string]*models.Product),
		variants: make(map[string]*models.ProductVariant),
		coupons:  make(map[string]*models.Coupon),
		orders:   make(map[string]*models.Order),
		items:    make(map[string][]models.OrderItem),
		carts:    make(map[string]int),
	}
}

func (s *fakeStore) BeginTx(ctx context.Context) (Tx, error) {
	if s.beginConflicts > 0 {
		s.beginConflicts--
		return nil, fmt.Errorf("%w: could not serialize access", ErrConflict)
	}
	return &fakeTx{}, nil
}

func (s *fakeStore) GetProductForUpdate(ctx context.Context, tx Tx, productID string) (*models.Product, error) {
	p, ok := s.products[productID]
	if !ok {
		return nil, &NotFoundError{Kind: "product", ID: productID}
	}
	return p, nil
}

func (s *fakeStore) GetVariantForUpdate(ctx context.Context, tx Tx, variantID string) (*models.ProductVariant, error) {
	v, ok := s.variants[variantID]
	if !ok {
		return nil, &NotFoundError{Kind: "variant", ID: variantID}
	}
	return v, nil
}

func (s *fakeStore) GetCouponByCodeForUpdate(ctx context.Context, tx Tx, code string) (*models.Coupon, error) {
	c, ok := s.coupons[code]
	if !ok {
		return nil, &NotFoundError{Kind: "coupon", ID: code}
	}
	return c, nil
}

func (s *fakeStore) AdjustProductStock(ctx context.Context, tx Tx, productID string, delta int) (int, error) {
	p, ok := s.products[productID]
	if !ok {
		return 0, &NotFoundError{Kind: "product", ID: productID}
	}
	p.InventoryQuantity += delta
	return p.InventoryQuantity, nil
}

func (s *fakeStore) AdjustVariantStock(ctx context.Context, tx Tx, variantID string, delta int) (int, error) {
	v, ok := s.variants[variantID]
	if !ok {
		return 0, &NotFoundError{Kind: "variant", ID: variantID}
	}
	v.InventoryQuantity += delta
	return v.InventoryQuantity, nil
}

func (s *fakeStore) InsertOrder(ctx context.Context, tx Tx, order *models.Order, items []models.OrderItem) error {
	s.orders[order.ID] = order
	s.items[order.ID] = items
	return nil
}

func (s *fakeStore) InsertCouponUsage(ctx context.Context, tx Tx, usage *models.CouponUsage) error {
	s.usages = append(s.usages, *usage)
	return nil
}

func (s *fakeStore) IncrementCouponUsage(ctx context.Context, tx Tx, couponID string) error {
	for _, c := range s.coupons {
		if c.ID == couponID {
			c.UsageCount++
			return nil
		}
	}
	return &NotFoundError{Kind: "coupon", ID: couponID}
}

func (s *fakeStore) InsertLedgerEntry(ctx context.Context, tx Tx, entry *models.InventoryTransaction) error {
	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *fakeStore) ClearCart(ctx context.Context, tx Tx, userID string) error {
	s.carts[userID] = 0
	return nil
}

func (s *fakeStore) GetOrderForUpdate(ctx context.Context, tx Tx, orderID string) (*models.Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	return o, nil
}

func (s *fakeStore) GetOrderItems(ctx context.Context, tx Tx, orderID string) ([]models.OrderItem, error) {
	return s.items[orderID], nil
}

func (s *fakeStore) UpdateOrderStatus(ctx context.Context, tx Tx, orderID, status string) error {
	o, ok := s.orders[orderID]
	if !ok {
		return &NotFoundError{Kind: "order", ID: orderID}
	}
	o.Status = status
	return nil
}

// fakeReader is an in-memory Reader.
type fakeReader struct {
	products   map[string]*models.Product
	loyalty    map[string]*models.LoyaltyStats
	sold7d     map[string]int
	facts      []ProductSalesFact
	related    []string
	together   []CoPurchaseFact
	affinities []AffinityFact
	trending   []TrendingFact
	ratings    map[string]float64
}

func (r *fakeReader) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	return r.products[productID], nil
}

func (r *fakeReader) GetLoyaltyStats(ctx context.Context, userID string) (*models.LoyaltyStats, error) {
	return r.loyalty[userID], nil
}

func (r *fakeReader) UnitsSoldSince(ctx context.Context, productID string, since time.Time) (int, error) {
	return r.sold7d[productID], nil
}

func (r *fakeReader) SalesFacts(ctx context.Context, since time.Time) ([]ProductSalesFact, error) {
	return r.facts, nil
}

func (r *fakeReader) SameCategoryProducts(ctx context.Context, productID string, limit int) ([]string, error) {
	return r.related, nil
}

func (r *fakeReader) CoPurchases(ctx context.Context, productID string, limit int) ([]CoPurchaseFact, error) {
	return r.together, nil
}

func (r *fakeReader) CustomerAffinities(ctx context.Context, userID string, limit int) ([]AffinityFact, error) {
	return r.affinities, nil
}

func (r *fakeReader) TrendingProducts(ctx context.Context, since time.Time, limit int) ([]TrendingFact, error) {
	return r.trending, nil
}

func (r *fakeReader) AvgRatings(ctx context.Context, productIDs []string) (map[string]float64, error) {
	return r.ratings, nil
}

// fakeEvents records post-commit notifications.
type fakeEvents struct {
	placed    []string
	cancelled []string
}

func (e *fakeEvents) OrderPlaced(order *models.Order, items []models.OrderItem) {
	e.placed = append(e.placed, order.ID)
}

func (e *fakeEvents) OrderCancelled(order *models.Order) {
	e.cancelled = append(e.cancelled, order.ID)
}

// newTestService wires a Service around fakes, pinned to a month without
// seasonal pricing.
func newTestService(store *fakeStore, reader *fakeReader, events *fakeEvents) *Service {
	svc := NewService(store, reader, events, otel.Tracer("test"))
	svc.now = func() time.Time {
		return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

// neutralProduct prices at its base price: balanced stock, steady demand.
func neutralProduct(id string, price float64, stock int) *models.Product {
	return &models.Product{
		ID:                id,
		SKU:               "SKU-" + id,
		Name:              "Product " + id,
		Price:             price,
		InventoryQuantity: stock,
		LowStockThreshold: 1,
		IsActive:          true,
		TrackInventory:    true,
	}
}

func steadyReader() *fakeReader {
	return &fakeReader{
		products: make(map[string]*models.Product),
		loyalty:  make(map[string]*models.LoyaltyStats),
		sold7d:   map[string]int{},
		ratings:  map[string]float64{},
	}
}

func shippingAddress() models.Address {
	return models.Address{Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US"}
}
