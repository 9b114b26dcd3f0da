package fulfillment

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/commercekit/fulfillment-engine/internal/models"
)

// Order assembly constants.
const (
	TaxRate         = 0.08
	FlatShippingFee = 10.00

	// maxTxAttempts bounds transparent retries on datastore contention.
	maxTxAttempts = 3

	// candidatePool caps how many candidates each recommendation source
	// contributes before combining.
	candidatePool = 20
)

// Tx is a datastore transaction handle.
type Tx interface {
	Commit() error
	Rollback() error
}

// Store is the mutating-path datastore port. Every method that takes a Tx
// runs inside that transaction; *ForUpdate methods hold a row lock until
// commit or rollback.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)

	GetProductForUpdate(ctx context.Context, tx Tx, productID string) (*models.Product, error)
	GetVariantForUpdate(ctx context.Context, tx Tx, variantID string) (*models.ProductVariant, error)
	GetCouponByCodeForUpdate(ctx context.Context, tx Tx, code string) (*models.Coupon, error)

	// AdjustProductStock / AdjustVariantStock apply a signed delta to
	// inventory_quantity and return the resulting balance.
	AdjustProductStock(ctx context.Context, tx Tx, productID string, delta int) (int, error)
	AdjustVariantStock(ctx context.Context, tx Tx, variantID string, delta int) (int, error)

	InsertOrder(ctx context.Context, tx Tx, order *models.Order, items []models.OrderItem) error
	InsertCouponUsage(ctx context.Context, tx Tx, usage *models.CouponUsage) error
	IncrementCouponUsage(ctx context.Context, tx Tx, couponID string) error
	InsertLedgerEntry(ctx context.Context, tx Tx, entry *models.InventoryTransaction) error
	ClearCart(ctx context.Context, tx Tx, userID string) error

	GetOrderForUpdate(ctx context.Context, tx Tx, orderID string) (*models.Order, error)
	GetOrderItems(ctx context.Context, tx Tx, orderID string) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, tx Tx, orderID, status string) error
}

// CoPurchaseFact counts orders containing a candidate together with the
// anchor product.
type CoPurchaseFact struct {
	ProductID string
	Count     int
}

// AffinityFact counts a customer's past purchases in a candidate's
// category/brand.
type AffinityFact struct {
	ProductID     string
	PastPurchases int
}

// TrendingFact counts orders containing a candidate over a trailing window.
type TrendingFact struct {
	ProductID string
	Count     int
}

// Reader is the non-blocking read port used by pricing, the reorder planner
// and the recommendation scorer. It runs outside row locks and tolerates
// slightly stale figures.
type Reader interface {
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	GetLoyaltyStats(ctx context.Context, userID string) (*models.LoyaltyStats, error)
	UnitsSoldSince(ctx context.Context, productID string, since time.Time) (int, error)
	SalesFacts(ctx context.Context, since time.Time) ([]ProductSalesFact, error)

	SameCategoryProducts(ctx context.Context, productID string, limit int) ([]string, error)
	CoPurchases(ctx context.Context, productID string, limit int) ([]CoPurchaseFact, error)
	CustomerAffinities(ctx context.Context, userID string, limit int) ([]AffinityFact, error)
	TrendingProducts(ctx context.Context, since time.Time, limit int) ([]TrendingFact, error)
	AvgRatings(ctx context.Context, productIDs []string) (map[string]float64, error)
}

// EventPublisher receives post-commit notifications. Implementations must be
// best-effort and never fail the already committed transaction.
type EventPublisher interface {
	OrderPlaced(order *models.Order, items []models.OrderItem)
	OrderCancelled(order *models.Order)
}

// Service wires the fulfillment use cases to their collaborators.
type Service struct {
	store  Store
	reader Reader
	events EventPublisher
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates a new fulfillment Service.
func NewService(store Store, reader Reader, events EventPublisher, tracer trace.Tracer) *Service {
	return &Service{
		store:  store,
		reader: reader,
		events: events,
		tracer: tracer,
		now:    time.Now,
	}
}

// GetDynamicPrice computes the demand-sensitive price for one product,
// personalized when a user is known.
func (s *Service) GetDynamicPrice(ctx context.Context, productID, userID string) (*PriceQuote, error) {
	ctx, span := s.tracer.Start(ctx, "get_dynamic_price")
	defer span.End()

	product, err := s.reader.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.IsActive {
		return nil, &NotFoundError{Kind: "product", ID: productID}
	}

	now := s.now()
	sold7d, err := s.reader.UnitsSoldSince(ctx, productID, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}

	var loyalty *models.LoyaltyStats
	if userID != "" {
		loyalty, err = s.reader.GetLoyaltyStats(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	quote := ComputePrice(PricingInput{
		BasePrice:         product.Price,
		Stock:             product.InventoryQuantity,
		LowStockThreshold: product.LowStockThreshold,
		UnitsSoldLast7d:   sold7d,
		Loyalty:           loyalty,
		Month:             now.Month(),
	})
	quote.ProductID = productID
	return &quote, nil
}

// GetReorderReport plans restocking for every trackable, active product,
// most urgent rows first.
func (s *Service) GetReorderReport(ctx context.Context) ([]ReorderSuggestion, error) {
	ctx, span := s.tracer.Start(ctx, "get_reorder_report")
	defer span.End()

	facts, err := s.reader.SalesFacts(ctx, s.now().AddDate(0, 0, -velocityWindowDays))
	if err != nil {
		return nil, err
	}

	report := make([]ReorderSuggestion, 0, len(facts))
	for _, fact := range facts {
		report = append(report, PlanReorder(fact))
	}
	sortByUrgency(report)
	return report, nil
}

// GetRecommendations ranks candidate products for an optional user and
// optional anchor product.
func (s *Service) GetRecommendations(ctx context.Context, userID, productID string, limit int) ([]Recommendation, error) {
	ctx, span := s.tracer.Start(ctx, "get_recommendations")
	defer span.End()

	var signals []ScoreSignal

	if productID != "" {
		related, err := s.reader.SameCategoryProducts(ctx, productID, candidatePool)
		if err != nil {
			return nil, err
		}
		for _, id := range related {
			signals = append(signals, SameCategorySignal(id))
		}

		together, err := s.reader.CoPurchases(ctx, productID, candidatePool)
		if err != nil {
			return nil, err
		}
		for _, fact := range together {
			signals = append(signals, CoPurchaseSignal(fact.ProductID, fact.Count))
		}
	}

	if userID != "" {
		affinities, err := s.reader.CustomerAffinities(ctx, userID, candidatePool)
		if err != nil {
			return nil, err
		}
		for _, fact := range affinities {
			signals = append(signals, AffinitySignal(fact.ProductID, fact.PastPurchases))
		}
	}

	trending, err := s.reader.TrendingProducts(ctx, s.now().AddDate(0, 0, -30), candidatePool)
	if err != nil {
		return nil, err
	}
	for _, fact := range trending {
		if fact.ProductID == productID {
			continue
		}
		signals = append(signals, TrendingSignal(fact.ProductID, fact.Count))
	}

	if len(signals) == 0 {
		return []Recommendation{}, nil
	}

	ids := make([]string, 0, len(signals))
	seen := make(map[string]bool, len(signals))
	for _, sig := range signals {
		if !seen[sig.ProductID] {
			seen[sig.ProductID] = true
			ids = append(ids, sig.ProductID)
		}
	}

	ratings, err := s.reader.AvgRatings(ctx, ids)
	if err != nil {
		return nil, err
	}

	return CombineSignals(signals, ratings, limit), nil
}

var urgencyRank = map[string]int{
	UrgencyCritical: 0,
	UrgencyHigh:     1,
	UrgencyMedium:   2,
	UrgencyLow:      3,
}

func sortByUrgency(report []ReorderSuggestion) {
	sort.Slice(report, func(i, j int) bool {
		a, b := report[i], report[j]
		if urgencyRank[a.Urgency] != urgencyRank[b.Urgency] {
			return urgencyRank[a.Urgency] < urgencyRank[b.Urgency]
		}
		gapA := a.ReorderPoint - float64(a.CurrentStock)
		gapB := b.ReorderPoint - float64(b.CurrentStock)
		if gapA != gapB {
			return gapA > gapB
		}
		return a.ProductID < b.ProductID
	})
}
