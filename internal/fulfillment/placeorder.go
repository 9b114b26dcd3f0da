package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/commercekit/fulfillment-engine/internal/models"
)

// PlaceOrderRequest is the transient input of the place-order flow.
type PlaceOrderRequest struct {
	UserID          string          `json:"user_id" binding:"required"`
	Items           []LineRequest   `json:"items" binding:"required,dive"`
	ShippingAddress models.Address  `json:"shipping_address" binding:"required"`
	BillingAddress  *models.Address `json:"billing_address,omitempty"`
	CouponCode      string          `json:"coupon_code,omitempty"`
}

// PlaceOrderResult reports a committed order.
type PlaceOrderResult struct {
	OrderID      string  `json:"order_id"`
	OrderNumber  string  `json:"order_number"`
	TotalAmount  float64 `json:"total_amount"`
	CouponNote   string  `json:"coupon_note,omitempty"`
	FreeShipping bool    `json:"free_shipping"`
}

// PlaceOrder turns a cart of requested lines into a committed order:
// reservation, pricing, coupon, totals, ledger and cart clearing all succeed
// in one transaction or none of them persist. Datastore contention on shared
// stock rows is retried transparently a bounded number of times.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "place_order")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.Int("line_count", len(req.Items)),
	)

	if err := validatePlaceOrder(req); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		result, err := s.placeOrderTx(ctx, req)
		if err == nil {
			span.SetAttributes(attribute.String("order_id", result.OrderID))
			return result, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		lastErr = err
		log.Printf("⏳ [PLACE ORDER] conflict on attempt %d/%d, retrying | user=%s", attempt, maxTxAttempts, req.UserID)
	}
	return nil, lastErr
}

func validatePlaceOrder(req PlaceOrderRequest) error {
	if req.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if len(req.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "order needs at least one line"}
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			return &ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Reason: "must not be empty"}
		}
		if item.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be greater than zero"}
		}
	}
	if req.ShippingAddress.Line1 == "" || req.ShippingAddress.City == "" || req.ShippingAddress.Country == "" {
		return &ValidationError{Field: "shipping_address", Reason: "line1, city and country are required"}
	}
	return nil
}

func (s *Service) placeOrderTx(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	now := s.now()

	// 1. One transaction for the whole commit: reservation, order, coupon
	// usage, ledger and cart clearing stand or fall together.
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 2. Lock every affected product/variant row FOR UPDATE, in ascending
	// key order so concurrent multi-line orders cannot deadlock. The first
	// transaction to acquire the locks is the one that commits; later ones
	// see the decremented stock and fail validation.
	lines, err := s.lockLines(ctx, tx, req.Items)
	if err != nil {
		return nil, err
	}

	// 3. Pure batch validation: collect every shortfall before any mutation.
	if shortfalls := ValidateBatch(lines); len(shortfalls) > 0 {
		return nil, &InsufficientStockError{Shortfalls: shortfalls}
	}

	// 4. Price each line with the dynamic calculator.
	var loyalty *models.LoyaltyStats
	if req.UserID != "" {
		loyalty, err = s.reader.GetLoyaltyStats(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("load loyalty stats: %w", err)
		}
	}

	orderID := uuid.New().String()
	items := make([]models.OrderItem, 0, len(lines))
	subtotal := 0.0
	for _, line := range lines {
		unitPrice, err := s.priceLine(ctx, line, loyalty, now)
		if err != nil {
			return nil, err
		}
		item := models.OrderItem{
			ID:          uuid.New().String(),
			OrderID:     orderID,
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			ProductSKU:  line.Product.SKU,
			UnitPrice:   unitPrice,
			Quantity:    line.Request.Quantity,
			TotalPrice:  round2(unitPrice * float64(line.Request.Quantity)),
		}
		if line.Variant != nil {
			item.VariantID = &line.Variant.ID
			item.ProductSKU = line.Variant.SKU
			item.VariantTitle = line.Variant.Title
		}
		items = append(items, item)
		subtotal += item.TotalPrice
	}
	subtotal = round2(subtotal)

	// 5. Coupon evaluation is pure; the coupon row is locked so the usage
	// counter cannot race past its limit at commit time.
	couponResult := CouponResult{Reason: "no coupon provided"}
	var coupon *models.Coupon
	if req.CouponCode != "" {
		coupon, err = s.store.GetCouponByCodeForUpdate(ctx, tx, req.CouponCode)
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("load coupon: %w", err)
		}
		couponResult = EvaluateCoupon(coupon, subtotal, now)
	}

	// 6. Totals. Tax applies after the discount; free shipping zeroes the
	// flat fee instead of producing a monetary discount.
	discount := couponResult.Discount
	shipping := FlatShippingFee
	if couponResult.FreeShipping {
		shipping = 0
	}
	tax := round2((subtotal - discount) * TaxRate)

	billTo := req.ShippingAddress
	if req.BillingAddress != nil {
		billTo = *req.BillingAddress
	}
	order := models.NewOrder(orderID, newOrderNumber(now), req.UserID, subtotal, tax, shipping, discount, req.ShippingAddress, billTo)
	order.TotalAmount = round2(order.TotalAmount)

	if err := s.store.InsertOrder(ctx, tx, order, items); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	// 7. Record coupon usage only on commit, one row per (coupon, order).
	if couponResult.Applied {
		usage := &models.CouponUsage{
			ID:             uuid.New().String(),
			CouponID:       coupon.ID,
			OrderID:        orderID,
			UserID:         req.UserID,
			DiscountAmount: discount,
			CreatedAt:      now,
		}
		if err := s.store.InsertCouponUsage(ctx, tx, usage); err != nil {
			return nil, fmt.Errorf("record coupon usage: %w", err)
		}
		if err := s.store.IncrementCouponUsage(ctx, tx, coupon.ID); err != nil {
			return nil, fmt.Errorf("increment coupon usage: %w", err)
		}
	}

	// 8. Decrement stock and append one ledger row per affected row. The
	// whole batch already validated, so every decrement must succeed.
	if err := s.reserveStock(ctx, tx, lines, orderID); err != nil {
		return nil, err
	}

	// 9. The pending cart is consumed by the committed order.
	if err := s.store.ClearCart(ctx, tx, req.UserID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}

	log.Printf("✅ [PLACE ORDER] committed %s (%s) total=%.2f user=%s", order.OrderNumber, orderID, order.TotalAmount, req.UserID)
	if s.events != nil {
		s.events.OrderPlaced(order, items)
	}

	return &PlaceOrderResult{
		OrderID:      orderID,
		OrderNumber:  order.OrderNumber,
		TotalAmount:  order.TotalAmount,
		CouponNote:   couponResult.Reason,
		FreeShipping: couponResult.FreeShipping,
	}, nil
}

// lockLines resolves the requested lines against the catalog, taking row
// locks in a stable ascending order. Each distinct row is locked once.
func (s *Service) lockLines(ctx context.Context, tx Tx, requests []LineRequest) ([]ReservationLine, error) {
	sorted := make([]LineRequest, len(requests))
	copy(sorted, requests)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ProductID != sorted[j].ProductID {
			return sorted[i].ProductID < sorted[j].ProductID
		}
		return variantKey(sorted[i].VariantID) < variantKey(sorted[j].VariantID)
	})

	products := make(map[string]*models.Product)
	variants := make(map[string]*models.ProductVariant)
	lines := make([]ReservationLine, 0, len(sorted))

	for _, req := range sorted {
		product, ok := products[req.ProductID]
		if !ok {
			var err error
			product, err = s.store.GetProductForUpdate(ctx, tx, req.ProductID)
			if err != nil {
				if isNotFound(err) {
					return nil, &NotFoundError{Kind: "product", ID: req.ProductID}
				}
				return nil, fmt.Errorf("lock product %s: %w", req.ProductID, err)
			}
			products[req.ProductID] = product
		}
		if !product.IsActive {
			return nil, &ValidationError{Field: "items", Reason: fmt.Sprintf("product %s is not available", req.ProductID)}
		}

		line := ReservationLine{Request: req, Product: product}
		if req.VariantID != nil {
			variant, ok := variants[*req.VariantID]
			if !ok {
				var err error
				variant, err = s.store.GetVariantForUpdate(ctx, tx, *req.VariantID)
				if err != nil {
					if isNotFound(err) {
						return nil, &NotFoundError{Kind: "variant", ID: *req.VariantID}
					}
					return nil, fmt.Errorf("lock variant %s: %w", *req.VariantID, err)
				}
				variants[*req.VariantID] = variant
			}
			if variant.ProductID != product.ID {
				return nil, &ValidationError{Field: "items", Reason: fmt.Sprintf("variant %s does not belong to product %s", variant.ID, product.ID)}
			}
			line.Variant = variant
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// priceLine computes the dynamic unit price for one line. Demand and stock
// factors come from the parent product; the base price comes from the
// variant when the line names one.
func (s *Service) priceLine(ctx context.Context, line ReservationLine, loyalty *models.LoyaltyStats, now time.Time) (float64, error) {
	sold7d, err := s.reader.UnitsSoldSince(ctx, line.Product.ID, now.AddDate(0, 0, -7))
	if err != nil {
		return 0, fmt.Errorf("load sales velocity for %s: %w", line.Product.ID, err)
	}

	quote := ComputePrice(PricingInput{
		BasePrice:         line.UnitPrice(),
		Stock:             line.Product.InventoryQuantity,
		LowStockThreshold: line.Product.LowStockThreshold,
		UnitsSoldLast7d:   sold7d,
		Loyalty:           loyalty,
		Month:             now.Month(),
	})
	return quote.DynamicPrice, nil
}

// reserveStock decrements each distinct product/variant row once, for the
// summed quantity, and appends the matching sale ledger row.
func (s *Service) reserveStock(ctx context.Context, tx Tx, lines []ReservationLine, orderID string) error {
	type target struct {
		line ReservationLine
		qty  int
	}
	totals := make(map[string]*target, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		key := line.stockKey()
		if _, ok := totals[key]; !ok {
			totals[key] = &target{line: line}
			order = append(order, key)
		}
		totals[key].qty += line.Request.Quantity
	}

	for _, key := range order {
		t := totals[key]
		var (
			balance   int
			err       error
			variantID *string
		)
		if t.line.Variant != nil {
			balance, err = s.store.AdjustVariantStock(ctx, tx, t.line.Variant.ID, -t.qty)
			variantID = &t.line.Variant.ID
		} else {
			balance, err = s.store.AdjustProductStock(ctx, tx, t.line.Product.ID, -t.qty)
		}
		if err != nil {
			return fmt.Errorf("decrement stock for %s: %w", key, err)
		}

		entry := models.NewInventoryTransaction(uuid.New().String(), t.line.Product.ID, variantID, -t.qty, balance, models.TransactionTypeSale, orderID)
		if err := s.store.InsertLedgerEntry(ctx, tx, entry); err != nil {
			return fmt.Errorf("append ledger entry for %s: %w", key, err)
		}
	}
	return nil
}

// newOrderNumber builds the human-readable order number: a date prefix plus
// a uniqueness suffix derived from a fresh UUID.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

func variantKey(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

func isNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
