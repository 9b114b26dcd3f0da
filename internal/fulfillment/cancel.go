package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/commercekit/fulfillment-engine/internal/models"
)

// CancelOrder compensates a previously committed order in its own atomic
// transaction: one return ledger entry per affected row, stock restored
// exactly, status flipped to cancelled. It is symmetric with PlaceOrder.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "cancel_order")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID))

	if orderID == "" {
		return &ValidationError{Field: "order_id", Reason: "must not be empty"}
	}

	var lastErr error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := s.cancelOrderTx(ctx, orderID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
		lastErr = err
		log.Printf("⏳ [CANCEL ORDER] conflict on attempt %d/%d, retrying | order=%s", attempt, maxTxAttempts, orderID)
	}
	return lastErr
}

func (s *Service) cancelOrderTx(ctx context.Context, orderID string) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Lock the order row so two cancellations cannot both restock.
	order, err := s.store.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		if isNotFound(err) {
			return &NotFoundError{Kind: "order", ID: orderID}
		}
		return fmt.Errorf("lock order %s: %w", orderID, err)
	}
	if order.Status == models.OrderStatusCancelled {
		return &ValidationError{Field: "order_id", Reason: "order is already cancelled"}
	}

	items, err := s.store.GetOrderItems(ctx, tx, orderID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}

	// 2. Restore each affected row by exactly the quantity it lost, with a
	// compensating return ledger entry. Net ledger effect per row is zero.
	for _, item := range items {
		var balance int
		if item.VariantID != nil {
			if _, err := s.store.GetVariantForUpdate(ctx, tx, *item.VariantID); err != nil {
				return fmt.Errorf("lock variant %s: %w", *item.VariantID, err)
			}
			balance, err = s.store.AdjustVariantStock(ctx, tx, *item.VariantID, item.Quantity)
		} else {
			if _, err := s.store.GetProductForUpdate(ctx, tx, item.ProductID); err != nil {
				return fmt.Errorf("lock product %s: %w", item.ProductID, err)
			}
			balance, err = s.store.AdjustProductStock(ctx, tx, item.ProductID, item.Quantity)
		}
		if err != nil {
			return fmt.Errorf("restore stock for %s: %w", item.ProductID, err)
		}

		entry := models.NewInventoryTransaction(uuid.New().String(), item.ProductID, item.VariantID, item.Quantity, balance, models.TransactionTypeReturn, orderID)
		if err := s.store.InsertLedgerEntry(ctx, tx, entry); err != nil {
			return fmt.Errorf("append return ledger entry: %w", err)
		}
	}

	if err := s.store.UpdateOrderStatus(ctx, tx, orderID, models.OrderStatusCancelled); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancellation: %w", err)
	}

	log.Printf("↩️ [CANCEL ORDER] compensated %s (%d lines restored)", orderID, len(items))
	if s.events != nil {
		order.Status = models.OrderStatusCancelled
		s.events.OrderCancelled(order)
	}
	return nil
}

// RestockRequest is a manual stock mutation outside the order flow.
type RestockRequest struct {
	ProductID string  `json:"product_id" binding:"required"`
	VariantID *string `json:"variant_id,omitempty"`
	Delta     int     `json:"delta" binding:"required"`
	Note      string  `json:"note,omitempty"`
}

// Restock applies a manual restock or adjustment: positive deltas are
// restocks, negative ones adjustments. Available stock can never go below
// zero.
func (s *Service) Restock(ctx context.Context, req RestockRequest) (*models.InventoryTransaction, error) {
	ctx, span := s.tracer.Start(ctx, "restock")
	defer span.End()

	if req.Delta == 0 {
		return nil, &ValidationError{Field: "delta", Reason: "must not be zero"}
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	product, err := s.store.GetProductForUpdate(ctx, tx, req.ProductID)
	if err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Kind: "product", ID: req.ProductID}
		}
		return nil, fmt.Errorf("lock product %s: %w", req.ProductID, err)
	}

	var balance int
	if req.VariantID != nil {
		variant, err := s.store.GetVariantForUpdate(ctx, tx, *req.VariantID)
		if err != nil {
			if isNotFound(err) {
				return nil, &NotFoundError{Kind: "variant", ID: *req.VariantID}
			}
			return nil, fmt.Errorf("lock variant %s: %w", *req.VariantID, err)
		}
		if variant.Available()+req.Delta < 0 {
			return nil, &InsufficientStockError{Shortfalls: []StockShortfall{{
				ProductID: req.ProductID,
				VariantID: *req.VariantID,
				Requested: -req.Delta,
				Available: variant.Available(),
			}}}
		}
		balance, err = s.store.AdjustVariantStock(ctx, tx, *req.VariantID, req.Delta)
		if err != nil {
			return nil, fmt.Errorf("adjust variant stock: %w", err)
		}
	} else {
		if product.Available()+req.Delta < 0 {
			return nil, &InsufficientStockError{Shortfalls: []StockShortfall{{
				ProductID: req.ProductID,
				Requested: -req.Delta,
				Available: product.Available(),
			}}}
		}
		balance, err = s.store.AdjustProductStock(ctx, tx, req.ProductID, req.Delta)
		if err != nil {
			return nil, fmt.Errorf("adjust product stock: %w", err)
		}
	}

	txType := models.TransactionTypeRestock
	if req.Delta < 0 {
		txType = models.TransactionTypeAdjustment
	}
	reference := req.Note
	if reference == "" {
		reference = "manual"
	}
	entry := models.NewInventoryTransaction(uuid.New().String(), req.ProductID, req.VariantID, req.Delta, balance, txType, reference)
	if err := s.store.InsertLedgerEntry(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit restock: %w", err)
	}

	log.Printf("📦 [RESTOCK] %s delta=%+d balance=%d", req.ProductID, req.Delta, balance)
	return entry, nil
}
