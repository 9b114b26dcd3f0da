package fulfillment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/fulfillment-engine/internal/models"
)

func TestCancelOrder_RestoresStockExactly(t *testing.T) {
	store := newFakeStore()
	reader := steadyReader()
	events := &fakeEvents{}
	svc := newTestService(store, reader, events)

	store.products["p1"] = neutralProduct("p1", 20.00, 10)
	store.variants["v1"] = &models.ProductVariant{
		ID: "v1", ProductID: "p1", SKU: "SKU-v1", Title: "Red / M",
		Price: 25.00, InventoryQuantity: 6,
	}
	reader.sold7d["p1"] = 5

	variantID := "v1"
	placed, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: "user-1",
		Items: []LineRequest{
			{ProductID: "p1", Quantity: 4},
			{ProductID: "p1", VariantID: &variantID, Quantity: 2},
		},
		ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)
	require.Equal(t, 6, store.products["p1"].InventoryQuantity)
	require.Equal(t, 4, store.variants["v1"].InventoryQuantity)

	err = svc.CancelOrder(context.Background(), placed.OrderID)
	require.NoError(t, err)

	// Stock back where it started, status flipped, event published.
	assert.Equal(t, 10, store.products["p1"].InventoryQuantity)
	assert.Equal(t, 6, store.variants["v1"].InventoryQuantity)
	assert.Equal(t, models.OrderStatusCancelled, store.orders[placed.OrderID].Status)
	assert.Equal(t, []string{placed.OrderID}, events.cancelled)

	// The ledger nets to zero per row: sale entries plus matching returns.
	require.Len(t, store.ledger, 4)
	deltas := map[string]int{}
	for _, entry := range store.ledger {
		key := entry.ProductID
		if entry.VariantID != nil {
			key += "/" + *entry.VariantID
		}
		deltas[key] += entry.Delta
	}
	assert.Equal(t, 0, deltas["p1"])
	assert.Equal(t, 0, deltas["p1/v1"])

	returns := store.ledger[2:]
	for _, entry := range returns {
		assert.Equal(t, models.TransactionTypeReturn, entry.Type)
		assert.Equal(t, placed.OrderID, entry.Reference)
	}
}

func TestCancelOrder_SecondCancelIsRejected(t *testing.T) {
	store := newFakeStore()
	reader := steadyReader()
	svc := newTestService(store, reader, &fakeEvents{})

	store.products["p1"] = neutralProduct("p1", 20.00, 10)
	reader.sold7d["p1"] = 5

	placed, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:          "user-1",
		Items:           []LineRequest{{ProductID: "p1", Quantity: 3}},
		ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)
	require.NoError(t, svc.CancelOrder(context.Background(), placed.OrderID))

	err = svc.CancelOrder(context.Background(), placed.OrderID)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, 10, store.products["p1"].InventoryQuantity, "stock restored once, not twice")
}

func TestCancelOrder_UnknownOrder(t *testing.T) {
	svc := newTestService(newFakeStore(), steadyReader(), &fakeEvents{})

	err := svc.CancelOrder(context.Background(), "ghost")

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "order", notFound.Kind)
}

func TestRestock_PositiveDelta(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, steadyReader(), &fakeEvents{})

	store.products["p1"] = neutralProduct("p1", 20.00, 3)

	entry, err := svc.Restock(context.Background(), RestockRequest{
		ProductID: "p1",
		Delta:     25,
		Note:      "PO-1042",
	})
	require.NoError(t, err)

	assert.Equal(t, 28, store.products["p1"].InventoryQuantity)
	assert.Equal(t, models.TransactionTypeRestock, entry.Type)
	assert.Equal(t, 25, entry.Delta)
	assert.Equal(t, 28, entry.ResultingBalance)
	assert.Equal(t, "PO-1042", entry.Reference)
	require.Len(t, store.ledger, 1)
}

func TestRestock_NegativeAdjustment(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, steadyReader(), &fakeEvents{})

	store.products["p1"] = neutralProduct("p1", 20.00, 10)

	entry, err := svc.Restock(context.Background(), RestockRequest{ProductID: "p1", Delta: -4})
	require.NoError(t, err)

	assert.Equal(t, 6, store.products["p1"].InventoryQuantity)
	assert.Equal(t, models.TransactionTypeAdjustment, entry.Type)
	assert.Equal(t, "manual", entry.Reference)
}

func TestRestock_CannotDrainBelowZero(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, steadyReader(), &fakeEvents{})

	store.products["p1"] = neutralProduct("p1", 20.00, 3)

	_, err := svc.Restock(context.Background(), RestockRequest{ProductID: "p1", Delta: -5})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, store.products["p1"].InventoryQuantity)
	assert.Empty(t, store.ledger)
}

func TestRestock_ZeroDelta(t *testing.T) {
	svc := newTestService(newFakeStore(), steadyReader(), &fakeEvents{})

	_, err := svc.Restock(context.Background(), RestockRequest{ProductID: "p1"})

	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestRestock_VariantRow(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, steadyReader(), &fakeEvents{})

	store.products["p1"] = neutralProduct("p1", 20.00, 0)
	store.variants["v1"] = &models.ProductVariant{ID: "v1", ProductID: "p1", InventoryQuantity: 2}

	variantID := "v1"
	entry, err := svc.Restock(context.Background(), RestockRequest{
		ProductID: "p1",
		VariantID: &variantID,
		Delta:     8,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, store.variants["v1"].InventoryQuantity)
	assert.Equal(t, 0, store.products["p1"].InventoryQuantity, "variant restock leaves the product row alone")
	require.NotNil(t, entry.VariantID)
	assert.Equal(t, "v1", *entry.VariantID)
}
