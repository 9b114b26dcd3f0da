package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/commercekit/fulfillment-engine/internal/fulfillment"
	"github.com/commercekit/fulfillment-engine/internal/models"
)

// FulfillmentService is the use-case surface the HTTP layer exposes.
type FulfillmentService interface {
	PlaceOrder(ctx context.Context, req fulfillment.PlaceOrderRequest) (*fulfillment.PlaceOrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	Restock(ctx context.Context, req fulfillment.RestockRequest) (*models.InventoryTransaction, error)
	GetDynamicPrice(ctx context.Context, productID, userID string) (*fulfillment.PriceQuote, error)
	GetReorderReport(ctx context.Context) ([]fulfillment.ReorderSuggestion, error)
	GetRecommendations(ctx context.Context, userID, productID string, limit int) ([]fulfillment.Recommendation, error)
}

// Handler contains the HTTP handlers.
type Handler struct {
	service FulfillmentService
}

// NewHandler creates a new Handler.
func NewHandler(service FulfillmentService) *Handler {
	return &Handler{service: service}
}

// Routes mounts every endpoint on the router.
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	api.POST("/orders", h.PlaceOrder)
	api.POST("/orders/:id/cancel", h.CancelOrder)
	api.POST("/inventory/restock", h.Restock)
	api.GET("/products/:id/price", h.GetDynamicPrice)
	api.GET("/inventory/reorder-report", h.GetReorderReport)
	api.GET("/recommendations", h.GetRecommendations)
}

// PlaceOrder commits an order or reports every reason it cannot be placed.
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req fulfillment.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	result, err := h.service.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		status, payload := failurePayload(err)
		c.JSON(status, payload)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"order_id":     result.OrderID,
		"order_number": result.OrderNumber,
		"total_amount": result.TotalAmount,
		"message":      "order placed successfully",
		"coupon_note":  result.CouponNote,
	})
}

// CancelOrder compensates a committed order.
func (h *Handler) CancelOrder(c *gin.Context) {
	if err := h.service.CancelOrder(c.Request.Context(), c.Param("id")); err != nil {
		status, payload := failurePayload(err)
		c.JSON(status, payload)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "order cancelled"})
}

// Restock applies a manual stock mutation.
func (h *Handler) Restock(c *gin.Context) {
	var req fulfillment.RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	entry, err := h.service.Restock(c.Request.Context(), req)
	if err != nil {
		status, payload := failurePayload(err)
		c.JSON(status, payload)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": entry})
}

// GetDynamicPrice quotes the current dynamic price for a product. The caller
// identity, when known, arrives in the X-User-ID header set upstream.
func (h *Handler) GetDynamicPrice(c *gin.Context) {
	quote, err := h.service.GetDynamicPrice(c.Request.Context(), c.Param("id"), c.GetHeader("X-User-ID"))
	if err != nil {
		status, payload := failurePayload(err)
		c.JSON(status, payload)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// GetReorderReport lists restocking suggestions, most urgent first.
func (h *Handler) GetReorderReport(c *gin.Context) {
	report, err := h.service.GetReorderReport(c.Request.Context())
	if err != nil {
		status, payload := failurePayload(err)
		c.JSON(status, payload)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": report})
}

// GetRecommendations returns a ranked product list for an optional user and
// optional anchor product.
func (h *Handler) GetRecommendations(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "limit must be a positive integer"})
		return
	}

	recs, err := h.service.GetRecommendations(c.Request.Context(), c.GetHeader("X-User-ID"), c.Query("product_id"), limit)
	if err != nil {
		status, payload := failurePayload(err)
		c.JSON(status, payload)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// HealthCheck reports service health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "fulfillment-service",
	})
}

// failurePayload maps engine errors onto HTTP responses. Insufficient stock
// reports every shortfall, not just the first.
func failurePayload(err error) (int, gin.H) {
	var (
		validation *fulfillment.ValidationError
		notFound   *fulfillment.NotFoundError
		stock      *fulfillment.InsufficientStockError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, gin.H{"success": false, "message": err.Error()}
	case errors.As(err, &notFound):
		return http.StatusNotFound, gin.H{"success": false, "message": err.Error()}
	case errors.As(err, &stock):
		return http.StatusConflict, gin.H{"success": false, "message": err.Error(), "shortfalls": stock.Shortfalls}
	case errors.Is(err, fulfillment.ErrConflict):
		return http.StatusConflict, gin.H{"success": false, "message": err.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()}
	}
}
