package messaging

import (
	"encoding/json"
	"log"
	"time"

	"github.com/commercekit/fulfillment-engine/internal/models"
)

// Queue names this engine publishes to.
const (
	OrderPlacedQueue    = "order.placed"
	OrderCancelledQueue = "order.cancelled"
)

// OrderEvent is the wire shape of order lifecycle notifications.
type OrderEvent struct {
	OrderID     string           `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	UserID      string           `json:"user_id"`
	TotalAmount float64          `json:"total_amount"`
	Status      string           `json:"status"`
	Items       []OrderEventItem `json:"items,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// OrderEventItem is one line of an OrderEvent.
type OrderEventItem struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity"`
}

// OrderPublisher implements fulfillment.EventPublisher over RabbitMQ.
// Publishing happens after the transaction committed and is best-effort:
// a broker failure is logged, never propagated.
type OrderPublisher struct {
	mq *RabbitMQ
}

// NewOrderPublisher declares the lifecycle queues and returns the publisher.
func NewOrderPublisher(mq *RabbitMQ) (*OrderPublisher, error) {
	for _, queue := range []string{OrderPlacedQueue, OrderCancelledQueue} {
		if err := mq.DeclareQueue(queue); err != nil {
			return nil, err
		}
	}
	return &OrderPublisher{mq: mq}, nil
}

// OrderPlaced publishes an order.placed event.
func (p *OrderPublisher) OrderPlaced(order *models.Order, items []models.OrderItem) {
	event := OrderEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
		OccurredAt:  time.Now(),
	}
	for _, item := range items {
		event.Items = append(event.Items, OrderEventItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	p.publish(OrderPlacedQueue, event)
}

// OrderCancelled publishes an order.cancelled event.
func (p *OrderPublisher) OrderCancelled(order *models.Order) {
	p.publish(OrderCancelledQueue, OrderEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
		OccurredAt:  time.Now(),
	})
}

func (p *OrderPublisher) publish(queue string, event OrderEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ failed to marshal %s event: %v", queue, err)
		return
	}
	if err := p.mq.Publish(queue, data); err != nil {
		log.Printf("❌ failed to publish %s event for order %s: %v", queue, event.OrderID, err)
		return
	}
	log.Printf("📤 Published %s for order %s", queue, event.OrderID)
}
