package events

import (
	"time"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/shopspring/decimal"
)

type Type string

const (
	OrderCreated       Type = "order.created"
	OrderStatusChanged Type = "order.status_changed"
)

// Event is the payload fanned out after an order write commits.
type Event struct {
	Type           Type              `json:"type"`
	OrderID        uint              `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	UserID         *uint             `json:"user_id,omitempty"`
	IsGuest        bool              `json:"is_guest"`
	Status         model.OrderStatus `json:"status"`
	PreviousStatus model.OrderStatus `json:"previous_status,omitempty"`
	Forced         bool              `json:"forced,omitempty"`
	Total          decimal.Decimal   `json:"total"`
	Email          string            `json:"-"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

func NewOrderCreated(order *model.Order) Event {
	return Event{
		Type:        OrderCreated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		IsGuest:     order.IsGuest,
		Status:      order.Status,
		Total:       order.Total,
		Email:       order.ContactEmail(),
		OccurredAt:  time.Now(),
	}
}

func NewStatusChanged(order *model.Order, from model.OrderStatus, forced bool) Event {
	event := NewOrderCreated(order)
	event.Type = OrderStatusChanged
	event.PreviousStatus = from
	event.Forced = forced
	return event
}
