package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ikkim/shopcore-backend/pkg/logger"
	"github.com/ikkim/shopcore-backend/pkg/mailer"
)

const mailTimeout = 30 * time.Second

// MailSubscriber emails the order contact. Sending happens off the request path.
type MailSubscriber struct {
	sender mailer.Sender
}

func NewMailSubscriber(sender mailer.Sender) *MailSubscriber {
	return &MailSubscriber{sender: sender}
}

func (s *MailSubscriber) Name() string {
	return "mail"
}

func (s *MailSubscriber) Handle(event Event) error {
	if event.Email == "" {
		return nil
	}
	subject, body := renderOrderMail(event)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := s.sender.Send(ctx, event.Email, subject, body); err != nil {
			logger.Error("Failed to send order email", err, map[string]interface{}{
				"order_id": event.OrderID,
				"event":    event.Type,
			})
		}
	}()
	return nil
}

func renderOrderMail(event Event) (string, string) {
	switch event.Type {
	case OrderCreated:
		return fmt.Sprintf("Order %s received", event.OrderNumber),
			fmt.Sprintf("Thank you for your order.\n\nOrder number: %s\nTotal: %s\nStatus: %s\n",
				event.OrderNumber, event.Total.StringFixed(2), event.Status)
	default:
		return fmt.Sprintf("Order %s is now %s", event.OrderNumber, event.Status),
			fmt.Sprintf("Your order %s moved from %s to %s.\n",
				event.OrderNumber, event.PreviousStatus, event.Status)
	}
}
