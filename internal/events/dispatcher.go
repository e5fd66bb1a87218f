package events

import (
	"sync"

	"github.com/ikkim/shopcore-backend/pkg/logger"
)

type Publisher interface {
	Publish(event Event)
}

type Subscriber interface {
	Name() string
	Handle(event Event) error
}

// Dispatcher delivers each event to every subscriber in registration order.
// A failing subscriber is logged and does not stop the others.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

func NewDispatcher(subscribers ...Subscriber) *Dispatcher {
	return &Dispatcher{subscribers: subscribers}
}

func (d *Dispatcher) Subscribe(s Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, s)
}

func (d *Dispatcher) Publish(event Event) {
	d.mu.RLock()
	subscribers := append([]Subscriber(nil), d.subscribers...)
	d.mu.RUnlock()

	for _, s := range subscribers {
		if err := s.Handle(event); err != nil {
			logger.Error("Event subscriber failed", err, map[string]interface{}{
				"subscriber": s.Name(),
				"event":      event.Type,
				"order_id":   event.OrderID,
			})
		}
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
