package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/anjiri1684/studio_booking/models"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys on the events exchange.
const (
	KeyBookingConfirmed     = "booking.confirmed"
	KeyBookingCanceled      = "booking.canceled"
	KeyBookingRescheduled   = "booking.rescheduled"
	KeyPaymentReceipt       = "payment.receipt"
	KeySubscriptionExpiring = "subscription.expiry_reminder"
)

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// EventPublisher emits every notification as a JSON domain event on a topic
// exchange so other services (calendar sync, CRM, SMS) can react.
type EventPublisher struct {
	conn     *amqp.Connection
	ch       publishChannel
	exchange string
	mu       sync.Mutex
}

type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

type bookingEvent struct {
	BookingID         uuid.UUID  `json:"booking_id"`
	CustomerID        uuid.UUID  `json:"customer_id"`
	SlotID            uuid.UUID  `json:"slot_id"`
	TrainerID         *uuid.UUID `json:"trainer_id,omitempty"`
	SubscriptionID    *uuid.UUID `json:"subscription_id,omitempty"`
	Status            string     `json:"status"`
	CanceledReason    string     `json:"canceled_reason,omitempty"`
	RescheduledFromID *uuid.UUID `json:"rescheduled_from_id,omitempty"`
}

func newBookingEvent(b models.Booking) bookingEvent {
	return bookingEvent{
		BookingID:         b.ID,
		CustomerID:        b.CustomerID,
		SlotID:            b.SlotID,
		TrainerID:         b.TrainerID,
		SubscriptionID:    b.SubscriptionID,
		Status:            b.Status,
		CanceledReason:    b.CanceledReason,
		RescheduledFromID: b.RescheduledFromID,
	}
}

func NewEventPublisher(url, exchange string) (*EventPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &EventPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *EventPublisher) publish(ctx context.Context, key string, data interface{}) error {
	body, err := json.Marshal(Event{
		ID:         uuid.NewString(),
		Type:       key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", key, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

func (p *EventPublisher) SendBookingConfirmation(ctx context.Context, b models.Booking) error {
	return p.publish(ctx, KeyBookingConfirmed, newBookingEvent(b))
}

func (p *EventPublisher) SendBookingCancellation(ctx context.Context, b models.Booking) error {
	return p.publish(ctx, KeyBookingCanceled, newBookingEvent(b))
}

func (p *EventPublisher) SendBookingReschedule(ctx context.Context, oldBooking, newBooking models.Booking) error {
	return p.publish(ctx, KeyBookingRescheduled, map[string]bookingEvent{
		"old": newBookingEvent(oldBooking),
		"new": newBookingEvent(newBooking),
	})
}

func (p *EventPublisher) SendPaymentReceipt(ctx context.Context, pay models.Payment) error {
	return p.publish(ctx, KeyPaymentReceipt, map[string]interface{}{
		"payment_id":         pay.ID,
		"customer_id":        pay.CustomerID,
		"subscription_id":    pay.SubscriptionID,
		"kind":               pay.Kind,
		"amount_in_cents":    pay.AmountInCents,
		"currency":           pay.Currency,
		"provider_reference": pay.ProviderReference,
	})
}

func (p *EventPublisher) SendSubscriptionExpiryReminder(ctx context.Context, s models.Subscription) error {
	return p.publish(ctx, KeySubscriptionExpiring, map[string]interface{}{
		"subscription_id":    s.ID,
		"customer_id":        s.CustomerID,
		"expires_at":         s.ExpiresAt,
		"sessions_remaining": s.SessionsRemaining(),
	})
}

func (p *EventPublisher) Close() error {
	if closer, ok := p.ch.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
