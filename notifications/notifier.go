package notifications

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/anjiri1684/studio_booking/models"
)

// Notifier delivers customer-facing messages. Callers invoke it only after the
// ledger writes it describes have committed; a delivery failure is reported
// but never undoes those writes.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, booking models.Booking) error
	SendBookingCancellation(ctx context.Context, booking models.Booking) error
	SendBookingReschedule(ctx context.Context, oldBooking, newBooking models.Booking) error
	SendPaymentReceipt(ctx context.Context, payment models.Payment) error
	SendSubscriptionExpiryReminder(ctx context.Context, subscription models.Subscription) error
}

// LogNotifier only logs. Used when no delivery channel is configured.
type LogNotifier struct{}

func (LogNotifier) SendBookingConfirmation(_ context.Context, b models.Booking) error {
	log.Printf("📣 booking %s confirmed for customer %s", b.ID, b.CustomerID)
	return nil
}

func (LogNotifier) SendBookingCancellation(_ context.Context, b models.Booking) error {
	log.Printf("📣 booking %s canceled (%s)", b.ID, b.CanceledReason)
	return nil
}

func (LogNotifier) SendBookingReschedule(_ context.Context, oldBooking, newBooking models.Booking) error {
	log.Printf("📣 booking %s rescheduled to %s", oldBooking.ID, newBooking.ID)
	return nil
}

func (LogNotifier) SendPaymentReceipt(_ context.Context, p models.Payment) error {
	log.Printf("📣 receipt for payment %s (%d %s)", p.ID, p.AmountInCents, p.Currency)
	return nil
}

func (LogNotifier) SendSubscriptionExpiryReminder(_ context.Context, s models.Subscription) error {
	log.Printf("📣 subscription %s expires at %s", s.ID, s.ExpiresAt.Format(time.RFC3339))
	return nil
}

// Fanout delivers every message to each notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) each(fn func(Notifier) error) error {
	var errs []error
	for _, n := range f {
		if err := fn(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) SendBookingConfirmation(ctx context.Context, b models.Booking) error {
	return f.each(func(n Notifier) error { return n.SendBookingConfirmation(ctx, b) })
}

func (f Fanout) SendBookingCancellation(ctx context.Context, b models.Booking) error {
	return f.each(func(n Notifier) error { return n.SendBookingCancellation(ctx, b) })
}

func (f Fanout) SendBookingReschedule(ctx context.Context, oldBooking, newBooking models.Booking) error {
	return f.each(func(n Notifier) error { return n.SendBookingReschedule(ctx, oldBooking, newBooking) })
}

func (f Fanout) SendPaymentReceipt(ctx context.Context, p models.Payment) error {
	return f.each(func(n Notifier) error { return n.SendPaymentReceipt(ctx, p) })
}

func (f Fanout) SendSubscriptionExpiryReminder(ctx context.Context, s models.Subscription) error {
	return f.each(func(n Notifier) error { return n.SendSubscriptionExpiryReminder(ctx, s) })
}

// Async hands each message to a goroutine so request handlers and jobs never
// wait on SMTP or the broker. Failures are logged. Wait blocks until in-flight
// deliveries finish, for graceful shutdown.
type Async struct {
	next    Notifier
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Async{next: next, timeout: timeout}
}

func (a *Async) dispatch(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("🔥 Failed to deliver %s notification: %v", kind, err)
		}
	}()
	return nil
}

func (a *Async) Wait() {
	a.wg.Wait()
}

func (a *Async) SendBookingConfirmation(ctx context.Context, b models.Booking) error {
	return a.dispatch(ctx, "booking confirmation", func(ctx context.Context) error {
		return a.next.SendBookingConfirmation(ctx, b)
	})
}

func (a *Async) SendBookingCancellation(ctx context.Context, b models.Booking) error {
	return a.dispatch(ctx, "booking cancellation", func(ctx context.Context) error {
		return a.next.SendBookingCancellation(ctx, b)
	})
}

func (a *Async) SendBookingReschedule(ctx context.Context, oldBooking, newBooking models.Booking) error {
	return a.dispatch(ctx, "booking reschedule", func(ctx context.Context) error {
		return a.next.SendBookingReschedule(ctx, oldBooking, newBooking)
	})
}

func (a *Async) SendPaymentReceipt(ctx context.Context, p models.Payment) error {
	return a.dispatch(ctx, "payment receipt", func(ctx context.Context) error {
		return a.next.SendPaymentReceipt(ctx, p)
	})
}

func (a *Async) SendSubscriptionExpiryReminder(ctx context.Context, s models.Subscription) error {
	return a.dispatch(ctx, "expiry reminder", func(ctx context.Context) error {
		return a.next.SendSubscriptionExpiryReminder(ctx, s)
	})
}
