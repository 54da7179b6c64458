package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/anjiri1684/studio_booking/database"
	"github.com/anjiri1684/studio_booking/models"
	"github.com/anjiri1684/studio_booking/notifications"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubscriptionService owns subscription status and session counters. Every
// transition runs under the subscription's row lock.
type SubscriptionService struct {
	db       *gorm.DB
	notifier notifications.Notifier
	now      func() time.Time
}

func NewSubscriptionService(db *gorm.DB, notifier notifications.Notifier) *SubscriptionService {
	return &SubscriptionService{db: db, notifier: notifier, now: utcNow}
}

func (s *SubscriptionService) WithClock(now func() time.Time) *SubscriptionService {
	s.now = now
	return s
}

func (s *SubscriptionService) Get(ctx context.Context, id uuid.UUID, actor Actor) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Preload("Package").First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("subscription")
		}
		return nil, err
	}
	if !actor.canAccess(sub.CustomerID) {
		return nil, ErrForbidden
	}
	return &sub, nil
}

func (s *SubscriptionService) ListForCustomer(ctx context.Context, actor Actor) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Package").
		Where("customer_id = ?", actor.ID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

func (s *SubscriptionService) Payments(ctx context.Context, id uuid.UUID, actor Actor) ([]models.Payment, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}

	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("subscription_id = ?", id).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (s *SubscriptionService) Pause(ctx context.Context, id uuid.UUID, actor Actor) (*models.Subscription, error) {
	return s.transition(ctx, id, actor, func(tx *gorm.DB, sub *models.Subscription, now time.Time) error {
		if sub.Status != models.SubscriptionActive {
			return invalidTransition(sub.Status, "pause")
		}
		sub.Status = models.SubscriptionPaused
		sub.PausedAt = &now
		return database.UpdateColumns(tx, sub, "status", "paused_at")
	})
}

// Resume reactivates a paused subscription. The time spent paused is added to
// the expiry and, for recurring subscriptions, to the next billing date.
func (s *SubscriptionService) Resume(ctx context.Context, id uuid.UUID, actor Actor) (*models.Subscription, error) {
	return s.transition(ctx, id, actor, func(tx *gorm.DB, sub *models.Subscription, now time.Time) error {
		if sub.Status != models.SubscriptionPaused {
			return invalidTransition(sub.Status, "resume")
		}

		var paused time.Duration
		if sub.PausedAt != nil && now.After(*sub.PausedAt) {
			paused = now.Sub(*sub.PausedAt)
		}
		sub.ExpiresAt = sub.ExpiresAt.Add(paused)
		if sub.IsRecurring {
			next := sub.ExpiresAt
			if sub.NextBillingDate != nil {
				next = sub.NextBillingDate.Add(paused)
			}
			next = startOfDay(next)
			sub.NextBillingDate = &next
		}
		sub.Status = models.SubscriptionActive
		sub.PausedAt = nil
		sub.ExpiryRemindedAt = nil
		return database.UpdateColumns(tx, sub, "status", "paused_at", "expires_at", "next_billing_date", "expiry_reminded_at")
	})
}

func (s *SubscriptionService) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*models.Subscription, error) {
	return s.transition(ctx, id, actor, func(tx *gorm.DB, sub *models.Subscription, now time.Time) error {
		if sub.Status != models.SubscriptionActive && sub.Status != models.SubscriptionPaused {
			return invalidTransition(sub.Status, "cancel")
		}
		sub.Status = models.SubscriptionCanceled
		sub.NextBillingDate = nil
		sub.CanceledAt = &now
		return database.UpdateColumns(tx, sub, "status", "next_billing_date", "canceled_at")
	})
}

func (s *SubscriptionService) transition(ctx context.Context, id uuid.UUID, actor Actor, apply func(tx *gorm.DB, sub *models.Subscription, now time.Time) error) (*models.Subscription, error) {
	var sub models.Subscription
	err := database.InTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := database.LockByID(tx, &sub, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("subscription")
			}
			return err
		}
		if !actor.canAccess(sub.CustomerID) {
			return ErrForbidden
		}
		return apply(tx, &sub, s.now())
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// DueForExpiry returns the ids of active subscriptions whose expiry has passed.
func (s *SubscriptionService) DueForExpiry(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ? AND expires_at <= ?", models.SubscriptionActive, s.now()).
		Order("expires_at").
		Pluck("id", &ids).Error
	return ids, err
}

// Expire moves one subscription from active to expired and cancels its future
// live bookings, without the customer cancellation cutoff. expired is false
// when another run already handled the subscription.
func (s *SubscriptionService) Expire(ctx context.Context, id uuid.UUID) (expired bool, canceled []models.Booking, err error) {
	now := s.now()
	err = database.InTx(ctx, s.db, func(tx *gorm.DB) error {
		var sub models.Subscription
		if err := database.LockByID(tx, &sub, id); err != nil {
			return err
		}
		if sub.Status != models.SubscriptionActive || sub.ExpiresAt.After(now) {
			return nil
		}

		var future []models.Booking
		if err := tx.Joins("JOIN availability_slots ON availability_slots.id = bookings.slot_id").
			Where("bookings.subscription_id = ? AND bookings.status IN ? AND availability_slots.starts_at >= ?",
				sub.ID, models.LiveBookingStatuses, now).
			Find(&future).Error; err != nil {
			return err
		}

		var done []models.Booking
		for i := range future {
			booking := future[i]
			if err := database.LockByID(tx, &booking, booking.ID); err != nil {
				return err
			}
			if !booking.IsLive() {
				continue
			}
			var slot models.AvailabilitySlot
			if err := database.LockByID(tx, &slot, booking.SlotID); err != nil {
				return err
			}
			if err := cancelInTx(tx, &booking, &slot, "subscription expired", now); err != nil {
				return err
			}
			done = append(done, booking)
		}

		if err := expireInTx(tx, &sub); err != nil {
			return err
		}
		expired = true
		canceled = done
		return nil
	})
	if err != nil {
		return false, nil, err
	}

	for _, booking := range canceled {
		booking := booking
		deliver(s.notifier, "booking cancellation", func(n notifications.Notifier) error {
			return n.SendBookingCancellation(ctx, booking)
		})
	}
	return expired, canceled, nil
}

// SendExpiryReminders notifies customers whose active subscription expires
// within lead. Each subscription is reminded once per expiry date: the row is
// claimed before sending and the claim is dropped again if delivery fails. It
// returns how many reminders were delivered.
func (s *SubscriptionService) SendExpiryReminders(ctx context.Context, lead time.Duration) (int, error) {
	if s.notifier == nil {
		return 0, nil
	}
	now := s.now()
	db := s.db.WithContext(ctx)

	var subs []models.Subscription
	err := db.
		Where("status = ? AND is_recurring = ? AND expires_at > ? AND expires_at <= ?",
			models.SubscriptionActive, false, now, now.Add(lead)).
		Where("expiry_reminded_at IS NULL").
		Find(&subs).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, sub := range subs {
		claim := db.Model(&models.Subscription{}).
			Where("id = ? AND expiry_reminded_at IS NULL", sub.ID).
			Update("expiry_reminded_at", now)
		if claim.Error != nil {
			return sent, claim.Error
		}
		if claim.RowsAffected == 0 {
			continue
		}

		if err := s.notifier.SendSubscriptionExpiryReminder(ctx, sub); err != nil {
			log.Printf("⚠️ Could not send expiry reminder for subscription %s: %v", sub.ID, err)
			if err := db.Model(&models.Subscription{}).Where("id = ?", sub.ID).Update("expiry_reminded_at", nil).Error; err != nil {
				log.Printf("🔥 Could not release expiry reminder for subscription %s: %v", sub.ID, err)
			}
			continue
		}
		sent++
	}
	return sent, nil
}

func expireInTx(tx *gorm.DB, sub *models.Subscription) error {
	if sub.Status != models.SubscriptionActive {
		return invalidTransition(sub.Status, "expire")
	}
	sub.Status = models.SubscriptionExpired
	sub.SessionsUsed = sub.SessionsTotal
	sub.NextBillingDate = nil
	return database.UpdateColumns(tx, sub, "status", "sessions_used", "next_billing_date")
}

// renewInTx starts a new billing period on a locked subscription.
func renewInTx(tx *gorm.DB, sub *models.Subscription, pkg models.Package, now time.Time) error {
	validity := pkg.ValidityWindow()

	next := startOfDay(now)
	if sub.NextBillingDate != nil && sub.NextBillingDate.After(next) {
		next = *sub.NextBillingDate
	}
	next = next.Add(validity)

	expires := now
	if sub.ExpiresAt.After(expires) {
		expires = sub.ExpiresAt
	}
	expires = expires.Add(validity)

	sub.SessionsUsed = 0
	sub.SessionsTotal = pkg.SessionsCount
	sub.NextBillingDate = &next
	sub.ExpiresAt = expires
	sub.ExpiryRemindedAt = nil
	return database.UpdateColumns(tx, sub, "sessions_used", "sessions_total", "next_billing_date", "expires_at", "expiry_reminded_at")
}

func consumeSession(tx *gorm.DB, sub *models.Subscription) error {
	if sub.SessionsRemaining() <= 0 {
		return subscriptionUnusable("no sessions left")
	}
	sub.SessionsUsed++
	return database.UpdateColumns(tx, sub, "sessions_used")
}

// releaseSession gives back one session, never going below zero. Expired
// subscriptions keep sessions_used == sessions_total.
func releaseSession(tx *gorm.DB, subscriptionID uuid.UUID) error {
	var sub models.Subscription
	if err := database.LockByID(tx, &sub, subscriptionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if sub.Status == models.SubscriptionExpired || sub.SessionsUsed == 0 {
		return nil
	}
	sub.SessionsUsed--
	return database.UpdateColumns(tx, &sub, "sessions_used")
}
