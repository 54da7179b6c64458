package services

import (
	"context"
	"errors"
	"log"
	"time"

	config "github.com/anjiri1684/studio_booking/configs"
	"github.com/anjiri1684/studio_booking/database"
	"github.com/anjiri1684/studio_booking/models"
	"github.com/anjiri1684/studio_booking/notifications"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const bookedReason = "booked"

type BookingService struct {
	db       *gorm.DB
	notifier notifications.Notifier
	cfg      config.BookingConfig
	now      func() time.Time
}

func NewBookingService(db *gorm.DB, notifier notifications.Notifier, cfg config.BookingConfig) *BookingService {
	if cfg.TravelBuffer < 0 {
		cfg.TravelBuffer = DefaultTravelBuffer
	}
	return &BookingService{db: db, notifier: notifier, cfg: cfg, now: utcNow}
}

// WithClock replaces the service clock. Used by tests and jobs that need a
// fixed "now".
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

type CreateBookingInput struct {
	CustomerID     uuid.UUID
	SlotID         uuid.UUID
	PackageID      uuid.UUID
	SubscriptionID *uuid.UUID
	// TrainerID is used only when the slot has no trainer of its own.
	TrainerID *uuid.UUID

	rescheduledFrom *uuid.UUID
}

type BookingFilter struct {
	SubscriptionID *uuid.UUID
	Status         string
}

type SlotQuery struct {
	From      time.Time
	To        time.Time
	TrainerID *uuid.UUID
}

func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if in.CustomerID == uuid.Nil || in.SlotID == uuid.Nil {
		return nil, validation("customer and slot are required")
	}

	var booking models.Booking
	err := database.InTx(ctx, s.db, func(tx *gorm.DB) error {
		created, err := s.createInTx(tx, in, nil, s.now())
		if err != nil {
			return err
		}
		booking = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	deliver(s.notifier, "booking confirmation", func(n notifications.Notifier) error {
		return n.SendBookingConfirmation(ctx, booking)
	})
	return &booking, nil
}

// createInTx acquires the slot for a new booking. Every precondition is read
// after the slot row is locked.
func (s *BookingService) createInTx(tx *gorm.DB, in CreateBookingInput, exclude *uuid.UUID, now time.Time) (models.Booking, error) {
	var slot models.AvailabilitySlot
	if err := database.LockByID(tx, &slot, in.SlotID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Booking{}, slotUnavailable("slot does not exist")
		}
		return models.Booking{}, err
	}

	switch {
	case !slot.IsActive:
		return models.Booking{}, slotUnavailable("slot is not active")
	case slot.IsBlocked:
		return models.Booking{}, slotUnavailable("slot is blocked")
	case !slot.EndsAt.After(now):
		return models.Booking{}, slotUnavailable("slot is in the past")
	}

	var live int64
	if err := tx.Model(&models.Booking{}).
		Where("slot_id = ? AND status IN ?", slot.ID, models.LiveBookingStatuses).
		Count(&live).Error; err != nil {
		return models.Booking{}, err
	}
	if live > 0 {
		return models.Booking{}, slotUnavailable("slot is already booked")
	}

	trainerID := ResolveEffectiveTrainer(slot, in.TrainerID)
	if trainerID != nil {
		// The trainer row serializes bookings on different slots for the same trainer.
		var trainer models.User
		if err := database.LockByID(tx, &trainer, *trainerID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Booking{}, err
		}
		buffer := s.cfg.TravelBuffer
		windows, err := liveWindows(tx, trainerID, slot.StartsAt.Add(-buffer), slot.EndsAt.Add(buffer))
		if err != nil {
			return models.Booking{}, err
		}
		if HasTravelBufferConflict(slot, *trainerID, windows, exclude, buffer) {
			return models.Booking{}, slotUnavailable("trainer has another session too close to this slot")
		}
	}

	packageID := in.PackageID
	var sub *models.Subscription
	if in.SubscriptionID != nil {
		sub = &models.Subscription{}
		if err := database.LockByID(tx, sub, *in.SubscriptionID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Booking{}, notFound("subscription")
			}
			return models.Booking{}, err
		}
		if err := checkSubscriptionUsable(*sub, in.CustomerID, slot, now); err != nil {
			return models.Booking{}, err
		}
		packageID = sub.PackageID
	}
	if packageID == uuid.Nil {
		return models.Booking{}, validation("a package or subscription is required")
	}
	if sub == nil {
		var count int64
		if err := tx.Model(&models.Package{}).Where("id = ?", packageID).Count(&count).Error; err != nil {
			return models.Booking{}, err
		}
		if count == 0 {
			return models.Booking{}, notFound("package")
		}
	}

	slot.IsBlocked = true
	slot.BlockedReason = bookedReason
	if err := database.UpdateColumns(tx, &slot, "is_blocked", "blocked_reason"); err != nil {
		return models.Booking{}, err
	}

	booking := models.Booking{
		CustomerID:        in.CustomerID,
		PackageID:         packageID,
		SlotID:            slot.ID,
		TrainerID:         trainerID,
		SubscriptionID:    in.SubscriptionID,
		Status:            models.BookingConfirmed,
		RescheduledFromID: in.rescheduledFrom,
	}
	if err := tx.Create(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Booking{}, slotUnavailable("slot is already booked")
		}
		return models.Booking{}, err
	}

	if sub != nil {
		if err := consumeSession(tx, sub); err != nil {
			return models.Booking{}, err
		}
	}

	booking.Slot = &slot
	return booking, nil
}

func checkSubscriptionUsable(sub models.Subscription, customerID uuid.UUID, slot models.AvailabilitySlot, now time.Time) error {
	switch {
	case sub.CustomerID != customerID:
		return ErrForbidden
	case sub.Status != models.SubscriptionActive:
		return subscriptionUnusable("subscription is " + sub.Status)
	case !sub.ExpiresAt.After(now):
		return subscriptionUnusable("subscription has expired")
	case slot.StartsAt.After(sub.ExpiresAt):
		return subscriptionUnusable("slot starts after the subscription expires")
	case sub.SessionsRemaining() <= 0:
		return subscriptionUnusable("no sessions left")
	}
	return nil
}

func (s *BookingService) Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*models.Booking, error) {
	now := s.now()
	var booking models.Booking
	err := database.InTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := lockBooking(tx, &booking, id, actor); err != nil {
			return err
		}
		if !booking.IsLive() {
			return invalidTransition(booking.Status, "cancel")
		}

		var slot models.AvailabilitySlot
		if err := database.LockByID(tx, &slot, booking.SlotID); err != nil {
			return err
		}
		if slot.StartsAt.Sub(now) < s.cfg.CancelCutoff {
			return ErrTooLateToCancel
		}
		return cancelInTx(tx, &booking, &slot, reason, now)
	})
	if err != nil {
		return nil, err
	}

	deliver(s.notifier, "booking cancellation", func(n notifications.Notifier) error {
		return n.SendBookingCancellation(ctx, booking)
	})
	return &booking, nil
}

// cancelInTx applies the effects of a cancellation to a booking and slot the
// caller has already locked. It reverses exactly what createInTx applied.
func cancelInTx(tx *gorm.DB, booking *models.Booking, slot *models.AvailabilitySlot, reason string, now time.Time) error {
	booking.Status = models.BookingCanceled
	booking.CanceledReason = reason
	booking.CanceledAt = &now
	if err := database.UpdateColumns(tx, booking, "status", "canceled_reason", "canceled_at"); err != nil {
		return err
	}

	if slot.IsBlocked && slot.BlockedReason == bookedReason {
		slot.IsBlocked = false
		slot.BlockedReason = ""
		if err := database.UpdateColumns(tx, slot, "is_blocked", "blocked_reason"); err != nil {
			return err
		}
	}

	if booking.SubscriptionID != nil {
		if err := releaseSession(tx, *booking.SubscriptionID); err != nil {
			return err
		}
	}

	booking.Slot = slot
	return nil
}

// Reschedule cancels the booking and books newSlotID in its place, in one
// transaction. If the new slot cannot be acquired the old booking stays live.
func (s *BookingService) Reschedule(ctx context.Context, id, newSlotID uuid.UUID, actor Actor) (*models.Booking, *models.Booking, error) {
	now := s.now()
	var oldBooking, newBooking models.Booking
	err := database.InTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := lockBooking(tx, &oldBooking, id, actor); err != nil {
			return err
		}
		if !oldBooking.IsLive() {
			return invalidTransition(oldBooking.Status, "reschedule")
		}
		if oldBooking.SlotID == newSlotID {
			return slotUnavailable("booking already holds this slot")
		}

		// Both slots are locked in id order so two opposite reschedules cannot deadlock.
		var slots []models.AvailabilitySlot
		if err := database.ForUpdate(tx).
			Where("id IN ?", []uuid.UUID{oldBooking.SlotID, newSlotID}).
			Order("id").
			Find(&slots).Error; err != nil {
			return err
		}
		var oldSlot *models.AvailabilitySlot
		for i := range slots {
			if slots[i].ID == oldBooking.SlotID {
				oldSlot = &slots[i]
			}
		}
		if oldSlot == nil {
			return notFound("slot")
		}
		if oldSlot.StartsAt.Sub(now) < s.cfg.CancelCutoff {
			return ErrTooLateToCancel
		}

		if err := cancelInTx(tx, &oldBooking, oldSlot, "rescheduled", now); err != nil {
			return err
		}

		fromID := oldBooking.ID
		created, err := s.createInTx(tx, CreateBookingInput{
			CustomerID:      oldBooking.CustomerID,
			SlotID:          newSlotID,
			PackageID:       oldBooking.PackageID,
			SubscriptionID:  oldBooking.SubscriptionID,
			TrainerID:       oldBooking.TrainerID,
			rescheduledFrom: &fromID,
		}, &fromID, now)
		if err != nil {
			return err
		}
		newBooking = created
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	deliver(s.notifier, "booking reschedule", func(n notifications.Notifier) error {
		return n.SendBookingReschedule(ctx, oldBooking, newBooking)
	})
	return &oldBooking, &newBooking, nil
}

// Confirm moves a pending booking to confirmed. Staff only.
func (s *BookingService) Confirm(ctx context.Context, id uuid.UUID, actor Actor) (*models.Booking, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}

	var booking models.Booking
	err := database.InTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := lockBooking(tx, &booking, id, actor); err != nil {
			return err
		}
		if booking.Status != models.BookingPending {
			return invalidTransition(booking.Status, "confirm")
		}
		booking.Status = models.BookingConfirmed
		return database.UpdateColumns(tx, &booking, "status")
	})
	if err != nil {
		return nil, err
	}

	deliver(s.notifier, "booking confirmation", func(n notifications.Notifier) error {
		return n.SendBookingConfirmation(ctx, booking)
	})
	return &booking, nil
}

func (s *BookingService) Get(ctx context.Context, id uuid.UUID, actor Actor) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.WithContext(ctx).Preload("Slot").First(&booking, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("booking")
		}
		return nil, err
	}
	if !canAccessBooking(actor, booking) {
		return nil, ErrForbidden
	}
	return &booking, nil
}

func (s *BookingService) List(ctx context.Context, actor Actor, filter BookingFilter) ([]models.Booking, error) {
	query := s.db.WithContext(ctx).Model(&models.Booking{}).Preload("Slot")
	switch {
	case actor.IsStaff():
	case actor.Role == models.RoleTrainer:
		query = query.Where("trainer_id = ? OR customer_id = ?", actor.ID, actor.ID)
	default:
		query = query.Where("customer_id = ?", actor.ID)
	}
	if filter.SubscriptionID != nil {
		query = query.Where("subscription_id = ?", *filter.SubscriptionID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var bookings []models.Booking
	if err := query.Order("created_at DESC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// Upcoming lists the actor's confirmed bookings starting within window from now.
// A zero window uses the configured reminder window.
func (s *BookingService) Upcoming(ctx context.Context, actor Actor, window time.Duration) ([]models.Booking, error) {
	if window <= 0 {
		window = s.cfg.ReminderWindow
	}
	now := s.now()

	query := s.db.WithContext(ctx).
		Preload("Slot").
		Joins("JOIN availability_slots ON availability_slots.id = bookings.slot_id").
		Where("bookings.status = ? AND availability_slots.starts_at >= ? AND availability_slots.starts_at < ?",
			models.BookingConfirmed, now, now.Add(window))
	switch {
	case actor.IsStaff():
	case actor.Role == models.RoleTrainer:
		query = query.Where("bookings.trainer_id = ?", actor.ID)
	default:
		query = query.Where("bookings.customer_id = ?", actor.ID)
	}

	var bookings []models.Booking
	if err := query.Order("availability_slots.starts_at").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// AvailableSlots lists bookable slots in [From, To), leaving out slots that
// would put a trainer inside the travel buffer of a live booking.
func (s *BookingService) AvailableSlots(ctx context.Context, q SlotQuery) ([]models.AvailabilitySlot, error) {
	now := s.now()
	from, to := q.From, q.To
	if from.Before(now) {
		from = now
	}
	if to.IsZero() {
		to = from.Add(7 * 24 * time.Hour)
	}
	if !to.After(from) {
		return nil, validation("'to' must be after 'from'")
	}

	db := s.db.WithContext(ctx)
	buffer := s.cfg.TravelBuffer
	windows, err := liveWindows(db, q.TrainerID, from.Add(-buffer), to.Add(buffer))
	if err != nil {
		return nil, err
	}

	query := db.Model(&models.AvailabilitySlot{}).
		Where("availability_slots.is_active = ? AND availability_slots.is_blocked = ?", true, false).
		Where("availability_slots.ends_at > ? AND availability_slots.starts_at < ?", from, to).
		Where("NOT EXISTS (SELECT 1 FROM bookings WHERE bookings.slot_id = availability_slots.id AND bookings.status IN ?)", models.LiveBookingStatuses)
	if q.TrainerID != nil {
		query = query.Where("availability_slots.trainer_id = ?", *q.TrainerID)
	}
	query = excludeConflicts(query, windows, buffer)

	var slots []models.AvailabilitySlot
	if err := query.Order("availability_slots.starts_at").Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

func lockBooking(tx *gorm.DB, booking *models.Booking, id uuid.UUID, actor Actor) error {
	if err := database.LockByID(tx, booking, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("booking")
		}
		return err
	}
	if !canAccessBooking(actor, *booking) {
		return ErrForbidden
	}
	return nil
}

func canAccessBooking(actor Actor, booking models.Booking) bool {
	if actor.canAccess(booking.CustomerID) {
		return true
	}
	return booking.TrainerID != nil && *booking.TrainerID == actor.ID
}

// deliver sends a notification after the writes it describes have committed.
// Failures are logged and never returned.
func deliver(n notifications.Notifier, what string, send func(notifications.Notifier) error) {
	if n == nil {
		return
	}
	if err := send(n); err != nil {
		log.Printf("⚠️ Could not send %s: %v", what, err)
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}
