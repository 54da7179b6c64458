package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/studio_booking/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBookingBlocksSlotAndConsumesSession(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 4, 30)
	sub := f.subscription(t, customer.ID, p, 1)
	slot := f.slot(t, baseTime.Add(72*time.Hour), time.Hour, nil)

	booking, err := f.bookings.Create(context.Background(), CreateBookingInput{
		CustomerID:     customer.ID,
		SlotID:         slot.ID,
		SubscriptionID: &sub.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, models.BookingConfirmed, booking.Status)
	assert.Equal(t, p.ID, booking.PackageID)
	assert.True(t, f.reloadSlot(t, slot.ID).IsBlocked)
	assert.Equal(t, 2, f.reloadSub(t, sub.ID).SessionsUsed)
	assert.Equal(t, 1, f.notifier.confirmations)
}

func TestCreateBookingRejectsUnavailableSlots(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 4, 30)

	inactive := f.slot(t, baseTime.Add(48*time.Hour), time.Hour, nil)
	require.NoError(t, f.db.Model(&inactive).Update("is_active", false).Error)
	blocked := f.slot(t, baseTime.Add(50*time.Hour), time.Hour, nil)
	require.NoError(t, f.db.Model(&blocked).Updates(map[string]interface{}{"is_blocked": true, "blocked_reason": "maintenance"}).Error)
	past := f.slot(t, baseTime.Add(-2*time.Hour), time.Hour, nil)

	for name, slotID := range map[string]uuid.UUID{
		"inactive": inactive.ID,
		"blocked":  blocked.ID,
		"past":     past.ID,
		"missing":  uuid.New(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: slotID, PackageID: p.ID})
			assert.ErrorIs(t, err, ErrSlotUnavailable)
		})
	}
	assert.Zero(t, f.count(t, &models.Booking{}, ""))
}

func TestConcurrentCreateOnlyOneSucceeds(t *testing.T) {
	f := newFixture(t)
	p := f.pkg(t, 4, 30)
	slot := f.slot(t, baseTime.Add(72*time.Hour), time.Hour, nil)

	const attempts = 8
	customers := make([]models.User, attempts)
	for i := range customers {
		customers[i] = f.user(t, models.RoleCustomer)
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.bookings.Create(context.Background(), CreateBookingInput{
				CustomerID: customers[i].ID,
				SlotID:     slot.ID,
				PackageID:  p.ID,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), f.count(t, &models.Booking{}, "slot_id = ? AND status IN ?", slot.ID, models.LiveBookingStatuses))
}

func TestTravelBufferBoundaryForSameTrainer(t *testing.T) {
	f := newFixture(t)
	trainer := f.user(t, models.RoleTrainer)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 8, 30)

	start := baseTime.Add(72 * time.Hour)
	first := f.slot(t, start, time.Hour, &trainer.ID)
	_, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: first.ID, PackageID: p.ID})
	require.NoError(t, err)

	tooSoon := f.slot(t, start.Add(time.Hour+44*time.Minute), time.Hour, &trainer.ID)
	_, err = f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: tooSoon.ID, PackageID: p.ID})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.False(t, f.reloadSlot(t, tooSoon.ID).IsBlocked)

	onBoundary := f.slot(t, start.Add(time.Hour+45*time.Minute), time.Hour, &trainer.ID)
	_, err = f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: onBoundary.ID, PackageID: p.ID})
	assert.NoError(t, err)
}

func TestTravelBufferUsesFallbackTrainer(t *testing.T) {
	f := newFixture(t)
	trainer := f.user(t, models.RoleTrainer)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 8, 30)

	start := baseTime.Add(72 * time.Hour)
	first := f.slot(t, start, time.Hour, &trainer.ID)
	_, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: first.ID, PackageID: p.ID})
	require.NoError(t, err)

	unassigned := f.slot(t, start.Add(90*time.Minute), time.Hour, nil)
	_, err = f.bookings.Create(context.Background(), CreateBookingInput{
		CustomerID: customer.ID, SlotID: unassigned.ID, PackageID: p.ID, TrainerID: &trainer.ID,
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestCreateBookingChecksSubscription(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	other := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 2, 30)

	full := f.subscription(t, customer.ID, p, 2)
	paused := f.subscription(t, customer.ID, p, 0)
	require.NoError(t, f.db.Model(&paused).Update("status", models.SubscriptionPaused).Error)
	foreign := f.subscription(t, other.ID, p, 0)

	slot := f.slot(t, baseTime.Add(72*time.Hour), time.Hour, nil)
	late := f.slot(t, baseTime.Add(40*24*time.Hour), time.Hour, nil)
	usable := f.subscription(t, customer.ID, p, 0)

	tests := []struct {
		name   string
		sub    uuid.UUID
		slot   uuid.UUID
		target error
	}{
		{"no sessions left", full.ID, slot.ID, ErrSubscriptionUnusable},
		{"paused", paused.ID, slot.ID, ErrSubscriptionUnusable},
		{"other customer", foreign.ID, slot.ID, ErrForbidden},
		{"slot after expiry", usable.ID, late.ID, ErrSubscriptionUnusable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subID := tt.sub
			_, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: tt.slot, SubscriptionID: &subID})
			assert.ErrorIs(t, err, tt.target)
		})
	}
	assert.False(t, f.reloadSlot(t, slot.ID).IsBlocked)
	assert.Equal(t, 0, f.reloadSub(t, usable.ID).SessionsUsed)
}

func TestCancelThenCreateIsSymmetric(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 4, 30)
	sub := f.subscription(t, customer.ID, p, 2)
	slot := f.slot(t, baseTime.Add(72*time.Hour), time.Hour, nil)

	booking, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: slot.ID, SubscriptionID: &sub.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, f.reloadSub(t, sub.ID).SessionsUsed)

	canceled, err := f.bookings.Cancel(context.Background(), booking.ID, customerActor(customer), "changed plans")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCanceled, canceled.Status)
	assert.Equal(t, "changed plans", canceled.CanceledReason)
	assert.Equal(t, 2, f.reloadSub(t, sub.ID).SessionsUsed)
	assert.False(t, f.reloadSlot(t, slot.ID).IsBlocked)

	_, err = f.bookings.Cancel(context.Background(), booking.ID, customerActor(customer), "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 2, f.reloadSub(t, sub.ID).SessionsUsed)

	again, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: slot.ID, SubscriptionID: &sub.ID})
	require.NoError(t, err)
	assert.NotEqual(t, booking.ID, again.ID)
}

func TestCancelNeverDrivesSessionsNegative(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 4, 30)
	sub := f.subscription(t, customer.ID, p, 0)
	slot := f.slot(t, baseTime.Add(72*time.Hour), time.Hour, nil)

	booking, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: slot.ID, SubscriptionID: &sub.ID})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Subscription{}).Where("id = ?", sub.ID).Update("sessions_used", 0).Error)

	_, err = f.bookings.Cancel(context.Background(), booking.ID, customerActor(customer), "")
	require.NoError(t, err)

	reloaded := f.reloadSub(t, sub.ID)
	assert.Equal(t, 0, reloaded.SessionsUsed)
	assert.Equal(t, 4, reloaded.SessionsRemaining())
}

func TestCancelInsideCutoffIsRejected(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 4, 30)
	slot := f.slot(t, baseTime.Add(23*time.Hour), time.Hour, nil)

	booking, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: slot.ID, PackageID: p.ID})
	require.NoError(t, err)

	_, err = f.bookings.Cancel(context.Background(), booking.ID, customerActor(customer), "")
	assert.ErrorIs(t, err, ErrTooLateToCancel)
	assert.Equal(t, models.BookingConfirmed, f.reloadBooking(t, booking.ID).Status)
	assert.True(t, f.reloadSlot(t, slot.ID).IsBlocked)
}

func TestCancelByAnotherCustomerIsForbidden(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	stranger := f.user(t, models.RoleCustomer)
	admin := f.user(t, models.RoleAdmin)
	p := f.pkg(t, 4, 30)
	slot := f.slot(t, baseTime.Add(72*time.Hour), time.Hour, nil)

	booking, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: slot.ID, PackageID: p.ID})
	require.NoError(t, err)

	_, err = f.bookings.Cancel(context.Background(), booking.ID, customerActor(stranger), "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.bookings.Cancel(context.Background(), booking.ID, Actor{ID: admin.ID, Role: models.RoleAdmin}, "studio closed")
	assert.NoError(t, err)
}

func TestRescheduleMovesBookingInOneStep(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 4, 30)
	sub := f.subscription(t, customer.ID, p, 0)
	from := f.slot(t, baseTime.Add(72*time.Hour), time.Hour, nil)
	to := f.slot(t, baseTime.Add(96*time.Hour), time.Hour, nil)

	booking, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: from.ID, SubscriptionID: &sub.ID})
	require.NoError(t, err)

	oldBooking, newBooking, err := f.bookings.Reschedule(context.Background(), booking.ID, to.ID, customerActor(customer))
	require.NoError(t, err)

	assert.Equal(t, models.BookingCanceled, oldBooking.Status)
	assert.Equal(t, "rescheduled", oldBooking.CanceledReason)
	assert.Equal(t, models.BookingConfirmed, newBooking.Status)
	require.NotNil(t, newBooking.RescheduledFromID)
	assert.Equal(t, booking.ID, *newBooking.RescheduledFromID)
	assert.Equal(t, sub.ID, *newBooking.SubscriptionID)

	assert.False(t, f.reloadSlot(t, from.ID).IsBlocked)
	assert.True(t, f.reloadSlot(t, to.ID).IsBlocked)
	assert.Equal(t, 1, f.reloadSub(t, sub.ID).SessionsUsed)
	assert.Equal(t, 1, f.notifier.reschedules)
}

func TestRescheduleRollsBackWhenNewSlotIsBlocked(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 4, 30)
	sub := f.subscription(t, customer.ID, p, 0)
	from := f.slot(t, baseTime.Add(72*time.Hour), time.Hour, nil)
	to := f.slot(t, baseTime.Add(96*time.Hour), time.Hour, nil)
	require.NoError(t, f.db.Model(&to).Updates(map[string]interface{}{"is_blocked": true, "blocked_reason": "holiday"}).Error)

	booking, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: from.ID, SubscriptionID: &sub.ID})
	require.NoError(t, err)

	_, _, err = f.bookings.Reschedule(context.Background(), booking.ID, to.ID, customerActor(customer))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	assert.Equal(t, models.BookingConfirmed, f.reloadBooking(t, booking.ID).Status)
	assert.True(t, f.reloadSlot(t, from.ID).IsBlocked)
	assert.Equal(t, 1, f.reloadSub(t, sub.ID).SessionsUsed)
	assert.Equal(t, int64(1), f.count(t, &models.Booking{}, ""))
	assert.Zero(t, f.notifier.reschedules)
}

func TestRescheduleIgnoresTheBookingBeingMoved(t *testing.T) {
	f := newFixture(t)
	trainer := f.user(t, models.RoleTrainer)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 4, 30)
	start := baseTime.Add(72 * time.Hour)
	from := f.slot(t, start, time.Hour, &trainer.ID)
	to := f.slot(t, start.Add(90*time.Minute), time.Hour, &trainer.ID)

	booking, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: from.ID, PackageID: p.ID})
	require.NoError(t, err)

	_, newBooking, err := f.bookings.Reschedule(context.Background(), booking.ID, to.ID, customerActor(customer))
	require.NoError(t, err)
	assert.Equal(t, trainer.ID, *newBooking.TrainerID)
}

func TestListAndUpcoming(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	other := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 4, 30)
	sub := f.subscription(t, customer.ID, p, 0)

	soon := f.slot(t, baseTime.Add(3*time.Hour), time.Hour, nil)
	later := f.slot(t, baseTime.Add(72*time.Hour), time.Hour, nil)
	elsewhere := f.slot(t, baseTime.Add(5*time.Hour), time.Hour, nil)

	_, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: soon.ID, SubscriptionID: &sub.ID})
	require.NoError(t, err)
	_, err = f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: later.ID, PackageID: p.ID})
	require.NoError(t, err)
	_, err = f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: other.ID, SlotID: elsewhere.ID, PackageID: p.ID})
	require.NoError(t, err)

	mine, err := f.bookings.List(context.Background(), customerActor(customer), BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	bySub, err := f.bookings.List(context.Background(), customerActor(customer), BookingFilter{SubscriptionID: &sub.ID})
	require.NoError(t, err)
	require.Len(t, bySub, 1)
	assert.Equal(t, soon.ID, bySub[0].SlotID)

	upcoming, err := f.bookings.Upcoming(context.Background(), customerActor(customer), 0)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, soon.ID, upcoming[0].SlotID)
	require.NotNil(t, upcoming[0].Slot)

	all, err := f.bookings.List(context.Background(), SystemActor, BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
