package services

import (
	"context"
	"testing"
	"time"

	"github.com/anjiri1684/studio_booking/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func window(trainer uuid.UUID, start time.Time, length time.Duration) BookingWindow {
	return BookingWindow{BookingID: uuid.New(), TrainerID: trainer, StartsAt: start, EndsAt: start.Add(length)}
}

func TestResolveEffectiveTrainer(t *testing.T) {
	own, fallback := uuid.New(), uuid.New()

	got := ResolveEffectiveTrainer(models.AvailabilitySlot{TrainerID: &own}, &fallback)
	require.NotNil(t, got)
	assert.Equal(t, own, *got)

	got = ResolveEffectiveTrainer(models.AvailabilitySlot{}, &fallback)
	require.NotNil(t, got)
	assert.Equal(t, fallback, *got)

	assert.Nil(t, ResolveEffectiveTrainer(models.AvailabilitySlot{}, nil))
}

func TestHasTravelBufferConflict(t *testing.T) {
	trainer := uuid.New()
	existing := []BookingWindow{window(trainer, baseTime, time.Hour)}
	hour := time.Hour

	tests := []struct {
		name  string
		start time.Time
		want  bool
	}{
		{"exactly 45 minutes after", baseTime.Add(hour + 45*time.Minute), false},
		{"44 minutes after", baseTime.Add(hour + 44*time.Minute), true},
		{"exactly 45 minutes before", baseTime.Add(-hour - 45*time.Minute), false},
		{"44 minutes before", baseTime.Add(-hour - 44*time.Minute), true},
		{"overlapping", baseTime.Add(30 * time.Minute), true},
		{"far away", baseTime.Add(6 * hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := models.AvailabilitySlot{StartsAt: tt.start, EndsAt: tt.start.Add(hour)}
			assert.Equal(t, tt.want, HasTravelBufferConflict(candidate, trainer, existing, nil, DefaultTravelBuffer))
		})
	}
}

func TestHasTravelBufferConflictIgnoresOtherTrainersAndExcluded(t *testing.T) {
	trainer := uuid.New()
	own := window(trainer, baseTime, time.Hour)
	other := window(uuid.New(), baseTime, time.Hour)
	candidate := models.AvailabilitySlot{StartsAt: baseTime, EndsAt: baseTime.Add(time.Hour)}

	assert.False(t, HasTravelBufferConflict(candidate, trainer, []BookingWindow{other}, nil, DefaultTravelBuffer))
	assert.False(t, HasTravelBufferConflict(candidate, trainer, []BookingWindow{own}, &own.BookingID, DefaultTravelBuffer))
	assert.True(t, HasTravelBufferConflict(candidate, trainer, []BookingWindow{own, other}, nil, DefaultTravelBuffer))
}

func TestBuildConflictFilter(t *testing.T) {
	_, ok := BuildConflictFilter(nil, DefaultTravelBuffer)
	assert.False(t, ok)

	a, b := uuid.New(), uuid.New()
	w1 := window(a, baseTime, time.Hour)
	w2 := window(b, baseTime.Add(3*time.Hour), time.Hour)

	expr, ok := BuildConflictFilter([]BookingWindow{w1, w2}, DefaultTravelBuffer)
	require.True(t, ok)
	assert.Equal(t, 2, len(expr.Vars)/3)
	assert.Contains(t, expr.SQL, " OR ")
	assert.Equal(t, []interface{}{
		a, w1.EndsAt.Add(DefaultTravelBuffer), w1.StartsAt.Add(-DefaultTravelBuffer),
		b, w2.EndsAt.Add(DefaultTravelBuffer), w2.StartsAt.Add(-DefaultTravelBuffer),
	}, expr.Vars)
}

func slotIDs(slots []models.AvailabilitySlot) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestAvailableSlotsExcludesBookedAndBufferedSlots(t *testing.T) {
	f := newFixture(t)
	trainer := f.user(t, models.RoleTrainer)
	other := f.user(t, models.RoleTrainer)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 8, 30)

	day := baseTime.Add(48 * time.Hour)
	booked := f.slot(t, day, time.Hour, &trainer.ID)
	tooClose := f.slot(t, day.Add(90*time.Minute), time.Hour, &trainer.ID)
	farEnough := f.slot(t, day.Add(105*time.Minute), time.Hour, &trainer.ID)
	noTrainer := f.slot(t, day.Add(80*time.Minute), time.Hour, nil)
	otherTrainer := f.slot(t, day.Add(70*time.Minute), time.Hour, &other.ID)

	_, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: booked.ID, PackageID: p.ID})
	require.NoError(t, err)

	slots, err := f.bookings.AvailableSlots(context.Background(), SlotQuery{From: day.Add(-time.Hour), To: day.Add(6 * time.Hour)})
	require.NoError(t, err)

	ids := slotIDs(slots)
	assert.NotContains(t, ids, booked.ID)
	assert.NotContains(t, ids, tooClose.ID)
	assert.Contains(t, ids, farEnough.ID)
	assert.Contains(t, ids, noTrainer.ID)
	assert.Contains(t, ids, otherTrainer.ID)
}

func TestAvailableSlotsForOneTrainer(t *testing.T) {
	f := newFixture(t)
	trainer := f.user(t, models.RoleTrainer)
	other := f.user(t, models.RoleTrainer)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 8, 30)

	day := baseTime.Add(48 * time.Hour)
	booked := f.slot(t, day, time.Hour, &trainer.ID)
	tooClose := f.slot(t, day.Add(90*time.Minute), time.Hour, &trainer.ID)
	otherNearby := f.slot(t, day.Add(70*time.Minute), time.Hour, &other.ID)
	f.slot(t, day.Add(80*time.Minute), time.Hour, nil)

	_, err := f.bookings.Create(context.Background(), CreateBookingInput{CustomerID: customer.ID, SlotID: booked.ID, PackageID: p.ID})
	require.NoError(t, err)
	query := SlotQuery{From: day.Add(-time.Hour), To: day.Add(6 * time.Hour)}

	query.TrainerID = &other.ID
	slots, err := f.bookings.AvailableSlots(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{otherNearby.ID}, slotIDs(slots))

	query.TrainerID = &trainer.ID
	slots, err = f.bookings.AvailableSlots(context.Background(), query)
	require.NoError(t, err)
	assert.NotContains(t, slotIDs(slots), tooClose.ID)
	assert.Empty(t, slots)
}
