package services

import (
	"strings"
	"time"

	"github.com/anjiri1684/studio_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTravelBuffer is the minimum gap a trainer keeps between two sessions.
const DefaultTravelBuffer = 45 * time.Minute

// BookingWindow is the time a live booking occupies for a trainer.
type BookingWindow struct {
	BookingID uuid.UUID
	TrainerID uuid.UUID
	StartsAt  time.Time
	EndsAt    time.Time
}

// ResolveEffectiveTrainer picks the trainer a booking on slot will be attributed
// to: the slot's own trainer wins over the caller's fallback.
func ResolveEffectiveTrainer(slot models.AvailabilitySlot, fallback *uuid.UUID) *uuid.UUID {
	if slot.TrainerID != nil && *slot.TrainerID != uuid.Nil {
		id := *slot.TrainerID
		return &id
	}
	if fallback != nil && *fallback != uuid.Nil {
		id := *fallback
		return &id
	}
	return nil
}

// HasTravelBufferConflict reports whether candidate overlaps, after widening it
// by buffer on both sides, any window the trainer already holds. exclude skips
// one booking, used when a booking is being moved.
func HasTravelBufferConflict(candidate models.AvailabilitySlot, trainerID uuid.UUID, existing []BookingWindow, exclude *uuid.UUID, buffer time.Duration) bool {
	lower := candidate.StartsAt.Add(-buffer)
	upper := candidate.EndsAt.Add(buffer)
	for _, w := range existing {
		if w.TrainerID != trainerID {
			continue
		}
		if exclude != nil && w.BookingID == *exclude {
			continue
		}
		if w.StartsAt.Before(upper) && w.EndsAt.After(lower) {
			return true
		}
	}
	return false
}

// BuildConflictFilter turns windows into a condition over availability_slots
// that matches every slot falling inside some window's buffer for the same
// trainer. Slots without a trainer never match, so the condition stays false
// rather than NULL for them. ok is false when there is nothing to filter.
func BuildConflictFilter(windows []BookingWindow, buffer time.Duration) (expr clause.Expr, ok bool) {
	if len(windows) == 0 {
		return clause.Expr{}, false
	}

	parts := make([]string, 0, len(windows))
	vars := make([]interface{}, 0, len(windows)*3)
	for _, w := range windows {
		parts = append(parts, "(availability_slots.trainer_id IS NOT NULL AND availability_slots.trainer_id = ? AND availability_slots.starts_at < ? AND availability_slots.ends_at > ?)")
		vars = append(vars, w.TrainerID, w.EndsAt.Add(buffer), w.StartsAt.Add(-buffer))
	}
	return clause.Expr{SQL: strings.Join(parts, " OR "), Vars: vars}, true
}

// excludeConflicts narrows a slot query to slots outside every conflict window.
func excludeConflicts(query *gorm.DB, windows []BookingWindow, buffer time.Duration) *gorm.DB {
	filter, ok := BuildConflictFilter(windows, buffer)
	if !ok {
		return query
	}
	negated := clause.Expr{SQL: "NOT (" + filter.SQL + ")", Vars: filter.Vars}
	return query.Clauses(clause.Where{Exprs: []clause.Expression{negated}})
}

type windowRow struct {
	BookingID uuid.UUID
	TrainerID uuid.UUID
	StartsAt  time.Time
	EndsAt    time.Time
}

// liveWindows loads the windows of live bookings intersecting [from, to). A nil
// trainer loads windows for every trainer.
func liveWindows(tx *gorm.DB, trainerID *uuid.UUID, from, to time.Time) ([]BookingWindow, error) {
	var rows []windowRow
	query := tx.Table("bookings").
		Select("bookings.id AS booking_id, bookings.trainer_id AS trainer_id, availability_slots.starts_at AS starts_at, availability_slots.ends_at AS ends_at").
		Joins("JOIN availability_slots ON availability_slots.id = bookings.slot_id").
		Where("bookings.status IN ? AND bookings.trainer_id IS NOT NULL", models.LiveBookingStatuses).
		Where("availability_slots.starts_at < ? AND availability_slots.ends_at > ?", to, from)
	if trainerID != nil {
		query = query.Where("bookings.trainer_id = ?", *trainerID)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	windows := make([]BookingWindow, len(rows))
	for i, r := range rows {
		windows[i] = BookingWindow(r)
	}
	return windows, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
