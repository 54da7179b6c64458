package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrInvalidSlotWindow = errors.New("slot must end after it starts")

type AvailabilitySlot struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StartsAt      time.Time  `gorm:"not null;uniqueIndex:idx_slot_window" json:"starts_at"`
	EndsAt        time.Time  `gorm:"not null;uniqueIndex:idx_slot_window;check:chk_slot_window,ends_at > starts_at" json:"ends_at"`
	IsActive      bool       `gorm:"not null" json:"is_active"`
	IsBlocked     bool       `gorm:"not null;index" json:"is_blocked"`
	BlockedReason string     `gorm:"size:255" json:"blocked_reason,omitempty"`
	TrainerID     *uuid.UUID `gorm:"type:uuid;index" json:"trainer_id,omitempty"`

	Trainer *User `gorm:"foreignKey:TrainerID" json:"trainer,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (s *AvailabilitySlot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *AvailabilitySlot) BeforeSave(tx *gorm.DB) error {
	if s.StartsAt.IsZero() && s.EndsAt.IsZero() {
		return nil
	}
	if !s.EndsAt.After(s.StartsAt) {
		return ErrInvalidSlotWindow
	}
	return nil
}
