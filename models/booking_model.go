package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booking ties a customer to a slot. The partial unique index on slot_id keeps
// at most one live (non-canceled) booking per slot.
type Booking struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"customer_id"`
	PackageID         uuid.UUID  `gorm:"type:uuid;not null" json:"package_id"`
	SlotID            uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_bookings_live_slot,where:status <> 'canceled'" json:"slot_id"`
	TrainerID         *uuid.UUID `gorm:"type:uuid;index" json:"trainer_id,omitempty"`
	SubscriptionID    *uuid.UUID `gorm:"type:uuid;index" json:"subscription_id,omitempty"`
	Status            string     `gorm:"size:20;not null;index" json:"status"`
	CanceledReason    string     `gorm:"type:text" json:"canceled_reason,omitempty"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty"`
	RescheduledFromID *uuid.UUID `gorm:"type:uuid" json:"rescheduled_from_id,omitempty"`

	Customer *User             `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Slot     *AvailabilitySlot `gorm:"foreignKey:SlotID" json:"slot,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b Booking) IsLive() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}
