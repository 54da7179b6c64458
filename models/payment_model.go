package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Payment struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID         *uuid.UUID `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	SubscriptionID    *uuid.UUID `gorm:"type:uuid;index" json:"subscription_id,omitempty"`
	CustomerID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"customer_id"`
	Status            string     `gorm:"size:20;not null" json:"status"`
	Kind              string     `gorm:"size:20;not null;default:'purchase'" json:"kind"`
	AmountInCents     int64      `gorm:"not null" json:"amount_in_cents"`
	Currency          string     `gorm:"size:3;not null" json:"currency"`
	Provider          string     `gorm:"size:50;not null" json:"provider"`
	ProviderReference *string    `gorm:"size:255;uniqueIndex" json:"provider_reference,omitempty"`
	Reference         string     `gorm:"size:64;index" json:"reference"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
