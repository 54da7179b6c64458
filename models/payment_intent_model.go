package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentIntent records a purchase attempt until the gateway settles it. It is
// resolved exactly once: every resolution path checks Status == IntentPending
// while holding a row lock.
type PaymentIntent struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID           *uuid.UUID `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	PackageID            uuid.UUID  `gorm:"type:uuid;not null" json:"package_id"`
	Reference            string     `gorm:"size:64;not null;uniqueIndex" json:"reference"`
	GatewayTransactionID *string    `gorm:"size:128;uniqueIndex" json:"gateway_transaction_id,omitempty"`
	PaymentSourceID      *string    `gorm:"size:64" json:"-"`
	AmountInCents        int64      `gorm:"not null" json:"amount_in_cents"`
	Currency             string     `gorm:"size:3;not null" json:"currency"`
	CustomerEmail        string     `gorm:"size:255;not null" json:"customer_email"`
	Status               string     `gorm:"size:20;not null;index" json:"status"`
	RecurringRequested   bool       `gorm:"not null" json:"recurring_requested"`
	SubscriptionID       *uuid.UUID `gorm:"type:uuid" json:"subscription_id,omitempty"`
	FailureReason        string     `gorm:"size:255" json:"failure_reason,omitempty"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty"`

	// Guest credentials, held only while the intent is pending.
	PendingRegistration datatypes.JSON `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PendingRegistration is the guest checkout payload materialized into a User
// when the intent is approved.
type PendingRegistration struct {
	FullName     string  `json:"full_name"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"password_hash"`
	Phone        *string `json:"phone,omitempty"`
}

func (p *PaymentIntent) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
