package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Subscription struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"customer_id"`
	PackageID        uuid.UUID  `gorm:"type:uuid;not null" json:"package_id"`
	SessionsTotal    int        `gorm:"not null" json:"sessions_total"`
	SessionsUsed     int        `gorm:"not null;check:chk_sessions_used,sessions_used >= 0 AND sessions_used <= sessions_total" json:"sessions_used"`
	Status           string     `gorm:"size:20;not null;index" json:"status"`
	StartsAt         time.Time  `gorm:"not null" json:"starts_at"`
	ExpiresAt        time.Time  `gorm:"not null;index" json:"expires_at"`
	NextBillingDate  *time.Time `gorm:"index" json:"next_billing_date"`
	IsRecurring      bool       `gorm:"not null" json:"is_recurring"`
	PausedAt         *time.Time `json:"paused_at"`
	CanceledAt       *time.Time `json:"canceled_at,omitempty"`
	ExpiryRemindedAt *time.Time `json:"expiry_reminded_at,omitempty"`
	PaymentSourceID  *string    `gorm:"size:64" json:"-"`

	Customer *User    `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Package  *Package `gorm:"foreignKey:PackageID" json:"package,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s Subscription) SessionsRemaining() int {
	if remaining := s.SessionsTotal - s.SessionsUsed; remaining > 0 {
		return remaining
	}
	return 0
}

func (s Subscription) HasPaymentSource() bool {
	return s.PaymentSourceID != nil && *s.PaymentSourceID != ""
}

func (s Subscription) MarshalJSON() ([]byte, error) {
	type alias Subscription
	return json.Marshal(struct {
		alias
		SessionsRemaining int `json:"sessions_remaining"`
	}{alias(s), s.SessionsRemaining()})
}
