package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Package is a sellable bundle of sessions valid for ValidityDays after purchase
// or renewal.
type Package struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	SessionsCount int       `gorm:"not null" json:"sessions_count"`
	PriceInCents  int64     `gorm:"not null" json:"price_in_cents"`
	Currency      string    `gorm:"size:3;not null;default:'COP'" json:"currency"`
	ValidityDays  int       `gorm:"not null" json:"validity_days"`
	IsActive      bool      `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *Package) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p Package) ValidityWindow() time.Duration {
	return time.Duration(p.ValidityDays) * 24 * time.Hour
}
