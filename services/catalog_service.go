package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anjiri1684/studio_booking/database"
	"github.com/anjiri1684/studio_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogService is the admin tooling behind packages and slots. Slot blocks it
// places carry their own reason, so canceling a booking never lifts them.
type CatalogService struct {
	db       *gorm.DB
	currency string
}

func NewCatalogService(db *gorm.DB, currency string) *CatalogService {
	return &CatalogService{db: db, currency: currency}
}

type NewPackage struct {
	Name          string
	SessionsCount int
	PriceInCents  int64
	Currency      string
	ValidityDays  int
}

type NewSlot struct {
	StartsAt  time.Time
	EndsAt    time.Time
	TrainerID *uuid.UUID
}

func (s *CatalogService) CreatePackage(ctx context.Context, in NewPackage) (*models.Package, error) {
	if strings.TrimSpace(in.Name) == "" || in.SessionsCount <= 0 || in.PriceInCents <= 0 || in.ValidityDays <= 0 {
		return nil, validation("package needs a name and positive sessions, price and validity")
	}
	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = s.currency
	}

	pkg := models.Package{
		Name:          strings.TrimSpace(in.Name),
		SessionsCount: in.SessionsCount,
		PriceInCents:  in.PriceInCents,
		Currency:      currency,
		ValidityDays:  in.ValidityDays,
		IsActive:      true,
	}
	if err := s.db.WithContext(ctx).Create(&pkg).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (s *CatalogService) ListPackages(ctx context.Context, includeInactive bool) ([]models.Package, error) {
	query := s.db.WithContext(ctx).Order("price_in_cents ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var packages []models.Package
	if err := query.Find(&packages).Error; err != nil {
		return nil, err
	}
	return packages, nil
}

func (s *CatalogService) DeactivatePackage(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.Package{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound("package")
	}
	return nil
}

func (s *CatalogService) CreateSlot(ctx context.Context, in NewSlot) (*models.AvailabilitySlot, error) {
	if !in.EndsAt.After(in.StartsAt) {
		return nil, validation(models.ErrInvalidSlotWindow.Error())
	}

	db := s.db.WithContext(ctx)
	if in.TrainerID != nil {
		var trainer models.User
		err := db.Where("id = ? AND role = ?", *in.TrainerID, models.RoleTrainer).First(&trainer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("trainer")
		}
		if err != nil {
			return nil, err
		}
	}

	slot := models.AvailabilitySlot{
		StartsAt:  in.StartsAt.UTC(),
		EndsAt:    in.EndsAt.UTC(),
		IsActive:  true,
		TrainerID: in.TrainerID,
	}
	if err := db.Create(&slot).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, validation("a slot with this window already exists")
		}
		return nil, err
	}
	return &slot, nil
}

// BlockSlot takes a free slot out of circulation. A slot held by a live
// booking has to be freed through the booking first.
func (s *CatalogService) BlockSlot(ctx context.Context, id uuid.UUID, reason string) (*models.AvailabilitySlot, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" || reason == bookedReason {
		return nil, validation("a block reason is required")
	}

	var slot models.AvailabilitySlot
	err := database.InTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := lockSlot(tx, &slot, id); err != nil {
			return err
		}
		if slot.IsBlocked {
			return slotUnavailable("already blocked")
		}
		slot.IsBlocked = true
		slot.BlockedReason = reason
		return database.UpdateColumns(tx, &slot, "is_blocked", "blocked_reason")
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// UnblockSlot lifts an admin block. Blocks placed by a booking stay until the
// booking is canceled.
func (s *CatalogService) UnblockSlot(ctx context.Context, id uuid.UUID) (*models.AvailabilitySlot, error) {
	var slot models.AvailabilitySlot
	err := database.InTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := lockSlot(tx, &slot, id); err != nil {
			return err
		}
		if !slot.IsBlocked {
			return nil
		}
		if slot.BlockedReason == bookedReason {
			return invalidTransition("booked", "unblock")
		}
		slot.IsBlocked = false
		slot.BlockedReason = ""
		return database.UpdateColumns(tx, &slot, "is_blocked", "blocked_reason")
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func lockSlot(tx *gorm.DB, slot *models.AvailabilitySlot, id uuid.UUID) error {
	err := database.LockByID(tx, slot, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("slot")
	}
	return err
}
