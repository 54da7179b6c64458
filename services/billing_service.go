package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/anjiri1684/studio_booking/database"
	"github.com/anjiri1684/studio_booking/models"
	"github.com/anjiri1684/studio_booking/notifications"
	"github.com/anjiri1684/studio_booking/payments"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChargeOutcome string

const (
	ChargeApproved ChargeOutcome = "approved"
	ChargePending  ChargeOutcome = "pending"
	ChargeDeclined ChargeOutcome = "declined"
	ChargeSkipped  ChargeOutcome = "skipped"
)

// BillingService charges recurring subscriptions against their stored payment
// source. The gateway is called outside any transaction.
type BillingService struct {
	db       *gorm.DB
	gateway  payments.Gateway
	notifier notifications.Notifier
	now      func() time.Time
}

func NewBillingService(db *gorm.DB, gateway payments.Gateway, notifier notifications.Notifier) *BillingService {
	return &BillingService{db: db, gateway: gateway, notifier: notifier, now: utcNow}
}

func (s *BillingService) WithClock(now func() time.Time) *BillingService {
	s.now = now
	return s
}

// DueSubscriptionIDs lists recurring subscriptions whose next billing date is
// today or earlier.
func (s *BillingService) DueSubscriptionIDs(ctx context.Context) ([]uuid.UUID, error) {
	endOfToday := startOfDay(s.now()).Add(24 * time.Hour)
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ? AND is_recurring = ? AND next_billing_date < ?", models.SubscriptionActive, true, endOfToday).
		Where("payment_source_id IS NOT NULL AND payment_source_id <> ''").
		Order("next_billing_date").
		Pluck("id", &ids).Error
	return ids, err
}

// ChargeRenewal bills one subscription. The cycle is claimed with a pending
// recurring payment before the gateway is called, so overlapping runs charge it
// at most once. On approval the subscription starts a new period; on any other
// result its billing fields stay as they were so the next run tries again.
func (s *BillingService) ChargeRenewal(ctx context.Context, id uuid.UUID) (ChargeOutcome, error) {
	now := s.now()

	attempt, sub, err := s.claimCycle(ctx, id, now)
	if err != nil {
		return "", err
	}
	if attempt == nil {
		return ChargeSkipped, nil
	}

	txn, err := s.gateway.CreateTransaction(ctx, payments.TransactionRequest{
		AmountInCents:   attempt.AmountInCents,
		Currency:        attempt.Currency,
		CustomerEmail:   sub.Customer.Email,
		Reference:       attempt.Reference,
		PaymentSourceID: *sub.PaymentSourceID,
		Recurring:       true,
	})
	if err != nil {
		// The claim is closed either way so the next run can try again.
		s.fail(ctx, attempt)
		return ChargeDeclined, gatewayFailure(err)
	}

	providerRef := txn.ID
	attempt.ProviderReference = &providerRef

	switch {
	case txn.Status == payments.StatusApproved:
		confirmed, err := s.settleApproved(ctx, attempt, *sub.Package, now)
		if err != nil {
			log.Printf("🔥 CRITICAL: charge %s approved but not recorded for subscription %s: %v", txn.ID, sub.ID, err)
			return "", err
		}
		if confirmed {
			payment := *attempt
			deliver(s.notifier, "payment receipt", func(n notifications.Notifier) error {
				return n.SendPaymentReceipt(ctx, payment)
			})
		}
		return ChargeApproved, nil

	case txn.Status == payments.StatusPending:
		if err := database.UpdateColumns(s.db.WithContext(ctx), attempt, "provider_reference"); err != nil {
			return "", err
		}
		return ChargePending, nil

	default:
		s.fail(ctx, attempt)
		return ChargeDeclined, nil
	}
}

// claimCycle locks the subscription, re-checks that it is due with no charge in
// flight and inserts the pending payment that owns this cycle. A nil payment
// means there is nothing to charge.
func (s *BillingService) claimCycle(ctx context.Context, id uuid.UUID, now time.Time) (*models.Payment, *models.Subscription, error) {
	var sub models.Subscription
	var attempt *models.Payment
	err := database.InTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := database.LockByID(tx, &sub, id); err != nil {
			return err
		}
		if !dueForBilling(sub, now) {
			return nil
		}

		var inFlight int64
		if err := tx.Model(&models.Payment{}).
			Where("subscription_id = ? AND kind = ? AND status = ?", sub.ID, models.PaymentKindRecurring, models.PaymentPending).
			Count(&inFlight).Error; err != nil {
			return err
		}
		if inFlight > 0 {
			return nil
		}

		var customer models.User
		if err := tx.First(&customer, "id = ?", sub.CustomerID).Error; err != nil {
			return err
		}
		var pkg models.Package
		if err := tx.First(&pkg, "id = ?", sub.PackageID).Error; err != nil {
			return err
		}
		sub.Customer = &customer
		sub.Package = &pkg

		attempt = &models.Payment{
			SubscriptionID: &sub.ID,
			CustomerID:     sub.CustomerID,
			Status:         models.PaymentPending,
			Kind:           models.PaymentKindRecurring,
			AmountInCents:  pkg.PriceInCents,
			Currency:       pkg.Currency,
			Provider:       payments.ProviderName,
			Reference:      s.gateway.GenerateReference(),
		}
		return tx.Create(attempt).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, notFound("subscription")
		}
		return nil, nil, err
	}
	return attempt, &sub, nil
}

// settleApproved confirms the claimed payment and renews the subscription. It
// reports false when a webhook already settled the payment.
func (s *BillingService) settleApproved(ctx context.Context, attempt *models.Payment, pkg models.Package, now time.Time) (bool, error) {
	confirmed := false
	err := database.InTx(ctx, s.db, func(tx *gorm.DB) error {
		var payment models.Payment
		if err := database.LockByID(tx, &payment, attempt.ID); err != nil {
			return err
		}
		if payment.Status != models.PaymentPending {
			return database.UpdateColumns(tx, attempt, "provider_reference")
		}

		attempt.Status = models.PaymentConfirmed
		attempt.ConfirmedAt = &now
		if err := database.UpdateColumns(tx, attempt, "status", "confirmed_at", "provider_reference"); err != nil {
			return err
		}
		confirmed = true

		var locked models.Subscription
		if err := database.LockByID(tx, &locked, *attempt.SubscriptionID); err != nil {
			return err
		}
		if !dueForBilling(locked, now) {
			log.Printf("⚠️ Subscription %s is %s and no longer due, not renewing", locked.ID, locked.Status)
			return nil
		}
		return renewInTx(tx, &locked, pkg, now)
	})
	return confirmed, err
}

// fail closes a claimed payment that did not go through. A payment a webhook
// has already settled is left alone.
func (s *BillingService) fail(ctx context.Context, payment *models.Payment) {
	payment.Status = models.PaymentFailed
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
		Updates(map[string]interface{}{
			"status":             models.PaymentFailed,
			"provider_reference": payment.ProviderReference,
		}).Error
	if err != nil {
		log.Printf("🔥 Could not record failed charge for subscription %v: %v", payment.SubscriptionID, err)
	}
}

func dueForBilling(sub models.Subscription, now time.Time) bool {
	if sub.Status != models.SubscriptionActive || !sub.IsRecurring || !sub.HasPaymentSource() {
		return false
	}
	return sub.NextBillingDate != nil && sub.NextBillingDate.Before(startOfDay(now).Add(24*time.Hour))
}
