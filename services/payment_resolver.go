package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anjiri1684/studio_booking/database"
	"github.com/anjiri1684/studio_booking/models"
	"github.com/anjiri1684/studio_booking/notifications"
	"github.com/anjiri1684/studio_booking/payments"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outcome describes what resolving a gateway transaction did.
type Outcome string

const (
	OutcomeApproved         Outcome = "approved"
	OutcomeFailed           Outcome = "failed"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeIgnored          Outcome = "ignored"
	OutcomePaymentUpdated   Outcome = "payment_updated"
	OutcomeNotFound         Outcome = "not_found"
)

type targetKind int

const (
	targetNone targetKind = iota
	targetIntent
	targetPayment
)

// target is what a gateway transaction refers to on our side.
type target struct {
	kind targetKind
	id   uuid.UUID
}

// PaymentResolver turns gateway transaction outcomes into subscriptions and
// payments exactly once, however many times the same event is delivered.
type PaymentResolver struct {
	db       *gorm.DB
	gateway  payments.Gateway
	notifier notifications.Notifier
	now      func() time.Time
}

func NewPaymentResolver(db *gorm.DB, gateway payments.Gateway, notifier notifications.Notifier) *PaymentResolver {
	return &PaymentResolver{db: db, gateway: gateway, notifier: notifier, now: utcNow}
}

func (r *PaymentResolver) WithClock(now func() time.Time) *PaymentResolver {
	r.now = now
	return r
}

// HandleEvent verifies and applies a webhook body. Nothing is read or written
// before the checksum is verified.
func (r *PaymentResolver) HandleEvent(ctx context.Context, payload []byte) (Outcome, error) {
	if !r.gateway.VerifyEventChecksum(payload) {
		return "", ErrInvalidSignature
	}
	event, err := payments.ParseEvent(payload)
	if err != nil {
		return "", validation(err.Error())
	}
	return r.Apply(ctx, event.Transaction)
}

// Apply resolves a transaction already known to be authentic.
func (r *PaymentResolver) Apply(ctx context.Context, txn payments.Transaction) (Outcome, error) {
	txn.Status = payments.NormalizeStatus(txn.Status)

	tgt, err := r.resolveTarget(ctx, txn)
	if err != nil {
		return "", err
	}

	switch tgt.kind {
	case targetIntent:
		return r.resolveIntent(ctx, tgt.id, txn)
	case targetPayment:
		return r.resolvePayment(ctx, tgt.id, txn)
	default:
		log.Printf("⚠️ No intent or payment matches gateway transaction %s (reference %q)", txn.ID, txn.Reference)
		return OutcomeNotFound, nil
	}
}

func (r *PaymentResolver) resolveTarget(ctx context.Context, txn payments.Transaction) (target, error) {
	db := r.db.WithContext(ctx)

	var intent models.PaymentIntent
	err := db.Select("id").Where("gateway_transaction_id = ?", txn.ID).Take(&intent).Error
	if err == nil {
		return target{kind: targetIntent, id: intent.ID}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return target{}, err
	}

	if txn.Reference != "" {
		err = db.Select("id").Where("reference = ? AND status = ?", txn.Reference, models.IntentPending).Take(&intent).Error
		if err == nil {
			return target{kind: targetIntent, id: intent.ID}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return target{}, err
		}
	}

	var payment models.Payment
	err = db.Select("id").Where("provider_reference = ?", txn.ID).Take(&payment).Error
	if err == nil {
		return target{kind: targetPayment, id: payment.ID}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return target{}, err
	}

	// A recurring charge is claimed before the gateway answers, so its event can
	// arrive while the payment only carries our reference.
	if txn.Reference != "" {
		err = db.Select("id").
			Where("reference = ? AND kind = ? AND status = ?", txn.Reference, models.PaymentKindRecurring, models.PaymentPending).
			Take(&payment).Error
		if err == nil {
			return target{kind: targetPayment, id: payment.ID}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return target{}, err
		}
	}
	return target{kind: targetNone}, nil
}

func (r *PaymentResolver) resolveIntent(ctx context.Context, id uuid.UUID, txn payments.Transaction) (Outcome, error) {
	now := r.now()
	var outcome Outcome
	var receipt *models.Payment

	err := database.InTx(ctx, r.db, func(tx *gorm.DB) error {
		var intent models.PaymentIntent
		if err := database.LockByID(tx, &intent, id); err != nil {
			return err
		}
		// A resolved intent has already produced its side effects.
		if intent.Status != models.IntentPending {
			outcome = OutcomeAlreadyProcessed
			return nil
		}

		switch {
		case txn.Status == payments.StatusApproved:
			payment, err := r.approve(tx, &intent, txn, now)
			if err != nil {
				return err
			}
			receipt = payment
			outcome = OutcomeApproved
			return nil
		case payments.IsFailureStatus(txn.Status):
			outcome = OutcomeFailed
			return failIntent(tx, &intent, txn.ID, "gateway reported "+txn.Status, now)
		default:
			outcome = OutcomeIgnored
			return nil
		}
	})
	if err != nil {
		return "", err
	}

	if receipt != nil {
		payment := *receipt
		deliver(r.notifier, "payment receipt", func(n notifications.Notifier) error {
			return n.SendPaymentReceipt(ctx, payment)
		})
	}
	return outcome, nil
}

func (r *PaymentResolver) approve(tx *gorm.DB, intent *models.PaymentIntent, txn payments.Transaction, now time.Time) (*models.Payment, error) {
	customerID, err := resolveCustomer(tx, intent)
	if err != nil {
		return nil, err
	}

	var pkg models.Package
	if err := tx.First(&pkg, "id = ?", intent.PackageID).Error; err != nil {
		return nil, fmt.Errorf("package for intent %s: %w", intent.ID, err)
	}

	sourceID := txn.PaymentSourceID
	if sourceID == "" && intent.PaymentSourceID != nil {
		sourceID = *intent.PaymentSourceID
	}
	recurring := intent.RecurringRequested && payments.IsReusableMethod(txn.PaymentMethodType) && sourceID != ""

	sub := models.Subscription{
		CustomerID:    customerID,
		PackageID:     pkg.ID,
		SessionsTotal: pkg.SessionsCount,
		SessionsUsed:  0,
		Status:        models.SubscriptionActive,
		StartsAt:      now,
		ExpiresAt:     now.Add(pkg.ValidityWindow()),
		IsRecurring:   recurring,
	}
	if recurring {
		next := startOfDay(now).Add(pkg.ValidityWindow())
		sub.NextBillingDate = &next
		sub.PaymentSourceID = &sourceID
	}
	if err := tx.Create(&sub).Error; err != nil {
		return nil, err
	}

	providerRef := txn.ID
	payment := models.Payment{
		SubscriptionID:    &sub.ID,
		CustomerID:        customerID,
		Status:            models.PaymentConfirmed,
		Kind:              models.PaymentKindPurchase,
		AmountInCents:     intent.AmountInCents,
		Currency:          intent.Currency,
		Provider:          payments.ProviderName,
		ProviderReference: &providerRef,
		Reference:         intent.Reference,
		ConfirmedAt:       &now,
	}
	if err := tx.Create(&payment).Error; err != nil {
		return nil, err
	}

	intent.Status = models.IntentApproved
	intent.CustomerID = &customerID
	intent.SubscriptionID = &sub.ID
	intent.GatewayTransactionID = &providerRef
	if sourceID != "" {
		intent.PaymentSourceID = &sourceID
	}
	intent.PendingRegistration = nil
	intent.ResolvedAt = &now
	if err := database.UpdateColumns(tx, intent,
		"status", "customer_id", "subscription_id", "gateway_transaction_id",
		"payment_source_id", "pending_registration", "resolved_at"); err != nil {
		return nil, err
	}
	return &payment, nil
}

// resolveCustomer returns the intent's customer, creating the guest's account
// from the pending registration on first approval. A concurrent insert of the
// same email wins and its row is used.
func resolveCustomer(tx *gorm.DB, intent *models.PaymentIntent) (uuid.UUID, error) {
	if intent.CustomerID != nil {
		return *intent.CustomerID, nil
	}
	if len(intent.PendingRegistration) == 0 {
		return uuid.Nil, fmt.Errorf("intent %s has neither a customer nor a pending registration", intent.ID)
	}

	var reg models.PendingRegistration
	if err := json.Unmarshal(intent.PendingRegistration, &reg); err != nil {
		return uuid.Nil, fmt.Errorf("decode pending registration: %w", err)
	}

	user := models.User{
		FullName: reg.FullName,
		Email:    reg.Email,
		Password: reg.PasswordHash,
		Role:     models.RoleCustomer,
		Phone:    reg.Phone,
		IsActive: true,
	}
	res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).Create(&user)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return uuid.Nil, res.Error
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return user.ID, nil
	}

	var existing models.User
	if err := tx.Where("email = ?", reg.Email).First(&existing).Error; err != nil {
		return uuid.Nil, err
	}
	return existing.ID, nil
}

func failIntent(tx *gorm.DB, intent *models.PaymentIntent, transactionID, reason string, now time.Time) error {
	intent.Status = models.IntentFailed
	intent.FailureReason = reason
	intent.PendingRegistration = nil
	intent.ResolvedAt = &now
	columns := []string{"status", "failure_reason", "pending_registration", "resolved_at"}
	if intent.GatewayTransactionID == nil && transactionID != "" {
		intent.GatewayTransactionID = &transactionID
		columns = append(columns, "gateway_transaction_id")
	}
	return database.UpdateColumns(tx, intent, columns...)
}

// resolvePayment handles transactions that bypass the intent flow, such as
// recurring charges that were still pending when billing ran.
func (r *PaymentResolver) resolvePayment(ctx context.Context, id uuid.UUID, txn payments.Transaction) (Outcome, error) {
	now := r.now()
	var outcome Outcome
	var receipt *models.Payment

	err := database.InTx(ctx, r.db, func(tx *gorm.DB) error {
		var payment models.Payment
		if err := database.LockByID(tx, &payment, id); err != nil {
			return err
		}

		status := paymentStatusFor(txn.Status)
		switch {
		case status == "":
			outcome = OutcomeIgnored
			return nil
		case payment.Status == status:
			outcome = OutcomeAlreadyProcessed
			return nil
		case payment.Status == models.PaymentPending:
		case payment.Status == models.PaymentConfirmed && status == models.PaymentCanceled:
		default:
			outcome = OutcomeAlreadyProcessed
			return nil
		}

		payment.Status = status
		columns := []string{"status"}
		if payment.ProviderReference == nil && txn.ID != "" {
			providerRef := txn.ID
			payment.ProviderReference = &providerRef
			columns = append(columns, "provider_reference")
		}
		if status == models.PaymentConfirmed {
			payment.ConfirmedAt = &now
			columns = append(columns, "confirmed_at")
		}
		if err := database.UpdateColumns(tx, &payment, columns...); err != nil {
			return err
		}

		if status == models.PaymentConfirmed {
			if payment.Kind == models.PaymentKindRecurring && payment.SubscriptionID != nil {
				if err := renewFromPayment(tx, *payment.SubscriptionID, now); err != nil {
					return err
				}
			}
			receipt = &payment
		}
		outcome = OutcomePaymentUpdated
		return nil
	})
	if err != nil {
		return "", err
	}

	if receipt != nil {
		payment := *receipt
		deliver(r.notifier, "payment receipt", func(n notifications.Notifier) error {
			return n.SendPaymentReceipt(ctx, payment)
		})
	}
	return outcome, nil
}

func renewFromPayment(tx *gorm.DB, subscriptionID uuid.UUID, now time.Time) error {
	var sub models.Subscription
	if err := database.LockByID(tx, &sub, subscriptionID); err != nil {
		return err
	}
	if sub.Status != models.SubscriptionActive {
		log.Printf("⚠️ Recurring payment confirmed for %s subscription %s, not renewing", sub.Status, sub.ID)
		return nil
	}
	var pkg models.Package
	if err := tx.First(&pkg, "id = ?", sub.PackageID).Error; err != nil {
		return err
	}
	return renewInTx(tx, &sub, pkg, now)
}

func paymentStatusFor(gatewayStatus string) string {
	switch payments.NormalizeStatus(gatewayStatus) {
	case payments.StatusApproved:
		return models.PaymentConfirmed
	case payments.StatusDeclined, payments.StatusError:
		return models.PaymentFailed
	case payments.StatusVoided:
		return models.PaymentCanceled
	}
	return ""
}

// StaleIntentIDs lists pending intents with a gateway transaction that were
// created before olderThan ago.
func (r *PaymentResolver) StaleIntentIDs(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("status = ? AND gateway_transaction_id IS NOT NULL AND created_at <= ?",
			models.IntentPending, r.now().Add(-olderThan)).
		Order("created_at").
		Pluck("id", &ids).Error
	return ids, err
}

// Reconcile asks the gateway for the current state of an intent's transaction
// and applies it, for when the webhook never arrived.
func (r *PaymentResolver) Reconcile(ctx context.Context, intentID uuid.UUID) (Outcome, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).First(&intent, "id = ?", intentID).Error; err != nil {
		return "", err
	}
	if intent.Status != models.IntentPending || intent.GatewayTransactionID == nil {
		return OutcomeAlreadyProcessed, nil
	}

	txn, err := r.gateway.GetTransactionByID(ctx, *intent.GatewayTransactionID)
	if err != nil {
		return "", gatewayFailure(err)
	}
	return r.resolveIntent(ctx, intent.ID, txn)
}
