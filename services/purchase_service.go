package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	config "github.com/anjiri1684/studio_booking/configs"
	"github.com/anjiri1684/studio_booking/database"
	"github.com/anjiri1684/studio_booking/models"
	"github.com/anjiri1684/studio_booking/payments"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type GuestRegistration struct {
	FullName string
	Email    string
	Password string
	Phone    *string
}

type PurchaseRequest struct {
	// Exactly one of CustomerID and Guest is set.
	CustomerID *uuid.UUID
	Guest      *GuestRegistration

	PackageID uuid.UUID
	// CardToken charges immediately. Without it the caller gets widget checkout
	// parameters and the webhook settles the intent.
	CardToken string
	Recurring bool
}

// Checkout carries what the hosted payment widget needs.
type Checkout struct {
	Reference          string `json:"reference"`
	AmountInCents      int64  `json:"amount_in_cents"`
	Currency           string `json:"currency"`
	IntegritySignature string `json:"integrity_signature"`
	PublicKey          string `json:"public_key"`
}

type PurchaseResult struct {
	Intent   models.PaymentIntent `json:"intent"`
	Outcome  Outcome              `json:"outcome,omitempty"`
	Checkout *Checkout            `json:"checkout,omitempty"`
}

// PurchaseService starts subscription purchases. No payment or subscription is
// written here; the resolver does that once the gateway settles the charge.
type PurchaseService struct {
	db       *gorm.DB
	gateway  payments.Gateway
	resolver *PaymentResolver
	cfg      config.GatewayConfig
}

func NewPurchaseService(db *gorm.DB, gateway payments.Gateway, resolver *PaymentResolver, cfg config.GatewayConfig) *PurchaseService {
	return &PurchaseService{db: db, gateway: gateway, resolver: resolver, cfg: cfg}
}

func (s *PurchaseService) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	if (req.CustomerID == nil) == (req.Guest == nil) {
		return nil, validation("either a signed-in customer or guest details are required")
	}

	db := s.db.WithContext(ctx)
	var pkg models.Package
	if err := db.Where("id = ? AND is_active = ?", req.PackageID, true).First(&pkg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("package")
		}
		return nil, err
	}

	intent := models.PaymentIntent{
		CustomerID:         req.CustomerID,
		PackageID:          pkg.ID,
		Reference:          s.gateway.GenerateReference(),
		AmountInCents:      pkg.PriceInCents,
		Currency:           pkg.Currency,
		Status:             models.IntentPending,
		RecurringRequested: req.Recurring,
	}

	if req.CustomerID != nil {
		var customer models.User
		if err := db.First(&customer, "id = ?", *req.CustomerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, notFound("customer")
			}
			return nil, err
		}
		intent.CustomerEmail = customer.Email
	} else {
		registration, err := s.pendingRegistration(ctx, *req.Guest)
		if err != nil {
			return nil, err
		}
		intent.CustomerEmail = strings.ToLower(strings.TrimSpace(req.Guest.Email))
		intent.PendingRegistration = registration
	}

	if err := db.Create(&intent).Error; err != nil {
		return nil, err
	}

	if req.CardToken == "" {
		return &PurchaseResult{
			Intent: intent,
			Checkout: &Checkout{
				Reference:          intent.Reference,
				AmountInCents:      intent.AmountInCents,
				Currency:           intent.Currency,
				IntegritySignature: s.gateway.GenerateIntegritySignature(intent.Reference, intent.AmountInCents, intent.Currency),
				PublicKey:          s.cfg.PublicKey,
			},
		}, nil
	}

	// Card charges always go through a payment source. Only recurring
	// subscriptions keep it after approval.
	sourceID, err := s.gateway.CreatePaymentSource(ctx, req.CardToken, intent.CustomerEmail)
	if err != nil {
		return nil, s.abort(ctx, &intent, err)
	}
	txn, err := s.gateway.CreateTransaction(ctx, payments.TransactionRequest{
		AmountInCents:   intent.AmountInCents,
		Currency:        intent.Currency,
		CustomerEmail:   intent.CustomerEmail,
		Reference:       intent.Reference,
		PaymentSourceID: sourceID,
		Recurring:       req.Recurring,
	})
	if err != nil {
		return nil, s.abort(ctx, &intent, err)
	}

	intent.GatewayTransactionID = &txn.ID
	intent.PaymentSourceID = &sourceID
	if err := database.UpdateColumns(db, &intent, "gateway_transaction_id", "payment_source_id"); err != nil {
		return nil, err
	}

	result := &PurchaseResult{Intent: intent, Outcome: OutcomeIgnored}
	if txn.Status == payments.StatusApproved || payments.IsFailureStatus(txn.Status) {
		// The webhook for this transaction may arrive too; the intent guard makes
		// whichever comes second a no-op.
		outcome, err := s.resolver.Apply(ctx, txn)
		if err != nil {
			return nil, err
		}
		result.Outcome = outcome
		if err := db.First(&result.Intent, "id = ?", intent.ID).Error; err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *PurchaseService) pendingRegistration(ctx context.Context, guest GuestRegistration) ([]byte, error) {
	email := strings.ToLower(strings.TrimSpace(guest.Email))
	if email == "" || guest.FullName == "" || len(guest.Password) < 8 {
		return nil, validation("guest checkout needs a name, an email and a password of at least 8 characters")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, validation("an account with this email already exists, sign in to purchase")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(guest.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.PendingRegistration{
		FullName:     guest.FullName,
		Email:        email,
		PasswordHash: string(hash),
		Phone:        guest.Phone,
	})
}

// abort settles the intent as failed after a gateway error so it never holds
// credentials longer than the attempt.
func (s *PurchaseService) abort(ctx context.Context, intent *models.PaymentIntent, cause error) error {
	err := database.InTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := database.LockByID(tx, intent, intent.ID); err != nil {
			return err
		}
		if intent.Status != models.IntentPending {
			return nil
		}
		return failIntent(tx, intent, "", truncate(cause.Error(), 255), time.Now().UTC())
	})
	if err != nil {
		log.Printf("🔥 Could not mark intent %s as failed: %v", intent.ID, err)
	}
	return gatewayFailure(cause)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
