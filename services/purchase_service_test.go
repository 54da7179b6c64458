package services

import (
	"context"
	"testing"

	"github.com/anjiri1684/studio_booking/models"
	"github.com/anjiri1684/studio_booking/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseWithCardApprovesImmediately(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 8, 30)

	result, err := f.purchases.Purchase(context.Background(), PurchaseRequest{
		CustomerID: &customer.ID,
		PackageID:  p.ID,
		CardToken:  "tok_test",
		Recurring:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, result.Outcome)
	assert.Equal(t, models.IntentApproved, result.Intent.Status)
	assert.Nil(t, result.Checkout)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, "src-tok_test", req.PaymentSourceID)
	assert.Equal(t, p.PriceInCents, req.AmountInCents)
	assert.Equal(t, customer.Email, req.CustomerEmail)
	assert.True(t, req.Recurring)

	var sub models.Subscription
	require.NoError(t, f.db.First(&sub, "id = ?", *result.Intent.SubscriptionID).Error)
	assert.True(t, sub.IsRecurring)
	assert.Equal(t, "src-tok_test", *sub.PaymentSourceID)

	// The webhook for the same transaction arrives afterwards.
	outcome, err := f.resolver.HandleEvent(context.Background(), webhookPayload(t, payments.Transaction{
		ID: *result.Intent.GatewayTransactionID, Status: "APPROVED", PaymentMethodType: "CARD",
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, outcome)
	assert.Equal(t, int64(1), f.count(t, &models.Subscription{}, ""))
}

func TestOneOffCardPurchaseKeepsNoPaymentSource(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 8, 30)

	result, err := f.purchases.Purchase(context.Background(), PurchaseRequest{
		CustomerID: &customer.ID,
		PackageID:  p.ID,
		CardToken:  "tok_once",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, result.Outcome)

	require.Len(t, f.gateway.requests, 1)
	assert.Equal(t, "src-tok_once", f.gateway.requests[0].PaymentSourceID)
	assert.False(t, f.gateway.requests[0].Recurring)

	var sub models.Subscription
	require.NoError(t, f.db.First(&sub, "id = ?", *result.Intent.SubscriptionID).Error)
	assert.False(t, sub.IsRecurring)
	assert.Nil(t, sub.PaymentSourceID)
	assert.Nil(t, sub.NextBillingDate)
}

func TestPurchaseGatewayErrorLeavesNoLedgerRows(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 8, 30)
	f.gateway.txnErr = &payments.GatewayError{StatusCode: 422, Message: "INPUT_VALIDATION_ERROR"}

	_, err := f.purchases.Purchase(context.Background(), PurchaseRequest{CustomerID: &customer.ID, PackageID: p.ID, CardToken: "tok"})
	assert.ErrorIs(t, err, ErrGateway)

	var intent models.PaymentIntent
	require.NoError(t, f.db.First(&intent).Error)
	assert.Equal(t, models.IntentFailed, intent.Status)
	assert.Zero(t, f.count(t, &models.Subscription{}, ""))
	assert.Zero(t, f.count(t, &models.Payment{}, ""))
}

func TestPurchaseWithoutCardReturnsCheckout(t *testing.T) {
	f := newFixture(t)
	p := f.pkg(t, 8, 30)

	result, err := f.purchases.Purchase(context.Background(), PurchaseRequest{
		Guest:     &GuestRegistration{FullName: "Walk In", Email: "Walk.In@Example.com", Password: "s3cret-pass"},
		PackageID: p.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Checkout)

	assert.Equal(t, result.Intent.Reference, result.Checkout.Reference)
	assert.Equal(t, p.PriceInCents, result.Checkout.AmountInCents)
	assert.Equal(t, "pub_test", result.Checkout.PublicKey)
	assert.Equal(t, payments.IntegritySignature(result.Intent.Reference, p.PriceInCents, "COP", "integrity"), result.Checkout.IntegritySignature)

	var intent models.PaymentIntent
	require.NoError(t, f.db.First(&intent, "id = ?", result.Intent.ID).Error)
	assert.Equal(t, models.IntentPending, intent.Status)
	assert.Equal(t, "walk.in@example.com", intent.CustomerEmail)
	assert.NotEmpty(t, intent.PendingRegistration)
	assert.NotContains(t, string(intent.PendingRegistration), "s3cret-pass")
	assert.Empty(t, f.gateway.requests)
}

func TestPurchaseValidation(t *testing.T) {
	f := newFixture(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.pkg(t, 8, 30)
	ctx := context.Background()

	_, err := f.purchases.Purchase(ctx, PurchaseRequest{PackageID: p.ID})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.purchases.Purchase(ctx, PurchaseRequest{
		Guest:     &GuestRegistration{FullName: "Dup", Email: customer.Email, Password: "long-enough"},
		PackageID: p.ID,
	})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.db.Model(&p).Update("is_active", false).Error)
	_, err = f.purchases.Purchase(ctx, PurchaseRequest{CustomerID: &customer.ID, PackageID: p.ID})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.count(t, &models.PaymentIntent{}, ""))
}
