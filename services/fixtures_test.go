package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	config "github.com/anjiri1684/studio_booking/configs"
	"github.com/anjiri1684/studio_booking/database/databasetest"
	"github.com/anjiri1684/studio_booking/models"
	"github.com/anjiri1684/studio_booking/notifications"
	"github.com/anjiri1684/studio_booking/payments"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var baseTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu sync.Mutex

	refs         int
	rejectEvents bool
	sourceErr    error
	txnErr       error
	txnStatus    string
	txnMethod    string
	lookup       map[string]payments.Transaction
	requests     []payments.TransactionRequest
	// beforeCharge runs at the start of CreateTransaction, outside the lock.
	beforeCharge func(req payments.TransactionRequest)
}

func (g *fakeGateway) GenerateReference() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refs++
	return fmt.Sprintf("SUB-TEST-%04d", g.refs)
}

func (g *fakeGateway) CreatePaymentSource(_ context.Context, token, _ string) (string, error) {
	if g.sourceErr != nil {
		return "", g.sourceErr
	}
	return "src-" + token, nil
}

func (g *fakeGateway) CreateTransaction(_ context.Context, req payments.TransactionRequest) (payments.Transaction, error) {
	if g.beforeCharge != nil {
		g.beforeCharge(req)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.txnErr != nil {
		return payments.Transaction{}, g.txnErr
	}
	status := g.txnStatus
	if status == "" {
		status = payments.StatusApproved
	}
	method := g.txnMethod
	if method == "" {
		method = "CARD"
	}
	return payments.Transaction{
		ID:                fmt.Sprintf("txn-%d", len(g.requests)),
		Status:            status,
		Reference:         req.Reference,
		PaymentMethodType: method,
		PaymentSourceID:   req.PaymentSourceID,
	}, nil
}

func (g *fakeGateway) GetTransactionByID(_ context.Context, id string) (payments.Transaction, error) {
	txn, ok := g.lookup[id]
	if !ok {
		return payments.Transaction{}, &payments.GatewayError{StatusCode: 404, Message: "NOT_FOUND_ERROR"}
	}
	return txn, nil
}

func (g *fakeGateway) VerifyEventChecksum([]byte) bool {
	return !g.rejectEvents
}

func (g *fakeGateway) GenerateIntegritySignature(reference string, amountInCents int64, currency string) string {
	return payments.IntegritySignature(reference, amountInCents, currency, "integrity")
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type recordingNotifier struct {
	notifications.LogNotifier
	mu            sync.Mutex
	confirmations int
	cancellations int
	reschedules   int
	receipts      int
	reminders     int
}

func (n *recordingNotifier) SendBookingConfirmation(context.Context, models.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations++
	return nil
}

func (n *recordingNotifier) SendBookingCancellation(context.Context, models.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancellations++
	return nil
}

func (n *recordingNotifier) SendBookingReschedule(context.Context, models.Booking, models.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reschedules++
	return nil
}

func (n *recordingNotifier) SendPaymentReceipt(context.Context, models.Payment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts++
	return nil
}

func (n *recordingNotifier) SendSubscriptionExpiryReminder(context.Context, models.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders++
	return nil
}

type fixture struct {
	db       *gorm.DB
	gateway  *fakeGateway
	notifier *recordingNotifier

	mu  sync.Mutex
	now time.Time

	bookings  *BookingService
	subs      *SubscriptionService
	resolver  *PaymentResolver
	purchases *PurchaseService
	billing   *BillingService
	catalog   *CatalogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:       databasetest.Open(t),
		gateway:  &fakeGateway{lookup: map[string]payments.Transaction{}},
		notifier: &recordingNotifier{},
		now:      baseTime,
	}
	cfg := config.BookingConfig{CancelCutoff: 24 * time.Hour, TravelBuffer: DefaultTravelBuffer, ReminderWindow: 24 * time.Hour}

	f.bookings = NewBookingService(f.db, f.notifier, cfg).WithClock(f.clock)
	f.subs = NewSubscriptionService(f.db, f.notifier).WithClock(f.clock)
	f.resolver = NewPaymentResolver(f.db, f.gateway, f.notifier).WithClock(f.clock)
	f.purchases = NewPurchaseService(f.db, f.gateway, f.resolver, config.GatewayConfig{PublicKey: "pub_test"})
	f.billing = NewBillingService(f.db, f.gateway, f.notifier).WithClock(f.clock)
	f.catalog = NewCatalogService(f.db, "COP")
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *fixture) user(t *testing.T, role string) models.User {
	t.Helper()
	id := uuid.New()
	u := models.User{ID: id, FullName: role + " " + id.String()[:8], Email: id.String() + "@example.com", Password: "x", Role: role, IsActive: true}
	require.NoError(t, f.db.Create(&u).Error)
	return u
}

func (f *fixture) pkg(t *testing.T, sessions, validityDays int) models.Package {
	t.Helper()
	p := models.Package{Name: "Pack", SessionsCount: sessions, PriceInCents: 25000000, Currency: "COP", ValidityDays: validityDays, IsActive: true}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) slot(t *testing.T, start time.Time, length time.Duration, trainer *uuid.UUID) models.AvailabilitySlot {
	t.Helper()
	s := models.AvailabilitySlot{StartsAt: start, EndsAt: start.Add(length), IsActive: true, TrainerID: trainer}
	require.NoError(t, f.db.Create(&s).Error)
	return s
}

func (f *fixture) subscription(t *testing.T, customerID uuid.UUID, p models.Package, used int) models.Subscription {
	t.Helper()
	s := models.Subscription{
		CustomerID:    customerID,
		PackageID:     p.ID,
		SessionsTotal: p.SessionsCount,
		SessionsUsed:  used,
		Status:        models.SubscriptionActive,
		StartsAt:      f.clock(),
		ExpiresAt:     f.clock().Add(p.ValidityWindow()),
	}
	require.NoError(t, f.db.Create(&s).Error)
	return s
}

func (f *fixture) reloadSub(t *testing.T, id uuid.UUID) models.Subscription {
	t.Helper()
	var s models.Subscription
	require.NoError(t, f.db.First(&s, "id = ?", id).Error)
	return s
}

func (f *fixture) reloadSlot(t *testing.T, id uuid.UUID) models.AvailabilitySlot {
	t.Helper()
	var s models.AvailabilitySlot
	require.NoError(t, f.db.First(&s, "id = ?", id).Error)
	return s
}

func (f *fixture) reloadBooking(t *testing.T, id uuid.UUID) models.Booking {
	t.Helper()
	var b models.Booking
	require.NoError(t, f.db.First(&b, "id = ?", id).Error)
	return b
}

func (f *fixture) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func customerActor(u models.User) Actor {
	return Actor{ID: u.ID, Role: models.RoleCustomer}
}

func webhookPayload(t *testing.T, txn payments.Transaction) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": "transaction.updated",
		"data": map[string]interface{}{
			"transaction": map[string]interface{}{
				"id":                  txn.ID,
				"status":              txn.Status,
				"reference":           txn.Reference,
				"payment_method_type": txn.PaymentMethodType,
				"payment_source_id":   txn.PaymentSourceID,
			},
		},
		"signature": map[string]interface{}{
			"properties": []string{"transaction.id", "transaction.status"},
			"checksum":   "ignored-by-fake",
		},
		"timestamp": baseTime.Unix(),
	})
	require.NoError(t, err)
	return body
}
