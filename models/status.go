package models

const (
	RoleCustomer = "customer"
	RoleTrainer  = "trainer"
	RoleAdmin    = "admin"
)

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCanceled  = "canceled"
)

const (
	SubscriptionActive   = "active"
	SubscriptionPaused   = "paused"
	SubscriptionExpired  = "expired"
	SubscriptionCanceled = "canceled"
)

const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentFailed    = "failed"
	PaymentCanceled  = "canceled"
	PaymentRefunded  = "refunded"
)

const (
	PaymentKindPurchase  = "purchase"
	PaymentKindRecurring = "recurring"
)

const (
	IntentPending  = "pending"
	IntentApproved = "approved"
	IntentFailed   = "failed"
)

// LiveBookingStatuses are the statuses that hold a slot.
var LiveBookingStatuses = []string{BookingPending, BookingConfirmed}
