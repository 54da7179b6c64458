package payments

import (
	"context"
	"fmt"
	"strings"
)

// Transaction statuses reported by the gateway.
const (
	StatusApproved = "APPROVED"
	StatusDeclined = "DECLINED"
	StatusError    = "ERROR"
	StatusVoided   = "VOIDED"
	StatusPending  = "PENDING"
)

const ProviderName = "wompi"

type Transaction struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	Reference         string `json:"reference,omitempty"`
	PaymentMethodType string `json:"payment_method_type,omitempty"`
	PaymentSourceID   string `json:"payment_source_id,omitempty"`
}

type TransactionRequest struct {
	AmountInCents   int64
	Currency        string
	CustomerEmail   string
	Reference       string
	PaymentSourceID string
	Recurring       bool
}

// Gateway is the card-tokenizing payment gateway. Every network call is bounded
// by the client timeout and fails with *GatewayError.
type Gateway interface {
	GenerateReference() string
	CreatePaymentSource(ctx context.Context, token, customerEmail string) (string, error)
	CreateTransaction(ctx context.Context, req TransactionRequest) (Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (Transaction, error)
	VerifyEventChecksum(payload []byte) bool
	GenerateIntegritySignature(reference string, amountInCents int64, currency string) string
}

// GatewayError wraps an upstream failure. StatusCode is zero when the gateway
// never answered (timeout, connection refused).
type GatewayError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway error (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("gateway error: %s: %v", e.Message, e.Err)
	}
	return "gateway error: " + e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NormalizeStatus upper-cases a status so webhook and API spellings compare equal.
func NormalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

// IsReusableMethod reports whether a payment method type can be charged again
// through a stored payment source.
func IsReusableMethod(methodType string) bool {
	switch NormalizeStatus(methodType) {
	case "CARD", "NEQUI":
		return true
	}
	return false
}

// IsFailureStatus reports the statuses that settle an attempt as failed.
func IsFailureStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusDeclined, StatusError, StatusVoided:
		return true
	}
	return false
}
