package services

import (
	"errors"
	"fmt"
)

// Machine-readable error codes returned to API clients.
const (
	CodeSlotUnavailable      = "SLOT_UNAVAILABLE"
	CodeTooLateToCancel      = "TOO_LATE_TO_CANCEL"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeGatewayError         = "GATEWAY_ERROR"
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeNotFound             = "NOT_FOUND"
	CodeForbidden            = "FORBIDDEN"
	CodeSubscriptionUnusable = "SUBSCRIPTION_UNUSABLE"
	CodeValidation           = "VALIDATION_FAILED"
)

// ServiceError is a business-rule rejection. Two ServiceErrors match under
// errors.Is when their codes match, so callers test against the sentinels below
// regardless of the message detail.
type ServiceError struct {
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	var other *ServiceError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

var (
	ErrSlotUnavailable      = &ServiceError{Code: CodeSlotUnavailable, Message: "slot is not available"}
	ErrTooLateToCancel      = &ServiceError{Code: CodeTooLateToCancel, Message: "too late to cancel this booking"}
	ErrInvalidTransition    = &ServiceError{Code: CodeInvalidTransition, Message: "invalid state transition"}
	ErrGateway              = &ServiceError{Code: CodeGatewayError, Message: "payment gateway error"}
	ErrInvalidSignature     = &ServiceError{Code: CodeInvalidSignature, Message: "invalid event signature"}
	ErrNotFound             = &ServiceError{Code: CodeNotFound, Message: "not found"}
	ErrForbidden            = &ServiceError{Code: CodeForbidden, Message: "not allowed"}
	ErrSubscriptionUnusable = &ServiceError{Code: CodeSubscriptionUnusable, Message: "subscription cannot be used for this booking"}
	ErrValidation           = &ServiceError{Code: CodeValidation, Message: "invalid request"}
)

func slotUnavailable(reason string) error {
	return &ServiceError{Code: CodeSlotUnavailable, Message: "slot is not available: " + reason}
}

func invalidTransition(from, action string) error {
	return &ServiceError{Code: CodeInvalidTransition, Message: fmt.Sprintf("cannot %s from status %q", action, from)}
}

func notFound(what string) error {
	return &ServiceError{Code: CodeNotFound, Message: what + " not found"}
}

func subscriptionUnusable(reason string) error {
	return &ServiceError{Code: CodeSubscriptionUnusable, Message: "subscription cannot be used: " + reason}
}

func validation(reason string) error {
	return &ServiceError{Code: CodeValidation, Message: reason}
}

func gatewayFailure(err error) error {
	return &ServiceError{Code: CodeGatewayError, Message: "payment gateway error", Err: err}
}
