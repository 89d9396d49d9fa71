// Package domain contains the core business entities for the membership
// payments service.
package domain

import "errors"

// Domain errors - represent business rule violations.
var (
	// ErrInvalidRequest is returned for malformed input.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyRegistered is returned when the same (event, member) pair
	// registers twice.
	ErrAlreadyRegistered = errors.New("member already registered for this event")

	// ErrEventFull is returned when an event has no remaining capacity.
	ErrEventFull = errors.New("event is fully booked")

	// ErrRegistrationClosed is returned when the event status does not
	// accept registrations.
	ErrRegistrationClosed = errors.New("event is not open for registration")

	// ErrNotEligible is returned when a member's rank is below the dues
	// threshold.
	ErrNotEligible = errors.New("member rank is not payment eligible")

	// ErrAlreadySubscribed is returned when an active subscription exists.
	ErrAlreadySubscribed = errors.New("member already has an active subscription")

	// ErrNoSubscription is returned when cancelling without a subscription.
	ErrNoSubscription = errors.New("member has no subscription")

	// ErrGatewayUnavailable is returned when the payment gateway fails.
	ErrGatewayUnavailable = errors.New("payment gateway error")

	// ErrWebhookValidationFailed is returned when the webhook signature is
	// invalid.
	ErrWebhookValidationFailed = errors.New("webhook signature validation failed")

	// ErrConsistency is returned when a webhook references local state that
	// does not exist; such events are recorded for manual reconciliation.
	ErrConsistency = errors.New("inconsistent state")
)

// ServiceError wraps errors with additional context.
type ServiceError struct {
	Err     error
	Message string
	Code    string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(err error, message, code string) *ServiceError {
	return &ServiceError{Err: err, Message: message, Code: code}
}

// GatewayError carries the provider's own error code and description for a
// non-2xx gateway response.
type GatewayError struct {
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return "gateway error " + e.Code + ": " + e.Description
	}
	return "gateway error: " + e.Description
}

// Unwrap lets callers match with errors.Is(err, ErrGatewayUnavailable).
func (e *GatewayError) Unwrap() error {
	return ErrGatewayUnavailable
}
