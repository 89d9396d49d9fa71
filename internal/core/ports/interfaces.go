// Package ports defines the interfaces (ports) for the membership payments
// service. These are contracts that adapters must implement.
package ports

import (
	"context"
	"time"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

// PaymentGateway is the port to the external payment provider. None of these
// calls are transactional with local persistence: a local write can fail
// after a successful gateway call, so callers persist gateway ids as soon as
// they are known and the consistency sweep catches the rest.
type PaymentGateway interface {
	// CreateCustomer provisions a customer and returns its gateway id.
	CreateCustomer(ctx context.Context, profile domain.CustomerProfile) (string, error)

	// CreateSubscription creates a recurring charge for the customer.
	CreateSubscription(ctx context.Context, req domain.CreateSubscriptionRequest) (*domain.SubscriptionRef, error)

	// CancelSubscription stops a recurring charge at the gateway.
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// CreatePayment creates a one-off charge and returns the payer-facing
	// invoice/boleto/PIX data.
	CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.PaymentRef, error)

	// GetPayment retrieves the gateway's current view of a charge.
	GetPayment(ctx context.Context, paymentID string) (*domain.PaymentInfo, error)
}

// MemberRepository reads and updates members.
type MemberRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Member, error)

	// SetGatewayCustomerID persists the gateway customer mapping. It is
	// written immediately after a successful CreateCustomer call so a retry
	// never provisions a duplicate customer.
	SetGatewayCustomerID(ctx context.Context, memberID, customerID string) error
}

// EventRepository reads events and applies lifecycle transitions.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Event, error)

	// UpdateStatusIf moves the event from one status to another and reports
	// whether the row actually changed. The conditional write keeps a
	// concurrent admin cancellation from being clobbered.
	UpdateStatusIf(ctx context.Context, eventID string, from, to domain.EventStatus) (bool, error)

	// ListNonTerminal returns events whose lifecycle can still advance.
	ListNonTerminal(ctx context.Context) ([]domain.Event, error)
}

// RegistrationInsert carries everything the registration transaction writes.
type RegistrationInsert struct {
	EventID          string
	MemberID         string
	PaymentStatus    domain.RegistrationStatus
	GatewayPaymentID string
	AmountCents      int64
	// Ledger, when set, is inserted in the same transaction as the
	// registration row.
	Ledger *domain.LedgerEntry
}

// RegistrationRepository owns the capacity-safe registration writes. The
// check-and-insert runs as a single transaction holding a row lock on the
// event so concurrent attempts for the last seat cannot both succeed.
type RegistrationRepository interface {
	// Register locks the event row, re-checks status and capacity, inserts
	// the registration, increments the participant counter and writes the
	// optional ledger entry atomically. Fails with ErrRegistrationClosed,
	// ErrEventFull or ErrAlreadyRegistered.
	Register(ctx context.Context, ins RegistrationInsert) (*domain.EventRegistration, error)

	// Unregister deletes the registration and decrements the counter in one
	// transaction.
	Unregister(ctx context.Context, eventID, memberID string) error

	GetByEventAndMember(ctx context.Context, eventID, memberID string) (*domain.EventRegistration, error)

	// MarkPaid flips a registration to paid with the confirmed amount.
	// Applying it twice is a no-op.
	MarkPaid(ctx context.Context, eventID, memberID string, amountCents int64) error

	// CancelAndRelease marks the registration cancelled and decrements the
	// event counter in the same transaction. Only the transition out of a
	// non-cancelled state releases the seat, so re-delivery cannot
	// double-decrement.
	CancelAndRelease(ctx context.Context, eventID, memberID string) error
}

// SubscriptionRepository persists recurring-dues subscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	GetActiveByMember(ctx context.Context, memberID string) (*domain.Subscription, error)
	GetByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*domain.Subscription, error)
	UpdateStatus(ctx context.Context, id string, status domain.SubscriptionStatus) error
}

// PaymentRepository keeps the local mirror of gateway charges.
type PaymentRepository interface {
	// Upsert creates or updates the mirror keyed by gateway payment id,
	// merging status forward-only. It must work when the confirmation
	// arrives before the creation event.
	Upsert(ctx context.Context, info domain.PaymentInfo) (*domain.Payment, error)

	GetByGatewayID(ctx context.Context, gatewayPaymentID string) (*domain.Payment, error)

	// ListOrphanEventPayments returns event-correlated charge mirrors that
	// have no matching registration row: the charged-but-unregistered
	// partial failures the sweep reports.
	ListOrphanEventPayments(ctx context.Context) ([]domain.Payment, error)
}

// WebhookEventRepository is the idempotency ledger for inbound notifications.
type WebhookEventRepository interface {
	// CreateIfNotExists inserts the event keyed by the gateway event id.
	// created is false when the id was already stored; stored always holds
	// the durable row.
	CreateIfNotExists(ctx context.Context, event *domain.WebhookEvent) (created bool, stored *domain.WebhookEvent, err error)

	// MarkProcessed records the dispatch outcome. A non-empty processingError
	// flags the event for manual reconciliation.
	MarkProcessed(ctx context.Context, id string, processingError string) error

	// ListUnprocessed returns stored events whose dispatch has not committed,
	// oldest first, for out-of-band retry.
	ListUnprocessed(ctx context.Context, olderThan time.Time, limit int) ([]domain.WebhookEvent, error)
}

// LedgerRepository persists financial-transaction records.
type LedgerRepository interface {
	Create(ctx context.Context, entry *domain.LedgerEntry) error

	// SettleByPaymentID updates the entry correlated to a gateway charge id
	// once the gateway confirms it. Correlation is by that key, never by
	// text matching.
	SettleByPaymentID(ctx context.Context, gatewayPaymentID string, billingType domain.BillingType, paidAt time.Time) error

	// TotalsByCategory sums signed amounts per category inside a date range.
	TotalsByCategory(ctx context.Context, from, to time.Time) (map[string]int64, error)
}

// ReportingRepository serves the derived read models for the admin UI.
type ReportingRepository interface {
	// CountEligibleMembers counts members at or above the dues threshold.
	CountEligibleMembers(ctx context.Context) (int64, error)

	// CountActiveSubscribers counts members with an ACTIVE subscription.
	CountActiveSubscribers(ctx context.Context) (int64, error)
}

// ReportCache caches serialized report payloads with a TTL.
type ReportCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// WebhookValidator validates provider webhook signatures before the
// idempotency store step.
type WebhookValidator interface {
	// ValidateSignature checks the provider signature header against the
	// shared secret.
	ValidateSignature(xSignature, xRequestID, dataID, secret string) bool
}
