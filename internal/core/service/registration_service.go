package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/forteclube/forte-payments/internal/core/domain"
	"github.com/forteclube/forte-payments/internal/core/ports"
)

// paymentDueWindow is how long a payer has to settle an event charge.
const paymentDueWindow = 7 * 24 * time.Hour

// RegistrationResult is what a successful registration returns to the caller.
// Payment is nil for free events; for paid ones it carries everything needed
// to settle the charge out of band.
type RegistrationResult struct {
	Registration *domain.EventRegistration `json:"registration"`
	Payment      *domain.PaymentRef        `json:"payment,omitempty"`
}

// RegistrationService orchestrates event registration: capacity check,
// free-vs-paid branching, gateway payment creation and persistence.
type RegistrationService struct {
	members       ports.MemberRepository
	registrations ports.RegistrationRepository
	gateway       ports.PaymentGateway
	lifecycle     *LifecycleManager
	events        ports.EventRepository
	clock         func() time.Time
}

// NewRegistrationService creates a new registration service.
func NewRegistrationService(
	members ports.MemberRepository,
	registrations ports.RegistrationRepository,
	events ports.EventRepository,
	gateway ports.PaymentGateway,
	lifecycle *LifecycleManager,
) *RegistrationService {
	return &RegistrationService{
		members:       members,
		registrations: registrations,
		events:        events,
		gateway:       gateway,
		lifecycle:     lifecycle,
		clock:         time.Now,
	}
}

// Register registers a member for an event.
//
// The capacity and duplicate checks run twice: a fast pre-check here for a
// clean failure before any gateway call, and again inside the registration
// transaction where they are authoritative. For paid events the gateway
// charge is created before the local insert; when the insert then fails the
// charge is an orphan the consistency sweep reports (the gateway is never
// transactional with our database).
func (s *RegistrationService) Register(ctx context.Context, eventID, memberID string) (*RegistrationResult, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	// Lazy recomputation on read keeps the status honest even between
	// sweeper ticks.
	event, err = s.lifecycle.ReconcileAndPersist(ctx, event)
	if err != nil {
		return nil, err
	}

	if !event.Status.AcceptsRegistrations() {
		return nil, domain.NewServiceError(domain.ErrRegistrationClosed,
			fmt.Sprintf("event %s is %s", event.ID, event.Status), "REGISTRATION_CLOSED")
	}
	if event.IsFull() {
		return nil, domain.NewServiceError(domain.ErrEventFull,
			fmt.Sprintf("event %s is full", event.ID), "EVENT_FULL")
	}
	if existing, err := s.registrations.GetByEventAndMember(ctx, eventID, memberID); err == nil &&
		existing != nil && existing.PaymentStatus != domain.RegistrationCancelled {
		return nil, domain.NewServiceError(domain.ErrAlreadyRegistered,
			fmt.Sprintf("member %s already registered for event %s", memberID, eventID), "ALREADY_REGISTERED")
	}

	if event.IsFree() {
		reg, err := s.registrations.Register(ctx, ports.RegistrationInsert{
			EventID:       eventID,
			MemberID:      memberID,
			PaymentStatus: domain.RegistrationFree,
		})
		if err != nil {
			return nil, err
		}
		return &RegistrationResult{Registration: reg}, nil
	}

	customerID, err := ensureGatewayCustomer(ctx, s.members, s.gateway, member)
	if err != nil {
		return nil, err
	}

	dueDate := s.clock().Add(paymentDueWindow)
	paymentRef, err := s.gateway.CreatePayment(ctx, domain.CreatePaymentRequest{
		CustomerID:        customerID,
		PayerEmail:        member.Email,
		BillingType:       domain.BillingUndefined,
		ValueCents:        event.PriceCents,
		DueDate:           dueDate,
		Description:       fmt.Sprintf("Inscricao: %s", event.Title),
		ExternalReference: domain.EventExternalRef(eventID, memberID),
	})
	if err != nil {
		log.Printf("registration: gateway charge failed for event %s member %s: %v", eventID, memberID, err)
		return nil, domain.NewServiceError(domain.ErrGatewayUnavailable,
			"failed to create event charge", "GATEWAY_ERROR")
	}

	paymentID := paymentRef.ID
	reg, err := s.registrations.Register(ctx, ports.RegistrationInsert{
		EventID:          eventID,
		MemberID:         memberID,
		PaymentStatus:    domain.RegistrationPending,
		GatewayPaymentID: paymentID,
		AmountCents:      event.PriceCents,
		Ledger: &domain.LedgerEntry{
			Description: fmt.Sprintf("Inscricao em evento: %s", event.Title),
			Type:        domain.LedgerIncome,
			AmountCents: event.PriceCents,
			EntryDate:   s.clock(),
			Category:    "event_registration",
			PaymentID:   &paymentID,
		},
	})
	if err != nil {
		// The gateway charge exists but the local write lost. The payment
		// mirror lands via PAYMENT_CREATED and the consistency sweep flags
		// the orphan; nothing is silently dropped.
		log.Printf("registration: local insert failed after gateway charge %s (event %s, member %s): %v",
			paymentID, eventID, memberID, err)
		return nil, err
	}

	log.Printf("registration: member %s registered for event %s, charge %s due %s",
		memberID, eventID, paymentID, dueDate.Format(time.DateOnly))

	return &RegistrationResult{Registration: reg, Payment: paymentRef}, nil
}

// Unregister removes the member's registration and frees the seat. An
// in-flight gateway charge is deliberately not cancelled here; the sweep
// keeps reporting it until an admin resolves it at the gateway.
func (s *RegistrationService) Unregister(ctx context.Context, eventID, memberID string) error {
	return s.registrations.Unregister(ctx, eventID, memberID)
}
