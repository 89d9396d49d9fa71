package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/forteclube/forte-payments/internal/core/domain"
	"github.com/forteclube/forte-payments/internal/core/ports"
)

// WebhookService applies asynchronous gateway notifications exactly once and
// propagates confirmed state into registrations, subscriptions and the
// ledger.
//
// Protocol: the raw delivery is first stored keyed by the gateway's event id
// (the idempotency ledger); a duplicate of a processed event returns without
// reprocessing. Normalization and dispatch run only after the row is
// durable, and both are idempotent, so a crash or failure at any later step
// leaves the event retryable and a re-run converges on the same end state.
// Gateways do not guarantee ordering: a confirmation arriving before the
// creation event must still succeed, which is why every mirror write is an
// upsert, never an update-only.
type WebhookService struct {
	webhooks      ports.WebhookEventRepository
	payments      ports.PaymentRepository
	registrations ports.RegistrationRepository
	subscriptions ports.SubscriptionRepository
	ledger        ports.LedgerRepository
	clock         func() time.Time
}

// NewWebhookService creates a webhook service.
func NewWebhookService(
	webhooks ports.WebhookEventRepository,
	payments ports.PaymentRepository,
	registrations ports.RegistrationRepository,
	subscriptions ports.SubscriptionRepository,
	ledger ports.LedgerRepository,
) *WebhookService {
	return &WebhookService{
		webhooks:      webhooks,
		payments:      payments,
		registrations: registrations,
		subscriptions: subscriptions,
		ledger:        ledger,
		clock:         time.Now,
	}
}

// Ingest stores one inbound gateway delivery and then dispatches it.
//
// The raw payload is persisted BEFORE normalize runs: normalization may read
// the charge back from the gateway, and a transient failure there must not
// lose the delivery after the provider has been acked. Once the row is
// durable the HTTP layer answers 200 regardless of normalize or dispatch
// outcome; a failure leaves the row unprocessed and the retry sweep
// re-normalizes it from the stored payload. The returned error covers the
// storage step only.
//
// A duplicate of an already-processed event returns immediately; a duplicate
// of a stored-but-unprocessed event re-dispatches, which is safe because
// dispatch is idempotent and converges faster than waiting for the sweep.
func (s *WebhookService) Ingest(ctx context.Context, eventID, eventType, payload string, normalize func(context.Context) (*domain.GatewayEvent, error)) error {
	if eventID == "" {
		return domain.NewServiceError(domain.ErrInvalidRequest,
			"gateway event without id", "VALIDATION_ERROR")
	}

	row := &domain.WebhookEvent{
		ID:             uuid.New().String(),
		GatewayEventID: eventID,
		EventType:      eventType,
		Payload:        payload,
	}
	created, stored, err := s.webhooks.CreateIfNotExists(ctx, row)
	if err != nil {
		return fmt.Errorf("store webhook event: %w", err)
	}
	if !created && stored.Processed {
		log.Printf("webhook: duplicate delivery of %s ignored", eventID)
		return nil
	}

	event, err := normalize(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			// Malformed beyond repair; flag it so the sweep stops retrying.
			log.Printf("webhook: event %s does not normalize: %v", eventID, err)
			if markErr := s.webhooks.MarkProcessed(ctx, stored.ID, err.Error()); markErr != nil {
				log.Printf("webhook: failed to flag %s: %v", eventID, markErr)
			}
			return nil
		}
		// Transient read-back failure. The row is durable, so the provider
		// is acked and the sweep retries from the stored payload.
		log.Printf("webhook: normalize of %s failed, will retry: %v", eventID, err)
		return nil
	}

	s.dispatchStored(ctx, stored, event)
	return nil
}

// dispatchStored runs the dispatch step for a stored event and records the
// outcome. Consistency errors are recorded on the row and the event marked
// processed: they flag manual reconciliation, retrying will not heal them.
// Transient errors leave the row unprocessed for the retry sweep.
func (s *WebhookService) dispatchStored(ctx context.Context, stored *domain.WebhookEvent, event *domain.GatewayEvent) {
	err := s.dispatch(ctx, event)
	switch {
	case err == nil:
		if markErr := s.webhooks.MarkProcessed(ctx, stored.ID, ""); markErr != nil {
			log.Printf("webhook: failed to mark %s processed: %v", event.EventID, markErr)
		}
	case errors.Is(err, domain.ErrConsistency):
		log.Printf("webhook: consistency error on %s, queued for manual reconciliation: %v", event.EventID, err)
		if markErr := s.webhooks.MarkProcessed(ctx, stored.ID, err.Error()); markErr != nil {
			log.Printf("webhook: failed to record consistency error on %s: %v", event.EventID, markErr)
		}
	default:
		// Left unprocessed; the sweeper retries it out of band.
		log.Printf("webhook: dispatch of %s failed, will retry: %v", event.EventID, err)
	}
}

func (s *WebhookService) dispatch(ctx context.Context, event *domain.GatewayEvent) error {
	switch event.Type {
	case domain.EventPaymentCreated:
		return s.applyPaymentStatus(ctx, event, domain.PaymentPending)
	case domain.EventPaymentConfirmed:
		return s.applyPaymentStatus(ctx, event, domain.PaymentConfirmed)
	case domain.EventPaymentReceived:
		return s.applyPaymentReceived(ctx, event)
	case domain.EventPaymentOverdue:
		return s.applyPaymentStatus(ctx, event, domain.PaymentOverdue)
	case domain.EventPaymentCancelled:
		return s.applyPaymentCancelled(ctx, event)
	case domain.EventSubscriptionCancelled:
		return s.applySubscriptionStatus(ctx, event, domain.SubscriptionCancelled)
	case domain.EventSubscriptionExpired:
		return s.applySubscriptionStatus(ctx, event, domain.SubscriptionExpired)
	default:
		// Unknown types are stored and acknowledged, never an error: the
		// provider adds types faster than we consume them.
		log.Printf("webhook: ignoring unhandled event type %s (%s)", event.Type, event.EventID)
		return nil
	}
}

func (s *WebhookService) applyPaymentStatus(ctx context.Context, event *domain.GatewayEvent, status domain.PaymentStatus) error {
	info, err := paymentInfoOf(event)
	if err != nil {
		return err
	}
	info.Status = status
	_, err = s.payments.Upsert(ctx, *info)
	return err
}

func (s *WebhookService) applyPaymentReceived(ctx context.Context, event *domain.GatewayEvent) error {
	info, err := paymentInfoOf(event)
	if err != nil {
		return err
	}
	info.Status = domain.PaymentReceived
	if info.PaymentDate == nil {
		now := s.clock()
		info.PaymentDate = &now
	}

	if _, err := s.payments.Upsert(ctx, *info); err != nil {
		return err
	}

	if eventID, memberID, ok := domain.ParseEventExternalRef(info.ExternalReference); ok {
		reg, err := s.registrations.GetByEventAndMember(ctx, eventID, memberID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: payment %s confirmed for unknown registration event=%s member=%s",
					domain.ErrConsistency, info.ID, eventID, memberID)
			}
			return err
		}
		if err := s.registrations.MarkPaid(ctx, eventID, memberID, info.ValueCents); err != nil {
			return err
		}
		// The ledger entry was written with the charge id the registration
		// was created under, which is the stable correlation key even when
		// the checkout produced a different settling payment id.
		if err := s.ledger.SettleByPaymentID(ctx, reg.GatewayPaymentID, info.BillingType, *info.PaymentDate); err != nil {
			return err
		}
	}

	log.Printf("webhook: payment %s received, value %d cents, ref %q",
		info.ID, info.ValueCents, info.ExternalReference)
	return nil
}

func (s *WebhookService) applyPaymentCancelled(ctx context.Context, event *domain.GatewayEvent) error {
	info, err := paymentInfoOf(event)
	if err != nil {
		return err
	}
	info.Status = domain.PaymentCancelled

	if _, err := s.payments.Upsert(ctx, *info); err != nil {
		return err
	}

	if eventID, memberID, ok := domain.ParseEventExternalRef(info.ExternalReference); ok {
		err := s.registrations.CancelAndRelease(ctx, eventID, memberID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		// A missing registration here is fine: the charge may have been an
		// orphan from a partial failure, which the sweep already reports.
	}

	log.Printf("webhook: payment %s cancelled, ref %q", info.ID, info.ExternalReference)
	return nil
}

func (s *WebhookService) applySubscriptionStatus(ctx context.Context, event *domain.GatewayEvent, status domain.SubscriptionStatus) error {
	if event.SubscriptionID == "" {
		return domain.NewServiceError(domain.ErrInvalidRequest,
			"subscription event without subscription id", "VALIDATION_ERROR")
	}

	sub, err := s.subscriptions.GetByGatewayID(ctx, event.SubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: gateway subscription %s has no local mirror",
				domain.ErrConsistency, event.SubscriptionID)
		}
		return err
	}

	// Terminal statuses are sticky; applying the same event twice is a no-op.
	if sub.Status == status {
		return nil
	}
	if err := s.subscriptions.UpdateStatus(ctx, sub.ID, status); err != nil {
		return err
	}

	log.Printf("webhook: subscription %s (member %s) moved to %s", sub.ID, sub.MemberID, status)
	return nil
}

// RetryUnprocessed re-dispatches stored events whose dispatch never
// committed. Parsing falls back to the stored payload's normalized fields;
// events that keep failing stay flagged with their last error.
func (s *WebhookService) RetryUnprocessed(ctx context.Context, olderThan time.Duration, limit int, reparse func(payload string) (*domain.GatewayEvent, error)) int {
	cutoff := s.clock().Add(-olderThan)
	rows, err := s.webhooks.ListUnprocessed(ctx, cutoff, limit)
	if err != nil {
		log.Printf("webhook: listing unprocessed events failed: %v", err)
		return 0
	}

	retried := 0
	for i := range rows {
		row := rows[i]
		event, err := reparse(row.Payload)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidRequest) {
				log.Printf("webhook: stored payload of %s no longer parses: %v", row.GatewayEventID, err)
				if markErr := s.webhooks.MarkProcessed(ctx, row.ID, "unparseable payload: "+err.Error()); markErr != nil {
					log.Printf("webhook: failed to flag %s: %v", row.GatewayEventID, markErr)
				}
			} else {
				// Read-back still failing; the row stays queued for the
				// next sweep.
				log.Printf("webhook: reparse of %s failed, kept for retry: %v", row.GatewayEventID, err)
			}
			continue
		}
		s.dispatchStored(ctx, &row, event)
		retried++
	}
	return retried
}

func paymentInfoOf(event *domain.GatewayEvent) (*domain.PaymentInfo, error) {
	if event.Payment == nil {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest,
			"payment event without payment data", "VALIDATION_ERROR")
	}
	info := *event.Payment
	return &info, nil
}
