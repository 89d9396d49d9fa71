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

// subscriptionDueWindow is how far out the first installment is due.
const subscriptionDueWindow = 30 * 24 * time.Hour

// SubscriptionService orchestrates recurring-dues subscriptions against the
// gateway, with idempotent customer provisioning.
type SubscriptionService struct {
	members       ports.MemberRepository
	subscriptions ports.SubscriptionRepository
	gateway       ports.PaymentGateway
	duesCents     int64
	clock         func() time.Time
}

// NewSubscriptionService creates a subscription service. duesCents is the
// fixed monthly dues value set by club policy.
func NewSubscriptionService(
	members ports.MemberRepository,
	subscriptions ports.SubscriptionRepository,
	gateway ports.PaymentGateway,
	duesCents int64,
) *SubscriptionService {
	return &SubscriptionService{
		members:       members,
		subscriptions: subscriptions,
		gateway:       gateway,
		duesCents:     duesCents,
		clock:         time.Now,
	}
}

// Activate creates a monthly dues subscription for the member. The local row
// is persisted ACTIVE only after the gateway call succeeds, so local state
// never claims a subscription the gateway does not have.
func (s *SubscriptionService) Activate(ctx context.Context, memberID string, billingType domain.BillingType) (*domain.Subscription, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	if !member.Rank.IsPaymentEligible() {
		return nil, domain.NewServiceError(domain.ErrNotEligible,
			fmt.Sprintf("rank %s is not billed", member.Rank), "NOT_ELIGIBLE")
	}

	if existing, err := s.subscriptions.GetActiveByMember(ctx, memberID); err == nil && existing != nil {
		return nil, domain.NewServiceError(domain.ErrAlreadySubscribed,
			fmt.Sprintf("member %s already has subscription %s", memberID, existing.ID), "ALREADY_SUBSCRIBED")
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	customerID, err := ensureGatewayCustomer(ctx, s.members, s.gateway, member)
	if err != nil {
		return nil, err
	}

	nextDue := s.clock().Add(subscriptionDueWindow)
	ref, err := s.gateway.CreateSubscription(ctx, domain.CreateSubscriptionRequest{
		CustomerID:        customerID,
		PayerEmail:        member.Email,
		BillingType:       billingType,
		ValueCents:        s.duesCents,
		Cycle:             domain.CycleMonthly,
		NextDueDate:       nextDue,
		Description:       "Mensalidade Forte Clube",
		ExternalReference: domain.SubscriptionExternalRef(memberID),
	})
	if err != nil {
		log.Printf("subscription: gateway activation failed for member %s: %v", memberID, err)
		return nil, domain.NewServiceError(domain.ErrGatewayUnavailable,
			"failed to create subscription", "GATEWAY_ERROR")
	}

	sub := &domain.Subscription{
		ID:                    uuid.New().String(),
		MemberID:              memberID,
		GatewaySubscriptionID: ref.ID,
		Cycle:                 domain.CycleMonthly,
		ValueCents:            s.duesCents,
		NextDueDate:           nextDue,
		Status:                domain.SubscriptionActive,
	}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrAlreadySubscribed) {
			// Lost the race to a concurrent activation: the store's unique
			// active slot rejected this row. Unwind the preapproval so the
			// member is not billed twice.
			if cancelErr := s.gateway.CancelSubscription(ctx, ref.ID); cancelErr != nil {
				log.Printf("subscription: failed to unwind gateway subscription %s after lost activation race (member %s): %v",
					ref.ID, memberID, cancelErr)
			}
			return nil, domain.NewServiceError(domain.ErrAlreadySubscribed,
				fmt.Sprintf("member %s already has an active subscription", memberID), "ALREADY_SUBSCRIBED")
		}
		// Gateway row exists without a local mirror; surfaced loudly so the
		// operator can reconcile, and the activate call stays retryable.
		log.Printf("subscription: local persist failed after gateway subscription %s (member %s): %v",
			ref.ID, memberID, err)
		return nil, err
	}

	log.Printf("subscription: member %s activated, gateway id %s, next due %s",
		memberID, ref.ID, nextDue.Format(time.DateOnly))
	return sub, nil
}

// Cancel stops the member's subscription. The gateway is cancelled first;
// local status flips to CANCELLED only afterwards, so state can never end up
// "cancelled locally, still billing remotely". The call is retryable.
func (s *SubscriptionService) Cancel(ctx context.Context, memberID string) error {
	sub, err := s.subscriptions.GetActiveByMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewServiceError(domain.ErrNoSubscription,
				fmt.Sprintf("member %s has no active subscription", memberID), "NO_SUBSCRIPTION")
		}
		return err
	}

	if err := s.gateway.CancelSubscription(ctx, sub.GatewaySubscriptionID); err != nil {
		log.Printf("subscription: gateway cancel failed for %s (member %s): %v",
			sub.GatewaySubscriptionID, memberID, err)
		return domain.NewServiceError(domain.ErrGatewayUnavailable,
			"failed to cancel subscription at gateway", "GATEWAY_ERROR")
	}

	if err := s.subscriptions.UpdateStatus(ctx, sub.ID, domain.SubscriptionCancelled); err != nil {
		return fmt.Errorf("persist cancellation: %w", err)
	}

	log.Printf("subscription: member %s cancelled, gateway id %s", memberID, sub.GatewaySubscriptionID)
	return nil
}
