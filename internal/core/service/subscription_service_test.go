package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

const testDuesCents = int64(15000)

type subFixture struct {
	members       *fakeMembers
	subscriptions *fakeSubscriptions
	gateway       *fakeGateway
	service       *SubscriptionService
}

func newSubFixture(members ...*domain.Member) *subFixture {
	f := &subFixture{
		members:       newFakeMembers(members...),
		subscriptions: newFakeSubscriptions(),
		gateway:       newFakeGateway(),
	}
	f.service = NewSubscriptionService(f.members, f.subscriptions, f.gateway, testDuesCents)
	f.service.clock = func() time.Time { return day("2025-01-05") }
	return f
}

func TestActivateSubscription(t *testing.T) {
	f := newSubFixture(member("mem-1"))

	sub, err := f.service.Activate(context.Background(), "mem-1", domain.BillingPix)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Equal(t, testDuesCents, sub.ValueCents)
	assert.Equal(t, domain.CycleMonthly, sub.Cycle)
	assert.Equal(t, "sub-1", sub.GatewaySubscriptionID)

	stored, err := f.subscriptions.GetActiveByMember(context.Background(), "mem-1")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, stored.ID)
}

func TestActivateRejectsAluno(t *testing.T) {
	m := member("mem-1")
	m.Rank = domain.RankAluno
	f := newSubFixture(m)

	_, err := f.service.Activate(context.Background(), "mem-1", domain.BillingPix)
	assert.ErrorIs(t, err, domain.ErrNotEligible)
	assert.Equal(t, 0, f.gateway.subscriptionCalls)
}

func TestActivateSoldadoIsEligible(t *testing.T) {
	m := member("mem-1")
	m.Rank = domain.RankSoldado
	f := newSubFixture(m)

	_, err := f.service.Activate(context.Background(), "mem-1", domain.BillingPix)
	require.NoError(t, err)
}

func TestActivateRejectsSecondActiveSubscription(t *testing.T) {
	f := newSubFixture(member("mem-1"))

	_, err := f.service.Activate(context.Background(), "mem-1", domain.BillingPix)
	require.NoError(t, err)

	_, err = f.service.Activate(context.Background(), "mem-1", domain.BillingPix)
	assert.ErrorIs(t, err, domain.ErrAlreadySubscribed)
	assert.Equal(t, 1, f.gateway.subscriptionCalls)
}

func TestActivateLostRaceUnwindsGatewaySubscription(t *testing.T) {
	// Two activations race: both pass the pre-check, but the store's unique
	// active slot admits only one row. The loser must cancel its freshly
	// created preapproval so the member is not billed twice.
	f := newSubFixture(member("mem-1"))

	f.gateway.onSubscription = func() {
		// Rival activation lands between this call and the local persist.
		require.NoError(t, f.subscriptions.Create(context.Background(), &domain.Subscription{
			ID:                    "rival",
			MemberID:              "mem-1",
			GatewaySubscriptionID: "sub-rival",
			Status:                domain.SubscriptionActive,
		}))
		f.gateway.onSubscription = nil
	}

	_, err := f.service.Activate(context.Background(), "mem-1", domain.BillingPix)
	assert.ErrorIs(t, err, domain.ErrAlreadySubscribed)
	assert.Equal(t, 1, f.gateway.cancelCalls)

	// Exactly one ACTIVE subscription survives.
	stored, err := f.subscriptions.GetActiveByMember(context.Background(), "mem-1")
	require.NoError(t, err)
	assert.Equal(t, "rival", stored.ID)
}

func TestActivateAgainAfterCancellation(t *testing.T) {
	f := newSubFixture(member("mem-1"))

	_, err := f.service.Activate(context.Background(), "mem-1", domain.BillingPix)
	require.NoError(t, err)
	require.NoError(t, f.service.Cancel(context.Background(), "mem-1"))

	sub, err := f.service.Activate(context.Background(), "mem-1", domain.BillingBoleto)
	require.NoError(t, err)
	assert.Equal(t, "sub-2", sub.GatewaySubscriptionID)
}

func TestActivateGatewayFailureLeavesNoLocalState(t *testing.T) {
	f := newSubFixture(member("mem-1"))
	f.gateway.failSubscription = true

	_, err := f.service.Activate(context.Background(), "mem-1", domain.BillingPix)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	_, err = f.subscriptions.GetActiveByMember(context.Background(), "mem-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelGoesGatewayFirst(t *testing.T) {
	f := newSubFixture(member("mem-1"))

	sub, err := f.service.Activate(context.Background(), "mem-1", domain.BillingPix)
	require.NoError(t, err)

	// Gateway refuses: local status must stay ACTIVE so the call can be
	// retried without the states diverging.
	f.gateway.failCancel = true
	err = f.service.Cancel(context.Background(), "mem-1")
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	stored, err := f.subscriptions.GetActiveByMember(context.Background(), "mem-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, stored.Status)

	// Retry succeeds end to end.
	f.gateway.failCancel = false
	require.NoError(t, f.service.Cancel(context.Background(), "mem-1"))

	_, err = f.subscriptions.GetActiveByMember(context.Background(), "mem-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	cancelled, err := f.subscriptions.GetByGatewayID(context.Background(), sub.GatewaySubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCancelled, cancelled.Status)
}

func TestCancelWithoutSubscription(t *testing.T) {
	f := newSubFixture(member("mem-1"))

	err := f.service.Cancel(context.Background(), "mem-1")
	assert.ErrorIs(t, err, domain.ErrNoSubscription)
}
