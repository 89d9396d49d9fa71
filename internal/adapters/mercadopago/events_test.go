package mercadopago

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

func TestDataID(t *testing.T) {
	raw := []byte(`{"id":123,"type":"payment","action":"payment.updated","data":{"id":"98765"}}`)
	assert.Equal(t, "98765", DataID(raw))

	assert.Empty(t, DataID([]byte(`not json`)))
	assert.Empty(t, DataID([]byte(`{"type":"payment"}`)))
}

func TestIdentify(t *testing.T) {
	receipt, err := Identify([]byte(`{"id":123,"type":"payment","data":{"id":"456"}}`))
	assert.NoError(t, err)
	assert.Equal(t, "123", receipt.EventID)
	assert.Equal(t, "payment", receipt.Type)

	// Identity never needs a provider call, so any well-formed body
	// identifies even when the gateway is unreachable.
	_, err = Identify([]byte(`not json`))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	_, err = Identify([]byte(`{"type":"payment","data":{}}`))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestEventIDPrefersNotificationID(t *testing.T) {
	n := Notification{ID: 42, Type: "payment", Action: "payment.updated"}
	n.Data.ID = "98765"
	assert.Equal(t, "42", eventID(n))

	// Legacy IPN bodies without an id fall back to a composite key.
	n.ID = 0
	assert.Equal(t, "payment:payment.updated:98765", eventID(n))
}

func TestPaymentEventType(t *testing.T) {
	assert.Equal(t, domain.EventPaymentReceived, paymentEventType(domain.PaymentReceived))
	assert.Equal(t, domain.EventPaymentConfirmed, paymentEventType(domain.PaymentConfirmed))
	assert.Equal(t, domain.EventPaymentOverdue, paymentEventType(domain.PaymentOverdue))
	assert.Equal(t, domain.EventPaymentCancelled, paymentEventType(domain.PaymentCancelled))
	assert.Equal(t, domain.EventPaymentCreated, paymentEventType(domain.PaymentPending))
}

func TestSubscriptionEventType(t *testing.T) {
	assert.Equal(t, domain.EventSubscriptionCancelled, subscriptionEventType("cancelled"))
	assert.Equal(t, domain.EventSubscriptionCancelled, subscriptionEventType("subscription.cancelled"))
	assert.Equal(t, domain.EventSubscriptionExpired, subscriptionEventType("expired"))
	assert.NotEqual(t, domain.EventSubscriptionCancelled, subscriptionEventType("updated"))
}
