package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

// Notification is the raw IPN body Mercado Pago posts to the webhook
// endpoint. Payment notifications only carry the payment id; the current
// charge state is fetched back from the provider.
type Notification struct {
	ID          int64  `json:"id"`
	LiveMode    bool   `json:"live_mode"`
	Type        string `json:"type"`
	Action      string `json:"action"`
	APIVersion  string `json:"api_version"`
	DateCreated string `json:"date_created"`
	Data        struct {
		ID string `json:"id"`
	} `json:"data"`
}

// DataID extracts the data id from a raw notification body without full
// normalization, for signature validation.
func DataID(raw []byte) string {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return n.Data.ID
}

// Receipt is the identity of a raw notification, derived without contacting
// the provider. It is enough to store and deduplicate the delivery before
// any read-back happens.
type Receipt struct {
	EventID string
	Type    string
}

// Identify extracts the dedup identity from a raw notification body.
func Identify(raw []byte) (*Receipt, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest,
			"unparseable webhook body", "VALIDATION_ERROR")
	}
	if n.Data.ID == "" {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest,
			"webhook without data id", "VALIDATION_ERROR")
	}
	return &Receipt{EventID: eventID(n), Type: n.Type}, nil
}

// Normalize converts a raw provider notification into a core GatewayEvent.
// Payment notifications trigger a read-back of the charge so the event
// carries the provider's authoritative state rather than whatever the
// delivery claimed; this also makes re-normalizing a stored payload during
// an out-of-band retry converge on fresh state.
func (a *Adapter) Normalize(ctx context.Context, raw []byte) (*domain.GatewayEvent, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest,
			"unparseable webhook body", "VALIDATION_ERROR")
	}
	if n.Data.ID == "" {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest,
			"webhook without data id", "VALIDATION_ERROR")
	}

	event := &domain.GatewayEvent{
		EventID:    eventID(n),
		RawPayload: string(raw),
	}

	switch n.Type {
	case "payment":
		info, err := a.GetPayment(ctx, n.Data.ID)
		if err != nil {
			return nil, err
		}
		event.Type = paymentEventType(info.Status)
		event.Payment = info
	case "subscription_preapproval":
		event.SubscriptionID = n.Data.ID
		event.Type = subscriptionEventType(n.Action)
	default:
		// Stored for auditing, ignored by dispatch.
		event.Type = domain.GatewayEventType("UNKNOWN:" + n.Type)
	}

	return event, nil
}

// eventID builds the dedup key. The provider's own notification id is used
// when present; older IPN formats without one fall back to a composite of
// action and data id.
func eventID(n Notification) string {
	if n.ID != 0 {
		return strconv.FormatInt(n.ID, 10)
	}
	return fmt.Sprintf("%s:%s:%s", n.Type, n.Action, n.Data.ID)
}

func paymentEventType(status domain.PaymentStatus) domain.GatewayEventType {
	switch status {
	case domain.PaymentReceived:
		return domain.EventPaymentReceived
	case domain.PaymentConfirmed:
		return domain.EventPaymentConfirmed
	case domain.PaymentOverdue:
		return domain.EventPaymentOverdue
	case domain.PaymentCancelled:
		return domain.EventPaymentCancelled
	default:
		return domain.EventPaymentCreated
	}
}

func subscriptionEventType(action string) domain.GatewayEventType {
	switch action {
	case "cancelled", "subscription.cancelled":
		return domain.EventSubscriptionCancelled
	case "expired", "subscription.expired":
		return domain.EventSubscriptionExpired
	default:
		return domain.GatewayEventType("UNKNOWN:subscription_preapproval:" + action)
	}
}
