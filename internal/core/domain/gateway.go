package domain

import (
	"fmt"
	"strings"
	"time"
)

// CustomerProfile is what the gateway needs to provision a customer.
type CustomerProfile struct {
	Name     string
	Email    string
	Document string
}

// CreateSubscriptionRequest asks the gateway for a recurring charge.
type CreateSubscriptionRequest struct {
	CustomerID        string
	PayerEmail        string
	BillingType       BillingType
	ValueCents        int64
	Cycle             SubscriptionCycle
	NextDueDate       time.Time
	Description       string
	ExternalReference string
}

// SubscriptionRef identifies a subscription created at the gateway.
type SubscriptionRef struct {
	ID     string
	Status string
}

// CreatePaymentRequest asks the gateway for a one-off charge.
type CreatePaymentRequest struct {
	CustomerID        string
	PayerEmail        string
	BillingType       BillingType
	ValueCents        int64
	DueDate           time.Time
	Description       string
	ExternalReference string
}

// PaymentRef is the gateway's answer to a created charge, with everything the
// payer needs to settle it out of band.
type PaymentRef struct {
	ID          string     `json:"id"`
	InvoiceURL  string     `json:"invoice_url,omitempty"`
	BankSlipURL string     `json:"bank_slip_url,omitempty"`
	PixCode     string     `json:"pix_code,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// PaymentInfo is the gateway's view of an existing charge.
type PaymentInfo struct {
	ID                string
	Status            PaymentStatus
	ValueCents        int64
	NetValueCents     int64
	BillingType       BillingType
	ExternalReference string
	DueDate           *time.Time
	PaymentDate       *time.Time
}

// GatewayEventType is the normalized kind of an inbound gateway notification.
type GatewayEventType string

const (
	EventPaymentCreated        GatewayEventType = "PAYMENT_CREATED"
	EventPaymentConfirmed      GatewayEventType = "PAYMENT_CONFIRMED"
	EventPaymentReceived       GatewayEventType = "PAYMENT_RECEIVED"
	EventPaymentOverdue        GatewayEventType = "PAYMENT_OVERDUE"
	EventPaymentCancelled      GatewayEventType = "PAYMENT_CANCELLED"
	EventSubscriptionCancelled GatewayEventType = "SUBSCRIPTION_CANCELLED"
	EventSubscriptionExpired   GatewayEventType = "SUBSCRIPTION_EXPIRED"
)

// GatewayEvent is a normalized inbound notification, provider format already
// unwrapped by the adapter.
type GatewayEvent struct {
	// EventID is the gateway's own id for the delivery; the dedup key.
	EventID string
	Type    GatewayEventType
	// Payment is set for PAYMENT_* events.
	Payment *PaymentInfo
	// SubscriptionID is set for SUBSCRIPTION_* events.
	SubscriptionID string
	// RawPayload is the provider JSON as received, kept for auditing.
	RawPayload string
}

// External reference prefixes correlate gateway charges back to local rows.
const (
	eventRefPrefix        = "event:"
	subscriptionRefPrefix = "subscription:"
)

// EventExternalRef builds the external reference embedded in an event charge.
func EventExternalRef(eventID, memberID string) string {
	return fmt.Sprintf("%s%s:%s", eventRefPrefix, eventID, memberID)
}

// SubscriptionExternalRef builds the external reference for dues charges.
func SubscriptionExternalRef(memberID string) string {
	return subscriptionRefPrefix + memberID
}

// ParseEventExternalRef extracts (eventID, memberID) from an event external
// reference. ok is false for anything that is not an event reference.
func ParseEventExternalRef(ref string) (eventID, memberID string, ok bool) {
	if !strings.HasPrefix(ref, eventRefPrefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(ref, eventRefPrefix), ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ParseSubscriptionExternalRef extracts the member id from a dues reference.
func ParseSubscriptionExternalRef(ref string) (memberID string, ok bool) {
	if !strings.HasPrefix(ref, subscriptionRefPrefix) {
		return "", false
	}
	memberID = strings.TrimPrefix(ref, subscriptionRefPrefix)
	return memberID, memberID != ""
}
