// Package mercadopago implements the PaymentGateway port using the official
// SDK. Money crosses this boundary as float64 reais because that is what the
// provider API speaks; everything inside the core stays integer cents.
package mercadopago

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/customer"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preapproval"
	"github.com/mercadopago/sdk-go/pkg/preference"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

// requestTimeout bounds every gateway call. A timeout is an unknown outcome,
// not a failure: callers re-query local mirrors before re-calling.
const requestTimeout = 15 * time.Second

// Adapter implements ports.PaymentGateway against Mercado Pago.
type Adapter struct {
	customers     customer.Client
	payments      payment.Client
	preferences   preference.Client
	preapprovals  preapproval.Client
	notifyBaseURL string
}

// NewAdapter creates a Mercado Pago adapter from the account access token.
// notifyBaseURL is the public base URL the provider posts webhooks to.
func NewAdapter(accessToken, notifyBaseURL string) (*Adapter, error) {
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	return &Adapter{
		customers:     customer.NewClient(cfg),
		payments:      payment.NewClient(cfg),
		preferences:   preference.NewClient(cfg),
		preapprovals:  preapproval.NewClient(cfg),
		notifyBaseURL: strings.TrimRight(notifyBaseURL, "/"),
	}, nil
}

// CreateCustomer provisions a gateway customer and returns its id.
func (a *Adapter) CreateCustomer(ctx context.Context, profile domain.CustomerProfile) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	first, last := splitName(profile.Name)
	req := customer.Request{
		Email:     profile.Email,
		FirstName: first,
		LastName:  last,
	}
	if profile.Document != "" {
		req.Identification = &customer.IdentificationRequest{
			Type:   documentType(profile.Document),
			Number: profile.Document,
		}
	}

	result, err := a.customers.Create(ctx, req)
	if err != nil {
		return "", gatewayError("customer_create", err)
	}
	return result.ID, nil
}

// CreateSubscription creates a monthly preapproval (recurring charge).
func (a *Adapter) CreateSubscription(ctx context.Context, req domain.CreateSubscriptionRequest) (*domain.SubscriptionRef, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	result, err := a.preapprovals.Create(ctx, preapprovalRequest(req, a.notifyBaseURL))
	if err != nil {
		return nil, gatewayError("subscription_create", err)
	}
	return &domain.SubscriptionRef{ID: result.ID, Status: result.Status}, nil
}

// preapprovalRequest maps a core subscription request onto the provider's
// preapproval shape. StartDate is the first installment's due date; without
// it the provider bills immediately on creation.
func preapprovalRequest(req domain.CreateSubscriptionRequest, backURL string) preapproval.Request {
	startDate := req.NextDueDate
	return preapproval.Request{
		Reason:            req.Description,
		ExternalReference: req.ExternalReference,
		PayerEmail:        req.PayerEmail,
		BackURL:           backURL,
		AutoRecurring: &preapproval.AutoRecurringRequest{
			Frequency:         1,
			FrequencyType:     "months",
			TransactionAmount: centsToReais(req.ValueCents),
			CurrencyID:        "BRL",
			StartDate:         &startDate,
		},
	}
}

// CancelSubscription stops a preapproval at the gateway.
func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if _, err := a.preapprovals.Update(ctx, subscriptionID, preapproval.UpdateRequest{Status: "cancelled"}); err != nil {
		return gatewayError("subscription_cancel", err)
	}
	return nil
}

// CreatePayment creates a one-off charge. PIX and boleto produce a direct
// payment with the provider's QR/slip data; the undefined billing type
// produces a Checkout Pro preference whose init point is the invoice URL and
// the payer picks the method there.
func (a *Adapter) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.PaymentRef, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch req.BillingType {
	case domain.BillingPix, domain.BillingBoleto:
		return a.createDirectPayment(ctx, req)
	default:
		return a.createCheckoutPreference(ctx, req)
	}
}

func (a *Adapter) createDirectPayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.PaymentRef, error) {
	methodID := "pix"
	if req.BillingType == domain.BillingBoleto {
		methodID = "bolbradesco"
	}

	due := req.DueDate
	result, err := a.payments.Create(ctx, payment.Request{
		TransactionAmount: centsToReais(req.ValueCents),
		Description:       req.Description,
		PaymentMethodID:   methodID,
		ExternalReference: req.ExternalReference,
		DateOfExpiration:  &due,
		Payer: &payment.PayerRequest{
			Email: req.PayerEmail,
		},
	})
	if err != nil {
		return nil, gatewayError("payment_create", err)
	}

	return &domain.PaymentRef{
		ID:          strconv.Itoa(result.ID),
		InvoiceURL:  result.PointOfInteraction.TransactionData.TicketURL,
		BankSlipURL: result.TransactionDetails.ExternalResourceURL,
		PixCode:     result.PointOfInteraction.TransactionData.QRCode,
		DueDate:     &req.DueDate,
	}, nil
}

func (a *Adapter) createCheckoutPreference(ctx context.Context, req domain.CreatePaymentRequest) (*domain.PaymentRef, error) {
	result, err := a.preferences.Create(ctx, preference.Request{
		Items: []preference.ItemRequest{
			{
				Title:      req.Description,
				Quantity:   1,
				UnitPrice:  centsToReais(req.ValueCents),
				CurrencyID: "BRL",
			},
		},
		Payer: &preference.PayerRequest{
			Email: req.PayerEmail,
		},
		ExternalReference: req.ExternalReference,
		NotificationURL:   a.notifyBaseURL + "/webhooks/payments",
	})
	if err != nil {
		return nil, gatewayError("preference_create", err)
	}

	return &domain.PaymentRef{
		ID:         result.ID,
		InvoiceURL: result.InitPoint,
		DueDate:    &req.DueDate,
	}, nil
}

// GetPayment retrieves the gateway's current view of a charge, normalized
// into the core's payment model.
func (a *Adapter) GetPayment(ctx context.Context, paymentID string) (*domain.PaymentInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	id, err := strconv.Atoi(paymentID)
	if err != nil {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest,
			"invalid payment id format", "INVALID_PAYMENT_ID")
	}

	result, err := a.payments.Get(ctx, id)
	if err != nil {
		return nil, gatewayError("payment_get", err)
	}

	info := &domain.PaymentInfo{
		ID:                paymentID,
		Status:            mapPaymentStatus(result.Status),
		ValueCents:        reaisToCents(result.TransactionAmount),
		NetValueCents:     reaisToCents(result.TransactionDetails.NetReceivedAmount),
		BillingType:       mapBillingType(result.PaymentTypeID),
		ExternalReference: result.ExternalReference,
	}
	if !result.DateApproved.IsZero() {
		approved := result.DateApproved
		info.PaymentDate = &approved
	}
	return info, nil
}

// mapPaymentStatus converts provider payment statuses to the forward-only
// core statuses.
func mapPaymentStatus(status string) domain.PaymentStatus {
	switch status {
	case "approved", "accredited":
		return domain.PaymentReceived
	case "authorized":
		return domain.PaymentConfirmed
	case "pending", "in_process", "in_mediation":
		return domain.PaymentPending
	case "expired":
		return domain.PaymentOverdue
	case "rejected", "cancelled", "refunded", "charged_back":
		return domain.PaymentCancelled
	default:
		return domain.PaymentPending
	}
}

// mapBillingType converts the provider payment type to the core billing
// type.
func mapBillingType(paymentTypeID string) domain.BillingType {
	switch paymentTypeID {
	case "bank_transfer", "account_money":
		return domain.BillingPix
	case "ticket":
		return domain.BillingBoleto
	case "credit_card", "debit_card":
		return domain.BillingCard
	default:
		return domain.BillingUndefined
	}
}

func gatewayError(code string, err error) error {
	return &domain.GatewayError{Code: code, Description: err.Error()}
}

func centsToReais(cents int64) float64 {
	return float64(cents) / 100
}

func reaisToCents(reais float64) int64 {
	return int64(reais*100 + 0.5)
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// documentType guesses the identification type from the document length:
// 11 digits is a CPF, 14 a CNPJ.
func documentType(doc string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, doc)
	if len(digits) == 14 {
		return "CNPJ"
	}
	return "CPF"
}
