// Package api contains the HTTP handlers and routing.
package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forteclube/forte-payments/internal/adapters/mercadopago"
	"github.com/forteclube/forte-payments/internal/core/domain"
	"github.com/forteclube/forte-payments/internal/core/service"
)

// Handler handles HTTP requests for the payments service.
type Handler struct {
	registrations *service.RegistrationService
	subscriptions *service.SubscriptionService
	webhooks      *service.WebhookService
	reports       *service.ReportingService
	gateway       *mercadopago.Adapter
	validator     *mercadopago.WebhookValidator
	webhookSecret string
}

// NewHandler creates the HTTP handler set. An empty webhookSecret disables
// signature enforcement, which is only acceptable in local development.
func NewHandler(
	registrations *service.RegistrationService,
	subscriptions *service.SubscriptionService,
	webhooks *service.WebhookService,
	reports *service.ReportingService,
	gateway *mercadopago.Adapter,
	validator *mercadopago.WebhookValidator,
	webhookSecret string,
) *Handler {
	return &Handler{
		registrations: registrations,
		subscriptions: subscriptions,
		webhooks:      webhooks,
		reports:       reports,
		gateway:       gateway,
		validator:     validator,
		webhookSecret: webhookSecret,
	}
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// respondError maps domain sentinel errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var svcErr *domain.ServiceError
	code := "INTERNAL_ERROR"
	message := "Internal server error"
	if errors.As(err, &svcErr) {
		code = svcErr.Code
		message = svcErr.Message
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		code, message = "NOT_FOUND", "Resource not found"
	case errors.Is(err, domain.ErrAlreadyRegistered),
		errors.Is(err, domain.ErrAlreadySubscribed),
		errors.Is(err, domain.ErrEventFull):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRegistrationClosed),
		errors.Is(err, domain.ErrNotEligible),
		errors.Is(err, domain.ErrNoSubscription):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGatewayUnavailable):
		status = http.StatusBadGateway
	default:
		log.Printf("api: unhandled error: %v", err)
	}

	c.JSON(status, errorResponse{Success: false, Error: message, Code: code})
}

// CreateRegistration handles POST /api/v1/events/:event_id/registrations.
func (h *Handler) CreateRegistration(c *gin.Context) {
	eventID := c.Param("event_id")

	var req struct {
		MemberID string `json:"member_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Success: false,
			Error:   "Invalid request: " + err.Error(),
			Code:    "VALIDATION_ERROR",
		})
		return
	}

	result, err := h.registrations.Register(c.Request.Context(), eventID, req.MemberID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// DeleteRegistration handles DELETE /api/v1/events/:event_id/registrations/:member_id.
func (h *Handler) DeleteRegistration(c *gin.Context) {
	err := h.registrations.Unregister(c.Request.Context(), c.Param("event_id"), c.Param("member_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateSubscription handles POST /api/v1/members/:member_id/subscription.
func (h *Handler) CreateSubscription(c *gin.Context) {
	memberID := c.Param("member_id")

	var req struct {
		BillingType domain.BillingType `json:"billing_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{
			Success: false,
			Error:   "Invalid request: " + err.Error(),
			Code:    "VALIDATION_ERROR",
		})
		return
	}
	if req.BillingType == "" {
		req.BillingType = domain.BillingUndefined
	}

	sub, err := h.subscriptions.Activate(c.Request.Context(), memberID, req.BillingType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// DeleteSubscription handles DELETE /api/v1/members/:member_id/subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	if err := h.subscriptions.Cancel(c.Request.Context(), c.Param("member_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CollectionReport handles GET /api/v1/reports/collection.
func (h *Handler) CollectionReport(c *gin.Context) {
	report, err := h.reports.CollectionRate(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// LedgerReport handles GET /api/v1/reports/ledger?from=YYYY-MM-DD&to=YYYY-MM-DD.
// The range defaults to the current month.
func (h *Handler) LedgerReport(c *gin.Context) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.DateOnly, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{
				Success: false, Error: "invalid from date", Code: "VALIDATION_ERROR"})
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.DateOnly, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{
				Success: false, Error: "invalid to date", Code: "VALIDATION_ERROR"})
			return
		}
		to = parsed
	}

	report, err := h.reports.LedgerTotals(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleWebhook handles POST /webhooks/payments.
// Receives Mercado Pago IPN notifications.
func (h *Handler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "unreadable body"})
		return
	}

	if h.webhookSecret != "" {
		xSignature := c.GetHeader("x-signature")
		xRequestID := c.GetHeader("x-request-id")
		dataID := mercadopago.DataID(body)
		if !h.validator.ValidateSignature(xSignature, xRequestID, dataID, h.webhookSecret) {
			log.Printf("webhook: signature validation failed for request %s", xRequestID)
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "invalid signature"})
			return
		}
	}

	receipt, err := mercadopago.Identify(body)
	if err != nil {
		// MP may send formats we do not consume; acknowledge and move on so
		// the provider stops redelivering.
		log.Printf("webhook: unidentifiable notification: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	// The raw delivery is stored before the charge read-back: a transient
	// gateway failure after the ack must leave the event retryable from the
	// stored payload.
	err = h.webhooks.Ingest(c.Request.Context(), receipt.EventID, receipt.Type, string(body),
		func(ctx context.Context) (*domain.GatewayEvent, error) {
			return h.gateway.Normalize(ctx, body)
		})
	if err != nil {
		// Storage failed: the event is not durable, so let the provider retry.
		log.Printf("webhook: store failed for %s: %v", receipt.EventID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "forte-payments",
		"version": "1.0.0",
	})
}
