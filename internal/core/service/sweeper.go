package service

import (
	"context"
	"log"
	"time"

	"github.com/forteclube/forte-payments/internal/core/domain"
	"github.com/forteclube/forte-payments/internal/core/ports"
)

// webhookRetryAge is how long a stored webhook event must sit unprocessed
// before the sweeper re-dispatches it.
const webhookRetryAge = 2 * time.Minute

const webhookRetryBatch = 50

// Sweeper is the periodic reconciliation job. Each tick it:
//   - advances event lifecycles so statuses do not depend on read timing,
//   - re-dispatches stored webhook events whose processing never committed,
//   - reports gateway charges that have no matching registration (the
//     charged-but-unregistered partial failures).
//
// It runs on an independent ticker, not inside request handling.
type Sweeper struct {
	lifecycle *LifecycleManager
	webhooks  *WebhookService
	payments  ports.PaymentRepository
	reparse   func(payload string) (*domain.GatewayEvent, error)
	interval  time.Duration
}

// NewSweeper creates a sweeper. reparse converts a stored raw webhook payload
// back into a normalized event for retry; it is supplied by the gateway
// adapter.
func NewSweeper(
	lifecycle *LifecycleManager,
	webhooks *WebhookService,
	payments ports.PaymentRepository,
	reparse func(payload string) (*domain.GatewayEvent, error),
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		lifecycle: lifecycle,
		webhooks:  webhooks,
		payments:  payments,
		reparse:   reparse,
		interval:  interval,
	}
}

// Run ticks until the context is cancelled. An immediate first sweep runs on
// startup so a restarted process catches up at once.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("sweeper: running every %s", s.interval)
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("sweeper: stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if n, err := s.lifecycle.ReconcileAll(ctx); err != nil {
		log.Printf("sweeper: lifecycle pass failed: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: advanced %d event lifecycles", n)
	}

	if n := s.webhooks.RetryUnprocessed(ctx, webhookRetryAge, webhookRetryBatch, s.reparse); n > 0 {
		log.Printf("sweeper: retried %d webhook events", n)
	}

	s.reportOrphans(ctx)
}

// reportOrphans surfaces charges created at the gateway whose registration
// insert never landed. They are logged on every pass until resolved
// manually; nothing is auto-cancelled.
func (s *Sweeper) reportOrphans(ctx context.Context) {
	orphans, err := s.payments.ListOrphanEventPayments(ctx)
	if err != nil {
		log.Printf("sweeper: orphan scan failed: %v", err)
		return
	}
	for i := range orphans {
		p := orphans[i]
		log.Printf("sweeper: CONSISTENCY payment %s (%s, %d cents) has no matching registration, ref %q",
			p.GatewayPaymentID, p.Status, p.ValueCents, p.ExternalReference)
	}
}
