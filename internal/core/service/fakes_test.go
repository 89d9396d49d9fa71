package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forteclube/forte-payments/internal/core/domain"
	"github.com/forteclube/forte-payments/internal/core/ports"
)

// In-memory port implementations. The registration fake serializes Register
// calls behind a mutex the way the database serializes them behind the event
// row lock, so the concurrency tests exercise the same guarantees.

type fakeMembers struct {
	mu      sync.Mutex
	members map[string]*domain.Member
}

func newFakeMembers(members ...*domain.Member) *fakeMembers {
	f := &fakeMembers{members: make(map[string]*domain.Member)}
	for _, m := range members {
		f.members[m.ID] = m
	}
	return f
}

func (f *fakeMembers) GetByID(_ context.Context, id string) (*domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMembers) SetGatewayCustomerID(_ context.Context, memberID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[memberID]
	if !ok {
		return domain.ErrNotFound
	}
	m.GatewayCustomerID = customerID
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events map[string]*domain.Event
}

func newFakeEvents(events ...*domain.Event) *fakeEvents {
	f := &fakeEvents{events: make(map[string]*domain.Event)}
	for _, e := range events {
		f.events[e.ID] = e
	}
	return f
}

func (f *fakeEvents) GetByID(_ context.Context, id string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEvents) UpdateStatusIf(_ context.Context, eventID string, from, to domain.EventStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	return true, nil
}

func (f *fakeEvents) ListNonTerminal(_ context.Context) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Event
	for _, e := range f.events {
		if !e.Status.IsTerminal() {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakeRegistrations struct {
	mu     sync.Mutex
	events *fakeEvents
	ledger *fakeLedger
	regs   map[string]*domain.EventRegistration
}

func newFakeRegistrations(events *fakeEvents, ledger *fakeLedger) *fakeRegistrations {
	return &fakeRegistrations{
		events: events,
		ledger: ledger,
		regs:   make(map[string]*domain.EventRegistration),
	}
}

func regKey(eventID, memberID string) string { return eventID + ":" + memberID }

func (f *fakeRegistrations) Register(_ context.Context, ins ports.RegistrationInsert) (*domain.EventRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events.mu.Lock()
	defer f.events.mu.Unlock()

	event, ok := f.events.events[ins.EventID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !event.Status.AcceptsRegistrations() {
		return nil, domain.ErrRegistrationClosed
	}
	if existing, ok := f.regs[regKey(ins.EventID, ins.MemberID)]; ok &&
		existing.PaymentStatus != domain.RegistrationCancelled {
		return nil, domain.ErrAlreadyRegistered
	}
	if event.IsFull() {
		return nil, domain.ErrEventFull
	}

	reg := &domain.EventRegistration{
		ID:               uuid.New().String(),
		EventID:          ins.EventID,
		MemberID:         ins.MemberID,
		PaymentStatus:    ins.PaymentStatus,
		GatewayPaymentID: ins.GatewayPaymentID,
	}
	f.regs[regKey(ins.EventID, ins.MemberID)] = reg
	event.RegisteredParticipants++

	if ins.Ledger != nil {
		entry := *ins.Ledger
		entry.ID = uuid.New().String()
		f.ledger.entries = append(f.ledger.entries, &entry)
	}

	cp := *reg
	return &cp, nil
}

func (f *fakeRegistrations) Unregister(_ context.Context, eventID, memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[regKey(eventID, memberID)]
	if !ok {
		return domain.ErrNotFound
	}
	delete(f.regs, regKey(eventID, memberID))
	if reg.PaymentStatus != domain.RegistrationCancelled {
		f.events.mu.Lock()
		if e, ok := f.events.events[eventID]; ok && e.RegisteredParticipants > 0 {
			e.RegisteredParticipants--
		}
		f.events.mu.Unlock()
	}
	return nil
}

func (f *fakeRegistrations) GetByEventAndMember(_ context.Context, eventID, memberID string) (*domain.EventRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[regKey(eventID, memberID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (f *fakeRegistrations) MarkPaid(_ context.Context, eventID, memberID string, amountCents int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[regKey(eventID, memberID)]
	if !ok {
		return domain.ErrNotFound
	}
	if reg.PaymentStatus == domain.RegistrationCancelled {
		return nil
	}
	reg.PaymentStatus = domain.RegistrationPaid
	reg.AmountPaidCents = amountCents
	return nil
}

func (f *fakeRegistrations) CancelAndRelease(_ context.Context, eventID, memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[regKey(eventID, memberID)]
	if !ok {
		return domain.ErrNotFound
	}
	if reg.PaymentStatus == domain.RegistrationCancelled {
		return nil
	}
	reg.PaymentStatus = domain.RegistrationCancelled
	f.events.mu.Lock()
	if e, ok := f.events.events[eventID]; ok && e.RegisteredParticipants > 0 {
		e.RegisteredParticipants--
	}
	f.events.mu.Unlock()
	return nil
}

type fakeSubscriptions struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscription
}

func newFakeSubscriptions() *fakeSubscriptions {
	return &fakeSubscriptions{subs: make(map[string]*domain.Subscription)}
}

// Create mirrors the store's unique active slot: a second ACTIVE row for the
// same member is rejected the way the database index rejects it.
func (f *fakeSubscriptions) Create(_ context.Context, sub *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub.Status == domain.SubscriptionActive {
		for _, s := range f.subs {
			if s.MemberID == sub.MemberID && s.Status == domain.SubscriptionActive {
				return domain.ErrAlreadySubscribed
			}
		}
	}
	cp := *sub
	f.subs[sub.ID] = &cp
	return nil
}

func (f *fakeSubscriptions) GetActiveByMember(_ context.Context, memberID string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.MemberID == memberID && s.Status == domain.SubscriptionActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSubscriptions) GetByGatewayID(_ context.Context, gatewayID string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.GatewaySubscriptionID == gatewayID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSubscriptions) UpdateStatus(_ context.Context, id string, status domain.SubscriptionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	return nil
}

type fakePayments struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
}

func newFakePayments() *fakePayments {
	return &fakePayments{payments: make(map[string]*domain.Payment)}
}

func (f *fakePayments) Upsert(_ context.Context, info domain.PaymentInfo) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.payments[info.ID]
	if !ok {
		p := &domain.Payment{
			ID:                uuid.New().String(),
			GatewayPaymentID:  info.ID,
			ValueCents:        info.ValueCents,
			Status:            info.Status,
			BillingType:       info.BillingType,
			PaymentDate:       info.PaymentDate,
			ExternalReference: info.ExternalReference,
		}
		f.payments[info.ID] = p
		cp := *p
		return &cp, nil
	}
	if existing.Status.CanTransitionTo(info.Status) {
		existing.Status = info.Status
		existing.BillingType = info.BillingType
		if info.PaymentDate != nil {
			existing.PaymentDate = info.PaymentDate
		}
	}
	cp := *existing
	return &cp, nil
}

func (f *fakePayments) GetByGatewayID(_ context.Context, gatewayID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[gatewayID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) ListOrphanEventPayments(_ context.Context) ([]domain.Payment, error) {
	return nil, nil
}

type fakeWebhooks struct {
	mu     sync.Mutex
	events map[string]*domain.WebhookEvent
}

func newFakeWebhooks() *fakeWebhooks {
	return &fakeWebhooks{events: make(map[string]*domain.WebhookEvent)}
}

func (f *fakeWebhooks) CreateIfNotExists(_ context.Context, ev *domain.WebhookEvent) (bool, *domain.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.events[ev.GatewayEventID]; ok {
		cp := *existing
		return false, &cp, nil
	}
	cp := *ev
	cp.CreatedAt = time.Now()
	f.events[ev.GatewayEventID] = &cp
	out := cp
	return true, &out, nil
}

func (f *fakeWebhooks) MarkProcessed(_ context.Context, id string, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.ID == id {
			ev.Processed = true
			ev.ProcessingError = processingError
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeWebhooks) ListUnprocessed(_ context.Context, olderThan time.Time, limit int) ([]domain.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WebhookEvent
	for _, ev := range f.events {
		if !ev.Processed && ev.CreatedAt.Before(olderThan) {
			out = append(out, *ev)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeWebhooks) get(gatewayEventID string) *domain.WebhookEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[gatewayEventID]
	if !ok {
		return nil
	}
	cp := *ev
	return &cp
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []*domain.LedgerEntry
}

func newFakeLedger() *fakeLedger { return &fakeLedger{} }

func (f *fakeLedger) Create(_ context.Context, entry *domain.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *entry
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeLedger) SettleByPaymentID(_ context.Context, gatewayPaymentID string, billingType domain.BillingType, paidAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.PaymentID != nil && *e.PaymentID == gatewayPaymentID && !e.Settled {
			e.Settled = true
			e.BillingType = billingType
			e.SettledAt = &paidAt
		}
	}
	return nil
}

func (f *fakeLedger) TotalsByCategory(_ context.Context, from, to time.Time) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	totals := make(map[string]int64)
	for _, e := range f.entries {
		if e.Settled && !e.EntryDate.Before(from) && e.EntryDate.Before(to) {
			totals[e.Category] += e.SignedAmountCents()
		}
	}
	return totals, nil
}

// fakeGateway counts calls and fails on demand.
type fakeGateway struct {
	mu sync.Mutex

	customerCalls     int
	paymentCalls      int
	subscriptionCalls int
	cancelCalls       int

	failCustomer     bool
	failPayment      bool
	failSubscription bool
	failCancel       bool

	// onSubscription runs inside CreateSubscription, between the caller's
	// pre-checks and its local persist. Tests use it to interleave a rival
	// writer at the widest point of the race window.
	onSubscription func()

	payments map[string]*domain.PaymentInfo
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]*domain.PaymentInfo)}
}

func (g *fakeGateway) CreateCustomer(_ context.Context, _ domain.CustomerProfile) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCustomer {
		return "", &domain.GatewayError{Code: "boom", Description: "customer create failed"}
	}
	g.customerCalls++
	return fmt.Sprintf("cus-%d", g.customerCalls), nil
}

func (g *fakeGateway) CreateSubscription(_ context.Context, _ domain.CreateSubscriptionRequest) (*domain.SubscriptionRef, error) {
	g.mu.Lock()
	if g.failSubscription {
		g.mu.Unlock()
		return nil, &domain.GatewayError{Code: "boom", Description: "subscription create failed"}
	}
	g.subscriptionCalls++
	ref := &domain.SubscriptionRef{ID: fmt.Sprintf("sub-%d", g.subscriptionCalls), Status: "authorized"}
	hook := g.onSubscription
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ref, nil
}

func (g *fakeGateway) CancelSubscription(_ context.Context, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCancel {
		return &domain.GatewayError{Code: "boom", Description: "cancel failed"}
	}
	g.cancelCalls++
	return nil
}

func (g *fakeGateway) CreatePayment(_ context.Context, req domain.CreatePaymentRequest) (*domain.PaymentRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failPayment {
		return nil, &domain.GatewayError{Code: "boom", Description: "payment create failed"}
	}
	g.paymentCalls++
	id := fmt.Sprintf("pay-%d", g.paymentCalls)
	g.payments[id] = &domain.PaymentInfo{
		ID:                id,
		Status:            domain.PaymentPending,
		ValueCents:        req.ValueCents,
		BillingType:       req.BillingType,
		ExternalReference: req.ExternalReference,
	}
	return &domain.PaymentRef{ID: id, InvoiceURL: "https://pay.example/" + id}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, paymentID string) (*domain.PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	info, ok := g.payments[paymentID]
	if !ok {
		return nil, &domain.GatewayError{Code: "not_found", Description: "no such payment"}
	}
	cp := *info
	return &cp, nil
}
