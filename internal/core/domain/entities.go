// Package domain contains the core business entities for the membership
// payments service. This is the innermost layer - no external dependencies
// beyond persistence tags.
package domain

import "time"

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusPlanning         EventStatus = "planning"
	EventStatusPublished        EventStatus = "published"
	EventStatusRegistrationOpen EventStatus = "registration_open"
	EventStatusFinalDays        EventStatus = "final_days"
	EventStatusActive           EventStatus = "active"
	EventStatusCompleted        EventStatus = "completed"
	EventStatusCancelled        EventStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further lifecycle moves.
func (s EventStatus) IsTerminal() bool {
	return s == EventStatusCompleted || s == EventStatusCancelled
}

// AcceptsRegistrations reports whether members may register in this state.
func (s EventStatus) AcceptsRegistrations() bool {
	switch s {
	case EventStatusPublished, EventStatusRegistrationOpen, EventStatusFinalDays:
		return true
	}
	return false
}

// RegistrationStatus is the payment state of a single event registration.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationPaid      RegistrationStatus = "paid"
	RegistrationFree      RegistrationStatus = "free"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// SubscriptionStatus is the state of a recurring-dues subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
)

// PaymentStatus mirrors the gateway's charge lifecycle. Transitions only move
// forward: PENDING -> CONFIRMED -> RECEIVED, or PENDING -> OVERDUE/CANCELLED.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentReceived  PaymentStatus = "RECEIVED"
	PaymentOverdue   PaymentStatus = "OVERDUE"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// paymentStatusRank orders statuses so that a stale webhook can never move a
// charge backwards (a late PENDING after RECEIVED is a no-op). OVERDUE and
// CONFIRMED share a rank: an overdue boleto settled late still advances to
// RECEIVED.
var paymentStatusRank = map[PaymentStatus]int{
	PaymentPending:   0,
	PaymentConfirmed: 1,
	PaymentOverdue:   1,
	PaymentReceived:  2,
	PaymentCancelled: 2,
}

// IsTerminal reports whether the charge reached a final state.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentReceived || s == PaymentCancelled
}

// CanTransitionTo reports whether moving from s to next is a forward move.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next || s.IsTerminal() {
		return false
	}
	cur, ok := paymentStatusRank[s]
	if !ok {
		return true
	}
	nxt, ok := paymentStatusRank[next]
	if !ok {
		return false
	}
	return nxt >= cur
}

// BillingType selects how a charge is collected at the gateway.
type BillingType string

const (
	// BillingUndefined lets the payer choose the method at checkout.
	BillingUndefined BillingType = "UNDEFINED"
	BillingBoleto    BillingType = "BOLETO"
	BillingPix       BillingType = "PIX"
	BillingCard      BillingType = "CREDIT_CARD"
)

// LedgerEntryType signs a ledger amount.
type LedgerEntryType string

const (
	LedgerIncome  LedgerEntryType = "income"
	LedgerExpense LedgerEntryType = "expense"
)

// SubscriptionCycle is the billing cadence of recurring dues.
type SubscriptionCycle string

// CycleMonthly is the only cadence the club bills on.
const CycleMonthly SubscriptionCycle = "MONTHLY"

// Member is a club member. GatewayCustomerID is the local mirror of the
// gateway customer so provisioning stays idempotent across retries.
type Member struct {
	ID                string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name              string     `gorm:"type:varchar(200);not null" json:"name"`
	Email             string     `gorm:"type:varchar(200);not null;uniqueIndex" json:"email"`
	Document          string     `gorm:"type:varchar(20)" json:"document,omitempty"`
	Rank              Rank       `gorm:"type:varchar(20);not null;default:'aluno'" json:"rank"`
	GatewayCustomerID string     `gorm:"type:varchar(64);index" json:"gateway_customer_id,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         *time.Time `gorm:"index" json:"-"`
}

// Event is a bookable club event with finite capacity.
// RegisteredParticipants is only ever mutated in the same transaction as the
// registration row change it accounts for.
type Event struct {
	ID                     string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title                  string      `gorm:"type:varchar(200);not null" json:"title"`
	Description            string      `gorm:"type:text" json:"description,omitempty"`
	StartDate              time.Time   `gorm:"not null;index" json:"start_date"`
	EndDate                time.Time   `gorm:"not null" json:"end_date"`
	MaxParticipants        int         `gorm:"not null" json:"max_participants"`
	RegisteredParticipants int         `gorm:"not null;default:0" json:"registered_participants"`
	PriceCents             int64       `gorm:"not null;default:0" json:"price_cents"`
	Status                 EventStatus `gorm:"type:varchar(20);not null;default:'planning';index" json:"status"`
	CreatedAt              time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsFull reports whether no seats remain.
func (e *Event) IsFull() bool {
	return e.RegisteredParticipants >= e.MaxParticipants
}

// IsFree reports whether registration requires no charge.
func (e *Event) IsFree() bool {
	return e.PriceCents == 0
}

// EventRegistration links a member to an event, unique per pair.
type EventRegistration struct {
	ID               string             `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventID          string             `gorm:"type:varchar(36);not null;uniqueIndex:ux_registrations_event_member,priority:1" json:"event_id"`
	MemberID         string             `gorm:"type:varchar(36);not null;uniqueIndex:ux_registrations_event_member,priority:2" json:"member_id"`
	PaymentStatus    RegistrationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	GatewayPaymentID string             `gorm:"type:varchar(64);index" json:"gateway_payment_id,omitempty"`
	AmountPaidCents  int64              `gorm:"not null;default:0" json:"amount_paid_cents"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// Subscription is a member's recurring-dues subscription. At most one ACTIVE
// row per member exists at any time: ActiveMemberID carries the member id
// only while the row is ACTIVE and is NULL otherwise, so its unique index
// rejects a second ACTIVE insert while ignoring any number of ended rows
// (MySQL unique indexes admit repeated NULLs).
type Subscription struct {
	ID                    string             `gorm:"type:varchar(36);primaryKey" json:"id"`
	MemberID              string             `gorm:"type:varchar(36);not null;index" json:"member_id"`
	ActiveMemberID        *string            `gorm:"type:varchar(36);uniqueIndex" json:"-"`
	GatewaySubscriptionID string             `gorm:"type:varchar(64);not null;uniqueIndex" json:"gateway_subscription_id"`
	Cycle                 SubscriptionCycle  `gorm:"type:varchar(16);not null;default:'MONTHLY'" json:"cycle"`
	ValueCents            int64              `gorm:"not null" json:"value_cents"`
	NextDueDate           time.Time          `gorm:"not null" json:"next_due_date"`
	Status                SubscriptionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CancelledAt           *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt             time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// Payment mirrors a single gateway charge, one-off or installment.
// ExternalReference correlates it back to a local entity
// ("event:<eventID>:<memberID>" or "subscription:<memberID>").
type Payment struct {
	ID                string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	GatewayPaymentID  string        `gorm:"type:varchar(64);not null;uniqueIndex" json:"gateway_payment_id"`
	ValueCents        int64         `gorm:"not null" json:"value_cents"`
	NetValueCents     int64         `gorm:"not null;default:0" json:"net_value_cents"`
	Status            PaymentStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	BillingType       BillingType   `gorm:"type:varchar(16);not null;default:'UNDEFINED'" json:"billing_type"`
	DueDate           *time.Time    `json:"due_date,omitempty"`
	PaymentDate       *time.Time    `json:"payment_date,omitempty"`
	ExternalReference string        `gorm:"type:varchar(120);index" json:"external_reference,omitempty"`
	CreatedAt         time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// WebhookEvent is the raw inbound gateway notification keyed by the gateway's
// own event id. The unique index on GatewayEventID is the idempotency ledger:
// re-delivery after a successful application is a no-op.
type WebhookEvent struct {
	ID              string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	GatewayEventID  string     `gorm:"type:varchar(120);not null;uniqueIndex" json:"gateway_event_id"`
	EventType       string     `gorm:"type:varchar(60);not null;index" json:"event_type"`
	Payload         string     `gorm:"type:longtext" json:"payload"`
	Processed       bool       `gorm:"not null;default:false;index" json:"processed"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

// LedgerEntry is a local financial-transaction record. PaymentID is the
// gateway charge id the entry accounts for; confirmed payments are settled
// by that key, never by free-text matching.
type LedgerEntry struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Description string          `gorm:"type:varchar(255);not null" json:"description"`
	Type        LedgerEntryType `gorm:"type:varchar(10);not null;index" json:"type"`
	AmountCents int64           `gorm:"not null" json:"amount_cents"`
	EntryDate   time.Time       `gorm:"not null;index" json:"entry_date"`
	Category    string          `gorm:"type:varchar(60);index" json:"category"`
	PaymentID   *string         `gorm:"type:varchar(64);index" json:"payment_id,omitempty"`
	Settled     bool            `gorm:"not null;default:false" json:"settled"`
	BillingType BillingType     `gorm:"type:varchar(16);not null;default:'UNDEFINED'" json:"billing_type"`
	SettledAt   *time.Time      `json:"settled_at,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// SignedAmountCents returns the amount signed by entry type.
func (l *LedgerEntry) SignedAmountCents() int64 {
	if l.Type == LedgerExpense {
		return -l.AmountCents
	}
	return l.AmountCents
}
