package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

// PaymentRepository keeps a local mirror of gateway charges, keyed by the
// gateway payment id. Upsert enforces forward-only status movement so a late
// PAYMENT_CREATED can never rewind a charge that already settled.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Upsert(ctx context.Context, info domain.PaymentInfo) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("gateway_payment_id = ?", info.ID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p := domain.Payment{
				ID:                uuid.New().String(),
				GatewayPaymentID:  info.ID,
				ValueCents:        info.ValueCents,
				NetValueCents:     info.NetValueCents,
				Status:            info.Status,
				BillingType:       info.BillingType,
				DueDate:           info.DueDate,
				PaymentDate:       info.PaymentDate,
				ExternalReference: info.ExternalReference,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			out = &p
			return nil
		}
		if err != nil {
			return err
		}

		if !existing.Status.CanTransitionTo(info.Status) {
			// Stale or out-of-order notification; keep the settled view.
			out = &existing
			return nil
		}

		updates := map[string]interface{}{
			"status":       info.Status,
			"billing_type": info.BillingType,
		}
		if info.ValueCents > 0 {
			updates["value_cents"] = info.ValueCents
		}
		if info.NetValueCents > 0 {
			updates["net_value_cents"] = info.NetValueCents
		}
		if info.PaymentDate != nil {
			updates["payment_date"] = info.PaymentDate
		}
		if info.DueDate != nil {
			updates["due_date"] = info.DueDate
		}
		if info.ExternalReference != "" {
			updates["external_reference"] = info.ExternalReference
		}
		if err := tx.Model(&domain.Payment{}).
			Where("id = ?", existing.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		var fresh domain.Payment
		if err := tx.First(&fresh, "id = ?", existing.ID).Error; err != nil {
			return err
		}
		out = &fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PaymentRepository) GetByGatewayID(ctx context.Context, gatewayPaymentID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		First(&p).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &p, nil
}

// ListOrphanEventPayments returns event charges whose registration row is
// missing, which happens when the local insert fails after the gateway call
// succeeded.
func (r *PaymentRepository) ListOrphanEventPayments(ctx context.Context) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.db.WithContext(ctx).
		Where(`external_reference LIKE 'event:%'
			AND NOT EXISTS (
				SELECT 1 FROM event_registrations er
				WHERE payments.external_reference = CONCAT('event:', er.event_id, ':', er.member_id)
			)`).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
