package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forteclube/forte-payments/internal/core/domain"
	"github.com/forteclube/forte-payments/internal/core/ports"
)

// RegistrationRepository implements ports.RegistrationRepository.
//
// Register serializes concurrent booking attempts with a pessimistic
// SELECT ... FOR UPDATE on the event row: two transactions racing for the
// last seat queue on the lock, and the loser re-reads a full event. The
// unique index on (event_id, member_id) backstops the duplicate check.
type RegistrationRepository struct {
	db *gorm.DB
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *gorm.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) Register(ctx context.Context, ins ports.RegistrationInsert) (*domain.EventRegistration, error) {
	var reg *domain.EventRegistration

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row-level lock: holds until commit/rollback, serializing every
		// concurrent attempt on this event.
		var event domain.Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&event, "id = ?", ins.EventID).Error; err != nil {
			return translateNotFound(err)
		}

		if !event.Status.AcceptsRegistrations() {
			return domain.ErrRegistrationClosed
		}

		var existing domain.EventRegistration
		err := tx.Where("event_id = ? AND member_id = ?", ins.EventID, ins.MemberID).
			First(&existing).Error
		if err == nil && existing.PaymentStatus != domain.RegistrationCancelled {
			return domain.ErrAlreadyRegistered
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if event.IsFull() {
			return domain.ErrEventFull
		}

		if existing.ID != "" {
			// The unique index on (event_id, member_id) covers cancelled rows
			// too, so a re-registration revives the old row.
			if err := tx.Model(&domain.EventRegistration{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"payment_status":     ins.PaymentStatus,
					"gateway_payment_id": ins.GatewayPaymentID,
					"amount_paid_cents":  0,
				}).Error; err != nil {
				return err
			}
			existing.PaymentStatus = ins.PaymentStatus
			existing.GatewayPaymentID = ins.GatewayPaymentID
			existing.AmountPaidCents = 0
			reg = &existing
		} else {
			reg = &domain.EventRegistration{
				ID:               uuid.New().String(),
				EventID:          ins.EventID,
				MemberID:         ins.MemberID,
				PaymentStatus:    ins.PaymentStatus,
				GatewayPaymentID: ins.GatewayPaymentID,
			}
			if err := tx.Create(reg).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return domain.ErrAlreadyRegistered
				}
				return err
			}
		}

		if err := tx.Model(&domain.Event{}).
			Where("id = ?", ins.EventID).
			UpdateColumn("registered_participants", gorm.Expr("registered_participants + 1")).Error; err != nil {
			return err
		}

		if ins.Ledger != nil {
			entry := *ins.Ledger
			entry.ID = uuid.New().String()
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *RegistrationRepository) Unregister(ctx context.Context, eventID, memberID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event domain.Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&event, "id = ?", eventID).Error; err != nil {
			return translateNotFound(err)
		}

		var reg domain.EventRegistration
		if err := tx.Where("event_id = ? AND member_id = ?", eventID, memberID).
			First(&reg).Error; err != nil {
			return translateNotFound(err)
		}

		if err := tx.Delete(&domain.EventRegistration{}, "id = ?", reg.ID).Error; err != nil {
			return err
		}

		// Cancelled registrations already released their seat.
		if reg.PaymentStatus != domain.RegistrationCancelled {
			if err := tx.Model(&domain.Event{}).
				Where("id = ? AND registered_participants > 0", eventID).
				UpdateColumn("registered_participants", gorm.Expr("registered_participants - 1")).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *RegistrationRepository) GetByEventAndMember(ctx context.Context, eventID, memberID string) (*domain.EventRegistration, error) {
	var reg domain.EventRegistration
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND member_id = ?", eventID, memberID).
		First(&reg).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &reg, nil
}

// MarkPaid flips the registration to paid. Re-applying the same confirmation
// touches zero semantic state, so webhook re-delivery is harmless.
func (r *RegistrationRepository) MarkPaid(ctx context.Context, eventID, memberID string, amountCents int64) error {
	res := r.db.WithContext(ctx).
		Model(&domain.EventRegistration{}).
		Where("event_id = ? AND member_id = ? AND payment_status <> ?",
			eventID, memberID, domain.RegistrationCancelled).
		Updates(map[string]interface{}{
			"payment_status":    domain.RegistrationPaid,
			"amount_paid_cents": amountCents,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either no such registration, or it was cancelled meanwhile; the
		// caller distinguishes via GetByEventAndMember.
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.EventRegistration{}).
			Where("event_id = ? AND member_id = ?", eventID, memberID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
	}
	return nil
}

// CancelAndRelease moves the registration to cancelled and frees the seat in
// one transaction. Only the row that actually transitions decrements the
// counter, which makes duplicate cancellation webhooks no-ops.
func (r *RegistrationRepository) CancelAndRelease(ctx context.Context, eventID, memberID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.EventRegistration{}).
			Where("event_id = ? AND member_id = ? AND payment_status <> ?",
				eventID, memberID, domain.RegistrationCancelled).
			Update("payment_status", domain.RegistrationCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&domain.EventRegistration{}).
				Where("event_id = ? AND member_id = ?", eventID, memberID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			// Already cancelled; seat already released.
			return nil
		}

		return tx.Model(&domain.Event{}).
			Where("id = ? AND registered_participants > 0", eventID).
			UpdateColumn("registered_participants", gorm.Expr("registered_participants - 1")).Error
	})
}
