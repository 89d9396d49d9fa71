package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts the subscription. An ACTIVE row claims the unique
// active_member_id slot, so two racing activations cannot both land: the
// loser gets ErrAlreadySubscribed from the index, not from a re-check.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.Status == domain.SubscriptionActive {
		memberID := sub.MemberID
		sub.ActiveMemberID = &memberID
	}
	err := r.db.WithContext(ctx).Create(sub).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAlreadySubscribed
	}
	return err
}

func (r *SubscriptionRepository) GetActiveByMember(ctx context.Context, memberID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND status = ?", memberID, domain.SubscriptionActive).
		First(&sub).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.WithContext(ctx).
		Where("gateway_subscription_id = ?", gatewaySubscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &sub, nil
}

func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, id string, status domain.SubscriptionStatus) error {
	updates := map[string]interface{}{"status": status}
	if status != domain.SubscriptionActive {
		// Frees the member's active slot for a future re-activation.
		updates["active_member_id"] = nil
	}
	if status == domain.SubscriptionCancelled {
		now := time.Now()
		updates["cancelled_at"] = &now
	}
	res := r.db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
