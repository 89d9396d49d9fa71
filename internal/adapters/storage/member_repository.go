package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

// MemberRepository implements ports.MemberRepository.
type MemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository constructs a MemberRepository.
func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	var m domain.Member
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&m).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &m, nil
}

func (r *MemberRepository) SetGatewayCustomerID(ctx context.Context, memberID, customerID string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("id = ?", memberID).
		Update("gateway_customer_id", customerID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
