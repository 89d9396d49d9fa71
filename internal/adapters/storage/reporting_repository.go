package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

type ReportingRepository struct {
	db *gorm.DB
}

func NewReportingRepository(db *gorm.DB) *ReportingRepository {
	return &ReportingRepository{db: db}
}

// CountEligibleMembers counts members whose rank makes them liable for dues.
func (r *ReportingRepository) CountEligibleMembers(ctx context.Context) (int64, error) {
	var count int64
	// RANK is reserved in MySQL 8; the identifier must stay quoted.
	err := r.db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("`rank` IN ? AND deleted_at IS NULL", domain.EligibleRanks()).
		Count(&count).Error
	return count, err
}

// CountActiveSubscribers counts distinct members holding an active
// subscription.
func (r *ReportingRepository) CountActiveSubscribers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Distinct("member_id").
		Where("status = ?", domain.SubscriptionActive).
		Count(&count).Error
	return count, err
}
