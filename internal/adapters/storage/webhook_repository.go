package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

// WebhookEventRepository stores delivered gateway notifications before they
// are processed. The unique index on gateway_event_id plus ON CONFLICT DO
// NOTHING gives at-most-once application under concurrent redelivery.
type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// CreateIfNotExists inserts the event unless one with the same gateway event
// id already exists. It returns whether this call created the row, plus the
// stored row either way.
func (r *WebhookEventRepository) CreateIfNotExists(ctx context.Context, ev *domain.WebhookEvent) (bool, *domain.WebhookEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_event_id"}},
			DoNothing: true,
		}).
		Create(ev)
	if res.Error != nil {
		return false, nil, res.Error
	}

	var stored domain.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("gateway_event_id = ?", ev.GatewayEventID).
		First(&stored).Error; err != nil {
		return false, nil, translateNotFound(err)
	}
	return res.RowsAffected > 0, &stored, nil
}

func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id string, processingError string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&domain.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":        true,
			"processed_at":     &now,
			"processing_error": processingError,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *WebhookEventRepository) ListUnprocessed(ctx context.Context, olderThan time.Time, limit int) ([]domain.WebhookEvent, error) {
	var out []domain.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("processed = ? AND created_at < ?", false, olderThan).
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
