package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

// EventRepository implements ports.EventRepository.
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	var e domain.Event
	if err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &e, nil
}

// UpdateStatusIf performs the status-guarded transition. A zero rows-affected
// result means another writer (an admin cancellation or a concurrent
// reconciler) got there first.
func (r *EventRepository) UpdateStatusIf(ctx context.Context, eventID string, from, to domain.EventStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("id = ? AND status = ?", eventID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *EventRepository) ListNonTerminal(ctx context.Context) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []domain.EventStatus{domain.EventStatusCompleted, domain.EventStatusCancelled}).
		Find(&events).Error
	return events, err
}
