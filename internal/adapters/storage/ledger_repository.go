package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, entry *domain.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// SettleByPaymentID marks the ledger entries tied to a gateway charge as
// settled. Matching is by the stored gateway payment id, never by
// description text.
func (r *LedgerRepository) SettleByPaymentID(ctx context.Context, gatewayPaymentID string, billingType domain.BillingType, paidAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.LedgerEntry{}).
		Where("payment_id = ? AND settled = ?", gatewayPaymentID, false).
		Updates(map[string]interface{}{
			"settled":      true,
			"billing_type": billingType,
			"settled_at":   &paidAt,
		}).Error
}

// TotalsByCategory sums settled entries per category, incomes positive and
// expenses negative.
func (r *LedgerRepository) TotalsByCategory(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	type row struct {
		Category string
		Total    int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&domain.LedgerEntry{}).
		Select(`category, SUM(CASE WHEN type = ? THEN amount_cents ELSE -amount_cents END) AS total`,
			domain.LedgerIncome).
		Where("settled = ? AND entry_date >= ? AND entry_date < ?", true, from, to).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int64, len(rows))
	for _, r := range rows {
		totals[r.Category] = r.Total
	}
	return totals, nil
}
