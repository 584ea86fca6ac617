package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
)

const totalsSelect = `COUNT(*) AS order_count,
COALESCE(SUM(subtotal), 0) AS revenue,
COALESCE(SUM(CASE WHEN affiliate_id IS NOT NULL THEN commission_owed ELSE 0 END), 0) AS commissions_owed`

// Repository runs the merchant order aggregate.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type totalsRow struct {
	OrderCount      int64
	Revenue         decimal.Decimal
	CommissionsOwed decimal.Decimal
}

// Totals aggregates orders created in [start, end). Nil bounds are open.
func (r *Repository) Totals(ctx context.Context, merchantID uuid.UUID, start, end *time.Time) (Stats, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select(totalsSelect).
		Where("merchant_id = ?", merchantID)
	if start != nil {
		q = q.Where("created_at >= ?", *start)
	}
	if end != nil {
		q = q.Where("created_at < ?", *end)
	}

	var row totalsRow
	if err := q.Scan(&row).Error; err != nil {
		return Stats{}, err
	}
	return Stats{
		Count:           row.OrderCount,
		Revenue:         row.Revenue,
		CommissionsOwed: row.CommissionsOwed,
	}, nil
}
