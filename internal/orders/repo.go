package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
)

// Repository handles order persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByExternalID(ctx context.Context, externalID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("external_order_id = ?", externalID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateWithTx inserts the order using the provided transaction.
func (r *Repository) CreateWithTx(tx *gorm.DB, order *models.Order) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Create(order).Error
}

// payableClause matches orders never handed to the payout executor, and orders
// handed over before a cutoff that were never settled.
const payableClause = "(payout_status = ? OR (payout_status = ? AND payout_requested_at < ?))"

func payable(q *gorm.DB, staleBefore time.Time) *gorm.DB {
	return q.Where(payableClause, enums.PayoutStatusUnpaid, enums.PayoutStatusRequested, staleBefore)
}

// ListPayableByAffiliate returns the affiliate's payable orders, oldest first.
func (r *Repository) ListPayableByAffiliate(ctx context.Context, affiliateID uuid.UUID, staleBefore time.Time) ([]models.Order, error) {
	var rows []models.Order
	q := r.db.WithContext(ctx).Where("affiliate_id = ?", affiliateID)
	if err := payable(q, staleBefore).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AffiliatesWithPayable lists affiliates that have payable orders, the one
// waiting longest first.
func (r *Repository) AffiliatesWithPayable(ctx context.Context, staleBefore time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("affiliate_id IS NOT NULL")
	q = payable(q, staleBefore).
		Group("affiliate_id").
		Order("MIN(created_at) ASC").
		Order("affiliate_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("affiliate_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkRequestedWithTx moves order to requested if its row still carries the
// status and request time it was listed with. False means another run claimed
// it or it was settled in between.
func (r *Repository) MarkRequestedWithTx(tx *gorm.DB, order models.Order, requestedAt time.Time) (bool, error) {
	if tx == nil {
		return false, gorm.ErrInvalidTransaction
	}
	q := tx.Model(&models.Order{}).
		Where("id = ? AND payout_status = ? AND payout_status <> ?", order.ID, order.PayoutStatus, enums.PayoutStatusPaid)
	if order.RequestedAt == nil {
		q = q.Where("payout_requested_at IS NULL")
	} else {
		q = q.Where("payout_requested_at = ?", *order.RequestedAt)
	}
	res := q.Updates(map[string]any{
		"payout_status":       enums.PayoutStatusRequested,
		"payout_requested_at": requestedAt,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPaid flips an unpaid or requested order to paid. It reports false when
// the order was already paid or does not exist.
func (r *Repository) MarkPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payout_status IN ?", orderID, []enums.PayoutStatus{enums.PayoutStatusUnpaid, enums.PayoutStatusRequested}).
		Updates(map[string]any{
			"payout_status": enums.PayoutStatusPaid,
			"paid_at":       paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
