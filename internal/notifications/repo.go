package notifications

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
)

// Repository stores in-app notifications for affiliate accounts.
type Repository interface {
	// CreateOnce inserts n unless the account already has a notification of
	// the same type. It reports whether a row was written.
	CreateOnce(ctx context.Context, n *models.Notification) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) CreateOnce(ctx context.Context, n *models.Notification) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Notification{}).
			Where("affiliate_account_id = ? AND type = ?", n.AffiliateAccountID, n.Type).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		if err := tx.Create(n).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
