package affiliates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
)

// Repository handles affiliate and affiliate-account persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByMerchantAndEmail loads the attribution row for (merchant, email).
func (r *Repository) FindByMerchantAndEmail(ctx context.Context, merchantID uuid.UUID, email string) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND email = ?", merchantID, models.NormalizeEmail(email)).
		First(&affiliate).Error; err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&affiliate).Error; err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// ListByMerchant returns the merchant's affiliates, newest first.
func (r *Repository) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Affiliate, error) {
	var rows []models.Affiliate
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateWithTx inserts the account and the affiliate that points at it.
func (r *Repository) CreateWithTx(tx *gorm.DB, account *models.AffiliateAccount, affiliate *models.Affiliate) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if err := tx.Create(account).Error; err != nil {
		return err
	}
	affiliate.AccountID = account.ID
	return tx.Create(affiliate).Error
}
