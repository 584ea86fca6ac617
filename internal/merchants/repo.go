package merchants

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
)

// Repository handles merchant and merchant-account persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByDomain(ctx context.Context, domain string) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).
		Where("domain = ?", models.NormalizeDomain(domain)).
		First(&merchant).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&merchant).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

func (r *Repository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&merchant).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

// FindByEmail returns the merchant owned by the merchant account with email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).
		Joins("JOIN merchant_accounts ON merchant_accounts.id = merchants.account_id").
		Where("merchant_accounts.email = ?", models.NormalizeEmail(email)).
		First(&merchant).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

// AccountExistsWithEmail queries the merchant account table only. Affiliate
// accounts live elsewhere so the same address may exist in both.
func (r *Repository) AccountExistsWithEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.MerchantAccount{}).
		Where("email = ?", models.NormalizeEmail(email)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateWithTx inserts the account and its merchant using the provided transaction.
func (r *Repository) CreateWithTx(tx *gorm.DB, account *models.MerchantAccount, merchant *models.Merchant) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if err := tx.Create(account).Error; err != nil {
		return err
	}
	merchant.AccountID = account.ID
	return tx.Create(merchant).Error
}

// FindByIDWithTx loads a merchant using the provided transaction.
func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Merchant, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var merchant models.Merchant
	if err := tx.First(&merchant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

// UpdateWithTx applies column updates to one merchant.
func (r *Repository) UpdateWithTx(tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	res := tx.Model(&models.Merchant{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateAccountWithTx applies credential updates to one merchant account.
func (r *Repository) UpdateAccountWithTx(tx *gorm.DB, accountID uuid.UUID, updates map[string]any) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	res := tx.Model(&models.MerchantAccount{}).Where("id = ?", accountID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
