package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Affiliate attributes a customer email to a merchant. (merchant_id, email) is unique.
type Affiliate struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	MerchantID     uuid.UUID       `gorm:"column:merchant_id;type:uuid;not null;uniqueIndex:ux_affiliates_merchant_email,priority:1"`
	AccountID      uuid.UUID       `gorm:"column:account_id;type:uuid;not null;uniqueIndex:ux_affiliates_account_id"`
	Email          string          `gorm:"column:email;not null;uniqueIndex:ux_affiliates_merchant_email,priority:2"`
	CommissionRate decimal.Decimal `gorm:"column:commission_rate;type:numeric;not null"`
	DiscountCode   string          `gorm:"column:discount_code;not null;uniqueIndex:ux_affiliates_discount_code"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Affiliate) TableName() string { return "affiliates" }

func (a *Affiliate) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	a.Email = NormalizeEmail(a.Email)
	return nil
}
