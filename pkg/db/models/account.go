package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Credentials is the identity shape shared by both account variants.
type Credentials struct {
	Email        string `gorm:"column:email;not null"`
	Name         string `gorm:"column:name;not null"`
	PasswordHash string `gorm:"column:password_hash;not null"`
}

// NormalizeEmail is the canonical form used for every email lookup and key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MerchantAccount owns exactly one merchant. Email is unique across merchant accounts.
type MerchantAccount struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Credentials
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (MerchantAccount) TableName() string { return "merchant_accounts" }

func (a *MerchantAccount) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	a.Email = NormalizeEmail(a.Email)
	return nil
}

// AffiliateAccount backs exactly one affiliate. The same email may hold several
// affiliate accounts, one per merchant.
type AffiliateAccount struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Credentials
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (AffiliateAccount) TableName() string { return "affiliate_accounts" }

func (a *AffiliateAccount) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	a.Email = NormalizeEmail(a.Email)
	return nil
}
