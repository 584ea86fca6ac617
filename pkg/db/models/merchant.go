package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Merchant is a storefront identified by its domain.
type Merchant struct {
	ID                    uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	AccountID             uuid.UUID       `gorm:"column:account_id;type:uuid;not null;uniqueIndex:ux_merchants_account_id"`
	Domain                string          `gorm:"column:domain;not null;uniqueIndex:ux_merchants_domain"`
	DisplayName           string          `gorm:"column:display_name;not null"`
	DefaultCommissionRate decimal.Decimal `gorm:"column:default_commission_rate;type:numeric;not null"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Merchant) TableName() string { return "merchants" }

// NormalizeDomain lower-cases and strips a scheme or trailing slash.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	return strings.TrimRight(d, "/")
}

func (m *Merchant) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	m.Domain = NormalizeDomain(m.Domain)
	return nil
}
