package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
)

// Order is one external commerce transaction. CommissionRate and CommissionOwed
// are snapshots taken when the row is written and never recomputed.
type Order struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ExternalOrderID string             `gorm:"column:external_order_id;not null;uniqueIndex:ux_orders_external_order_id"`
	MerchantID      uuid.UUID          `gorm:"column:merchant_id;type:uuid;not null"`
	AffiliateID     *uuid.UUID         `gorm:"column:affiliate_id;type:uuid"`
	CustomerEmail   string             `gorm:"column:customer_email;not null"`
	Subtotal        decimal.Decimal    `gorm:"column:subtotal;type:numeric;not null"`
	CommissionRate  decimal.Decimal    `gorm:"column:commission_rate;type:numeric;not null"`
	CommissionOwed  decimal.Decimal    `gorm:"column:commission_owed;type:numeric;not null"`
	DiscountCode    string             `gorm:"column:discount_code;not null"`
	PayoutStatus    enums.PayoutStatus `gorm:"column:payout_status;type:payout_status;not null"`
	RequestedAt     *time.Time         `gorm:"column:payout_requested_at"`
	PaidAt          *time.Time         `gorm:"column:paid_at"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	if o.PayoutStatus == "" {
		o.PayoutStatus = enums.PayoutStatusUnpaid
	}
	return nil
}
