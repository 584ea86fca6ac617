package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AffiliateCreatedEvent announces a newly attributed affiliate so it can be welcomed.
type AffiliateCreatedEvent struct {
	AffiliateID  uuid.UUID `json:"affiliate_id"`
	AccountID    uuid.UUID `json:"account_id"`
	MerchantID   uuid.UUID `json:"merchant_id"`
	MerchantName string    `json:"merchant_name"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	DiscountCode string    `json:"discount_code"`
}

// PayoutRequestedEvent asks the payout executor to settle one order's commission.
type PayoutRequestedEvent struct {
	OrderID        uuid.UUID       `json:"order_id"`
	AffiliateID    uuid.UUID       `json:"affiliate_id"`
	MerchantID     uuid.UUID       `json:"merchant_id"`
	CommissionOwed decimal.Decimal `json:"commission_owed"`
}
