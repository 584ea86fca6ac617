package affiliates

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
)

// AffiliateDTO is the merchant-facing view of an affiliate.
type AffiliateDTO struct {
	ID             uuid.UUID       `json:"id"`
	MerchantID     uuid.UUID       `json:"merchant_id"`
	Email          string          `json:"email"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	DiscountCode   string          `json:"discount_code"`
	CreatedAt      time.Time       `json:"created_at"`
}

func FromModel(a *models.Affiliate) AffiliateDTO {
	return AffiliateDTO{
		ID:             a.ID,
		MerchantID:     a.MerchantID,
		Email:          a.Email,
		CommissionRate: a.CommissionRate,
		DiscountCode:   a.DiscountCode,
		CreatedAt:      a.CreatedAt,
	}
}

func FromModels(rows []models.Affiliate) []AffiliateDTO {
	out := make([]AffiliateDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}
