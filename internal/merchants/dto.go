package merchants

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
)

// RegisterInput carries onboarding data for a new merchant.
type RegisterInput struct {
	Domain                string
	DisplayName           string
	Email                 string
	APIKey                string
	DefaultCommissionRate decimal.Decimal
}

// UpdateInput lists mutable merchant fields. The domain is intentionally absent.
type UpdateInput struct {
	DisplayName           *string
	DefaultCommissionRate *decimal.Decimal
	Email                 *string
	APIKey                *string
}

// MerchantDTO is the public representation of a merchant.
type MerchantDTO struct {
	ID                    uuid.UUID       `json:"id"`
	Domain                string          `json:"domain"`
	DisplayName           string          `json:"display_name"`
	DefaultCommissionRate decimal.Decimal `json:"default_commission_rate"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// RegisterResult is returned after onboarding.
type RegisterResult struct {
	Merchant    MerchantDTO `json:"merchant"`
	AccessToken string      `json:"access_token"`
}

func FromModel(m *models.Merchant) MerchantDTO {
	return MerchantDTO{
		ID:                    m.ID,
		Domain:                m.Domain,
		DisplayName:           m.DisplayName,
		DefaultCommissionRate: m.DefaultCommissionRate,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}
