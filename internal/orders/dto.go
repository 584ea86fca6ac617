package orders

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
)

// Payload is the inbound order webhook body. Every field is a pointer so a
// JSON null is indistinguishable from a missing key.
type Payload struct {
	OrderID        *string `json:"order_id" validate:"required"`
	SubtotalPrice  *Amount `json:"subtotal_price" validate:"required"`
	MerchantDomain *string `json:"merchant_domain" validate:"required"`
	DiscountCode   *string `json:"discount_code" validate:"required"`
	CustomerEmail  *string `json:"customer_email" validate:"required,email"`
	CustomerName   *string `json:"customer_name" validate:"required"`
}

var errAmountNotNumber = errors.New("amount must be a JSON number")

// Amount is a monetary JSON number decoded without float rounding. Quoted
// numbers are rejected.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) *Amount { return &Amount{Decimal: d} }

func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return errAmountNotNumber
	}
	return a.Decimal.UnmarshalJSON(data)
}

// Outcome is the non-error result of an ingestion.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Result carries the outcome and, unless ignored, the stored order.
type Result struct {
	Outcome Outcome
	Order   *models.Order
}

type ingestInput struct {
	externalID   string
	subtotal     decimal.Decimal
	domain       string
	discountCode string
	email        string
	name         string
}
