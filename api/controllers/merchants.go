package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/affiliatez-backend/api/middleware"
	"github.com/angelmondragon/affiliatez-backend/api/responses"
	"github.com/angelmondragon/affiliatez-backend/api/validators"
	"github.com/angelmondragon/affiliatez-backend/internal/merchants"
	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
)

const displayNameMax = 128

type MerchantRegisterBody struct {
	Domain                string           `json:"domain" validate:"required,max=253"`
	DisplayName           string           `json:"display_name" validate:"required,max=128"`
	Email                 string           `json:"email" validate:"required,email"`
	APIKey                string           `json:"api_key" validate:"required,min=16,max=256"`
	DefaultCommissionRate *decimal.Decimal `json:"default_commission_rate" validate:"required,gte=0,lte=1"`
}

// MerchantUpdateBody has no domain field; sending one fails strict decoding.
type MerchantUpdateBody struct {
	DisplayName           *string          `json:"display_name" validate:"omitempty,max=128"`
	DefaultCommissionRate *decimal.Decimal `json:"default_commission_rate" validate:"omitempty,gte=0,lte=1"`
	Email                 *string          `json:"email" validate:"omitempty,email"`
	APIKey                *string          `json:"api_key" validate:"omitempty,min=16,max=256"`
}

// MerchantRegister onboards a merchant and returns its first access token.
func MerchantRegister(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "merchant service unavailable"))
			return
		}

		var body MerchantRegisterBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Register(r.Context(), merchants.RegisterInput{
			Domain:                body.Domain,
			DisplayName:           validators.SanitizeString(body.DisplayName, displayNameMax),
			Email:                 body.Email,
			APIKey:                body.APIKey,
			DefaultCommissionRate: *body.DefaultCommissionRate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func MerchantProfile(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "merchant context missing"))
			return
		}
		merchant, err := svc.FindByID(r.Context(), merchantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, merchants.FromModel(merchant))
	}
}

func MerchantUpdate(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "merchant context missing"))
			return
		}

		var body MerchantUpdateBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.DisplayName == nil && body.DefaultCommissionRate == nil && body.Email == nil && body.APIKey == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update"))
			return
		}
		if body.DisplayName != nil {
			name := validators.SanitizeString(*body.DisplayName, displayNameMax)
			body.DisplayName = &name
		}

		updated, err := svc.Update(r.Context(), merchantID, merchants.UpdateInput{
			DisplayName:           body.DisplayName,
			DefaultCommissionRate: body.DefaultCommissionRate,
			Email:                 body.Email,
			APIKey:                body.APIKey,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}
