package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/affiliatez-backend/api/middleware"
	"github.com/angelmondragon/affiliatez-backend/api/responses"
	"github.com/angelmondragon/affiliatez-backend/api/validators"
	"github.com/angelmondragon/affiliatez-backend/internal/affiliates"
	"github.com/angelmondragon/affiliatez-backend/internal/merchants"
	"github.com/angelmondragon/affiliatez-backend/internal/payouts"
	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
)

type PayoutService interface {
	Payout(ctx context.Context, affiliateID uuid.UUID) (payouts.Summary, error)
}

type AffiliateRegisterBody struct {
	Email          string           `json:"email" validate:"required,email"`
	Name           string           `json:"name" validate:"max=128"`
	CommissionRate *decimal.Decimal `json:"commission_rate" validate:"omitempty,gte=0,lte=1"`
}

func MerchantAffiliates(svc affiliates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "merchant context missing"))
			return
		}
		rows, err := svc.ListByMerchant(r.Context(), merchantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, affiliates.FromModels(rows))
	}
}

// MerchantRegisterAffiliate creates an affiliate ahead of any order, optionally
// with a custom commission rate.
func MerchantRegisterAffiliate(merchantSvc merchants.Service, svc affiliates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "merchant context missing"))
			return
		}

		var body AffiliateRegisterBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		merchant, err := merchantSvc.FindByID(r.Context(), merchantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		affiliate, err := svc.Register(r.Context(), merchant, affiliates.RegisterInput{
			Email:          body.Email,
			Name:           validators.SanitizeString(body.Name, displayNameMax),
			CommissionRate: body.CommissionRate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, affiliates.FromModel(affiliate))
	}
}

// AffiliatePayout submits the affiliate's unpaid orders. A run where some
// orders were submitted answers 200 with the counts even if others failed.
func AffiliatePayout(affiliateSvc affiliates.Service, svc PayoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "merchant context missing"))
			return
		}
		affiliateID, err := uuid.Parse(chi.URLParam(r, "affiliateId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid affiliate id"))
			return
		}

		affiliate, err := affiliateSvc.FindByID(r.Context(), affiliateID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if affiliate.MerchantID != merchantID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found"))
			return
		}

		summary, err := svc.Payout(r.Context(), affiliateID)
		if err != nil && summary.Submitted == 0 && summary.Failed == 0 {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err != nil && logg != nil {
			logg.Warn(logg.WithField(r.Context(), "failed", summary.Failed), "payout partially failed")
		}
		responses.WriteSuccess(w, summary)
	}
}
