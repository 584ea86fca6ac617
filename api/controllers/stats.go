package controllers

import (
	"net/http"

	"github.com/angelmondragon/affiliatez-backend/api/middleware"
	"github.com/angelmondragon/affiliatez-backend/api/responses"
	"github.com/angelmondragon/affiliatez-backend/api/validators"
	"github.com/angelmondragon/affiliatez-backend/internal/stats"
	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
)

// MerchantStats reports order totals for the caller's merchant over ?from=&to=.
func MerchantStats(svc stats.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "merchant context missing"))
			return
		}
		from, err := validators.ParseQueryDate(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryDate(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Stats(r.Context(), merchantID, stats.Range{From: from, To: to})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
