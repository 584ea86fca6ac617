package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/affiliatez-backend/api/responses"
	"github.com/angelmondragon/affiliatez-backend/api/validators"
	"github.com/angelmondragon/affiliatez-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
)

type OrderIngestor interface {
	Ingest(ctx context.Context, payload orders.Payload) (orders.Result, error)
}

// OrderWebhook ingests one order notification. Duplicate deliveries and
// unknown merchants still answer 200 so the sender stops retrying.
func OrderWebhook(svc OrderIngestor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload orders.Payload
		if err := validators.DecodeWebhookBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Ingest(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]orders.Outcome{"status": result.Outcome})
	}
}
