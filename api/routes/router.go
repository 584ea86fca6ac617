package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/affiliatez-backend/api/controllers"
	"github.com/angelmondragon/affiliatez-backend/api/middleware"
	"github.com/angelmondragon/affiliatez-backend/internal/affiliates"
	"github.com/angelmondragon/affiliatez-backend/internal/merchants"
	"github.com/angelmondragon/affiliatez-backend/internal/stats"
	"github.com/angelmondragon/affiliatez-backend/pkg/config"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	gatherer prometheus.Gatherer,
	merchantService merchants.Service,
	affiliateService affiliates.Service,
	orderService controllers.OrderIngestor,
	statsService stats.Service,
	payoutService controllers.PayoutService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/orders", controllers.OrderWebhook(orderService, logg))
		r.Post("/merchants", controllers.MerchantRegister(merchantService, logg))

		r.Route("/merchants/me", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireMerchant(logg))

			r.Get("/", controllers.MerchantProfile(merchantService, logg))
			r.Patch("/", controllers.MerchantUpdate(merchantService, logg))
			r.Get("/stats", controllers.MerchantStats(statsService, logg))

			r.Route("/affiliates", func(r chi.Router) {
				r.Get("/", controllers.MerchantAffiliates(affiliateService, logg))
				r.Post("/", controllers.MerchantRegisterAffiliate(merchantService, affiliateService, logg))
				r.Post("/{affiliateId}/payout", controllers.AffiliatePayout(affiliateService, payoutService, logg))
			})
		})
	})

	return r
}
