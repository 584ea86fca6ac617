package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/affiliatez-backend/api/controllers"
	"github.com/angelmondragon/affiliatez-backend/internal/affiliates"
	"github.com/angelmondragon/affiliatez-backend/internal/merchants"
	"github.com/angelmondragon/affiliatez-backend/internal/orders"
	"github.com/angelmondragon/affiliatez-backend/internal/payouts"
	"github.com/angelmondragon/affiliatez-backend/internal/stats"
	pkgAuth "github.com/angelmondragon/affiliatez-backend/pkg/auth"
	"github.com/angelmondragon/affiliatez-backend/pkg/config"
	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
	"github.com/angelmondragon/affiliatez-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubMerchantService struct {
	merchants.Service
}

func (stubMerchantService) FindByID(_ context.Context, id uuid.UUID) (*models.Merchant, error) {
	return &models.Merchant{ID: id, Domain: "shop.example", DisplayName: "Shop"}, nil
}

type stubAffiliateService struct {
	affiliates.Service
}

func (stubAffiliateService) ListByMerchant(context.Context, uuid.UUID) ([]models.Affiliate, error) {
	return nil, nil
}

type stubOrderService struct{}

func (stubOrderService) Ingest(context.Context, orders.Payload) (orders.Result, error) {
	return orders.Result{Outcome: orders.OutcomeIgnored}, nil
}

type stubStatsService struct{}

func (stubStatsService) Stats(context.Context, uuid.UUID, stats.Range) (stats.Stats, error) {
	return stats.Stats{Revenue: decimal.Zero, CommissionsOwed: decimal.Zero}, nil
}

type stubPayoutService struct{}

func (stubPayoutService) Payout(_ context.Context, id uuid.UUID) (payouts.Summary, error) {
	return payouts.Summary{AffiliateID: id}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "affiliatez-test", ExpirationMinutes: 60},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewIngestionMetrics(reg).Observe("created")

	router := NewRouter(
		cfg,
		logger.Nop(),
		map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}},
		reg,
		stubMerchantService{},
		stubAffiliateService{},
		stubOrderService{},
		stubStatsService{},
		stubPayoutService{},
	)
	return router, cfg
}

func merchantToken(t *testing.T, cfg *config.Config, role enums.AccountRole) string {
	t.Helper()
	merchantID := uuid.New()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		AccountID:  uuid.New(),
		MerchantID: &merchantID,
		Role:       role,
	})
	require.NoError(t, err)
	return token
}

func do(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router, _ := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health/ready", "", "").Code)

	resp := do(router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "affiliatez_ingestion_total")
}

func TestWebhookIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := do(router, http.MethodPost, "/api/v1/webhooks/orders", "", `{"order_id":"o-1"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"ignored"`)
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}

func TestMerchantRoutesRequireMerchantToken(t *testing.T) {
	router, cfg := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/api/v1/merchants/me/stats", "", "").Code)

	affiliateToken := merchantToken(t, cfg, enums.AccountRoleAffiliate)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/api/v1/merchants/me/stats", affiliateToken, "").Code)

	token := merchantToken(t, cfg, enums.AccountRoleMerchant)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/v1/merchants/me", token, "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/v1/merchants/me/stats?from=2024-01-01", token, "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/v1/merchants/me/affiliates", token, "").Code)
}
