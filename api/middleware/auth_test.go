package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/affiliatez-backend/pkg/auth"
	"github.com/angelmondragon/affiliatez-backend/pkg/config"
	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "affiliatez-test", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func mintTestToken(t *testing.T, payload auth.AccessTokenPayload) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), payload)
	require.NoError(t, err)
	return token
}

func serve(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())

	assert.Equal(t, http.StatusUnauthorized, serve(handler, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(handler, "Bearer invalid").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(handler, "Bearer ").Code)

	other := config.JWTConfig{Secret: "other", Issuer: testJWT.Issuer, ExpirationMinutes: 60}
	foreign, err := auth.MintAccessToken(other, time.Now(), auth.AccessTokenPayload{AccountID: uuid.New(), Role: enums.AccountRoleAffiliate})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(handler, "Bearer "+foreign).Code)
}

func TestAuthSeedsMerchantClaims(t *testing.T) {
	accountID, merchantID := uuid.New(), uuid.New()
	token := mintTestToken(t, auth.AccessTokenPayload{AccountID: accountID, MerchantID: &merchantID, Role: enums.AccountRoleMerchant})

	var (
		gotAccount  uuid.UUID
		gotMerchant uuid.UUID
		gotRole     enums.AccountRole
	)
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount, _ = AccountIDFromContext(r.Context())
		gotMerchant, _ = MerchantIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	resp := serve(handler, "bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, accountID, gotAccount)
	assert.Equal(t, merchantID, gotMerchant)
	assert.Equal(t, enums.AccountRoleMerchant, gotRole)
}

func TestRequireMerchantRejectsAffiliateTokens(t *testing.T) {
	handler := Auth(testJWT, nil)(RequireMerchant(nil)(okHandler()))

	affiliate := mintTestToken(t, auth.AccessTokenPayload{AccountID: uuid.New(), Role: enums.AccountRoleAffiliate})
	assert.Equal(t, http.StatusForbidden, serve(handler, "Bearer "+affiliate).Code)

	merchantID := uuid.New()
	merchant := mintTestToken(t, auth.AccessTokenPayload{AccountID: uuid.New(), MerchantID: &merchantID, Role: enums.AccountRoleMerchant})
	assert.Equal(t, http.StatusOK, serve(handler, "Bearer "+merchant).Code)
}

func TestRequestIDEchoesOrMints(t *testing.T) {
	handler := RequestID(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, "req-123", resp.Header().Get("X-Request-Id"))

	resp = serve(handler, "")
	_, err := uuid.Parse(resp.Header().Get("X-Request-Id"))
	assert.NoError(t, err)
}

func TestAcceptRequestID(t *testing.T) {
	id, ok := acceptRequestID("  abc-123  ")
	assert.True(t, ok)
	assert.Equal(t, "abc-123", id)

	for _, bad := range []string{"", "has space", "line\nbreak", "caf\u00e9", strings.Repeat("a", 129)} {
		_, ok := acceptRequestID(bad)
		assert.False(t, ok, bad)
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	resp := serve(handler, "")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, resp.Body.String(), "kaboom")
}
