package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
)

type signupBody struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,max=8"`
}

func jsonRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	var body signupBody
	err := DecodeJSONBody(jsonRequest(`{"email":"nope","name":"averyverylongname"}`), &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{
		"email": "must be a valid email",
		"name":  "must be at most 8",
	}, typed.Details())
}

type rateBody struct {
	Rate     *decimal.Decimal `json:"rate" validate:"required,gte=0,lte=1"`
	Optional *decimal.Decimal `json:"optional" validate:"omitempty,gte=0,lte=1"`
}

func TestDecodeJSONBodyBoundsDecimals(t *testing.T) {
	var body rateBody
	require.NoError(t, DecodeJSONBody(jsonRequest(`{"rate":"0"}`), &body))
	assert.True(t, body.Rate.IsZero())
	assert.Nil(t, body.Optional)

	err := DecodeJSONBody(jsonRequest(`{"rate":"1.5","optional":"-0.1"}`), &rateBody{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{
		"rate":     "must be 1 or less",
		"optional": "must be 0 or more",
	}, typed.Details())

	err = DecodeJSONBody(jsonRequest(`{}`), &rateBody{})
	require.NotNil(t, pkgerrors.As(err))
	assert.Equal(t, map[string]string{"rate": "is required"}, pkgerrors.As(err).Details())
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var body signupBody
	err := DecodeJSONBody(jsonRequest(`{"email":"a@b.co","name":"ann","extra":1}`), &body)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDecodeWebhookBodyIgnoresUnknownFields(t *testing.T) {
	var body signupBody
	require.NoError(t, DecodeWebhookBody(jsonRequest(`{"email":"a@b.co","line_items":[1,2]}`), &body))
	assert.Equal(t, "a@b.co", body.Email)

	err := DecodeWebhookBody(jsonRequest(`{"email":`), &body)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestParseQueryDate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2026-03-02&to=03/04/2026", nil)

	from, err := ParseQueryDate(req, "from")
	require.NoError(t, err)
	require.NotNil(t, from)
	assert.True(t, from.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))

	_, err = ParseQueryDate(req, "to")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	missing, err := ParseQueryDate(req, "since")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Acme", SanitizeString("  Acme  ", 10))
	assert.Equal(t, "Acm", SanitizeString("Acme", 3))
}
