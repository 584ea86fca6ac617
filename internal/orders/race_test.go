package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/internal/affiliates"
	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
)

type fakeMerchants struct{ merchant *models.Merchant }

func (f fakeMerchants) FindByDomain(context.Context, string) (*models.Merchant, error) {
	return f.merchant, nil
}

type fakeAffiliates struct{ affiliate *models.Affiliate }

func (f fakeAffiliates) Attribute(context.Context, *models.Merchant, string, string) (*affiliates.Attribution, error) {
	return &affiliates.Attribution{Affiliate: f.affiliate}, nil
}

func (f fakeAffiliates) SaveWithTx(*gorm.DB, *affiliates.Attribution) error { return nil }

func (f fakeAffiliates) Announce(context.Context, *models.Merchant, *affiliates.Attribution) {}

type scriptedRepo struct {
	lookups   int
	winner    *models.Order
	createErr error
}

func (r *scriptedRepo) FindByExternalID(context.Context, string) (*models.Order, error) {
	r.lookups++
	if r.lookups == 1 || r.winner == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.winner, nil
}

func (r *scriptedRepo) FindByID(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *scriptedRepo) CreateWithTx(*gorm.DB, *models.Order) error { return r.createErr }

func (r *scriptedRepo) ListPayableByAffiliate(context.Context, uuid.UUID, time.Time) ([]models.Order, error) {
	return nil, nil
}

func (r *scriptedRepo) AffiliatesWithPayable(context.Context, time.Time, int) ([]uuid.UUID, error) {
	return nil, nil
}

func (r *scriptedRepo) MarkPaid(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func newScriptedService(t *testing.T, repo *scriptedRepo) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:       repo,
		Merchants:  fakeMerchants{merchant: &models.Merchant{ID: uuid.New()}},
		Affiliates: fakeAffiliates{affiliate: &models.Affiliate{ID: uuid.New(), CommissionRate: decimal.RequireFromString("0.2")}},
		Tx:         passthroughTx{},
	})
	require.NoError(t, err)
	return svc
}

func validPayload() Payload {
	s := func(v string) *string { return &v }
	subtotal := decimal.RequireFromString("50")
	return Payload{
		OrderID:        s("ext-9"),
		SubtotalPrice:  NewAmount(subtotal),
		MerchantDomain: s("shop.example.com"),
		DiscountCode:   s(""),
		CustomerEmail:  s("buyer@example.com"),
		CustomerName:   s("Buyer"),
	}
}

func TestIngestResolvesConcurrentInsertAsDuplicate(t *testing.T) {
	winner := &models.Order{ID: uuid.New(), ExternalOrderID: "ext-9"}
	repo := &scriptedRepo{winner: winner, createErr: gorm.ErrDuplicatedKey}

	res, err := newScriptedService(t, repo).Ingest(context.Background(), validPayload())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, winner.ID, res.Order.ID)
	assert.Equal(t, 2, repo.lookups)
}

func TestIngestSurfacesPersistenceFailure(t *testing.T) {
	repo := &scriptedRepo{createErr: errors.New("connection reset")}

	_, err := newScriptedService(t, repo).Ingest(context.Background(), validPayload())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePersistence, pkgerrors.CodeOf(err))
	assert.True(t, pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).Retryable)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Repo: &scriptedRepo{}, Merchants: fakeMerchants{}})
	assert.Error(t, err)
}
