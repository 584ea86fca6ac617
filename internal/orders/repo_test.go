package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/internal/orders"
	"github.com/angelmondragon/affiliatez-backend/pkg/db/dbtest"
	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
)

var repoBase = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedOrder(t *testing.T, conn *gorm.DB, affiliateID uuid.UUID, status enums.PayoutStatus, created time.Time, requestedAt *time.Time) models.Order {
	t.Helper()
	order := models.Order{
		ExternalOrderID: uuid.NewString(),
		MerchantID:      uuid.New(),
		AffiliateID:     &affiliateID,
		CustomerEmail:   "buyer@example.com",
		Subtotal:        decimal.NewFromInt(100),
		CommissionRate:  decimal.RequireFromString("0.1"),
		CommissionOwed:  decimal.NewFromInt(10),
		PayoutStatus:    status,
		RequestedAt:     requestedAt,
		CreatedAt:       created,
	}
	require.NoError(t, conn.Create(&order).Error)
	return order
}

func orderIDs(rows []models.Order) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

func TestListPayableSkipsFreshRequests(t *testing.T) {
	conn := dbtest.Open(t)
	repo := orders.NewRepository(conn)
	ctx := context.Background()
	affiliateID := uuid.New()
	fresh := repoBase.Add(23 * time.Hour)
	stale := repoBase.Add(time.Hour)

	unpaid := seedOrder(t, conn, affiliateID, enums.PayoutStatusUnpaid, repoBase, nil)
	seedOrder(t, conn, affiliateID, enums.PayoutStatusRequested, repoBase.Add(time.Minute), &fresh)
	stuck := seedOrder(t, conn, affiliateID, enums.PayoutStatusRequested, repoBase.Add(2*time.Minute), &stale)
	seedOrder(t, conn, affiliateID, enums.PayoutStatusPaid, repoBase.Add(3*time.Minute), &stale)

	rows, err := repo.ListPayableByAffiliate(ctx, affiliateID, repoBase.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{unpaid.ID, stuck.ID}, orderIDs(rows))
}

func TestMarkRequestedClaimsOnce(t *testing.T) {
	client := dbtest.Client(t)
	repo := orders.NewRepository(client.DB())
	ctx := context.Background()
	order := seedOrder(t, client.DB(), uuid.New(), enums.PayoutStatusUnpaid, repoBase, nil)
	at := repoBase.Add(time.Hour)

	claim := func(listed models.Order) bool {
		var claimed bool
		require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			claimed, err = repo.MarkRequestedWithTx(tx, listed, at)
			return err
		}))
		return claimed
	}
	assert.True(t, claim(order))
	assert.False(t, claim(order), "a second run holding the same snapshot loses")

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusRequested, stored.PayoutStatus)
	require.NotNil(t, stored.RequestedAt)
	assert.True(t, claim(*stored), "a stale request can be re-claimed from its own row")

	changed, err := repo.MarkPaid(ctx, order.ID, at)
	require.NoError(t, err)
	assert.True(t, changed)
	paid, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, claim(*paid))
}

func TestAffiliatesWithPayableOldestFirst(t *testing.T) {
	conn := dbtest.Open(t)
	repo := orders.NewRepository(conn)
	recent := repoBase.Add(47 * time.Hour)

	newest, oldest, middle, waiting := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	seedOrder(t, conn, newest, enums.PayoutStatusUnpaid, repoBase.Add(3*time.Hour), nil)
	seedOrder(t, conn, oldest, enums.PayoutStatusUnpaid, repoBase, nil)
	seedOrder(t, conn, oldest, enums.PayoutStatusUnpaid, repoBase.Add(4*time.Hour), nil)
	seedOrder(t, conn, middle, enums.PayoutStatusUnpaid, repoBase.Add(time.Hour), nil)
	seedOrder(t, conn, waiting, enums.PayoutStatusRequested, repoBase.Add(-time.Hour), &recent)

	ids, err := repo.AffiliatesWithPayable(context.Background(), repoBase.Add(24*time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{oldest, middle, newest}, ids)

	limited, err := repo.AffiliatesWithPayable(context.Background(), repoBase.Add(24*time.Hour), 2)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{oldest, middle}, limited)
}
