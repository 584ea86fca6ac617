package payouts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/internal/orders"
	"github.com/angelmondragon/affiliatez-backend/pkg/db"
	"github.com/angelmondragon/affiliatez-backend/pkg/db/dbtest"
	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
	"github.com/angelmondragon/affiliatez-backend/pkg/metrics"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox/payloads"
)

type memoryLocks struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryLocks() *memoryLocks {
	return &memoryLocks{keys: map[string]string{}}
}

func (m *memoryLocks) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = value.(string)
	return true, nil
}

func (m *memoryLocks) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.keys[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryLocks) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memoryLocks) LockKey(parts ...string) string {
	return "afz:lock:" + strings.Join(parts, ":")
}

type recordingExecutor struct {
	submitted []uuid.UUID
	failOn    map[uuid.UUID]bool
}

func (r *recordingExecutor) Submit(_ context.Context, order models.Order) error {
	r.submitted = append(r.submitted, order.ID)
	if r.failOn[order.ID] {
		return errors.New("executor unavailable")
	}
	return nil
}

type payoutFixture struct {
	db          *gorm.DB
	affiliateID uuid.UUID
	unpaid      []uuid.UUID
	paid        uuid.UUID
}

func seedOrders(t *testing.T) payoutFixture {
	t.Helper()
	conn := dbtest.Open(t)
	fx := payoutFixture{db: conn, affiliateID: uuid.New()}
	merchantID := uuid.New()
	other := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	insert := func(ext string, affiliate uuid.UUID, status enums.PayoutStatus, offset time.Duration) uuid.UUID {
		order := models.Order{
			ExternalOrderID: ext,
			MerchantID:      merchantID,
			AffiliateID:     &affiliate,
			CustomerEmail:   "buyer@example.com",
			Subtotal:        decimal.NewFromInt(100),
			CommissionRate:  decimal.RequireFromString("0.1"),
			CommissionOwed:  decimal.NewFromInt(10),
			PayoutStatus:    status,
			CreatedAt:       base.Add(offset),
		}
		require.NoError(t, conn.Create(&order).Error)
		return order.ID
	}

	fx.unpaid = append(fx.unpaid, insert("ord-1", fx.affiliateID, enums.PayoutStatusUnpaid, 0))
	fx.unpaid = append(fx.unpaid, insert("ord-2", fx.affiliateID, enums.PayoutStatusUnpaid, time.Hour))
	fx.paid = insert("ord-3", fx.affiliateID, enums.PayoutStatusPaid, 2*time.Hour)
	insert("ord-4", other, enums.PayoutStatusUnpaid, 0)
	return fx
}

func newTestService(t *testing.T, fx payoutFixture, exec Executor, locks *memoryLocks, m *metrics.PayoutMetrics) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Orders:   orders.NewRepository(fx.db),
		Executor: exec,
		Locks:    locks,
		Metrics:  m,
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func TestPayoutSubmitsOnlyPayableOrders(t *testing.T) {
	fx := seedOrders(t)
	exec := &recordingExecutor{}
	locks := newMemoryLocks()
	svc := newTestService(t, fx, exec, locks, nil)

	summary, err := svc.Payout(context.Background(), fx.affiliateID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Submitted)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, fx.unpaid, exec.submitted)
	assert.NotContains(t, exec.submitted, fx.paid)
	assert.Empty(t, locks.keys, "lock released after run")
}

func TestPayoutKeepsGoingAfterFailedSubmission(t *testing.T) {
	fx := seedOrders(t)
	exec := &recordingExecutor{failOn: map[uuid.UUID]bool{fx.unpaid[0]: true}}
	reg := prometheus.NewRegistry()
	svc := newTestService(t, fx, exec, newMemoryLocks(), metrics.NewPayoutMetrics(reg))

	summary, err := svc.Payout(context.Background(), fx.affiliateID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	assert.Len(t, exec.submitted, 2)
	assert.Equal(t, 1, summary.Submitted)
	assert.Equal(t, 1, summary.Failed)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		values[mf.GetName()] = mf.GetMetric()[0].GetCounter().GetValue()
	}
	assert.Equal(t, 1.0, values["affiliatez_payouts_submitted_total"])
	assert.Equal(t, 1.0, values["affiliatez_payouts_failed_total"])
}

func TestPayoutRejectsOverlappingRun(t *testing.T) {
	fx := seedOrders(t)
	exec := &recordingExecutor{}
	locks := newMemoryLocks()
	locks.keys[locks.LockKey("payout", fx.affiliateID.String())] = "someone-else"
	svc := newTestService(t, fx, exec, locks, nil)

	_, err := svc.Payout(context.Background(), fx.affiliateID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
	assert.Empty(t, exec.submitted)
	assert.Equal(t, "someone-else", locks.keys[locks.LockKey("payout", fx.affiliateID.String())])
}

func TestPayoutWithNothingUnpaid(t *testing.T) {
	fx := seedOrders(t)
	exec := &recordingExecutor{}
	svc := newTestService(t, fx, exec, newMemoryLocks(), nil)

	summary, err := svc.Payout(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, summary.Submitted)
	assert.Empty(t, exec.submitted)

	_, err = svc.Payout(context.Background(), uuid.Nil)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Orders: orders.NewRepository(nil)})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Orders: orders.NewRepository(nil), Executor: &recordingExecutor{}})
	assert.Error(t, err)
}

func newOutboxExecutor(t *testing.T, conn *gorm.DB, now time.Time) *OutboxExecutor {
	t.Helper()
	client := db.NewFromGorm(conn)
	exec, err := NewOutboxExecutor(client, orders.NewRepository(conn), outbox.NewService(outbox.NewRepository(conn), logger.Nop()))
	require.NoError(t, err)
	exec.now = func() time.Time { return now }
	return exec
}

func TestOutboxExecutorWritesOneEventPerOrder(t *testing.T) {
	fx := seedOrders(t)
	exec := newOutboxExecutor(t, fx.db, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var listed, paid models.Order
	require.NoError(t, fx.db.First(&listed, "id = ?", fx.unpaid[0]).Error)
	require.NoError(t, fx.db.First(&paid, "id = ?", fx.paid).Error)

	require.NoError(t, exec.Submit(ctx, listed))
	assert.ErrorIs(t, exec.Submit(ctx, listed), ErrAlreadyRequested)
	assert.ErrorIs(t, exec.Submit(ctx, paid), ErrAlreadyRequested)
	assert.Error(t, exec.Submit(ctx, models.Order{ID: uuid.New()}))

	var rows []models.OutboxEvent
	require.NoError(t, fx.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventPayoutRequested, rows[0].EventType)
	assert.Equal(t, enums.AggregateOrder, rows[0].AggregateType)
	assert.Equal(t, listed.ID, rows[0].AggregateID)

	var data payloads.PayoutRequestedEvent
	_, err := outbox.DecodeEnvelope(rows[0].Payload, &data)
	require.NoError(t, err)
	assert.Equal(t, listed.ID, data.OrderID)
	assert.Equal(t, fx.affiliateID, data.AffiliateID)
	assert.True(t, decimal.NewFromInt(10).Equal(data.CommissionOwed))

	var stored models.Order
	require.NoError(t, fx.db.First(&stored, "id = ?", listed.ID).Error)
	assert.Equal(t, enums.PayoutStatusRequested, stored.PayoutStatus)
	require.NotNil(t, stored.RequestedAt)
}

func TestPayoutWaitsForSettlementBeforeResubmitting(t *testing.T) {
	fx := seedOrders(t)
	requestedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	now := requestedAt
	exec := newOutboxExecutor(t, fx.db, requestedAt)
	svc, err := NewService(ServiceParams{
		Orders:        orders.NewRepository(fx.db),
		Executor:      exec,
		Locks:         newMemoryLocks(),
		Logger:        logger.Nop(),
		Now:           func() time.Time { return now },
		ResubmitAfter: 12 * time.Hour,
	})
	require.NoError(t, err)
	ctx := context.Background()
	countEvents := func() int64 {
		var n int64
		require.NoError(t, fx.db.Model(&models.OutboxEvent{}).Count(&n).Error)
		return n
	}

	first, err := svc.Payout(ctx, fx.affiliateID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Submitted)
	assert.Equal(t, int64(2), countEvents())

	now = requestedAt.Add(time.Hour)
	again, err := svc.Payout(ctx, fx.affiliateID)
	require.NoError(t, err)
	assert.Zero(t, again.Submitted, "requested orders are not resubmitted while settlement is pending")
	assert.Equal(t, int64(2), countEvents())

	now = requestedAt.Add(13 * time.Hour)
	exec.now = func() time.Time { return now }
	stale, err := svc.Payout(ctx, fx.affiliateID)
	require.NoError(t, err)
	assert.Equal(t, 2, stale.Submitted, "unsettled requests are retried after the resubmit window")
	assert.Equal(t, int64(4), countEvents())
}

type claimedExecutor struct{}

func (claimedExecutor) Submit(context.Context, models.Order) error { return ErrAlreadyRequested }

func TestPayoutCountsOrdersClaimedElsewhere(t *testing.T) {
	fx := seedOrders(t)
	svc := newTestService(t, fx, claimedExecutor{}, newMemoryLocks(), nil)

	summary, err := svc.Payout(context.Background(), fx.affiliateID)
	require.NoError(t, err)
	assert.Zero(t, summary.Submitted)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 2, summary.Skipped)
}
