package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
	"github.com/angelmondragon/affiliatez-backend/pkg/metrics"
	"github.com/angelmondragon/affiliatez-backend/pkg/redis"
)

const (
	defaultLockTTL       = 5 * time.Minute
	defaultResubmitAfter = 24 * time.Hour
)

// Executor accepts one order at a time and settles it asynchronously. Submit
// returns ErrAlreadyRequested when the order was claimed by someone else.
type Executor interface {
	Submit(ctx context.Context, order models.Order) error
}

type orderReader interface {
	ListPayableByAffiliate(ctx context.Context, affiliateID uuid.UUID, staleBefore time.Time) ([]models.Order, error)
}

type lockStore interface {
	redis.LockStore
	LockKey(parts ...string) string
}

// Summary reports how many payable orders were handed to the executor.
// Skipped orders were claimed by a concurrent run.
type Summary struct {
	AffiliateID uuid.UUID `json:"affiliate_id"`
	Submitted   int       `json:"submitted"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
}

type ServiceParams struct {
	Orders   orderReader
	Executor Executor
	Locks    lockStore
	LockTTL  time.Duration
	Metrics  *metrics.PayoutMetrics
	Logger   *logger.Logger
	Now      func() time.Time

	// ResubmitAfter bounds how long a requested order may wait for settlement
	// before it is submitted again.
	ResubmitAfter time.Duration
}

// Service selects payable orders and submits each one on its own.
type Service struct {
	orders        orderReader
	executor      Executor
	locks         lockStore
	lockTTL       time.Duration
	resubmitAfter time.Duration
	metrics       *metrics.PayoutMetrics
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Executor == nil {
		return nil, fmt.Errorf("payout executor required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock store required")
	}
	svc := &Service{
		orders:        params.Orders,
		executor:      params.Executor,
		locks:         params.Locks,
		lockTTL:       params.LockTTL,
		resubmitAfter: params.ResubmitAfter,
		metrics:       params.Metrics,
		logg:          params.Logger,
		now:           params.Now,
	}
	if svc.lockTTL <= 0 {
		svc.lockTTL = defaultLockTTL
	}
	if svc.resubmitAfter <= 0 {
		svc.resubmitAfter = defaultResubmitAfter
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	return svc, nil
}

// Payout submits every payable order of the affiliate. A failed submission does
// not stop the others; failures are returned together once all were tried.
func (s *Service) Payout(ctx context.Context, affiliateID uuid.UUID) (Summary, error) {
	summary := Summary{AffiliateID: affiliateID}
	if affiliateID == uuid.Nil {
		return summary, pkgerrors.New(pkgerrors.CodeValidation, "affiliate id is required")
	}
	ctx = s.logg.WithAffiliateID(ctx, affiliateID.String())

	lock, err := redis.NewLock(s.locks, s.locks.LockKey("payout", affiliateID.String()), s.lockTTL)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build payout lock")
	}
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire payout lock")
	}
	if !acquired {
		return summary, pkgerrors.New(pkgerrors.CodeConflict, "payout already in progress for affiliate")
	}
	defer func() {
		if relErr := lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release payout lock", relErr)
		}
	}()

	payable, err := s.orders.ListPayableByAffiliate(ctx, affiliateID, s.StaleBefore())
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payable orders")
	}

	var failures error
	for _, order := range payable {
		err := s.executor.Submit(ctx, order)
		if errors.Is(err, ErrAlreadyRequested) {
			summary.Skipped++
			continue
		}
		if err != nil {
			summary.Failed++
			failures = multierr.Append(failures, fmt.Errorf("order %s: %w", order.ID, err))
			s.logg.Error(s.logg.WithField(ctx, "order_id", order.ID.String()), "payout submission failed", err)
			continue
		}
		summary.Submitted++
	}
	s.metrics.AddSubmitted(summary.Submitted)
	s.metrics.AddFailed(summary.Failed)

	ctx = s.logg.WithFields(ctx, map[string]any{
		"submitted": summary.Submitted,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	})
	s.logg.Info(ctx, "payout run finished")

	if failures != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, failures, "some payouts were not submitted")
	}
	return summary, nil
}

// StaleBefore is the cutoff under which a requested order counts as payable again.
func (s *Service) StaleBefore() time.Time {
	return s.now().UTC().Add(-s.resubmitAfter)
}
