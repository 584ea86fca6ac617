package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/affiliatez-backend/internal/payouts"
	pkgerrors "github.com/angelmondragon/affiliatez-backend/pkg/errors"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
)

const defaultSweepLimit = 500

type payableAffiliateLister interface {
	AffiliatesWithPayable(ctx context.Context, staleBefore time.Time, limit int) ([]uuid.UUID, error)
}

type payoutRunner interface {
	Payout(ctx context.Context, affiliateID uuid.UUID) (payouts.Summary, error)
	StaleBefore() time.Time
}

type PayoutSweepJobParams struct {
	Logger  *logger.Logger
	Orders  payableAffiliateLister
	Payouts payoutRunner
	Limit   int
}

// NewPayoutSweepJob pays affiliates with payable orders, the longest waiting
// first, up to Limit per run.
func NewPayoutSweepJob(params PayoutSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order lister required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	return &payoutSweepJob{
		logg:    params.Logger,
		orders:  params.Orders,
		payouts: params.Payouts,
		limit:   limit,
	}, nil
}

type payoutSweepJob struct {
	logg    *logger.Logger
	orders  payableAffiliateLister
	payouts payoutRunner
	limit   int
}

func (j *payoutSweepJob) Name() string { return "payout-sweep" }

func (j *payoutSweepJob) Run(ctx context.Context) error {
	affiliateIDs, err := j.orders.AffiliatesWithPayable(ctx, j.payouts.StaleBefore(), j.limit)
	if err != nil {
		return fmt.Errorf("list affiliates with payable orders: %w", err)
	}

	var (
		errs      error
		submitted int
		failed    int
		claimed   int
		skipped   int
	)
	for _, affiliateID := range affiliateIDs {
		summary, err := j.payouts.Payout(ctx, affiliateID)
		submitted += summary.Submitted
		failed += summary.Failed
		claimed += summary.Skipped
		if err == nil {
			continue
		}
		if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
			skipped++
			continue
		}
		errs = multierr.Append(errs, fmt.Errorf("affiliate %s: %w", affiliateID, err))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"affiliates": len(affiliateIDs),
		"submitted":  submitted,
		"failed":     failed,
		"claimed":    claimed,
		"locked":     skipped,
	})
	j.logg.Info(logCtx, "payout sweep complete")
	return errs
}
