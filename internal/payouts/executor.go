package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/pkg/db"
	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox/payloads"
)

// ErrAlreadyRequested means the order was handed over by another run, or was
// settled, after it was listed.
var ErrAlreadyRequested = errors.New("payout already requested for order")

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type requestMarker interface {
	MarkRequestedWithTx(tx *gorm.DB, order models.Order, requestedAt time.Time) (bool, error)
}

// OutboxExecutor hands orders to the settlement worker through the outbox.
// Each order is claimed and its event written in one transaction.
type OutboxExecutor struct {
	tx      db.TxRunner
	orders  requestMarker
	emitter eventEmitter
	now     func() time.Time
}

func NewOutboxExecutor(tx db.TxRunner, orders requestMarker, emitter eventEmitter) (*OutboxExecutor, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &OutboxExecutor{tx: tx, orders: orders, emitter: emitter, now: time.Now}, nil
}

func (e *OutboxExecutor) Submit(ctx context.Context, order models.Order) error {
	if order.AffiliateID == nil {
		return errors.New("order has no affiliate")
	}
	return e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, err := e.orders.MarkRequestedWithTx(tx, order, e.now().UTC())
		if err != nil {
			return fmt.Errorf("mark payout requested: %w", err)
		}
		if !claimed {
			return ErrAlreadyRequested
		}
		return e.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.PayoutRequestedEvent{
				OrderID:        order.ID,
				AffiliateID:    *order.AffiliateID,
				MerchantID:     order.MerchantID,
				CommissionOwed: order.CommissionOwed,
			},
		})
	})
}
