package notifications

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/pkg/db"
	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox/payloads"
)

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OutboxNotifier queues an affiliate_created event for the welcome consumer.
type OutboxNotifier struct {
	tx      db.TxRunner
	emitter eventEmitter
}

func NewOutboxNotifier(tx db.TxRunner, emitter eventEmitter) (*OutboxNotifier, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &OutboxNotifier{tx: tx, emitter: emitter}, nil
}

func (n *OutboxNotifier) AffiliateCreated(ctx context.Context, event payloads.AffiliateCreatedEvent) error {
	return n.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return n.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAffiliateCreated,
			AggregateType: enums.AggregateAffiliate,
			AggregateID:   event.AffiliateID,
			Data:          event,
		})
	})
}
