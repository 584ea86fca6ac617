package payouts

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox/payloads"
)

const settlementConsumer = "payout-settlement"

type orderSettler interface {
	MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// Consumer settles payout_requested events by marking the order paid.
type Consumer struct {
	orders       orderSettler
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

func NewConsumer(orders orderSettler, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if orders == nil {
		return nil, fmt.Errorf("order settler required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("payouts subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{orders: orders, subscription: subscription, idempotency: manager, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked.
func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) bool {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
		"consumer":   settlementConsumer,
	})

	if eventType != string(enums.EventPayoutRequested) {
		c.logg.Info(logCtx, "skipping non-payout event")
		return true
	}

	var payload payloads.PayoutRequestedEvent
	envelope, err := outbox.DecodeEnvelope(msg.Data, &payload)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payout event", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil || payload.OrderID == uuid.Nil {
		c.logg.Error(logCtx, "payout event missing identifiers", err)
		return true
	}
	logCtx = c.logg.WithField(logCtx, "order_id", payload.OrderID.String())

	skipped, err := c.idempotency.Run(ctx, settlementConsumer, eventID, func(ctx context.Context) error {
		changed, err := c.orders.MarkPaid(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		if changed {
			c.logg.Info(logCtx, "order commission settled")
		} else {
			c.logg.Info(logCtx, "order already settled")
		}
		return nil
	})
	if err != nil {
		c.logg.Error(logCtx, "payout settlement failed", err)
		return false
	}
	if skipped {
		c.logg.Info(logCtx, "event already processed")
	}
	return true
}
