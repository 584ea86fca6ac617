package notifications

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/affiliatez-backend/pkg/db/models"
	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox/payloads"
)

const welcomeConsumer = "affiliate-welcome"

type repository interface {
	CreateOnce(ctx context.Context, n *models.Notification) (bool, error)
}

// Consumer welcomes newly attributed affiliates.
type Consumer struct {
	repo         repository
	mailer       Mailer
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the affiliate welcome consumer.
func NewConsumer(repo repository, mailer Mailer, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		mailer:       mailer,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventAffiliateCreated) {
		c.logg.Info(logCtx, "skipping non-affiliate event")
		return processResult{ack: true}
	}

	var payload payloads.AffiliateCreatedEvent
	envelope, err := outbox.DecodeEnvelope(msg.Data, &payload)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	if payload.AccountID == uuid.Nil {
		c.logg.Warn(logCtx, "affiliate event without account id")
		return processResult{ack: true}
	}
	logCtx = c.logg.WithAffiliateID(logCtx, payload.AffiliateID.String())

	skipped, err := c.idempotency.Run(ctx, welcomeConsumer, eventID, func(ctx context.Context) error {
		return c.welcome(ctx, logCtx, payload)
	})
	if err != nil {
		c.logg.Error(logCtx, "welcome notification failed", err)
		return processResult{nack: true}
	}
	if skipped {
		c.logg.Info(logCtx, "event already processed")
	}
	return processResult{ack: true}
}

// welcome stores the in-app row at most once per account, then mails. A mail
// failure is retried on redelivery without duplicating the row.
func (c *Consumer) welcome(ctx, logCtx context.Context, payload payloads.AffiliateCreatedEvent) error {
	title, body := welcomeText(payload)
	created, err := c.repo.CreateOnce(ctx, &models.Notification{
		AffiliateAccountID: payload.AccountID,
		Type:               enums.NotificationTypeAffiliateWelcome,
		Title:              title,
		Message:            body,
	})
	if err != nil {
		return fmt.Errorf("store welcome notification: %w", err)
	}
	if !created {
		c.logg.Debug(logCtx, "welcome notification already stored")
	}
	if err := c.mailer.Send(ctx, Message{To: payload.Email, Subject: title, Body: body}); err != nil {
		return fmt.Errorf("send welcome email: %w", err)
	}
	c.logg.Info(logCtx, "affiliate welcomed")
	return nil
}

func welcomeText(payload payloads.AffiliateCreatedEvent) (string, string) {
	merchant := payload.MerchantName
	if merchant == "" {
		merchant = "our store"
	}
	title := fmt.Sprintf("Welcome to the %s affiliate program", merchant)
	greeting := "Hi"
	if payload.Name != "" {
		greeting = "Hi " + payload.Name
	}
	body := fmt.Sprintf("%s, you now earn commission on orders placed with your code %s.", greeting, payload.DiscountCode)
	if payload.DiscountCode == "" {
		body = fmt.Sprintf("%s, you now earn commission on orders you refer.", greeting)
	}
	return title, body
}
