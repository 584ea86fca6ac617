package enums

// OutboxAggregateType maps to the aggregate_type postgres enum.
type OutboxAggregateType string

const (
	AggregateAffiliate OutboxAggregateType = "affiliate"
	AggregateOrder     OutboxAggregateType = "order"
)

var aggregateTypes = set[OutboxAggregateType]{AggregateAffiliate, AggregateOrder}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// OutboxEventType maps to the event_type postgres enum. Each value has a
// descriptor in the outbox registry.
type OutboxEventType string

const (
	// EventAffiliateCreated drives the welcome notification.
	EventAffiliateCreated OutboxEventType = "affiliate_created"
	// EventPayoutRequested marks one order paid once the provider confirms.
	EventPayoutRequested OutboxEventType = "payout_requested"
)

var eventTypes = set[OutboxEventType]{EventAffiliateCreated, EventPayoutRequested}

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonUnroutable   OutboxDLQErrorReason = "unroutable"
)

var dlqReasons = set[OutboxDLQErrorReason]{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnroutable}

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.has(r) }
