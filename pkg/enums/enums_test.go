package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayoutStatus(t *testing.T) {
	assert.True(t, PayoutStatusUnpaid.IsValid())
	assert.True(t, PayoutStatusRequested.IsValid())
	assert.False(t, PayoutStatus("refunded").IsValid())
}

func TestOutboxTypes(t *testing.T) {
	assert.True(t, EventPayoutRequested.IsValid())
	assert.False(t, OutboxEventType("order_created").IsValid())
	assert.True(t, AggregateAffiliate.IsValid())
	assert.False(t, OutboxAggregateType("store").IsValid())
	assert.True(t, OutboxDLQReasonUnroutable.IsValid())
	assert.False(t, OutboxDLQErrorReason("timeout").IsValid())
}

func TestAccountRole(t *testing.T) {
	_, err := ParseAccountRole("admin")
	assert.EqualError(t, err, `invalid account role "admin"`)
	role, err := ParseAccountRole("merchant")
	require.NoError(t, err)
	assert.Equal(t, AccountRoleMerchant, role)
}

func TestNotificationType(t *testing.T) {
	assert.True(t, NotificationTypeAffiliateWelcome.IsValid())
	assert.False(t, NotificationType("payout_settled").IsValid())
}
