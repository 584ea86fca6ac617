package enums

// PayoutStatus maps to the payout_status postgres enum. An order starts
// unpaid, becomes requested once handed to the payout executor, and only the
// payout consumer moves it to paid.
type PayoutStatus string

const (
	PayoutStatusUnpaid    PayoutStatus = "unpaid"
	PayoutStatusRequested PayoutStatus = "requested"
	PayoutStatusPaid      PayoutStatus = "paid"
)

var payoutStatuses = set[PayoutStatus]{PayoutStatusUnpaid, PayoutStatusRequested, PayoutStatusPaid}

func (s PayoutStatus) IsValid() bool { return payoutStatuses.has(s) }
