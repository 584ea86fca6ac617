package enums

// NotificationType maps to the notification_type postgres enum.
type NotificationType string

// NotificationTypeAffiliateWelcome is sent once per affiliate account.
const NotificationTypeAffiliateWelcome NotificationType = "affiliate_welcome"

var notificationTypes = set[NotificationType]{NotificationTypeAffiliateWelcome}

func (n NotificationType) IsValid() bool { return notificationTypes.has(n) }
