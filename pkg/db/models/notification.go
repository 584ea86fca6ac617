package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/affiliatez-backend/pkg/enums"
)

// Notification stores in-app messages addressed to an affiliate account.
type Notification struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	AffiliateAccountID uuid.UUID              `gorm:"column:affiliate_account_id;type:uuid;not null"`
	Type               enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title              string                 `gorm:"column:title;not null"`
	Message            string                 `gorm:"column:message;not null"`
	ReadAt             *time.Time             `gorm:"column:read_at"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
