package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification types.
const (
	NotifyOutbid           = "outbid"
	NotifyAuctionWon       = "auction_won"
	NotifyAuctionEnding    = "auction_ending"
	NotifyAuctionCancelled = "auction_cancelled"
)

type Notification struct {
	NotificationID uuid.UUID      `gorm:"column:notification_id;type:uuid;primaryKey" json:"notification_id"`
	UserID         uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Type           string         `gorm:"column:type;type:varchar(30);not null" json:"type"`
	Title          string         `gorm:"column:title;not null" json:"title"`
	Message        string         `gorm:"column:message;not null" json:"message"`
	AuctionID      *uuid.UUID     `gorm:"column:auction_id;type:uuid" json:"auction_id"`
	IsRead         bool           `gorm:"column:is_read;not null;default:false" json:"is_read"`
	ReadAt         *time.Time     `gorm:"column:read_at" json:"read_at"`
	CreatedAt      time.Time      `json:"createdAt"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Notification) TableName() string {
	return "Notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.NotificationID == uuid.Nil {
		n.NotificationID = uuid.New()
	}
	return nil
}
