package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuctionEvent audit log. Rows are written inside the same transaction as the
// state change they describe.
const (
	EventBidPlaced        = "BID_PLACED"
	EventTimeExtended     = "TIME_EXTENDED"
	EventAuctionClosed    = "AUCTION_CLOSED"
	EventAuctionCancelled = "AUCTION_CANCELLED"
)

type AuctionEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	AuctionID uuid.UUID      `gorm:"column:auction_id;type:uuid;not null;index" json:"auction_id"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	EventData datatypes.JSON `gorm:"column:event_data;not null" json:"event_data"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (AuctionEvent) TableName() string {
	return "AuctionEvents"
}

func (e *AuctionEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
