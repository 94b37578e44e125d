package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AuctionHistory is the final-outcome record, created exactly once per closed
// auction by the expiry sweep. WinnerID is nil when the reserve was not met
// or nobody bid.
type AuctionHistory struct {
	HistoryID          uuid.UUID       `gorm:"column:history_id;type:uuid;primaryKey" json:"history_id"`
	AuctionID          uuid.UUID       `gorm:"column:auction_id;type:uuid;not null;uniqueIndex" json:"auction_id"`
	WinnerID           *uuid.UUID      `gorm:"column:winner_id;type:uuid" json:"winner_id"`
	FinalPrice         decimal.Decimal `gorm:"column:final_price;type:decimal(18,2);not null" json:"final_price"`
	TotalBids          int             `gorm:"column:total_bids;not null" json:"total_bids"`
	UniqueParticipants int             `gorm:"column:unique_participants;not null" json:"unique_participants"`
	CompletedAt        time.Time       `gorm:"column:completed_at;not null" json:"completed_at"`
	ReserveMet         bool            `gorm:"column:reserve_met;not null" json:"reserve_met"`
	CreatedAt          time.Time       `json:"createdAt"`
}

func (AuctionHistory) TableName() string {
	return "AuctionHistories"
}

func (h *AuctionHistory) BeforeCreate(tx *gorm.DB) error {
	if h.HistoryID == uuid.Nil {
		h.HistoryID = uuid.New()
	}
	return nil
}
