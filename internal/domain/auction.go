package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Auction status values. Transitions are one-directional:
// Pending -> Active -> (Completed | Cancelled).
const (
	AuctionPending   = "pending"
	AuctionActive    = "active"
	AuctionCompleted = "completed"
	AuctionCancelled = "cancelled"
)

// Auction is the bid-acceptance state machine for one car.
// CurrentBid starts at StartingPrice and only increases; EndTime only moves
// forward (anti-snipe extension); OriginalEndTime is kept for audit.
type Auction struct {
	AuctionID                 uuid.UUID        `gorm:"column:auction_id;type:uuid;primaryKey" json:"auction_id"`
	CarID                     uuid.UUID        `gorm:"column:car_id;type:uuid;not null;index" json:"car_id"`
	StartingPrice             decimal.Decimal  `gorm:"column:starting_price;type:decimal(18,2);not null" json:"starting_price"`
	ReservePrice              *decimal.Decimal `gorm:"column:reserve_price;type:decimal(18,2)" json:"reserve_price"`
	MinimumBidIncrement       decimal.Decimal  `gorm:"column:minimum_bid_increment;type:decimal(18,2);not null" json:"minimum_bid_increment"`
	CurrentBid                decimal.Decimal  `gorm:"column:current_bid;type:decimal(18,2);not null" json:"current_bid"`
	CurrentBidderID           *uuid.UUID       `gorm:"column:current_bidder_id;type:uuid" json:"current_bidder_id"`
	StartTime                 time.Time        `gorm:"column:start_time;not null" json:"start_time"`
	EndTime                   time.Time        `gorm:"column:end_time;not null;index" json:"end_time"`
	OriginalEndTime           time.Time        `gorm:"column:original_end_time;not null" json:"original_end_time"`
	ExtensionMinutes          int              `gorm:"column:extension_minutes;not null;default:5" json:"extension_minutes"`
	ExtensionThresholdMinutes int              `gorm:"column:extension_threshold_minutes;not null;default:2" json:"extension_threshold_minutes"`
	TotalBids                 int              `gorm:"column:total_bids;not null;default:0" json:"total_bids"`
	Status                    string           `gorm:"column:status;type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt                 time.Time        `json:"createdAt"`
	UpdatedAt                 time.Time        `json:"updatedAt"`
	DeletedAt                 gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (Auction) TableName() string {
	return "Auctions"
}

func (a *Auction) BeforeCreate(tx *gorm.DB) error {
	if a.AuctionID == uuid.Nil {
		a.AuctionID = uuid.New()
	}
	return nil
}

// Terminal reports whether the auction can no longer change state.
func (a *Auction) Terminal() bool {
	return a.Status == AuctionCompleted || a.Status == AuctionCancelled
}

// ReserveMet is true when no reserve is set or the current bid reaches it.
func (a *Auction) ReserveMet() bool {
	return a.ReservePrice == nil || a.CurrentBid.GreaterThanOrEqual(*a.ReservePrice)
}
