package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bid is immutable after creation except the single IsWinningBid flip
// performed by the closing sweep (at most one bid per auction carries it).
type Bid struct {
	BidID        uuid.UUID       `gorm:"column:bid_id;type:uuid;primaryKey" json:"bid_id"`
	AuctionID    uuid.UUID       `gorm:"column:auction_id;type:uuid;not null;index" json:"auction_id"`
	BidderID     uuid.UUID       `gorm:"column:bidder_id;type:uuid;not null;index" json:"bidder_id"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	IsWinningBid bool            `gorm:"column:is_winning_bid;not null;default:false" json:"is_winning_bid"`
	IPAddress    *string         `gorm:"column:ip_address" json:"-"`
	PlacedAt     time.Time       `gorm:"column:placed_at;not null" json:"placed_at"`
	CreatedAt    time.Time       `json:"createdAt"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Bid) TableName() string {
	return "Bids"
}

func (b *Bid) BeforeCreate(tx *gorm.DB) error {
	if b.BidID == uuid.Nil {
		b.BidID = uuid.New()
	}
	return nil
}
