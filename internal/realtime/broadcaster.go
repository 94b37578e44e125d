// Package realtime pushes live auction updates over Redis pub/sub. The live
// transport to browsers subscribes to these channels; the core only
// publishes. Delivery failures are the caller's (dispatcher's) to log.
package realtime

import (
	"context"
	"encoding/json"
	"time"

	"carbid-backend/internal/notify"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	// Per-auction channel for watchers of one auction.
	auctionChannelPrefix = "auction:"
	// Firehose channel for dashboards and list pages.
	eventsChannel = "auctions:events"
)

const (
	MsgNewBid      = "new_bid"
	MsgClosed      = "auction_closed"
	MsgEndingSoon  = "auction_ending_soon"
	MsgBatchClosed = "auctions_closed_batch"
)

type Broadcaster struct {
	Rdb *redis.Client
}

type envelope struct {
	Type      string      `json:"type"`
	AuctionID *uuid.UUID  `json:"auction_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func (b *Broadcaster) publish(ctx context.Context, auctionID *uuid.UUID, msgType string, payload interface{}) error {
	msg := envelope{
		Type:      msgType,
		AuctionID: auctionID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if auctionID != nil {
		if err := b.Rdb.Publish(ctx, auctionChannelPrefix+auctionID.String(), data).Err(); err != nil {
			return err
		}
	}
	return b.Rdb.Publish(ctx, eventsChannel, data).Err()
}

func (b *Broadcaster) BroadcastNewBid(ctx context.Context, auctionID uuid.UUID, outcome notify.BidOutcome) error {
	return b.publish(ctx, &auctionID, MsgNewBid, outcome)
}

func (b *Broadcaster) BroadcastClosed(ctx context.Context, auctionID uuid.UUID, winnerID *uuid.UUID, finalPrice decimal.Decimal) error {
	return b.publish(ctx, &auctionID, MsgClosed, map[string]interface{}{
		"winner_id":   winnerID,
		"final_price": finalPrice,
	})
}

func (b *Broadcaster) BroadcastEndingSoon(ctx context.Context, auctionID uuid.UUID, minutesRemaining int) error {
	return b.publish(ctx, &auctionID, MsgEndingSoon, map[string]interface{}{
		"minutes_remaining": minutesRemaining,
	})
}

func (b *Broadcaster) BroadcastBatchClosed(ctx context.Context, count int) error {
	return b.publish(ctx, nil, MsgBatchClosed, map[string]interface{}{
		"count": count,
	})
}
