// Package notify defines the boundary between the auction core and the
// delivery systems. The core calls these sinks strictly after commit, through
// the Dispatcher, and their failures never surface to bidders.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BidOutcome is the result of an accepted bid, returned to the bidder and
// broadcast to watchers.
type BidOutcome struct {
	BidID         uuid.UUID       `json:"bid_id"`
	Amount        decimal.Decimal `json:"amount"`
	NewCurrentBid decimal.Decimal `json:"new_current_bid"`
	TotalBids     int             `json:"total_bids"`
	NewEndTime    *time.Time      `json:"new_end_time,omitempty"`
	TimeExtended  bool            `json:"time_extended"`
}

// NotificationSink delivers per-user notifications (persisted rows, email).
type NotificationSink interface {
	NotifyOutbid(ctx context.Context, userID, auctionID uuid.UUID, newAmount decimal.Decimal) error
	NotifyWon(ctx context.Context, userID, auctionID uuid.UUID, finalPrice decimal.Decimal) error
	NotifyEndingSoon(ctx context.Context, auctionID uuid.UUID, minutesRemaining int) error
	NotifyCancelled(ctx context.Context, userID, auctionID uuid.UUID) error
}

// RealtimeSink pushes live updates to connected clients.
type RealtimeSink interface {
	BroadcastNewBid(ctx context.Context, auctionID uuid.UUID, outcome BidOutcome) error
	BroadcastClosed(ctx context.Context, auctionID uuid.UUID, winnerID *uuid.UUID, finalPrice decimal.Decimal) error
	BroadcastEndingSoon(ctx context.Context, auctionID uuid.UUID, minutesRemaining int) error
	BroadcastBatchClosed(ctx context.Context, count int) error
}

// NopNotifier and NopBroadcaster satisfy the sinks for wiring without Redis
// or a notification store (tests, local runs).
type NopNotifier struct{}

func (NopNotifier) NotifyOutbid(context.Context, uuid.UUID, uuid.UUID, decimal.Decimal) error {
	return nil
}
func (NopNotifier) NotifyWon(context.Context, uuid.UUID, uuid.UUID, decimal.Decimal) error {
	return nil
}
func (NopNotifier) NotifyEndingSoon(context.Context, uuid.UUID, int) error { return nil }
func (NopNotifier) NotifyCancelled(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastNewBid(context.Context, uuid.UUID, BidOutcome) error { return nil }
func (NopBroadcaster) BroadcastClosed(context.Context, uuid.UUID, *uuid.UUID, decimal.Decimal) error {
	return nil
}
func (NopBroadcaster) BroadcastEndingSoon(context.Context, uuid.UUID, int) error { return nil }
func (NopBroadcaster) BroadcastBatchClosed(context.Context, int) error           { return nil }
