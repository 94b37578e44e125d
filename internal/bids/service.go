package bids

import (
	"context"
	"encoding/json"
	"time"

	"carbid-backend/internal/domain"
	"carbid-backend/internal/notify"
	"carbid-backend/internal/pkg/lockmap"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	DB       *gorm.DB
	Locks    *lockmap.Map
	Notifier notify.NotificationSink
	Realtime notify.RealtimeSink
	Dispatch *notify.Dispatcher

	// Now is swappable for tests; nil means time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type PlaceBidInput struct {
	AuctionID uuid.UUID
	Amount    decimal.Decimal
	IPAddress *string
}

// PlaceBid validates and applies one bid against one auction. The whole
// read-validate-write runs under the auction's lock inside a single
// transaction; a rejection leaves no trace. Outbid and realtime notifications
// go through the dispatcher after the commit and cannot fail the bid.
func (s *Service) PlaceBid(ctx context.Context, bidderID uuid.UUID, in PlaceBidInput) (*notify.BidOutcome, error) {
	unlock := s.Locks.Lock(in.AuctionID)
	defer unlock()

	now := s.now()
	var (
		outcome        notify.BidOutcome
		previousBidder *uuid.UUID
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var auction domain.Auction
		if err := tx.Where("auction_id = ?", in.AuctionID).First(&auction).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &domain.NotFoundError{Entity: "Auction", Key: in.AuctionID}
			}
			return err
		}

		if auction.Status != domain.AuctionActive {
			return &domain.InvalidStateError{Reason: "auction not active"}
		}
		if !now.Before(auction.EndTime) {
			// Guards the race against the sweeper even before status flips.
			return &domain.InvalidStateError{Reason: "auction has ended"}
		}

		minimum := auction.CurrentBid.Add(auction.MinimumBidIncrement)
		if in.Amount.LessThan(minimum) {
			return &domain.InvalidAmountError{Minimum: minimum}
		}

		if auction.CurrentBidderID != nil && *auction.CurrentBidderID == bidderID {
			return &domain.InvalidStateError{Reason: "already current bidder"}
		}

		previousBidder = auction.CurrentBidderID

		bid := &domain.Bid{
			AuctionID: in.AuctionID,
			BidderID:  bidderID,
			Amount:    in.Amount,
			IPAddress: in.IPAddress,
			PlacedAt:  now,
		}
		if err := tx.Create(bid).Error; err != nil {
			return err
		}

		auction.CurrentBid = in.Amount
		auction.CurrentBidderID = &bidderID
		auction.TotalBids++

		// Anti-snipe: evaluated against the pre-bid end time, re-bases
		// forward from now. Each bid inside the window re-extends.
		timeExtended := false
		var newEndTime *time.Time
		remaining := auction.EndTime.Sub(now)
		if remaining <= time.Duration(auction.ExtensionThresholdMinutes)*time.Minute {
			auction.EndTime = now.Add(time.Duration(auction.ExtensionMinutes) * time.Minute)
			timeExtended = true
			end := auction.EndTime
			newEndTime = &end
		}

		if err := tx.Save(&auction).Error; err != nil {
			return err
		}

		eventData, _ := json.Marshal(map[string]interface{}{
			"bid_id":    bid.BidID,
			"bidder_id": bidderID,
			"amount":    in.Amount,
		})
		if err := tx.Create(&domain.AuctionEvent{
			AuctionID: in.AuctionID,
			EventType: domain.EventBidPlaced,
			EventData: datatypes.JSON(eventData),
		}).Error; err != nil {
			return err
		}
		if timeExtended {
			extData, _ := json.Marshal(map[string]interface{}{
				"new_end_time": auction.EndTime,
			})
			if err := tx.Create(&domain.AuctionEvent{
				AuctionID: in.AuctionID,
				EventType: domain.EventTimeExtended,
				EventData: datatypes.JSON(extData),
			}).Error; err != nil {
				return err
			}
		}

		outcome = notify.BidOutcome{
			BidID:         bid.BidID,
			Amount:        bid.Amount,
			NewCurrentBid: auction.CurrentBid,
			TotalBids:     auction.TotalBids,
			NewEndTime:    newEndTime,
			TimeExtended:  timeExtended,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	auctionID := in.AuctionID
	amount := in.Amount
	if previousBidder != nil && *previousBidder != bidderID {
		prev := *previousBidder
		s.Dispatch.Go("notify_outbid", func(ctx context.Context) error {
			return s.Notifier.NotifyOutbid(ctx, prev, auctionID, amount)
		})
	}
	out := outcome
	s.Dispatch.Go("broadcast_new_bid", func(ctx context.Context) error {
		return s.Realtime.BroadcastNewBid(ctx, auctionID, out)
	})

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("bidder_id", bidderID.String()).
		Str("amount", amount.StringFixed(2)).
		Bool("time_extended", outcome.TimeExtended).
		Msg("Bid accepted")

	return &outcome, nil
}

// GetUserBids returns the user's bids, newest first, with the total count.
func (s *Service) GetUserBids(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.Bid, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	q := s.DB.WithContext(ctx).Model(&domain.Bid{}).Where("bidder_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []domain.Bid
	if err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetWinningBid returns the flagged winning bid, or nil when the auction has
// not closed with a winner.
func (s *Service) GetWinningBid(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	var bid domain.Bid
	err := s.DB.WithContext(ctx).
		Where("auction_id = ? AND is_winning_bid = ?", auctionID, true).
		First(&bid).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &bid, nil
}
