package auctions

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

const endingSoonWindow = 5 * time.Minute

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

type CreateAuctionInput struct {
	CarID                     uuid.UUID
	StartingPrice             decimal.Decimal
	ReservePrice              *decimal.Decimal
	MinimumBidIncrement       decimal.Decimal
	StartTime                 time.Time
	EndTime                   time.Time
	ExtensionMinutes          int
	ExtensionThresholdMinutes int
}

// Create opens an auction for a car. A car can have at most one non-terminal
// (pending or active) auction at a time.
func (s *Service) Create(ctx context.Context, in CreateAuctionInput) (*domain.Auction, error) {
	if !in.EndTime.After(in.StartTime) {
		return nil, &domain.InvalidStateError{Reason: "end time must be after start time"}
	}

	var car domain.Car
	if err := s.DB.WithContext(ctx).Where("car_id = ?", in.CarID).First(&car).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &domain.NotFoundError{Entity: "Car", Key: in.CarID}
		}
		return nil, err
	}

	var existing int64
	if err := s.DB.WithContext(ctx).Model(&domain.Auction{}).
		Where("car_id = ? AND status IN ?", in.CarID, []string{domain.AuctionPending, domain.AuctionActive}).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, &domain.ConflictError{Reason: "car already has an open auction"}
	}

	now := s.now()
	status := domain.AuctionPending
	if !in.StartTime.After(now) {
		status = domain.AuctionActive
	}

	extMin := in.ExtensionMinutes
	if extMin <= 0 {
		extMin = 5
	}
	extThreshold := in.ExtensionThresholdMinutes
	if extThreshold <= 0 {
		extThreshold = 2
	}
	increment := in.MinimumBidIncrement
	if increment.IsZero() {
		increment = decimal.NewFromInt(100)
	}

	auction := &domain.Auction{
		CarID:                     in.CarID,
		StartingPrice:             in.StartingPrice,
		ReservePrice:              in.ReservePrice,
		MinimumBidIncrement:       increment,
		CurrentBid:                in.StartingPrice,
		StartTime:                 in.StartTime.UTC(),
		EndTime:                   in.EndTime.UTC(),
		OriginalEndTime:           in.EndTime.UTC(),
		ExtensionMinutes:          extMin,
		ExtensionThresholdMinutes: extThreshold,
		Status:                    status,
	}
	if err := s.DB.WithContext(ctx).Create(auction).Error; err != nil {
		return nil, err
	}
	return auction, nil
}

type UpdateAuctionInput struct {
	StartingPrice             *decimal.Decimal
	ReservePrice              *decimal.Decimal
	MinimumBidIncrement       *decimal.Decimal
	StartTime                 *time.Time
	EndTime                   *time.Time
	ExtensionMinutes          *int
	ExtensionThresholdMinutes *int
}

// Update applies a partial update. Active auctions with bids are immutable so
// the rules cannot change under bidders. A new end time is a fresh baseline:
// original_end_time moves with it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateAuctionInput) (*domain.Auction, error) {
	unlock := s.Locks.Lock(id)
	defer unlock()

	var auction domain.Auction
	if err := s.DB.WithContext(ctx).Where("auction_id = ?", id).First(&auction).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &domain.NotFoundError{Entity: "Auction", Key: id}
		}
		return nil, err
	}

	if auction.Status == domain.AuctionActive && auction.TotalBids > 0 {
		return nil, &domain.InvalidStateError{Reason: "cannot modify an active auction with bids"}
	}

	if in.StartingPrice != nil {
		auction.StartingPrice = *in.StartingPrice
		auction.CurrentBid = *in.StartingPrice
	}
	if in.ReservePrice != nil {
		auction.ReservePrice = in.ReservePrice
	}
	if in.MinimumBidIncrement != nil {
		auction.MinimumBidIncrement = *in.MinimumBidIncrement
	}
	if in.StartTime != nil {
		auction.StartTime = in.StartTime.UTC()
	}
	if in.EndTime != nil {
		auction.EndTime = in.EndTime.UTC()
		auction.OriginalEndTime = in.EndTime.UTC()
	}
	if in.ExtensionMinutes != nil {
		auction.ExtensionMinutes = *in.ExtensionMinutes
	}
	if in.ExtensionThresholdMinutes != nil {
		auction.ExtensionThresholdMinutes = *in.ExtensionThresholdMinutes
	}

	if err := s.DB.WithContext(ctx).Save(&auction).Error; err != nil {
		return nil, err
	}
	return &auction, nil
}

// Cancel marks the auction cancelled (terminal, no history row) and notifies
// every distinct bidder once.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	unlock := s.Locks.Lock(id)
	defer unlock()

	var bidders []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var auction domain.Auction
		if err := tx.Where("auction_id = ?", id).First(&auction).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &domain.NotFoundError{Entity: "Auction", Key: id}
			}
			return err
		}
		if auction.Status == domain.AuctionCompleted {
			return &domain.InvalidStateError{Reason: "cannot cancel a completed auction"}
		}

		auction.Status = domain.AuctionCancelled
		if err := tx.Save(&auction).Error; err != nil {
			return err
		}

		eventData, _ := json.Marshal(map[string]interface{}{
			"total_bids": auction.TotalBids,
		})
		if err := tx.Create(&domain.AuctionEvent{
			AuctionID: id,
			EventType: domain.EventAuctionCancelled,
			EventData: datatypes.JSON(eventData),
		}).Error; err != nil {
			return err
		}

		return tx.Model(&domain.Bid{}).
			Where("auction_id = ?", id).
			Distinct("bidder_id").
			Pluck("bidder_id", &bidders).Error
	})
	if err != nil {
		return err
	}

	for _, bidderID := range bidders {
		b := bidderID
		s.Dispatch.Go("notify_cancelled", func(ctx context.Context) error {
			return s.Notifier.NotifyCancelled(ctx, b, id)
		})
	}

	log.Info().Str("auction_id", id.String()).Int("bidders", len(bidders)).Msg("Auction cancelled")
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	var auction domain.Auction
	if err := s.DB.WithContext(ctx).Where("auction_id = ?", id).First(&auction).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &domain.NotFoundError{Entity: "Auction", Key: id}
		}
		return nil, err
	}
	return &auction, nil
}

// List returns auctions, optionally filtered by status, ending soonest first.
func (s *Service) List(ctx context.Context, status string, page, pageSize int) ([]domain.Auction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := s.DB.WithContext(ctx).Model(&domain.Auction{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []domain.Auction
	if err := q.Order("end_time ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetBids returns all bids on an auction, highest first.
func (s *Service) GetBids(ctx context.Context, auctionID uuid.UUID) ([]domain.Bid, error) {
	if _, err := s.GetByID(ctx, auctionID); err != nil {
		return nil, err
	}
	var out []domain.Bid
	if err := s.DB.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("amount DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ActivatePending flips pending auctions whose start time has arrived.
func (s *Service) ActivatePending(ctx context.Context) (int, error) {
	now := s.now()
	res := s.DB.WithContext(ctx).Model(&domain.Auction{}).
		Where("status = ? AND start_time <= ?", domain.AuctionPending, now).
		Update("status", domain.AuctionActive)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// CloseExpiredAuctions closes every active auction past its end time,
// exactly once each. Each close is an independent atomic unit; one failing
// auction is logged and skipped, the rest of the batch continues. Safe to
// call concurrently with itself and with bid placement: the per-auction lock
// plus the status re-check inside the transaction makes the transition
// single-shot.
func (s *Service) CloseExpiredAuctions(ctx context.Context) (int, error) {
	if ctx.Err() != nil {
		// Shutdown before the pass started; nothing closed, nothing lost.
		return 0, nil
	}

	now := s.now()
	var ids []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&domain.Auction{}).
		Where("status = ? AND end_time <= ?", domain.AuctionActive, now).
		Pluck("auction_id", &ids).Error; err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			// Shutdown: finish nothing new; expired auctions stay
			// selectable for the next tick.
			break
		}
		ok, err := s.closeOne(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("auction_id", id.String()).Msg("Failed to close expired auction")
			continue
		}
		if ok {
			closed++
		}
	}

	if closed > 0 {
		log.Info().Int("count", closed).Msg("Closed expired auctions")
		n := closed
		s.Dispatch.Go("broadcast_batch_closed", func(ctx context.Context) error {
			return s.Realtime.BroadcastBatchClosed(ctx, n)
		})
	}
	return closed, nil
}

// closeOne performs the atomic Active -> Completed transition for a single
// auction and writes its history record. Returns false when another closer
// got there first.
func (s *Service) closeOne(ctx context.Context, id uuid.UUID) (bool, error) {
	unlock := s.Locks.Lock(id)
	defer unlock()

	now := s.now()
	var (
		winnerID   *uuid.UUID
		finalPrice decimal.Decimal
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var auction domain.Auction
		if err := tx.Where("auction_id = ?", id).First(&auction).Error; err != nil {
			return err
		}
		// Re-check under the lock: a concurrent sweep may have closed it,
		// or a late bid may have extended it past now.
		if auction.Status != domain.AuctionActive || auction.EndTime.After(now) {
			return errAlreadyHandled
		}

		reserveMet := auction.ReserveMet()
		auction.Status = domain.AuctionCompleted
		if err := tx.Save(&auction).Error; err != nil {
			return err
		}

		var participants int64
		if err := tx.Model(&domain.Bid{}).
			Where("auction_id = ?", id).
			Distinct("bidder_id").
			Count(&participants).Error; err != nil {
			return err
		}

		history := &domain.AuctionHistory{
			AuctionID:          id,
			FinalPrice:         auction.CurrentBid,
			TotalBids:          auction.TotalBids,
			UniqueParticipants: int(participants),
			CompletedAt:        now,
			ReserveMet:         reserveMet,
		}
		if reserveMet {
			history.WinnerID = auction.CurrentBidderID
		}
		if err := tx.Create(history).Error; err != nil {
			return err
		}

		if history.WinnerID != nil {
			if err := tx.Model(&domain.Bid{}).
				Where("bid_id = (?)", tx.Session(&gorm.Session{NewDB: true}).
					Model(&domain.Bid{}).
					Select("bid_id").
					Where("auction_id = ? AND bidder_id = ?", id, *history.WinnerID).
					Order("amount DESC").
					Limit(1)).
				Update("is_winning_bid", true).Error; err != nil {
				return err
			}
		}

		eventData, _ := json.Marshal(map[string]interface{}{
			"winner_id":   history.WinnerID,
			"final_price": history.FinalPrice,
			"reserve_met": reserveMet,
		})
		if err := tx.Create(&domain.AuctionEvent{
			AuctionID: id,
			EventType: domain.EventAuctionClosed,
			EventData: datatypes.JSON(eventData),
		}).Error; err != nil {
			return err
		}

		winnerID = history.WinnerID
		finalPrice = history.FinalPrice
		return nil
	})
	if err == errAlreadyHandled {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if winnerID != nil {
		w := *winnerID
		price := finalPrice
		s.Dispatch.Go("notify_won", func(ctx context.Context) error {
			return s.Notifier.NotifyWon(ctx, w, id, price)
		})
	}
	wID := winnerID
	price := finalPrice
	s.Dispatch.Go("broadcast_closed", func(ctx context.Context) error {
		return s.Realtime.BroadcastClosed(ctx, id, wID, price)
	})

	return true, nil
}

// NotifyEndingSoon emits a heads-up for every active auction ending within
// the next five minutes. Repeats across ticks are acceptable; consumers
// dedupe or tolerate them.
func (s *Service) NotifyEndingSoon(ctx context.Context) error {
	now := s.now()
	var endingSoon []domain.Auction
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND end_time > ? AND end_time <= ?",
			domain.AuctionActive, now, now.Add(endingSoonWindow)).
		Find(&endingSoon).Error; err != nil {
		return err
	}

	for _, auction := range endingSoon {
		minutes := int(auction.EndTime.Sub(now).Minutes()) + 1
		id := auction.AuctionID
		s.Dispatch.Go("notify_ending_soon", func(ctx context.Context) error {
			return s.Notifier.NotifyEndingSoon(ctx, id, minutes)
		})
		s.Dispatch.Go("broadcast_ending_soon", func(ctx context.Context) error {
			return s.Realtime.BroadcastEndingSoon(ctx, id, minutes)
		})
	}
	return nil
}

// errAlreadyHandled aborts closeOne's transaction without surfacing an error
// when the auction no longer needs closing.
var errAlreadyHandled = &alreadyHandledError{}

type alreadyHandledError struct{}

func (*alreadyHandledError) Error() string { return "auction already handled" }
