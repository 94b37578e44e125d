package notifications

import (
	"context"
	"fmt"
	"time"

	"carbid-backend/internal/domain"
	"carbid-backend/internal/emails"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service persists user notifications and fans the important ones out by
// email. It implements notify.NotificationSink; the core calls it only
// through the dispatcher, post-commit.
type Service struct {
	DB     *gorm.DB
	Emails emails.Sender
}

func (s *Service) create(ctx context.Context, userID uuid.UUID, kind, title, message string, auctionID *uuid.UUID) error {
	n := &domain.Notification{
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		AuctionID: auctionID,
	}
	return s.DB.WithContext(ctx).Create(n).Error
}

// carName resolves the display name for the car an auction is selling.
func (s *Service) carName(ctx context.Context, auctionID uuid.UUID) string {
	var auction domain.Auction
	if err := s.DB.WithContext(ctx).Where("auction_id = ?", auctionID).First(&auction).Error; err != nil {
		return "the car"
	}
	var car domain.Car
	if err := s.DB.WithContext(ctx).Where("car_id = ?", auction.CarID).First(&car).Error; err != nil {
		return "the car"
	}
	return fmt.Sprintf("%s %d", car.DisplayName(), car.Year)
}

func (s *Service) userEmail(ctx context.Context, userID uuid.UUID) string {
	var user domain.User
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		return ""
	}
	return user.Email
}

func (s *Service) NotifyOutbid(ctx context.Context, userID, auctionID uuid.UUID, newAmount decimal.Decimal) error {
	carName := s.carName(ctx, auctionID)
	if err := s.create(ctx, userID, domain.NotifyOutbid,
		"You have been outbid",
		fmt.Sprintf("Someone outbid you on %s. New bid: %s", carName, newAmount.StringFixed(2)),
		&auctionID); err != nil {
		return err
	}
	if s.Emails != nil {
		if email := s.userEmail(ctx, userID); email != "" {
			if err := s.Emails.SendOutbid(ctx, email, carName, newAmount); err != nil {
				log.Warn().Err(err).Str("user_id", userID.String()).Msg("Outbid email failed")
			}
		}
	}
	return nil
}

func (s *Service) NotifyWon(ctx context.Context, userID, auctionID uuid.UUID, finalPrice decimal.Decimal) error {
	carName := s.carName(ctx, auctionID)
	if err := s.create(ctx, userID, domain.NotifyAuctionWon,
		"You won the auction",
		fmt.Sprintf("You won the auction for %s at %s", carName, finalPrice.StringFixed(2)),
		&auctionID); err != nil {
		return err
	}
	if s.Emails != nil {
		if email := s.userEmail(ctx, userID); email != "" {
			if err := s.Emails.SendAuctionWon(ctx, email, carName, finalPrice); err != nil {
				log.Warn().Err(err).Str("user_id", userID.String()).Msg("Auction-won email failed")
			}
		}
	}
	return nil
}

// NotifyEndingSoon notifies every bidder on the auction. Repeats across
// sweeper ticks are tolerated.
func (s *Service) NotifyEndingSoon(ctx context.Context, auctionID uuid.UUID, minutesRemaining int) error {
	var bidders []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&domain.Bid{}).
		Where("auction_id = ?", auctionID).
		Distinct("bidder_id").
		Pluck("bidder_id", &bidders).Error; err != nil {
		return err
	}

	carName := s.carName(ctx, auctionID)
	for _, bidderID := range bidders {
		if err := s.create(ctx, bidderID, domain.NotifyAuctionEnding,
			"Auction ending soon",
			fmt.Sprintf("The auction for %s ends in about %d minutes", carName, minutesRemaining),
			&auctionID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) NotifyCancelled(ctx context.Context, userID, auctionID uuid.UUID) error {
	carName := s.carName(ctx, auctionID)
	return s.create(ctx, userID, domain.NotifyAuctionCancelled,
		"Auction cancelled",
		fmt.Sprintf("The auction for %s you participated in was cancelled", carName),
		&auctionID)
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := s.DB.WithContext(ctx).Model(&domain.Notification{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []domain.Notification
	if err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	var n domain.Notification
	if err := s.DB.WithContext(ctx).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		First(&n).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &domain.NotFoundError{Entity: "Notification", Key: notificationID}
		}
		return err
	}
	if n.IsRead {
		return nil
	}
	now := time.Now().UTC()
	return s.DB.WithContext(ctx).Model(&n).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	now := time.Now().UTC()
	return s.DB.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
}

func (s *Service) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	res := s.DB.WithContext(ctx).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Delete(&domain.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.NotFoundError{Entity: "Notification", Key: notificationID}
	}
	return nil
}
