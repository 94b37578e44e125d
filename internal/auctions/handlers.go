package auctions

import (
	"time"

	"carbid-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *Service
}

type createAuctionRequest struct {
	CarID                     uuid.UUID        `json:"car_id"`
	StartingPrice             decimal.Decimal  `json:"starting_price"`
	ReservePrice              *decimal.Decimal `json:"reserve_price"`
	MinimumBidIncrement       decimal.Decimal  `json:"minimum_bid_increment"`
	StartTime                 time.Time        `json:"start_time"`
	EndTime                   time.Time        `json:"end_time"`
	ExtensionMinutes          int              `json:"extension_minutes"`
	ExtensionThresholdMinutes int              `json:"extension_threshold_minutes"`
}

func (h *Handlers) CreateAuction(c *fiber.Ctx) error {
	var req createAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if req.CarID == uuid.Nil {
		return response.Error(c, "car_id is required", fiber.StatusBadRequest, nil)
	}
	if req.StartingPrice.LessThanOrEqual(decimal.Zero) {
		return response.Error(c, "starting_price must be positive", fiber.StatusBadRequest, nil)
	}

	auction, err := h.Service.Create(c.Context(), CreateAuctionInput{
		CarID:                     req.CarID,
		StartingPrice:             req.StartingPrice,
		ReservePrice:              req.ReservePrice,
		MinimumBidIncrement:       req.MinimumBidIncrement,
		StartTime:                 req.StartTime,
		EndTime:                   req.EndTime,
		ExtensionMinutes:          req.ExtensionMinutes,
		ExtensionThresholdMinutes: req.ExtensionThresholdMinutes,
	})
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Auction created", auction, nil)
}

func (h *Handlers) ListAuctions(c *fiber.Ctx) error {
	status := c.Query("status")
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 20)

	auctions, total, err := h.Service.List(c.Context(), status, page, pageSize)
	if err != nil {
		return err
	}
	return response.Success(c, "Auctions", auctions, fiber.Map{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *Handlers) GetAuction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid auction id", fiber.StatusBadRequest, nil)
	}
	auction, err := h.Service.GetByID(c.Context(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Auction", auction, nil)
}

type updateAuctionRequest struct {
	StartingPrice             *decimal.Decimal `json:"starting_price"`
	ReservePrice              *decimal.Decimal `json:"reserve_price"`
	MinimumBidIncrement       *decimal.Decimal `json:"minimum_bid_increment"`
	StartTime                 *time.Time       `json:"start_time"`
	EndTime                   *time.Time       `json:"end_time"`
	ExtensionMinutes          *int             `json:"extension_minutes"`
	ExtensionThresholdMinutes *int             `json:"extension_threshold_minutes"`
}

func (h *Handlers) UpdateAuction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid auction id", fiber.StatusBadRequest, nil)
	}
	var req updateAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}

	auction, err := h.Service.Update(c.Context(), id, UpdateAuctionInput{
		StartingPrice:             req.StartingPrice,
		ReservePrice:              req.ReservePrice,
		MinimumBidIncrement:       req.MinimumBidIncrement,
		StartTime:                 req.StartTime,
		EndTime:                   req.EndTime,
		ExtensionMinutes:          req.ExtensionMinutes,
		ExtensionThresholdMinutes: req.ExtensionThresholdMinutes,
	})
	if err != nil {
		return err
	}
	return response.Success(c, "Auction updated", auction, nil)
}

func (h *Handlers) CancelAuction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid auction id", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.Cancel(c.Context(), id); err != nil {
		return err
	}
	return response.Success(c, "Auction cancelled", nil, nil)
}

func (h *Handlers) GetAuctionBids(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid auction id", fiber.StatusBadRequest, nil)
	}
	bids, err := h.Service.GetBids(c.Context(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Bids", bids, nil)
}

// CloseExpired is the manual force-sweep. Safe to run concurrently with the
// background sweeper.
func (h *Handlers) CloseExpired(c *fiber.Ctx) error {
	count, err := h.Service.CloseExpiredAuctions(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, "Expired auctions closed", fiber.Map{"closed": count}, nil)
}
