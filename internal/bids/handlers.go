package bids

import (
	"carbid-backend/internal/middleware"
	"carbid-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *Service
}

type placeBidRequest struct {
	AuctionID uuid.UUID       `json:"auction_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *Handlers) PlaceBid(c *fiber.Ctx) error {
	bidderID := middleware.GetUserID(c)
	if bidderID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req placeBidRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if req.AuctionID == uuid.Nil {
		return response.Error(c, "auction_id is required", fiber.StatusBadRequest, nil)
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return response.Error(c, "amount must be positive", fiber.StatusBadRequest, nil)
	}

	ip := c.IP()
	outcome, err := h.Service.PlaceBid(c.Context(), bidderID, PlaceBidInput{
		AuctionID: req.AuctionID,
		Amount:    req.Amount,
		IPAddress: &ip,
	})
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Bid placed", outcome, nil)
}

func (h *Handlers) MyBids(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 20)
	bids, total, err := h.Service.GetUserBids(c.Context(), userID, page, pageSize)
	if err != nil {
		return err
	}
	return response.Success(c, "Bids", bids, fiber.Map{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *Handlers) WinningBid(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid auction id", fiber.StatusBadRequest, nil)
	}
	bid, err := h.Service.GetWinningBid(c.Context(), auctionID)
	if err != nil {
		return err
	}
	return response.Success(c, "Winning bid", bid, nil)
}
