package notifications

import (
	"carbid-backend/internal/middleware"
	"carbid-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

func (h *Handlers) List(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 20)
	notifications, total, err := h.Service.List(c.Context(), userID, page, pageSize)
	if err != nil {
		return err
	}
	return response.Success(c, "Notifications", notifications, fiber.Map{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *Handlers) UnreadCount(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	count, err := h.Service.UnreadCount(c.Context(), userID)
	if err != nil {
		return err
	}
	return response.Success(c, "Unread count", fiber.Map{"unread": count}, nil)
}

func (h *Handlers) MarkRead(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid notification id", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.MarkRead(c.Context(), userID, id); err != nil {
		return err
	}
	return response.Success(c, "Notification marked read", nil, nil)
}

func (h *Handlers) MarkAllRead(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	if err := h.Service.MarkAllRead(c.Context(), userID); err != nil {
		return err
	}
	return response.Success(c, "All notifications marked read", nil, nil)
}

func (h *Handlers) Delete(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid notification id", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.Delete(c.Context(), userID, id); err != nil {
		return err
	}
	return response.Success(c, "Notification deleted", nil, nil)
}
